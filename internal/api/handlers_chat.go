package api

import (
	"net/http"
	"strings"

	respond "github.com/plantpal/plantpal/internal/api/respond"
	"github.com/plantpal/plantpal/internal/api/validate"
	"github.com/plantpal/plantpal/internal/model"
	"github.com/plantpal/plantpal/internal/services"
)

type ChatHandler struct {
	svc *services.ChatService
}

func NewChatHandler(svc *services.ChatService) *ChatHandler { return &ChatHandler{svc: svc} }

// Converse POST /api/users/{userId}/conversations
func (h *ChatHandler) Converse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.NonEmpty("message", strings.TrimSpace(req.Message)); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	out, err := h.svc.Converse(r.Context(), userID(r), req.Message)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// History GET /api/users/{userId}/conversations?limit=
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, err := validate.Limit(r.URL.Query().Get("limit"))
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	out, err := h.svc.History(r.Context(), userID(r), limit)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	if out == nil {
		out = []*model.ChatMessage{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"messages": out, "count": len(out)})
}
