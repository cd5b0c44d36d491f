package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	respond "github.com/plantpal/plantpal/internal/api/respond"
	"github.com/plantpal/plantpal/internal/api/validate"
	"github.com/plantpal/plantpal/internal/model"
	"github.com/plantpal/plantpal/internal/services"
)

const (
	maxBodyBytes   = 64 << 10
	maxImportBytes = 16 << 20
)

type ProgressHandler struct {
	svc       *services.ProgressService
	analytics *services.AnalyticsService
}

func NewProgressHandler(svc *services.ProgressService, analytics *services.AnalyticsService) *ProgressHandler {
	return &ProgressHandler{svc: svc, analytics: analytics}
}

func userID(r *http.Request) string { return mux.Vars(r)["userId"] }

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return errors.New("request body too large")
		}
		return errors.New("invalid JSON")
	}
	return nil
}

// GetStats GET /api/users/{userId}/stats
func (h *ProgressHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.GetStats(r.Context(), userID(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// CompleteConversation POST /api/users/{userId}/conversations/completed
func (h *ProgressHandler) CompleteConversation(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.RecordConversation(r.Context(), userID(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// CheckIn POST /api/users/{userId}/checkins
func (h *ProgressHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.CheckIn(r.Context(), userID(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// LogMood POST /api/users/{userId}/moods
func (h *ProgressHandler) LogMood(w http.ResponseWriter, r *http.Request) {
	var in services.MoodInput
	if err := decodeJSON(w, r, &in, maxBodyBytes); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	out, err := h.svc.LogMood(r.Context(), userID(r), in)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// ListMoods GET /api/users/{userId}/moods?limit=
func (h *ProgressHandler) ListMoods(w http.ResponseWriter, r *http.Request) {
	limit, err := validate.Limit(r.URL.Query().Get("limit"))
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	out, err := h.svc.ListMoods(r.Context(), userID(r), limit)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	if out == nil {
		out = []*model.MoodEntry{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"moods": out, "count": len(out)})
}

// ListAchievements GET /api/users/{userId}/achievements
func (h *ProgressHandler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ListAchievements(r.Context(), userID(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	unlocked := 0
	for _, a := range out {
		if a.Unlocked {
			unlocked++
		}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"achievements": out,
		"unlocked":     unlocked,
		"total":        len(out),
	})
}

// Analytics GET /api/users/{userId}/analytics
// analytics is null until the first mood entry.
func (h *ProgressHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	out, err := h.analytics.MoodAnalytics(r.Context(), userID(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"analytics": out})
}

// Export GET /api/users/{userId}/export
func (h *ProgressHandler) Export(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Export(r.Context(), userID(r))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="plantpal-export.json"`)
	respond.WriteJSON(w, http.StatusOK, out)
}

// Import POST /api/users/{userId}/import
func (h *ProgressHandler) Import(w http.ResponseWriter, r *http.Request) {
	var in model.Export
	if err := decodeJSON(w, r, &in, maxImportBytes); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	out, err := h.svc.Import(r.Context(), userID(r), &in)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// DeleteData DELETE /api/users/{userId}/data
func (h *ProgressHandler) DeleteData(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reset(r.Context(), userID(r)); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
