package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/plantpal/plantpal/internal/events"
)

const defaultHeartbeat = 15 * time.Second

// EventsHandler streams a user's bus events as server-sent events.
type EventsHandler struct {
	bus       *events.Bus
	buffer    int
	heartbeat time.Duration
	log       zerolog.Logger
}

func NewEventsHandler(bus *events.Bus, buffer int, log zerolog.Logger) *EventsHandler {
	if buffer < 1 {
		buffer = 16
	}
	return &EventsHandler{bus: bus, buffer: buffer, heartbeat: defaultHeartbeat, log: log}
}

// Stream GET /api/users/{userId}/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	rc := http.NewResponseController(w)
	// The server write timeout would otherwise cut the stream.
	_ = rc.SetWriteDeadline(time.Time{})

	ch, cancel := h.bus.Subscribe(h.buffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.log.Warn().Err(err).Msg("event stream not flushable")
		return
	}
	h.log.Debug().Str("user_id", uid).Msg("event stream opened")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			h.log.Debug().Str("user_id", uid).Msg("event stream closed")
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if evt.UserID != uid {
				continue
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, data); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
