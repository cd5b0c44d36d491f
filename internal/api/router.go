package api

import (
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/plantpal/plantpal/internal/api/recovery"
	"github.com/plantpal/plantpal/internal/events"
	"github.com/plantpal/plantpal/internal/metrics"
	"github.com/plantpal/plantpal/internal/services"
)

// Deps are the components the router exposes. Metrics and Bus are
// optional; their routes are skipped when nil.
type Deps struct {
	Progress    *services.ProgressService
	Analytics   *services.AnalyticsService
	Chat        *services.ChatService
	Health      *HealthHandler
	Bus         *events.Bus
	EventBuffer int
	Metrics     *metrics.Metrics
	Log         zerolog.Logger
}

// NewRouter wires HTTP routes to handlers.
func NewRouter(d Deps) *mux.Router {
	root := mux.NewRouter()
	root.Use(recovery.Middleware)
	if d.Metrics != nil {
		root.Use(Instrument(d.Metrics))
		root.Handle("/metrics", d.Metrics.Handler()).Methods("GET")
	}

	health := d.Health
	if health == nil {
		health = NewHealthHandler(nil)
	}
	root.HandleFunc("/api/health", health.CheckHealth).Methods("GET")

	users := root.PathPrefix("/api/users/{userId}").Subrouter()
	users.Use(RequireUserID)

	progress := NewProgressHandler(d.Progress, d.Analytics)
	users.HandleFunc("/stats", progress.GetStats).Methods("GET")
	users.HandleFunc("/conversations/completed", progress.CompleteConversation).Methods("POST")
	users.HandleFunc("/checkins", progress.CheckIn).Methods("POST")
	users.HandleFunc("/moods", progress.LogMood).Methods("POST")
	users.HandleFunc("/moods", progress.ListMoods).Methods("GET")
	users.HandleFunc("/achievements", progress.ListAchievements).Methods("GET")
	users.HandleFunc("/analytics", progress.Analytics).Methods("GET")
	users.HandleFunc("/export", progress.Export).Methods("GET")
	users.HandleFunc("/import", progress.Import).Methods("POST")
	users.HandleFunc("/data", progress.DeleteData).Methods("DELETE")

	if d.Chat != nil {
		chat := NewChatHandler(d.Chat)
		users.HandleFunc("/conversations", chat.Converse).Methods("POST")
		users.HandleFunc("/conversations", chat.History).Methods("GET")
	}

	if d.Bus != nil {
		stream := NewEventsHandler(d.Bus, d.EventBuffer, d.Log)
		users.HandleFunc("/events", stream.Stream).Methods("GET")
	}
	return root
}
