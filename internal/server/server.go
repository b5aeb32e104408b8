// Package server exposes the session engine over a local HTTP control API.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/claude/workoutsync/internal/engine"
	"github.com/claude/workoutsync/internal/metrics"
	"github.com/claude/workoutsync/internal/models"
	"github.com/claude/workoutsync/internal/session"
)

// Controller is the engine surface the handlers drive.
type Controller interface {
	State() engine.State
	Subscribe(fn func(engine.State)) func()
	Load(ctx context.Context, date string) error
	Start(ctx context.Context) error
	Finish(ctx context.Context) error
	Cancel(ctx context.Context) error
	Flush(ctx context.Context) error
	DismissError()
	ToggleSet(ctx context.Context, exerciseIdx, setIdx int) error
	AddSet(ctx context.Context, exerciseIdx int) error
	DeleteSet(ctx context.Context, exerciseIdx, setIdx int) error
	ChangeField(exerciseIdx, setIdx int, field session.Field, raw string) error
	BlurField(exerciseIdx, setIdx int, field session.Field, raw string) error
}

// History serves past workouts.
type History interface {
	List(ctx context.Context, date string) ([]models.WorkoutAPI, error)
	Get(ctx context.Context, id string) (*models.WorkoutAPI, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	ctrl    Controller
	history History
	log     *slog.Logger
	apiKey  string
	router  chi.Router
}

// New creates a Server with all routes configured. history may be nil, in
// which case the history routes are not mounted. An empty apiKey disables
// authentication.
func New(ctrl Controller, history History, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		ctrl:    ctrl,
		history: history,
		log:     log,
		apiKey:  apiKey,
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestID)
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Get("/metrics", metrics.Handler().ServeHTTP)

	s.router.Group(func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(APIKeyAuth(s.apiKey))
		}

		r.Route("/api/v1/session", func(r chi.Router) {
			r.Get("/", s.handleState)
			r.Get("/events", s.handleEvents)
			r.Post("/load", s.handleLoad)
			r.Post("/start", s.action(s.ctrl.Start))
			r.Post("/finish", s.action(s.ctrl.Finish))
			r.Post("/cancel", s.action(s.ctrl.Cancel))
			r.Post("/flush", s.action(s.ctrl.Flush))
			r.Delete("/error", s.handleDismissError)

			r.Route("/exercises/{ex}/sets", func(r chi.Router) {
				r.Post("/", s.handleAddSet)
				r.Delete("/{set}", s.handleDeleteSet)
				r.Post("/{set}/toggle", s.handleToggleSet)
				r.Put("/{set}/{field}", s.handleChangeField)
				r.Post("/{set}/{field}/commit", s.handleCommitField)
			})
		})

		if s.history != nil {
			r.Get("/api/v1/history", s.handleHistoryList)
			r.Get("/api/v1/history/{id}", s.handleHistoryGet)
		}
	})
}
