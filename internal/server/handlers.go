package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/claude/workoutsync/internal/engine"
	"github.com/claude/workoutsync/internal/session"
)

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.State().View())
}

// handleEvents streams a state snapshot as a server-sent event after every
// change. Slow readers only ever see the latest snapshot.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	updates := make(chan engine.State, 1)
	unsubscribe := s.ctrl.Subscribe(func(st engine.State) {
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- st:
		default:
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(st engine.State) error {
		data, err := json.Marshal(st.View())
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	if err := send(s.ctrl.State()); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case st := <-updates:
			if err := send(st); err != nil {
				s.log.Debug("event stream closed", "error", err)
				return
			}
		}
	}
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format(time.DateOnly)
	} else if _, err := time.Parse(time.DateOnly, date); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}
	if err := s.ctrl.Load(r.Context(), date); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.State().View())
}

// action adapts a whole-session entry point to a handler that answers with
// the resulting state.
func (s *Server) action(fn func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context()); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.ctrl.State().View())
	}
}

func (s *Server) handleDismissError(w http.ResponseWriter, r *http.Request) {
	s.ctrl.DismissError()
	writeJSON(w, http.StatusOK, s.ctrl.State().View())
}

func (s *Server) handleAddSet(w http.ResponseWriter, r *http.Request) {
	ex, err := intParam(r, "ex")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.action(func(ctx context.Context) error { return s.ctrl.AddSet(ctx, ex) })(w, r)
}

func (s *Server) handleDeleteSet(w http.ResponseWriter, r *http.Request) {
	ex, set, err := setParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.action(func(ctx context.Context) error { return s.ctrl.DeleteSet(ctx, ex, set) })(w, r)
}

func (s *Server) handleToggleSet(w http.ResponseWriter, r *http.Request) {
	ex, set, err := setParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.action(func(ctx context.Context) error { return s.ctrl.ToggleSet(ctx, ex, set) })(w, r)
}

type fieldRequest struct {
	Raw string `json:"raw"`
}

func (s *Server) handleChangeField(w http.ResponseWriter, r *http.Request) {
	s.fieldEdit(w, r, s.ctrl.ChangeField)
}

func (s *Server) handleCommitField(w http.ResponseWriter, r *http.Request) {
	s.fieldEdit(w, r, s.ctrl.BlurField)
}

func (s *Server) fieldEdit(w http.ResponseWriter, r *http.Request, fn func(int, int, session.Field, string) error) {
	ex, set, err := setParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	field := session.Field(chi.URLParam(r, "field"))
	if !session.ValidField(field) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "field must be reps or weight"})
		return
	}
	var req fieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if err := fn(ex, set, field, req.Raw); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.State().View())
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date parameter required (YYYY-MM-DD)"})
		return
	}
	workouts, err := s.history.List(r.Context(), date)
	if err != nil {
		s.log.Error("history list failed", "date", date, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, workouts)
}

func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	workout, err := s.history.Get(r.Context(), id)
	if err != nil {
		s.log.Error("history get failed", "id", id, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, workout)
}

// writeError maps engine errors to status codes. The body always carries the
// current state so clients can re-render after a rollback.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		vErr   *engine.ValidationError
		opErr  *engine.OperationError
		reqErr *engine.RequestError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrNoSession), errors.Is(err, engine.ErrNoSuchSet):
		status = http.StatusNotFound
	case errors.As(err, &vErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &opErr):
		status = http.StatusConflict
	case errors.As(err, &reqErr):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.log.Error("unexpected engine error", "error", err)
	}
	writeJSON(w, status, map[string]any{
		"error": err.Error(),
		"state": s.ctrl.State().View(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func intParam(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s index", name)
	}
	return v, nil
}

func setParams(r *http.Request) (ex, set int, err error) {
	if ex, err = intParam(r, "ex"); err != nil {
		return 0, 0, err
	}
	if set, err = intParam(r, "set"); err != nil {
		return 0, 0, err
	}
	return ex, set, nil
}
