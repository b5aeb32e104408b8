// Package mcp exposes the session engine as Model Context Protocol tools so an
// assistant can log a workout on the user's behalf.
package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/workoutsync/internal/engine"
	"github.com/claude/workoutsync/internal/models"
	"github.com/claude/workoutsync/internal/session"
)

// Controller is the engine surface the tools drive.
type Controller interface {
	State() engine.State
	Load(ctx context.Context, date string) error
	Start(ctx context.Context) error
	Finish(ctx context.Context) error
	Cancel(ctx context.Context) error
	Flush(ctx context.Context) error
	ToggleSet(ctx context.Context, exerciseIdx, setIdx int) error
	AddSet(ctx context.Context, exerciseIdx int) error
	DeleteSet(ctx context.Context, exerciseIdx, setIdx int) error
	ChangeField(exerciseIdx, setIdx int, field session.Field, raw string) error
	BlurField(exerciseIdx, setIdx int, field session.Field, raw string) error
}

// History serves past workouts. It may be nil.
type History interface {
	List(ctx context.Context, date string) ([]models.WorkoutAPI, error)
	Get(ctx context.Context, id string) (*models.WorkoutAPI, error)
}

// New creates an MCP server with all tools and resources registered.
func New(ctrl Controller, history History, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("workoutsync", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Workout logging server. Read today's session, start or finish it, and record reps and weight set by set. Exercise and set indices are zero-based."),
	)

	h := &handlers{ctrl: ctrl, history: history, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolGetSession, Handler: h.getSession},
		server.ServerTool{Tool: toolLoadSession, Handler: h.loadSession},
		server.ServerTool{Tool: toolStartWorkout, Handler: h.lifecycle(ctrl.Start)},
		server.ServerTool{Tool: toolFinishWorkout, Handler: h.lifecycle(ctrl.Finish)},
		server.ServerTool{Tool: toolCancelWorkout, Handler: h.lifecycle(ctrl.Cancel)},
		server.ServerTool{Tool: toolSaveNow, Handler: h.lifecycle(ctrl.Flush)},
		server.ServerTool{Tool: toolToggleSet, Handler: h.toggleSet},
		server.ServerTool{Tool: toolAddSet, Handler: h.addSet},
		server.ServerTool{Tool: toolDeleteSet, Handler: h.deleteSet},
		server.ServerTool{Tool: toolSetField, Handler: h.setField},
	)
	if history != nil {
		s.AddTools(server.ServerTool{Tool: toolGetHistory, Handler: h.getHistory})
	}

	s.AddResources(
		server.ServerResource{Resource: resSession, Handler: h.sessionResource},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ctrl    Controller
	history History
	log     *slog.Logger
}

var resSession = mcp.NewResource(
	"workoutsync://session",
	"Current Session",
	mcp.WithResourceDescription("Today's workout session with every set, pending edits and validation messages"),
	mcp.WithMIMEType("application/json"),
)
