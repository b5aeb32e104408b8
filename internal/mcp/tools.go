package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/workoutsync/internal/session"
)

// --- Tool definitions ---

var toolGetSession = mcp.NewTool("get_session",
	mcp.WithDescription("Return the loaded workout session: status, exercises, sets with reps/weight, completed flags, unsaved edits and any error message."),
)

var toolLoadSession = mcp.NewTool("load_session",
	mcp.WithDescription("Load the workout scheduled on a date, discarding unsaved local state."),
	mcp.WithString("date", mcp.Description("Date (YYYY-MM-DD). Defaults to today.")),
)

var toolStartWorkout = mcp.NewTool("start_workout",
	mcp.WithDescription("Start the loaded workout. Only valid when it has not been started."),
)

var toolFinishWorkout = mcp.NewTool("finish_workout",
	mcp.WithDescription("Finish the workout. Requires at least one completed set; unsaved field edits are discarded."),
)

var toolCancelWorkout = mcp.NewTool("cancel_workout",
	mcp.WithDescription("Cancel the workout: clears start/end times and un-completes every set."),
)

var toolSaveNow = mcp.NewTool("save_now",
	mcp.WithDescription("Write pending reps/weight edits to the workout service now instead of waiting for the save delay."),
)

var toolToggleSet = mcp.NewTool("toggle_set",
	mcp.WithDescription("Mark a set completed (or not completed). Completing a set adopts suggested reps/weight for fields that were not edited."),
	mcp.WithNumber("exercise", mcp.Required(), mcp.Description("Exercise index (0-based)")),
	mcp.WithNumber("set", mcp.Required(), mcp.Description("Set index (0-based)")),
)

var toolAddSet = mcp.NewTool("add_set",
	mcp.WithDescription("Append a set to an exercise, copying the previous set's reps, weight and rest."),
	mcp.WithNumber("exercise", mcp.Required(), mcp.Description("Exercise index (0-based)")),
)

var toolDeleteSet = mcp.NewTool("delete_set",
	mcp.WithDescription("Delete a set. The last remaining set of an exercise cannot be deleted."),
	mcp.WithNumber("exercise", mcp.Required(), mcp.Description("Exercise index (0-based)")),
	mcp.WithNumber("set", mcp.Required(), mcp.Description("Set index (0-based)")),
)

var toolSetField = mcp.NewTool("set_field",
	mcp.WithDescription("Enter reps or weight for a set. Reps: whole number 1-9999. Weight: positive number up to 999.9, or empty for bodyweight. Saved shortly after the last edit."),
	mcp.WithNumber("exercise", mcp.Required(), mcp.Description("Exercise index (0-based)")),
	mcp.WithNumber("set", mcp.Required(), mcp.Description("Set index (0-based)")),
	mcp.WithString("field", mcp.Required(), mcp.Enum(string(session.FieldReps), string(session.FieldWeight))),
	mcp.WithString("value", mcp.Description("Value as typed by the user")),
)

var toolGetHistory = mcp.NewTool("get_history",
	mcp.WithDescription("Look up past workouts, either all workouts on a date or one workout by id."),
	mcp.WithString("date", mcp.Description("Date (YYYY-MM-DD)")),
	mcp.WithString("id", mcp.Description("Workout id; takes precedence over date")),
)

// --- Tool handlers ---

func (h *handlers) stateResult() *mcp.CallToolResult {
	result, err := mcp.NewToolResultJSON(h.ctrl.State().View())
	if err != nil {
		return mcp.NewToolResultError("serialization failed")
	}
	return result
}

// fail reports err to the assistant. Engine errors are expected outcomes, not
// protocol failures, so they never surface as a Go error.
func (h *handlers) fail(tool string, err error) (*mcp.CallToolResult, error) {
	h.log.Warn("mcp tool failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(err.Error()), nil
}

func (h *handlers) getSession(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.stateResult(), nil
}

func (h *handlers) loadSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date := req.GetString("date", "")
	if date == "" {
		date = time.Now().Format(time.DateOnly)
	} else if _, err := time.Parse(time.DateOnly, date); err != nil {
		return mcp.NewToolResultError("invalid date format, want YYYY-MM-DD"), nil
	}
	if err := h.ctrl.Load(ctx, date); err != nil {
		return h.fail("load_session", err)
	}
	return h.stateResult(), nil
}

func (h *handlers) lifecycle(fn func(ctx context.Context) error) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := fn(ctx); err != nil {
			return h.fail(req.Params.Name, err)
		}
		return h.stateResult(), nil
	}
}

func (h *handlers) toggleSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ex, set, res := setArgs(req)
	if res != nil {
		return res, nil
	}
	if err := h.ctrl.ToggleSet(ctx, ex, set); err != nil {
		return h.fail("toggle_set", err)
	}
	return h.stateResult(), nil
}

func (h *handlers) addSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ex, err := req.RequireInt("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}
	if err := h.ctrl.AddSet(ctx, ex); err != nil {
		return h.fail("add_set", err)
	}
	return h.stateResult(), nil
}

func (h *handlers) deleteSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ex, set, res := setArgs(req)
	if res != nil {
		return res, nil
	}
	if err := h.ctrl.DeleteSet(ctx, ex, set); err != nil {
		return h.fail("delete_set", err)
	}
	return h.stateResult(), nil
}

// setField types the value and commits it, as if the input lost focus.
func (h *handlers) setField(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ex, set, res := setArgs(req)
	if res != nil {
		return res, nil
	}
	field := session.Field(req.GetString("field", ""))
	if !session.ValidField(field) {
		return mcp.NewToolResultError("field must be reps or weight"), nil
	}
	value := req.GetString("value", "")

	if err := h.ctrl.ChangeField(ex, set, field, value); err != nil {
		return h.fail("set_field", err)
	}
	if err := h.ctrl.BlurField(ex, set, field, value); err != nil {
		return h.fail("set_field", err)
	}
	return h.stateResult(), nil
}

func (h *handlers) getHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if id := req.GetString("id", ""); id != "" {
		w, err := h.history.Get(ctx, id)
		if err != nil {
			return h.fail("get_history", err)
		}
		return jsonResult(w)
	}

	date := req.GetString("date", "")
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return mcp.NewToolResultError("date (YYYY-MM-DD) or id is required"), nil
	}
	workouts, err := h.history.List(ctx, date)
	if err != nil {
		return h.fail("get_history", err)
	}
	return jsonResult(workouts)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func setArgs(req mcp.CallToolRequest) (ex, set int, res *mcp.CallToolResult) {
	ex, err := req.RequireInt("exercise")
	if err != nil {
		return 0, 0, mcp.NewToolResultError("exercise parameter is required")
	}
	set, err = req.RequireInt("set")
	if err != nil {
		return 0, 0, mcp.NewToolResultError("set parameter is required")
	}
	return ex, set, nil
}
