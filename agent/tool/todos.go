package tool

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
)

// todoTools binds the todo store to one owner. The owner id never comes from model arguments.
type todoTools struct {
	store  contractx.TodoStore
	userID string
}

func (t todoTools) create(ctx context.Context, tool string, args map[string]any) contractx.ToolResult {
	text, _ := stringArg(args, "text")
	return fromEnvelope(tool, t.store.Create(ctx, text, t.userID))
}

func (t todoTools) list(ctx context.Context, tool string) contractx.ToolResult {
	return fromEnvelope(tool, t.store.List(ctx, t.userID))
}

func (t todoTools) update(ctx context.Context, tool string, args map[string]any) contractx.ToolResult {
	id, res, ok := t.ownedTodoID(ctx, tool, args)
	if !ok {
		return res
	}

	var patch contractx.TodoPatch
	if text, ok := stringArg(args, "text"); ok {
		patch.Text = &text
	}
	if completed, ok := boolArg(args, "completed"); ok {
		patch.Completed = &completed
	}
	return fromEnvelope(tool, t.store.Update(ctx, id, patch))
}

func (t todoTools) toggle(ctx context.Context, tool string, args map[string]any) contractx.ToolResult {
	id, res, ok := t.ownedTodoID(ctx, tool, args)
	if !ok {
		return res
	}
	return fromEnvelope(tool, t.store.Toggle(ctx, id))
}

func (t todoTools) delete(ctx context.Context, tool string, args map[string]any) contractx.ToolResult {
	id, res, ok := t.ownedTodoID(ctx, tool, args)
	if !ok {
		return res
	}
	return fromEnvelope(tool, t.store.Delete(ctx, id))
}

func (t todoTools) clearCompleted(ctx context.Context, tool string) contractx.ToolResult {
	return fromEnvelope(tool, t.store.ClearCompleted(ctx, t.userID))
}

// ownedTodoID rejects ids that belong to another owner so a model cannot reach across users.
func (t todoTools) ownedTodoID(ctx context.Context, tool string, args map[string]any) (string, contractx.ToolResult, bool) {
	id, ok := stringArg(args, "todo_id")
	if !ok || strings.TrimSpace(id) == "" {
		return "", contractx.ToolResult{Tool: tool, Error: "todo_id is required"}, false
	}

	env := t.store.Get(ctx, id)
	if !env.Success {
		return "", fromEnvelope(tool, env), false
	}
	if env.Data == nil || env.Data.UserID != t.userID {
		return "", contractx.ToolResult{Tool: tool, Error: "Todo not found"}, false
	}
	return id, contractx.ToolResult{}, true
}

func fromEnvelope[T any](tool string, env contractx.Envelope[T]) contractx.ToolResult {
	if !env.Success {
		return contractx.ToolResult{Tool: tool, Result: env, Error: env.Message}
	}
	return contractx.ToolResult{Tool: tool, Result: env}
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

func boolArg(args map[string]any, key string) (bool, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "1":
			return true, true
		case "false", "no", "0":
			return false, true
		}
	}
	return false, false
}
