package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
)

const (
	ToolCreateTodo        = "create_todo"
	ToolGetTodos          = "get_todos"
	ToolUpdateTodo        = "update_todo"
	ToolToggleTodo        = "toggle_todo"
	ToolDeleteTodo        = "delete_todo"
	ToolClearCompleted    = "clear_completed_todos"
	ToolCallPhoneNumber   = "call_phone_number"
	ToolGetCallTranscript = "get_call_transcript"
)

type Executor func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error)

// Deps are the collaborators tools act on. Call collaborators are optional; their tools are
// omitted when nil.
type Deps struct {
	Todos      contractx.TodoStore
	Calls      contractx.CallDispatcher
	CallReader contractx.CallReader
	CallLog    contractx.CallLog
}

// BuildForUser returns the tool schema and executor for an agent acting on behalf of userID.
// Anonymous agents get no tools.
func BuildForUser(deps Deps, userID string) ([]*schema.ToolInfo, Executor) {
	userID = strings.TrimSpace(userID)
	if userID == "" || deps.Todos == nil {
		return nil, DefaultExecutor(userID)
	}
	return infosFor(deps), NewExecutor(deps, userID)
}

func NewExecutor(deps Deps, userID string) Executor {
	fallback := DefaultExecutor(userID)
	todos := todoTools{store: deps.Todos, userID: userID}
	calls := callTools{dispatcher: deps.Calls, reader: deps.CallReader, log: deps.CallLog, userID: userID}

	return func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
		switch tool {
		case ToolCreateTodo:
			return todos.create(ctx, tool, args), nil
		case ToolGetTodos:
			return todos.list(ctx, tool), nil
		case ToolUpdateTodo:
			return todos.update(ctx, tool, args), nil
		case ToolToggleTodo:
			return todos.toggle(ctx, tool, args), nil
		case ToolDeleteTodo:
			return todos.delete(ctx, tool, args), nil
		case ToolClearCompleted:
			return todos.clearCompleted(ctx, tool), nil
		case ToolCallPhoneNumber:
			if deps.Calls == nil {
				return fallback(ctx, tool, args)
			}
			return calls.call(ctx, tool, args), nil
		case ToolGetCallTranscript:
			if deps.CallReader == nil {
				return fallback(ctx, tool, args)
			}
			return calls.transcript(ctx, tool, args), nil
		default:
			return fallback(ctx, tool, args)
		}
	}
}

func DefaultExecutor(userID string) Executor {
	return func(ctx context.Context, tool string, _ map[string]any) (contractx.ToolResult, error) {
		who := userID
		if who == "" {
			who = "anonymous"
		}
		return contractx.ToolResult{
			Tool:  tool,
			Error: fmt.Sprintf("tool=%s is unavailable for user=%s", tool, who),
		}, nil
	}
}

func infosFor(deps Deps) []*schema.ToolInfo {
	infos := []*schema.ToolInfo{
		{
			Name: ToolCreateTodo,
			Desc: "Create a new todo on the user's list.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"text": {Type: schema.String, Desc: "Todo text, 1 to 500 characters", Required: true},
			}),
		},
		{
			Name: ToolGetTodos,
			Desc: "List the user's todos, newest first, with ids and completion state.",
		},
		{
			Name: ToolUpdateTodo,
			Desc: "Change the text and/or completion state of a todo by id.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"todo_id":   {Type: schema.String, Desc: "Id of the todo", Required: true},
				"text":      {Type: schema.String, Desc: "New todo text"},
				"completed": {Type: schema.Boolean, Desc: "New completion state"},
			}),
		},
		{
			Name: ToolToggleTodo,
			Desc: "Flip the completion state of a todo by id.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"todo_id": {Type: schema.String, Desc: "Id of the todo", Required: true},
			}),
		},
		{
			Name: ToolDeleteTodo,
			Desc: "Delete a todo by id.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"todo_id": {Type: schema.String, Desc: "Id of the todo", Required: true},
			}),
		},
		{
			Name: ToolClearCompleted,
			Desc: "Delete every completed todo of the user.",
		},
	}

	if deps.Calls != nil {
		infos = append(infos, &schema.ToolInfo{
			Name: ToolCallPhoneNumber,
			Desc: "Place a coaching phone call to a number. Numbers without a leading + get the default country code.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"phone_number": {Type: schema.String, Desc: "Phone number to call", Required: true},
			}),
		})
	}
	if deps.CallReader != nil {
		infos = append(infos, &schema.ToolInfo{
			Name: ToolGetCallTranscript,
			Desc: "Fetch the transcript of a call. Without call_id the user's most recent call is used.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"call_id": {Type: schema.String, Desc: "Call id"},
			}),
		})
	}
	return infos
}
