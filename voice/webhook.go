package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
	vapix "github.com/tanpawarit/habit-elevate/pkg/vapi"
	"github.com/tidwall/gjson"
)

// FunctionName is a tool the voice assistant may call during a call.
type FunctionName string

const (
	FunctionAddTodo    FunctionName = "Add_todo"
	FunctionDeleteTodo FunctionName = "Delete_todo"
	FunctionReadTodo   FunctionName = "Read_todo"
)

// KnownFunctions lists every function the dispatch table must serve.
var KnownFunctions = []FunctionName{FunctionAddTodo, FunctionDeleteTodo, FunctionReadTodo}

const messageTypeToolCalls = "tool-calls"

// identityPaths are tried in order to find the caller's phone number.
var identityPaths = []string{
	"message.call.customer.number",
	"call.customer.number",
}

// Result is one entry of a tool-calls reply, in the order the calls arrived.
type Result struct {
	ToolCallID string `json:"toolCallId,omitempty"`
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Response is either a tool-calls reply (Results) or an acknowledgement (Status, Message).
type Response struct {
	Results []Result `json:"results,omitempty"`
	Status  string   `json:"status,omitempty"`
	Message string   `json:"message,omitempty"`
}

func (r Response) IsAck() bool {
	return r.Results == nil
}

type handlerFunc func(ctx context.Context, ownerID string, args gjson.Result) Result

// WebhookDispatcher serves tool calls made by the voice assistant on behalf of a registered
// caller.
type WebhookDispatcher struct {
	todos       contractx.TodoStore
	owners      contractx.OwnerDirectory
	countryCode string
	handlers    map[FunctionName]handlerFunc
}

type WebhookOption func(*WebhookDispatcher)

// WithCountryCode sets the prefix added to caller numbers that arrive without one, matching how
// owners are registered.
func WithCountryCode(code string) WebhookOption {
	return func(d *WebhookDispatcher) {
		d.countryCode = strings.TrimSpace(code)
	}
}

func NewWebhookDispatcher(todos contractx.TodoStore, owners contractx.OwnerDirectory, opts ...WebhookOption) (*WebhookDispatcher, error) {
	if todos == nil {
		return nil, errors.New("todo store is required")
	}
	if owners == nil {
		return nil, errors.New("owner directory is required")
	}

	d := &WebhookDispatcher{todos: todos, owners: owners}
	for _, opt := range opts {
		opt(d)
	}
	d.handlers = map[FunctionName]handlerFunc{
		FunctionAddTodo:    d.addTodo,
		FunctionDeleteTodo: d.deleteTodo,
		FunctionReadTodo:   d.readTodo,
	}
	if err := d.checkTable(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *WebhookDispatcher) checkTable() error {
	for _, name := range KnownFunctions {
		if d.handlers[name] == nil {
			return fmt.Errorf("no handler registered for function %s", name)
		}
	}
	if len(d.handlers) != len(KnownFunctions) {
		return fmt.Errorf("dispatch table has %d handlers for %d known functions", len(d.handlers), len(KnownFunctions))
	}
	return nil
}

// Handle processes one webhook payload. The only error it returns is ErrValidation for a body
// that is not a JSON object; every other failure is reported inside the Response.
func (d *WebhookDispatcher) Handle(ctx context.Context, payload []byte) (Response, error) {
	if !gjson.ValidBytes(payload) || !gjson.ParseBytes(payload).IsObject() {
		return Response{}, fmt.Errorf("%w: webhook body must be a JSON object", contractx.ErrValidation)
	}
	body := gjson.ParseBytes(payload)

	phone := vapix.NormalizePhone(callerPhone(body), d.countryCode)
	if phone == "" {
		log.Warn().Err(contractx.ErrIdentity).Msg("webhook payload has no caller number")
		return failure("Could not identify caller. Please try again."), nil
	}

	ownerID, err := d.owners.FindByPhone(ctx, phone)
	if errors.Is(err, contractx.ErrNotFound) {
		log.Warn().Err(fmt.Errorf("%w: %w", contractx.ErrIdentity, err)).Str("phone", phone).Msg("webhook caller is not registered")
		return failure(fmt.Sprintf("No user account found for phone number %s. Please sign up first.", phone)), nil
	}
	if err != nil {
		log.Error().Err(err).Str("phone", phone).Msg("webhook owner lookup failed")
		return failure("Failed to authenticate user. Please try again."), nil
	}

	messageType := body.Get("message.type").String()
	if messageType != messageTypeToolCalls {
		log.Debug().Str("type", messageType).Msg("webhook message acknowledged")
		return Response{Status: "received", Message: "Received message type: " + messageType}, nil
	}

	calls := body.Get("message.toolCalls").Array()
	if len(calls) == 0 {
		return failure("No tool calls found in request"), nil
	}

	results := make([]Result, 0, len(calls))
	for _, call := range calls {
		res := d.dispatch(ctx, ownerID, call)
		res.ToolCallID = call.Get("id").String()
		results = append(results, res)
	}
	return Response{Results: results}, nil
}

func (d *WebhookDispatcher) dispatch(ctx context.Context, ownerID string, call gjson.Result) Result {
	name := FunctionName(call.Get("function.name").String())
	handler, ok := d.handlers[name]
	if !ok {
		return Result{Error: fmt.Sprintf("Unknown function: %s", name)}
	}

	args, ok := parseArguments(call.Get("function.arguments"))
	if !ok {
		return Result{Error: "Invalid arguments for function " + string(name)}
	}

	res := handler(ctx, ownerID, args)
	log.Info().
		Str("user_id", ownerID).
		Str("tool", string(name)).
		Bool("failed", res.Error != "").
		Msg("webhook tool executed")
	return res
}

func (d *WebhookDispatcher) addTodo(ctx context.Context, ownerID string, args gjson.Result) Result {
	text := strings.TrimSpace(args.Get("todo").String())
	if text == "" {
		return Result{Error: "Missing 'todo' parameter"}
	}

	env := d.todos.Create(ctx, text, ownerID)
	if !env.Success {
		return Result{Error: "Failed to add todo: " + env.Message}
	}
	return Result{Result: fmt.Sprintf("Successfully added todo: '%s' to your list!", text)}
}

func (d *WebhookDispatcher) deleteTodo(ctx context.Context, ownerID string, args gjson.Result) Result {
	search := strings.TrimSpace(args.Get("todo").String())
	if search == "" {
		return Result{Error: "Missing 'todo' parameter"}
	}

	list := d.todos.List(ctx, ownerID)
	if !list.Success {
		return Result{Error: "Failed to retrieve todos: " + list.Message}
	}

	needle := strings.ToLower(search)
	var match *contractx.Todo
	for i := range list.Data {
		if strings.Contains(strings.ToLower(list.Data[i].Text), needle) {
			match = &list.Data[i]
			break
		}
	}
	if match == nil {
		return Result{Error: fmt.Sprintf("Could not find a todo matching '%s'", search)}
	}

	deleted := d.todos.Delete(ctx, match.ID)
	if !deleted.Success {
		return Result{Error: "Failed to delete todo: " + deleted.Message}
	}
	return Result{Result: fmt.Sprintf("Successfully deleted todo: '%s'", match.Text)}
}

func (d *WebhookDispatcher) readTodo(ctx context.Context, ownerID string, _ gjson.Result) Result {
	list := d.todos.List(ctx, ownerID)
	if !list.Success {
		return Result{Error: "Failed to retrieve todos: " + list.Message}
	}
	if len(list.Data) == 0 {
		return Result{Result: "You don't have any todos yet. Your list is empty!"}
	}
	return Result{Result: renderTodos(list.Data)}
}

func renderTodos(todos []contractx.Todo) string {
	var pending, completed []contractx.Todo
	for _, t := range todos {
		if t.Completed {
			completed = append(completed, t)
		} else {
			pending = append(pending, t)
		}
	}

	var lines []string
	if len(pending) > 0 {
		lines = append(lines, fmt.Sprintf("You have %d pending %s:", len(pending), plural(len(pending))))
		for i, t := range pending {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, t.Text))
		}
	}
	if len(completed) > 0 {
		if len(pending) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, fmt.Sprintf("You have %d completed %s:", len(completed), plural(len(completed))))
		for i, t := range completed {
			lines = append(lines, fmt.Sprintf("%d. %s ✓", i+1, t.Text))
		}
	}
	return strings.Join(lines, "\n")
}

func plural(n int) string {
	if n == 1 {
		return "todo"
	}
	return "todos"
}

func callerPhone(body gjson.Result) string {
	for _, path := range identityPaths {
		if v := strings.TrimSpace(body.Get(path).String()); v != "" {
			return v
		}
	}
	return ""
}

// parseArguments accepts arguments as a JSON object or as a string holding one.
func parseArguments(raw gjson.Result) (gjson.Result, bool) {
	switch {
	case !raw.Exists() || raw.Type == gjson.Null:
		return gjson.Parse("{}"), true
	case raw.IsObject():
		return raw, true
	case raw.Type == gjson.String:
		s := strings.TrimSpace(raw.Str)
		if s == "" {
			return gjson.Parse("{}"), true
		}
		if !gjson.Valid(s) || !gjson.Parse(s).IsObject() {
			return gjson.Result{}, false
		}
		return gjson.Parse(s), true
	default:
		return gjson.Result{}, false
	}
}

func failure(message string) Response {
	return Response{Results: []Result{{Error: message}}}
}
