package coach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
	toolx "github.com/tanpawarit/habit-elevate/agent/tool"
	openrouterx "github.com/tanpawarit/habit-elevate/pkg/openrouter"
)

const defaultMaxToolRounds = 5

type Option func(*Factory)

func WithHistory(store contractx.ConversationStore) Option {
	return func(f *Factory) {
		f.history = store
	}
}

func WithMaxToolRounds(n int) Option {
	return func(f *Factory) {
		if n >= 0 {
			f.maxToolRounds = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(f *Factory) {
		if now != nil {
			f.now = now
		}
	}
}

// Factory builds per-user coaching agents over a shared chat model.
type Factory struct {
	chatModel     einomodel.ToolCallingChatModel
	systemPrompt  string
	tools         toolx.Deps
	history       contractx.ConversationStore
	maxToolRounds int
	now           func() time.Time
}

var _ contractx.AgentFactory = (*Factory)(nil)

func NewFactory(
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	tools toolx.Deps,
	opts ...Option,
) (*Factory, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: coach prompt is empty", contractx.ErrPromptMissing)
	}

	f := &Factory{
		chatModel:     chatModel,
		systemPrompt:  systemPrompt,
		tools:         tools,
		maxToolRounds: defaultMaxToolRounds,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Factory) ForUser(ctx context.Context, userID string, opts contractx.AgentOptions) (contractx.Agent, error) {
	userID = strings.TrimSpace(userID)
	infos, executor := toolx.BuildForUser(f.tools, userID)

	var chatModel einomodel.BaseChatModel = f.chatModel
	if len(infos) > 0 {
		bound, err := f.chatModel.WithTools(infos)
		if err != nil {
			return nil, fmt.Errorf("%w: bind tools for user=%s: %w", contractx.ErrModelInvoke, userID, err)
		}
		chatModel = bound
	}

	runner, err := compileCoachGraph(ctx, chatModel, f.systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contractx.ErrModelInvoke, err)
	}

	var turns []contractx.Turn
	if userID != "" && f.history != nil {
		turns, err = f.history.LoadHistory(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("%w: load history for user=%s: %w", contractx.ErrUpstream, userID, err)
		}
	}

	allowed := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		allowed[info.Name] = struct{}{}
	}

	return &coachAgent{
		userID:        userID,
		habitFocus:    strings.TrimSpace(opts.HabitFocus),
		runner:        runner,
		executor:      executor,
		allowedTools:  allowed,
		turns:         turns,
		history:       f.history,
		maxToolRounds: f.maxToolRounds,
		now:           f.now,
	}, nil
}

type coachAgent struct {
	userID       string
	habitFocus   string
	runner       compose.Runnable[map[string]any, *schema.Message]
	executor     toolx.Executor
	allowedTools map[string]struct{}
	turns        []contractx.Turn
	history      contractx.ConversationStore

	maxToolRounds int
	now           func() time.Time
}

func (a *coachAgent) Run(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("%w: message is required", contractx.ErrValidation)
	}

	messages := historyMessages(a.turns)
	messages = append(messages, schema.UserMessage(message))

	for round := 0; ; round++ {
		msg, err := a.runner.Invoke(ctx, map[string]any{
			"today":    a.now().Format("Monday, 2 January 2006"),
			"context":  a.promptContext(),
			"messages": messages,
		})
		if err != nil {
			if openrouterx.IsRateLimited(err) {
				return "", fmt.Errorf("%w: %w: coach invoke: %w", contractx.ErrModelInvoke, contractx.ErrRateLimited, err)
			}
			return "", fmt.Errorf("%w: coach invoke: %w", contractx.ErrModelInvoke, err)
		}
		if msg == nil {
			return "", fmt.Errorf("%w: empty model response", contractx.ErrSchemaViolation)
		}

		if len(msg.ToolCalls) == 0 {
			reply := strings.TrimSpace(msg.Content)
			if reply == "" {
				return "", fmt.Errorf("%w: coach reply is empty", contractx.ErrSchemaViolation)
			}
			a.remember(ctx, message, reply)
			return reply, nil
		}

		if round >= a.maxToolRounds {
			return "", fmt.Errorf("%w: tool rounds exhausted after %d", contractx.ErrSchemaViolation, round)
		}

		contractx.ReportStatus(ctx, contractx.StatusExecutingTools, "Working on your todos...")
		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			content, err := a.runTool(ctx, call)
			if err != nil {
				return "", err
			}
			messages = append(messages, schema.ToolMessage(content, call.ID))
		}
	}
}

func (a *coachAgent) runTool(ctx context.Context, call schema.ToolCall) (string, error) {
	name := strings.TrimSpace(call.Function.Name)

	var result contractx.ToolResult
	if _, ok := a.allowedTools[name]; !ok {
		result = contractx.ToolResult{Tool: name, Error: fmt.Sprintf("tool=%s is not available", name)}
	} else {
		args := map[string]any{}
		raw := strings.TrimSpace(call.Function.Arguments)
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				result = contractx.ToolResult{Tool: name, Error: "invalid tool arguments: " + err.Error()}
			}
		}
		if result.Error == "" {
			out, err := a.executor(ctx, name, args)
			if err != nil {
				return "", fmt.Errorf("execute tool=%s: %w", name, err)
			}
			result = out
		}
	}

	log.Debug().
		Str("user_id", a.userID).
		Str("tool", name).
		Bool("failed", result.Error != "").
		Msg("coach tool executed")

	content, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("%w: marshal tool result: %v", contractx.ErrSchemaViolation, err)
	}
	return string(content), nil
}

func (a *coachAgent) promptContext() string {
	var b strings.Builder
	if a.userID == "" {
		b.WriteString("\nThe user is not signed in. You cannot read or change todos; ask them to sign in for that.\n")
	}
	if a.habitFocus != "" {
		b.WriteString("\nCoaching focus for this conversation: ")
		b.WriteString(a.habitFocus)
		b.WriteString(". Relate your suggestions to it.\n")
	}
	return b.String()
}

// remember persists the exchange; a failure here does not fail the reply.
func (a *coachAgent) remember(ctx context.Context, message string, reply string) {
	if a.userID == "" || a.history == nil {
		return
	}
	turn := contractx.Turn{User: message, Assistant: reply, At: a.now().UTC()}
	if err := a.history.AppendTurn(ctx, a.userID, turn); err != nil {
		log.Warn().Err(err).Str("user_id", a.userID).Msg("save conversation turn failed")
		return
	}
	a.turns = append(a.turns, turn)
}

func historyMessages(turns []contractx.Turn) []*schema.Message {
	out := make([]*schema.Message, 0, len(turns)*2+1)
	for _, t := range turns {
		if strings.TrimSpace(t.User) == "" || strings.TrimSpace(t.Assistant) == "" {
			continue
		}
		out = append(out, schema.UserMessage(t.User), schema.AssistantMessage(t.Assistant, nil))
	}
	return out
}
