package coach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
)

// ChatCompleter is the slice of the OpenAI chat completions service the planner uses.
type ChatCompleter interface {
	New(ctx context.Context, body openaisdk.ChatCompletionNewParams, opts ...option.RequestOption) (*openaisdk.ChatCompletion, error)
}

type Profile struct {
	Age           *int     `json:"age,omitempty"`
	Schedule      string   `json:"schedule,omitempty"`
	Goals         []string `json:"goals,omitempty"`
	Challenges    []string `json:"challenges,omitempty"`
	CurrentHabits []string `json:"currenthabits,omitempty"`
	Description   string   `json:"description,omitempty"`
}

type Goal struct {
	PrimaryGoal  string `json:"primary_goal"`
	Duration     int    `json:"goal_duration"`
	DurationType string `json:"duration_type"`
}

type PlanRequest struct {
	UserID  string  `json:"user_id"`
	Profile Profile `json:"profile"`
	Goal    Goal    `json:"goal"`
}

func (r PlanRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" || strings.TrimSpace(r.Goal.PrimaryGoal) == "" {
		return fmt.Errorf("%w: Missing required fields", contractx.ErrValidation)
	}
	if r.Goal.Duration < 0 {
		return fmt.Errorf("%w: goal_duration must be >= 0", contractx.ErrValidation)
	}
	switch strings.ToLower(strings.TrimSpace(r.Goal.DurationType)) {
	case "", "days", "weeks", "months":
	default:
		return fmt.Errorf("%w: duration_type must be days, weeks or months", contractx.ErrValidation)
	}
	return nil
}

type Milestone struct {
	Week   int      `json:"week"`
	Focus  string   `json:"focus"`
	Habits []string `json:"habits"`
}

type DailyHabit struct {
	Habit     string `json:"habit"`
	TimeOfDay string `json:"time_of_day"`
	Why       string `json:"why"`
}

type Plan struct {
	Title       string       `json:"title"`
	Summary     string       `json:"summary"`
	Duration    string       `json:"duration"`
	Milestones  []Milestone  `json:"milestones"`
	DailyHabits []DailyHabit `json:"daily_habits"`
	Tips        []string     `json:"tips"`
}

// Planner turns a user profile and goal into a structured habit plan.
type Planner struct {
	completions  ChatCompleter
	model        string
	temperature  float64
	maxTokens    int64
	systemPrompt string
}

func NewPlanner(completions ChatCompleter, model string, temperature float32, maxTokens int, systemPrompt string) (*Planner, error) {
	if completions == nil {
		return nil, errors.New("chat completions client is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("%w: planner model is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: planner prompt is empty", contractx.ErrPromptMissing)
	}
	return &Planner{
		completions:  completions,
		model:        strings.TrimSpace(model),
		temperature:  float64(temperature),
		maxTokens:    int64(maxTokens),
		systemPrompt: systemPrompt,
	}, nil
}

func (p *Planner) Generate(ctx context.Context, req PlanRequest) (Plan, error) {
	if err := req.Validate(); err != nil {
		return Plan{}, err
	}

	input, err := json.Marshal(map[string]any{
		"user_id": req.UserID,
		"profile": req.Profile,
		"goal":    req.Goal,
	})
	if err != nil {
		return Plan{}, fmt.Errorf("%w: marshal plan request: %v", contractx.ErrValidation, err)
	}

	params := openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(p.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(p.systemPrompt),
			openaisdk.UserMessage("Generate a goal plan for this user:\n" + string(input)),
		},
		Temperature: openaisdk.Float(p.temperature),
	}
	if p.maxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(p.maxTokens)
	}

	resp, err := p.completions.New(ctx, params)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: plan completion: %w", contractx.ErrModelInvoke, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Plan{}, fmt.Errorf("%w: plan completion has no choices", contractx.ErrSchemaViolation)
	}

	return parsePlan(resp.Choices[0].Message.Content)
}

func parsePlan(content string) (Plan, error) {
	raw := extractJSONObject(content)
	if raw == "" {
		return Plan{}, fmt.Errorf("%w: plan response has no JSON object", contractx.ErrSchemaViolation)
	}

	var plan Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return Plan{}, fmt.Errorf("%w: decode plan: %v", contractx.ErrSchemaViolation, err)
	}
	if strings.TrimSpace(plan.Title) == "" {
		return Plan{}, fmt.Errorf("%w: plan title is required", contractx.ErrSchemaViolation)
	}
	if len(plan.Milestones) == 0 && len(plan.DailyHabits) == 0 {
		return Plan{}, fmt.Errorf("%w: plan has no milestones or habits", contractx.ErrSchemaViolation)
	}
	return plan, nil
}

// extractJSONObject strips markdown fences and surrounding prose from a model reply.
func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}
