package coach

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
)

type fakeCompleter struct {
	content string
	err     error
	calls   int
}

func (f *fakeCompleter) New(ctx context.Context, body openaisdk.ChatCompletionNewParams, opts ...option.RequestOption) (*openaisdk.ChatCompletion, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var resp openaisdk.ChatCompletion
	raw, _ := json.Marshal(map[string]any{
		"id":      "cmpl-1",
		"object":  "chat.completion",
		"created": 0,
		"model":   "test",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": f.content},
		}},
	})
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func validPlanRequest() PlanRequest {
	return PlanRequest{
		UserID:  "u1",
		Profile: Profile{Schedule: "9-5 office", Challenges: []string{"late nights"}},
		Goal:    Goal{PrimaryGoal: "run a 5k", Duration: 8, DurationType: "weeks"},
	}
}

func TestPlannerGenerateParsesFencedJSON(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{content: "```json\n" +
		`{"title":"5k in 8 weeks","summary":"Build up slowly.","duration":"8 weeks",` +
		`"milestones":[{"week":1,"focus":"walk-run","habits":["20 min walk"]}],` +
		`"daily_habits":[{"habit":"stretch","time_of_day":"morning","why":"mobility"}],"tips":["sleep"]}` +
		"\n```"}
	planner, err := NewPlanner(fake, "test-model", 0.7, 1000, "plan prompt")
	if err != nil {
		t.Fatalf("NewPlanner() error = %v", err)
	}

	plan, err := planner.Generate(context.Background(), validPlanRequest())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if plan.Title != "5k in 8 weeks" {
		t.Fatalf("unexpected title: %s", plan.Title)
	}
	if len(plan.Milestones) != 1 || plan.Milestones[0].Habits[0] != "20 min walk" {
		t.Fatalf("unexpected milestones: %#v", plan.Milestones)
	}
}

func TestPlannerGenerateValidation(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{}
	planner, err := NewPlanner(fake, "test-model", 0.7, 1000, "plan prompt")
	if err != nil {
		t.Fatalf("NewPlanner() error = %v", err)
	}

	req := validPlanRequest()
	req.Goal.PrimaryGoal = " "
	_, err = planner.Generate(context.Background(), req)
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if fake.calls != 0 {
		t.Fatalf("model must not be called on invalid input, got %d calls", fake.calls)
	}
}

func TestPlannerGenerateSchemaFailure(t *testing.T) {
	t.Parallel()

	planner, err := NewPlanner(&fakeCompleter{content: "I cannot help with that."}, "test-model", 0.7, 1000, "plan prompt")
	if err != nil {
		t.Fatalf("NewPlanner() error = %v", err)
	}
	_, err = planner.Generate(context.Background(), validPlanRequest())
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestPlannerGenerateUpstreamFailure(t *testing.T) {
	t.Parallel()

	planner, err := NewPlanner(&fakeCompleter{err: errors.New("boom")}, "test-model", 0.7, 1000, "plan prompt")
	if err != nil {
		t.Fatalf("NewPlanner() error = %v", err)
	}
	_, err = planner.Generate(context.Background(), validPlanRequest())
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}
}
