package llm

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
)

func TestOpenRouterForOverrides(t *testing.T) {
	t.Parallel()

	cfg := Config{
		APIKey:             " key ",
		Model:              "default-model",
		Temperature:        0.5,
		MaxCompletionToken: 100,
		CoachModel:         "coach-model",
		CoachTemperature:   -1,
		PlannerTemperature: 0.1,
	}

	coach := cfg.OpenRouterFor(contractx.AgentTypeCoach)
	if coach.Model != "coach-model" || coach.Temperature != 0.5 {
		t.Fatalf("coach config = %#v", coach)
	}
	if coach.APIKey != "key" {
		t.Fatalf("api key not trimmed: %q", coach.APIKey)
	}

	planner := cfg.OpenRouterFor(contractx.AgentTypePlanner)
	if planner.Model != "default-model" || planner.Temperature != 0.1 {
		t.Fatalf("planner config = %#v", planner)
	}
	if planner.MaxCompletionToken == nil || *planner.MaxCompletionToken != 100 {
		t.Fatalf("max tokens = %v", planner.MaxCompletionToken)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := (Config{Model: "m"}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Validate() without key error = %v", err)
	}
	if err := (Config{APIKey: "k", Model: "m"}).Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
