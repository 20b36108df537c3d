package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/coach.txt
	coachRaw string

	//go:embed template/planner.txt
	plannerRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Coach   string
	Planner string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Coach:   strings.TrimSpace(coachRaw),
		Planner: strings.TrimSpace(plannerRaw),
	}
}
