package prompt

import (
	"strings"
	"testing"
)

func TestLoadPromptSet(t *testing.T) {
	t.Parallel()

	set := LoadPromptSet()
	if set.Coach == "" || set.Planner == "" {
		t.Fatalf("prompt set has empty entries: %#v", set)
	}
	for _, variable := range []string{"{today}", "{context}"} {
		if !strings.Contains(set.Coach, variable) {
			t.Fatalf("coach prompt missing %s", variable)
		}
	}
}
