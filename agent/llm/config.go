package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
	openrouterx "github.com/tanpawarit/habit-elevate/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	CoachModel         string  `envconfig:"COACH_MODEL" split_words:"true"`
	PlannerModel       string  `envconfig:"PLANNER_MODEL" split_words:"true"`
	CoachTemperature   float32 `envconfig:"COACH_TEMPERATURE" split_words:"true" default:"-1"`
	PlannerTemperature float32 `envconfig:"PLANNER_TEMPERATURE" split_words:"true" default:"-1"`

	MaxToolRounds int `envconfig:"MAX_TOOL_ROUNDS" split_words:"true" default:"5"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	if c.MaxToolRounds < 0 {
		return fmt.Errorf("%w: max tool rounds must be >= 0", contractx.ErrValidation)
	}
	return nil
}

func (c Config) OpenRouterFor(agentType contractx.AgentType) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch agentType {
	case contractx.AgentTypeCoach:
		if v := strings.TrimSpace(c.CoachModel); v != "" {
			modelName = v
		}
		if c.CoachTemperature >= 0 {
			temp = c.CoachTemperature
		}
	case contractx.AgentTypePlanner:
		if v := strings.TrimSpace(c.PlannerModel); v != "" {
			modelName = v
		}
		if c.PlannerTemperature >= 0 {
			temp = c.PlannerTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
