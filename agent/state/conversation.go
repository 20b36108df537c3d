package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
)

const DefaultMaxTurns = 10

// Conversation is the persisted chat history of one user.
type Conversation struct {
	UserID    string           `json:"user_id"`
	Turns     []contractx.Turn `json:"turns,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func NewConversation(userID string, now time.Time) *Conversation {
	return &Conversation{
		UserID:    userID,
		UpdatedAt: now.UTC(),
	}
}

// Append adds a turn and keeps only the newest maxTurns turns.
func (c *Conversation) Append(turn contractx.Turn, maxTurns int) {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if turn.At.IsZero() {
		turn.At = time.Now().UTC()
	}
	c.Turns = append(c.Turns, turn)
	if over := len(c.Turns) - maxTurns; over > 0 {
		c.Turns = append([]contractx.Turn(nil), c.Turns[over:]...)
	}
	c.UpdatedAt = turn.At.UTC()
}

func (c *Conversation) Validate() error {
	if c == nil {
		return errors.New("conversation is nil")
	}
	if strings.TrimSpace(c.UserID) == "" {
		return ErrInvalidUser
	}
	for i, t := range c.Turns {
		if strings.TrimSpace(t.User) == "" {
			return fmt.Errorf("turn %d has empty user message", i)
		}
	}
	return nil
}
