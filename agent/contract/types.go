package contract

import (
	"time"

	"github.com/uptrace/bun"
)

const MaxTodoTextLength = 500

// Todo is a single owned todo record. Every todo has exactly one owner and non-empty text.
type Todo struct {
	bun.BaseModel `bun:"table:todos,alias:t" json:"-"`

	ID        string    `bun:"id,pk" json:"id"`
	UserID    string    `bun:"user_id,notnull" json:"user_id"`
	Text      string    `bun:"text,notnull" json:"text"`
	Completed bool      `bun:"completed,notnull" json:"completed"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// Owner maps a caller phone number to the owner id used on todos.
type Owner struct {
	bun.BaseModel `bun:"table:users_profile,alias:u" json:"-"`

	ID        string    `bun:"id,pk" json:"id"`
	Phone     string    `bun:"phone,notnull,unique" json:"phone"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// TodoPatch holds optional fields for an update; nil means "leave unchanged".
type TodoPatch struct {
	Text      *string `json:"text,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

func (p TodoPatch) IsEmpty() bool {
	return p.Text == nil && p.Completed == nil
}

// Envelope is the uniform result of every store operation. Err carries the classified
// failure (ErrValidation, ErrNotFound, ErrUpstream) and is never serialized.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func OK[T any](data T, message string) Envelope[T] {
	return Envelope[T]{Success: true, Data: data, Message: message}
}

func Fail[T any](err error, message string) Envelope[T] {
	return Envelope[T]{Message: message, Err: err}
}

type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Turn is one user/assistant exchange kept in conversation history.
type Turn struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	At        time.Time `json:"at"`
}

// AgentOptions customizes a user-scoped agent.
type AgentOptions struct {
	HabitFocus string
}

// Call is the subset of a voice provider call the backend reads.
type Call struct {
	ID         string `json:"id"`
	Status     string `json:"status,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

type AgentType string

const (
	AgentTypeCoach   AgentType = "coach"
	AgentTypePlanner AgentType = "planner"
)
