package contract

import "context"

// TodoStore owns todo persistence. No method returns an error; failures are reported in the
// envelope.
type TodoStore interface {
	Create(ctx context.Context, text string, userID string) Envelope[*Todo]
	List(ctx context.Context, userID string) Envelope[[]Todo]
	Get(ctx context.Context, id string) Envelope[*Todo]
	Update(ctx context.Context, id string, patch TodoPatch) Envelope[*Todo]
	Toggle(ctx context.Context, id string) Envelope[*Todo]
	Delete(ctx context.Context, id string) Envelope[int64]
	ClearCompleted(ctx context.Context, userID string) Envelope[int64]
}

// OwnerDirectory resolves caller phone numbers to owner ids.
type OwnerDirectory interface {
	FindByPhone(ctx context.Context, phone string) (string, error)
	Register(ctx context.Context, userID string, phone string) error
}

// Agent answers a single prompt with a single text result.
type Agent interface {
	Run(ctx context.Context, message string) (string, error)
}

// AgentFactory builds an agent scoped to one user. Construction may fail.
type AgentFactory interface {
	ForUser(ctx context.Context, userID string, opts AgentOptions) (Agent, error)
}

// CallDispatcher initiates outbound calls and records the resulting call id.
type CallDispatcher interface {
	Dispatch(ctx context.Context, phoneNumber string, userID string) (string, error)
}

// CallReader fetches call details from the voice provider.
type CallReader interface {
	GetCall(ctx context.Context, callID string) (Call, error)
}

type ConversationStore interface {
	LoadHistory(ctx context.Context, userID string) ([]Turn, error)
	AppendTurn(ctx context.Context, userID string, turn Turn) error
}

type CallLog interface {
	SaveLastCall(ctx context.Context, userID string, callID string) error
	LastCall(ctx context.Context, userID string) (string, error)
}
