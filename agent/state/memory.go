package state

import (
	"context"
	"strings"
	"sync"
	"time"

	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
)

// MemoryStore is the in-process Store used when no Upstash endpoint is configured. Its
// contents are lost on restart.
type MemoryStore struct {
	mu            sync.Mutex
	maxTurns      int
	conversations map[string]*Conversation
	calls         map[string]string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(maxTurns int) *MemoryStore {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &MemoryStore{
		maxTurns:      maxTurns,
		conversations: make(map[string]*Conversation),
		calls:         make(map[string]string),
	}
}

func (m *MemoryStore) LoadHistory(_ context.Context, userID string) ([]contractx.Turn, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[userID]
	if !ok {
		return nil, nil
	}
	return append([]contractx.Turn(nil), conv.Turns...), nil
}

func (m *MemoryStore) AppendTurn(_ context.Context, userID string, turn contractx.Turn) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[userID]
	if !ok {
		conv = NewConversation(userID, time.Now())
		m.conversations[userID] = conv
	}
	conv.Append(turn, m.maxTurns)
	return nil
}

func (m *MemoryStore) SaveLastCall(_ context.Context, userID string, callID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[userID] = callID
	return nil
}

func (m *MemoryStore) LastCall(_ context.Context, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrInvalidUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	callID, ok := m.calls[userID]
	if !ok {
		return "", ErrStateNotFound
	}
	return callID, nil
}
