package voice

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
	vapix "github.com/tanpawarit/habit-elevate/pkg/vapi"
)

type fakeCallClient struct {
	created   []string
	createErr error
	calls     map[string]vapix.Call
}

func (f *fakeCallClient) CreateCall(_ context.Context, phone string) (vapix.Call, error) {
	if f.createErr != nil {
		return vapix.Call{}, f.createErr
	}
	f.created = append(f.created, phone)
	return vapix.Call{ID: "call-42", Status: "queued"}, nil
}

func (f *fakeCallClient) GetCall(_ context.Context, id string) (vapix.Call, error) {
	c, ok := f.calls[id]
	if !ok {
		return vapix.Call{}, vapix.ErrCallNotFound
	}
	return c, nil
}

type memoryCallLog struct {
	saved map[string]string
	err   error
}

func (m *memoryCallLog) SaveLastCall(_ context.Context, userID string, callID string) error {
	if m.err != nil {
		return m.err
	}
	if m.saved == nil {
		m.saved = map[string]string{}
	}
	m.saved[userID] = callID
	return nil
}

func (m *memoryCallLog) LastCall(_ context.Context, userID string) (string, error) {
	id, ok := m.saved[userID]
	if !ok {
		return "", contractx.ErrNotFound
	}
	return id, nil
}

func TestDispatchRecordsLastCall(t *testing.T) {
	t.Parallel()

	client := &fakeCallClient{}
	callLog := &memoryCallLog{}
	d, err := NewCallDispatcher(client, callLog)
	if err != nil {
		t.Fatalf("NewCallDispatcher() error = %v", err)
	}

	id, err := d.Dispatch(context.Background(), "9876543210", "u1")
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if id != "call-42" {
		t.Fatalf("unexpected call id: %s", id)
	}
	if callLog.saved["u1"] != "call-42" {
		t.Fatalf("expected last call to be recorded, got %#v", callLog.saved)
	}
	if len(client.created) != 1 || client.created[0] != "9876543210" {
		t.Fatalf("unexpected created calls: %#v", client.created)
	}
}

func TestDispatchIgnoresCallLogFailure(t *testing.T) {
	t.Parallel()

	d, err := NewCallDispatcher(&fakeCallClient{}, &memoryCallLog{err: errors.New("redis down")})
	if err != nil {
		t.Fatalf("NewCallDispatcher() error = %v", err)
	}
	if _, err := d.Dispatch(context.Background(), "+15550001111", "u1"); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
}

func TestDispatchErrors(t *testing.T) {
	t.Parallel()

	d, err := NewCallDispatcher(&fakeCallClient{createErr: errors.New("boom")}, nil)
	if err != nil {
		t.Fatalf("NewCallDispatcher() error = %v", err)
	}
	if _, err := d.Dispatch(context.Background(), " ", "u1"); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := d.Dispatch(context.Background(), "+15550001111", "u1"); !errors.Is(err, contractx.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestGetCallTranscript(t *testing.T) {
	t.Parallel()

	client := &fakeCallClient{calls: map[string]vapix.Call{
		"c1": {ID: "c1", Status: "ended", Artifact: &vapix.Artifact{Transcript: "AI: hello"}},
	}}
	d, err := NewCallDispatcher(client, nil)
	if err != nil {
		t.Fatalf("NewCallDispatcher() error = %v", err)
	}

	call, err := d.GetCall(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GetCall() error = %v", err)
	}
	if call.Transcript != "AI: hello" || call.Status != "ended" {
		t.Fatalf("unexpected call: %#v", call)
	}

	if _, err := d.GetCall(context.Background(), "missing"); !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
