package responder

import contractx "github.com/tanpawarit/habit-elevate/agent/contract"

type EventType string

const (
	EventStatus  EventType = "status"
	EventContent EventType = "content"
	EventError   EventType = "error"
	EventDone    EventType = "done"
)

// StreamEvent is one server-sent event of a chat exchange. Only the fields of its Type are set.
type StreamEvent struct {
	Type    EventType            `json:"type"`
	Status  contractx.StatusKind `json:"status,omitempty"`
	Message string               `json:"message,omitempty"`
	Content string               `json:"content,omitempty"`
	Error   string               `json:"error,omitempty"`
}

func (e StreamEvent) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

func statusEvent(kind contractx.StatusKind, message string) StreamEvent {
	return StreamEvent{Type: EventStatus, Status: kind, Message: message}
}

func contentEvent(text string) StreamEvent {
	return StreamEvent{Type: EventContent, Content: text}
}

func errorEvent(message string) StreamEvent {
	return StreamEvent{Type: EventError, Error: message}
}

func doneEvent() StreamEvent {
	return StreamEvent{Type: EventDone, Message: "Stream completed"}
}
