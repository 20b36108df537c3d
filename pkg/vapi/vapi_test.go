package vapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		URL:                server.URL,
		Token:              "secret",
		PhoneNumberID:      "pn-1",
		AssistantID:        "as-1",
		DefaultCountryCode: "+91",
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestCreateCallSendsNormalizedCustomer(t *testing.T) {
	t.Parallel()

	var got createCallRequest
	var auth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/call" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		fmt.Fprint(w, `{"id":"call-123","status":"queued"}`)
	})

	call, err := client.CreateCall(context.Background(), "89575 17207")
	if err != nil {
		t.Fatalf("CreateCall() error = %v", err)
	}
	if call.ID != "call-123" {
		t.Fatalf("call.ID = %q, want call-123", call.ID)
	}
	if auth != "Bearer secret" {
		t.Fatalf("Authorization = %q", auth)
	}
	if got.Customer.Number != "+918957517207" {
		t.Fatalf("customer number = %q, want +918957517207", got.Customer.Number)
	}
	if got.PhoneNumberID != "pn-1" || got.AssistantID != "as-1" {
		t.Fatalf("unexpected ids: %#v", got)
	}
}

func TestCreateCallErrorStatus(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"message":"slow down"}`)
	})

	_, err := client.CreateCall(context.Background(), "+15550001111")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode() != http.StatusTooManyRequests {
		t.Fatalf("status = %d", apiErr.StatusCode())
	}
}

func TestGetCallNotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetCall(context.Background(), "missing")
	if !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("GetCall() error = %v, want ErrCallNotFound", err)
	}
}

func TestCallTranscriptText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		call Call
		want string
	}{
		{name: "top level", call: Call{Transcript: "hi there"}, want: "hi there"},
		{name: "artifact", call: Call{Artifact: &Artifact{Transcript: "from artifact"}}, want: "from artifact"},
		{
			name: "messages",
			call: Call{Messages: []Message{{Role: "bot", Message: "hello"}, {Role: "user", Content: "add milk"}, {}}},
			want: "bot: hello\nuser: add milk\nunknown: No content",
		},
		{name: "empty", call: Call{}, want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.call.TranscriptText(); got != tc.want {
				t.Fatalf("TranscriptText() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"+1 (555) 000-1111": "+15550001111",
		"8957517207":        "+918957517207",
		"  ":                "",
	}
	for in, want := range cases {
		if got := NormalizePhone(in, "91"); got != want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}
