package openrouter

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	openaisdk "github.com/openai/openai-go"
)

type codedError struct {
	code int
}

func (e codedError) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e codedError) StatusCode() int { return e.code }

// opaqueWrap wraps without formatting the inner error.
type opaqueWrap struct {
	inner error
}

func (e opaqueWrap) Error() string { return "upstream call failed" }
func (e opaqueWrap) Unwrap() error { return e.inner }

func TestIsRateLimited(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "openai 429", err: opaqueWrap{inner: &openaisdk.Error{StatusCode: http.StatusTooManyRequests}}, want: true},
		{name: "openai 500", err: &openaisdk.Error{StatusCode: http.StatusInternalServerError}, want: false},
		{name: "status coder 429", err: fmt.Errorf("call: %w", codedError{code: 429}), want: true},
		{name: "status coder 503", err: codedError{code: 503}, want: false},
		{name: "quota text", err: errors.New("RESOURCE_EXHAUSTED: quota exceeded"), want: true},
		{name: "rate limit text", err: errors.New("Rate limit reached for model"), want: true},
		{name: "plain", err: errors.New("connection refused"), want: false},
		{name: "status code text 429", err: errors.New("error, status code: 429, message: slow down"), want: true},
		{name: "429 inside request id", err: errors.New("status code: 400, message: bad id req_8f4291c2"), want: false},
		{name: "429 inside model name", err: errors.New("status code: 404, message: model gpt-4-0429 not found"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsRateLimited(tc.err); got != tc.want {
				t.Fatalf("IsRateLimited() = %v, want %v", got, tc.want)
			}
		})
	}
}
