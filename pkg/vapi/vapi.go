package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseSizeBytes = 4 << 20

var ErrCallNotFound = errors.New("vapi call not found")

type Config struct {
	URL                string        `split_words:"true" default:"https://api.vapi.ai"`
	Token              string        `split_words:"true" required:"true"`
	PhoneNumberID      string        `envconfig:"PHONE_NUMBER_ID" required:"true"`
	AssistantID        string        `split_words:"true" required:"true"`
	DefaultCountryCode string        `split_words:"true" default:"+91"`
	Timeout            time.Duration `split_words:"true" default:"10s"`
}

type Client struct {
	baseURL            string
	token              string
	phoneNumberID      string
	assistantID        string
	defaultCountryCode string
	httpClient         *http.Client
}

// APIError is a non-2xx response from the Vapi API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vapi http status=%d body=%s", e.Status, e.Body)
}

func (e *APIError) StatusCode() int {
	return e.Status
}

type Customer struct {
	Number string `json:"number"`
}

type createCallRequest struct {
	PhoneNumberID string   `json:"phoneNumberId"`
	AssistantID   string   `json:"assistantId"`
	Customer      Customer `json:"customer"`
}

type Message struct {
	Role    string `json:"role"`
	Message string `json:"message,omitempty"`
	Content string `json:"content,omitempty"`
}

type Artifact struct {
	Transcript string `json:"transcript,omitempty"`
}

type Call struct {
	ID         string    `json:"id"`
	Status     string    `json:"status,omitempty"`
	Customer   *Customer `json:"customer,omitempty"`
	Transcript string    `json:"transcript,omitempty"`
	Artifact   *Artifact `json:"artifact,omitempty"`
	Messages   []Message `json:"messages,omitempty"`
}

// TranscriptText returns the best available transcript: the top-level transcript, then the
// artifact transcript, then the message log rendered as "role: content" lines.
func (c Call) TranscriptText() string {
	if t := strings.TrimSpace(c.Transcript); t != "" {
		return t
	}
	if c.Artifact != nil {
		if t := strings.TrimSpace(c.Artifact.Transcript); t != "" {
			return t
		}
	}
	if len(c.Messages) == 0 {
		return ""
	}

	lines := make([]string, 0, len(c.Messages))
	for _, m := range c.Messages {
		role := strings.TrimSpace(m.Role)
		if role == "" {
			role = "unknown"
		}
		content := m.Message
		if content == "" {
			content = m.Content
		}
		if content == "" {
			content = "No content"
		}
		lines = append(lines, role+": "+content)
	}
	return strings.Join(lines, "\n")
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("vapi url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("vapi token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:            strings.TrimRight(baseURL, "/"),
		token:              token,
		phoneNumberID:      strings.TrimSpace(cfg.PhoneNumberID),
		assistantID:        strings.TrimSpace(cfg.AssistantID),
		defaultCountryCode: strings.TrimSpace(cfg.DefaultCountryCode),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// NormalizePhone strips formatting and prefixes the default country code when the number has
// no leading "+".
func (c *Client) NormalizePhone(phone string) string {
	return NormalizePhone(phone, c.defaultCountryCode)
}

func NormalizePhone(phone string, countryCode string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	if normalized == "" || strings.HasPrefix(normalized, "+") {
		return normalized
	}
	if countryCode == "" {
		return normalized
	}
	if !strings.HasPrefix(countryCode, "+") {
		countryCode = "+" + countryCode
	}
	return countryCode + normalized
}

// CreateCall starts an outbound call from the configured phone number and assistant.
func (c *Client) CreateCall(ctx context.Context, phoneNumber string) (Call, error) {
	number := c.NormalizePhone(phoneNumber)
	if number == "" {
		return Call{}, errors.New("phone number is required")
	}

	var call Call
	err := c.do(ctx, http.MethodPost, "/call", createCallRequest{
		PhoneNumberID: c.phoneNumberID,
		AssistantID:   c.assistantID,
		Customer:      Customer{Number: number},
	}, &call)
	if err != nil {
		return Call{}, err
	}
	if strings.TrimSpace(call.ID) == "" {
		return Call{}, errors.New("vapi response has no call id")
	}
	return call, nil
}

func (c *Client) GetCall(ctx context.Context, callID string) (Call, error) {
	id := strings.TrimSpace(callID)
	if id == "" {
		return Call{}, errors.New("call id is required")
	}

	var call Call
	if err := c.do(ctx, http.MethodGet, "/call/"+url.PathEscape(id), nil, &call); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return Call{}, fmt.Errorf("%w: %s", ErrCallNotFound, id)
		}
		return Call{}, err
	}
	return call, nil
}

func (c *Client) do(ctx context.Context, method string, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal vapi request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build vapi request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute vapi request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("read vapi response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{Status: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode vapi response: %w", err)
	}
	return nil
}
