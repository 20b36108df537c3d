package state

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

	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
)

var (
	ErrStateNotFound = fmt.Errorf("%w: state not found", contractx.ErrNotFound)
	ErrInvalidUser   = errors.New("user id is empty")
)

const (
	defaultStoreKeyPrefix = "habit:"
	defaultStoreTTL       = 7 * 24 * time.Hour
	maxResponseSizeBytes  = 2 << 20
)

// Store keeps conversation history and the last call id per user.
type Store interface {
	contractx.ConversationStore
	contractx.CallLog
}

// StoreOption customizes UpstashRedisStore.
type StoreOption func(*UpstashRedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *UpstashRedisStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *UpstashRedisStore) {
		s.ttl = ttl
	}
}

func WithMaxTurns(n int) StoreOption {
	return func(s *UpstashRedisStore) {
		if n > 0 {
			s.maxTurns = n
		}
	}
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *UpstashRedisStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// UpstashRedisStore persists state in Upstash Redis via REST.
type UpstashRedisStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
	maxTurns   int
	now        func() time.Time
}

var _ Store = (*UpstashRedisStore)(nil)

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashRedisConfig struct {
	URL      string        `envconfig:"URL" split_words:"true"`
	Token    string        `envconfig:"TOKEN" split_words:"true"`
	Timeout  time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	TTL      time.Duration `envconfig:"TTL" split_words:"true" default:"168h"`
	MaxTurns int           `envconfig:"MAX_TURNS" split_words:"true" default:"10"`
}

// Enabled reports whether a REST endpoint is configured; callers fall back to MemoryStore
// otherwise.
func (c UpstashRedisConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.Token) != ""
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultStoreTTL
	}

	store := &UpstashRedisStore{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		keyPrefix: defaultStoreKeyPrefix,
		ttl:       ttl,
		maxTurns:  cfg.MaxTurns,
		now:       time.Now,
	}
	if store.maxTurns <= 0 {
		store.maxTurns = DefaultMaxTurns
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	if store.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}

	return store, nil
}

func (s *UpstashRedisStore) LoadHistory(ctx context.Context, userID string) ([]contractx.Turn, error) {
	conv, err := s.loadConversation(ctx, userID)
	if errors.Is(err, ErrStateNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conv.Turns, nil
}

func (s *UpstashRedisStore) AppendTurn(ctx context.Context, userID string, turn contractx.Turn) error {
	conv, err := s.loadConversation(ctx, userID)
	if errors.Is(err, ErrStateNotFound) {
		conv = NewConversation(userID, s.now())
	} else if err != nil {
		return err
	}

	conv.Append(turn, s.maxTurns)

	payload, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	key, err := s.conversationKey(userID)
	if err != nil {
		return err
	}
	return s.set(ctx, key, string(payload))
}

func (s *UpstashRedisStore) SaveLastCall(ctx context.Context, userID string, callID string) error {
	key, err := s.callKey(userID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(callID) == "" {
		return errors.New("call id is empty")
	}
	return s.set(ctx, key, callID)
}

func (s *UpstashRedisStore) LastCall(ctx context.Context, userID string) (string, error) {
	key, err := s.callKey(userID)
	if err != nil {
		return "", err
	}
	var callID string
	if err := s.get(ctx, key, &callID); err != nil {
		return "", err
	}
	return callID, nil
}

func (s *UpstashRedisStore) loadConversation(ctx context.Context, userID string) (*Conversation, error) {
	key, err := s.conversationKey(userID)
	if err != nil {
		return nil, err
	}

	var encoded string
	if err := s.get(ctx, key, &encoded); err != nil {
		return nil, err
	}

	var conv Conversation
	if err := json.Unmarshal([]byte(encoded), &conv); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}
	if err := conv.Validate(); err != nil {
		return nil, fmt.Errorf("invalid conversation loaded from store: %w", err)
	}
	return &conv, nil
}

func (s *UpstashRedisStore) get(ctx context.Context, key string, out *string) error {
	resp, err := s.exec(ctx, []any{"GET", key})
	if err != nil {
		return err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return ErrStateNotFound
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("decode redis payload: %w", err)
	}
	return nil
}

func (s *UpstashRedisStore) set(ctx context.Context, key string, value string) error {
	cmd := []any{"SET", key, value}
	if s.ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(s.ttl))
	}
	_, err := s.exec(ctx, cmd)
	return err
}

func (s *UpstashRedisStore) conversationKey(userID string) (string, error) {
	return s.redisKey(userID, "conversation")
}

func (s *UpstashRedisStore) callKey(userID string) (string, error) {
	return s.redisKey(userID, "last_call")
}

func (s *UpstashRedisStore) redisKey(userID string, kind string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrInvalidUser
	}
	prefix := strings.TrimSpace(s.keyPrefix)
	if prefix == "" {
		prefix = defaultStoreKeyPrefix
	}
	return prefix + "user:" + userID + ":" + kind, nil
}

func (s *UpstashRedisStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if s == nil {
		return nil, errors.New("nil store")
	}
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
