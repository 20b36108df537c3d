package openrouter

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChatModelConfig(t *testing.T) {
	t.Parallel()

	maxTokens := 512
	cfg := Config{
		BaseURL:            "https://openrouter.ai/api/v1/",
		APIKey:             " key ",
		Model:              "x-ai/grok-4.1-fast",
		MaxCompletionToken: &maxTokens,
		Temperature:        0.2,
	}

	conf := cfg.chatModelConfig()
	if conf.BaseURL != "https://openrouter.ai/api/v1" {
		t.Fatalf("unexpected base url: %q", conf.BaseURL)
	}
	if conf.APIKey != "key" {
		t.Fatalf("unexpected api key: %q", conf.APIKey)
	}
	if conf.Temperature == nil || *conf.Temperature != 0.2 {
		t.Fatalf("unexpected temperature: %v", conf.Temperature)
	}
	if conf.ExtraFields["reasoning"] == nil {
		t.Fatal("expected reasoning to be disabled for the model")
	}
	if conf.HTTPClient != nil {
		t.Fatal("no attribution headers configured, expected default http client")
	}
}

func TestAttributionHeadersAreSent(t *testing.T) {
	t.Parallel()

	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := Config{Model: "openai/gpt-4o-mini", SiteURL: "https://habits.example", SiteName: "Habit Elevate"}
	conf := cfg.chatModelConfig()
	if conf.HTTPClient == nil {
		t.Fatal("expected an http client carrying attribution headers")
	}

	resp, err := conf.HTTPClient.Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()

	if got.Get("HTTP-Referer") != "https://habits.example" || got.Get("X-Title") != "Habit Elevate" {
		t.Fatalf("unexpected headers: %v", got)
	}
}

func TestNewClientWithoutKey(t *testing.T) {
	t.Parallel()

	if NewClient(Config{}) != nil {
		t.Fatal("expected nil client without api key")
	}
	if NewClient(Config{APIKey: "k"}) == nil {
		t.Fatal("expected client with api key")
	}
}
