package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*OpenAIClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewOpenAIClient(Config{
		APIKey:  "test-key",
		Model:   "gpt-4o",
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}
	return client, srv
}

func completionJSON(content string) string {
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestOpenAIChat(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq openAIRequest

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(completionJSON("  {\"violation\":false}\n")))
	}))

	reply, err := client.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are a refactoring agent."},
		{Role: RoleUser, Content: "fix this"},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if reply != `{"violation":false}` {
		t.Errorf("reply = %q, want trimmed JSON", reply)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o" || len(gotReq.Messages) != 2 {
		t.Errorf("request = %+v", gotReq)
	}
	if gotReq.Messages[0].Role != RoleSystem {
		t.Errorf("first message role = %q", gotReq.Messages[0].Role)
	}
}

func TestOpenAIChatRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completionJSON("ok")))
	}))

	reply, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if reply != "ok" {
		t.Errorf("reply = %q", reply)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestOpenAIChatServerError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	if _, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}); err == nil {
		t.Fatal("expected error on 500")
	} else if !strings.Contains(err.Error(), "500") {
		t.Errorf("error should carry status: %v", err)
	}
}

func TestOpenAIChatEmptyChoices(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))

	if _, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}); err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestOpenAIChatRequiresKey(t *testing.T) {
	client, err := NewOpenAIClient(Config{})
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}
	if _, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestOpenAISpacesRequests(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionJSON("ok")))
	}))

	msgs := []Message{{Role: RoleUser, Content: "hi"}}
	if _, err := client.Chat(context.Background(), msgs); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if _, err := client.Chat(context.Background(), msgs); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < minRequestInterval {
		t.Errorf("second request after %v, want at least %v", elapsed, minRequestInterval)
	}
}

func TestClientName(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	if client.Name() != "openai:gpt-4o" {
		t.Errorf("Name = %q", client.Name())
	}
}

func TestNewClientFactory(t *testing.T) {
	if _, err := NewClient(Config{Provider: "anthropic"}); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
	if _, err := NewClient(Config{Provider: "gemini"}); err == nil {
		t.Fatal("expected error for gemini without API key")
	}
	c, err := NewClient(Config{Provider: "openai", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient(openai) failed: %v", err)
	}
	if _, ok := c.(*OpenAIClient); !ok {
		t.Fatalf("NewClient(openai) returned %T", c)
	}
}
