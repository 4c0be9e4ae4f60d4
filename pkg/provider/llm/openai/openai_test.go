package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voiceforge/voiceforge/pkg/provider/llm"
)

func TestConvertMessage(t *testing.T) {
	tests := []struct {
		role  string
		check func(t *testing.T, m llm.Message)
	}{
		{"system", func(t *testing.T, m llm.Message) {
			p, err := convertMessage(m)
			if err != nil || p.OfSystem == nil {
				t.Errorf("system: OfSystem not set (err=%v)", err)
			}
		}},
		{"user", func(t *testing.T, m llm.Message) {
			p, err := convertMessage(m)
			if err != nil || p.OfUser == nil {
				t.Errorf("user: OfUser not set (err=%v)", err)
			}
		}},
		{"assistant", func(t *testing.T, m llm.Message) {
			p, err := convertMessage(m)
			if err != nil || p.OfAssistant == nil {
				t.Errorf("assistant: OfAssistant not set (err=%v)", err)
			}
		}},
		{"tool", func(t *testing.T, m llm.Message) {
			if _, err := convertMessage(m); err == nil {
				t.Error("tool: expected error for unsupported role")
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			tt.check(t, llm.Message{Role: tt.role, Content: "x"})
		})
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("expected error for empty API key")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("sk-test", "gpt-4o", WithBaseURL("https://custom.example.com"), WithOrganization("org-123")); err != nil {
		t.Errorf("unexpected error with valid options: %v", err)
	}
}

func TestComplete(t *testing.T) {
	var got struct {
		Model               string           `json:"model"`
		Messages            []map[string]any `json:"messages"`
		MaxCompletionTokens int              `json:"max_completion_tokens"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Onward!"}}],
			"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}
		}`))
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL+"/"), WithMaxRetries(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "You are a hero.",
		Messages:     []llm.Message{{Role: "user", Content: "Say something brave."}},
		MaxTokens:    60,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Onward!" || resp.Usage.TotalTokens != 15 {
		t.Errorf("response = %+v", resp)
	}
	if got.Model != "gpt-4o-mini" || len(got.Messages) != 2 || got.MaxCompletionTokens != 60 {
		t.Errorf("request = %+v", got)
	}
	if got.Messages[0]["role"] != "system" {
		t.Errorf("first message role = %v, want system", got.Messages[0]["role"])
	}
}

func TestComplete_Errors(t *testing.T) {
	t.Run("http error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"bad","type":"invalid_request_error"}}`))
		}))
		defer srv.Close()

		p, _ := New("sk-test", "gpt-4o", WithBaseURL(srv.URL+"/"), WithMaxRetries(0))
		if _, err := p.Complete(context.Background(), llm.CompletionRequest{Messages: []llm.Message{{Role: "user", Content: "x"}}}); err == nil {
			t.Error("expected error for 400 response")
		}
	})

	t.Run("no choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
		}))
		defer srv.Close()

		p, _ := New("sk-test", "gpt-4o", WithBaseURL(srv.URL+"/"), WithMaxRetries(0))
		_, err := p.Complete(context.Background(), llm.CompletionRequest{Messages: []llm.Message{{Role: "user", Content: "x"}}})
		if err == nil {
			t.Fatal("expected error for empty choices")
		}
	})
}
