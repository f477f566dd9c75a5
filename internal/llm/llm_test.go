package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

type slowProvider struct{}

func (slowProvider) Name() string { return "slow" }

func (slowProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return &CompletionResponse{Content: "late"}, nil
	}
}

func TestFactoryReturnsErrorForMissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewProvider("openai", "gpt-4o-mini")
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestFactoryReturnsErrorForUnknownProvider(t *testing.T) {
	_, err := NewProvider("unknown", "model")
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestFactoryCreatesOllamaWithoutAPIKey(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "localhost:11434/")

	p, err := NewProvider("ollama", "llama3.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("expected name 'ollama', got %q", p.Name())
	}
	if got := OllamaHost(); got != "http://localhost:11434" {
		t.Errorf("OllamaHost() = %q", got)
	}
}

func TestFactoryCreatesOpenAIProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	p, err := NewProvider("openai", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("expected name 'openai', got %q", p.Name())
	}
}

func TestWithTimeoutCancelsSlowCalls(t *testing.T) {
	p := WithTimeout(slowProvider{}, 20*time.Millisecond)

	start := time.Now()
	_, err := p.Complete(context.Background(), CompletionRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout did not cut the call short")
	}
	if p.Name() != "slow" {
		t.Errorf("expected wrapped name, got %q", p.Name())
	}
}

func TestWithTimeoutZeroIsPassthrough(t *testing.T) {
	inner := slowProvider{}
	if got := WithTimeout(inner, 0); got != Provider(inner) {
		t.Error("expected the provider to be returned unchanged")
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  ```json\n{\"a\":1}```  ", "{\"a\":1}"},
		{"```{\"a\":1}```", "{\"a\":1}"},
	}
	for _, tt := range tests {
		if got := StripCodeFences(tt.in); got != tt.want {
			t.Errorf("StripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSchemaDecode(t *testing.T) {
	s := MustCompileSchema("label.json", `{
		"type": "object",
		"required": ["label"],
		"properties": {"label": {"type": "string", "minLength": 1}}
	}`)

	obj, err := s.Decode("```json\n{\"label\": \"Budget\"}\n```")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if obj["label"] != "Budget" {
		t.Errorf("label = %v", obj["label"])
	}

	if _, err := s.Decode(`{"label": ""}`); err == nil {
		t.Error("expected schema violation for empty label")
	}
	if _, err := s.Decode("not json"); err == nil {
		t.Error("expected parse error")
	}
	if _, err := s.Decode("[1,2]"); err == nil {
		t.Error("expected error for non-object JSON")
	}
}

func TestRoles(t *testing.T) {
	if RoleSystem != "system" || RoleUser != "user" || RoleAssistant != "assistant" {
		t.Error("unexpected role values")
	}
}
