package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeCompleter struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeCompleter) Model() string { return "fake-model" }

func TestLLMExtractorMapsResponse(t *testing.T) {
	completer := &fakeCompleter{
		response: `{"entities":[
			{"value":"Ship release","type":"todo","status":"active","line":2},
			{"value":"Alice","type":"person","context":"sync with Alice"}
		]}`,
	}
	extractor := NewLLMExtractor(completer)

	entities, err := extractor.Extract(context.Background(), "work/release.md", "# Release\n- [ ] Ship release\nsync with Alice")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(entities))
	}
	for _, entity := range entities {
		if entity.NotePath != "work/release.md" {
			t.Errorf("expected note path stamped, got %q", entity.NotePath)
		}
	}

	if len(completer.prompts) != 1 {
		t.Fatalf("expected 1 completion call, got %d", len(completer.prompts))
	}
	if !strings.Contains(completer.prompts[0], "- [ ] Ship release") {
		t.Error("prompt should contain the note content")
	}
	if !strings.Contains(completer.prompts[0], "work/release.md") {
		t.Error("prompt should contain the note path")
	}
	if extractor.Model() != "fake-model" {
		t.Errorf("expected completer model passthrough, got %q", extractor.Model())
	}
}

func TestLLMExtractorChunksLongNotes(t *testing.T) {
	completer := &fakeCompleter{
		response: `{"entities":[{"value":"Alice","type":"person"}]}`,
	}
	extractor := NewLLMExtractor(completer)
	extractor.chunker = chunker{maxTokens: 100, overlap: 20}

	var sb strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&sb, "Alice wrote sentence number %d today. ", i)
	}

	entities, err := extractor.Extract(context.Background(), "long.md", sb.String())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(completer.prompts) < 2 {
		t.Errorf("expected multiple completion calls for a long note, got %d", len(completer.prompts))
	}
	// Every chunk reports Alice; the merge keeps her once.
	if len(entities) != 1 || entities[0].EntityValue != "Alice" {
		t.Errorf("expected 1 deduplicated entity, got %+v", entities)
	}
}

func TestLLMExtractorCompleterError(t *testing.T) {
	wantErr := errors.New("model unavailable")
	extractor := NewLLMExtractor(&fakeCompleter{err: wantErr})

	_, err := extractor.Extract(context.Background(), "note.md", "content")
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped completer error, got %v", err)
	}
}

func TestLLMExtractorMalformedResponse(t *testing.T) {
	extractor := NewLLMExtractor(&fakeCompleter{response: "I refuse to answer in JSON."})

	if _, err := extractor.Extract(context.Background(), "note.md", "content"); err == nil {
		t.Error("expected error for unparseable response")
	}
}

func TestFactorySelectsProvider(t *testing.T) {
	tests := []struct {
		provider  string
		wantModel string
	}{
		{"", "heuristic"},
		{"heuristic", "heuristic"},
		{"ollama", "qwen2.5:7b"},
		{"openai", "gpt-4o-mini"},
		{"anthropic", "claude-haiku-4-5-20251001"},
	}
	for _, tt := range tests {
		t.Run("provider_"+tt.provider, func(t *testing.T) {
			extractor, err := New(Config{Provider: tt.provider})
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if extractor.Model() != tt.wantModel {
				t.Errorf("expected model %q, got %q", tt.wantModel, extractor.Model())
			}
		})
	}
}

func TestFactoryRejectsUnknownProvider(t *testing.T) {
	if _, err := New(Config{Provider: "psychic"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestOllamaClientComplete(t *testing.T) {
	var gotReq generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request failed: %v", err)
		}
		fmt.Fprint(w, `{"response":"{\"entities\":[]}","done":true}`)
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL, Model: "test-model"})
	response, err := client.Complete(context.Background(), "extract things")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if response != `{"entities":[]}` {
		t.Errorf("unexpected response: %q", response)
	}
	if gotReq.Model != "test-model" || gotReq.Prompt != "extract things" || gotReq.Stream {
		t.Errorf("unexpected request: %+v", gotReq)
	}
}

func TestOllamaClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})
	_, err := client.Complete(context.Background(), "prompt")
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Errorf("expected status 500 error, got %v", err)
	}
}

func TestOllamaClientBreakerOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})
	for i := 0; i < 3; i++ {
		if _, err := client.Complete(context.Background(), "prompt"); err == nil {
			t.Fatalf("call %d: expected failure", i)
		}
	}

	_, err := client.Complete(context.Background(), "prompt")
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected circuit open after 3 consecutive failures, got %v", err)
	}
}

func TestCircuitBreakerRejectsWhenOpen(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(CircuitBreakerConfig{
		MaxFailures:          2,
		Timeout:              time.Minute,
		HalfOpenMaxSuccesses: 1,
	})

	calls := 0
	failing := func() (interface{}, error) {
		calls++
		return nil, errors.New("boom")
	}

	for i := 0; i < 2; i++ {
		if _, err := cb.Execute(context.Background(), failing); err == nil {
			t.Fatalf("call %d: expected failure", i)
		}
	}
	if calls != 2 {
		t.Fatalf("expected 2 executed calls, got %d", calls)
	}

	_, err := cb.Execute(context.Background(), failing)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if calls != 2 {
		t.Errorf("open circuit should not invoke the function, got %d calls", calls)
	}
	if cb.State() != "open" {
		t.Errorf("expected open state, got %s", cb.State())
	}
}
