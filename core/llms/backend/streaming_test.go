package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/kampanion/voice-core/core/llms"
)

func sseHandler(t *testing.T, lines []string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != conversationPath {
			t.Errorf("expected request to %s, got %s", conversationPath, r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
		}
	}
}

func collectChunks(t *testing.T, stream *Stream) ([]llms.StreamChunk, []error) {
	t.Helper()
	var chunks []llms.StreamChunk
	var errs []error
	for chunk, err := range stream.Chunks(context.Background()) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		chunks = append(chunks, chunk)
	}
	return chunks, errs
}

func TestStreamPreservesChunkOrder(t *testing.T) {
	server := httptest.NewServer(sseHandler(t, []string{
		`data: {"delta": "Your next "}`,
		`data: {"delta": "class is "}`,
		`data: {"delta": "at noon."}`,
		`data: [DONE]`,
	}))
	defer server.Close()

	client, err := NewClient(WithBaseURL(server.URL), WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	chunks, errs := collectChunks(t, client.PromptWithStream(context.Background(), "when is my next class"))
	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}

	want := []string{"Your next ", "class is ", "at noon."}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, chunk := range chunks {
		content, ok := chunk.(llms.StreamContentChunk)
		if !ok {
			t.Fatalf("chunk %d is not a content chunk: %T", i, chunk)
		}
		if content.Content() != want[i] {
			t.Errorf("chunk %d: expected %q, got %q", i, want[i], content.Content())
		}
	}
}

func TestStreamSeparatesToolMarkersFromText(t *testing.T) {
	server := httptest.NewServer(sseHandler(t, []string{
		`data: {"delta": "Let me check. "}`,
		`data: {"tool_name": "campus_schedule"}`,
		`data: {"delta": "Found it."}`,
		`data: [DONE]`,
	}))
	defer server.Close()

	client, err := NewClient(WithBaseURL(server.URL), WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	chunks, errs := collectChunks(t, client.PromptWithStream(context.Background(), "check my schedule"))
	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	toolChunk, ok := chunks[1].(llms.StreamToolUseChunk)
	if !ok {
		t.Fatalf("expected tool chunk at position 1, got %T", chunks[1])
	}
	if toolChunk.ToolName() != "campus_schedule" {
		t.Errorf("expected tool name campus_schedule, got %q", toolChunk.ToolName())
	}
	for _, position := range []int{0, 2} {
		if _, ok := chunks[position].(llms.StreamContentChunk); !ok {
			t.Errorf("expected content chunk at position %d, got %T", position, chunks[position])
		}
	}
}

func TestStreamReportsTruncationWithoutSentinel(t *testing.T) {
	server := httptest.NewServer(sseHandler(t, []string{
		`data: {"delta": "The library closes "}`,
		`data: {"delta": "at ten"}`,
	}))
	defer server.Close()

	client, err := NewClient(WithBaseURL(server.URL), WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	chunks, errs := collectChunks(t, client.PromptWithStream(context.Background(), "library hours"))
	if len(chunks) != 2 {
		t.Fatalf("expected the partial chunks to survive, got %d", len(chunks))
	}
	if len(errs) != 1 || !errors.Is(errs[0], llms.ErrStreamTruncated) {
		t.Fatalf("expected a truncation error after the partial chunks, got %v", errs)
	}
}

func TestStreamCarriesConfiguredModel(t *testing.T) {
	var mu sync.Mutex
	var requestedModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		mu.Lock()
		requestedModel = body.Model
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"delta\": \"Hi.\"}\n\ndata: [DONE]\n\n")
	}))
	defer server.Close()

	client, err := NewClient(WithBaseURL(server.URL), WithAPIKey("test-key"),
		WithModel("kampanion-voice-1"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if _, errs := collectChunks(t, client.PromptWithStream(context.Background(), "hello")); len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	mu.Lock()
	defer mu.Unlock()
	if requestedModel != "kampanion-voice-1" {
		t.Errorf("expected the pinned model in the request, got %q", requestedModel)
	}
}

func TestStreamReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(WithBaseURL(server.URL), WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	chunks, errs := collectChunks(t, client.PromptWithStream(context.Background(), "hello"))
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
	var reqErr *RequestError
	if !errors.As(errs[0], &reqErr) {
		t.Fatalf("expected a RequestError, got %v", errs[0])
	}
	if reqErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", reqErr.StatusCode)
	}
}
