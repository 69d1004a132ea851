package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"github.com/kampanion/voice-core/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	chunkPrefix = "data:"
	endMessage  = "[DONE]"
)

// PromptWithStream prepares a streaming conversation turn. No request is
// sent until the returned stream's Chunks iterator is consumed.
func (c *Client) PromptWithStream(_ context.Context, prompt string, opts ...llms.StreamingPromptOption) *Stream {
	options := llms.StreamingPromptOptions{
		MaxTokens: llms.DefaultVoiceMaxTokens,
	}
	for _, opt := range opts {
		opt(&options)
	}

	messages := toMessages(options.Instructions, options.History)
	messages = append(messages, message{Role: messageRoleUser, Content: prompt})

	var tools []tool
	if options.Tools != nil {
		copier.Copy(&tools, options.Tools)
	}

	return &Stream{
		client:    c,
		messages:  messages,
		maxTokens: options.MaxTokens,
		tools:     tools,
	}
}

func toMessages(instructions string, history []llms.Message) []message {
	messages := []message{}
	if instructions != "" {
		messages = append(messages, message{Role: messageRoleSystem, Content: instructions})
	}
	for _, turn := range history {
		role := messageRoleUser
		if turn.Role == llms.MessageRoleAssistant {
			role = messageRoleAssistant
		}
		messages = append(messages, message{Role: role, Content: turn.Content})
	}
	return messages
}

// Stream is a single-use response stream. Chunks arrive in server order;
// a connection cut before the completion sentinel yields
// llms.ErrStreamTruncated as the final iteration.
type Stream struct {
	client *Client

	messages  []message
	maxTokens int
	tools     []tool
}

func (s *Stream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	requestToFirstTokenTime := time.Time{}
	setRequestToFirstTokenTime := func(span trace.Span) {
		if requestToFirstTokenTime.IsZero() {
			return
		}
		span.SetAttributes(attribute.Float64("response.request_to_first_token_time", time.Since(requestToFirstTokenTime).Seconds()))
		span.AddEvent("received first chunk")
		requestToFirstTokenTime = time.Time{}
	}

	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "prompt conversation stream")
		defer span.End()

		var toolNames []string
		for _, tool := range s.tools {
			toolNames = append(toolNames, tool.Name)
		}
		span.SetAttributes(attribute.StringSlice("request.available_tools", toolNames))

		requestBodyBytes, err := json.Marshal(requestBody{
			Model:     s.client.model,
			Messages:  s.messages,
			MaxTokens: s.maxTokens,
			Tools:     s.tools,
			Stream:    true,
		})
		if err != nil {
			err = fmt.Errorf("error marshalling JSON: %w", err)
			span.RecordError(err)
			yield(nil, &RequestError{Op: "conversation request", Err: err})
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			s.client.baseURL+conversationPath, bytes.NewBuffer(requestBodyBytes))
		if err != nil {
			err = fmt.Errorf("error creating HTTP request: %w", err)
			span.RecordError(err)
			yield(nil, &RequestError{Op: "conversation request", Err: err})
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Authorization", "Bearer "+s.client.apiKey)

		span.SetAttributes(attribute.String("request.url", req.URL.String()))
		requestToFirstTokenTime = time.Now()
		span.AddEvent("request started")
		resp, err := s.client.httpClient.Do(req)
		if err != nil {
			err = fmt.Errorf("error sending request: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "conversation request failed")
			yield(nil, &RequestError{Op: "conversation request", Err: err})
			return
		}
		defer resp.Body.Close()

		span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
		if resp.StatusCode != http.StatusOK {
			if errorBody, readErr := io.ReadAll(resp.Body); readErr == nil {
				span.SetAttributes(attribute.String("response.error", string(errorBody)))
			}
			err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
			span.RecordError(err)
			span.SetStatus(codes.Error, "conversation request failed")
			yield(nil, &RequestError{Op: "conversation request", StatusCode: resp.StatusCode, Err: err})
			return
		}

		completed := false
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, chunkPrefix) {
				continue
			}
			chunk := strings.TrimSpace(strings.TrimPrefix(line, chunkPrefix))
			setRequestToFirstTokenTime(span)

			if len(chunk) == 0 {
				continue
			}
			if chunk == endMessage {
				completed = true
				break
			}

			var payload streamingChunk
			if err := json.Unmarshal([]byte(chunk), &payload); err != nil {
				err = fmt.Errorf("error unmarshalling JSON: %w", err)
				span.RecordError(err)
				if !yield(nil, err) {
					return
				}
				continue
			}

			if payload.ToolName != "" {
				if !yield(streamToolUseChunk{toolName: payload.ToolName}, nil) {
					return
				}
				continue
			}
			if payload.Delta != "" {
				if !yield(streamContentChunk{content: payload.Delta}, nil) {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "stream interrupted")
			yield(nil, fmt.Errorf("%w: %v", llms.ErrStreamTruncated, err))
			return
		}
		if !completed {
			err := llms.ErrStreamTruncated
			span.RecordError(err)
			span.SetStatus(codes.Error, "stream truncated")
			yield(nil, err)
		}
	}
}

type streamContentChunk struct {
	finishReason *string
	content      string
}

func (s streamContentChunk) FinishReason() *string { return s.finishReason }
func (s streamContentChunk) Content() string       { return s.content }

type streamToolUseChunk struct {
	finishReason *string
	toolName     string
}

func (s streamToolUseChunk) FinishReason() *string { return s.finishReason }
func (s streamToolUseChunk) ToolName() string      { return s.toolName }
