package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jinzhu/copier"
	"github.com/kampanion/voice-core/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PromptResponse is a complete, non-streamed turn.
type PromptResponse struct {
	Response  string
	ToolCalls []llms.ToolCall
}

// Prompt runs a whole turn in one request. Used when streaming is
// unavailable; the voice session normally goes through PromptWithStream.
func (c *Client) Prompt(ctx context.Context, prompt string, opts ...llms.StreamingPromptOption) (*PromptResponse, error) {
	ctx, span := tracer.Start(ctx, "prompt conversation")
	defer span.End()

	options := llms.StreamingPromptOptions{
		MaxTokens: llms.DefaultTextMaxTokens,
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

	requestBodyBytes, err := json.Marshal(requestBody{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: options.MaxTokens,
		Tools:     tools,
	})
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		return nil, &RequestError{Op: "conversation request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+conversationPath, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return nil, &RequestError{Op: "conversation request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "conversation request failed")
		return nil, &RequestError{Op: "conversation request", Err: err}
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
		return nil, &RequestError{Op: "conversation request", StatusCode: resp.StatusCode, Err: err}
	}

	var body promptResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		err = fmt.Errorf("error unmarshalling JSON: %w", err)
		span.RecordError(err)
		return nil, &RequestError{Op: "conversation response", Err: err}
	}

	response := PromptResponse{Response: body.Response}
	for _, call := range body.ToolCalls {
		response.ToolCalls = append(response.ToolCalls, llms.ToolCall{
			Name:      call.Name,
			Arguments: call.Arguments,
		})
	}
	return &response, nil
}
