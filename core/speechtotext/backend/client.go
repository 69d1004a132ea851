// Package backend talks to the assistant backend's transcription endpoint.
package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kampanion/voice-core/core/audio"
	"github.com/kampanion/voice-core/core/speechtotext"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const transcribePath = "/v1/voice/transcriptions"

type Client struct {
	baseURL string
	apiKey  string

	httpClient *http.Client
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
					return operationName + " " + request.URL.Path
				}),
			),
		},
	}

	if baseURL, ok := os.LookupEnv("KAMPANION_API_URL"); ok {
		client.baseURL = strings.TrimRight(baseURL, "/")
	}
	if apiKey, ok := os.LookupEnv("KAMPANION_API_KEY"); ok {
		client.apiKey = apiKey
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

type transcribeRequestBody struct {
	Audio    string `json:"base64_audio"`
	Language string `json:"language,omitempty"`
	Format   string `json:"format"`
}

type transcribeResponseBody struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcribe uploads a finished recording and returns its transcript. A nil
// result with nil error means the service heard no speech.
func (c *Client) Transcribe(ctx context.Context, input speechtotext.Input, opts ...speechtotext.TranscriptionOption) (*speechtotext.Result, error) {
	options := speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, span := tracer.Start(ctx, "transcribe recording")
	defer span.End()
	span.SetAttributes(
		attribute.Int("recording.bytes", len(input.PCM)),
		attribute.String("recording.language", options.Language),
	)

	wav, err := audio.EncodeWAV(input.PCM, input.EncodingInfo)
	if err != nil {
		err = fmt.Errorf("failed to encode recording: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	requestBodyBytes, err := json.Marshal(transcribeRequestBody{
		Audio:    base64.StdEncoding.EncodeToString(wav),
		Language: options.Language,
		Format:   "wav",
	})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transcribePath, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		reqErr := &speechtotext.RequestError{Op: "transcription request", Err: err}
		span.RecordError(reqErr)
		span.SetStatus(codes.Error, reqErr.Error())
		return nil, reqErr
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		reqErr := &speechtotext.RequestError{
			Op:         "transcription request",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("non-OK HTTP status: %s: %s", resp.Status, strings.TrimSpace(string(body))),
		}
		span.RecordError(reqErr)
		span.SetStatus(codes.Error, reqErr.Error())
		return nil, reqErr
	}

	var responseBody transcribeResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&responseBody); err != nil {
		reqErr := &speechtotext.RequestError{Op: "transcription response decoding", Err: err}
		span.RecordError(reqErr)
		span.SetStatus(codes.Error, reqErr.Error())
		return nil, reqErr
	}

	text := strings.TrimSpace(responseBody.Text)
	if text == "" {
		logger.InfoContext(ctx, "transcription returned no speech")
		return nil, nil
	}

	language := responseBody.Language
	if language == "" {
		language = options.Language
	}

	return &speechtotext.Result{Text: text, Language: language}, nil
}
