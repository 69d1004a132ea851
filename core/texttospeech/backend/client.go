// Package backend synthesizes speech through the Kampanion voice endpoint.
// The endpoint either points at a rendered clip or directs the client to
// fall back to on-device synthesis.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/kampanion/voice-core/core/audio"
	"github.com/kampanion/voice-core/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultBaseURL = "https://api.kampanion.app"
	synthesisPath  = "/v1/voice/speech"

	baseURLEnv = "KAMPANION_API_URL"
	apiKeyEnv  = "KAMPANION_API_KEY"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	style string
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithDefaultStyle sets the voice style sent when a synthesis call does not
// pick one.
func WithDefaultStyle(style string) ClientOption {
	return func(c *Client) { c.style = style }
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
					return operationName + " " + request.URL.Path
				}),
			),
			Timeout: 30 * time.Second,
		},
	}

	if baseURL, ok := os.LookupEnv(baseURLEnv); ok {
		client.baseURL = baseURL
	}
	if apiKey, ok := os.LookupEnv(apiKeyEnv); ok {
		client.apiKey = apiKey
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		return nil, fmt.Errorf("api key not found (set %s)", apiKeyEnv)
	}
	return client, nil
}

type synthesisRequestBody struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Style    string `json:"style,omitempty"`
	Format   string `json:"format"`
}

type synthesisResponseBody struct {
	AudioURL string `json:"audio_url"`
	Provider string `json:"provider"`
	Fallback string `json:"fallback"`
}

// Synthesize renders text to a linear16 PCM clip. A fallback directive from
// the backend surfaces as texttospeech.ErrDeviceFallback; transient failures
// are retried once before being reported.
func (c *Client) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) (*texttospeech.Speech, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()

	options := texttospeech.SynthesisOptions{Style: c.style}
	for _, opt := range opts {
		opt(&options)
	}
	span.SetAttributes(
		attribute.Int("request.text_length", len(text)),
		attribute.String("request.language", options.Language),
	)

	speech, err := c.synthesizeOnce(ctx, text, options)
	if err != nil {
		var reqErr *texttospeech.RequestError
		if errors.As(err, &reqErr) && reqErr.Transient() && ctx.Err() == nil {
			span.AddEvent("retrying transient synthesis failure")
			speech, err = c.synthesizeOnce(ctx, text, options)
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("response.audio_bytes", len(speech.PCM)))
	return speech, nil
}

func (c *Client) synthesizeOnce(ctx context.Context, text string, options texttospeech.SynthesisOptions) (*texttospeech.Speech, error) {
	requestBodyBytes, err := json.Marshal(synthesisRequestBody{
		Text:     text,
		Language: options.Language,
		Style:    options.Style,
		Format:   audio.DefaultFormat,
	})
	if err != nil {
		return nil, &texttospeech.RequestError{Op: "synthesis request", Err: fmt.Errorf("error marshalling JSON: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+synthesisPath, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return nil, &texttospeech.RequestError{Op: "synthesis request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &texttospeech.RequestError{Op: "synthesis request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &texttospeech.RequestError{
			Op:         "synthesis request",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("non-OK HTTP status: %s", resp.Status),
		}
	}

	var body synthesisResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &texttospeech.RequestError{Op: "synthesis response", Err: fmt.Errorf("error unmarshalling JSON: %w", err)}
	}

	if body.Fallback == "device" {
		return nil, texttospeech.ErrDeviceFallback
	}
	if body.AudioURL == "" {
		return nil, &texttospeech.RequestError{Op: "synthesis response", Err: fmt.Errorf("response carries neither audio_url nor fallback")}
	}

	pcm, err := c.fetchAudio(ctx, body.AudioURL)
	if err != nil {
		return nil, err
	}

	return &texttospeech.Speech{
		PCM:          pcm,
		EncodingInfo: audio.GetDefaultEncodingInfo(),
		Provider:     texttospeech.ProviderPrimary,
	}, nil
}

func (c *Client) fetchAudio(ctx context.Context, audioURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, &texttospeech.RequestError{Op: "audio fetch", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &texttospeech.RequestError{Op: "audio fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &texttospeech.RequestError{
			Op:         "audio fetch",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("non-OK HTTP status: %s", resp.Status),
		}
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &texttospeech.RequestError{Op: "audio fetch", Err: err}
	}
	if len(pcm) == 0 {
		return nil, &texttospeech.RequestError{Op: "audio fetch", Err: fmt.Errorf("empty audio payload")}
	}
	return pcm, nil
}
