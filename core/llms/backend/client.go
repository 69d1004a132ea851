// Package backend streams assistant responses from the Kampanion
// conversation endpoint. Responses arrive as server-sent events carrying
// either a text delta or a tool marker; tool markers never reach the
// speakable text.
package backend

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultBaseURL   = "https://api.kampanion.app"
	conversationPath = "/v1/voice/conversations"

	baseURLEnv = "KAMPANION_API_URL"
	apiKeyEnv  = "KAMPANION_API_KEY"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	model string
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

// WithModel pins a specific conversation model. Empty leaves the choice to
// the backend.
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
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
			// Streaming turns stay open while the model talks; this only
			// guards against a wedged connection.
			Timeout: 120 * time.Second,
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
