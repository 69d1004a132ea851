// Package deepgram batches a finished recording over Deepgram's streaming
// socket. Used during development when the assistant backend is unavailable;
// it satisfies the same contract as the backend client.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/kampanion/voice-core/core/speechtotext"
)

const (
	listenHost = "api.deepgram.com"
	listenPath = "/v1/listen"

	// sendChunkBytes keeps individual socket writes around 100ms of audio.
	sendChunkBytes = 3200

	resultTimeout = 20 * time.Second
)

type Client struct{}

func NewClient() *Client { return &Client{} }

// Transcribe streams the whole recording, closes the stream, and collects
// finalized segments until the socket closes.
func (c *Client) Transcribe(ctx context.Context, input speechtotext.Input, opts ...speechtotext.TranscriptionOption) (*speechtotext.Result, error) {
	options := speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	conn, err := connectWebsocket(connectionOptions{
		sampleRate: input.EncodingInfo.SampleRate,
		encoding:   input.EncodingInfo.Format.Name(),
		language:   options.Language,
	})
	if err != nil {
		return nil, &speechtotext.RequestError{Op: "deepgram connect", Err: err}
	}
	defer conn.Close()

	done := make(chan struct{})
	transcript := make(chan string, 1)
	go readTranscript(conn, transcript, done)

	for offset := 0; offset < len(input.PCM); offset += sendChunkBytes {
		end := min(offset+sendChunkBytes, len(input.PCM))
		if err := conn.WriteMessage(websocket.BinaryMessage, input.PCM[offset:end]); err != nil {
			return nil, &speechtotext.RequestError{Op: "deepgram audio upload", Err: err}
		}
	}

	if err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return nil, &speechtotext.RequestError{Op: "deepgram stream close", Err: err}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(resultTimeout):
		return nil, &speechtotext.RequestError{Op: "deepgram transcription", Err: fmt.Errorf("timed out waiting for transcript")}
	case <-done:
	}

	text := strings.TrimSpace(<-transcript)
	if text == "" {
		return nil, nil
	}

	language := options.Language
	if language == "" {
		language = "en-US"
	}
	return &speechtotext.Result{Text: text, Language: language}, nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string
	language   string
}

func connectWebsocket(options connectionOptions) (*websocket.Conn, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	listenURL := url.URL{Scheme: "wss", Host: listenHost, Path: listenPath}
	queryParams := listenURL.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", "nova-3")
	queryParams.Set("smart_format", "true")
	if options.language != "" {
		queryParams.Set("language", options.language)
	}
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(listenURL.String(),
		http.Header{"Authorization": {"Token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func readTranscript(conn *websocket.Conn, transcript chan<- string, done chan<- struct{}) {
	accumulated := ""
	defer func() {
		transcript <- accumulated
		close(done)
	}()

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		var parsedMsg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &parsedMsg); err != nil {
			continue
		}

		if api.TypeResponse(parsedMsg.Type) != api.TypeMessageResponse {
			continue
		}

		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			continue
		}
		if !msgResp.IsFinal || len(msgResp.Channel.Alternatives) == 0 {
			continue
		}

		segment := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		if segment == "" {
			continue
		}
		if accumulated != "" {
			accumulated += " "
		}
		accumulated += segment
	}
}
