// Package chat streams answers from an OpenAI-compatible chat completions API.
package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o"
)

// ErrMissingCredential is returned when no API key is configured.
var ErrMissingCredential = errors.New("chat api key is not configured")

// APIError is a non-2xx response from the chat service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat api error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("chat api error (%d): %s", e.StatusCode, e.Message)
}

// Unauthorized reports whether the credential was rejected.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// Request is one chat turn. Context is the text the reader is looking at.
type Request struct {
	Messages []Message `json:"messages" validate:"required,min=1,dive"`
	Context  string    `json:"context"`
	Model    string    `json:"model"`
}

// Chunk is a piece of the streamed answer. A chunk with a non-nil Err is
// the last one sent on the channel.
type Chunk struct {
	Delta string
	Err   error
}

// Client calls a chat completions endpoint. It never retries.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient builds a client. baseURL should include the /v1 prefix.
// Empty baseURL and model fall back to the OpenAI defaults.
func NewClient(baseURL, apiKey, model string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
		httpClient: newHTTPClient(responseHeaderTimeout),
	}
}

// responseHeaderTimeout bounds the wait for the upstream to start answering.
// The streamed body is bounded only by the request context.
const responseHeaderTimeout = 60 * time.Second

func newHTTPClient(headerTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: transport}
}

// WithAPIKey returns a copy of the client using a different key.
func (c *Client) WithAPIKey(apiKey string) *Client {
	cp := *c
	cp.apiKey = strings.TrimSpace(apiKey)
	return &cp
}

// Model returns the default model.
func (c *Client) Model() string {
	return c.model
}

// BuildSystemPrompt returns the reading-assistant instructions around the
// page text.
func BuildSystemPrompt(pageText string) string {
	if strings.TrimSpace(pageText) == "" {
		pageText = "No context available."
	}
	return "You are a helpful reading assistant. The user is reading a book.\n" +
		"Here is the text from the current page/section they are reading:\n\n" +
		"\"" + pageText + "\"\n\n" +
		"Answer the user's questions based on this context if applicable, or general knowledge.\n" +
		"Keep answers concise and helpful."
}

// Stream sends the request and returns a channel of answer fragments. Errors
// that happen before the response starts are returned directly; later ones
// arrive as the final Chunk. The channel is closed when the answer is
// complete or ctx is cancelled.
func (c *Client) Stream(ctx context.Context, r Request) (<-chan Chunk, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredential
	}

	model := c.model
	if strings.TrimSpace(r.Model) != "" {
		model = strings.TrimSpace(r.Model)
	}

	messages := make([]oaiMessage, 0, len(r.Messages)+1)
	messages = append(messages, oaiMessage{Role: string(RoleSystem), Content: BuildSystemPrompt(r.Context)})
	for _, m := range r.Messages {
		messages = append(messages, oaiMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(oaiChatRequest{Model: model, Messages: messages, Stream: true})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		if err := readEvents(resp.Body, func(delta string) bool {
			select {
			case out <- Chunk{Delta: delta}:
				return true
			case <-ctx.Done():
				return false
			}
		}); err != nil && ctx.Err() == nil {
			select {
			case out <- Chunk{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// readEvents parses a server-sent event stream of completion chunks and
// calls emit with each non-empty content delta until [DONE].
func readEvents(body io.Reader, emit func(string) bool) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return nil
		}

		var chunk oaiStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("chat decode: %w", err)
		}
		if chunk.Error != nil && chunk.Error.Message != "" {
			return &APIError{StatusCode: http.StatusBadGateway, Message: chunk.Error.Message}
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if !emit(choice.Delta.Content) {
				return nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("chat stream: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var errResp oaiErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&errResp)
	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error.Message}
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiChatRequest struct {
	Model    string       `json:"model"`
	Messages []oaiMessage `json:"messages"`
	Stream   bool         `json:"stream"`
}

type oaiStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
