// Package completion issues single outbound calls to completion providers
// and normalizes the two supported wire families into one result shape.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/parleychat/parley/pkg/providers"
)

const (
	// Bounded output and fixed moderate randomness for every call.
	maxOutputTokens = 1024
	temperature     = 0.7

	anthropicVersion = "2023-06-01"

	emptyCommandInstruction = "The user called you without a request. Greet them briefly and ask what they need help with."
)

// Line is one prior-context transcript line.
type Line struct {
	Sender string
	Body   string
	SentAt string
}

// Request describes one completion call.
type Request struct {
	WireFormat providers.WireFormat
	Endpoint   string
	APIKey     string
	Model      string
	System     string
	Transcript []Line
	Command    string
}

// UpstreamError carries a non-success provider response verbatim.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// Client performs completion calls. The zero value is not usable; use New.
type Client struct {
	httpClient *http.Client
}

// New builds a client whose calls are bounded by the given timeout.
func New(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Complete performs exactly one outbound call and returns the extracted
// reply text. Failures are returned to the caller; there are no retries.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	payload := buildUserPayload(req.Transcript, req.Command)

	switch req.WireFormat {
	case providers.WireMessages:
		return c.callMessages(ctx, req, payload)
	default:
		return c.callCompletions(ctx, req, payload)
	}
}

// buildUserPayload assembles the combined instruction: a labeled transcript
// block when context exists, then the command (or the fixed greeting
// instruction when the wake token arrived bare).
func buildUserPayload(transcript []Line, command string) string {
	var b strings.Builder
	if len(transcript) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, line := range transcript {
			fmt.Fprintf(&b, "[%s at %s] %s\n", line.Sender, line.SentAt, line.Body)
		}
		b.WriteString("\n")
	}
	if command == "" {
		b.WriteString(emptyCommandInstruction)
	} else {
		b.WriteString(command)
	}
	return b.String()
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionsRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type completionsResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) callCompletions(ctx context.Context, req Request, payload string) (string, error) {
	body := completionsRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: payload},
		},
		MaxTokens:   maxOutputTokens,
		Temperature: temperature,
	}

	raw, err := c.post(ctx, req.Endpoint, body, func(h http.Header) {
		h.Set("Authorization", "Bearer "+req.APIKey)
	})
	if err != nil {
		return "", err
	}

	var parsed completionsResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode completions response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completions response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

type messagesRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type messagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *Client) callMessages(ctx context.Context, req Request, payload string) (string, error) {
	body := messagesRequest{
		Model:  req.Model,
		System: req.System,
		Messages: []chatMessage{
			{Role: "user", Content: payload},
		},
		MaxTokens:   maxOutputTokens,
		Temperature: temperature,
	}

	raw, err := c.post(ctx, req.Endpoint, body, func(h http.Header) {
		h.Set("x-api-key", req.APIKey)
		h.Set("anthropic-version", anthropicVersion)
	})
	if err != nil {
		return "", err
	}

	var parsed messagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode messages response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("messages response contained no content blocks")
	}
	return parsed.Content[0].Text, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body any, setHeaders func(http.Header)) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	setHeaders(httpReq.Header)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
