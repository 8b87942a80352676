// Package llm talks to ModelArts and Pangu chat inference endpoints,
// authenticated with an IAM token, with optional SSE streaming.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// ModelTypeModelArts is the default inference endpoint flavor.
	ModelTypeModelArts = "modelarts"
	// ModelTypePangu targets Pangu chat endpoints.
	ModelTypePangu = "pangu"

	defaultTimeout = 60 * time.Second

	ssePrefix  = "data: "
	sseDoneTag = "[DONE]"
)

// Message is one chat turn. Content is either a plain string or, for
// vision requests, a list of content parts.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// Options tune a single chat request.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Client issues chat requests against one endpoint.
type Client struct {
	Endpoint  string
	ModelType string

	token      string
	httpClient *http.Client
}

// NewClient builds a chat client. The token goes into the X-Auth-Token
// header of every request; insecure disables certificate verification for
// endpoints with self-signed certificates.
func NewClient(endpoint, token, modelType string, insecure bool) *Client {
	if modelType == "" {
		modelType = ModelTypeModelArts
	}
	transport := &http.Transport{}
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		Endpoint:  strings.TrimRight(endpoint, "/"),
		ModelType: modelType,
		token:     token,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: transport,
		},
	}
}

// payload builds the request body. ModelArts and Pangu currently accept
// the same shape; the split is kept because Pangu has diverged before.
func (c *Client) payload(messages []Message, opts Options, stream bool) map[string]any {
	return map[string]any{
		"messages":    messages,
		"temperature": opts.Temperature,
		"max_tokens":  opts.MaxTokens,
		"stream":      stream,
	}
}

func (c *Client) newRequest(ctx context.Context, messages []Message, opts Options, stream bool) (*http.Request, error) {
	body, err := json.Marshal(c.payload(messages, opts, stream))
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Auth-Token", c.token)
	return req, nil
}

// Chat sends a non-streaming request and returns the extracted assistant
// text plus the raw decoded response.
func (c *Client) Chat(ctx context.Context, messages []Message, opts Options) (string, map[string]any, error) {
	req, err := c.newRequest(ctx, messages, opts, false)
	if err != nil {
		return "", nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read chat response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("chat request failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	return extractResponseContent(decoded), decoded, nil
}

// Stream sends a streaming request and invokes fn once per extracted text
// chunk. It returns when the server sends the [DONE] sentinel, the stream
// ends, fn returns an error, or ctx is cancelled.
func (c *Client) Stream(ctx context.Context, messages []Message, opts Options, fn func(chunk string) error) error {
	req, err := c.newRequest(ctx, messages, opts, true)
	if err != nil {
		return err
	}

	// Streams outlive the flat request timeout; rely on ctx instead.
	client := &http.Client{Transport: c.httpClient.Transport}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chat request failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, ssePrefix) {
			continue
		}
		data := strings.TrimPrefix(line, ssePrefix)
		if data == sseDoneTag {
			return nil
		}
		if chunk := ExtractChunk(data); chunk != "" {
			if err := fn(chunk); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream interrupted: %w", err)
	}
	return nil
}

// ExtractChunk pulls assistant text out of one SSE data payload. Payloads
// come in several shapes depending on the serving stack: OpenAI-style
// choices/delta, bare "content", or bare "text". Non-JSON data is passed
// through as-is.
func ExtractChunk(data string) string {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(data), &decoded); err != nil {
		return data
	}
	if choices, ok := decoded["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if delta, ok := choice["delta"].(map[string]any); ok {
				if content, ok := delta["content"].(string); ok {
					return content
				}
			}
		}
		return ""
	}
	if content, ok := decoded["content"].(string); ok {
		return content
	}
	if text, ok := decoded["text"].(string); ok {
		return text
	}
	return ""
}

// extractResponseContent pulls assistant text out of a non-streaming
// response body.
func extractResponseContent(decoded map[string]any) string {
	if choices, ok := decoded["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if msg, ok := choice["message"].(map[string]any); ok {
				if content, ok := msg["content"].(string); ok {
					return content
				}
			}
		}
	}
	if content, ok := decoded["content"].(string); ok {
		return content
	}
	if text, ok := decoded["text"].(string); ok {
		return text
	}
	return ""
}
