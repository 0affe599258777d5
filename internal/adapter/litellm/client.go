// Package litellm provides an HTTP client for the LiteLLM proxy: chat
// completions (streaming and blocking) and the model catalog. It implements
// the inference service port.
package litellm

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

	"github.com/Strob0t/Chorus/internal/port/inference"
	"github.com/Strob0t/Chorus/internal/resilience"
)

// Model represents a configured model in LiteLLM.
type Model struct {
	ModelName string            `json:"model_name"`
	Provider  string            `json:"litellm_provider,omitempty"`
	ModelID   string            `json:"model_id,omitempty"`
	ModelInfo map[string]any    `json:"model_info,omitempty"`
	Params    map[string]string `json:"litellm_params,omitempty"`
}

// Client talks to the LiteLLM proxy API.
type Client struct {
	baseURL    string
	masterKey  string
	httpClient *http.Client
	// streamClient has no timeout; streaming completions are bounded by
	// the request context instead.
	streamClient *http.Client
	breaker      *resilience.Breaker
}

var _ inference.Service = (*Client)(nil)

// NewClient creates a new LiteLLM client.
func NewClient(baseURL, masterKey string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		masterKey: masterKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		streamClient: &http.Client{},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// chatRequest is the OpenAI-compatible completion request body.
type chatRequest struct {
	Model         string                  `json:"model"`
	Messages      []inference.ChatMessage `json:"messages"`
	Stream        bool                    `json:"stream"`
	StreamOptions *streamOptions          `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
	} `json:"choices"`
	Usage chatUsage `json:"usage"`
}

type streamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}

// Chat runs a chat completion. With req.OnChunk set the request streams and
// each delta is forwarded as it arrives; reasoning deltas are reported with
// thinking=true and collected into Result.Analysis rather than Result.Text.
func (c *Client) Chat(ctx context.Context, req inference.Request) (*inference.Result, error) {
	if req.OnChunk != nil {
		return c.chatStream(ctx, req)
	}
	return c.chatBlocking(ctx, req)
}

func (c *Client) chatBlocking(ctx context.Context, req inference.Request) (*inference.Result, error) {
	body, err := json.Marshal(chatRequest{
		Model:    req.Model,
		Messages: req.Messages,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	// Completions can run long; bound them by ctx, not the admin client
	// timeout.
	data, err := c.doCompletion(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: empty choices")
	}

	return &inference.Result{
		Text:      resp.Choices[0].Message.Content,
		Analysis:  resp.Choices[0].Message.ReasoningContent,
		Model:     resp.Model,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
	}, nil
}

func (c *Client) doCompletion(ctx context.Context, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.masterKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.masterKey)
		}

		resp, err := c.streamClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("litellm API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}
	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) chatStream(ctx context.Context, req inference.Request) (*inference.Result, error) {
	body, err := json.Marshal(chatRequest{
		Model:         req.Model,
		Messages:      req.Messages,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	var result *inference.Result
	call := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")
		if c.masterKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.masterKey)
		}

		resp, err := c.streamClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 400 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("litellm API error %d: %s", resp.StatusCode, string(data))
		}

		result, err = c.readStream(resp.Body, req.OnChunk)
		return err
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}
	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}

// readStream consumes server-sent events until [DONE], forwarding each delta
// to onChunk.
func (c *Client) readStream(body io.Reader, onChunk inference.ChunkFunc) (*inference.Result, error) {
	var (
		text     strings.Builder
		analysis strings.Builder
		model    string
		usage    chatUsage
	)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			if payload == "[DONE]" {
				break
			}
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return nil, fmt.Errorf("unmarshal stream chunk: %w", err)
		}
		if chunk.Model != "" {
			model = chunk.Model
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta.ReasoningContent != "" {
			analysis.WriteString(delta.ReasoningContent)
			onChunk(delta.ReasoningContent, true, analysis.String())
		}
		if delta.Content != "" {
			text.WriteString(delta.Content)
			onChunk(delta.Content, false, text.String())
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	return &inference.Result{
		Text:      text.String(),
		Analysis:  analysis.String(),
		Model:     model,
		TokensIn:  usage.PromptTokens,
		TokensOut: usage.CompletionTokens,
	}, nil
}

// ListModels returns all models configured in LiteLLM with their declared
// context windows where reported.
func (c *Client) ListModels(ctx context.Context) ([]inference.ModelInfo, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/model/info", nil)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	var result struct {
		Data []Model `json:"data"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("unmarshal models: %w", err)
	}

	infos := make([]inference.ModelInfo, 0, len(result.Data))
	for _, m := range result.Data {
		infos = append(infos, inference.ModelInfo{
			Name:          m.ModelName,
			ContextWindow: contextWindowFromInfo(m.ModelInfo),
		})
	}
	return infos, nil
}

// contextWindowFromInfo picks the declared input token budget out of the
// loosely typed model_info map.
func contextWindowFromInfo(info map[string]any) int {
	for _, key := range []string{"max_input_tokens", "max_tokens"} {
		if v, ok := info[key]; ok {
			if f, ok := v.(float64); ok && f > 0 {
				return int(f)
			}
		}
	}
	return 0
}

// Health checks if LiteLLM is reachable.
func (c *Client) Health(ctx context.Context) (bool, error) {
	_, err := c.doRequest(ctx, http.MethodGet, "/health/liveliness", nil)
	return err == nil, err
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if c.masterKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.masterKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("litellm API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
