package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

var ErrChatUnavailable = errors.New("chat completion unavailable")

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// ChatClient answers questions through an OpenAI-compatible chat completions API.
type ChatClient struct {
	client *openai.Client
	model  string
	ready  bool
}

func NewChatClient(cfg ChatConfig) *ChatClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &ChatClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		ready:  cfg.APIKey != "" && cfg.Model != "",
	}
}

// Configured reports whether the client has a key and model. An empty base URL
// falls back to the OpenAI endpoint.
func (c *ChatClient) Configured() bool {
	return c != nil && c.ready
}

func (c *ChatClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.request(messages))
	if err != nil {
		return "", fmt.Errorf("%w: llm request failed: %w", ErrChatUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty llm choices", ErrChatUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream hands each completion delta to onChunk and returns the full answer.
func (c *ChatClient) Stream(ctx context.Context, messages []ChatMessage, onChunk func(chunk string) error) (string, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, c.request(messages))
	if err != nil {
		return "", fmt.Errorf("%w: llm stream request failed: %w", ErrChatUnavailable, err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: read llm stream failed: %w", ErrChatUnavailable, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		text := resp.Choices[0].Delta.Content
		if text == "" {
			continue
		}

		full.WriteString(text)
		if err := onChunk(text); err != nil {
			return "", err
		}
	}
	return full.String(), nil
}

func (c *ChatClient) request(messages []ChatMessage) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
	}
}
