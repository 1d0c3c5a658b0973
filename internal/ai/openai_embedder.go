package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultEmbeddingModel is used when the configuration leaves the model empty.
const DefaultEmbeddingModel = openai.SmallEmbedding3

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

func NewOpenAIEmbedder(cfg EmbeddingConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding api key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := openai.EmbeddingModel(cfg.Model)
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		dimensions: cfg.Dimensions,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmbeddingInput
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		if isDecodeError(err) {
			return nil, fmt.Errorf("%w: decode embeddings failed: %w", ErrEmbeddingMalformed, err)
		}
		return nil, fmt.Errorf("%w: create embeddings failed: %w", ErrEmbeddingUnavailable, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrEmbeddingMalformed)
	}
	return checkVector(resp.Data[0].Embedding, e.dimensions)
}

// isDecodeError reports a 2xx response whose body could not be decoded.
// Non-2xx responses surface as RequestError/APIError, which may wrap a json
// error of their own.
func isDecodeError(err error) bool {
	var reqErr *openai.RequestError
	var apiErr *openai.APIError
	if errors.As(err, &reqErr) || errors.As(err, &apiErr) {
		return false
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
