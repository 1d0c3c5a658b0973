package ai

import (
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

var (
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	ErrEmbeddingMalformed   = errors.New("embedding response malformed")
	ErrEmbeddingInput       = errors.New("embedding input is empty")
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingConfig holds settings shared by every embedding provider.
type EmbeddingConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int // 0 disables the length check
	Timeout    time.Duration
}

// ServiceEmbedder calls a plain embedding RPC: POST {"text": ...} → {"embedding": [...]}.
type ServiceEmbedder struct {
	httpClient *http.Client
	cfg        EmbeddingConfig
}

func NewServiceEmbedder(cfg EmbeddingConfig) *ServiceEmbedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ServiceEmbedder{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
	}
}

// Embed returns the embedding vector for the given text.
func (e *ServiceEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmbeddingInput
	}

	bodyBytes, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build embedding request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding request failed: %w", ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read embedding response failed: %w", ErrEmbeddingUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: embedding response status %d: %s", ErrEmbeddingUnavailable, resp.StatusCode, truncate(string(raw), 256))
	}

	var parsed struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse embedding json failed: %w", ErrEmbeddingMalformed, err)
	}
	return checkVector(parsed.Embedding, e.cfg.Dimensions)
}

func checkVector(vec []float32, dimensions int) ([]float32, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty embedding in response", ErrEmbeddingMalformed)
	}
	if dimensions > 0 && len(vec) != dimensions {
		return nil, fmt.Errorf("%w: expected %d dimensions, got %d", ErrEmbeddingMalformed, dimensions, len(vec))
	}
	return vec, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
