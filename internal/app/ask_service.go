package app

import (
	"context"
	"fmt"
	"strings"

	"docrag/internal/ai"
	"docrag/internal/model"
)

// NoContextAnswer is returned when retrieval finds nothing to ground an answer on.
const NoContextAnswer = "No relevant context was found in the ingested documents."

const askSystemPrompt = "You are a helpful assistant. Answer the user's question based only on the following context. If the context does not contain enough information, say so. Do not make up facts."

type AskResult struct {
	Answer  string             `json:"answer"`
	Sources []model.ChunkMatch `json:"sources"`
}

type AskService struct {
	retrieval *RetrievalService
	chat      ChatModel
}

func NewAskService(retrieval *RetrievalService, chat ChatModel) *AskService {
	return &AskService{retrieval: retrieval, chat: chat}
}

func (s *AskService) Ask(ctx context.Context, question string, limit int) (*AskResult, error) {
	sources, messages, err := s.prepare(ctx, question, limit)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return &AskResult{Answer: NoContextAnswer, Sources: sources}, nil
	}

	answer, err := s.chat.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("complete answer failed: %w", err)
	}
	return &AskResult{Answer: strings.TrimSpace(answer), Sources: sources}, nil
}

// Stream hands the sources to onSources once retrieval is done, then every
// answer delta to onDelta.
func (s *AskService) Stream(
	ctx context.Context,
	question string,
	limit int,
	onSources func(sources []model.ChunkMatch) error,
	onDelta func(delta string) error,
) (*AskResult, error) {
	sources, messages, err := s.prepare(ctx, question, limit)
	if err != nil {
		return nil, err
	}
	if err := onSources(sources); err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		if err := onDelta(NoContextAnswer); err != nil {
			return nil, err
		}
		return &AskResult{Answer: NoContextAnswer, Sources: sources}, nil
	}

	answer, err := s.chat.Stream(ctx, messages, onDelta)
	if err != nil {
		return nil, fmt.Errorf("stream answer failed: %w", err)
	}
	return &AskResult{Answer: strings.TrimSpace(answer), Sources: sources}, nil
}

func (s *AskService) prepare(ctx context.Context, question string, limit int) ([]model.ChunkMatch, []ai.ChatMessage, error) {
	if s.chat == nil || !s.chat.Configured() {
		return nil, nil, ErrLLMConfig
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil, ErrEmptyQuery
	}

	sources, err := s.retrieval.Retrieve(ctx, question, limit)
	if err != nil {
		return nil, nil, err
	}
	return sources, buildPrompt(question, sources), nil
}

func buildPrompt(question string, sources []model.ChunkMatch) []ai.ChatMessage {
	var b strings.Builder
	b.WriteString("Context:")
	for _, src := range sources {
		fmt.Fprintf(&b, "\n---\n[%s #%d]\n%s", src.Filename, src.ChunkIndex, src.Content)
	}
	b.WriteString("\n---\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")

	return []ai.ChatMessage{
		{Role: "system", Content: askSystemPrompt},
		{Role: "user", Content: b.String()},
	}
}
