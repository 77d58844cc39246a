package service

import (
	"context"
	"fmt"

	"portfolio-assistant/internal/prompts"

	"go.uber.org/zap"
)

// Completer produces the assistant's answer for an assembled prompt.
type Completer interface {
	Complete(ctx context.Context, messages []prompts.Message, opts CompletionOptions) (string, error)
}

type ChatOptions struct {
	Temperature float32
	// MaxTokens overrides the policy's token budget when positive.
	MaxTokens int
	// Missing names required settings that are absent; Ready reports them.
	Missing []string
}

// ChatService answers one visitor question: retrieve, format, assemble,
// complete. It keeps no state between calls.
type ChatService struct {
	rag       *RAGService
	assembler *prompts.Assembler
	completer Completer
	opts      ChatOptions
	logger    *zap.Logger
}

func NewChatService(rag *RAGService, assembler *prompts.Assembler, completer Completer, opts ChatOptions, logger *zap.Logger) *ChatService {
	return &ChatService{
		rag:       rag,
		assembler: assembler,
		completer: completer,
		opts:      opts,
		logger:    logger,
	}
}

// Ready returns a *ConfigError when required settings are missing.
func (s *ChatService) Ready() error {
	missing := append([]string(nil), s.opts.Missing...)
	if s.completer == nil {
		missing = append(missing, "completion service")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

func (s *ChatService) maxTokens() int {
	if s.opts.MaxTokens > 0 {
		return s.opts.MaxTokens
	}
	return s.assembler.Policy().MaxTokens
}

// Ask runs the whole pipeline for question. Errors are *ConfigError,
// *RetrievalError, *CompletionError or wrapped unexpected failures.
func (s *ChatService) Ask(ctx context.Context, question string, history []prompts.Turn) (string, error) {
	if err := s.Ready(); err != nil {
		return "", err
	}

	question = cleanQuestion(question)

	rows, err := s.rag.Retrieve(ctx, question)
	if err != nil {
		return "", err
	}

	contextBlock := BuildContext(rows)

	messages, err := s.assembler.Assemble(ctx, len(rows), contextBlock, history, question)
	if err != nil {
		return "", fmt.Errorf("failed to assemble prompt: %w", err)
	}

	answer, err := s.completer.Complete(ctx, messages, CompletionOptions{
		Temperature: s.opts.Temperature,
		MaxTokens:   s.maxTokens(),
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("Question answered",
		zap.String("policy", s.assembler.Policy().Name),
		zap.Int("context_rows", len(rows)),
		zap.Int("history_turns", len(history)),
	)

	return answer, nil
}
