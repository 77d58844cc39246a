package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"portfolio-assistant/internal/prompts"
	"portfolio-assistant/pkg/config"

	"go.uber.org/zap"
)

// CompletionOptions are the per-call sampling settings.
type CompletionOptions struct {
	Temperature float32
	MaxTokens   int
}

// LLMService calls an OpenAI-compatible chat completions endpoint.
type LLMService struct {
	config     *config.CompletionConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewLLMService(cfg *config.CompletionConfig, logger *zap.Logger) *LLMService {
	return &LLMService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

type completionRequest struct {
	Model       string            `json:"model"`
	Messages    []prompts.Message `json:"messages"`
	Temperature float32           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat completion request and returns the first choice's
// text, or prompts.FallbackAnswer when the reply carries none. Non-2xx
// answers yield a *CompletionError holding the raw body. There is no retry.
func (s *LLMService) Complete(ctx context.Context, messages []prompts.Message, opts CompletionOptions) (string, error) {
	payload, err := json.Marshal(completionRequest{
		Model:       s.config.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &CompletionError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		s.logger.Warn("Completion returned no choices, using fallback answer")
		return prompts.FallbackAnswer, nil
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		s.logger.Warn("Completion returned empty content, using fallback answer")
		return prompts.FallbackAnswer, nil
	}

	s.logger.Debug("Completion received",
		zap.String("model", s.config.Model),
		zap.Int("answer_length", len(content)),
	)
	return content, nil
}
