package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"portfolio-assistant/internal/dto"
	"portfolio-assistant/internal/prompts"
	"portfolio-assistant/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ChatAsker is satisfied by *service.ChatService.
type ChatAsker interface {
	Ask(ctx context.Context, question string, history []prompts.Turn) (string, error)
}

type ChatHandler struct {
	chat    ChatAsker
	timeout time.Duration
	logger  *zap.Logger
}

func NewChatHandler(chat ChatAsker, timeout time.Duration, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:    chat,
		timeout: timeout,
		logger:  logger,
	}
}

// Chat godoc
// @Summary Ask the portfolio assistant
// @Description Answers a visitor question grounded in the portfolio knowledge table
// @Tags chat
// @Accept json
// @Produce json
// @Param request body dto.ChatRequest true "Question and optional prior turns"
// @Success 200 {object} dto.ChatResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/chat [post]
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	// The widget may post JSON as text/plain, so the body is decoded
	// whatever the Content-Type says.
	var req dto.ChatRequest
	if err := c.App().Config().JSONDecoder(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "Invalid request body",
		})
	}

	message, ok := req.Message.(string)
	if req.Message == nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "Message is required",
		})
	}
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "Message must be a string",
		})
	}
	if strings.TrimSpace(message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "Message must not be empty",
		})
	}

	history := historyTurns(req.ConversationHistory)

	ctx := c.UserContext()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	answer, err := h.chat.Ask(ctx, message, history)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(dto.ChatResponse{Response: answer})
}

func (h *ChatHandler) respondError(c *fiber.Ctx, err error) error {
	var (
		configErr     *service.ConfigError
		retrievalErr  *service.RetrievalError
		completionErr *service.CompletionError
	)

	switch {
	case errors.As(err, &configErr):
		h.logger.Error("Chat service is not configured", zap.Strings("missing", configErr.Missing))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error:   "Server configuration error",
			Details: configErr.Error(),
		})

	case errors.As(err, &retrievalErr):
		h.logger.Error("Knowledge retrieval failed", zap.String("read", retrievalErr.Read), zap.Error(retrievalErr.Err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error:   fmt.Sprintf("Failed to retrieve %s knowledge", retrievalErr.Read),
			Details: retrievalErr.Err.Error(),
		})

	case errors.As(err, &completionErr):
		h.logger.Error("Completion request failed", zap.Int("status", completionErr.StatusCode))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error:   "Completion request failed",
			Details: completionErr.Body,
		})
	}

	h.logger.Error("Chat request failed", zap.Error(err))
	return err
}

// historyTurns keeps the entries of raw that are objects with string role
// and content. Anything else, including a non-array value, is ignored.
func historyTurns(raw interface{}) []prompts.Turn {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	turns := make([]prompts.Turn, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		role, roleOK := fields["role"].(string)
		content, contentOK := fields["content"].(string)
		if !roleOK || !contentOK {
			continue
		}
		turns = append(turns, prompts.Turn{Role: role, Content: content})
	}
	return turns
}
