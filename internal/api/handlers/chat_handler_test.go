package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"portfolio-assistant/internal/dto"
	"portfolio-assistant/internal/models"
	"portfolio-assistant/internal/prompts"
	"portfolio-assistant/internal/service"
	"portfolio-assistant/pkg/config"
	"portfolio-assistant/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubStore struct {
	rows []models.KnowledgeRow
	err  error

	calls atomic.Int32
}

func (s *stubStore) ListEssentials(ctx context.Context, types []string, limit int) ([]models.KnowledgeRow, error) {
	s.calls.Add(1)
	return s.rows, nil
}

func (s *stubStore) Search(ctx context.Context, queryText string, limit int) ([]models.KnowledgeRow, error) {
	s.calls.Add(1)
	return nil, s.err
}

// completionServer fakes the completion endpoint and counts requests.
func completionServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestApp(t *testing.T, store service.KnowledgeStore, completionURL string, missing []string) *fiber.App {
	t.Helper()
	logger := zap.NewNop()

	policy, err := prompts.LookupPolicy("concise")
	require.NoError(t, err)
	assembler := prompts.NewAssembler(policy, prompts.Options{
		OwnerName:    "Sam Rivera",
		Projects:     []string{"A", "B", "C", "D", "E"},
		HistoryTurns: 6,
	})

	rag := service.NewRAGService(store, &config.RAGConfig{
		EssentialTypes:  []string{"bio"},
		EssentialsLimit: 12,
		SearchLimit:     12,
		MaxRows:         16,
	}, logger)
	llm := service.NewLLMService(&config.CompletionConfig{
		URL:     completionURL,
		APIKey:  "sk-test",
		Model:   "test-model",
		Timeout: 5 * time.Second,
	}, logger)
	chat := service.NewChatService(rag, assembler, llm, service.ChatOptions{Missing: missing}, logger)

	app := fiber.New()
	app.Use(middleware.CORS())
	app.Post("/api/chat", NewChatHandler(chat, 10*time.Second, logger).Chat)
	return app
}

func postChat(t *testing.T, app *fiber.App, body string) (*http.Response, dto.ErrorResponse) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var envelope dto.ErrorResponse
	if resp.StatusCode != fiber.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	}
	return resp, envelope
}

func TestChat_RejectsInvalidMessage(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "missing", body: `{}`, wantErr: "Message is required"},
		{name: "null", body: `{"message": null}`, wantErr: "Message is required"},
		{name: "number", body: `{"message": 42}`, wantErr: "Message must be a string"},
		{name: "blank", body: `{"message": "   "}`, wantErr: "Message must not be empty"},
		{name: "not json", body: `message=hi`, wantErr: "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &stubStore{}
			srv, completions := completionServer(t, http.StatusOK, `{"choices":[{"message":{"content":"unused"}}]}`)
			app := newTestApp(t, store, srv.URL, nil)

			resp, envelope := postChat(t, app, tt.body)

			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.wantErr, envelope.Error)
			assert.Zero(t, store.calls.Load())
			assert.Zero(t, completions.Load())
		})
	}
}

func TestChat_StoreFailure(t *testing.T) {
	store := &stubStore{err: errors.New(`relation "portfolio_knowledge" does not exist`)}
	srv, completions := completionServer(t, http.StatusOK, `{"choices":[{"message":{"content":"unused"}}]}`)
	app := newTestApp(t, store, srv.URL, nil)

	resp, envelope := postChat(t, app, `{"message": "What does Sam build?"}`)

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to retrieve search knowledge", envelope.Error)
	assert.Equal(t, `relation "portfolio_knowledge" does not exist`, envelope.Details)
	assert.Zero(t, completions.Load())
}

func TestChat_CompletionFailure(t *testing.T) {
	rawBody := `{"error":{"message":"Rate limit reached","type":"requests"}}`
	srv, completions := completionServer(t, http.StatusTooManyRequests, rawBody)
	app := newTestApp(t, &stubStore{}, srv.URL, nil)

	resp, envelope := postChat(t, app, `{"message": "hello"}`)

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Completion request failed", envelope.Error)
	assert.Equal(t, rawBody, envelope.Details)
	assert.EqualValues(t, 1, completions.Load())
}

func TestChat_Success(t *testing.T) {
	store := &stubStore{rows: []models.KnowledgeRow{{Type: "bio", Content: "Sam builds web services."}}}
	srv, _ := completionServer(t, http.StatusOK, `{"choices":[{"message":{"content":"Sam builds web services."}}]}`)
	app := newTestApp(t, store, srv.URL, nil)

	resp, _ := postChat(t, app, `{"message": "What does Sam do?", "conversationHistory": [{"role": "user", "content": "hi"}]}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body dto.ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Sam builds web services.", body.Response)
	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
}

func TestChat_EmptyChoicesFallBack(t *testing.T) {
	srv, _ := completionServer(t, http.StatusOK, `{"choices":[]}`)
	app := newTestApp(t, &stubStore{}, srv.URL, nil)

	resp, _ := postChat(t, app, `{"message": "Who won the 1998 World Cup?"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body dto.ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, prompts.FallbackAnswer, body.Response)
}

func TestChat_MissingConfiguration(t *testing.T) {
	store := &stubStore{}
	srv, completions := completionServer(t, http.StatusOK, `{}`)
	app := newTestApp(t, store, srv.URL, []string{"COMPLETION_API_KEY"})

	resp, envelope := postChat(t, app, `{"message": "hello"}`)

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Server configuration error", envelope.Error)
	assert.Equal(t, "missing configuration: COMPLETION_API_KEY", envelope.Details)
	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "POST, OPTIONS", resp.Header.Get(fiber.HeaderAccessControlAllowMethods))
	assert.Equal(t, "Content-Type", resp.Header.Get(fiber.HeaderAccessControlAllowHeaders))
	assert.Zero(t, store.calls.Load())
	assert.Zero(t, completions.Load())
}

type recordingAsker struct {
	question string
	history  []prompts.Turn
	calls    int
}

func (r *recordingAsker) Ask(ctx context.Context, question string, history []prompts.Turn) (string, error) {
	r.calls++
	r.question = question
	r.history = history
	return "ok", nil
}

func newRecordingApp(asker *recordingAsker) *fiber.App {
	app := fiber.New()
	app.Post("/api/chat", NewChatHandler(asker, time.Second, zap.NewNop()).Chat)
	return app
}

func TestChat_AcceptsJSONWithoutJSONContentType(t *testing.T) {
	for _, contentType := range []string{"text/plain;charset=UTF-8", ""} {
		t.Run(contentType, func(t *testing.T) {
			asker := &recordingAsker{}
			req := httptest.NewRequest(fiber.MethodPost, "/api/chat", strings.NewReader(`{"message":"hi"}`))
			if contentType != "" {
				req.Header.Set(fiber.HeaderContentType, contentType)
			}

			resp, err := newRecordingApp(asker).Test(req)
			require.NoError(t, err)

			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Equal(t, 1, asker.calls)
			assert.Equal(t, "hi", asker.question)
		})
	}
}

func TestChat_MalformedHistoryIsDropped(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantHistory []prompts.Turn
	}{
		{
			name:        "history is a string",
			body:        `{"message":"hi","conversationHistory":"oops"}`,
			wantHistory: nil,
		},
		{
			name:        "numeric content",
			body:        `{"message":"hi","conversationHistory":[{"role":"user","content":5}]}`,
			wantHistory: []prompts.Turn{},
		},
		{
			name: "mixed turns",
			body: `{"message":"hi","conversationHistory":[
				"stray",
				{"role":"user","content":"What stack?"},
				{"role":7,"content":"x"},
				{"role":"assistant","content":"Go."}
			]}`,
			wantHistory: []prompts.Turn{
				{Role: "user", Content: "What stack?"},
				{Role: "assistant", Content: "Go."},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asker := &recordingAsker{}
			req := httptest.NewRequest(fiber.MethodPost, "/api/chat", strings.NewReader(tt.body))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

			resp, err := newRecordingApp(asker).Test(req)
			require.NoError(t, err)

			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.wantHistory, asker.history)
		})
	}
}
