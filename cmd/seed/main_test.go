package main

import (
	"context"
	"errors"
	"os"
	"testing"

	"portfolio-assistant/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingWriter struct {
	ensured   bool
	deleted   bool
	created   []models.KnowledgeRow
	createErr error
}

func (w *recordingWriter) EnsureSchema(ctx context.Context) error {
	w.ensured = true
	return nil
}

func (w *recordingWriter) DeleteAll(ctx context.Context) (int64, error) {
	w.deleted = true
	return 3, nil
}

func (w *recordingWriter) Create(ctx context.Context, row *models.KnowledgeRow) error {
	if w.createErr != nil {
		return w.createErr
	}
	w.created = append(w.created, *row)
	return nil
}

func TestParseSeedFile_Example(t *testing.T) {
	data, err := os.ReadFile("knowledge.example.yaml")
	require.NoError(t, err)

	rows, err := parseSeedFile(data)
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	projects := map[string]bool{}
	for _, row := range rows {
		assert.True(t, models.KnowledgeType(row.Type).Known(), row.Type)
		assert.NotEmpty(t, row.Content)
		if row.Project != "" {
			projects[row.Project] = true
		}
	}
	assert.Len(t, projects, 5)
}

func TestParseSeedFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{name: "missing type", data: "rows:\n  - content: hi\n", wantErr: "row 1: type is required"},
		{name: "blank content", data: "rows:\n  - type: bio\n    content: '  '\n", wantErr: "row 1: content is required"},
		{name: "unknown field", data: "rows:\n  - type: bio\n    content: hi\n    tag: go\n", wantErr: "failed to parse seed file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSeedFile([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSeedKnowledge(t *testing.T) {
	w := &recordingWriter{}
	rows := []models.KnowledgeRow{
		{Type: "bio", Title: "About", Content: "Sam builds services."},
		{Type: "hobby", Content: "Sam runs trails."},
	}

	err := seedKnowledge(context.Background(), w, rows, true, zap.NewNop())
	require.NoError(t, err)

	assert.True(t, w.ensured)
	assert.True(t, w.deleted)
	require.Len(t, w.created, 2)
	assert.NotEqual(t, uuid.Nil, w.created[0].ID)
	assert.NotEqual(t, w.created[0].ID, w.created[1].ID)
	assert.Equal(t, "hobby", w.created[1].Type)
}

func TestSeedKnowledge_KeepsExistingRows(t *testing.T) {
	w := &recordingWriter{createErr: errors.New("duplicate key")}

	err := seedKnowledge(context.Background(), w, []models.KnowledgeRow{{Type: "bio", Title: "About", Content: "x"}}, false, zap.NewNop())

	assert.False(t, w.deleted)
	assert.ErrorContains(t, err, "failed to create row 1 (About): duplicate key")
}
