package service

import (
	"context"
	"fmt"
	"strings"

	"portfolio-assistant/internal/models"
	"portfolio-assistant/pkg/config"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// dedupeContentPrefix is how many runes of content take part in the row key.
const dedupeContentPrefix = 60

// KnowledgeStore is implemented by the postgres and REST repositories.
type KnowledgeStore interface {
	ListEssentials(ctx context.Context, types []string, limit int) ([]models.KnowledgeRow, error)
	Search(ctx context.Context, queryText string, limit int) ([]models.KnowledgeRow, error)
}

type RAGService struct {
	store  KnowledgeStore
	config *config.RAGConfig
	logger *zap.Logger
}

func NewRAGService(store KnowledgeStore, cfg *config.RAGConfig, logger *zap.Logger) *RAGService {
	return &RAGService{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// Retrieve runs the essentials and search reads concurrently and merges
// them. Either read failing fails the whole retrieval.
func (s *RAGService) Retrieve(ctx context.Context, query string) ([]models.KnowledgeRow, error) {
	if s.store == nil {
		return nil, &ConfigError{Missing: []string{"knowledge store"}}
	}

	var essentials, found []models.KnowledgeRow
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := s.store.ListEssentials(gctx, s.config.EssentialTypes, s.config.EssentialsLimit)
		if err != nil {
			return &RetrievalError{Read: ReadEssentials, Err: err}
		}
		essentials = rows
		return nil
	})

	g.Go(func() error {
		rows, err := s.store.Search(gctx, query, s.config.SearchLimit)
		if err != nil {
			return &RetrievalError{Read: ReadSearch, Err: err}
		}
		found = rows
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := MergeRows(found, essentials, s.config.MaxRows)

	s.logger.Info("Knowledge retrieved",
		zap.Int("search_rows", len(found)),
		zap.Int("essential_rows", len(essentials)),
		zap.Int("merged_rows", len(merged)),
	)

	return merged, nil
}

type rowKey struct {
	project, kind, title, contentPrefix string
}

func keyOf(row models.KnowledgeRow) rowKey {
	prefix := []rune(row.Content)
	if len(prefix) > dedupeContentPrefix {
		prefix = prefix[:dedupeContentPrefix]
	}
	return rowKey{
		project:       row.Project,
		kind:          row.Type,
		title:         row.Title,
		contentPrefix: string(prefix),
	}
}

// MergeRows concatenates search results before essentials, keeps the first
// row for each (project, type, title, content prefix) key and returns at
// most limit rows.
func MergeRows(search, essentials []models.KnowledgeRow, limit int) []models.KnowledgeRow {
	if limit <= 0 {
		return []models.KnowledgeRow{}
	}
	seen := make(map[rowKey]struct{}, len(search)+len(essentials))
	merged := make([]models.KnowledgeRow, 0, min(limit, len(search)+len(essentials)))

	for _, rows := range [][]models.KnowledgeRow{search, essentials} {
		for _, row := range rows {
			if len(merged) >= limit {
				return merged
			}
			key := keyOf(row)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, row)
		}
	}

	return merged
}

// BuildContext renders rows as numbered blocks separated by blank lines.
// Headers carry only the type, title and tags, never column labels.
func BuildContext(rows []models.KnowledgeRow) string {
	blocks := make([]string, 0, len(rows))

	for i, row := range rows {
		var b strings.Builder
		fmt.Fprintf(&b, "[%d] %s", i+1, strings.TrimSpace(row.Type))
		if title := strings.TrimSpace(row.Title); title != "" {
			b.WriteString(" - " + title)
		}
		if tags := strings.TrimSpace(row.Tags); tags != "" {
			b.WriteString(" (" + tags + ")")
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(row.Content))
		blocks = append(blocks, b.String())
	}

	return strings.Join(blocks, "\n\n")
}
