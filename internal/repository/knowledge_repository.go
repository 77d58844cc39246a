package repository

import (
	"context"
	"strings"

	"portfolio-assistant/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Querier is the subset of *pgxpool.Pool used by the repository.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// searchColumns are matched against the query text in Search.
var searchColumns = []string{"title", "content", "tags", "project", "type"}

type KnowledgeRepository struct {
	db     Querier
	table  string
	logger *zap.Logger
}

func NewKnowledgeRepository(db Querier, table string, logger *zap.Logger) *KnowledgeRepository {
	return &KnowledgeRepository{
		db:     db,
		table:  table,
		logger: logger,
	}
}

// EnsureSchema creates the knowledge table when it does not exist yet.
func (r *KnowledgeRepository) EnsureSchema(ctx context.Context) error {
	ident := pgx.Identifier{r.table}.Sanitize()
	_, err := r.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+ident+` (
	id uuid PRIMARY KEY,
	project text,
	type text NOT NULL,
	title text,
	content text NOT NULL,
	tags text
)`)
	return err
}

func (r *KnowledgeRepository) Create(ctx context.Context, row *models.KnowledgeRow) error {
	query := squirrel.Insert(r.table).
		Columns("id", "project", "type", "title", "content", "tags").
		Values(row.ID, nullable(row.Project), row.Type, nullable(row.Title), row.Content, nullable(row.Tags)).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// DeleteAll empties the table. Used by the seeder's replace mode.
func (r *KnowledgeRepository) DeleteAll(ctx context.Context) (int64, error) {
	sql, args, err := squirrel.Delete(r.table).PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return 0, err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListEssentials returns up to limit rows whose type is one of types.
func (r *KnowledgeRepository) ListEssentials(ctx context.Context, types []string, limit int) ([]models.KnowledgeRow, error) {
	query := r.selectRows().
		Where(squirrel.Eq{"type": types}).
		Limit(uint64(limit))

	return r.query(ctx, query)
}

// Search returns up to limit rows where any text column contains queryText,
// ignoring case. LIKE wildcards in queryText match literally.
func (r *KnowledgeRepository) Search(ctx context.Context, queryText string, limit int) ([]models.KnowledgeRow, error) {
	pattern := "%" + escapeLike(queryText) + "%"

	match := squirrel.Or{}
	for _, column := range searchColumns {
		match = append(match, squirrel.ILike{column: pattern})
	}

	query := r.selectRows().
		Where(match).
		Limit(uint64(limit))

	return r.query(ctx, query)
}

func (r *KnowledgeRepository) selectRows() squirrel.SelectBuilder {
	return squirrel.Select(
		"COALESCE(project, '')",
		"COALESCE(type, '')",
		"COALESCE(title, '')",
		"COALESCE(content, '')",
		"COALESCE(tags, '')",
	).
		From(r.table).
		PlaceholderFormat(squirrel.Dollar)
}

func (r *KnowledgeRepository) query(ctx context.Context, query squirrel.SelectBuilder) ([]models.KnowledgeRow, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []models.KnowledgeRow{}
	for rows.Next() {
		var row models.KnowledgeRow
		if err := rows.Scan(&row.Project, &row.Type, &row.Title, &row.Content, &row.Tags); err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.logger.Debug("Knowledge rows loaded", zap.Int("rows", len(results)))
	return results, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike neutralises LIKE wildcards using the default backslash escape.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
