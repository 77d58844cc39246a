package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"portfolio-assistant/internal/models"

	"go.uber.org/zap"
)

const restSelect = "project,type,title,content,tags"

// RESTKnowledgeRepository reads the knowledge table through a PostgREST
// endpoint such as Supabase's /rest/v1 API.
type RESTKnowledgeRepository struct {
	baseURL    string
	apiKey     string
	table      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewRESTKnowledgeRepository(baseURL, apiKey, table string, httpClient *http.Client, logger *zap.Logger) *RESTKnowledgeRepository {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RESTKnowledgeRepository{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		table:      table,
		httpClient: httpClient,
		logger:     logger,
	}
}

// restRow mirrors the JSON payload; nullable columns decode to nil.
type restRow struct {
	Project *string `json:"project"`
	Type    *string `json:"type"`
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Tags    *string `json:"tags"`
}

func (r restRow) toModel() models.KnowledgeRow {
	return models.KnowledgeRow{
		Project: deref(r.Project),
		Type:    deref(r.Type),
		Title:   deref(r.Title),
		Content: deref(r.Content),
		Tags:    deref(r.Tags),
	}
}

func (r *RESTKnowledgeRepository) ListEssentials(ctx context.Context, types []string, limit int) ([]models.KnowledgeRow, error) {
	quoted := make([]string, len(types))
	for i, t := range types {
		quoted[i] = quoteFilterValue(t)
	}

	params := url.Values{}
	params.Set("type", "in.("+strings.Join(quoted, ",")+")")
	return r.fetch(ctx, params, limit)
}

func (r *RESTKnowledgeRepository) Search(ctx context.Context, queryText string, limit int) ([]models.KnowledgeRow, error) {
	params := url.Values{}
	params.Set("or", SearchFilter(queryText))
	return r.fetch(ctx, params, limit)
}

// SearchFilter renders the PostgREST "or" filter matching queryText against
// every searchable column. The value is LIKE-escaped and double-quoted so
// reserved characters in user input cannot alter the filter.
func SearchFilter(queryText string) string {
	value := quoteFilterValue("*" + restLikeEscaper.Replace(queryText) + "*")

	clauses := make([]string, len(searchColumns))
	for i, column := range searchColumns {
		clauses[i] = column + ".ilike." + value
	}
	return "(" + strings.Join(clauses, ",") + ")"
}

func (r *RESTKnowledgeRepository) fetch(ctx context.Context, params url.Values, limit int) ([]models.KnowledgeRow, error) {
	params.Set("select", restSelect)
	params.Set("limit", strconv.Itoa(limit))

	endpoint := r.baseURL + "/rest/v1/" + url.PathEscape(r.table) + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", r.apiKey)
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StoreError{StatusCode: resp.StatusCode, Message: restErrorMessage(body)}
	}

	var decoded []restRow
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode knowledge response: %w", err)
	}

	rows := make([]models.KnowledgeRow, 0, len(decoded))
	for _, row := range decoded {
		rows = append(rows, row.toModel())
	}

	r.logger.Debug("Knowledge rows fetched", zap.Int("rows", len(rows)))
	return rows, nil
}

// StoreError is a non-success answer from the REST store. Error returns the
// store's own message so it can be shown verbatim in diagnostics.
type StoreError struct {
	StatusCode int
	Message    string
}

func (e *StoreError) Error() string {
	return e.Message
}

func restErrorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(body))
}

// A literal '*' cannot be expressed in a PostgREST like pattern, so it
// becomes the single-character wildcard. The doubled backslashes survive
// the quoted-value unescaping below.
var restLikeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `_`)

var quotedValueEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quoteFilterValue(s string) string {
	return `"` + quotedValueEscaper.Replace(s) + `"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
