package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"portfolio-assistant/internal/models"
	"portfolio-assistant/internal/repository"
	"portfolio-assistant/pkg/config"
	"portfolio-assistant/pkg/logger"
	"portfolio-assistant/pkg/postgres"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func main() {
	file := flag.String("file", "cmd/seed/knowledge.example.yaml", "YAML file with knowledge rows")
	replace := flag.Bool("replace", false, "delete existing rows before seeding")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Store.Driver != config.StoreDriverPostgres {
		log.Fatalf("Seeding requires STORE_DRIVER=%s, got %q", config.StoreDriverPostgres, cfg.Store.Driver)
	}

	// Initialize logger
	if err := logger.Init(&cfg.Logger); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	appLogger := logger.Get()

	data, err := os.ReadFile(*file)
	if err != nil {
		appLogger.Fatal("Failed to read seed file", zap.String("path", *file), zap.Error(err))
	}
	rows, err := parseSeedFile(data)
	if err != nil {
		appLogger.Fatal("Invalid seed file", zap.String("path", *file), zap.Error(err))
	}

	// Connect to database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	knowledgeRepo := repository.NewKnowledgeRepository(db, cfg.Store.Table, appLogger)

	appLogger.Info("Starting knowledge seeding...", zap.String("file", *file), zap.Int("rows", len(rows)))

	if err := seedKnowledge(ctx, knowledgeRepo, rows, *replace, appLogger); err != nil {
		appLogger.Fatal("Failed to seed knowledge", zap.Error(err))
	}

	appLogger.Info("Knowledge seeding completed successfully!")
}

type seedFile struct {
	Rows []models.KnowledgeRow `yaml:"rows"`
}

// parseSeedFile decodes and validates the seed rows. Unknown fields are
// rejected.
func parseSeedFile(data []byte) ([]models.KnowledgeRow, error) {
	var file seedFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for i := range file.Rows {
		row := &file.Rows[i]
		row.Type = strings.TrimSpace(row.Type)
		row.Content = strings.TrimSpace(row.Content)
		if row.Type == "" {
			return nil, fmt.Errorf("row %d: type is required", i+1)
		}
		if row.Content == "" {
			return nil, fmt.Errorf("row %d: content is required", i+1)
		}
	}

	return file.Rows, nil
}

type knowledgeWriter interface {
	EnsureSchema(ctx context.Context) error
	DeleteAll(ctx context.Context) (int64, error)
	Create(ctx context.Context, row *models.KnowledgeRow) error
}

func seedKnowledge(ctx context.Context, repo knowledgeWriter, rows []models.KnowledgeRow, replace bool, logger *zap.Logger) error {
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	if replace {
		deleted, err := repo.DeleteAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear knowledge table: %w", err)
		}
		logger.Info("Cleared existing knowledge", zap.Int64("deleted", deleted))
	}

	for i := range rows {
		row := rows[i]
		if !models.KnowledgeType(row.Type).Known() {
			logger.Warn("Unknown knowledge type, prompts may not use it",
				zap.String("type", row.Type),
				zap.String("title", row.Title),
			)
		}

		row.ID = uuid.New()
		if err := repo.Create(ctx, &row); err != nil {
			return fmt.Errorf("failed to create row %d (%s): %w", i+1, row.Title, err)
		}

		logger.Info("Created knowledge entry",
			zap.String("type", row.Type),
			zap.String("title", row.Title),
			zap.Int("content_length", len(row.Content)),
		)
	}

	return nil
}
