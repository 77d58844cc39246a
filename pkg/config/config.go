package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverREST     = "rest"

	// ProjectAllowListSize is the number of projects the assistant may name.
	ProjectAllowListSize = 5
)

type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Database   DatabaseConfig
	Knowledge  KnowledgeAPIConfig
	Completion CompletionConfig
	Chat       ChatConfig
	RAG        RAGConfig
	Logger     LoggerConfig
}

// Log output formats.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

type LoggerConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

type ServerConfig struct {
	Port         string        `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
}

type StoreConfig struct {
	Driver string `envconfig:"STORE_DRIVER" default:"postgres"`
	Table  string `envconfig:"STORE_TABLE" default:"portfolio_knowledge"`
}

type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD"`
	DBName   string `envconfig:"DB_NAME" default:"portfolio"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// KnowledgeAPIConfig points at a PostgREST compatible endpoint (e.g. Supabase)
// exposing the knowledge table.
type KnowledgeAPIConfig struct {
	URL     string        `envconfig:"KNOWLEDGE_API_URL"`
	APIKey  string        `envconfig:"KNOWLEDGE_API_KEY"`
	Timeout time.Duration `envconfig:"KNOWLEDGE_API_TIMEOUT" default:"10s"`
}

type CompletionConfig struct {
	URL         string        `envconfig:"COMPLETION_URL" default:"https://api.openai.com/v1/chat/completions"`
	APIKey      string        `envconfig:"COMPLETION_API_KEY"`
	Model       string        `envconfig:"COMPLETION_MODEL" default:"gpt-4o-mini"`
	Temperature float32       `envconfig:"COMPLETION_TEMPERATURE" default:"0.2"`
	Timeout     time.Duration `envconfig:"COMPLETION_TIMEOUT" default:"20s"`
}

type ChatConfig struct {
	Policy         string        `envconfig:"CHAT_POLICY" default:"concise"`
	MaxTokens      int           `envconfig:"CHAT_MAX_TOKENS"`
	OwnerName      string        `envconfig:"CHAT_OWNER_NAME" default:"the portfolio owner"`
	Projects       []string      `envconfig:"CHAT_PROJECTS" default:"Portfolio Assistant,Trail Tracker,Ledger Sync,Pixel Forge,Harbor CLI"`
	HistoryTurns   int           `envconfig:"CHAT_HISTORY_TURNS" default:"6"`
	RequestTimeout time.Duration `envconfig:"CHAT_REQUEST_TIMEOUT" default:"30s"`
}

type RAGConfig struct {
	EssentialTypes  []string `envconfig:"RAG_ESSENTIAL_TYPES" default:"bio,skills,education,certification,philosophy,personal,contact"`
	EssentialsLimit int      `envconfig:"RAG_ESSENTIALS_LIMIT" default:"12"`
	SearchLimit     int      `envconfig:"RAG_SEARCH_LIMIT" default:"12"`
	MaxRows         int      `envconfig:"RAG_MAX_ROWS" default:"16"`
}

func Load() (*Config, error) {
	// .env is optional; plain environment variables work the same way
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	return FromEnv()
}

// FromEnv binds the process environment without looking for .env files.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	cfg.Chat.Projects = cleanList(cfg.Chat.Projects)
	cfg.RAG.EssentialTypes = cleanList(cfg.RAG.EssentialTypes)
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.Chat.Policy = strings.ToLower(strings.TrimSpace(cfg.Chat.Policy))
	cfg.Logger.Format = strings.ToLower(strings.TrimSpace(cfg.Logger.Format))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that can never produce a working service.
// Missing credentials are not checked here; see Missing.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverREST:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}
	switch c.Logger.Format {
	case LogFormatJSON, LogFormatConsole:
	default:
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q", c.Logger.Format))
	}
	if c.Store.Table == "" {
		errs = append(errs, errors.New("STORE_TABLE must not be empty"))
	}
	if len(c.Chat.Projects) != ProjectAllowListSize {
		errs = append(errs, fmt.Errorf("CHAT_PROJECTS must list exactly %d projects, got %d", ProjectAllowListSize, len(c.Chat.Projects)))
	}
	if c.Chat.HistoryTurns < 0 {
		errs = append(errs, errors.New("CHAT_HISTORY_TURNS must not be negative"))
	}
	if c.Chat.MaxTokens < 0 {
		errs = append(errs, errors.New("CHAT_MAX_TOKENS must not be negative"))
	}
	if len(c.RAG.EssentialTypes) == 0 {
		errs = append(errs, errors.New("RAG_ESSENTIAL_TYPES must not be empty"))
	}
	if c.RAG.EssentialsLimit <= 0 || c.RAG.SearchLimit <= 0 || c.RAG.MaxRows <= 0 {
		errs = append(errs, errors.New("RAG limits must be positive"))
	}

	return errors.Join(errs...)
}

// Missing lists the credentials the chat endpoint needs but which are unset.
func (c *Config) Missing() []string {
	var missing []string

	switch c.Store.Driver {
	case StoreDriverREST:
		if c.Knowledge.URL == "" {
			missing = append(missing, "KNOWLEDGE_API_URL")
		}
		if c.Knowledge.APIKey == "" {
			missing = append(missing, "KNOWLEDGE_API_KEY")
		}
	default:
		if c.Database.Host == "" {
			missing = append(missing, "DB_HOST")
		}
		if c.Database.DBName == "" {
			missing = append(missing, "DB_NAME")
		}
	}

	if c.Completion.APIKey == "" {
		missing = append(missing, "COMPLETION_API_KEY")
	}
	if c.Completion.URL == "" {
		missing = append(missing, "COMPLETION_URL")
	}
	if c.Completion.Model == "" {
		missing = append(missing, "COMPLETION_MODEL")
	}

	return missing
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
