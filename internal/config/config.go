// Package config loads and validates application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig indicates configuration that must abort startup. It is the
// only error class allowed to be fatal; everything per-query is contained.
var ErrInvalidConfig = errors.New("invalid configuration")

// Provider names accepted for LLM and embedding backends.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// Config holds all configuration values.
type Config struct {
	// LLM
	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	AnthropicAPIKey string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	OllamaHost      string `yaml:"ollama_host"`

	// Embeddings
	EmbedProvider  string `yaml:"embed_provider"`
	EmbedModel     string `yaml:"embed_model"`
	EmbedDimension int    `yaml:"embed_dimension"`

	// Vector store; empty DatabaseURL selects the in-memory index
	DatabaseURL string `yaml:"database_url"`

	// Ingestion
	DocsDir      string `yaml:"docs_dir"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`

	// Retrieval and orchestration
	MaxResults     int `yaml:"max_results"`
	MaxToolRounds  int `yaml:"max_tool_rounds"`
	MaxHistory     int `yaml:"max_history"`
	RequestTimeout int `yaml:"request_timeout_secs"`

	// Serving
	ListenAddr string `yaml:"listen_addr"`

	// Logging
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
}

// Level parses the configured log level name; unknown names mean info.
func (c Config) Level() slog.Level {
	return parseLogLevel(c.LogLevel)
}

// Load reads configuration from the environment, with an optional YAML
// overlay named by COURSERAG_CONFIG. A .env file in the working directory is
// honored when present. The result is validated; an invalid configuration
// aborts startup.
func Load() (Config, error) {
	// Best effort: absence of a .env file is the normal case.
	_ = godotenv.Load()

	cfg := Config{
		LLMProvider:     getEnv("COURSERAG_LLM_PROVIDER", ProviderAnthropic),
		LLMModel:        getEnv("COURSERAG_LLM_MODEL", "claude-sonnet-4-20250514"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),

		EmbedProvider:  getEnv("COURSERAG_EMBED_PROVIDER", ProviderOllama),
		EmbedModel:     getEnv("COURSERAG_EMBED_MODEL", "all-minilm:l6-v2"),
		EmbedDimension: getEnvInt("COURSERAG_EMBED_DIMENSION", 384),

		DatabaseURL: getEnv("COURSERAG_DATABASE_URL", ""),

		DocsDir:      getEnv("COURSERAG_DOCS_DIR", "./docs"),
		ChunkSize:    getEnvInt("COURSERAG_CHUNK_SIZE", 800),
		ChunkOverlap: getEnvInt("COURSERAG_CHUNK_OVERLAP", 100),

		MaxResults:     getEnvInt("COURSERAG_MAX_RESULTS", 5),
		MaxToolRounds:  getEnvInt("COURSERAG_MAX_TOOL_ROUNDS", 2),
		MaxHistory:     getEnvInt("COURSERAG_MAX_HISTORY", 2),
		RequestTimeout: getEnvInt("COURSERAG_REQUEST_TIMEOUT", 30),

		ListenAddr: getEnv("COURSERAG_LISTEN_ADDR", ":8000"),

		LogFile:  getEnv("COURSERAG_LOG_FILE", "/tmp/courserag.log"),
		LogLevel: getEnv("COURSERAG_LOG_LEVEL", "INFO"),
	}

	if path := os.Getenv("COURSERAG_CONFIG"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the startup-time invariants. Violations are fatal;
// silently degraded values (a zero result limit, overlap swallowing whole
// chunks) would mask failures at query time instead.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be in [0, %d)", ErrInvalidConfig, c.ChunkOverlap, c.ChunkSize)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("%w: max results must be positive, got %d", ErrInvalidConfig, c.MaxResults)
	}
	if c.MaxToolRounds <= 0 {
		return fmt.Errorf("%w: max tool rounds must be positive, got %d", ErrInvalidConfig, c.MaxToolRounds)
	}
	if c.MaxHistory <= 0 {
		return fmt.Errorf("%w: max history must be positive, got %d", ErrInvalidConfig, c.MaxHistory)
	}
	if c.EmbedDimension <= 0 {
		return fmt.Errorf("%w: embed dimension must be positive, got %d", ErrInvalidConfig, c.EmbedDimension)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request timeout must be positive, got %d", ErrInvalidConfig, c.RequestTimeout)
	}
	return nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read config file %s: %v", ErrInvalidConfig, path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: parse config file %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
