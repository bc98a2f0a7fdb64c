// Package config provides configuration loading and structs for tanya.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned when the configured API key environment variable is unset.
var ErrMissingCredential = errors.New("missing credential")

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	History    HistoryConfig    `yaml:"history"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds on-disk locations. IndexPath is a directory owned by the vector index.
type StorageConfig struct {
	IndexPath        string `yaml:"index_path"`
	DocumentsDir     string `yaml:"documents_dir"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
}

// EmbeddingConfig selects the embedding model. Model must stay the same between ingestion and retrieval.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // ollama, openai, onnx, hash
	Model      string `yaml:"model"`
	ModelPath  string `yaml:"model_path"`
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// GenerationConfig selects the answer-generation backend.
type GenerationConfig struct {
	Provider       string  `yaml:"provider"` // openai (any OpenAI-compatible API, Groq by default), ollama
	Model          string  `yaml:"model"`
	BaseURL        string  `yaml:"base_url"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	Temperature    *float32 `yaml:"temperature"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// SamplingTemperature returns the configured temperature; 0.2 when unset. An explicit 0 is kept.
func (g *GenerationConfig) SamplingTemperature() float32 {
	if g.Temperature != nil {
		return *g.Temperature
	}
	return defaultTemperature
}

// IngestConfig holds chunking settings.
type IngestConfig struct {
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap *int     `yaml:"chunk_overlap"`
	Extensions   []string `yaml:"extensions"`
}

// Overlap returns the configured chunk overlap; defaults to 60 when unset.
func (c *IngestConfig) Overlap() int {
	if c.ChunkOverlap != nil {
		return *c.ChunkOverlap
	}
	return defaultChunkOverlap
}

// RetrievalConfig holds top-k bounds for interactive questions.
type RetrievalConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
}

// EvaluationConfig holds evaluation run settings.
type EvaluationConfig struct {
	TopK          int    `yaml:"top_k"`
	MaxCases      int    `yaml:"max_cases"`
	Threshold     *int   `yaml:"threshold"`
	QuestionsPath string `yaml:"questions_path"`
	AnswersPath   string `yaml:"answers_path"`
}

// PassThreshold returns the minimum fuzzy score counted as correct; 70 when unset.
func (e *EvaluationConfig) PassThreshold() int {
	if e.Threshold != nil {
		return *e.Threshold
	}
	return defaultThreshold
}

// HistoryConfig holds the session history window.
type HistoryConfig struct {
	Size int `yaml:"size"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Storage.DocumentsDir = expandPath(cfg.Storage.DocumentsDir, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.Evaluation.QuestionsPath != "" {
		cfg.Evaluation.QuestionsPath = expandPath(cfg.Evaluation.QuestionsPath, configDir)
	}
	if cfg.Evaluation.AnswersPath != "" {
		cfg.Evaluation.AnswersPath = expandPath(cfg.Evaluation.AnswersPath, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with all defaults applied, for running without a config file.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks values that no component can work around.
func (c *Config) Validate() error {
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("invalid config: chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if o := c.Ingest.Overlap(); o < 0 || o >= c.Ingest.ChunkSize {
		return fmt.Errorf("invalid config: chunk_overlap must be in [0, chunk_size), got %d", o)
	}
	if t := c.Generation.SamplingTemperature(); t < 0 || t > 2 {
		return fmt.Errorf("invalid config: temperature must be in [0, 2], got %.2f", t)
	}
	if t := c.Evaluation.PassThreshold(); t < 0 || t > 100 {
		return fmt.Errorf("invalid config: evaluation threshold must be in [0, 100], got %d", t)
	}
	switch c.Embedding.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderONNX, ProviderHash:
	default:
		return fmt.Errorf("invalid config: unknown embedding provider %q", c.Embedding.Provider)
	}
	switch c.Generation.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("invalid config: unknown generation provider %q", c.Generation.Provider)
	}
	return nil
}

// LoadEnv loads .env files that exist among paths into the process environment.
// Variables already set in the environment win.
func LoadEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// APIKey returns the generation credential from the environment.
// Returns ErrMissingCredential when the variable is empty, and rejects an OpenAI-style key
// configured against Groq, which always fails authentication.
func (g *GenerationConfig) APIKey() (string, error) {
	if g.APIKeyEnv == "" {
		return "", fmt.Errorf("%w: generation.api_key_env is empty", ErrMissingCredential)
	}
	key := strings.TrimSpace(os.Getenv(g.APIKeyEnv))
	if key == "" {
		return "", fmt.Errorf("%w: %s not found; set it as an environment variable or in a .env file", ErrMissingCredential, g.APIKeyEnv)
	}
	if strings.Contains(g.BaseURL, "groq.com") && strings.HasPrefix(key, "sk-") {
		return "", fmt.Errorf("invalid credential: %s looks like an OpenAI key (starts with \"sk-\"); use a Groq API key", g.APIKeyEnv)
	}
	return key, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
