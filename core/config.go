package core

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the process-wide configuration, loaded once at startup from
// config.json with environment overrides. .env is loaded first so either
// source can supply the environment.
type Config struct {
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	ChatModel      string `json:"chat_model"`
	EmbeddingModel string `json:"embedding_model"`
	WhisperModel   string `json:"whisper_model"`

	// Custom vision endpoint; when both are set it takes precedence over
	// the standard API.
	GPTBaseURL     string `json:"gpt_base_url"`
	GPTBearerToken string `json:"gpt_bearer_token"`

	PostgresURL string `json:"postgres_url"`
	VectorStore string `json:"vector_store"` // memory, pgvector, milvus

	DataDir       string `json:"data_dir"`
	FrameInterval int    `json:"frame_interval"` // seconds between sampled frames
	BatchSize     int    `json:"batch_size"`
	MaxWorkers    int    `json:"max_workers"`
	Port          string `json:"port"`
}

// VisionBackendKind tags the active vision transport variant.
type VisionBackendKind int

const (
	BackendNone VisionBackendKind = iota
	BackendStandardAPI
	BackendCustomHTTP
)

func (k VisionBackendKind) String() string {
	switch k {
	case BackendStandardAPI:
		return "standard"
	case BackendCustomHTTP:
		return "custom"
	default:
		return "none"
	}
}

// VisionBackendConfig is an immutable snapshot of which vision transport to
// use for one job. It is resolved once at job start; nothing re-reads ambient
// configuration mid-call.
type VisionBackendConfig struct {
	Kind        VisionBackendKind
	APIKey      string
	BaseURL     string
	BearerToken string
	Model       string
}

// Configured reports whether any backend is usable.
func (b VisionBackendConfig) Configured() bool { return b.Kind != BackendNone }

// LoadConfig reads .env, then config.json, then environment overrides, and
// fills defaults for anything still unset.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if data, err := os.ReadFile("config.json"); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config.json: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.APIKey, "OPENAI_API_KEY")
	set(&cfg.BaseURL, "BASE_URL")
	set(&cfg.ChatModel, "CHAT_MODEL")
	set(&cfg.EmbeddingModel, "EMBEDDING_MODEL")
	set(&cfg.WhisperModel, "WHISPER_MODEL")
	set(&cfg.GPTBaseURL, "GPT_BASE_URL")
	set(&cfg.GPTBearerToken, "GPT_BEARER_TOKEN")
	set(&cfg.PostgresURL, "POSTGRES_URL")
	set(&cfg.VectorStore, "STORE")
	set(&cfg.DataDir, "DATA_DIR")
	set(&cfg.Port, "PORT")

	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setInt(&cfg.FrameInterval, "FRAME_INTERVAL")
	setInt(&cfg.BatchSize, "BATCH_SIZE")
	setInt(&cfg.MaxWorkers, "MAX_WORKERS")
}

func applyDefaults(cfg *Config) {
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.WhisperModel == "" {
		cfg.WhisperModel = "whisper-1"
	}
	if cfg.VectorStore == "" {
		cfg.VectorStore = "memory"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 5
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 5
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
}

// VisionBackend resolves the active transport variant. A fully configured
// custom endpoint wins over the standard API key.
func (c *Config) VisionBackend() VisionBackendConfig {
	if strings.TrimSpace(c.GPTBaseURL) != "" && strings.TrimSpace(c.GPTBearerToken) != "" {
		return VisionBackendConfig{
			Kind:        BackendCustomHTTP,
			BaseURL:     c.GPTBaseURL,
			BearerToken: c.GPTBearerToken,
			Model:       c.ChatModel,
		}
	}
	if strings.TrimSpace(c.APIKey) != "" {
		return VisionBackendConfig{
			Kind:    BackendStandardAPI,
			APIKey:  c.APIKey,
			BaseURL: c.BaseURL,
			Model:   c.ChatModel,
		}
	}
	return VisionBackendConfig{Kind: BackendNone}
}

// HasVisionBackend reports whether the process can perform frame analysis.
func (c *Config) HasVisionBackend() bool { return c.VisionBackend().Configured() }

// Validate checks the fields the analysis pipeline cannot run without.
func (c *Config) Validate() error {
	var problems []string
	if !c.HasVisionBackend() {
		problems = append(problems, "either OPENAI_API_KEY or GPT_BASE_URL+GPT_BEARER_TOKEN is required")
	}
	if c.FrameInterval <= 0 {
		problems = append(problems, "frame_interval must be positive")
	}
	if c.BatchSize <= 0 {
		problems = append(problems, "batch_size must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}
