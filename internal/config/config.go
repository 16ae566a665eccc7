package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	SourcesPath string           `json:"sources_path"`
	Port        int              `json:"port"`
	APISecret   string           `json:"api_secret"`
	TokenTTL    int              `json:"token_ttl_hours"`
	CORSOrigins []string         `json:"cors_origins"`
	RateLimit   int              `json:"rate_limit_seconds"`
	RefreshCron string           `json:"refresh_cron"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Chat        ChatConfig       `json:"chat"`
	VectorStore VecStoreConfig   `json:"vector_store"`
	AI          AIConfig         `json:"ai"`
}

type ChatConfig struct {
	TopK           int `json:"top_k"`
	HistoryLimit   int `json:"history_limit"`
	ChunkSize      int `json:"chunk_size"`
	FetchTimeout   int `json:"fetch_timeout_seconds"`
	GenTimeout     int `json:"generation_timeout_seconds"`
	GenMaxAttempts int `json:"generation_max_attempts"`
}

type VecStoreConfig struct {
	Type     string         `json:"type"`
	Database DatabaseConfig `json:"database"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type ProviderConfig struct {
	Provider string                 `json:"provider"`
	Model    string                 `json:"model"`
	Data     map[string]interface{} `json:"data"`
}

type AIConfig struct {
	Generators        []ProviderConfig `json:"generators"`
	Embedders         []ProviderConfig `json:"embedders"`
	EmbedCacheSize    int              `json:"embed_cache_size"`
	EmbedCacheTTLMins int              `json:"embed_cache_ttl_minutes"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.SourcesPath == "" {
		cfg.SourcesPath = "sources_config.json"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Chat.TopK <= 0 {
		cfg.Chat.TopK = 4
	}
	if cfg.Chat.HistoryLimit <= 0 {
		cfg.Chat.HistoryLimit = 50
	}
	if cfg.Chat.ChunkSize <= 0 {
		cfg.Chat.ChunkSize = 500
	}
	if cfg.Chat.FetchTimeout <= 0 {
		cfg.Chat.FetchTimeout = 30
	}
	if cfg.Chat.GenTimeout <= 0 {
		cfg.Chat.GenTimeout = 60
	}
	if cfg.Chat.GenMaxAttempts <= 0 {
		cfg.Chat.GenMaxAttempts = 3
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	switch cfg.VectorStore.Type {
	case "memory":
	case "postgres":
		db := cfg.VectorStore.Database
		if db.DSN == "" && (db.Host == "" || db.DBName == "" || db.User == "") {
			return nil, fmt.Errorf("vector_store.database host/user/dbname (or dsn) are required for postgres store")
		}
	default:
		return nil, fmt.Errorf("vector_store.type must be memory or postgres")
	}
	if len(cfg.AI.Embedders) == 0 {
		return nil, fmt.Errorf("ai.embedders is required")
	}
	if len(cfg.AI.Generators) == 0 {
		return nil, fmt.Errorf("ai.generators is required")
	}
	if cfg.AI.EmbedCacheSize == 0 {
		cfg.AI.EmbedCacheSize = 4096
	}
	if cfg.AI.EmbedCacheTTLMins == 0 {
		cfg.AI.EmbedCacheTTLMins = 120
	}
	return &cfg, nil
}
