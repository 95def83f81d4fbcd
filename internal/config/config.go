package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all process configuration. It is loaded once in main and
// passed by pointer into every constructor; nothing reads the environment
// after startup.
type Config struct {
	// Server
	Host    string `mapstructure:"HOST"`
	Port    string `mapstructure:"PORT"`
	GinMode string `mapstructure:"GIN_MODE"`

	// Environment
	Environment string `mapstructure:"ENVIRONMENT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	// Auth
	APIToken string `mapstructure:"LAMB_API_TOKEN"`

	// Database
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Embeddings
	EmbeddingVendor     string `mapstructure:"EMBEDDING_VENDOR"`
	EmbeddingModel      string `mapstructure:"EMBEDDING_MODEL"`
	EmbeddingBaseURL    string `mapstructure:"EMBEDDING_BASE_URL"`
	EmbeddingAPIKey     string `mapstructure:"OPENAI_API_KEY"`
	EmbeddingDimensions int    `mapstructure:"EMBEDDING_DIMENSIONS"`

	// Timeouts
	EmbeddingTimeout   time.Duration `mapstructure:"EMBEDDING_TIMEOUT"`
	VectorStoreTimeout time.Duration `mapstructure:"VECTOR_STORE_TIMEOUT"`

	// Ingestion
	StoragePath     string `mapstructure:"STORAGE_PATH"`
	MaxUploadSize   int64  `mapstructure:"MAX_UPLOAD_SIZE"`
	InsertBatchSize int    `mapstructure:"INSERT_BATCH_SIZE"`
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("HOST", "0.0.0.0")
	viper.SetDefault("PORT", "9090")
	viper.SetDefault("GIN_MODE", "release")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DATABASE_URL", "postgres://localhost:5432/lamb_kb?sslmode=disable")
	viper.SetDefault("EMBEDDING_VENDOR", "local")
	viper.SetDefault("EMBEDDING_MODEL", "text-embedding-3-small")
	viper.SetDefault("EMBEDDING_BASE_URL", "https://api.openai.com/v1")
	viper.SetDefault("EMBEDDING_DIMENSIONS", 1536)
	viper.SetDefault("EMBEDDING_TIMEOUT", "60s")
	viper.SetDefault("VECTOR_STORE_TIMEOUT", "30s")
	viper.SetDefault("STORAGE_PATH", "./storage")
	viper.SetDefault("MAX_UPLOAD_SIZE", 50*1024*1024) // 50MB
	viper.SetDefault("INSERT_BATCH_SIZE", 64)

	// .env file is optional
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}
