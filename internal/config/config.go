package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Extractor ExtractorConfig `yaml:"extractor" mapstructure:"extractor"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Retrieval RetrievalConfig `yaml:"retrieval" mapstructure:"retrieval"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings for the extraction and
// generation oracles.
type AnthropicConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	ExtractModel  string `yaml:"extract_model" mapstructure:"extract_model"`
	ChatModel     string `yaml:"chat_model" mapstructure:"chat_model"`
	MaxTokens     int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	RetryAttempts int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// OpenAIConfig holds embedding provider settings.
type OpenAIConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`
	MaxBatchSize   int    `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	Dimensions     int    `yaml:"dimensions" mapstructure:"dimensions"`
}

// ExtractorConfig configures page-text extraction.
type ExtractorConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// PipelineConfig configures batch segmentation and the completion gate.
type PipelineConfig struct {
	WordCap          int `yaml:"word_cap" mapstructure:"word_cap"`
	MaxPagesPerBatch int `yaml:"max_pages_per_batch" mapstructure:"max_pages_per_batch"`
	// StrictCompletion controls the document-level gate when some batches
	// fail mid-run: true marks the document failed, false concludes it
	// completed with failed-batch counts recorded.
	StrictCompletion bool `yaml:"strict_completion" mapstructure:"strict_completion"`
}

// RetrievalConfig configures embedding generation and grounded chat.
type RetrievalConfig struct {
	MinPageChars        int     `yaml:"min_page_chars" mapstructure:"min_page_chars"`
	TopK                int     `yaml:"top_k" mapstructure:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	ReadinessRatio      float64 `yaml:"readiness_ratio" mapstructure:"readiness_ratio"`
	HistoryLimit        int     `yaml:"history_limit" mapstructure:"history_limit"`
}

// BatchConfig bounds cross-document concurrency.
type BatchConfig struct {
	MaxConcurrentDocuments int `yaml:"max_concurrent_documents" mapstructure:"max_concurrent_documents"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DOCINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "docintel.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.extract_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.chat_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.retry_attempts", 3)
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.max_batch_size", 100)
	v.SetDefault("openai.dimensions", 1536)
	v.SetDefault("extractor.provider", "local")
	v.SetDefault("extractor.pdftotext_path", "pdftotext")
	v.SetDefault("pipeline.word_cap", 5000)
	v.SetDefault("pipeline.max_pages_per_batch", 10)
	v.SetDefault("pipeline.strict_completion", false)
	v.SetDefault("retrieval.min_page_chars", 50)
	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.similarity_threshold", 0.3)
	v.SetDefault("retrieval.readiness_ratio", 0.8)
	v.SetDefault("retrieval.history_limit", 10)
	v.SetDefault("batch.max_concurrent_documents", 2)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
