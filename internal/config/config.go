package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Embedding  EmbeddingConfig  `yaml:"embedding" mapstructure:"embedding"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" mapstructure:"retrieval"`
	Index      IndexConfig      `yaml:"index" mapstructure:"index"`
	Data       DataConfig       `yaml:"data" mapstructure:"data"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// JinaConfig holds Jina AI Reader settings, used when a direct fetch is blocked.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds settings for answer formatting through Claude.
// An empty key disables generation and answers fall back to raw context.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// EmbeddingConfig selects the sentence embedder.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"` // "ollama" or "hash"
	Model       string `yaml:"model" mapstructure:"model"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Dimensions  int    `yaml:"dimensions" mapstructure:"dimensions"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RetrievalConfig holds the ranking knobs.
type RetrievalConfig struct {
	Threshold            float64 `yaml:"threshold" mapstructure:"threshold"`
	TopK                 int     `yaml:"top_k" mapstructure:"top_k"`
	MaxTopK              int     `yaml:"max_top_k" mapstructure:"max_top_k"`
	DefinitionSimilarity float64 `yaml:"definition_similarity" mapstructure:"definition_similarity"`
}

// IndexConfig selects where embedded records live.
type IndexConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"` // "file" or "postgres"
	Path    string `yaml:"path" mapstructure:"path"`
}

// DataConfig holds local artifact paths.
type DataConfig struct {
	ChunksPath  string `yaml:"chunks_path" mapstructure:"chunks_path"`
	SourcesPath string `yaml:"sources_path" mapstructure:"sources_path"`
}

// ScrapeConfig configures page fetching.
type ScrapeConfig struct {
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxConcurrent int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
	JinaFallback  bool    `yaml:"jina_fallback" mapstructure:"jina_fallback"`
	MaxBodyBytes  int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	DefaultHouse  string  `yaml:"default_house" mapstructure:"default_house"`
}

// ResilienceConfig configures retries and the generation circuit breaker.
type ResilienceConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	BreakerFailures  int     `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	MaxSessions     int      `yaml:"max_sessions" mapstructure:"max_sessions"`
	SessionIdleMins int      `yaml:"session_idle_mins" mapstructure:"session_idle_mins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FUNDQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/mutual_funds.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_sessions", 1000)
	v.SetDefault("server.session_idle_mins", 60)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.timeout_secs", 30)
	v.SetDefault("embedding.provider", "ollama")
	v.SetDefault("embedding.model", "all-minilm")
	v.SetDefault("embedding.base_url", "http://localhost:11434")
	v.SetDefault("embedding.dimensions", 384)
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("embedding.timeout_secs", 30)
	v.SetDefault("retrieval.threshold", 0.2)
	v.SetDefault("retrieval.top_k", 10)
	v.SetDefault("retrieval.max_top_k", 15)
	v.SetDefault("retrieval.definition_similarity", 0.3)
	v.SetDefault("index.backend", "file")
	v.SetDefault("index.path", "rag_data/index.json")
	v.SetDefault("data.chunks_path", "rag_data/rag_chunks.json")
	v.SetDefault("data.sources_path", "sources.yaml")
	v.SetDefault("scrape.timeout_secs", 30)
	v.SetDefault("scrape.max_concurrent", 4)
	v.SetDefault("scrape.rate_per_second", 2.0)
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (compatible; fundqa/1.0)")
	v.SetDefault("scrape.jina_fallback", true)
	v.SetDefault("scrape.max_body_bytes", 4<<20)
	v.SetDefault("scrape.default_house", "UTI")
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 500)
	v.SetDefault("resilience.max_backoff_ms", 10000)
	v.SetDefault("resilience.multiplier", 2.0)
	v.SetDefault("resilience.jitter_fraction", 0.25)
	v.SetDefault("resilience.breaker_failures", 5)
	v.SetDefault("resilience.breaker_reset_secs", 30)

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	switch c.Embedding.Provider {
	case "ollama", "hash":
	default:
		return eris.Errorf("config: unknown embedding provider %q", c.Embedding.Provider)
	}
	switch c.Index.Backend {
	case "file", "postgres":
	default:
		return eris.Errorf("config: unknown index backend %q", c.Index.Backend)
	}
	if c.Retrieval.Threshold < -1 || c.Retrieval.Threshold > 1 {
		return eris.Errorf("config: retrieval.threshold %v outside [-1, 1]", c.Retrieval.Threshold)
	}
	if c.Retrieval.TopK <= 0 {
		return eris.New("config: retrieval.top_k must be positive")
	}
	if c.Retrieval.MaxTopK < c.Retrieval.TopK {
		c.Retrieval.MaxTopK = c.Retrieval.TopK
	}
	return nil
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
