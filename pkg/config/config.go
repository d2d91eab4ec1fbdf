// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Corpus, Search, Redis, Kafka, Postgres, Logging, Metrics).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Search   SearchConfig   `yaml:"search"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Postgres PostgresConfig `yaml:"postgres"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// CORSOrigins lists browser origins allowed to call the API; empty
	// disables CORS headers.
	CORSOrigins []string `yaml:"corsOrigins"`
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64 `yaml:"rateLimit"`
	RateBurst int     `yaml:"rateBurst"`
}

// CorpusConfig points at the directory of document records and selects the
// load policy for malformed files.
type CorpusConfig struct {
	Dir         string `yaml:"dir"`
	SkipInvalid bool   `yaml:"skipInvalid"`
}

// SearchConfig holds the scoring weights and the ranking policy.
type SearchConfig struct {
	PhraseWeight  int           `yaml:"phraseWeight"`
	KeywordWeight int           `yaml:"keywordWeight"`
	MinScore      int           `yaml:"minScore"`
	TopN          int           `yaml:"topN"`
	MaxResults    int           `yaml:"maxResults"`
	Window        int           `yaml:"window"`
	Workers       int           `yaml:"workers"`
	Timeout       time.Duration `yaml:"timeout"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
	CorpusReload    string `yaml:"corpusReload"`
}

// PostgresConfig holds PostgreSQL connection parameters for analytics
// snapshots.
type PostgresConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	Database         string        `yaml:"database"`
	User             string        `yaml:"user"`
	Password         string        `yaml:"password"`
	SSLMode          string        `yaml:"sslMode"`
	MaxOpenConns     int           `yaml:"maxOpenConns"`
	MaxIdleConns     int           `yaml:"maxIdleConns"`
	ConnMaxLifetime  time.Duration `yaml:"connMaxLifetime"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with local-development defaults. The corpus
// directory has no default and must be supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Search: SearchConfig{
			PhraseWeight:  20,
			KeywordWeight: 10,
			MinScore:      0,
			TopN:          1,
			MaxResults:    10,
			Window:        500,
			Timeout:       2 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "govdoc-search",
			Topics: KafkaTopics{
				AnalyticsEvents: "search-analytics",
				CorpusReload:    "corpus-reload",
			},
		},
		Postgres: PostgresConfig{
			Host:             "localhost",
			Port:             5432,
			Database:         "govdocsearch",
			User:             "govdocsearch",
			Password:         "localdev",
			SSLMode:          "disable",
			MaxOpenConns:     5,
			MaxIdleConns:     2,
			ConnMaxLifetime:  5 * time.Minute,
			SnapshotInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate reports configuration that would keep the service from answering
// queries meaningfully.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Corpus.Dir) == "" {
		errs = append(errs, errors.New("corpus.dir is required"))
	}
	if c.Search.PhraseWeight <= 0 {
		errs = append(errs, fmt.Errorf("search.phraseWeight must be positive, got %d", c.Search.PhraseWeight))
	}
	if c.Search.KeywordWeight <= 0 {
		errs = append(errs, fmt.Errorf("search.keywordWeight must be positive, got %d", c.Search.KeywordWeight))
	}
	if c.Search.MinScore < 0 {
		errs = append(errs, fmt.Errorf("search.minScore must not be negative, got %d", c.Search.MinScore))
	}
	if c.Search.TopN < 0 {
		errs = append(errs, fmt.Errorf("search.topN must not be negative, got %d", c.Search.TopN))
	}
	if c.Search.Window <= 0 {
		errs = append(errs, fmt.Errorf("search.window must be positive, got %d", c.Search.Window))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rateLimit must not be negative, got %g", c.Server.RateLimit))
	}
	if c.Search.MaxResults > 0 && c.Search.TopN > c.Search.MaxResults {
		c.Search.MaxResults = c.Search.TopN
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// applyEnvOverrides reads GDS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setInt("GDS_SERVER_PORT", &cfg.Server.Port)
	if v := os.Getenv("GDS_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("GDS_SERVER_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Server.RateLimit = f
		}
	}
	setInt("GDS_SERVER_RATE_BURST", &cfg.Server.RateBurst)
	setString("GDS_CORPUS_DIR", &cfg.Corpus.Dir)
	setBool("GDS_CORPUS_SKIP_INVALID", &cfg.Corpus.SkipInvalid)
	setInt("GDS_SEARCH_PHRASE_WEIGHT", &cfg.Search.PhraseWeight)
	setInt("GDS_SEARCH_KEYWORD_WEIGHT", &cfg.Search.KeywordWeight)
	setInt("GDS_SEARCH_MIN_SCORE", &cfg.Search.MinScore)
	setInt("GDS_SEARCH_TOP_N", &cfg.Search.TopN)
	setInt("GDS_SEARCH_WINDOW", &cfg.Search.Window)
	setInt("GDS_SEARCH_WORKERS", &cfg.Search.Workers)
	if v := os.Getenv("GDS_SEARCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Search.Timeout = d
		}
	}
	setBool("GDS_REDIS_ENABLED", &cfg.Redis.Enabled)
	setString("GDS_REDIS_ADDR", &cfg.Redis.Addr)
	setString("GDS_REDIS_PASSWORD", &cfg.Redis.Password)
	setBool("GDS_KAFKA_ENABLED", &cfg.Kafka.Enabled)
	if v := os.Getenv("GDS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setBool("GDS_POSTGRES_ENABLED", &cfg.Postgres.Enabled)
	setString("GDS_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("GDS_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("GDS_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("GDS_POSTGRES_USER", &cfg.Postgres.User)
	setString("GDS_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("GDS_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	setString("GDS_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("GDS_LOGGING_FORMAT", &cfg.Logging.Format)
	setBool("GDS_METRICS_ENABLED", &cfg.Metrics.Enabled)
	setInt("GDS_METRICS_PORT", &cfg.Metrics.Port)
}
