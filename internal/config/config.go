package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Buffer    BufferConfig    `mapstructure:"buffer"`
	Writer    WriterConfig    `mapstructure:"writer"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Redis     RedisConfig     `mapstructure:"redis"`
	DLQ       DLQConfig       `mapstructure:"dlq"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type StorageConfig struct {
	// Backend selects the event store: "memory" or "postgres".
	Backend        string `mapstructure:"backend"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Database       string `mapstructure:"database"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// ConnString builds the pgx connection string.
func (s StorageConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, s.Port, s.Database, s.SSLMode)
}

type BufferConfig struct {
	Shards        int           `mapstructure:"shards"`
	MaxBatchSize  int           `mapstructure:"max_batch_size"`
	MaxBatchAge   time.Duration `mapstructure:"max_batch_age"`
	ShardCapacity int           `mapstructure:"shard_capacity"`
	OfferWait     time.Duration `mapstructure:"offer_wait"`
}

type WriterConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	CommitTimeout  time.Duration `mapstructure:"commit_timeout"`
}

type IngestionConfig struct {
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type DLQConfig struct {
	// Backend selects dead-lettering: "file", "jetstream", or "none".
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	NATSURL string `mapstructure:"nats_url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.host", "localhost")
	v.SetDefault("storage.port", 5432)
	v.SetDefault("storage.user", "siem")
	v.SetDefault("storage.password", "siem")
	v.SetDefault("storage.database", "siem")
	v.SetDefault("storage.ssl_mode", "disable")
	v.SetDefault("storage.migrations_path", "migrations")
	v.SetDefault("buffer.shards", 4)
	v.SetDefault("buffer.max_batch_size", 100)
	v.SetDefault("buffer.max_batch_age", "2s")
	v.SetDefault("buffer.shard_capacity", 1000)
	v.SetDefault("buffer.offer_wait", "50ms")
	v.SetDefault("writer.max_attempts", 5)
	v.SetDefault("writer.initial_backoff", "200ms")
	v.SetDefault("writer.max_backoff", "5s")
	v.SetDefault("writer.commit_timeout", "10s")
	v.SetDefault("ingestion.rate_limit_enabled", false)
	v.SetDefault("ingestion.rate_limit_requests", 10000)
	v.SetDefault("ingestion.rate_limit_window", "1m")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("dlq.backend", "file")
	v.SetDefault("dlq.dir", "dlq")
	v.SetDefault("dlq.nats_url", "nats://localhost:4222")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mini-siem")
	}

	// Environment variables override
	v.SetEnvPrefix("SIEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.DLQ.Backend {
	case "file", "jetstream", "none":
	default:
		return fmt.Errorf("unknown dlq backend %q", c.DLQ.Backend)
	}
	if c.Buffer.Shards < 1 {
		return fmt.Errorf("buffer.shards must be at least 1")
	}
	return nil
}
