package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppCfg struct {
	Port        string `mapstructure:"port"`
	MetricsPort string `mapstructure:"metrics_port"`
	Development bool   `mapstructure:"development"`
	// DevMode swaps the redis-backed stores for in-memory ones.
	DevMode bool `mapstructure:"dev_mode"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type MongoCfg struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type KafkaCfg struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	Enabled bool     `mapstructure:"enabled"`
}

type CacheCfg struct {
	// BatchSize caps a single page; requests with limit <= 0 are
	// clamped to it.
	BatchSize int `mapstructure:"batch_size"`
	// RetentionSeconds > 0 enables expiry of body keys and trimming of
	// timeline entries older than the window. 0 disables retention.
	RetentionSeconds int `mapstructure:"retention_seconds"`
	// ReactionPath selects the reaction backing for this deployment:
	// "cache" or "document". Never mix paths for the same room.
	ReactionPath string `mapstructure:"reaction_path"`
}

type RateLimitCfg struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxRequests   int  `mapstructure:"max_requests"`
	WindowSeconds int  `mapstructure:"window_seconds"`
}

type Config struct {
	App       AppCfg       `mapstructure:"app"`
	Redis     RedisCfg     `mapstructure:"redis"`
	Mongo     MongoCfg     `mapstructure:"mongo"`
	Kafka     KafkaCfg     `mapstructure:"kafka"`
	Cache     CacheCfg     `mapstructure:"cache"`
	RateLimit RateLimitCfg `mapstructure:"rate_limit"`
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.Cache.RetentionSeconds) * time.Second
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}

// Load reads config.yaml if present and applies APP_* env overrides
// (APP_REDIS_ADDR, APP_MONGO_URI, ...). Every field has a default so a
// bare environment still boots.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.port", "8084")
	v.SetDefault("app.metrics_port", "9100")
	v.SetDefault("app.development", false)
	v.SetDefault("app.dev_mode", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "chat")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "chatdb")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "chat-events")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("cache.batch_size", 30)
	v.SetDefault("cache.retention_seconds", 0)
	v.SetDefault("cache.reaction_path", "cache")
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.max_requests", 120)
	v.SetDefault("rate_limit.window_seconds", 60)

	if err := v.ReadInConfig(); err != nil {
		// config file is optional; env + defaults are enough
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
