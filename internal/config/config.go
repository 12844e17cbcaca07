package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	DB     DBConfig     `mapstructure:"db"`
	LLM    LLMConfig    `mapstructure:"llm"`
	NLU    NLUConfig    `mapstructure:"nlu"`
	Memory MemoryConfig `mapstructure:"memory"`
	Audit  AuditConfig  `mapstructure:"audit"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Addr       string          `mapstructure:"addr"`
	CORSOrigin string          `mapstructure:"cors_origin"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"maxOpenConns"`
}

type LLMConfig struct {
	Generator ProviderConfig `mapstructure:"generator"`
}

type ProviderConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	APIKeyEnv string `mapstructure:"api_key_env"`
	APIKey    string `mapstructure:"api_key"`
}

// NLUConfig bounds the remote intent extraction call.
type NLUConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type MemoryConfig struct {
	Backend string        `mapstructure:"backend"` // lru or redis
	Size    int           `mapstructure:"size"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuditConfig struct {
	QueueSize    int           `mapstructure:"queue_size"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// LoadConfig loads configuration from config.yaml and environment variables
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Set config file locations
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./deploy/")
	v.AddConfigPath("./")
	v.AddConfigPath("$HOME/.loom/")
	v.AddConfigPath("/etc/loom/")

	setDefaults(v)

	// Enable environment variable override with LOOM_ prefix
	v.SetEnvPrefix("LOOM")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":4000")
	v.SetDefault("server.cors_origin", "http://localhost:3000")
	v.SetDefault("server.rate_limit.rps", 2.0)
	v.SetDefault("server.rate_limit.burst", 5)
	v.SetDefault("db.maxOpenConns", 10)
	v.SetDefault("llm.generator.provider", "gemini")
	v.SetDefault("llm.generator.model", "gemini-1.5-flash")
	v.SetDefault("llm.generator.api_key_env", "GEMINI_API_KEY")
	v.SetDefault("nlu.timeout", 5*time.Second)
	v.SetDefault("memory.backend", "lru")
	v.SetDefault("memory.size", 10000)
	v.SetDefault("memory.ttl", 30*time.Minute)
	v.SetDefault("audit.queue_size", 1024)
	v.SetDefault("audit.drain_timeout", 5*time.Second)
	v.SetDefault("log.level", "info")
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	switch c.Memory.Backend {
	case "lru":
		if c.Memory.Size <= 0 {
			return fmt.Errorf("memory.size must be positive, got %d", c.Memory.Size)
		}
	case "redis":
		if c.Memory.Redis.Addr == "" {
			return fmt.Errorf("memory.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported memory backend: %s", c.Memory.Backend)
	}
	if c.Memory.TTL <= 0 {
		return fmt.Errorf("memory.ttl must be positive")
	}
	if c.Audit.QueueSize <= 0 {
		return fmt.Errorf("audit.queue_size must be positive")
	}
	if c.Server.RateLimit.RPS <= 0 || c.Server.RateLimit.Burst <= 0 {
		return fmt.Errorf("server.rate_limit needs positive rps and burst")
	}
	return nil
}
