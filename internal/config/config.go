package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"oracle-gateway/internal/store"
)

const (
	GeneratorEnumerated = "enumerated"
	GeneratorPrompted   = "prompted"
)

// Config is read by viper from defaults, an optional YAML file and
// ORACLE_* environment variables, in increasing priority.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Generator GeneratorConfig `mapstructure:"generator"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type StoreConfig struct {
	Backend         string        `mapstructure:"backend"` // memory | sqlite | redis
	TTL             time.Duration `mapstructure:"ttl"`     // 0 = never expire
	Prefix          string        `mapstructure:"prefix"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
}

type GeneratorConfig struct {
	Kind        string `mapstructure:"kind"`         // enumerated | prompted
	AnswersFile string `mapstructure:"answers_file"` // optional YAML answer list
	Placeholder string `mapstructure:"placeholder"`
}

type LLMConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Temperature   float32       `mapstructure:"temperature"`
	TopK          int           `mapstructure:"top_k"`
	TopP          float32       `mapstructure:"top_p"`
	RepeatPenalty float32       `mapstructure:"repeat_penalty"`
	RepeatLastN   int           `mapstructure:"repeat_last_n"`
	Timeout       time.Duration `mapstructure:"timeout"` // per answer, retries included
	MaxRetries    int           `mapstructure:"max_retries"`
}

type OracleConfig struct {
	SingleFlight bool `mapstructure:"single_flight"`
}

type LogConfig struct {
	Env   string `mapstructure:"env"`
	Level string `mapstructure:"level"`
}

// unprefixed variable names accepted for older deployments
var legacyEnv = map[string][]string{
	"server.port":      {"PORT"},
	"store.redis_addr": {"REDIS_ADDR", "REDIS_ADDRESS"},
	"llm.base_url":     {"LLM_BASE_URL"},
	"llm.api_key":      {"LLM_API_KEY", "OPENAI_API_KEY"},
	"log.env":          {"ENV"},
	"log.level":        {"LOG_LEVEL"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 4*1024)

	v.SetDefault("store.backend", store.BackendMemory)
	v.SetDefault("store.ttl", time.Duration(0))
	v.SetDefault("store.prefix", "oracle")
	v.SetDefault("store.cleanup_interval", 5*time.Minute)
	v.SetDefault("store.sqlite_path", "oracle.db")
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)

	v.SetDefault("generator.kind", GeneratorEnumerated)
	v.SetDefault("generator.answers_file", "")
	v.SetDefault("generator.placeholder", "Ask again later.")

	v.SetDefault("llm.base_url", "http://127.0.0.1:8081")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "llama2-chat")
	v.SetDefault("llm.max_tokens", 20)
	v.SetDefault("llm.temperature", 0.25)
	v.SetDefault("llm.top_k", 5)
	v.SetDefault("llm.top_p", 0.25)
	v.SetDefault("llm.repeat_penalty", 1.5)
	v.SetDefault("llm.repeat_last_n", 20)
	v.SetDefault("llm.timeout", 20*time.Second)
	v.SetDefault("llm.max_retries", 2)

	v.SetDefault("oracle.single_flight", false)

	v.SetDefault("log.env", "production")
	v.SetDefault("log.level", "info")
}

// Load reads configuration. An empty path skips the config file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ORACLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		// ORACLE_* wins over the legacy names
		args := append([]string{key, "ORACLE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}

	switch c.Store.Backend {
	case store.BackendMemory:
	case store.BackendSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite backend"))
		}
	case store.BackendRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("store.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not one of memory, sqlite, redis", c.Store.Backend))
	}
	if c.Store.TTL < 0 {
		errs = append(errs, errors.New("store.ttl must not be negative"))
	}

	if c.Generator.Placeholder == "" {
		errs = append(errs, errors.New("generator.placeholder is required"))
	}

	switch c.Generator.Kind {
	case GeneratorEnumerated:
	case GeneratorPrompted:
		if c.LLM.BaseURL == "" {
			errs = append(errs, errors.New("llm.base_url is required for the prompted generator"))
		}
		if c.LLM.Model == "" {
			errs = append(errs, errors.New("llm.model is required for the prompted generator"))
		}
		if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 256 {
			errs = append(errs, fmt.Errorf("llm.max_tokens must be within 1..256, got %d", c.LLM.MaxTokens))
		}
		if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
			errs = append(errs, errors.New("llm.temperature must be between 0 and 2"))
		}
		if c.LLM.TopP < 0 || c.LLM.TopP > 1 {
			errs = append(errs, errors.New("llm.top_p must be between 0 and 1"))
		}
	default:
		errs = append(errs, fmt.Errorf("generator.kind %q is not one of enumerated, prompted", c.Generator.Kind))
	}

	return errors.Join(errs...)
}

// StoreOptions converts to the store package configuration.
func (c *Config) StoreOptions() store.Config {
	return store.Config{
		Backend:         c.Store.Backend,
		TTL:             c.Store.TTL,
		Prefix:          c.Store.Prefix,
		CleanupInterval: c.Store.CleanupInterval,
		SQLitePath:      c.Store.SQLitePath,
		RedisAddr:       c.Store.RedisAddr,
		RedisPassword:   c.Store.RedisPassword,
		RedisDB:         c.Store.RedisDB,
	}
}
