package store

import (
	"context"
	"fmt"
	"time"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// AnswerStore persists question -> answer pairs.
//
// Get reports one of three outcomes: (value, true, nil) when the key is found,
// (nil, false, nil) when it is absent, and a non-nil error for any backend
// failure. Implementations never report a failure as a miss.
type AnswerStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Pinger is implemented by backends that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config selects and configures a backend.
type Config struct {
	Backend string
	// TTL applied to every write; 0 keeps entries until overwritten.
	TTL time.Duration
	// Prefix namespaces redis keys ("<prefix>:<question>").
	Prefix string

	CleanupInterval time.Duration // memory only
	SQLitePath      string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
}

// Open builds the configured backend wrapped with logging and metrics.
func Open(cfg Config) (AnswerStore, error) {
	var (
		inner AnswerStore
		err   error
	)

	switch cfg.Backend {
	case BackendMemory, "":
		inner = NewMemoryStore(cfg.TTL, cfg.CleanupInterval)
	case BackendSQLite:
		inner, err = NewSQLiteStore(cfg.SQLitePath, cfg.TTL)
	case BackendRedis:
		inner, err = NewRedisStore(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.Prefix,
			TTL:      cfg.TTL,
		})
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	backend := cfg.Backend
	if backend == "" {
		backend = BackendMemory
	}
	return Instrument(inner, backend), nil
}
