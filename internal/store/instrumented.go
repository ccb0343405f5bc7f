package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"oracle-gateway/internal/metrics"
	"oracle-gateway/pkg/logging/logging"
)

// InstrumentedStore wraps an AnswerStore with logging + metrics.
type InstrumentedStore struct {
	inner   AnswerStore
	backend string
}

// Instrument returns a store that logs and records metrics for every call.
func Instrument(inner AnswerStore, backend string) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, backend: backend}
}

// Unwrap returns the wrapped backend.
func (s *InstrumentedStore) Unwrap() AnswerStore {
	return s.inner
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := s.inner.Get(ctx, key)
	elapsed := time.Since(start)

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
	}
	s.observe("get", result, elapsed)

	fields := []zap.Field{
		zap.String("store_backend", s.backend),
		zap.String("question", key),
		zap.String("store_result", result), // hit | miss | error
		zap.Float64("latency_ms", float64(elapsed.Microseconds())/1000.0),
	}

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("store_get", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("store_get", fields...)
	}

	return value, ok, err
}

func (s *InstrumentedStore) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.inner.Set(ctx, key, value)
	elapsed := time.Since(start)

	result := "ok"
	if err != nil {
		result = "error"
	}
	s.observe("set", result, elapsed)

	fields := []zap.Field{
		zap.String("store_backend", s.backend),
		zap.String("question", key),
		zap.Int("value_bytes", len(value)),
		zap.Float64("latency_ms", float64(elapsed.Microseconds())/1000.0),
	}

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("store_set", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("store_set", fields...)
	}

	return err
}

// Ping forwards to the backend; backends without a connection are always healthy.
func (s *InstrumentedStore) Ping(ctx context.Context) error {
	if p, ok := s.inner.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}

func (s *InstrumentedStore) observe(op, result string, elapsed time.Duration) {
	metrics.StoreOperationsTotal.WithLabelValues(s.backend, op, result).Inc()
	metrics.StoreLatencySeconds.WithLabelValues(s.backend, op).Observe(elapsed.Seconds())
}
