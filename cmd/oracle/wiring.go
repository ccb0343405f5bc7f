package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"oracle-gateway/internal/config"
	"oracle-gateway/internal/generator"
	"oracle-gateway/internal/llm"
	"oracle-gateway/internal/oracle"
	"oracle-gateway/internal/store"
	"oracle-gateway/pkg/logging/logging"
)

// app holds everything a command needs, built from one Config.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  store.AnswerStore
	oracle *oracle.Oracle
	// random always draws from the enumerated list, whatever generator.kind is.
	random *generator.Enumerated

	closers []func() error
}

func loadApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{Env: cfg.Log.Env, Level: cfg.Log.Level})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.build(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build() error {
	random, err := newRandom(a.cfg)
	if err != nil {
		return err
	}
	a.random = random

	gen, err := a.buildGenerator()
	if err != nil {
		return err
	}

	st, err := store.Open(a.cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	a.oracle = oracle.New(st, gen, oracle.Options{
		Placeholder:  a.cfg.Generator.Placeholder,
		SingleFlight: a.cfg.Oracle.SingleFlight,
	})
	return nil
}

// newRandom builds the enumerated generator from generator.answers_file,
// falling back to the built-in list.
func newRandom(cfg *config.Config) (*generator.Enumerated, error) {
	answers := generator.DefaultAnswers
	if cfg.Generator.AnswersFile != "" {
		loaded, err := generator.LoadAnswers(cfg.Generator.AnswersFile)
		if err != nil {
			return nil, err
		}
		answers = loaded
	}
	return generator.NewEnumerated(answers, nil)
}

func (a *app) buildGenerator() (oracle.Generator, error) {
	if a.cfg.Generator.Kind != config.GeneratorPrompted {
		return a.random, nil
	}

	lc := a.cfg.LLM
	client, err := llm.NewClient(llm.Config{
		BaseURL:    lc.BaseURL,
		APIKey:     lc.APIKey,
		MaxRetries: lc.MaxRetries,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("build llm client: %w", err)
	}
	if closer, ok := client.(interface{ Close() error }); ok {
		a.closers = append(a.closers, closer.Close)
	}

	prompted, err := generator.NewPrompted(client, generator.InferenceParams{
		Model:         lc.Model,
		MaxTokens:     lc.MaxTokens,
		Temperature:   lc.Temperature,
		TopK:          lc.TopK,
		TopP:          lc.TopP,
		RepeatPenalty: lc.RepeatPenalty,
		RepeatLastN:   lc.RepeatLastN,
	}, lc.Timeout)
	if err != nil {
		return nil, err
	}
	return prompted, nil
}

// Ping checks the store backend, if it has a connection to check.
func (a *app) Ping(ctx context.Context) error {
	p, ok := a.store.(store.Pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("store %s unreachable: %w", a.cfg.Store.Backend, err)
	}
	return nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
