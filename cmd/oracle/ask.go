package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oracle-gateway/internal/config"
	"oracle-gateway/internal/handlers"
	"oracle-gateway/pkg/logging/logging"
)

func newAskCmd(configPath *string) *cobra.Command {
	var parallel int

	cmd := &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Ask the oracle one or more questions through the configured store",
		Long: "Each argument is one question. Questions already answered in the store\n" +
			"get their stored answer; new ones are generated and stored.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if parallel < 1 {
				return fmt.Errorf("--parallel must be at least 1, got %d", parallel)
			}

			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := logging.WithLogger(cmd.Context(), a.logger)
			return ask(ctx, a.oracle, args, parallel, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().IntVar(&parallel, "parallel", 4, "questions resolved concurrently")
	return cmd
}

// ask resolves questions with at most parallel in flight and prints the
// results in argument order.
func ask(ctx context.Context, o handlers.Resolver, questions []string, parallel int, out, errOut io.Writer) error {
	answers := make([]string, len(questions))
	errs := make([]error, len(questions))

	p := pool.New().WithMaxGoroutines(parallel)
	for i, q := range questions {
		p.Go(func() {
			answers[i], errs[i] = o.Resolve(ctx, q)
		})
	}
	p.Wait()

	var failed []error
	for i, q := range questions {
		if errs[i] != nil {
			logging.L(ctx).Error("ask_failed", zap.String("question", q), zap.Error(errs[i]))
			fmt.Fprintf(errOut, "%s\terror: %v\n", q, errs[i])
			failed = append(failed, errs[i])
			continue
		}
		if len(questions) == 1 {
			fmt.Fprintln(out, answers[i])
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", q, answers[i])
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d questions failed: %w", len(failed), len(questions), errors.Join(failed...))
	}
	return nil
}

func newAnswerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "answer",
		Short: "Draw one uncached answer from the answer list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			random, err := newRandom(cfg)
			if err != nil {
				return err
			}
			answer, err := random.Generate(cmd.Context(), "")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(answer))
			return err
		},
	}
}
