package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/linskybing/csvflow/internal/application"
	"github.com/linskybing/csvflow/internal/config"
	"github.com/linskybing/csvflow/internal/config/db"
	"github.com/linskybing/csvflow/internal/messaging"
	"github.com/linskybing/csvflow/internal/observability"
	"github.com/linskybing/csvflow/internal/repository"
	"github.com/linskybing/csvflow/internal/runner"
	"github.com/linskybing/csvflow/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "runner",
		Short:        "Processes submitted CSV jobs and reports back to the API",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newOnceCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var consume bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll for Running jobs until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return withRunner(func(env *runnerEnv) error {
				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					return env.runner.Start(gctx)
				})

				if consume {
					if env.cfg.RabbitMQ.URL == "" {
						return errors.New("--consume requires RABBITMQ_URL")
					}
					consumer, err := messaging.NewConsumer(env.cfg.RabbitMQ, env.cfg.Runner.Concurrency, env.logger.Named("amqp"))
					if err != nil {
						return err
					}
					defer func() {
						_ = consumer.Close()
					}()
					g.Go(func() error {
						return consumer.Run(gctx, env.runner.HandleMessage)
					})
				}

				err := g.Wait()
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&consume, "consume", false, "also process jobs announced on RabbitMQ")
	return cmd
}

func newOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Process every Running job once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRunner(func(env *runnerEnv) error {
				return env.runner.RunOnce(cmd.Context())
			})
		},
	}
}

type runnerEnv struct {
	cfg    *config.Config
	logger *zap.Logger
	runner *runner.Runner
}

// withRunner wires the runner's dependencies and releases them after fn.
func withRunner(fn func(*runnerEnv) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		log.Printf("Failed to create logger: %v", err)
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	gdb, err := db.Open(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close(gdb)
	}()

	blobs, err := storage.New(cfg.Blob)
	if err != nil {
		return fmt.Errorf("blob storage: %w", err)
	}

	if cfg.Auth.CallbackSecret == "" {
		logger.Warn("CALLBACK_SECRET is not set; callbacks are sent without a token")
	}

	jobs := application.NewJobService(repository.NewRepositories(gdb), blobs, nil, cfg.Blob, logger.Named("job"))
	callbacks := runner.NewCallbackClient(cfg.Runner, cfg.Auth.CallbackSecret)
	r := runner.New(jobs, blobs, callbacks, cfg.Blob, cfg.Runner, logger.Named("runner"))

	return fn(&runnerEnv{cfg: cfg, logger: logger, runner: r})
}
