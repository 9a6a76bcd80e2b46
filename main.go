package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/config"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/handlers"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/middleware"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
	sqlpkg "github.com/ekaya-inc/ekaya-sqlgen/pkg/sql"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "ekaya-sqlgen",
		Short:        "Natural-language to SQL generation service",
		Version:      Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the metadata sync scheduler",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "sync",
			Short: "Reconcile the metadata index with the catalog once and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSync(cmd.Context(), configPath)
			},
		},
		newGenerateCommand(&configPath),
		&cobra.Command{
			Use:   "analyze <sql>",
			Short: "Print the dimensions, metrics, filters and sorts of a SQL statement",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return printJSON(sqlpkg.Analyze(strings.Join(args, " ")))
			},
		},
	)
	return root
}

func newGenerateCommand(configPath *string) *cobra.Command {
	var (
		userContext string
		useRAG      bool
	)
	cmd := &cobra.Command{
		Use:   "generate <query>",
		Short: "Generate SQL for a natural-language question and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *configPath, func(ctx context.Context, a *app) error {
				result := a.generator.GenerateSQL(ctx, &models.SQLGenerationRequest{
					Query:       strings.Join(args, " "),
					UserContext: userContext,
					UseRAG:      useRAG,
				})
				return printJSON(result)
			})
		},
	}
	cmd.Flags().StringVar(&userContext, "context", "", "extra context passed to the model")
	cmd.Flags().BoolVar(&useRAG, "rag", false, "retrieve supporting documents")
	return cmd
}

func loadConfig(path string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFrom(path, Version)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// withApp builds the app, runs fn under a signal-aware context and tears the app down.
func withApp(ctx context.Context, configPath string, fn func(ctx context.Context, a *app) error) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start", zap.Error(err))
		return err
	}
	defer a.close()

	return fn(ctx, a)
}

func runSync(ctx context.Context, configPath string) error {
	return withApp(ctx, configPath, func(ctx context.Context, a *app) error {
		summary, err := a.sync.SyncAll(ctx)
		if err != nil {
			return err
		}
		return printJSON(summary)
	})
}

func runServe(ctx context.Context, configPath string) error {
	return withApp(ctx, configPath, func(ctx context.Context, a *app) error {
		cfg, logger := a.cfg, a.logger

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		logger.Info("Configuration loaded",
			zap.String("env", cfg.Env),
			zap.String("base_url", cfg.BaseURL),
			zap.String("database", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
			zap.Bool("llm_configured", cfg.LLM.IsConfigured()),
			zap.Bool("embeddings_configured", cfg.Embedding.IsConfigured()),
			zap.Bool("redis_enabled", a.redis != nil),
			zap.Bool("sync_enabled", cfg.Sync.Enabled))

		syncDone := closedChannel()
		if cfg.Sync.Enabled {
			syncDone = a.sync.RunScheduler(ctx, cfg.Sync.Interval())
		}

		mux := http.NewServeMux()
		handlers.NewHealthHandler(cfg, a.indexes(), logger).RegisterRoutes(mux)
		handlers.NewAIHandler(a.generator, a.rag, cfg.RAG.TopK, logger).RegisterRoutes(mux)
		handlers.NewRAGHandler(a.rag, cfg.RAG.TopK, logger).RegisterRoutes(mux)
		handlers.NewMetadataHandler(a.sync, logger).RegisterRoutes(mux)

		server := &http.Server{
			Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
			Handler:           middleware.RequestLogger(logger.Named("http"))(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErr := make(chan error, 1)
		go func() {
			logger.Info("Starting ekaya-sqlgen",
				zap.String("addr", server.Addr),
				zap.String("version", cfg.Version))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
			close(serverErr)
		}()

		var runErr error
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
		case err, ok := <-serverErr:
			if ok {
				logger.Error("Server failed", zap.Error(err))
				runErr = err
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown failed", zap.Error(err))
		}

		cancel()
		select {
		case <-syncDone:
		case <-shutdownCtx.Done():
			logger.Warn("Metadata sync did not stop before shutdown timeout")
		}
		return runErr
	})
}

func closedChannel() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
