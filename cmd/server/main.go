package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	// PostgreSQL driver
	_ "github.com/lib/pq"

	"github.com/pressflow/pressflow/pkg/api"
	"github.com/pressflow/pressflow/pkg/completion"
	"github.com/pressflow/pressflow/pkg/config"
	"github.com/pressflow/pressflow/pkg/engine"
	"github.com/pressflow/pressflow/pkg/observability"
	"github.com/pressflow/pressflow/pkg/queue"
	threadrepo "github.com/pressflow/pressflow/pkg/repository/thread"
	workflowrepo "github.com/pressflow/pressflow/pkg/repository/workflow"
	"github.com/pressflow/pressflow/pkg/templates"
)

func main() {
	root := &cobra.Command{
		Use:   "pressflow",
		Short: "Conversational workflow engine for press assets",
	}
	root.AddCommand(serveCmd(), schemaCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

// schemaCmd prints the DDL so operators can apply it with their own tooling
func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the database schema",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(threadrepo.Schema)
			fmt.Print(workflowrepo.Schema)
		},
	}
}

func serve() error {
	logger := observability.NewStandardLogger("server")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	workflows, threads, closeDB, err := buildRepositories(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	openAI, err := completion.NewOpenAIClient(completion.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		DefaultModel:   cfg.OpenAI.Model,
		RequestTimeout: cfg.OpenAI.RequestTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create completion client: %w", err)
	}
	client := completion.NewBreakerClient(openAI, logger)

	registry, err := templates.NewDefaultRegistry()
	if err != nil {
		return fmt.Errorf("failed to build template registry: %w", err)
	}

	jobs := queue.New(cfg.Queue.Workers, cfg.Queue.BufferSize, logger)
	defer jobs.Close()

	eng, err := engine.New(registry, workflows, threads, client, jobs, logger, engine.Config{
		ContextWindow: cfg.Engine.ContextWindow,
		DedupWindow:   cfg.Engine.DedupWindow,
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	server := api.NewServer(eng, threads, registry, cfg.API, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("Shutting down", map[string]interface{}{"signal": sig.String()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func buildRepositories(cfg *config.Config, logger observability.Logger) (workflowrepo.Repository, threadrepo.Repository, func(), error) {
	if cfg.Database.Driver == "memory" {
		logger.Info("Using in-memory storage", nil)
		return workflowrepo.NewMemoryRepository(), threadrepo.NewMemoryRepository(), func() {}, nil
	}

	db, err := sqlx.Connect("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	logger.Info("Connected to PostgreSQL", map[string]interface{}{
		"host":     cfg.Database.Host,
		"database": cfg.Database.Database,
	})

	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Warn("Failed to close database", map[string]interface{}{"error": err.Error()})
		}
	}
	return workflowrepo.NewPostgresRepository(db), threadrepo.NewPostgresRepository(db), closeDB, nil
}
