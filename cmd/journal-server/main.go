// Package main provides the HTTP API server for the journal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/journal-go/internal/config"
	"github.com/raphaelgruber/journal-go/internal/llm"
	"github.com/raphaelgruber/journal-go/internal/metrics"
	"github.com/raphaelgruber/journal-go/internal/prompt"
	"github.com/raphaelgruber/journal-go/internal/server"
	"github.com/raphaelgruber/journal-go/internal/session"
	"github.com/raphaelgruber/journal-go/internal/store"
	"github.com/raphaelgruber/journal-go/internal/summary"
)

const version = "0.1.0"

func main() {
	configFile := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	// Load configuration
	var (
		cfg config.Config
		err error
	)
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg = config.Load()
	}

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()
	slog.SetDefault(logger)

	logger.Info("journal-server starting",
		"version", version,
		"db_path", cfg.DBPath,
		"llm_provider", cfg.LLMProvider,
		"llm_model", cfg.LLMModel,
		"port", cfg.ServerPort,
	)

	// Open the store
	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing store")
		_ = st.Close()
	}()

	// Prompt templates are required; fail fast when missing.
	prompts, err := prompt.NewManager(cfg.TemplatesDir)
	if err != nil {
		logger.Error("failed to load prompt templates", "error", err)
		os.Exit(1)
	}

	// Connect the model
	model, err := llm.NewModel(cfg)
	if err != nil {
		logger.Error("failed to initialize model", "error", err)
		os.Exit(1)
	}
	logger.Info("model initialized", "model", model.ModelName())

	collector := metrics.NewCollector()
	model.SetCollector(collector)

	// Background title generation
	trigger := summary.NewTrigger(summary.New(model, logger), st, logger)
	defer trigger.Close()

	srv := server.New(st, model, prompts, trigger, logger, session.Config{
		ModelTimeout:         cfg.ModelTimeout,
		SummaryAfterMessages: cfg.SummaryAfterMessages,
	})
	srv.SetMetrics(collector)

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 180 * time.Second, // Long for LLM responses
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s/api/", cfg.ServerPort))

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
