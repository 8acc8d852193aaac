package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codesheet/codesheet-engine/internal/api"
	"github.com/codesheet/codesheet-engine/internal/cache"
	"github.com/codesheet/codesheet-engine/internal/config"
	"github.com/codesheet/codesheet-engine/internal/generator"
	"github.com/codesheet/codesheet-engine/internal/history"
	"github.com/codesheet/codesheet-engine/internal/logging"
	"github.com/codesheet/codesheet-engine/internal/tui"
	"github.com/codesheet/codesheet-engine/internal/worker"
)

// Version is set during build via ldflags
var Version = "dev"

func main() {
	var headless bool

	rootCmd := &cobra.Command{
		Use:     "codesheet-server",
		Short:   "Batch QR and barcode sheet generation server",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(headless)
		},
	}
	rootCmd.Flags().BoolVar(&headless, "headless", false, "run without the terminal dashboard")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(headless bool) error {
	cfg, err := config.Load(config.NewViper())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	store := history.New(cfg.HistoryLimit)

	// Restore the last session if the cache file is fresh enough.
	fileCache := cache.New(cfg.CachePath, cfg.AutosaveDebounce, logger)
	if doc, err := fileCache.Load(); err != nil {
		logger.Warn("cache load failed", zap.Error(err))
	} else if doc != nil {
		store.Hydrate(doc)
		logger.Info("restored cached session",
			zap.Int("blocks", len(doc.Blocks)),
			zap.Time("savedAt", doc.SavedAt))
	}

	// Every state change reschedules a debounced autosave.
	store.Subscribe(func() {
		fileCache.Schedule(store.Document())
	})
	defer fileCache.Flush()

	expander := worker.New(logger)
	defer expander.Stop()

	planner := generator.NewPlanner(generator.DefaultEncoder(), expander, cfg.Threshold)
	server := api.NewServer(store, planner, logger)

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Info("starting API server", zap.String("address", cfg.HTTPAddress))
		if err := server.Run(cfg.HTTPAddress); err != nil {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if headless {
		select {
		case err := <-serverErrChan:
			return fmt.Errorf("server error: %w", err)
		case <-sigChan:
			logger.Info("shutting down")
			return nil
		}
	}

	tuiApp := tui.NewApp(store, planner, cfg.HTTPAddress)

	// Route stdlib log output into the activity panel so gin noise
	// does not corrupt the terminal.
	log.SetOutput(io.MultiWriter(os.Stderr, tuiApp.LogWriter()))

	tuiApp.AddLog("Codesheet Engine starting...", "info")
	tuiApp.AddLog(fmt.Sprintf("API listening on %s", cfg.HTTPAddress), "info")

	tuiDone := make(chan struct{})
	go func() {
		if err := tuiApp.Run(); err != nil {
			logger.Error("tui error", zap.Error(err))
		}
		close(tuiDone)
	}()

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case <-sigChan:
		tuiApp.App.Stop()
		logger.Info("shutting down")
		return nil
	case <-tuiDone:
		logger.Info("dashboard closed, shutting down")
		return nil
	}
}
