/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the TOIL engine. Handles configuration,
  dependency injection, and graceful shutdown.

COMMANDS:
  toild serve    Run the HTTP API (optionally with the in-process
                 sweep scheduler)
  toild sweep    Run one expiry sweep and exit (for external cron)

STARTUP SEQUENCE (serve):
  1. Load configuration (defaults, TOML file, environment)
  2. Initialize SQLite store
  3. Create API handler with domain services
  4. Configure HTTP router
  5. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sweep scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  toild serve --db ./data/toil.db

  # Run with in-memory database
  toild serve --db :memory:

  # One-shot sweep for crontab
  toild sweep --db ./data/toil.db

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration layering
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/warp/toil-engine/api"
	"github.com/warp/toil-engine/config"
	"github.com/warp/toil-engine/store/sqlite"
)

var (
	flagConfig string
	flagPort   int
	flagDB     string
)

func main() {
	root := &cobra.Command{
		Use:   "toild",
		Short: "Time-Off-In-Lieu accrual and expiry engine",
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to TOML config file")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (overrides config)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&flagPort, "port", 0, "HTTP server port (overrides config)")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one expiry sweep and exit",
		RunE:  runSweep,
	}

	root.AddCommand(serveCmd, sweepCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (config.Config, *logrus.Logger, *api.Handler, *sqlite.Store, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, nil, nil, nil, err
	}
	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	if flagPort != 0 {
		cfg.Port = flagPort
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return cfg, nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	handler := api.NewHandler(store, log)
	handler.Accrual.StandardWeekHours = decimal.NewFromFloat(cfg.StandardWeekHours)
	handler.Accrual.ExpiryMonths = cfg.ExpiryMonths
	handler.Balance.HoursPerDay = decimal.NewFromFloat(cfg.HoursPerDay)
	handler.Gate.HoursPerDay = decimal.NewFromFloat(cfg.HoursPerDay)

	return cfg, log, handler, store, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, handler, store, err := setup()
	if err != nil {
		return err
	}
	defer store.Close()

	router := api.NewRouter(handler)

	scheduler := api.NewSweepScheduler(handler, log)
	scheduler.Enabled = cfg.SweepEnabled
	scheduler.CheckInterval = cfg.SweepEvery()
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	_, log, handler, store, err := setup()
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := handler.RunSweep(context.Background())
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"employees_processed": summary.EmployeesProcessed,
		"entries_expired":     summary.EntriesExpired,
		"hours_expired":       summary.HoursExpired,
		"failures":            len(summary.Failures),
	}).Info("sweep finished")

	if len(summary.Failures) > 0 {
		return fmt.Errorf("sweep completed with %d employee failures", len(summary.Failures))
	}
	return nil
}
