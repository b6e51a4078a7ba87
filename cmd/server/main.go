package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gridhq/tablecache/internal/api"
	"github.com/gridhq/tablecache/internal/app"
	"github.com/gridhq/tablecache/internal/app/maintenance"
	"github.com/gridhq/tablecache/internal/cache"
	"github.com/gridhq/tablecache/internal/database"
	"github.com/gridhq/tablecache/internal/dates"
	"github.com/gridhq/tablecache/internal/services"
	"github.com/gridhq/tablecache/internal/upstream"
	"github.com/gridhq/tablecache/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tablecache-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory")

	if err := fs.Parse(args); err != nil {
		return err
	}

	var paths []string
	if configPath != "" {
		paths = append(paths, configPath)
	}
	cfg, err := app.LoadConfig(paths...)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	db, err := database.Open(database.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
	}()

	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	store, err := cache.NewStore(db)
	if err != nil {
		return err
	}

	remote, err := upstream.NewClient(upstream.Config{
		BaseURL: cfg.Upstream.BaseURL,
		Token:   cfg.Upstream.Token,
		Timeout: cfg.Upstream.Timeout,
	})
	if err != nil {
		return err
	}

	resolver := dates.NewResolver(cfg.Cache.Timezone)

	queries, err := services.NewQueryService(store, remote, remote, resolver, services.QueryServiceConfig{
		DefaultTTL:       cfg.Cache.DefaultTTL,
		StrictValidation: cfg.Cache.StrictValidation,
	})
	if err != nil {
		return err
	}

	if cfg.Cache.Sweep.Enabled {
		sweeper, sweepErr := maintenance.NewSweeper(store,
			maintenance.WithSchedule(cfg.Cache.Sweep.Schedule),
			maintenance.WithGrace(cfg.Cache.Sweep.Grace),
		)
		if sweepErr != nil {
			return sweepErr
		}
		if sweepErr := sweeper.Start(); sweepErr != nil {
			return fmt.Errorf("start sweeper: %w", sweepErr)
		}
		defer sweeper.Stop()
	}

	router, err := api.NewRouter(queries, cfg.Monitoring.Prometheus.Enabled)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.Int("port", cfg.Server.Port))
		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
