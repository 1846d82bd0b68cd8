package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/checkpilot/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/checkpilot/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/checkpilot/internal/adapter/driving/http"
	"github.com/ericfisherdev/checkpilot/internal/application"
	"github.com/ericfisherdev/checkpilot/internal/config"
	"github.com/ericfisherdev/checkpilot/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing credentials).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"repo", cfg.Owner+"/"+cfg.Repo,
		"db_path", cfg.DBPath,
		"upstream_timeout", cfg.UpstreamTimeout,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the terminal-state cache database (optional).
	var stateCache driven.StateCacheStore
	if cfg.DBPath != "" {
		db, err := sqliteadapter.NewDB(cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()

		if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
			return err
		}
		stateCache = sqliteadapter.NewStateCacheRepo(db)
		slog.Info("state cache opened", "path", cfg.DBPath)
	} else {
		slog.Info("state cache disabled")
	}

	// 4. Wire the GitHub adapter behind an expiry-aware app token source.
	tokens, err := githubadapter.NewTokenSource(cfg.AppID, cfg.PrivateKeyPEM, cfg.Owner, cfg.Repo)
	if err != nil {
		return err
	}
	ghClient := githubadapter.NewClient(tokens, cfg.Owner, cfg.Repo, cfg.MetadataPathTemplate)
	slog.Info("github client created", "app_id", cfg.AppID)

	// 5. Wire application services.
	bots := application.NewBotDirectory(cfg.Bots)
	deploySvc := application.NewDeployService(ghClient, cfg.Bots.DeployPreview)
	statusSvc := application.NewStatusService(ghClient, deploySvc, bots, stateCache, cfg.UpstreamTimeout)

	// 6. Create HTTP handler and server.
	handler := httphandler.NewHandler(statusSvc, slog.Default())
	mux := httphandler.NewServeMux(handler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("checkpilot started", "listen_addr", cfg.ListenAddr)

	// 7. Wait for shutdown signal, then drain with a bounded timeout.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
