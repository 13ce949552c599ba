package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/wikitoc/internal/api"
	"github.com/dgallion1/wikitoc/internal/config"
	"github.com/dgallion1/wikitoc/internal/remote"
	"github.com/dgallion1/wikitoc/internal/wikipage"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Error("load wiki", "dir", cfg.WikiRoot, "error", err)
		os.Exit(1)
	}

	rc := remote.NewClient(cfg.RemoteTimeout, cfg.RemoteMaxRetries, cfg.RemoteStatsWindow, log)
	srv := api.NewServer(store, rc, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		rc.Close()
	}()

	log.Info("starting wikitoc", "port", cfg.Port, "wiki_root", cfg.WikiRoot)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openStore loads WIKI_ROOT when it exists, and starts an empty wiki
// otherwise.
func openStore(cfg config.Config) (*wikipage.Store, error) {
	if cfg.WikiRoot == "" {
		return wikipage.NewStore(cfg.WikiRootName), nil
	}
	if _, err := os.Stat(cfg.WikiRoot); errors.Is(err, fs.ErrNotExist) {
		return wikipage.NewStore(cfg.WikiRootName), nil
	}
	return wikipage.LoadDir(cfg.WikiRoot, cfg.WikiRootName)
}
