// Package main is the entry point for the apex web server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samualtnorman/apex-web-server/internal/config"
	"github.com/samualtnorman/apex-web-server/internal/plugin"
	"github.com/samualtnorman/apex-web-server/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "config.yml", "Path to the configuration file")
		apisPath   = flag.String("apis", plugin.DefaultSearchPath, "Directory containing API plugin modules")
		certFile   = flag.String("cert", server.DefaultCertFile, "TLS certificate chain file")
		keyFile    = flag.String("key", server.DefaultKeyFile, "TLS private key file")
		reloadSecs = flag.Int("reload", 4, "Config reload check interval in seconds")
		logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	registry := plugin.NewRegistry(
		plugin.WithLoader(plugin.NewLoader(plugin.WithPaths(*apisPath))),
		plugin.WithRegistryLogger(logger),
	)
	defer registry.Close()

	store := config.NewStore(*configPath,
		config.WithReloadInterval(time.Duration(*reloadSecs)*time.Second),
		config.WithLogger(logger),
	)
	store.OnReload(func(cfg *config.Config) {
		registry.Reconcile(cfg.APIs)
	})

	if err := store.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		return 1
	}
	defer store.Close()

	if err := registry.WatchSources(); err != nil {
		logger.Warn("api source watching unavailable", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(store, registry,
		server.WithTLSFiles(*certFile, *keyFile),
		server.WithLogger(logger),
	)
	if err := srv.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	return 0
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
