package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gitexplorer/gitexplorer/internal/api"
	"github.com/gitexplorer/gitexplorer/internal/cache"
	"github.com/gitexplorer/gitexplorer/internal/config"
	"github.com/gitexplorer/gitexplorer/internal/service"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: gitexplorer <command>\n\nCommands:\n  serve  Start the local API server\n  cache  Inspect or reset the persistent cache\n")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "cache":
		cmdCache(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func cmdServe(args []string) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	staticDir := fs.String("static", "static", "directory with the frontend build, empty to disable")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServe(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	traceShutdown, err := initTracing(context.Background())
	if err != nil {
		slog.Error("init tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := traceShutdown(ctx); err != nil {
			slog.Error("shutdown tracing", "error", err)
		}
	}()

	store := openStore(cfg)
	if store != nil {
		defer store.Close()
	}

	explorer := service.NewExplorer(cfg.Repos.Root, service.ExplorerOptions{
		Cache:       storeOrNil(store),
		CommitLimit: cfg.Repos.CommitLimit,
		StatusTTL:   cfg.StatusTTL(),
	})
	server := api.NewServer(explorer, api.ServerOptions{
		Store:              store,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		StaticDir:          *staticDir,
	})

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt)

	go func() {
		slog.Info("gitexplorer listening", "addr", cfg.Addr(), "repos_root", cfg.Repos.Root)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)
}

// openStore opens the persistent cache up front so schema repair happens
// before the first request. A cache that cannot open is not fatal: the
// server runs with every read going straight to git.
func openStore(cfg *config.Config) *cache.Store {
	if cfg.Cache.Disabled {
		slog.Info("persistent cache disabled by config")
		return nil
	}
	store := cache.New(cfg.CachePath(), cache.Options{})
	if err := store.Init(context.Background()); err != nil {
		slog.Warn("cache unavailable, serving without it", "path", cfg.CachePath(), "error", err)
		return nil
	}
	return store
}

// storeOrNil keeps a typed-nil *cache.Store out of the service.Cache
// interface value.
func storeOrNil(store *cache.Store) service.Cache {
	if store == nil {
		return nil
	}
	return store
}

func cmdCache(args []string) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	fs := flag.NewFlagSet("cache", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	action := "stats"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	store := cache.New(cfg.CachePath(), cache.Options{})
	defer store.Close()
	ctx := context.Background()

	switch action {
	case "stats":
		stats, err := store.Stats(ctx)
		if err != nil {
			slog.Error("read cache stats", "error", err)
			os.Exit(1)
		}
		out, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(out))
	case "clear":
		if err := store.ClearAll(ctx, false); err != nil {
			slog.Error("clear cache", "error", err)
			os.Exit(1)
		}
		fmt.Println("mutable cache cleared")
	case "reset":
		if err := store.Reset(ctx); err != nil {
			slog.Error("reset cache", "error", err)
			os.Exit(1)
		}
		fmt.Println("cache store reset")
	default:
		fmt.Fprintf(os.Stderr, "unknown cache action: %s (want stats, clear, or reset)\n", action)
		os.Exit(1)
	}
}
