package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"certcenter/internal/app"
	"certcenter/internal/handlers"
	u "certcenter/internal/utils"
)

func main() {
	cfg := u.LoadConfig()
	if err := ensureLogDir(cfg.Logger.File); err != nil {
		fmt.Fprintf(os.Stderr, "log dir: %v\n", err)
		os.Exit(1)
	}
	u.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)

	renderer, err := handlers.NewRendererFromConfig(cfg)
	if err != nil {
		u.Error("Failed to load fonts", "error", err)
		os.Exit(1)
	}

	var rdb *redis.Client
	if cfg.Cache.RedisHost != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.RateLimitDB,
		})
		defer rdb.Close()
	}

	idleConnsClosed := make(chan struct{})
	if cfg.Auth.Postgres.Enabled() {
		if err := u.LoadAPIKeysFromPostgres(cfg.Auth.Postgres); err != nil {
			u.Error("Failed to load API keys", "error", err)
		}
		go u.RefreshAPIKeysPeriodically(cfg.Auth.Postgres, cfg.Auth.ReloadInterval, idleConnsClosed)
	}

	app := app.SetupApp(cfg, renderer, rdb)

	startServer(app, cfg, idleConnsClosed)
	<-idleConnsClosed
}

// ensureLogDir creates the directory holding the log file, if any.
func ensureLogDir(file string) error {
	if file == "" {
		return nil
	}
	dir := filepath.Dir(file)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg u.Config, idleConnsClosed chan struct{}) {
	go func() {
		u.Info("Listening", "addr", cfg.Server.Host+cfg.Server.Port)
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			u.Error("Server error", "error", err)
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigint)

	shutdownOn(app, sigint, 5*time.Second, idleConnsClosed)
}

// shutdownOn blocks until a signal arrives, then drains in-flight requests
// for at most grace before closing idleConnsClosed.
func shutdownOn(app *fiber.App, sig <-chan os.Signal, grace time.Duration, idleConnsClosed chan struct{}) {
	<-sig

	u.Warn("Shutdown signal received, closing server...")

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		u.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	u.Info("Server stopped cleanly")
}
