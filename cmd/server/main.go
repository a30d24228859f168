package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/vulnscan/api/internal/config"
	"github.com/vulnscan/api/internal/infra/http"
	"github.com/vulnscan/api/internal/infra/jobs"
	"github.com/vulnscan/api/internal/infra/postgres"
	"github.com/vulnscan/api/internal/infra/redis"
	"github.com/vulnscan/api/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env)

	// Infrastructure
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closeWithLog(db, "database", log)
	log.Info("database connected")

	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer closeWithLog(redisClient, "redis", log)

	jobClient, err := jobs.NewClient(jobs.ClientConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		MaxRetry:      cfg.Dispatcher.MaxRetry,
		Timeout:       cfg.Dispatcher.Timeout,
	}, log)
	if err != nil {
		log.Error("failed to create job client", "error", err)
		return 1
	}
	defer closeWithLog(jobClient, "job client", log)

	bridge := redis.NewEngineBridge(redisClient, log)

	// Wiring
	repos := NewRepositories(db)
	services := NewServices(cfg, repos, jobClient, bridge, log)

	workers, err := NewWorkers(cfg, repos, services, bridge, log)
	if err != nil {
		log.Error("failed to create workers", "error", err)
		return 1
	}
	if err := workers.Start(ctx); err != nil {
		log.Error("failed to start workers", "error", err)
		return 1
	}
	defer workers.Stop()

	// HTTP server
	handler := NewHandler(services, db, redisClient, log)
	server := http.NewServer(cfg, handler, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown signal or server failure
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Error("http server failed", "error", err)
			return 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

func initLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
}

func closeWithLog(c io.Closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
