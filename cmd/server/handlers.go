package main

import (
	nethttp "net/http"

	"github.com/vulnscan/api/internal/infra/http"
	"github.com/vulnscan/api/internal/infra/postgres"
	"github.com/vulnscan/api/internal/infra/redis"
	"github.com/vulnscan/api/pkg/logger"
)

// NewHandler builds the HTTP handler tree.
func NewHandler(
	services *Services,
	db *postgres.DB,
	redisClient *redis.Client,
	log *logger.Logger,
) nethttp.Handler {
	scanHandler := http.NewScanHandler(services.Scan, services.Diff, services.Quota, log)

	return http.NewRouter(http.RouterDeps{
		Scans:  scanHandler,
		DB:     db,
		Redis:  redisClient,
		Logger: log,
	})
}
