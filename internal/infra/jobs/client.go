// Package jobs implements the durable dispatch queue on asynq.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vulnscan/api/pkg/logger"
)

// Client manages enqueueing background jobs using Asynq.
type Client struct {
	client   *asynq.Client
	logger   *logger.Logger
	maxRetry int
	timeout  time.Duration
}

// ClientConfig contains configuration for the job client.
type ClientConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MaxRetry      int
	Timeout       time.Duration
}

// NewClient creates a new job client for enqueueing tasks.
func NewClient(cfg ClientConfig, log *logger.Logger) (*Client, error) {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &Client{
		client:   client,
		logger:   log.With("component", "job_client"),
		maxRetry: cfg.MaxRetry,
		timeout:  cfg.Timeout,
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueScanDispatch enqueues a scan dispatch job. The queue is durable;
// jobs survive restarts and redeliver at least once.
func (c *Client) EnqueueScanDispatch(ctx context.Context, scanID string) error {
	task, err := NewScanDispatchTask(scanID, c.maxRetry, c.timeout)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		c.logger.Error("failed to enqueue scan dispatch",
			"scan_id", scanID,
			"error", err,
		)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Info("scan dispatch queued",
		"task_id", info.ID,
		"scan_id", scanID,
		"queue", info.Queue,
	)
	return nil
}
