package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/vulnscan/api/pkg/domain/event"
	"github.com/vulnscan/api/pkg/logger"
)

const (
	// TaskChannel is the pub/sub channel the engine consumes scan tasks from.
	TaskChannel = "scanner:tasks"

	// ResultChannel is the pub/sub channel the engine publishes results on.
	ResultChannel = "scanner:results"
)

// ResultHandler consumes one raw result message. Returning an error logs the
// failure; the bridge keeps listening either way.
type ResultHandler interface {
	HandleResult(ctx context.Context, payload []byte) error
}

// EngineBridge connects the orchestrator to the scanning engine over Redis
// pub/sub: tasks go out on TaskChannel, results come back on ResultChannel.
// The result listener is a single subscriber so messages for one scan are
// processed in arrival order.
type EngineBridge struct {
	client  *Client
	handler ResultHandler
	logger  *logger.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewEngineBridge creates a new EngineBridge. The result handler is supplied
// to Start, since publishing and consuming are wired at different times.
func NewEngineBridge(client *Client, log *logger.Logger) *EngineBridge {
	return &EngineBridge{
		client: client,
		logger: log.With("component", "engine_bridge"),
		stopCh: make(chan struct{}),
	}
}

// PublishTask publishes a scan task for the engine.
func (b *EngineBridge) PublishTask(ctx context.Context, task *event.ScanTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal scan task: %w", err)
	}
	if err := b.client.Client().Publish(ctx, TaskChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish scan task: %w", err)
	}
	b.logger.Debug("published scan task", "scan_id", task.ScanID, "target", task.Target)
	return nil
}

// Start begins listening for engine results, delivering each message to the
// handler. Non-blocking; call Stop to shut down.
func (b *EngineBridge) Start(ctx context.Context, handler ResultHandler) error {
	b.handler = handler
	pubsub := b.client.Client().Subscribe(ctx, ResultChannel)

	// Wait for subscription confirmation before declaring ready.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to result channel: %w", err)
	}

	b.logger.Info("listening for engine results", "channel", ResultChannel)

	ch := pubsub.Channel()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() { _ = pubsub.Close() }()

		for {
			select {
			case <-b.stopCh:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					b.logger.Warn("result channel closed")
					return
				}
				b.dispatch(ctx, []byte(msg.Payload))
			}
		}
	}()

	return nil
}

// Stop stops the result listener and waits for in-flight handling to finish.
func (b *EngineBridge) Stop() {
	close(b.stopCh)
	b.wg.Wait()
	b.logger.Info("engine bridge stopped")
}

func (b *EngineBridge) dispatch(ctx context.Context, payload []byte) {
	handleCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := b.handler.HandleResult(handleCtx, payload); err != nil {
		b.logger.Error("failed to handle engine result", "error", err)
	}
}
