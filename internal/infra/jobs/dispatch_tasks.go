package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vulnscan/api/pkg/logger"
)

const (
	// TypeScanDispatch is the task type for dispatching a queued scan to the
	// engine.
	TypeScanDispatch = "scan:dispatch"

	// QueueDispatch is the dedicated queue for scan dispatch jobs.
	QueueDispatch = "dispatch"
)

// ScanDispatchPayload identifies the scan to dispatch. The handler reloads
// the scan from the store, so redeliveries always see current state.
type ScanDispatchPayload struct {
	ScanID string `json:"scan_id"`
}

// NewScanDispatchTask creates a scan dispatch task.
func NewScanDispatchTask(scanID string, maxRetry int, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(ScanDispatchPayload{ScanID: scanID})
	if err != nil {
		return nil, fmt.Errorf("marshal scan dispatch payload: %w", err)
	}

	return asynq.NewTask(
		TypeScanDispatch,
		payload,
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(timeout),
		asynq.Queue(QueueDispatch),
	), nil
}

// DispatchProcessor executes one dispatch attempt. Implemented by the
// dispatch service; errors trigger queue-level retry.
type DispatchProcessor interface {
	Dispatch(ctx context.Context, scanID string) error
}

// DispatchTaskHandler handles scan dispatch tasks.
type DispatchTaskHandler struct {
	processor DispatchProcessor
	logger    *logger.Logger
}

// NewDispatchTaskHandler creates a new DispatchTaskHandler.
func NewDispatchTaskHandler(processor DispatchProcessor, log *logger.Logger) *DispatchTaskHandler {
	return &DispatchTaskHandler{
		processor: processor,
		logger:    log.With("component", "dispatch_handler"),
	}
}

// RegisterHandlers registers the dispatch handlers on the mux.
func (h *DispatchTaskHandler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeScanDispatch, h.HandleScanDispatch)
}

// HandleScanDispatch processes one scan dispatch task.
func (h *DispatchTaskHandler) HandleScanDispatch(ctx context.Context, t *asynq.Task) error {
	var payload ScanDispatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// A malformed payload will never succeed; skip retries.
		h.logger.Error("malformed scan dispatch payload", "error", err)
		return fmt.Errorf("unmarshal scan dispatch payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.processor.Dispatch(ctx, payload.ScanID); err != nil {
		h.logger.Error("scan dispatch failed", "scan_id", payload.ScanID, "error", err)
		return fmt.Errorf("dispatch scan %s: %w", payload.ScanID, err)
	}
	return nil
}
