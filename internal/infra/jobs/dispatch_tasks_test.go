package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnscan/api/pkg/logger"
)

type recordingProcessor struct {
	scanIDs []string
	err     error
}

func (p *recordingProcessor) Dispatch(ctx context.Context, scanID string) error {
	p.scanIDs = append(p.scanIDs, scanID)
	return p.err
}

func TestNewScanDispatchTask(t *testing.T) {
	task, err := NewScanDispatchTask("scan-123", 5, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, TypeScanDispatch, task.Type())

	var payload ScanDispatchPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "scan-123", payload.ScanID)
}

func TestDispatchTaskHandler_HandleScanDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("delegates to processor", func(t *testing.T) {
		proc := &recordingProcessor{}
		h := NewDispatchTaskHandler(proc, logger.NewNop())

		task, err := NewScanDispatchTask("scan-123", 5, time.Minute)
		require.NoError(t, err)

		require.NoError(t, h.HandleScanDispatch(ctx, task))
		assert.Equal(t, []string{"scan-123"}, proc.scanIDs)
	})

	t.Run("processor error re-raises for retry", func(t *testing.T) {
		proc := &recordingProcessor{err: assert.AnError}
		h := NewDispatchTaskHandler(proc, logger.NewNop())

		task, err := NewScanDispatchTask("scan-123", 5, time.Minute)
		require.NoError(t, err)

		err = h.HandleScanDispatch(ctx, task)
		assert.ErrorIs(t, err, assert.AnError)
		assert.NotErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("malformed payload skips retry", func(t *testing.T) {
		proc := &recordingProcessor{}
		h := NewDispatchTaskHandler(proc, logger.NewNop())

		task := asynq.NewTask(TypeScanDispatch, []byte("{broken"))
		err := h.HandleScanDispatch(ctx, task)

		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.Empty(t, proc.scanIDs)
	})
}
