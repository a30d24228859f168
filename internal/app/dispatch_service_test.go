package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnscan/api/pkg/domain/scan"
	"github.com/vulnscan/api/pkg/domain/shared"
	"github.com/vulnscan/api/pkg/domain/target"
	"github.com/vulnscan/api/pkg/logger"
)

type dispatchFixture struct {
	svc       *DispatchService
	scanRepo  *fakeScanRepo
	targets   *fakeTargetRepo
	publisher *fakePublisher
}

func newDispatchFixture() *dispatchFixture {
	scanRepo := newFakeScanRepo()
	targets := newFakeTargetRepo()
	publisher := &fakePublisher{}
	return &dispatchFixture{
		svc:       NewDispatchService(scanRepo, targets, publisher, logger.NewNop()),
		scanRepo:  scanRepo,
		targets:   targets,
		publisher: publisher,
	}
}

func (fx *dispatchFixture) seedQueuedScan() *scan.Scan {
	tgt := &target.Target{
		ID:    shared.NewID(),
		OrgID: shared.NewID(),
		Value: "example.com",
		Type:  target.TypeDomain,
	}
	fx.targets.put(tgt)

	sc := &scan.Scan{
		ID:       shared.NewID(),
		TargetID: tgt.ID,
		OrgID:    tgt.OrgID,
		Profile:  scan.ProfileStandard,
		Modules:  scan.ProfileStandard.Modules(),
		Status:   scan.StatusQueued,
	}
	fx.scanRepo.put(sc)
	return sc
}

func TestDispatchService_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("queued scan moves to running and publishes", func(t *testing.T) {
		fx := newDispatchFixture()
		sc := fx.seedQueuedScan()

		require.NoError(t, fx.svc.Dispatch(ctx, sc.ID.String()))

		got, err := fx.scanRepo.GetByID(ctx, sc.ID)
		require.NoError(t, err)
		assert.Equal(t, scan.StatusRunning, got.Status)
		require.NotNil(t, got.StartedAt)

		require.Len(t, fx.publisher.tasks, 1)
		task := fx.publisher.tasks[0]
		assert.Equal(t, sc.ID.String(), task.ScanID)
		assert.Equal(t, "example.com", task.Target)
		assert.Equal(t, string(target.TypeDomain), task.TargetType)
		assert.Equal(t, string(scan.ProfileStandard), task.Profile)
		assert.Equal(t, sc.Modules, task.Modules)
	})

	t.Run("terminal scan is skipped without publish", func(t *testing.T) {
		fx := newDispatchFixture()
		sc := fx.seedQueuedScan()
		require.NoError(t, fx.scanRepo.Transition(ctx, sc.ID, scan.StatusCancelled, scan.TransitionFields{}))

		require.NoError(t, fx.svc.Dispatch(ctx, sc.ID.String()))
		assert.Empty(t, fx.publisher.tasks)

		got, err := fx.scanRepo.GetByID(ctx, sc.ID)
		require.NoError(t, err)
		assert.Equal(t, scan.StatusCancelled, got.Status)
	})

	t.Run("publish failure marks scan failed and re-raises", func(t *testing.T) {
		fx := newDispatchFixture()
		sc := fx.seedQueuedScan()
		fx.publisher.err = assert.AnError

		err := fx.svc.Dispatch(ctx, sc.ID.String())
		assert.ErrorIs(t, err, assert.AnError)

		got, gerr := fx.scanRepo.GetByID(ctx, sc.ID)
		require.NoError(t, gerr)
		assert.Equal(t, scan.StatusFailed, got.Status)
		assert.NotEmpty(t, got.ErrorMessage)
	})

	t.Run("missing target marks scan failed", func(t *testing.T) {
		fx := newDispatchFixture()
		sc := fx.seedQueuedScan()
		delete(fx.targets.targets, sc.TargetID)

		err := fx.svc.Dispatch(ctx, sc.ID.String())
		assert.ErrorIs(t, err, target.ErrTargetNotFound)

		got, gerr := fx.scanRepo.GetByID(ctx, sc.ID)
		require.NoError(t, gerr)
		assert.Equal(t, scan.StatusFailed, got.Status)
	})

	t.Run("unknown scan is dropped", func(t *testing.T) {
		fx := newDispatchFixture()
		require.NoError(t, fx.svc.Dispatch(ctx, shared.NewID().String()))
		assert.Empty(t, fx.publisher.tasks)
	})

	t.Run("unparseable id is dropped", func(t *testing.T) {
		fx := newDispatchFixture()
		require.NoError(t, fx.svc.Dispatch(ctx, "definitely-not-a-uuid"))
		assert.Empty(t, fx.publisher.tasks)
	})

	t.Run("redelivery for running scan still publishes", func(t *testing.T) {
		fx := newDispatchFixture()
		sc := fx.seedQueuedScan()

		require.NoError(t, fx.svc.Dispatch(ctx, sc.ID.String()))
		require.NoError(t, fx.svc.Dispatch(ctx, sc.ID.String()))

		// The engine deduplicates per scan id; duplicate publishes are fine.
		assert.Len(t, fx.publisher.tasks, 2)
		got, err := fx.scanRepo.GetByID(ctx, sc.ID)
		require.NoError(t, err)
		assert.Equal(t, scan.StatusRunning, got.Status)
	})
}
