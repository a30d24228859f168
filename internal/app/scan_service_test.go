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
	"github.com/vulnscan/api/pkg/validator"
)

type scanServiceFixture struct {
	svc      *ScanService
	scanRepo *fakeScanRepo
	targets  *fakeTargetRepo
	queue    *fakeQueue
	target   *target.Target
}

func newScanServiceFixture() *scanServiceFixture {
	scanRepo := newFakeScanRepo()
	targets := newFakeTargetRepo()
	queue := &fakeQueue{}

	tgt := &target.Target{
		ID:             shared.NewID(),
		OrgID:          shared.NewID(),
		Value:          "example.com",
		Type:           target.TypeDomain,
		DefaultProfile: scan.ProfileStandard,
		IsActive:       true,
	}
	targets.put(tgt)

	return &scanServiceFixture{
		svc:      NewScanService(scanRepo, targets, queue, validator.New(), logger.NewNop()),
		scanRepo: scanRepo,
		targets:  targets,
		queue:    queue,
		target:   tgt,
	}
}

func TestScanService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates queued scan and enqueues dispatch", func(t *testing.T) {
		fx := newScanServiceFixture()

		sc, err := fx.svc.Create(ctx, CreateScanInput{
			TargetID: fx.target.ID.String(),
			OrgID:    fx.target.OrgID.String(),
			Profile:  string(scan.ProfileQuick),
		})
		require.NoError(t, err)

		assert.Equal(t, scan.StatusQueued, sc.Status)
		assert.Equal(t, scan.ProfileQuick.Modules(), sc.Modules)
		require.Len(t, fx.queue.enqueued, 1)
		assert.Equal(t, sc.ID.String(), fx.queue.enqueued[0])
	})

	t.Run("rejects target in reserved address space", func(t *testing.T) {
		fx := newScanServiceFixture()
		fx.target.Value = "192.168.1.10"
		fx.target.Type = target.TypeIP

		_, err := fx.svc.Create(ctx, CreateScanInput{
			TargetID: fx.target.ID.String(),
			OrgID:    fx.target.OrgID.String(),
			Profile:  string(scan.ProfileQuick),
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
		assert.Empty(t, fx.queue.enqueued)
	})

	t.Run("rejects missing profile", func(t *testing.T) {
		fx := newScanServiceFixture()
		_, err := fx.svc.Create(ctx, CreateScanInput{
			TargetID: fx.target.ID.String(),
			OrgID:    fx.target.OrgID.String(),
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects unknown profile", func(t *testing.T) {
		fx := newScanServiceFixture()
		_, err := fx.svc.Create(ctx, CreateScanInput{
			TargetID: fx.target.ID.String(),
			OrgID:    fx.target.OrgID.String(),
			Profile:  "TURBO",
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("custom profile requires modules", func(t *testing.T) {
		fx := newScanServiceFixture()
		_, err := fx.svc.Create(ctx, CreateScanInput{
			TargetID: fx.target.ID.String(),
			OrgID:    fx.target.OrgID.String(),
			Profile:  string(scan.ProfileCustom),
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("custom profile with modules", func(t *testing.T) {
		fx := newScanServiceFixture()
		sc, err := fx.svc.Create(ctx, CreateScanInput{
			TargetID: fx.target.ID.String(),
			OrgID:    fx.target.OrgID.String(),
			Profile:  string(scan.ProfileCustom),
			Modules:  []string{"port_scanner", "ssl_analyzer"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"port_scanner", "ssl_analyzer"}, sc.Modules)
	})

	t.Run("target in another organization is invisible", func(t *testing.T) {
		fx := newScanServiceFixture()
		_, err := fx.svc.Create(ctx, CreateScanInput{
			TargetID: fx.target.ID.String(),
			OrgID:    shared.NewID().String(),
			Profile:  string(scan.ProfileQuick),
		})
		assert.ErrorIs(t, err, target.ErrTargetNotFound)
	})

	t.Run("duplicate in-flight scan is rejected", func(t *testing.T) {
		fx := newScanServiceFixture()
		fx.scanRepo.createErr = scan.ErrDuplicateScan

		_, err := fx.svc.Create(ctx, CreateScanInput{
			TargetID: fx.target.ID.String(),
			OrgID:    fx.target.OrgID.String(),
			Profile:  string(scan.ProfileQuick),
		})
		assert.ErrorIs(t, err, scan.ErrDuplicateScan)
		assert.Empty(t, fx.queue.enqueued)
	})

	t.Run("enqueue failure fails the created scan", func(t *testing.T) {
		fx := newScanServiceFixture()
		fx.queue.err = assert.AnError

		_, err := fx.svc.Create(ctx, CreateScanInput{
			TargetID: fx.target.ID.String(),
			OrgID:    fx.target.OrgID.String(),
			Profile:  string(scan.ProfileQuick),
		})
		require.Error(t, err)

		// The scan row must not wedge the target's in-flight slot.
		require.Len(t, fx.scanRepo.scans, 1)
		for _, sc := range fx.scanRepo.scans {
			assert.Equal(t, scan.StatusFailed, sc.Status)
		}
	})
}

func TestScanService_CreateScheduled(t *testing.T) {
	fx := newScanServiceFixture()
	creator := shared.NewID()

	sc, err := fx.svc.CreateScheduled(context.Background(), fx.target, creator)
	require.NoError(t, err)

	assert.Equal(t, fx.target.DefaultProfile, sc.Profile)
	assert.True(t, sc.CreatedBy.Equals(creator))
	assert.Len(t, fx.queue.enqueued, 1)
}

func TestScanService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels queued scan", func(t *testing.T) {
		fx := newScanServiceFixture()
		sc := &scan.Scan{ID: shared.NewID(), Status: scan.StatusQueued}
		fx.scanRepo.put(sc)

		require.NoError(t, fx.svc.Cancel(ctx, sc.ID))

		got, err := fx.scanRepo.GetByID(ctx, sc.ID)
		require.NoError(t, err)
		assert.Equal(t, scan.StatusCancelled, got.Status)
		require.NotNil(t, got.CompletedAt)
	})

	t.Run("completed scan cannot be cancelled", func(t *testing.T) {
		fx := newScanServiceFixture()
		sc := &scan.Scan{ID: shared.NewID(), Status: scan.StatusCompleted}
		fx.scanRepo.put(sc)

		err := fx.svc.Cancel(ctx, sc.ID)
		assert.ErrorIs(t, err, scan.ErrInvalidTransition)
	})

	t.Run("unknown scan", func(t *testing.T) {
		fx := newScanServiceFixture()
		err := fx.svc.Cancel(ctx, shared.NewID())
		assert.ErrorIs(t, err, scan.ErrScanNotFound)
	})
}
