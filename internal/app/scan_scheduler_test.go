package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnscan/api/pkg/domain/organization"
	"github.com/vulnscan/api/pkg/domain/scan"
	"github.com/vulnscan/api/pkg/domain/shared"
	"github.com/vulnscan/api/pkg/domain/target"
	"github.com/vulnscan/api/pkg/logger"
	"github.com/vulnscan/api/pkg/validator"
)

type schedulerFixture struct {
	scheduler *ScanScheduler
	scanRepo  *fakeScanRepo
	targets   *fakeTargetRepo
	orgRepo   *fakeOrgRepo
	queue     *fakeQueue
}

func newSchedulerFixture() *schedulerFixture {
	log := logger.NewNop()
	scanRepo := newFakeScanRepo()
	targets := newFakeTargetRepo()
	orgRepo := &fakeOrgRepo{
		org:   &organization.Organization{ID: shared.NewID(), Plan: organization.PlanPro},
		owner: &organization.Member{UserID: shared.NewID(), Role: organization.RoleOwner},
	}
	queue := &fakeQueue{}
	scanService := NewScanService(scanRepo, targets, queue, validator.New(), log)

	return &schedulerFixture{
		scheduler: NewScanScheduler(targets, scanRepo, orgRepo, scanService, ScanSchedulerConfig{}, log),
		scanRepo:  scanRepo,
		targets:   targets,
		orgRepo:   orgRepo,
		queue:     queue,
	}
}

func dueTarget(fx *schedulerFixture) *target.Target {
	past := time.Now().UTC().Add(-time.Hour)
	tgt := &target.Target{
		ID:                 shared.NewID(),
		OrgID:              fx.orgRepo.org.ID,
		Value:              "example.com",
		Type:               target.TypeDomain,
		VerificationStatus: target.VerificationVerified,
		ScanCadence:        target.CadenceDaily,
		DefaultProfile:     scan.ProfileStandard,
		IsActive:           true,
		NextScanAt:         &past,
	}
	fx.targets.put(tgt)
	return tgt
}

func TestScanScheduler_ProcessTarget(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("creates scan and advances schedule", func(t *testing.T) {
		fx := newSchedulerFixture()
		tgt := dueTarget(fx)

		require.NoError(t, fx.scheduler.processTarget(ctx, tgt, now))

		assert.Len(t, fx.queue.enqueued, 1)
		require.Len(t, fx.targets.advanced, 1)
		adv := fx.targets.advanced[0]
		require.NotNil(t, adv.lastScanAt)
		assert.Equal(t, now, *adv.lastScanAt)
		assert.Equal(t, tgt.ScanCadence.Next(now), adv.nextScanAt)
	})

	t.Run("quota exhausted reschedules without scan", func(t *testing.T) {
		fx := newSchedulerFixture()
		fx.orgRepo.org.Plan = organization.PlanFree
		fx.orgRepo.org.ScansUsedThisMonth = organization.PlanFree.MonthlyScanLimit()
		tgt := dueTarget(fx)

		require.NoError(t, fx.scheduler.processTarget(ctx, tgt, now))

		assert.Empty(t, fx.queue.enqueued)
		require.Len(t, fx.targets.advanced, 1)
		// lastScanAt stays untouched: no scan actually ran.
		assert.Nil(t, fx.targets.advanced[0].lastScanAt)
	})

	t.Run("in-flight scan skips without advancing", func(t *testing.T) {
		fx := newSchedulerFixture()
		tgt := dueTarget(fx)
		fx.scanRepo.findInflight = &scan.Scan{ID: shared.NewID(), TargetID: tgt.ID, Status: scan.StatusRunning}

		require.NoError(t, fx.scheduler.processTarget(ctx, tgt, now))

		assert.Empty(t, fx.queue.enqueued)
		// The schedule is left alone so the target is retried next tick.
		assert.Empty(t, fx.targets.advanced)
	})

	t.Run("missing owner reschedules without scan", func(t *testing.T) {
		fx := newSchedulerFixture()
		fx.orgRepo.owner = nil
		tgt := dueTarget(fx)

		require.NoError(t, fx.scheduler.processTarget(ctx, tgt, now))

		assert.Empty(t, fx.queue.enqueued)
		require.Len(t, fx.targets.advanced, 1)
		assert.Nil(t, fx.targets.advanced[0].lastScanAt)
	})

	t.Run("quota race lost during creation reschedules", func(t *testing.T) {
		fx := newSchedulerFixture()
		fx.scanRepo.createErr = organization.ErrQuotaExceeded
		tgt := dueTarget(fx)

		require.NoError(t, fx.scheduler.processTarget(ctx, tgt, now))

		assert.Empty(t, fx.queue.enqueued)
		require.Len(t, fx.targets.advanced, 1)
		assert.Nil(t, fx.targets.advanced[0].lastScanAt)
	})

	t.Run("duplicate race lost during creation skips without advancing", func(t *testing.T) {
		fx := newSchedulerFixture()
		fx.scanRepo.createErr = scan.ErrDuplicateScan
		tgt := dueTarget(fx)

		require.NoError(t, fx.scheduler.processTarget(ctx, tgt, now))

		assert.Empty(t, fx.queue.enqueued)
		assert.Empty(t, fx.targets.advanced)
	})

	t.Run("unexpected creation error propagates", func(t *testing.T) {
		fx := newSchedulerFixture()
		fx.scanRepo.createErr = assert.AnError
		tgt := dueTarget(fx)

		err := fx.scheduler.processTarget(ctx, tgt, now)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Empty(t, fx.targets.advanced)
	})
}

func TestScanScheduler_TickIsolatesTargetFailures(t *testing.T) {
	fx := newSchedulerFixture()

	// Two due targets; the in-flight lookup fails for one of them.
	bad := dueTarget(fx)
	dueTarget(fx)

	fx.scanRepo.findInflightFn = func(targetID shared.ID) (*scan.Scan, error) {
		if targetID.Equals(bad.ID) {
			return nil, assert.AnError
		}
		return nil, nil
	}

	fx.scheduler.tick()

	// The healthy target still got its scan despite the sibling failing.
	assert.Len(t, fx.queue.enqueued, 1)
}
