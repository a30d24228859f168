package target_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnscan/api/pkg/domain/scan"
	"github.com/vulnscan/api/pkg/domain/shared"
	"github.com/vulnscan/api/pkg/domain/target"
)

func TestCadence_Next(t *testing.T) {
	now := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		cadence  target.Cadence
		expected time.Time
	}{
		{"daily", target.CadenceDaily, now.Add(24 * time.Hour)},
		{"weekly", target.CadenceWeekly, now.Add(7 * 24 * time.Hour)},
		{"monthly rolls over short month", target.CadenceMonthly, time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)},
		{"none", target.CadenceNone, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cadence.Next(now))
		})
	}
}

func TestCadence_IsSet(t *testing.T) {
	assert.True(t, target.CadenceDaily.IsSet())
	assert.True(t, target.CadenceWeekly.IsSet())
	assert.True(t, target.CadenceMonthly.IsSet())
	assert.False(t, target.CadenceNone.IsSet())
	assert.False(t, target.Cadence("hourly").IsSet())
}

func TestNewTarget(t *testing.T) {
	orgID := shared.NewID()

	t.Run("defaults", func(t *testing.T) {
		tgt, err := target.NewTarget(orgID, "example.com", target.TypeDomain)
		require.NoError(t, err)

		assert.Equal(t, target.VerificationPending, tgt.VerificationStatus)
		assert.Equal(t, target.CadenceNone, tgt.ScanCadence)
		assert.Equal(t, scan.ProfileStandard, tgt.DefaultProfile)
		assert.True(t, tgt.IsActive)
	})

	t.Run("requires value", func(t *testing.T) {
		_, err := target.NewTarget(orgID, "", target.TypeDomain)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := target.NewTarget(orgID, "example.com", target.Type("URL"))
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestTarget_Schedulable(t *testing.T) {
	base := target.Target{
		IsActive:           true,
		VerificationStatus: target.VerificationVerified,
		ScanCadence:        target.CadenceDaily,
	}

	t.Run("verified active with cadence", func(t *testing.T) {
		tgt := base
		assert.True(t, tgt.Schedulable())
	})

	t.Run("inactive", func(t *testing.T) {
		tgt := base
		tgt.IsActive = false
		assert.False(t, tgt.Schedulable())
	})

	t.Run("unverified", func(t *testing.T) {
		tgt := base
		tgt.VerificationStatus = target.VerificationPending
		assert.False(t, tgt.Schedulable())
	})

	t.Run("no cadence", func(t *testing.T) {
		tgt := base
		tgt.ScanCadence = target.CadenceNone
		assert.False(t, tgt.Schedulable())
	})
}
