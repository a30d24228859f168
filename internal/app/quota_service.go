package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vulnscan/api/internal/metrics"
	"github.com/vulnscan/api/pkg/domain/organization"
	"github.com/vulnscan/api/pkg/logger"
)

// QuotaUsage is an organization's current scan usage against its plan limit.
type QuotaUsage struct {
	OrgID     string `json:"org_id"`
	Plan      string `json:"plan"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Unlimited bool   `json:"unlimited"`
}

// QuotaService exposes usage reads and runs the periodic monthly usage
// reset. The reservation itself lives inside scan creation's transaction;
// this service only observes and resets the counters.
type QuotaService struct {
	orgRepo organization.Repository
	logger  *logger.Logger
	cron    *cron.Cron
}

// NewQuotaService creates a new QuotaService.
func NewQuotaService(orgRepo organization.Repository, log *logger.Logger) *QuotaService {
	return &QuotaService{
		orgRepo: orgRepo,
		logger:  log.With("component", "quota_service"),
		cron:    cron.New(),
	}
}

// Usage returns the organization's current quota usage.
func (s *QuotaService) Usage(ctx context.Context, orgID organization.ID) (*QuotaUsage, error) {
	org, err := s.orgRepo.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	limit := org.Plan.MonthlyScanLimit()
	return &QuotaUsage{
		OrgID:     org.ID.String(),
		Plan:      string(org.Plan),
		Used:      org.ScansUsedThisMonth,
		Limit:     limit,
		Unlimited: limit == organization.Unlimited,
	}, nil
}

// HasRemaining reports whether the organization may create another scan.
func (s *QuotaService) HasRemaining(ctx context.Context, orgID organization.ID) (bool, error) {
	org, err := s.orgRepo.GetByID(ctx, orgID)
	if err != nil {
		return false, err
	}
	return org.Plan.HasQuotaRemaining(org.ScansUsedThisMonth), nil
}

// Start schedules the hourly reset sweep. Each sweep zeroes the counters of
// every organization whose reset instant has passed, so resets land within
// an hour of the org's monthly boundary regardless of process restarts.
func (s *QuotaService) Start() error {
	_, err := s.cron.AddFunc("@hourly", s.resetSweep)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("quota reset schedule started")
	return nil
}

// Stop stops the reset schedule, waiting for an in-flight sweep.
func (s *QuotaService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("quota reset schedule stopped")
}

func (s *QuotaService) resetSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	reset, err := s.orgRepo.ResetMonthlyUsage(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("monthly usage reset sweep failed", "error", err)
		return
	}
	metrics.QuotaResetsTotal.Inc()
	if reset > 0 {
		s.logger.Info("monthly usage counters reset", "organizations", reset)
	}
}
