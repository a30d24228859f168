package main

import (
	"github.com/vulnscan/api/internal/infra/postgres"
)

// Repositories holds all repository instances.
type Repositories struct {
	Organization *postgres.OrganizationRepository
	Target       *postgres.TargetRepository
	Scan         *postgres.ScanRepository
	Asset        *postgres.AssetRepository
	Finding      *postgres.FindingRepository
	ScanResult   *postgres.ScanResultRepository
	Reconcile    *postgres.ReconcileRepository
	AlertRule    *postgres.AlertRuleRepository
	Webhook      *postgres.WebhookRepository
	Notification *postgres.NotificationRepository
}

// NewRepositories creates all repositories.
func NewRepositories(db *postgres.DB) *Repositories {
	return &Repositories{
		Organization: postgres.NewOrganizationRepository(db),
		Target:       postgres.NewTargetRepository(db),
		Scan:         postgres.NewScanRepository(db),
		Asset:        postgres.NewAssetRepository(db),
		Finding:      postgres.NewFindingRepository(db),
		ScanResult:   postgres.NewScanResultRepository(db),
		Reconcile:    postgres.NewReconcileRepository(db),
		AlertRule:    postgres.NewAlertRuleRepository(db),
		Webhook:      postgres.NewWebhookRepository(db),
		Notification: postgres.NewNotificationRepository(db),
	}
}
