package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vulnscan/api/internal/metrics"
	"github.com/vulnscan/api/pkg/domain/alertrule"
	"github.com/vulnscan/api/pkg/domain/asset"
	"github.com/vulnscan/api/pkg/domain/event"
	"github.com/vulnscan/api/pkg/domain/finding"
	"github.com/vulnscan/api/pkg/domain/notification"
	"github.com/vulnscan/api/pkg/domain/organization"
	"github.com/vulnscan/api/pkg/domain/scan"
	"github.com/vulnscan/api/pkg/domain/scanresult"
	"github.com/vulnscan/api/pkg/domain/shared"
	"github.com/vulnscan/api/pkg/logger"
)

// ReconcileStore applies a completed scan's writes atomically: asset
// upserts, finding inserts, the result snapshot, and the COMPLETED
// transition commit or roll back together. applied is false when the
// transition gate did not match (redelivered event, or the scan is no longer
// RUNNING); nothing is written in that case.
type ReconcileStore interface {
	ApplyCompleted(
		ctx context.Context,
		scanID shared.ID,
		fields scan.TransitionFields,
		assets []*asset.Asset,
		findings []*finding.Finding,
		result *scanresult.ScanResult,
	) (applied bool, err error)
}

// Reconciler consumes the engine's result messages and reconciles them into
// durable state. It is the single subscriber on the results channel and
// processes messages sequentially, which preserves per-scan event order.
// Every message may arrive more than once; all writes are conditional or
// idempotent.
type Reconciler struct {
	scanRepo   scan.Repository
	orgRepo    organization.Repository
	store      ReconcileStore
	alerts     *AlertService
	webhooks   *WebhookDispatcher
	notifier   Notifier
	logger     *logger.Logger
}

// NewReconciler creates a new Reconciler.
func NewReconciler(
	scanRepo scan.Repository,
	orgRepo organization.Repository,
	store ReconcileStore,
	alerts *AlertService,
	webhooks *WebhookDispatcher,
	notifier Notifier,
	log *logger.Logger,
) *Reconciler {
	return &Reconciler{
		scanRepo: scanRepo,
		orgRepo:  orgRepo,
		store:    store,
		alerts:   alerts,
		webhooks: webhooks,
		notifier: notifier,
		logger:   log.With("component", "reconciler"),
	}
}

// HandleResult processes one raw result message. Parse and processing
// failures are logged and swallowed; the subscriber loop must survive any
// single message.
func (r *Reconciler) HandleResult(ctx context.Context, payload []byte) error {
	var msg event.ResultMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		metrics.ReconcilerDiscardedTotal.WithLabelValues("malformed").Inc()
		r.logger.Error("malformed result message", "error", err)
		return nil
	}

	scanID, err := shared.IDFromString(msg.ScanID)
	if err != nil {
		metrics.ReconcilerDiscardedTotal.WithLabelValues("malformed").Inc()
		r.logger.Error("result message has invalid scan id", "scan_id", msg.ScanID)
		return nil
	}

	metrics.ReconcilerMessagesTotal.WithLabelValues(msg.Status).Inc()

	switch msg.Status {
	case event.ResultStatusProgress:
		return r.handleProgress(ctx, scanID, &msg)
	case event.ResultStatusCompleted:
		return r.handleCompleted(ctx, scanID, &msg, payload)
	case event.ResultStatusFailed:
		return r.handleFailed(ctx, scanID, &msg)
	default:
		metrics.ReconcilerDiscardedTotal.WithLabelValues("unknown_status").Inc()
		r.logger.Warn("result message has unknown status",
			"scan_id", msg.ScanID,
			"status", msg.Status,
		)
		return nil
	}
}

func (r *Reconciler) handleProgress(ctx context.Context, scanID shared.ID, msg *event.ResultMessage) error {
	err := r.scanRepo.UpdateProgress(ctx, scanID, msg.Progress, msg.CurrentModule, msg.Message)
	if err != nil {
		r.logger.Error("failed to update scan progress",
			"scan_id", scanID.String(),
			"error", err,
		)
	}
	return nil
}

func (r *Reconciler) handleCompleted(ctx context.Context, scanID shared.ID, msg *event.ResultMessage, raw []byte) error {
	sc, err := r.scanRepo.GetByID(ctx, scanID)
	if err != nil {
		if errors.Is(err, scan.ErrScanNotFound) {
			// Degraded engine reporting for a scan this core never created.
			metrics.ReconcilerDiscardedTotal.WithLabelValues("unknown_scan").Inc()
			r.logger.Warn("result for unknown scan", "scan_id", scanID.String())
			return nil
		}
		r.logger.Error("failed to load scan", "scan_id", scanID.String(), "error", err)
		return nil
	}

	if sc.Status == scan.StatusCancelled {
		// Cancellation does not stop the engine; its late result is
		// discarded rather than resurrecting the scan.
		metrics.ReconcilerDiscardedTotal.WithLabelValues("cancelled").Inc()
		r.logger.Warn("discarding result for cancelled scan", "scan_id", scanID.String())
		return nil
	}

	assets := r.buildAssets(sc, msg.Assets)
	findings := r.buildFindings(sc, msg.Findings)
	counts := severityCounts(findings)

	now := time.Now().UTC()
	progress := 100
	fields := scan.TransitionFields{
		Progress:    &progress,
		Counts:      &counts,
		CompletedAt: &now,
	}

	applied, err := r.store.ApplyCompleted(ctx, scanID, fields,
		assets, findings, r.buildSnapshot(sc, msg, raw, len(assets), len(findings)))
	if err != nil {
		// The transaction rolled back; the scan stays RUNNING so a
		// redelivered result can retry the whole apply.
		r.logger.Error("failed to apply completed scan",
			"scan_id", scanID.String(),
			"target_id", sc.TargetID.String(),
			"org_id", sc.OrgID.String(),
			"error", err,
		)
		return nil
	}
	if !applied {
		metrics.ReconcilerDiscardedTotal.WithLabelValues("already_applied").Inc()
		r.logger.Info("completed result not applied, scan no longer running",
			"scan_id", scanID.String(),
		)
		return nil
	}

	metrics.ScanTransitionsTotal.WithLabelValues(string(scan.StatusCompleted)).Inc()
	for _, f := range findings {
		metrics.ReconcilerFindingsTotal.WithLabelValues(string(f.Severity)).Inc()
	}
	if sc.StartedAt != nil {
		metrics.ScanDuration.Observe(now.Sub(*sc.StartedAt).Seconds())
	}

	r.logger.Info("scan completed",
		"scan_id", scanID.String(),
		"target_id", sc.TargetID.String(),
		"assets", len(assets),
		"findings", len(findings),
	)

	// Fan-out is best-effort: the scan is already COMPLETED; downstream
	// failures are logged, never propagated.
	r.notifySevereFindings(ctx, sc, findings)
	r.evaluateAlerts(ctx, sc, findings)
	r.dispatchWebhooks(ctx, sc, counts)

	return nil
}

func (r *Reconciler) handleFailed(ctx context.Context, scanID shared.ID, msg *event.ResultMessage) error {
	sc, err := r.scanRepo.GetByID(ctx, scanID)
	if err != nil {
		if errors.Is(err, scan.ErrScanNotFound) {
			metrics.ReconcilerDiscardedTotal.WithLabelValues("unknown_scan").Inc()
			r.logger.Warn("failure result for unknown scan", "scan_id", scanID.String())
			return nil
		}
		r.logger.Error("failed to load scan", "scan_id", scanID.String(), "error", err)
		return nil
	}
	if sc.Status == scan.StatusCancelled {
		metrics.ReconcilerDiscardedTotal.WithLabelValues("cancelled").Inc()
		r.logger.Warn("discarding failure for cancelled scan", "scan_id", scanID.String())
		return nil
	}

	errMsg := msg.Error
	if errMsg == "" {
		errMsg = "scan failed without a reported error"
	}
	now := time.Now().UTC()
	fields := scan.TransitionFields{ErrorMessage: &errMsg, CompletedAt: &now}
	if err := r.scanRepo.Transition(ctx, scanID, scan.StatusFailed, fields); err != nil {
		if errors.Is(err, scan.ErrInvalidTransition) {
			metrics.ReconcilerDiscardedTotal.WithLabelValues("already_applied").Inc()
			r.logger.Info("failure result not applied, scan already terminal",
				"scan_id", scanID.String(),
			)
			return nil
		}
		r.logger.Error("failed to mark scan failed",
			"scan_id", scanID.String(),
			"error", err,
		)
		return nil
	}

	metrics.ScanTransitionsTotal.WithLabelValues(string(scan.StatusFailed)).Inc()
	r.logger.Info("scan failed",
		"scan_id", scanID.String(),
		"target_id", sc.TargetID.String(),
		"error", errMsg,
	)

	alertCtx := alertContext(sc.TargetID)
	r.alerts.Evaluate(ctx, sc.OrgID, event.TypeScanFailed, alertCtx)
	r.webhooks.Dispatch(ctx, sc.OrgID, event.TypeScanFailed, scanEventData(sc, nil, errMsg))

	return nil
}

func (r *Reconciler) buildAssets(sc *scan.Scan, payloads []event.AssetPayload) []*asset.Asset {
	now := time.Now().UTC()
	assets := make([]*asset.Asset, 0, len(payloads))
	seen := make(map[string]bool, len(payloads))
	for _, p := range payloads {
		if p.Value == "" {
			continue
		}
		typ := asset.ParseType(p.Type)
		// Dedup within the message; the store's conflict clause covers
		// duplicates across deliveries.
		key := string(typ) + "|" + p.Value
		if seen[key] {
			continue
		}
		seen[key] = true
		assets = append(assets, &asset.Asset{
			ID:          shared.NewID(),
			TargetID:    sc.TargetID,
			Type:        typ,
			Value:       p.Value,
			Metadata:    p.Metadata,
			FirstSeenAt: now,
			LastSeenAt:  now,
		})
	}
	return assets
}

func (r *Reconciler) buildFindings(sc *scan.Scan, payloads []event.FindingPayload) []*finding.Finding {
	now := time.Now().UTC()
	findings := make([]*finding.Finding, 0, len(payloads))
	for _, p := range payloads {
		category, known := finding.ParseCategory(p.Category)
		if !known {
			// Safety net, not an error: drift between engine and core
			// categories stays observable in the logs.
			r.logger.Warn("unknown finding category mapped to OTHER",
				"scan_id", sc.ID.String(),
				"category", p.Category,
				"title", p.Title,
			)
		}
		findings = append(findings, &finding.Finding{
			ID:                shared.NewID(),
			ScanID:            sc.ID,
			TargetID:          sc.TargetID,
			Title:             p.Title,
			Severity:          finding.ParseSeverity(p.Severity),
			Category:          category,
			Description:       p.Description,
			Solution:          p.Solution,
			CVEID:             p.CVEID,
			CVSSScore:         p.CVSSScore,
			AffectedComponent: p.AffectedComponent,
			Evidence:          p.Evidence,
			References:        p.References,
			Metadata:          p.Metadata,
			Status:            finding.StatusOpen,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}
	return findings
}

func (r *Reconciler) buildSnapshot(sc *scan.Scan, msg *event.ResultMessage, raw []byte, assets, findings int) *scanresult.ScanResult {
	var summary scanresult.Summary
	if msg.Summary != nil {
		summary = scanresult.Summary{
			TotalFindings:  msg.Summary.TotalFindings,
			SeverityCounts: msg.Summary.SeverityCounts,
			RiskScore:      msg.Summary.RiskScore,
			SecurityScore:  msg.Summary.SecurityScore,
		}
	} else {
		summary.TotalFindings = findings
	}
	return scanresult.New(sc.ID, assets, findings, summary, raw)
}

// notifySevereFindings fans a notification out to every organization member
// when the scan produced CRITICAL or HIGH findings. Each recipient is
// independent; a delivery failure is logged and the rest proceed.
func (r *Reconciler) notifySevereFindings(ctx context.Context, sc *scan.Scan, findings []*finding.Finding) {
	severe := worstSevere(findings)
	if severe == nil {
		return
	}

	members, err := r.orgRepo.ListMembers(ctx, sc.OrgID)
	if err != nil {
		r.logger.Error("failed to list members for notification",
			"org_id", sc.OrgID.String(),
			"error", err,
		)
		return
	}

	title := fmt.Sprintf("%s vulnerability found", severe.Severity)
	body := fmt.Sprintf("Scan found %q (%s) on the target.", severe.Title, severe.Severity)

	for _, m := range members {
		n := notification.New(sc.OrgID, m.UserID, title, body, severe.Severity)
		n.ScanID = &sc.ID
		n.FindingID = &severe.ID
		if err := r.notifier.Notify(ctx, m, n); err != nil {
			r.logger.Error("failed to notify member",
				"org_id", sc.OrgID.String(),
				"user_id", m.UserID.String(),
				"error", err,
			)
		}
	}
}

func (r *Reconciler) evaluateAlerts(ctx context.Context, sc *scan.Scan, findings []*finding.Finding) {
	// NEW_VULNERABILITY rules filter on severity and category, so findings
	// are grouped per (severity, category) with the group size as the count.
	type group struct {
		severity finding.Severity
		category finding.Category
	}
	groups := make(map[group]int)
	for _, f := range findings {
		groups[group{f.Severity, f.Category}]++
	}
	for g, count := range groups {
		alertCtx := alertContext(sc.TargetID)
		alertCtx.Severity = g.severity
		alertCtx.Category = g.category
		alertCtx.Count = count
		r.alerts.Evaluate(ctx, sc.OrgID, event.TypeNewVulnerability, alertCtx)
	}

	r.alerts.Evaluate(ctx, sc.OrgID, event.TypeScanCompleted, alertContext(sc.TargetID))
}

func (r *Reconciler) dispatchWebhooks(ctx context.Context, sc *scan.Scan, counts scan.SeverityCounts) {
	r.webhooks.Dispatch(ctx, sc.OrgID, event.TypeScanCompleted, scanEventData(sc, &counts, ""))
	if counts.Critical > 0 || counts.High > 0 {
		r.webhooks.Dispatch(ctx, sc.OrgID, event.TypeNewVulnerability, scanEventData(sc, &counts, ""))
	}
}

func severityCounts(findings []*finding.Finding) scan.SeverityCounts {
	var counts scan.SeverityCounts
	for _, f := range findings {
		switch f.Severity {
		case finding.SeverityCritical:
			counts.Critical++
		case finding.SeverityHigh:
			counts.High++
		case finding.SeverityMedium:
			counts.Medium++
		case finding.SeverityLow:
			counts.Low++
		default:
			counts.Info++
		}
	}
	return counts
}

// worstSevere returns the most severe CRITICAL or HIGH finding, or nil when
// the scan produced neither.
func worstSevere(findings []*finding.Finding) *finding.Finding {
	var worst *finding.Finding
	for _, f := range findings {
		if !f.Severity.AtLeast(finding.SeverityHigh) {
			continue
		}
		if worst == nil || (f.Severity != worst.Severity && f.Severity.AtLeast(worst.Severity)) {
			worst = f
		}
	}
	return worst
}

func alertContext(targetID shared.ID) alertrule.Context {
	return alertrule.Context{TargetID: targetID, Count: 1}
}

// ScanEventData is the webhook payload for scan lifecycle events.
type ScanEventData struct {
	ScanID   string               `json:"scan_id"`
	TargetID string               `json:"target_id"`
	Profile  string               `json:"profile"`
	Counts   *scan.SeverityCounts `json:"severity_counts,omitempty"`
	Error    string               `json:"error,omitempty"`
}

func scanEventData(sc *scan.Scan, counts *scan.SeverityCounts, errMsg string) ScanEventData {
	return ScanEventData{
		ScanID:   sc.ID.String(),
		TargetID: sc.TargetID.String(),
		Profile:  string(sc.Profile),
		Counts:   counts,
		Error:    errMsg,
	}
}
