package app

import (
	"context"
	"sync"
	"time"

	"github.com/vulnscan/api/pkg/domain/alertrule"
	"github.com/vulnscan/api/pkg/domain/asset"
	"github.com/vulnscan/api/pkg/domain/event"
	"github.com/vulnscan/api/pkg/domain/finding"
	"github.com/vulnscan/api/pkg/domain/notification"
	"github.com/vulnscan/api/pkg/domain/organization"
	"github.com/vulnscan/api/pkg/domain/scan"
	"github.com/vulnscan/api/pkg/domain/scanresult"
	"github.com/vulnscan/api/pkg/domain/shared"
	"github.com/vulnscan/api/pkg/domain/target"
	"github.com/vulnscan/api/pkg/domain/webhook"
)

// In-memory fakes for the repository and collaborator contracts. Function
// fields override individual behaviors per test.

type fakeScanRepo struct {
	mu    sync.Mutex
	scans map[shared.ID]*scan.Scan

	createErr      error
	transitions    []scan.Status
	progressCalls  []int
	prevCompleted  *scan.Scan
	findInflight   *scan.Scan
	findInflightFn func(targetID shared.ID) (*scan.Scan, error)
}

func newFakeScanRepo() *fakeScanRepo {
	return &fakeScanRepo{scans: make(map[shared.ID]*scan.Scan)}
}

func (f *fakeScanRepo) put(s *scan.Scan) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans[s.ID] = s
}

func (f *fakeScanRepo) Create(ctx context.Context, params scan.CreateParams) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.put(params.Scan)
	return nil
}

func (f *fakeScanRepo) GetByID(ctx context.Context, id shared.ID) (*scan.Scan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.scans[id]
	if !ok {
		return nil, scan.ErrScanNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeScanRepo) Transition(ctx context.Context, id shared.ID, next scan.Status, fields scan.TransitionFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.scans[id]
	if !ok {
		return scan.ErrScanNotFound
	}
	if !scan.CanTransition(s.Status, next) {
		return scan.ErrInvalidTransition
	}
	s.Status = next
	if fields.Progress != nil {
		s.Progress = *fields.Progress
	}
	if fields.ErrorMessage != nil {
		s.ErrorMessage = *fields.ErrorMessage
	}
	if fields.Counts != nil {
		s.Counts = *fields.Counts
	}
	if fields.StartedAt != nil {
		s.StartedAt = fields.StartedAt
	}
	if fields.CompletedAt != nil {
		s.CompletedAt = fields.CompletedAt
	}
	f.transitions = append(f.transitions, next)
	return nil
}

func (f *fakeScanRepo) UpdateProgress(ctx context.Context, id shared.ID, progress int, currentModule, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progressCalls = append(f.progressCalls, progress)
	if s, ok := f.scans[id]; ok && s.Status == scan.StatusRunning && progress > s.Progress {
		s.Progress = progress
		s.CurrentModule = currentModule
	}
	return nil
}

func (f *fakeScanRepo) FindRunningOrQueued(ctx context.Context, targetID shared.ID) (*scan.Scan, error) {
	if f.findInflightFn != nil {
		return f.findInflightFn(targetID)
	}
	return f.findInflight, nil
}

func (f *fakeScanRepo) FindPreviousCompleted(ctx context.Context, targetID shared.ID, before time.Time) (*scan.Scan, error) {
	return f.prevCompleted, nil
}

type fakeTargetRepo struct {
	mu      sync.Mutex
	targets map[shared.ID]*target.Target

	advanced []advanceCall
}

type advanceCall struct {
	targetID   shared.ID
	lastScanAt *time.Time
	nextScanAt time.Time
}

func newFakeTargetRepo() *fakeTargetRepo {
	return &fakeTargetRepo{targets: make(map[shared.ID]*target.Target)}
}

func (f *fakeTargetRepo) put(t *target.Target) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets[t.ID] = t
}

func (f *fakeTargetRepo) GetByID(ctx context.Context, id shared.ID) (*target.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.targets[id]
	if !ok {
		return nil, target.ErrTargetNotFound
	}
	return t, nil
}

func (f *fakeTargetRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*target.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []*target.Target
	for _, t := range f.targets {
		if t.Schedulable() && t.NextScanAt != nil && !t.NextScanAt.After(now) {
			due = append(due, t)
		}
	}
	return due, nil
}

func (f *fakeTargetRepo) AdvanceSchedule(ctx context.Context, id shared.ID, lastScanAt *time.Time, nextScanAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advanced = append(f.advanced, advanceCall{id, lastScanAt, nextScanAt})
	if t, ok := f.targets[id]; ok {
		if lastScanAt != nil {
			t.LastScanAt = lastScanAt
		}
		next := nextScanAt
		t.NextScanAt = &next
	}
	return nil
}

type fakeOrgRepo struct {
	org     *organization.Organization
	owner   *organization.Member
	members []*organization.Member

	resetCount int64
}

func (f *fakeOrgRepo) GetByID(ctx context.Context, id shared.ID) (*organization.Organization, error) {
	if f.org == nil {
		return nil, organization.ErrOrgNotFound
	}
	return f.org, nil
}

func (f *fakeOrgRepo) FindOwner(ctx context.Context, orgID shared.ID) (*organization.Member, error) {
	return f.owner, nil
}

func (f *fakeOrgRepo) ListMembers(ctx context.Context, orgID shared.ID) ([]*organization.Member, error) {
	return f.members, nil
}

func (f *fakeOrgRepo) ResetMonthlyUsage(ctx context.Context, now time.Time) (int64, error) {
	return f.resetCount, nil
}

type fakeFindingRepo struct {
	byScan map[shared.ID][]*finding.Finding
}

func (f *fakeFindingRepo) ListByScan(ctx context.Context, scanID shared.ID) ([]*finding.Finding, error) {
	return f.byScan[scanID], nil
}

type fakeRuleRepo struct {
	rules    []*alertrule.Rule
	recorded []shared.ID
}

func (f *fakeRuleRepo) ListActive(ctx context.Context, orgID shared.ID, eventType event.Type) ([]*alertrule.Rule, error) {
	var out []*alertrule.Rule
	for _, r := range f.rules {
		if r.EventType == eventType && r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRuleRepo) RecordTrigger(ctx context.Context, id shared.ID, at time.Time) error {
	f.recorded = append(f.recorded, id)
	return nil
}

type fakeWebhookRepo struct {
	mu         sync.Mutex
	hooks      []*webhook.Webhook
	deliveries []recordedDelivery
}

type recordedDelivery struct {
	id        shared.ID
	delivered bool
	errMsg    string
}

func (f *fakeWebhookRepo) ListActiveForEvent(ctx context.Context, orgID shared.ID, eventType event.Type) ([]*webhook.Webhook, error) {
	var out []*webhook.Webhook
	for _, h := range f.hooks {
		if h.Active && h.SubscribedTo(eventType) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeWebhookRepo) RecordDelivery(ctx context.Context, id shared.ID, delivered bool, errMsg string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, recordedDelivery{id, delivered, errMsg})
	return nil
}

type fakeStore struct {
	applied     bool
	err         error
	gotFields   scan.TransitionFields
	gotAssets   []*asset.Asset
	gotFindings []*finding.Finding
	gotResult   *scanresult.ScanResult
	calls       int
}

func (f *fakeStore) ApplyCompleted(
	ctx context.Context,
	scanID shared.ID,
	fields scan.TransitionFields,
	assets []*asset.Asset,
	findings []*finding.Finding,
	result *scanresult.ScanResult,
) (bool, error) {
	f.calls++
	f.gotFields = fields
	f.gotAssets = assets
	f.gotFindings = findings
	f.gotResult = result
	return f.applied, f.err
}

type fakeNotifier struct {
	mu       sync.Mutex
	notified []*notification.Notification
	err      error
}

func (f *fakeNotifier) Notify(ctx context.Context, member *organization.Member, n *notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, n)
	return f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	tasks  []*event.ScanTask
	err    error
}

func (f *fakePublisher) PublishTask(ctx context.Context, task *event.ScanTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, task)
	return nil
}

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []string
	err      error
}

func (f *fakeQueue) EnqueueScanDispatch(ctx context.Context, scanID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, scanID)
	return nil
}
