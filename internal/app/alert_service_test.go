package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnscan/api/pkg/domain/alertrule"
	"github.com/vulnscan/api/pkg/domain/event"
	"github.com/vulnscan/api/pkg/domain/finding"
	"github.com/vulnscan/api/pkg/domain/organization"
	"github.com/vulnscan/api/pkg/domain/shared"
	"github.com/vulnscan/api/pkg/logger"
)

type alertFixture struct {
	svc      *AlertService
	ruleRepo *fakeRuleRepo
	orgRepo  *fakeOrgRepo
	hookRepo *fakeWebhookRepo
	notifier *fakeNotifier
	orgID    shared.ID
}

func newAlertFixture() *alertFixture {
	log := logger.NewNop()
	orgID := shared.NewID()
	ruleRepo := &fakeRuleRepo{}
	orgRepo := &fakeOrgRepo{owner: &organization.Member{UserID: shared.NewID(), OrgID: orgID, Role: organization.RoleOwner}}
	hookRepo := &fakeWebhookRepo{}
	notifier := &fakeNotifier{}
	webhooks := NewWebhookDispatcher(hookRepo, WebhookDispatcherConfig{}, log)

	return &alertFixture{
		svc:      NewAlertService(ruleRepo, orgRepo, webhooks, notifier, log),
		ruleRepo: ruleRepo,
		orgRepo:  orgRepo,
		hookRepo: hookRepo,
		notifier: notifier,
		orgID:    orgID,
	}
}

func (fx *alertFixture) addRule(rule *alertrule.Rule) *alertrule.Rule {
	rule.ID = shared.NewID()
	rule.OrgID = fx.orgID
	rule.Enabled = true
	fx.ruleRepo.rules = append(fx.ruleRepo.rules, rule)
	return rule
}

func TestAlertService_Evaluate(t *testing.T) {
	ctx := context.Background()

	t.Run("matching rule triggers and records", func(t *testing.T) {
		fx := newAlertFixture()
		rule := fx.addRule(&alertrule.Rule{
			Name:           "critical findings",
			EventType:      event.TypeNewVulnerability,
			SeverityFilter: []finding.Severity{finding.SeverityCritical},
			Channels:       []alertrule.Channel{alertrule.ChannelInApp},
		})

		triggered := fx.svc.Evaluate(ctx, fx.orgID, event.TypeNewVulnerability, alertrule.Context{
			Severity: finding.SeverityCritical,
			Count:    1,
		})

		require.Len(t, triggered, 1)
		assert.True(t, triggered[0].Equals(rule.ID))
		assert.Len(t, fx.notifier.notified, 1)
		require.Len(t, fx.ruleRepo.recorded, 1)
		assert.True(t, fx.ruleRepo.recorded[0].Equals(rule.ID))
	})

	t.Run("severity filter excludes lower severities", func(t *testing.T) {
		fx := newAlertFixture()
		fx.addRule(&alertrule.Rule{
			EventType:      event.TypeNewVulnerability,
			SeverityFilter: []finding.Severity{finding.SeverityCritical, finding.SeverityHigh},
			Channels:       []alertrule.Channel{alertrule.ChannelInApp},
		})

		triggered := fx.svc.Evaluate(ctx, fx.orgID, event.TypeNewVulnerability, alertrule.Context{
			Severity: finding.SeverityLow,
			Count:    1,
		})

		assert.Empty(t, triggered)
		assert.Empty(t, fx.notifier.notified)
		assert.Empty(t, fx.ruleRepo.recorded)
	})

	t.Run("threshold boundary", func(t *testing.T) {
		fx := newAlertFixture()
		fx.addRule(&alertrule.Rule{
			EventType: event.TypeNewVulnerability,
			Threshold: 5,
			Channels:  []alertrule.Channel{alertrule.ChannelInApp},
		})

		below := fx.svc.Evaluate(ctx, fx.orgID, event.TypeNewVulnerability, alertrule.Context{Count: 4})
		assert.Empty(t, below)

		at := fx.svc.Evaluate(ctx, fx.orgID, event.TypeNewVulnerability, alertrule.Context{Count: 5})
		assert.Len(t, at, 1)
	})

	t.Run("rules for other event types are ignored", func(t *testing.T) {
		fx := newAlertFixture()
		fx.addRule(&alertrule.Rule{
			EventType: event.TypeScanFailed,
			Channels:  []alertrule.Channel{alertrule.ChannelInApp},
		})

		triggered := fx.svc.Evaluate(ctx, fx.orgID, event.TypeScanCompleted, alertrule.Context{Count: 1})
		assert.Empty(t, triggered)
	})

	t.Run("delivery failure does not block sibling rules", func(t *testing.T) {
		fx := newAlertFixture()
		fx.notifier.err = assert.AnError
		first := fx.addRule(&alertrule.Rule{
			Name:      "first",
			EventType: event.TypeScanCompleted,
			Channels:  []alertrule.Channel{alertrule.ChannelInApp},
		})
		second := fx.addRule(&alertrule.Rule{
			Name:      "second",
			EventType: event.TypeScanCompleted,
			Channels:  []alertrule.Channel{alertrule.ChannelInApp},
		})

		triggered := fx.svc.Evaluate(ctx, fx.orgID, event.TypeScanCompleted, alertrule.Context{Count: 1})

		// Both rules still trigger and record despite the channel failing.
		require.Len(t, triggered, 2)
		assert.True(t, triggered[0].Equals(first.ID))
		assert.True(t, triggered[1].Equals(second.ID))
		assert.Len(t, fx.ruleRepo.recorded, 2)
	})

	t.Run("email channel resolves to owner", func(t *testing.T) {
		fx := newAlertFixture()
		fx.addRule(&alertrule.Rule{
			EventType: event.TypeScanCompleted,
			Channels:  []alertrule.Channel{alertrule.ChannelEmail},
		})

		fx.svc.Evaluate(ctx, fx.orgID, event.TypeScanCompleted, alertrule.Context{Count: 1})

		require.Len(t, fx.notifier.notified, 1)
		assert.True(t, fx.notifier.notified[0].UserID.Equals(fx.orgRepo.owner.UserID))
	})

	t.Run("webhook channel dispatches without notifying", func(t *testing.T) {
		fx := newAlertFixture()
		fx.addRule(&alertrule.Rule{
			EventType: event.TypeScanCompleted,
			Channels:  []alertrule.Channel{alertrule.ChannelWebhook},
		})

		triggered := fx.svc.Evaluate(ctx, fx.orgID, event.TypeScanCompleted, alertrule.Context{Count: 1})
		assert.Len(t, triggered, 1)
		assert.Empty(t, fx.notifier.notified)
	})
}
