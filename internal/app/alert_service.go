package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vulnscan/api/internal/metrics"
	"github.com/vulnscan/api/pkg/domain/alertrule"
	"github.com/vulnscan/api/pkg/domain/event"
	"github.com/vulnscan/api/pkg/domain/finding"
	"github.com/vulnscan/api/pkg/domain/notification"
	"github.com/vulnscan/api/pkg/domain/organization"
	"github.com/vulnscan/api/pkg/domain/shared"
	"github.com/vulnscan/api/pkg/logger"
)

// AlertService evaluates organization-defined alert rules against emitted
// domain events and raises notifications on the matching rules' channels.
type AlertService struct {
	ruleRepo alertrule.Repository
	orgRepo  organization.Repository
	webhooks *WebhookDispatcher
	notifier Notifier
	logger   *logger.Logger
}

// NewAlertService creates a new AlertService.
func NewAlertService(
	ruleRepo alertrule.Repository,
	orgRepo organization.Repository,
	webhooks *WebhookDispatcher,
	notifier Notifier,
	log *logger.Logger,
) *AlertService {
	return &AlertService{
		ruleRepo: ruleRepo,
		orgRepo:  orgRepo,
		webhooks: webhooks,
		notifier: notifier,
		logger:   log.With("component", "alert_service"),
	}
}

// Evaluate runs the organization's active rules for the event type against
// the event context and returns the ids of the rules that triggered. Rules
// are independent: one rule's side-effect failure never blocks the rest.
func (s *AlertService) Evaluate(ctx context.Context, orgID shared.ID, eventType event.Type, evCtx alertrule.Context) []shared.ID {
	rules, err := s.ruleRepo.ListActive(ctx, orgID, eventType)
	if err != nil {
		s.logger.Error("failed to list alert rules",
			"org_id", orgID.String(),
			"event_type", string(eventType),
			"error", err,
		)
		return nil
	}

	var triggered []shared.ID
	for _, rule := range rules {
		if !rule.Matches(evCtx) {
			continue
		}
		triggered = append(triggered, rule.ID)
		s.fire(ctx, rule, eventType, evCtx)
	}
	return triggered
}

func (s *AlertService) fire(ctx context.Context, rule *alertrule.Rule, eventType event.Type, evCtx alertrule.Context) {
	s.logger.Info("alert rule triggered",
		"rule_id", rule.ID.String(),
		"org_id", rule.OrgID.String(),
		"event_type", string(eventType),
	)

	for _, channel := range rule.Channels {
		metrics.AlertRulesTriggered.WithLabelValues(string(channel)).Inc()
		if err := s.deliver(ctx, rule, channel, eventType, evCtx); err != nil {
			s.logger.Error("alert channel delivery failed",
				"rule_id", rule.ID.String(),
				"channel", string(channel),
				"error", err,
			)
		}
	}

	if err := s.ruleRepo.RecordTrigger(ctx, rule.ID, time.Now().UTC()); err != nil {
		s.logger.Error("failed to record rule trigger",
			"rule_id", rule.ID.String(),
			"error", err,
		)
	}
}

func (s *AlertService) deliver(ctx context.Context, rule *alertrule.Rule, channel alertrule.Channel, eventType event.Type, evCtx alertrule.Context) error {
	switch channel {
	case alertrule.ChannelInApp, alertrule.ChannelEmail:
		// Both channels resolve to the owner; the notifier decides which
		// transports are configured.
		owner, err := s.orgRepo.FindOwner(ctx, rule.OrgID)
		if err != nil {
			return err
		}
		if owner == nil {
			return fmt.Errorf("organization %s has no owner", rule.OrgID.String())
		}
		n := alertNotification(rule, owner, eventType, evCtx)
		return s.notifier.Notify(ctx, owner, n)
	case alertrule.ChannelWebhook:
		s.webhooks.Dispatch(ctx, rule.OrgID, eventType, AlertEventData{
			RuleID:   rule.ID.String(),
			RuleName: rule.Name,
			Severity: string(evCtx.Severity),
			Category: string(evCtx.Category),
			Count:    evCtx.Count,
		})
		return nil
	default:
		return fmt.Errorf("unknown alert channel %q", channel)
	}
}

func alertNotification(rule *alertrule.Rule, owner *organization.Member, eventType event.Type, evCtx alertrule.Context) *notification.Notification {
	severity := evCtx.Severity
	if severity == "" {
		severity = finding.SeverityInfo
	}
	title := fmt.Sprintf("Alert: %s", rule.Name)
	body := fmt.Sprintf("Rule %q matched event %s.", rule.Name, eventType)
	return notification.New(rule.OrgID, owner.UserID, title, body, severity)
}

// AlertEventData is the webhook payload for triggered alert rules.
type AlertEventData struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
	Severity string `json:"severity,omitempty"`
	Category string `json:"category,omitempty"`
	Count    int    `json:"count"`
}
