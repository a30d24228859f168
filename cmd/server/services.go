package main

import (
	"github.com/vulnscan/api/internal/app"
	"github.com/vulnscan/api/internal/config"
	"github.com/vulnscan/api/internal/infra/jobs"
	"github.com/vulnscan/api/internal/infra/notification"
	"github.com/vulnscan/api/pkg/email"
	"github.com/vulnscan/api/pkg/logger"
	"github.com/vulnscan/api/pkg/validator"
)

// Services holds all service instances.
type Services struct {
	Scan     *app.ScanService
	Dispatch *app.DispatchService
	Quota    *app.QuotaService
	Diff     *app.DiffService
	Alert    *app.AlertService
	Webhooks *app.WebhookDispatcher
	Notifier app.Notifier
}

// NewServices wires the application services.
func NewServices(
	cfg *config.Config,
	repos *Repositories,
	jobClient *jobs.Client,
	taskPublisher app.TaskPublisher,
	log *logger.Logger,
) *Services {
	v := validator.New()

	notifier := buildNotifier(cfg, repos, log)

	webhooks := app.NewWebhookDispatcher(repos.Webhook, app.WebhookDispatcherConfig{
		DeliveryTimeout: cfg.Webhook.DeliveryTimeout,
		RatePerSecond:   cfg.Webhook.RatePerSecond,
		RateBurst:       cfg.Webhook.RateBurst,
	}, log)

	return &Services{
		Scan:     app.NewScanService(repos.Scan, repos.Target, jobClient, v, log),
		Dispatch: app.NewDispatchService(repos.Scan, repos.Target, taskPublisher, log),
		Quota:    app.NewQuotaService(repos.Organization, log),
		Diff:     app.NewDiffService(repos.Scan, repos.Finding, log),
		Alert:    app.NewAlertService(repos.AlertRule, repos.Organization, webhooks, notifier, log),
		Webhooks: webhooks,
		Notifier: notifier,
	}
}

// buildNotifier assembles the composite notifier from the configured
// channels.
func buildNotifier(cfg *config.Config, repos *Repositories, log *logger.Logger) app.Notifier {
	var emailSender email.Sender
	if cfg.SMTP.IsConfigured() {
		emailSender = email.NewSMTPSender(email.Config{
			Host:       cfg.SMTP.Host,
			Port:       cfg.SMTP.Port,
			User:       cfg.SMTP.User,
			Password:   cfg.SMTP.Password,
			From:       cfg.SMTP.From,
			FromName:   cfg.SMTP.FromName,
			TLS:        cfg.SMTP.TLS,
			SkipVerify: cfg.SMTP.SkipVerify,
			Timeout:    cfg.SMTP.Timeout,
		})
		log.Info("email notifications enabled", "host", cfg.SMTP.Host)
	}

	var external notification.ExternalSender
	if cfg.Notify.SlackWebhookURL != "" {
		slack, err := notification.NewSlackSender(cfg.Notify.SlackWebhookURL)
		if err != nil {
			log.Warn("slack notifications disabled", "error", err)
		} else {
			external = slack
			log.Info("slack notifications enabled")
		}
	}

	return notification.NewCompositeNotifier(repos.Notification, emailSender, external, log)
}
