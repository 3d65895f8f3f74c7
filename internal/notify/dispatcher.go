// Package notify delivers alerts over email and webhook. Both channels are
// best effort and independent: one channel failing never blocks the other,
// and no failure ever propagates to the caller or rolls back the alert.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	alertmodels "fiscalwatch/internal/alert/models"
	companymodels "fiscalwatch/internal/company/models"
	"fiscalwatch/internal/platform/metrics"
	"fiscalwatch/internal/ports"
	"fiscalwatch/pkg/platform/circuit"
)

// DefaultWebhookTimeout bounds each webhook POST.
const DefaultWebhookTimeout = 10 * time.Second

// EmailSender is the outbound mail collaborator.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogEmailSender stands in for a real provider: it logs the message and
// succeeds. Matches the deployment mode the system launched with.
type LogEmailSender struct {
	Logger *slog.Logger
}

func (s *LogEmailSender) Send(ctx context.Context, to, subject, _ string) error {
	s.Logger.InfoContext(ctx, "email notification", "to", to, "subject", subject)
	return nil
}

// webhookPayload is the JSON body POSTed to the company's webhook.
type webhookPayload struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CompanyID string    `json:"company_id"`
	Timestamp time.Time `json:"timestamp"`
}

type Dispatcher struct {
	alerts  ports.AlertStore
	email   EmailSender
	client  *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics

	// breakers guards each webhook endpoint: a company whose endpoint keeps
	// failing stops absorbing a full timeout on every alert.
	breakersMu sync.Mutex
	breakers   map[string]*circuit.Breaker
}

type Option func(*Dispatcher)

func WithWebhookTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.client.Timeout = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(dp *Dispatcher) { dp.metrics = m }
}

func New(alerts ports.AlertStore, email EmailSender, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		alerts:   alerts,
		email:    email,
		client:   &http.Client{Timeout: DefaultWebhookTimeout},
		logger:   logger,
		breakers: make(map[string]*circuit.Breaker),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch attempts both channels for a freshly created alert and persists
// whichever delivery flags were earned. There are no retries here; this is
// deliberately fire-and-forget.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *alertmodels.Alert, company *companymodels.Company) {
	changed := false

	if company.Notification.EmailEnabled {
		if d.sendEmail(ctx, alert, company) {
			alert.EmailNotified = true
			changed = true
		}
	}

	if company.Notification.WebhookURL != "" {
		if d.sendWebhook(ctx, alert, company) {
			alert.WebhookNotified = true
			changed = true
		}
	}

	if !changed {
		return
	}
	if err := d.alerts.Update(ctx, alert); err != nil {
		d.logger.ErrorContext(ctx, "failed to persist notification flags",
			"alert_id", alert.ID, "error", err)
	}
}

func (d *Dispatcher) sendEmail(ctx context.Context, alert *alertmodels.Alert, company *companymodels.Company) bool {
	err := d.email.Send(ctx, company.Notification.Email, alert.Title, alert.Body)
	if err != nil {
		d.channelFailed(ctx, "email", alert, err)
		return false
	}
	d.channelSent("email")
	return true
}

func (d *Dispatcher) breakerFor(url string) *circuit.Breaker {
	d.breakersMu.Lock()
	defer d.breakersMu.Unlock()
	b, ok := d.breakers[url]
	if !ok {
		b = circuit.New(url)
		d.breakers[url] = b
	}
	return b
}

func (d *Dispatcher) sendWebhook(ctx context.Context, alert *alertmodels.Alert, company *companymodels.Company) bool {
	breaker := d.breakerFor(company.Notification.WebhookURL)
	if !breaker.Allow() {
		d.logger.WarnContext(ctx, "webhook circuit open, delivery skipped",
			"alert_id", alert.ID, "company_id", company.ID)
		return false
	}

	payload, err := json.Marshal(webhookPayload{
		Type:      string(alert.Type),
		Title:     alert.Title,
		Body:      alert.Body,
		CompanyID: company.ID.String(),
		Timestamp: alert.CreatedAt,
	})
	if err != nil {
		d.channelFailed(ctx, "webhook", alert, err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		company.Notification.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		d.channelFailed(ctx, "webhook", alert, err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.webhookFailed(ctx, breaker, alert, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.webhookFailed(ctx, breaker, alert, fmt.Errorf("unexpected status %d", resp.StatusCode))
		return false
	}
	breaker.RecordSuccess()
	d.channelSent("webhook")
	return true
}

func (d *Dispatcher) webhookFailed(ctx context.Context, breaker *circuit.Breaker, alert *alertmodels.Alert, err error) {
	if _, change := breaker.RecordFailure(); change.Opened {
		d.logger.WarnContext(ctx, "webhook circuit opened", "endpoint", breaker.Name())
	}
	d.channelFailed(ctx, "webhook", alert, err)
}

func (d *Dispatcher) channelSent(channel string) {
	if d.metrics != nil {
		d.metrics.NotificationsSent.WithLabelValues(channel).Inc()
	}
}

func (d *Dispatcher) channelFailed(ctx context.Context, channel string, alert *alertmodels.Alert, err error) {
	if d.metrics != nil {
		d.metrics.NotificationsFailed.WithLabelValues(channel).Inc()
	}
	d.logger.WarnContext(ctx, "notification delivery failed",
		"channel", channel, "alert_id", alert.ID, "error", err)
}
