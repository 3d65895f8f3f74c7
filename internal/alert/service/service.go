// Package service creates and deduplicates alerts. The company's revenue
// cache update and the alert row commit as one transaction; suppression by
// the 24-hour window still commits the cache update.
package service

import (
	"context"
	"log/slog"
	"time"

	"fiscalwatch/internal/alert/dedup"
	alertmodels "fiscalwatch/internal/alert/models"
	companymodels "fiscalwatch/internal/company/models"
	"fiscalwatch/internal/platform/events"
	"fiscalwatch/internal/platform/metrics"
	"fiscalwatch/internal/ports"
	"fiscalwatch/internal/revenue"
	id "fiscalwatch/pkg/domain"
	dErrors "fiscalwatch/pkg/domain-errors"
	"fiscalwatch/pkg/platform/tx"
)

// DedupWindow is how long a created alert suppresses further alerts of the
// same class for the same company.
const DedupWindow = 24 * time.Hour

type Service struct {
	companies ports.CompanyStore
	alerts    ports.AlertStore
	tx        tx.Runner
	logger    *slog.Logger
	metrics   *metrics.Metrics
	cache     dedup.Cache
	publisher events.Publisher
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDedupCache installs the Redis fast path.
func WithDedupCache(cache dedup.Cache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithEventPublisher streams created alerts to Kafka.
func WithEventPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(companies ports.CompanyStore, alerts ports.AlertStore, txRunner tx.Runner, opts ...Option) *Service {
	s := &Service{
		companies: companies,
		alerts:    alerts,
		tx:        txRunner,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EvaluateAndAlert applies the metrics to the company's revenue cache and,
// when the status warrants it and the dedup window allows it, creates the
// matching alert. Returns nil when no alert was created (OK status or
// suppressed). The cache update commits in every case.
func (s *Service) EvaluateAndAlert(ctx context.Context, company *companymodels.Company, m revenue.Metrics) (*alertmodels.Alert, error) {
	now := s.now()

	// Advisory fast path: a cache hit means the window query would suppress
	// anyway, so skip straight to the cache-only transaction.
	cacheHit := false
	if s.cache != nil && m.Status != companymodels.RevenueStatusOK {
		seen, err := s.cache.Seen(ctx, company.ID, "revenue")
		if err != nil {
			s.logger.WarnContext(ctx, "dedup cache lookup failed", "company_id", company.ID, "error", err)
		}
		cacheHit = seen
	}

	var created *alertmodels.Alert
	suppressed := false
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		company.ApplyRevenueResult(m.Status, m.Percentage, now)
		if err := s.companies.Update(txCtx, company); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update revenue cache")
		}

		if m.Status == companymodels.RevenueStatusOK {
			return nil
		}

		if cacheHit {
			suppressed = true
			return nil
		}
		exists, err := s.alerts.ExistsSince(txCtx, company.ID, alertmodels.RevenueTypes, now.Add(-DedupWindow))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to query dedup window")
		}
		if exists {
			suppressed = true
			return nil
		}

		alert := buildRevenueAlert(company, m, now)
		if err := s.alerts.Create(txCtx, alert); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create alert")
		}
		created = alert
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RevenueUsagePercent.WithLabelValues(company.CNPJ).Set(percentAsFloat(m))
	}

	switch {
	case created != nil:
		s.afterCreate(ctx, created, "revenue")
	case suppressed:
		if s.metrics != nil {
			s.metrics.AlertsSuppressed.Inc()
		}
		s.logger.InfoContext(ctx, "alert suppressed by dedup window",
			"company_id", company.ID, "status", m.Status)
	}
	return created, nil
}

// RaiseComplianceAlert reports a failed service-code audit. Same 24-hour
// suppression, keyed on the compliance class.
func (s *Service) RaiseComplianceAlert(ctx context.Context, company *companymodels.Company, invoiceID id.InvoiceID, auditMessage string) (*alertmodels.Alert, error) {
	return s.raiseClassAlert(ctx, company, alertmodels.TypeComplianceError, "compliance", func(now time.Time) *alertmodels.Alert {
		alert := buildComplianceAlert(company, invoiceID, auditMessage, now)
		return alert
	})
}

// RaiseCollectionFailureAlert reports a collector fault for a company.
func (s *Service) RaiseCollectionFailureAlert(ctx context.Context, company *companymodels.Company, failureMessage string) (*alertmodels.Alert, error) {
	return s.raiseClassAlert(ctx, company, alertmodels.TypeCollectionFailure, "collection", func(now time.Time) *alertmodels.Alert {
		return buildCollectionFailureAlert(company, failureMessage, now)
	})
}

func (s *Service) raiseClassAlert(ctx context.Context, company *companymodels.Company, kind alertmodels.Type, class string, build func(time.Time) *alertmodels.Alert) (*alertmodels.Alert, error) {
	now := s.now()

	if s.cache != nil {
		seen, err := s.cache.Seen(ctx, company.ID, class)
		if err != nil {
			s.logger.WarnContext(ctx, "dedup cache lookup failed", "company_id", company.ID, "error", err)
		} else if seen {
			if s.metrics != nil {
				s.metrics.AlertsSuppressed.Inc()
			}
			return nil, nil
		}
	}

	var created *alertmodels.Alert
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		exists, err := s.alerts.ExistsSince(txCtx, company.ID, []alertmodels.Type{kind}, now.Add(-DedupWindow))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to query dedup window")
		}
		if exists {
			return nil
		}
		alert := build(now)
		if err := s.alerts.Create(txCtx, alert); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create alert")
		}
		created = alert
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created != nil {
		s.afterCreate(ctx, created, class)
	} else if s.metrics != nil {
		s.metrics.AlertsSuppressed.Inc()
	}
	return created, nil
}

func (s *Service) afterCreate(ctx context.Context, alert *alertmodels.Alert, class string) {
	if s.metrics != nil {
		s.metrics.AlertsCreated.WithLabelValues(string(alert.Type)).Inc()
	}
	if s.cache != nil {
		if err := s.cache.Mark(ctx, alert.CompanyID, class); err != nil {
			s.logger.WarnContext(ctx, "dedup cache mark failed", "company_id", alert.CompanyID, "error", err)
		}
	}
	if s.publisher != nil {
		s.publisher.PublishAlert(ctx, events.AlertEvent{
			AlertID:   alert.ID.String(),
			CompanyID: alert.CompanyID.String(),
			Type:      string(alert.Type),
			Title:     alert.Title,
			CreatedAt: alert.CreatedAt,
		})
	}
	s.logger.WarnContext(ctx, "alert created",
		"alert_id", alert.ID, "company_id", alert.CompanyID, "type", alert.Type)
}

// MarkRead acknowledges an alert.
func (s *Service) MarkRead(ctx context.Context, alertID id.AlertID) (*alertmodels.Alert, error) {
	alert, err := s.alerts.FindByID(ctx, alertID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "alert not found")
	}
	alert.MarkRead(s.now())
	if err := s.alerts.Update(ctx, alert); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist acknowledgment")
	}
	return alert, nil
}

// ListByCompany returns a company's alerts, newest first.
func (s *Service) ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*alertmodels.Alert, error) {
	alerts, err := s.alerts.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list alerts")
	}
	return alerts, nil
}

func percentAsFloat(m revenue.Metrics) float64 {
	f, _ := m.Percentage.Float64()
	return f
}
