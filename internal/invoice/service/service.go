// Package service implements the invoice ingestion pipeline: parse, enforce
// tenant isolation, audit, persist, then recompute revenue and raise alerts.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	alertservice "fiscalwatch/internal/alert/service"
	companymodels "fiscalwatch/internal/company/models"
	"fiscalwatch/internal/invoice/auditing"
	"fiscalwatch/internal/invoice/isolation"
	invoicemodels "fiscalwatch/internal/invoice/models"
	"fiscalwatch/internal/invoice/parser"
	"fiscalwatch/internal/notify"
	"fiscalwatch/internal/platform/metrics"
	"fiscalwatch/internal/ports"
	"fiscalwatch/internal/revenue"
	id "fiscalwatch/pkg/domain"
	dErrors "fiscalwatch/pkg/domain-errors"
)

// Stats summarizes a company's ledger for dashboards.
type Stats struct {
	TotalInvoices  int             `json:"total_invoices"`
	Approved       int             `json:"approved"`
	ServiceErrors  int             `json:"service_code_errors"`
	WindowRevenue  decimal.Decimal `json:"window_revenue"`
	WindowSince    time.Time       `json:"window_since"`
	UsagePercent   decimal.Decimal `json:"usage_percent"`
	RevenueStatus  string          `json:"revenue_status"`
	EffectiveLimit decimal.Decimal `json:"effective_limit"`
}

type Service struct {
	companies  ports.CompanyStore
	invoices   ports.InvoiceStore
	calculator *revenue.Calculator
	alerts     *alertservice.Service
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(
	companies ports.CompanyStore,
	invoices ports.InvoiceStore,
	calculator *revenue.Calculator,
	alerts *alertservice.Service,
	dispatcher *notify.Dispatcher,
	opts ...Option,
) *Service {
	s := &Service{
		companies:  companies,
		invoices:   invoices,
		calculator: calculator,
		alerts:     alerts,
		dispatcher: dispatcher,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Import ingests one raw XML invoice for a company. The invoice is persisted
// even when its service code is non-compliant; only isolation failures and
// malformed documents are rejected.
func (s *Service) Import(ctx context.Context, companyID id.CompanyID, rawXML []byte) (*invoicemodels.Invoice, error) {
	company, err := s.companies.FindByID(ctx, companyID)
	if err != nil {
		return nil, err
	}

	invoice, err := parser.Parse(rawXML)
	if err != nil {
		s.rejected("parse")
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invoice document could not be parsed")
	}

	if err := isolation.Validate(invoice, company); err != nil {
		s.rejected("isolation")
		s.logger.WarnContext(ctx, "invoice rejected by tenant isolation",
			"company_id", companyID, "issuer", invoice.IssuerTaxID, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invoice does not belong to this company")
	}

	auditing.Audit(invoice, company)

	invoice.ID = id.NewInvoiceID()
	invoice.CompanyID = companyID
	invoice.Origin = invoicemodels.OriginManualUpload
	invoice.ImportedAt = s.now().UTC()

	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist invoice")
	}
	if s.metrics != nil {
		s.metrics.InvoicesIngested.WithLabelValues(
			string(invoice.SourceFormat), string(invoice.AuditStatus)).Inc()
	}
	s.logger.InfoContext(ctx, "invoice imported",
		"company_id", companyID,
		"invoice_id", invoice.ID,
		"number", invoice.Number,
		"format", string(invoice.SourceFormat),
		"audit_status", string(invoice.AuditStatus),
	)

	if invoice.AuditStatus == invoicemodels.AuditServiceCodeError {
		if alert, aErr := s.alerts.RaiseComplianceAlert(ctx, company, invoice.ID, invoice.AuditMessage); aErr != nil {
			s.logger.ErrorContext(ctx, "failed to raise compliance alert",
				"company_id", companyID, "invoice_id", invoice.ID, "error", aErr)
		} else if alert != nil {
			s.dispatcher.Dispatch(ctx, alert, company)
		}
	}

	if err := s.refreshRevenue(ctx, company); err != nil {
		// The invoice is already durable; revenue refresh failures surface
		// on the next verification sweep.
		s.logger.ErrorContext(ctx, "revenue refresh failed after import",
			"company_id", companyID, "error", err)
	}
	return invoice, nil
}

// refreshRevenue recomputes the rolling window and lets the alert service
// decide whether a threshold alert is due.
func (s *Service) refreshRevenue(ctx context.Context, company *companymodels.Company) error {
	m, err := s.calculator.Calculate(ctx, company)
	if err != nil {
		return err
	}
	alert, err := s.alerts.EvaluateAndAlert(ctx, company, m)
	if err != nil {
		return err
	}
	if alert != nil {
		s.dispatcher.Dispatch(ctx, alert, company)
	}
	return nil
}

func (s *Service) ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*invoicemodels.Invoice, error) {
	if _, err := s.companies.FindByID(ctx, companyID); err != nil {
		return nil, err
	}
	return s.invoices.ListByCompany(ctx, companyID)
}

// StatsByCompany aggregates ledger counts with the current rolling window.
func (s *Service) StatsByCompany(ctx context.Context, companyID id.CompanyID) (Stats, error) {
	company, err := s.companies.FindByID(ctx, companyID)
	if err != nil {
		return Stats{}, err
	}
	all, err := s.invoices.ListByCompany(ctx, companyID)
	if err != nil {
		return Stats{}, err
	}
	m, err := s.calculator.Calculate(ctx, company)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		TotalInvoices:  len(all),
		WindowRevenue:  m.Revenue,
		WindowSince:    revenue.WindowCutoff(s.now()),
		UsagePercent:   m.Percentage,
		RevenueStatus:  string(m.Status),
		EffectiveLimit: m.Limit,
	}
	for _, inv := range all {
		switch inv.AuditStatus {
		case invoicemodels.AuditApproved:
			stats.Approved++
		case invoicemodels.AuditServiceCodeError:
			stats.ServiceErrors++
		}
	}
	return stats, nil
}

func (s *Service) rejected(reason string) {
	if s.metrics != nil {
		s.metrics.InvoicesRejected.WithLabelValues(reason).Inc()
	}
}
