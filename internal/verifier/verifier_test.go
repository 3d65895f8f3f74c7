package verifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	alertservice "fiscalwatch/internal/alert/service"
	alertstore "fiscalwatch/internal/alert/store"
	companymodels "fiscalwatch/internal/company/models"
	companystore "fiscalwatch/internal/company/store"
	invoicemodels "fiscalwatch/internal/invoice/models"
	invoicestore "fiscalwatch/internal/invoice/store"
	"fiscalwatch/internal/notify"
	"fiscalwatch/internal/ports"
	"fiscalwatch/internal/revenue"
	id "fiscalwatch/pkg/domain"
	"fiscalwatch/pkg/platform/tx"
)

// failingWindowStore breaks the window query for one company.
type failingWindowStore struct {
	ports.InvoiceStore
	failFor id.CompanyID
}

func (f *failingWindowStore) ListIssuedSince(ctx context.Context, companyID id.CompanyID, cutoff time.Time) ([]*invoicemodels.Invoice, error) {
	if companyID == f.failFor {
		return nil, errors.New("window query timed out")
	}
	return f.InvoiceStore.ListIssuedSince(ctx, companyID, cutoff)
}

type VerifierSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	companies *companystore.InMemory
	invoices  *invoicestore.InMemory
	alerts    *alertstore.InMemory
	logger    *slog.Logger
}

func (s *VerifierSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.companies = companystore.NewInMemory()
	s.invoices = invoicestore.NewInMemory()
	s.alerts = alertstore.NewInMemory()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) newCompany(cnpj string, revenueValue int64) *companymodels.Company {
	company, err := companymodels.NewCompany(
		id.NewCompanyID(), cnpj, "Empresa "+cnpj, companymodels.RegimeMicro, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.companies.Create(s.ctx, company))

	if revenueValue > 0 {
		s.Require().NoError(s.invoices.Create(s.ctx, &invoicemodels.Invoice{
			ID:         id.NewInvoiceID(),
			CompanyID:  company.ID,
			Number:     1,
			IssuedAt:   s.now.AddDate(0, 0, -30),
			TotalValue: decimal.NewFromInt(revenueValue),
		}))
	}
	return company
}

func (s *VerifierSuite) newVerifier(invoices ports.InvoiceStore) *Verifier {
	clock := func() time.Time { return s.now }
	calc := revenue.NewCalculator(invoices, revenue.WithClock(clock))
	alertSvc := alertservice.New(s.companies, s.alerts, tx.NewMemoryRunner(),
		alertservice.WithLogger(s.logger), alertservice.WithClock(clock))
	dispatcher := notify.New(s.alerts, &notify.LogEmailSender{Logger: s.logger}, s.logger)
	return New(s.companies, calc, alertSvc, dispatcher, s.logger, nil)
}

func (s *VerifierSuite) TestSweepCountsStatuses() {
	s.newCompany("11222333000181", 40_000) // OK
	warning := s.newCompany("99888777000166", 70_000)
	exceeded := s.newCompany("12345678000190", 90_000)

	summary, err := s.newVerifier(s.invoices).Run(s.ctx)
	s.Require().NoError(err)

	s.Equal(3, summary.Companies)
	s.Equal(1, summary.Warnings)
	s.Equal(1, summary.Exceeded)
	s.Equal(2, summary.AlertsCreated)
	s.Zero(summary.Failures)

	for _, company := range []*companymodels.Company{warning, exceeded} {
		alerts, err := s.alerts.ListByCompany(s.ctx, company.ID)
		s.Require().NoError(err)
		s.Len(alerts, 1)
	}
}

func (s *VerifierSuite) TestSecondSweepIsSuppressed() {
	s.newCompany("99888777000166", 90_000)
	v := s.newVerifier(s.invoices)

	first, err := v.Run(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, first.AlertsCreated)

	second, err := v.Run(s.ctx)
	s.Require().NoError(err)
	s.Zero(second.AlertsCreated, "the dedup window suppresses the repeat")
	s.Equal(1, second.Exceeded, "the status is still counted")
}

func (s *VerifierSuite) TestOneCompanyFailureDoesNotAbortTheSweep() {
	broken := s.newCompany("11222333000181", 90_000)
	s.newCompany("99888777000166", 90_000)

	store := &failingWindowStore{InvoiceStore: s.invoices, failFor: broken.ID}
	summary, err := s.newVerifier(store).Run(s.ctx)
	s.Require().NoError(err)

	s.Equal(1, summary.Failures)
	s.Equal(1, summary.AlertsCreated, "the healthy company is still evaluated")
}
