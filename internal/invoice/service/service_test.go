package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	alertmodels "fiscalwatch/internal/alert/models"
	alertservice "fiscalwatch/internal/alert/service"
	alertstore "fiscalwatch/internal/alert/store"
	companymodels "fiscalwatch/internal/company/models"
	companystore "fiscalwatch/internal/company/store"
	invoicemodels "fiscalwatch/internal/invoice/models"
	invoicestore "fiscalwatch/internal/invoice/store"
	"fiscalwatch/internal/notify"
	"fiscalwatch/internal/revenue"
	id "fiscalwatch/pkg/domain"
	dErrors "fiscalwatch/pkg/domain-errors"
	"fiscalwatch/pkg/platform/tx"
)

const companyCNPJ = "11222333000181"

func nationalXML(number int, value string, serviceCode, issuer string) []byte {
	return []byte(fmt.Sprintf(`<NFSe><infNFSe Id="NFS%d">
  <nNFSe>%d</nNFSe>
  <dhProc>2025-06-01T10:00:00-03:00</dhProc>
  <valores><vLiq>%s</vLiq></valores>
  <emit><CNPJ>%s</CNPJ></emit>
  <DPS><infDPS>
    <serv><cServ><cTribNac>%s</cTribNac></cServ></serv>
    <toma><CNPJ>99888777000166</CNPJ></toma>
  </infDPS></DPS>
</infNFSe></NFSe>`, number, number, value, issuer, serviceCode))
}

type InvoiceServiceSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	companies *companystore.InMemory
	invoices  *invoicestore.InMemory
	alerts    *alertstore.InMemory
	service   *Service
	company   *companymodels.Company
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.companies = companystore.NewInMemory()
	s.invoices = invoicestore.NewInMemory()
	s.alerts = alertstore.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	clock := func() time.Time { return s.now }
	calc := revenue.NewCalculator(s.invoices, revenue.WithClock(clock))
	alertSvc := alertservice.New(s.companies, s.alerts, tx.NewMemoryRunner(),
		alertservice.WithLogger(logger), alertservice.WithClock(clock))
	dispatcher := notify.New(s.alerts, &notify.LogEmailSender{Logger: logger}, logger)
	s.service = New(s.companies, s.invoices, calc, alertSvc, dispatcher,
		WithLogger(logger), WithClock(clock))

	company, err := companymodels.NewCompany(
		id.NewCompanyID(), companyCNPJ, "Acme Serviços Ltda",
		companymodels.RegimeMicro, s.now)
	s.Require().NoError(err)
	company.PermittedServiceCodes["010701"] = "Consultoria"
	s.Require().NoError(s.companies.Create(s.ctx, company))
	s.company = company
}

func TestInvoiceServiceSuite(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) TestImport() {
	s.Run("imports a compliant invoice and refreshes the revenue cache", func() {
		invoice, err := s.service.Import(s.ctx, s.company.ID, nationalXML(1, "1500.00", "010701", companyCNPJ))
		s.Require().NoError(err)

		s.Equal(invoicemodels.AuditApproved, invoice.AuditStatus)
		s.Equal(invoicemodels.OriginManualUpload, invoice.Origin)
		s.Equal(s.company.ID, invoice.CompanyID)
		s.False(invoice.ID.IsNil())

		stored, err := s.companies.FindByID(s.ctx, s.company.ID)
		s.Require().NoError(err)
		s.Require().NotNil(stored.LastCalculatedAt)
		s.False(stored.UsagePercent.IsZero())
	})

	s.Run("persists a non-compliant invoice and raises a compliance alert", func() {
		invoice, err := s.service.Import(s.ctx, s.company.ID, nationalXML(2, "900.00", "170500", companyCNPJ))
		s.Require().NoError(err)
		s.Equal(invoicemodels.AuditServiceCodeError, invoice.AuditStatus)
		s.Contains(invoice.AuditMessage, "170500")

		alerts, err := s.alerts.ListByCompany(s.ctx, s.company.ID)
		s.Require().NoError(err)
		s.Require().NotEmpty(alerts)

		found := false
		for _, alert := range alerts {
			if alert.Type == alertmodels.TypeComplianceError {
				found = true
				s.Equal(invoice.ID, alert.InvoiceID)
			}
		}
		s.True(found)
	})

	s.Run("rejects a mismatched issuer and persists nothing", func() {
		_, err := s.service.Import(s.ctx, s.company.ID, nationalXML(3, "100.00", "010701", "99888777000166"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		invoices, listErr := s.invoices.ListByCompany(s.ctx, s.company.ID)
		s.Require().NoError(listErr)
		for _, inv := range invoices {
			s.NotEqual(3, inv.Number)
		}
	})

	s.Run("rejects a legacy document because it carries no issuer", func() {
		legacy := []byte(`<tbnfd><NOTA_FISCAL><NumeroNota>4</NumeroNota><DataEmissao>2025-05-01</DataEmissao><ValorTotalNota>200</ValorTotalNota><Cae>010701</Cae></NOTA_FISCAL></tbnfd>`)
		_, err := s.service.Import(s.ctx, s.company.ID, legacy)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects malformed XML as a validation error", func() {
		_, err := s.service.Import(s.ctx, s.company.ID, []byte("<broken"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown company is a not-found error", func() {
		_, err := s.service.Import(s.ctx, id.NewCompanyID(), nationalXML(5, "100.00", "010701", companyCNPJ))
		s.Require().Error(err)
	})

	s.Run("crossing the ceiling through imports raises a critical alert", func() {
		// Micro regime ceiling is 81000.
		_, err := s.service.Import(s.ctx, s.company.ID, nationalXML(6, "90000.00", "010701", companyCNPJ))
		s.Require().NoError(err)

		stored, err := s.companies.FindByID(s.ctx, s.company.ID)
		s.Require().NoError(err)
		s.Equal(companymodels.RevenueStatusExceeded, stored.RevenueStatus)

		alerts, err := s.alerts.ListByCompany(s.ctx, s.company.ID)
		s.Require().NoError(err)
		found := false
		for _, alert := range alerts {
			if alert.Type == alertmodels.TypeRevenueCritical {
				found = true
			}
		}
		s.True(found)
	})
}

func (s *InvoiceServiceSuite) TestStatsByCompany() {
	_, err := s.service.Import(s.ctx, s.company.ID, nationalXML(10, "1000.00", "010701", companyCNPJ))
	s.Require().NoError(err)
	_, err = s.service.Import(s.ctx, s.company.ID, nationalXML(11, "2000.00", "999999", companyCNPJ))
	s.Require().NoError(err)

	stats, err := s.service.StatsByCompany(s.ctx, s.company.ID)
	s.Require().NoError(err)

	s.Equal(2, stats.TotalInvoices)
	s.Equal(1, stats.Approved)
	s.Equal(1, stats.ServiceErrors)
	s.True(decimal.NewFromInt(3000).Equal(stats.WindowRevenue), "compliance failures still count toward revenue")
}

func (s *InvoiceServiceSuite) TestListByCompany() {
	_, err := s.service.Import(s.ctx, s.company.ID, nationalXML(20, "100.00", "010701", companyCNPJ))
	s.Require().NoError(err)

	invoices, err := s.service.ListByCompany(s.ctx, s.company.ID)
	s.Require().NoError(err)
	s.Len(invoices, 1)

	_, err = s.service.ListByCompany(s.ctx, id.NewCompanyID())
	s.Require().Error(err)
}
