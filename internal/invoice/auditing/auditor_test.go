package auditing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	companymodels "fiscalwatch/internal/company/models"
	"fiscalwatch/internal/invoice/models"
	id "fiscalwatch/pkg/domain"
)

type AuditorSuite struct {
	suite.Suite
	company *companymodels.Company
}

func (s *AuditorSuite) SetupTest() {
	company, err := companymodels.NewCompany(
		id.NewCompanyID(), "11222333000181", "Acme Serviços Ltda",
		companymodels.RegimeSimplified, time.Now())
	s.Require().NoError(err)
	company.PermittedServiceCodes["08.02"] = "Consultoria"
	s.company = company
}

func TestAuditorSuite(t *testing.T) {
	suite.Run(t, new(AuditorSuite))
}

func (s *AuditorSuite) TestAudit() {
	s.Run("approves a permitted service code", func() {
		invoice := &models.Invoice{ServiceCode: "08.02"}
		Audit(invoice, s.company)

		s.Equal(models.AuditApproved, invoice.AuditStatus)
		s.NotEmpty(invoice.AuditMessage)
	})

	s.Run("flags an unauthorized code and names it", func() {
		invoice := &models.Invoice{ServiceCode: "17.19"}
		Audit(invoice, s.company)

		s.Equal(models.AuditServiceCodeError, invoice.AuditStatus)
		s.Contains(invoice.AuditMessage, "17.19")
	})

	s.Run("an empty permitted set approves nothing", func() {
		s.company.PermittedServiceCodes = map[string]string{}
		invoice := &models.Invoice{ServiceCode: "08.02"}
		Audit(invoice, s.company)

		s.Equal(models.AuditServiceCodeError, invoice.AuditStatus)
	})
}
