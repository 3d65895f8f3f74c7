// Package auditing applies the service-code compliance check. The verdict is
// terminal: it is written onto the invoice once, persisted with it, and never
// revisited. A failed audit is not an error path: the invoice is still
// stored, still counts toward revenue, and is reported through alerting.
package auditing

import (
	"fmt"

	companymodels "fiscalwatch/internal/company/models"
	"fiscalwatch/internal/invoice/models"
)

const approvedMessage = "invoice is compliant"

// Audit stamps the invoice with its compliance verdict against the company's
// permitted service-code set and returns it.
func Audit(invoice *models.Invoice, company *companymodels.Company) *models.Invoice {
	if company.PermitsServiceCode(invoice.ServiceCode) {
		invoice.AuditStatus = models.AuditApproved
		invoice.AuditMessage = approvedMessage
		return invoice
	}
	invoice.AuditStatus = models.AuditServiceCodeError
	invoice.AuditMessage = fmt.Sprintf("service code %q is not authorized for this taxpayer", invoice.ServiceCode)
	return invoice
}
