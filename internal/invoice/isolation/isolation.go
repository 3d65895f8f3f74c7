// Package isolation enforces the multi-tenant boundary at import time: an
// invoice may only be attached to the company that issued it. The check runs
// before persistence, never after.
package isolation

import (
	"fmt"

	companymodels "fiscalwatch/internal/company/models"
	"fiscalwatch/internal/invoice/models"
	"fiscalwatch/pkg/cnpj"
)

// Reason classifies why an invoice was rejected.
type Reason string

const (
	// ReasonNoIssuerID: the source layout carries no issuer identification.
	// Ambiguity is never resolved in favor of import.
	ReasonNoIssuerID Reason = "NO_ISSUER_ID"
	// ReasonMismatch: the document's issuer is a different taxpayer.
	ReasonMismatch Reason = "MISMATCH"
)

// Error is the tagged rejection value.
type Error struct {
	Reason      Reason
	IssuerTaxID string
	CompanyCNPJ string
}

func (e *Error) Error() string {
	switch e.Reason {
	case ReasonNoIssuerID:
		return "isolation: document carries no issuer tax id; import blocked"
	case ReasonMismatch:
		return fmt.Sprintf("isolation: document issued by %s, target company is %s", e.IssuerTaxID, e.CompanyCNPJ)
	}
	return "isolation: rejected"
}

// Validate accepts only an exact digit-normalized match between the
// document's issuer and the target company. Fail closed on absence.
func Validate(invoice *models.Invoice, company *companymodels.Company) error {
	if !invoice.HasIssuer() {
		return &Error{Reason: ReasonNoIssuerID, CompanyCNPJ: company.CNPJ}
	}
	if !cnpj.Equal(invoice.IssuerTaxID, company.CNPJ) {
		return &Error{
			Reason:      ReasonMismatch,
			IssuerTaxID: cnpj.Normalize(invoice.IssuerTaxID),
			CompanyCNPJ: company.CNPJ,
		}
	}
	return nil
}
