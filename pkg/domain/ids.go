package domain

import (
	"fmt"

	"github.com/google/uuid"

	dErrors "fiscalwatch/pkg/domain-errors"
)

// Typed UUIDs keep company, invoice, and alert identifiers from being swapped
// at call sites. Conversions are explicit.
type (
	CompanyID uuid.UUID
	InvoiceID uuid.UUID
	AlertID   uuid.UUID
)

func NewCompanyID() CompanyID { return CompanyID(uuid.New()) }
func NewInvoiceID() InvoiceID { return InvoiceID(uuid.New()) }
func NewAlertID() AlertID     { return AlertID(uuid.New()) }

func (id CompanyID) String() string { return uuid.UUID(id).String() }
func (id InvoiceID) String() string { return uuid.UUID(id).String() }
func (id AlertID) String() string   { return uuid.UUID(id).String() }

func (id CompanyID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id InvoiceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AlertID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// ParseCompanyID validates and parses a company ID from its string form.
// IDs must be valid, non-nil UUIDs.
func ParseCompanyID(s string) (CompanyID, error) {
	u, err := parseUUID(s, "company_id")
	return CompanyID(u), err
}

func ParseInvoiceID(s string) (InvoiceID, error) {
	u, err := parseUUID(s, "invoice_id")
	return InvoiceID(u), err
}

func ParseAlertID(s string) (AlertID, error) {
	u, err := parseUUID(s, "alert_id")
	return AlertID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s is required", field))
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("%s is not a valid UUID", field))
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s must not be the nil UUID", field))
	}
	return u, nil
}
