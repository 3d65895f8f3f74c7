package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "fiscalwatch/pkg/domain"
)

// SourceFormat identifies the layout an invoice was extracted from. The
// legacy municipal layout carries no issuer identification, which downstream
// isolation validation treats as grounds for rejection.
type SourceFormat string

const (
	FormatLegacy    SourceFormat = "LEGACY"
	FormatNational  SourceFormat = "NATIONAL"
	FormatCollected SourceFormat = "COLLECTED"
)

// Origin records how the invoice entered the system.
type Origin string

const (
	OriginManualUpload   Origin = "MANUAL_UPLOAD"
	OriginAutoCollection Origin = "AUTO_COLLECTION"
)

// AuditStatus is the terminal verdict of the compliance auditor.
type AuditStatus string

const (
	AuditApproved         AuditStatus = "APPROVED"
	AuditServiceCodeError AuditStatus = "SERVICE_CODE_ERROR"
	AuditOther            AuditStatus = "OTHER"
)

// Invoice is the canonical record every parser produces. It is immutable
// once audited: the auditor sets AuditStatus and AuditMessage exactly once,
// before persistence, and nothing mutates the record afterwards.
type Invoice struct {
	ID        id.InvoiceID `json:"id"`
	CompanyID id.CompanyID `json:"company_id"`

	Number int `json:"number"`

	// IssuedAt is naive: parsers strip any UTC offset and the value is held
	// in UTC for window arithmetic.
	IssuedAt time.Time `json:"issued_at"`

	ServiceCode   string          `json:"service_code"`
	TotalValue    decimal.Decimal `json:"total_value"`
	ValidationKey string          `json:"validation_key,omitempty"`
	PayerTaxID    string          `json:"payer_tax_id,omitempty"`

	// IssuerTaxID is empty for the legacy layout, which has no issuer field.
	IssuerTaxID string `json:"issuer_tax_id,omitempty"`

	SourceFormat SourceFormat `json:"source_format"`
	Origin       Origin       `json:"origin"`
	RawXML       string       `json:"-"`

	AuditStatus  AuditStatus `json:"audit_status"`
	AuditMessage string      `json:"audit_message,omitempty"`

	ImportedAt time.Time `json:"imported_at"`
}

// HasIssuer reports whether the source document identified its issuer.
func (n *Invoice) HasIssuer() bool {
	return n.IssuerTaxID != ""
}
