package models

import (
	"time"

	id "fiscalwatch/pkg/domain"
)

// Type classifies an alert. Revenue types participate in the 24-hour
// dedup window as one class.
type Type string

const (
	TypeRevenueWarning    Type = "REVENUE_WARNING"
	TypeRevenueCritical   Type = "REVENUE_CRITICAL"
	TypeComplianceError   Type = "COMPLIANCE_ERROR"
	TypeCollectionFailure Type = "COLLECTION_FAILURE"
)

// RevenueTypes is the dedup class for threshold alerts: a warning suppresses
// a following critical inside the window and vice versa.
var RevenueTypes = []Type{TypeRevenueWarning, TypeRevenueCritical}

// Alert belongs to exactly one company and, for compliance errors, one
// invoice. Created only by the alert service; mutated only by explicit
// acknowledgment or by notification-dispatch flags.
type Alert struct {
	ID        id.AlertID   `json:"id"`
	CompanyID id.CompanyID `json:"company_id"`

	// InvoiceID is set for compliance alerts tied to a specific document.
	InvoiceID id.InvoiceID `json:"invoice_id,omitempty"`

	Type  Type   `json:"type"`
	Title string `json:"title"`
	Body  string `json:"body"`

	Read   bool       `json:"read"`
	ReadAt *time.Time `json:"read_at,omitempty"`

	EmailNotified   bool `json:"email_notified"`
	WebhookNotified bool `json:"webhook_notified"`

	CreatedAt time.Time `json:"created_at"`
}

// MarkRead acknowledges the alert. Idempotent.
func (a *Alert) MarkRead(now time.Time) {
	if a.Read {
		return
	}
	a.Read = true
	a.ReadAt = &now
}
