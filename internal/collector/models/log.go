package models

import (
	"time"

	"github.com/google/uuid"

	id "fiscalwatch/pkg/domain"
)

// Outcome is the result of one collection attempt for one company.
type Outcome string

const (
	OutcomeSuccess   Outcome = "SUCCESS"
	OutcomeFailure   Outcome = "FAILURE"
	OutcomeNoNewData Outcome = "NO_NEW_DATA"
)

// CollectionLogEntry records exactly one row per company per collection run,
// regardless of outcome.
type CollectionLogEntry struct {
	ID                uuid.UUID    `json:"id"`
	CompanyID         id.CompanyID `json:"company_id"`
	Outcome           Outcome      `json:"outcome"`
	InvoicesCollected int          `json:"invoices_collected"`
	Message           string       `json:"message"`
	ExecutedAt        time.Time    `json:"executed_at"`
}
