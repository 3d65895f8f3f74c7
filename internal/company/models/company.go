package models

import (
	"time"

	"github.com/shopspring/decimal"

	"fiscalwatch/pkg/cnpj"
	id "fiscalwatch/pkg/domain"
	dErrors "fiscalwatch/pkg/domain-errors"
)

// Regime is the tax regime a company is enrolled in. Each regime carries a
// statutory annual gross-revenue ceiling.
type Regime string

const (
	RegimeMicro          Regime = "MICRO"
	RegimeSimplified     Regime = "SIMPLIFIED"
	RegimePresumedProfit Regime = "PRESUMED_PROFIT"
)

func (r Regime) IsValid() bool {
	switch r {
	case RegimeMicro, RegimeSimplified, RegimePresumedProfit:
		return true
	}
	return false
}

// DefaultLimit returns the statutory annual revenue ceiling for the regime.
func (r Regime) DefaultLimit() decimal.Decimal {
	switch r {
	case RegimeMicro:
		return decimal.NewFromInt(81_000)
	case RegimeSimplified:
		return decimal.NewFromInt(4_800_000)
	case RegimePresumedProfit:
		return decimal.NewFromInt(78_000_000)
	}
	return decimal.Zero
}

// RevenueStatus is the cached outcome of the last rolling-window calculation.
type RevenueStatus string

const (
	RevenueStatusOK       RevenueStatus = "OK"
	RevenueStatusWarning  RevenueStatus = "WARNING"
	RevenueStatusExceeded RevenueStatus = "EXCEEDED"
)

// NotificationConfig controls alert delivery for a company.
//
// Invariant: WarningPercent < CriticalPercent.
type NotificationConfig struct {
	EmailEnabled    bool   `json:"email_enabled"`
	Email           string `json:"email,omitempty"`
	WebhookURL      string `json:"webhook_url,omitempty"`
	WarningPercent  int64  `json:"warning_percent"`
	CriticalPercent int64  `json:"critical_percent"`
}

// DefaultNotificationConfig returns the 80/100 thresholds used when a company
// has no explicit configuration.
func DefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		WarningPercent:  80,
		CriticalPercent: 100,
	}
}

func (c NotificationConfig) Validate() error {
	if c.WarningPercent <= 0 || c.CriticalPercent <= 0 {
		return dErrors.New(dErrors.CodeValidation, "notification thresholds must be positive")
	}
	if c.WarningPercent >= c.CriticalPercent {
		return dErrors.New(dErrors.CodeValidation, "warning threshold must be below critical threshold")
	}
	return nil
}

// Company is the aggregate for a monitored taxpayer.
//
// Invariants:
//   - CNPJ is stored digits-only and unique across the store
//   - Regime is one of the known enum values
//   - RevenueStatus, UsagePercent and LastCalculatedAt are written only by
//     the revenue calculator; they are a cache, never an input
type Company struct {
	ID        id.CompanyID `json:"id"`
	CNPJ      string       `json:"cnpj"`
	LegalName string       `json:"legal_name"`
	TradeName string       `json:"trade_name,omitempty"`
	Regime    Regime       `json:"regime"`

	// AnnualLimit overrides the regime default when positive.
	AnnualLimit decimal.Decimal `json:"annual_limit"`

	// PermittedServiceCodes maps municipal service code to its description.
	PermittedServiceCodes map[string]string `json:"permitted_service_codes"`

	RevenueStatus    RevenueStatus   `json:"revenue_status"`
	UsagePercent     decimal.Decimal `json:"usage_percent"`
	LastCalculatedAt *time.Time      `json:"last_calculated_at,omitempty"`

	Notification NotificationConfig `json:"notification"`

	AutoCollect      bool       `json:"auto_collect"`
	LastCollectionAt *time.Time `json:"last_collection_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewCompany validates inputs and builds a company with default thresholds
// and an OK revenue cache.
func NewCompany(companyID id.CompanyID, rawCNPJ, legalName string, regime Regime, now time.Time) (*Company, error) {
	normalized := cnpj.Normalize(rawCNPJ)
	if normalized == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "cnpj is required")
	}
	if legalName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "legal name is required")
	}
	if !regime.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown tax regime %q", regime)
	}
	return &Company{
		ID:                    companyID,
		CNPJ:                  normalized,
		LegalName:             legalName,
		Regime:                regime,
		PermittedServiceCodes: make(map[string]string),
		RevenueStatus:         RevenueStatusOK,
		UsagePercent:          decimal.Zero,
		Notification:          DefaultNotificationConfig(),
		CreatedAt:             now,
	}, nil
}

// EffectiveLimit resolves the annual ceiling: explicit limit when positive,
// regime default otherwise.
func (c *Company) EffectiveLimit() decimal.Decimal {
	if c.AnnualLimit.IsPositive() {
		return c.AnnualLimit
	}
	return c.Regime.DefaultLimit()
}

// PermitsServiceCode reports whether the company may render the given code.
func (c *Company) PermitsServiceCode(code string) bool {
	_, ok := c.PermittedServiceCodes[code]
	return ok
}

// ApplyRevenueResult writes the revenue cache fields. Only the revenue
// calculator calls this.
func (c *Company) ApplyRevenueResult(status RevenueStatus, usagePercent decimal.Decimal, now time.Time) {
	c.RevenueStatus = status
	c.UsagePercent = usagePercent
	c.LastCalculatedAt = &now
}

// MarkCollected advances the last-collection timestamp.
func (c *Company) MarkCollected(now time.Time) {
	c.LastCollectionAt = &now
}
