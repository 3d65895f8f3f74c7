// Package revenue implements the rolling twelve-month gross revenue
// calculation that tax-regime ceilings are tested against.
package revenue

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	companymodels "fiscalwatch/internal/company/models"
	invoicemodels "fiscalwatch/internal/invoice/models"
	"fiscalwatch/internal/ports"
	dErrors "fiscalwatch/pkg/domain-errors"
)

// WindowDays is the trailing window length, inclusive of the cutoff day.
const WindowDays = 365

var hundred = decimal.NewFromInt(100)

// Metrics is the outcome of one window calculation.
type Metrics struct {
	Revenue    decimal.Decimal             `json:"revenue"`
	Limit      decimal.Decimal             `json:"limit"`
	Percentage decimal.Decimal             `json:"percentage"`
	Status     companymodels.RevenueStatus `json:"status"`
	// Margin is limit minus revenue; negative once the ceiling is breached.
	Margin decimal.Decimal `json:"margin"`
}

// WindowCutoff returns the inclusive start of the trailing window.
func WindowCutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -WindowDays)
}

// Compute is the pure calculation: sum every invoice in the window,
// compliance-failed ones included (the ceiling tests gross revenue), and
// grade the result against the company's thresholds.
func Compute(company *companymodels.Company, windowInvoices []*invoicemodels.Invoice) Metrics {
	revenue := decimal.Zero
	for _, invoice := range windowInvoices {
		revenue = revenue.Add(invoice.TotalValue)
	}

	limit := company.EffectiveLimit()
	percentage := decimal.Zero
	if limit.IsPositive() {
		percentage = revenue.Div(limit).Mul(hundred)
	}

	warning := decimal.NewFromInt(company.Notification.WarningPercent)
	critical := decimal.NewFromInt(company.Notification.CriticalPercent)

	status := companymodels.RevenueStatusOK
	switch {
	case percentage.GreaterThanOrEqual(critical):
		status = companymodels.RevenueStatusExceeded
	case percentage.GreaterThanOrEqual(warning):
		status = companymodels.RevenueStatusWarning
	}

	return Metrics{
		Revenue:    revenue,
		Limit:      limit,
		Percentage: percentage,
		Status:     status,
		Margin:     limit.Sub(revenue),
	}
}

// Calculator fetches the trailing window and computes metrics. It has no
// side effects; persisting the company's revenue cache belongs to the alert
// service so cache and alert commit as one unit.
type Calculator struct {
	invoices ports.InvoiceStore
	now      func() time.Time
}

func NewCalculator(invoices ports.InvoiceStore, opts ...CalculatorOption) *Calculator {
	c := &Calculator{invoices: invoices, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type CalculatorOption func(*Calculator)

// WithClock fixes evaluation time for tests.
func WithClock(now func() time.Time) CalculatorOption {
	return func(c *Calculator) { c.now = now }
}

// Calculate computes the company's current window metrics.
func (c *Calculator) Calculate(ctx context.Context, company *companymodels.Company) (Metrics, error) {
	cutoff := WindowCutoff(c.now())
	windowInvoices, err := c.invoices.ListIssuedSince(ctx, company.ID, cutoff)
	if err != nil {
		return Metrics{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load invoice window")
	}
	return Compute(company, windowInvoices), nil
}
