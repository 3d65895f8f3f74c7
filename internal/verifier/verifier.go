// Package verifier runs the periodic revenue sweep: every company's rolling
// window is recomputed, thresholds are evaluated, and fresh alerts are
// dispatched. One company's fault never aborts the rest of the sweep.
package verifier

import (
	"context"
	"log/slog"
	"time"

	alertservice "fiscalwatch/internal/alert/service"
	companymodels "fiscalwatch/internal/company/models"
	"fiscalwatch/internal/notify"
	"fiscalwatch/internal/platform/metrics"
	"fiscalwatch/internal/ports"
	"fiscalwatch/internal/revenue"
	dErrors "fiscalwatch/pkg/domain-errors"
)

// Summary reports one sweep.
type Summary struct {
	Companies     int `json:"companies"`
	Warnings      int `json:"warnings"`
	Exceeded      int `json:"exceeded"`
	AlertsCreated int `json:"alerts_created"`
	Failures      int `json:"failures"`
}

type Verifier struct {
	companies  ports.CompanyStore
	calculator *revenue.Calculator
	alerts     *alertservice.Service
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func New(
	companies ports.CompanyStore,
	calculator *revenue.Calculator,
	alerts *alertservice.Service,
	dispatcher *notify.Dispatcher,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Verifier {
	return &Verifier{
		companies:  companies,
		calculator: calculator,
		alerts:     alerts,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    m,
	}
}

// Run sweeps every company. Dispatch happens outside the alert transaction:
// a notification failure must never roll back the cache update or the alert.
func (v *Verifier) Run(ctx context.Context) (Summary, error) {
	start := time.Now()

	companies, err := v.companies.List(ctx)
	if err != nil {
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list companies")
	}

	summary := Summary{Companies: len(companies)}
	for _, company := range companies {
		if err := v.verifyCompany(ctx, company, &summary); err != nil {
			summary.Failures++
			v.logger.ErrorContext(ctx, "company verification failed",
				"company_id", company.ID, "error", err)
		}
	}

	if v.metrics != nil {
		v.metrics.VerificationDurations.Observe(time.Since(start).Seconds())
	}
	v.logger.InfoContext(ctx, "verification sweep finished",
		"companies", summary.Companies,
		"warnings", summary.Warnings,
		"exceeded", summary.Exceeded,
		"alerts_created", summary.AlertsCreated,
		"failures", summary.Failures,
	)
	return summary, nil
}

func (v *Verifier) verifyCompany(ctx context.Context, company *companymodels.Company, summary *Summary) error {
	m, err := v.calculator.Calculate(ctx, company)
	if err != nil {
		return err
	}

	alert, err := v.alerts.EvaluateAndAlert(ctx, company, m)
	if err != nil {
		return err
	}

	switch m.Status {
	case companymodels.RevenueStatusWarning:
		summary.Warnings++
	case companymodels.RevenueStatusExceeded:
		summary.Exceeded++
	}

	if alert != nil {
		summary.AlertsCreated++
		v.dispatcher.Dispatch(ctx, alert, company)
	}
	return nil
}
