// Package collector simulates per-company invoice discovery against
// municipal APIs. Real connectors must satisfy the same contract: one
// CollectionLogEntry per company per run, per-company fault isolation, and
// discovered invoices pushed through the full audit/revenue/alert pipeline.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	alertservice "fiscalwatch/internal/alert/service"
	"fiscalwatch/internal/collector/models"
	companymodels "fiscalwatch/internal/company/models"
	"fiscalwatch/internal/invoice/auditing"
	"fiscalwatch/internal/invoice/isolation"
	invoicemodels "fiscalwatch/internal/invoice/models"
	"fiscalwatch/internal/notify"
	"fiscalwatch/internal/platform/metrics"
	"fiscalwatch/internal/ports"
	"fiscalwatch/internal/revenue"
	id "fiscalwatch/pkg/domain"
	dErrors "fiscalwatch/pkg/domain-errors"
)

// mockService entries are deliberately outside most companies' permitted
// sets so the compliance path gets exercised.
var mockServices = []struct {
	Code        string
	Description string
}{
	{"08.02", "IT consulting"},
	{"17.01", "Accounting advisory"},
	{"17.19", "Bookkeeping"},
	{"14.01", "Legal services"},
}

const (
	noNewDataProbability  = 0.70
	permittedProbability  = 0.80
	maxInvoicesPerRun     = 3
	firstSyntheticInvoice = 1001
	defaultParallelism    = 4
)

// Summary reports one full collection run.
type Summary struct {
	Companies int `json:"companies"`
	Collected int `json:"collected"`
	Successes int `json:"successes"`
	NoNewData int `json:"no_new_data"`
	Failures  int `json:"failures"`
}

type Collector struct {
	companies  ports.CompanyStore
	invoices   ports.InvoiceStore
	logs       ports.CollectionLogStore
	calculator *revenue.Calculator
	alerts     *alertservice.Service
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics

	parallelism int
	now         func() time.Time

	// rngMu guards rng: collection runs companies in parallel.
	rngMu sync.Mutex
	rng   *rand.Rand
}

type Option func(*Collector)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Collector) { c.metrics = m }
}

// WithRand fixes the random source for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(c *Collector) { c.rng = rng }
}

func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

func WithParallelism(n int) Option {
	return func(c *Collector) { c.parallelism = n }
}

func New(
	companies ports.CompanyStore,
	invoices ports.InvoiceStore,
	logs ports.CollectionLogStore,
	calculator *revenue.Calculator,
	alerts *alertservice.Service,
	dispatcher *notify.Dispatcher,
	logger *slog.Logger,
	opts ...Option,
) *Collector {
	c := &Collector{
		companies:   companies,
		invoices:    invoices,
		logs:        logs,
		calculator:  calculator,
		alerts:      alerts,
		dispatcher:  dispatcher,
		logger:      logger,
		parallelism: defaultParallelism,
		now:         time.Now,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run collects for every auto-collection company. Companies proceed in
// parallel with bounded concurrency; a company's failure is recorded and the
// batch continues.
func (c *Collector) Run(ctx context.Context) (Summary, error) {
	companies, err := c.companies.ListAutoCollect(ctx)
	if err != nil {
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list auto-collection companies")
	}

	var (
		mu      sync.Mutex
		summary = Summary{Companies: len(companies)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for _, company := range companies {
		g.Go(func() error {
			outcome, collected := c.collectCompany(gctx, company)
			mu.Lock()
			defer mu.Unlock()
			summary.Collected += collected
			switch outcome {
			case models.OutcomeSuccess:
				summary.Successes++
			case models.OutcomeNoNewData:
				summary.NoNewData++
			case models.OutcomeFailure:
				summary.Failures++
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are per-company log entries

	c.logger.InfoContext(ctx, "collection run finished",
		"companies", summary.Companies,
		"collected", summary.Collected,
		"successes", summary.Successes,
		"no_new_data", summary.NoNewData,
		"failures", summary.Failures,
	)
	return summary, nil
}

// collectCompany produces exactly one log entry whatever happens.
func (c *Collector) collectCompany(ctx context.Context, company *companymodels.Company) (models.Outcome, int) {
	entry := &models.CollectionLogEntry{
		ID:         uuid.New(),
		CompanyID:  company.ID,
		ExecutedAt: c.now(),
	}

	collected, err := c.safeDiscover(ctx, company)
	switch {
	case err != nil:
		entry.Outcome = models.OutcomeFailure
		entry.Message = fmt.Sprintf("collection failed: %v", err)
		c.logger.ErrorContext(ctx, "collection failed",
			"company_id", company.ID, "error", err)
		c.raiseFailureAlert(ctx, company, entry.Message)
	case collected == 0:
		entry.Outcome = models.OutcomeNoNewData
		entry.Message = "no new invoices found in this scan"
	default:
		entry.Outcome = models.OutcomeSuccess
		entry.InvoicesCollected = collected
		entry.Message = fmt.Sprintf("collected %d invoices", collected)
	}

	if c.metrics != nil {
		c.metrics.CollectionRuns.WithLabelValues(string(entry.Outcome)).Inc()
	}
	if logErr := c.logs.Append(ctx, entry); logErr != nil {
		c.logger.ErrorContext(ctx, "failed to append collection log",
			"company_id", company.ID, "error", logErr)
	}
	return entry.Outcome, collected
}

// safeDiscover converts a panicking connector into a FAILURE outcome so one
// misbehaving company cannot take down the batch worker.
func (c *Collector) safeDiscover(ctx context.Context, company *companymodels.Company) (collected int, err error) {
	defer func() {
		if r := recover(); r != nil {
			collected = 0
			err = fmt.Errorf("panic during collection: %v", r)
		}
	}()
	return c.discover(ctx, company)
}

// discover generates synthetic invoices and pushes each through isolation,
// audit, persistence, and the revenue/alert chain.
func (c *Collector) discover(ctx context.Context, company *companymodels.Company) (int, error) {
	if c.roll() < noNewDataProbability {
		return 0, nil
	}

	highest, err := c.invoices.HighestNumber(ctx, company.ID)
	if err != nil {
		return 0, err
	}
	next := highest + 1
	if highest == 0 {
		next = firstSyntheticInvoice
	}

	count := c.intN(maxInvoicesPerRun) + 1
	for i := range count {
		invoice := c.synthesize(company, next+i)

		if err := isolation.Validate(invoice, company); err != nil {
			return 0, err
		}
		auditing.Audit(invoice, company)

		if err := c.invoices.Create(ctx, invoice); err != nil {
			return 0, err
		}
		if c.metrics != nil {
			c.metrics.InvoicesIngested.WithLabelValues(
				string(invoice.SourceFormat), string(invoice.AuditStatus)).Inc()
		}
		if invoice.AuditStatus == invoicemodels.AuditServiceCodeError {
			if alert, aErr := c.alerts.RaiseComplianceAlert(ctx, company, invoice.ID, invoice.AuditMessage); aErr == nil && alert != nil {
				c.dispatcher.Dispatch(ctx, alert, company)
			}
		}
	}

	company.MarkCollected(c.now())

	m, err := c.calculator.Calculate(ctx, company)
	if err != nil {
		return 0, err
	}
	// EvaluateAndAlert persists the company, carrying MarkCollected along
	// with the revenue cache in the same transaction.
	alert, err := c.alerts.EvaluateAndAlert(ctx, company, m)
	if err != nil {
		return 0, err
	}
	if alert != nil {
		c.dispatcher.Dispatch(ctx, alert, company)
	}
	return count, nil
}

// synthesize fabricates a plausible invoice: mostly permitted service codes,
// occasionally a non-compliant one, value between 500 and 15000, issued in
// the last 24 hours.
func (c *Collector) synthesize(company *companymodels.Company, number int) *invoicemodels.Invoice {
	now := c.now()
	issuedAt := now.
		Add(-time.Duration(c.intN(23)+1) * time.Hour).
		Add(-time.Duration(c.intN(60)) * time.Minute)

	serviceCode := c.pickServiceCode(company)
	value := decimal.NewFromFloat(500 + c.roll()*14500).Round(2)

	cnpjPrefix := company.CNPJ
	if len(cnpjPrefix) > 8 {
		cnpjPrefix = cnpjPrefix[:8]
	}

	return &invoicemodels.Invoice{
		ID:            id.NewInvoiceID(),
		CompanyID:     company.ID,
		Number:        number,
		IssuedAt:      issuedAt.UTC(),
		ServiceCode:   serviceCode,
		TotalValue:    value,
		ValidationKey: fmt.Sprintf("NFSe-%s-%d-%s", cnpjPrefix, number, now.Format("20060102")),
		PayerTaxID:    c.randomCNPJ(),
		IssuerTaxID:   company.CNPJ,
		SourceFormat:  invoicemodels.FormatCollected,
		Origin:        invoicemodels.OriginAutoCollection,
		ImportedAt:    now.UTC(),
	}
}

func (c *Collector) pickServiceCode(company *companymodels.Company) string {
	permitted := make([]string, 0, len(company.PermittedServiceCodes))
	for code := range company.PermittedServiceCodes {
		permitted = append(permitted, code)
	}
	slices.Sort(permitted)
	if len(permitted) > 0 && c.roll() < permittedProbability {
		return permitted[c.intN(len(permitted))]
	}
	return mockServices[c.intN(len(mockServices))].Code
}

func (c *Collector) randomCNPJ() string {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return fmt.Sprintf("%08d0001%02d", c.rng.IntN(100_000_000), c.rng.IntN(100))
}

func (c *Collector) roll() float64 {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.rng.Float64()
}

func (c *Collector) intN(n int) int {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.rng.IntN(n)
}

func (c *Collector) raiseFailureAlert(ctx context.Context, company *companymodels.Company, message string) {
	alert, err := c.alerts.RaiseCollectionFailureAlert(ctx, company, message)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to raise collection-failure alert",
			"company_id", company.ID, "error", err)
		return
	}
	if alert != nil {
		c.dispatcher.Dispatch(ctx, alert, company)
	}
}
