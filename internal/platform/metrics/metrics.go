package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments shared across the pipeline.
type Metrics struct {
	InvoicesIngested      *prometheus.CounterVec
	InvoicesRejected      *prometheus.CounterVec
	AlertsCreated         *prometheus.CounterVec
	AlertsSuppressed      prometheus.Counter
	NotificationsSent     *prometheus.CounterVec
	NotificationsFailed   *prometheus.CounterVec
	CollectionRuns        *prometheus.CounterVec
	SchedulerSkips        *prometheus.CounterVec
	RevenueUsagePercent   *prometheus.GaugeVec
	VerificationDurations prometheus.Histogram
}

// New creates and registers all instruments on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers on a caller-provided registerer so tests can isolate.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		InvoicesIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscalwatch_invoices_ingested_total",
			Help: "Invoices accepted into the ledger, by source format and audit status.",
		}, []string{"format", "status"}),
		InvoicesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscalwatch_invoices_rejected_total",
			Help: "Invoices rejected before persistence, by reason.",
		}, []string{"reason"}),
		AlertsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscalwatch_alerts_created_total",
			Help: "Alerts created, by type.",
		}, []string{"type"}),
		AlertsSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "fiscalwatch_alerts_suppressed_total",
			Help: "Alerts suppressed by the 24h dedup window.",
		}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscalwatch_notifications_sent_total",
			Help: "Notifications delivered, by channel.",
		}, []string{"channel"}),
		NotificationsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscalwatch_notifications_failed_total",
			Help: "Notification attempts that failed, by channel.",
		}, []string{"channel"}),
		CollectionRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscalwatch_collection_runs_total",
			Help: "Per-company collection outcomes.",
		}, []string{"outcome"}),
		SchedulerSkips: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscalwatch_scheduler_skips_total",
			Help: "Job triggers skipped because the job was already running.",
		}, []string{"job"}),
		RevenueUsagePercent: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fiscalwatch_revenue_usage_percent",
			Help: "Latest rolling 12-month revenue usage percentage per company.",
		}, []string{"company"}),
		VerificationDurations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fiscalwatch_verification_duration_seconds",
			Help:    "Wall time of full verification sweeps.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
