// Command server runs the fiscalwatch HTTP API with its background jobs:
// scheduled invoice collection and revenue verification.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fiscalwatch/internal/alert/dedup"
	alerthandler "fiscalwatch/internal/alert/handler"
	alertservice "fiscalwatch/internal/alert/service"
	"fiscalwatch/internal/collector"
	collectorhandler "fiscalwatch/internal/collector/handler"
	collectorstore "fiscalwatch/internal/collector/store"
	companyhandler "fiscalwatch/internal/company/handler"
	companyservice "fiscalwatch/internal/company/service"
	companystore "fiscalwatch/internal/company/store"
	invoicehandler "fiscalwatch/internal/invoice/handler"
	invoiceservice "fiscalwatch/internal/invoice/service"
	invoicestore "fiscalwatch/internal/invoice/store"
	"fiscalwatch/internal/notify"
	"fiscalwatch/internal/platform/config"
	"fiscalwatch/internal/platform/events"
	"fiscalwatch/internal/platform/httpserver"
	"fiscalwatch/internal/platform/logger"
	"fiscalwatch/internal/platform/metrics"
	platformpostgres "fiscalwatch/internal/platform/postgres"
	platformredis "fiscalwatch/internal/platform/redis"
	"fiscalwatch/internal/ports"
	"fiscalwatch/internal/revenue"
	"fiscalwatch/internal/scheduler"
	schedulerhandler "fiscalwatch/internal/scheduler/handler"
	httptransport "fiscalwatch/internal/transport/http"
	"fiscalwatch/internal/verifier"

	alertstore "fiscalwatch/internal/alert/store"
	"fiscalwatch/pkg/platform/tx"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: postgres when configured, in-memory otherwise (demo mode).
	var (
		companies ports.CompanyStore
		invoices  ports.InvoiceStore
		alerts    ports.AlertStore
		logs      ports.CollectionLogStore
		txRunner  tx.Runner
	)
	var routerOpts []httptransport.Option
	switch {
	case cfg.DatabaseURL != "":
		db, err := platformpostgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := platformpostgres.EnsureSchema(ctx, db); err != nil {
			log.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		companies = companystore.NewPostgres(db)
		invoices = invoicestore.NewPostgres(db)
		alerts = alertstore.NewPostgres(db)
		logs = collectorstore.NewPostgres(db)
		txRunner = tx.NewSQLRunner(db)
		routerOpts = append(routerOpts, httptransport.WithHealthCheck("postgres", db.PingContext))
		log.Info("using postgres stores")
	default:
		companies = companystore.NewInMemory()
		invoices = invoicestore.NewInMemory()
		alerts = alertstore.NewInMemory()
		logs = collectorstore.NewInMemory()
		txRunner = tx.NewMemoryRunner()
		log.Warn("no database configured, using in-memory stores")
	}

	alertOpts := []alertservice.Option{
		alertservice.WithLogger(log),
		alertservice.WithMetrics(m),
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		alertOpts = append(alertOpts, alertservice.WithDedupCache(
			dedup.NewRedisCache(redisClient, alertservice.DedupWindow)))
		routerOpts = append(routerOpts, httptransport.WithHealthCheck("redis", redisClient.Health))
		log.Info("redis alert dedup cache enabled")
	}

	publisher, err := events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		log.Error("failed to connect to kafka", "error", err)
		os.Exit(1)
	}
	if publisher != nil {
		defer publisher.Close()
		alertOpts = append(alertOpts, alertservice.WithEventPublisher(publisher))
		log.Info("kafka alert stream enabled", "topic", cfg.KafkaTopic)
	}

	calculator := revenue.NewCalculator(invoices)
	alertSvc := alertservice.New(companies, alerts, txRunner, alertOpts...)
	dispatcher := notify.New(alerts, &notify.LogEmailSender{Logger: log}, log,
		notify.WithWebhookTimeout(cfg.WebhookTimeout),
		notify.WithMetrics(m),
	)

	companySvc := companyservice.New(companies, companyservice.WithLogger(log))
	invoiceSvc := invoiceservice.New(companies, invoices, calculator, alertSvc, dispatcher,
		invoiceservice.WithLogger(log),
		invoiceservice.WithMetrics(m),
	)
	verify := verifier.New(companies, calculator, alertSvc, dispatcher, log, m)
	collect := collector.New(companies, invoices, logs, calculator, alertSvc, dispatcher, log,
		collector.WithMetrics(m),
	)

	sched := scheduler.New(log, scheduler.WithMetrics(m))
	mustRegister(log, sched, "coleta_notas", "invoice collection", cfg.CollectionInterval,
		func(ctx context.Context) error {
			_, err := collect.Run(ctx)
			return err
		})
	mustRegister(log, sched, "verificar_alertas", "revenue verification", cfg.VerificationInterval,
		func(ctx context.Context) error {
			_, err := verify.Run(ctx)
			return err
		})
	if err := sched.Start(ctx); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	router := httptransport.NewRouter(log, []httptransport.Registrar{
		companyhandler.New(companySvc, log),
		invoicehandler.New(invoiceSvc, log),
		alerthandler.New(alertSvc, log),
		collectorhandler.New(logs, log),
		schedulerhandler.New(sched, log),
	}, routerOpts...)

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

func mustRegister(log *slog.Logger, sched *scheduler.Scheduler, id, name string, interval time.Duration, fn scheduler.JobFunc) {
	if err := sched.Register(id, name, interval, fn); err != nil {
		log.Error("failed to register job", "job", id, "error", err)
		os.Exit(1)
	}
}
