// Package postgres opens the database and owns the schema. The service is
// small enough that idempotent DDL at startup beats a migration toolchain.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects and verifies the database is reachable.
func Open(url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS companies (
		id                 UUID PRIMARY KEY,
		cnpj               TEXT NOT NULL UNIQUE,
		legal_name         TEXT NOT NULL,
		trade_name         TEXT NOT NULL DEFAULT '',
		regime             TEXT NOT NULL,
		annual_limit       NUMERIC(15,2) NOT NULL DEFAULT 0,
		permitted_codes    JSONB NOT NULL DEFAULT '{}'::jsonb,
		revenue_status     TEXT NOT NULL DEFAULT 'OK',
		usage_percent      NUMERIC(9,4) NOT NULL DEFAULT 0,
		last_calculated_at TIMESTAMPTZ,
		email_enabled      BOOLEAN NOT NULL DEFAULT FALSE,
		email              TEXT NOT NULL DEFAULT '',
		webhook_url        TEXT NOT NULL DEFAULT '',
		warning_percent    BIGINT NOT NULL DEFAULT 80,
		critical_percent   BIGINT NOT NULL DEFAULT 100,
		auto_collect       BOOLEAN NOT NULL DEFAULT FALSE,
		last_collection_at TIMESTAMPTZ,
		created_at         TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id            UUID PRIMARY KEY,
		company_id    UUID NOT NULL REFERENCES companies(id),
		number        INTEGER NOT NULL,
		issued_at     TIMESTAMP NOT NULL,
		service_code  TEXT NOT NULL,
		total_value   NUMERIC(15,2) NOT NULL,
		validation_key TEXT NOT NULL DEFAULT '',
		payer_tax_id  TEXT NOT NULL DEFAULT '',
		issuer_tax_id TEXT NOT NULL DEFAULT '',
		source_format TEXT NOT NULL,
		origin        TEXT NOT NULL,
		raw_xml       TEXT NOT NULL DEFAULT '',
		audit_status  TEXT NOT NULL,
		audit_message TEXT NOT NULL DEFAULT '',
		imported_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_company_issued
		ON invoices (company_id, issued_at)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id               UUID PRIMARY KEY,
		company_id       UUID NOT NULL REFERENCES companies(id),
		invoice_id       UUID,
		type             TEXT NOT NULL,
		title            TEXT NOT NULL,
		body             TEXT NOT NULL,
		read             BOOLEAN NOT NULL DEFAULT FALSE,
		read_at          TIMESTAMPTZ,
		email_notified   BOOLEAN NOT NULL DEFAULT FALSE,
		webhook_notified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_company_created
		ON alerts (company_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS collection_log (
		id                 UUID PRIMARY KEY,
		company_id         UUID NOT NULL REFERENCES companies(id),
		outcome            TEXT NOT NULL,
		invoices_collected INTEGER NOT NULL DEFAULT 0,
		message            TEXT NOT NULL DEFAULT '',
		executed_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_collection_log_company_executed
		ON collection_log (company_id, executed_at DESC)`,
}

// EnsureSchema applies the idempotent DDL.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
