package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"fiscalwatch/internal/company/models"
	id "fiscalwatch/pkg/domain"
	"fiscalwatch/pkg/platform/sentinel"
	txcontext "fiscalwatch/pkg/platform/tx"
)

// Postgres persists companies. Writes go through the context transaction
// when one is present so the alert service can commit the revenue cache and
// a new alert atomically.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) queryer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const companyColumns = `id, cnpj, legal_name, trade_name, regime, annual_limit,
	permitted_codes, revenue_status, usage_percent, last_calculated_at,
	email_enabled, email, webhook_url, warning_percent, critical_percent,
	auto_collect, last_collection_at, created_at`

func (s *Postgres) Create(ctx context.Context, company *models.Company) error {
	codes, err := json.Marshal(company.PermittedServiceCodes)
	if err != nil {
		return fmt.Errorf("marshal permitted codes: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO companies (`+companyColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		uuid.UUID(company.ID), company.CNPJ, company.LegalName, company.TradeName,
		string(company.Regime), company.AnnualLimit, codes,
		string(company.RevenueStatus), company.UsagePercent, company.LastCalculatedAt,
		company.Notification.EmailEnabled, company.Notification.Email,
		company.Notification.WebhookURL, company.Notification.WarningPercent,
		company.Notification.CriticalPercent, company.AutoCollect,
		company.LastCollectionAt, company.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return sentinel.ErrConflict
	}
	return err
}

func (s *Postgres) FindByID(ctx context.Context, companyID id.CompanyID) (*models.Company, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = $1`, uuid.UUID(companyID))
	return scanCompany(row)
}

func (s *Postgres) FindByCNPJ(ctx context.Context, normalizedCNPJ string) (*models.Company, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE cnpj = $1`, normalizedCNPJ)
	return scanCompany(row)
}

func (s *Postgres) List(ctx context.Context) ([]*models.Company, error) {
	return s.list(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY legal_name`)
}

func (s *Postgres) ListAutoCollect(ctx context.Context) ([]*models.Company, error) {
	return s.list(ctx, `SELECT `+companyColumns+` FROM companies WHERE auto_collect ORDER BY legal_name`)
}

func (s *Postgres) list(ctx context.Context, query string) ([]*models.Company, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, company)
	}
	return out, rows.Err()
}

func (s *Postgres) Update(ctx context.Context, company *models.Company) error {
	codes, err := json.Marshal(company.PermittedServiceCodes)
	if err != nil {
		return fmt.Errorf("marshal permitted codes: %w", err)
	}
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE companies SET
			legal_name = $2, trade_name = $3, regime = $4, annual_limit = $5,
			permitted_codes = $6, revenue_status = $7, usage_percent = $8,
			last_calculated_at = $9, email_enabled = $10, email = $11,
			webhook_url = $12, warning_percent = $13, critical_percent = $14,
			auto_collect = $15, last_collection_at = $16
		WHERE id = $1 AND cnpj = $17`,
		uuid.UUID(company.ID), company.LegalName, company.TradeName,
		string(company.Regime), company.AnnualLimit, codes,
		string(company.RevenueStatus), company.UsagePercent, company.LastCalculatedAt,
		company.Notification.EmailEnabled, company.Notification.Email,
		company.Notification.WebhookURL, company.Notification.WarningPercent,
		company.Notification.CriticalPercent, company.AutoCollect,
		company.LastCollectionAt, company.CNPJ,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (*models.Company, error) {
	var (
		company  models.Company
		rawID    uuid.UUID
		regime   string
		status   string
		codes    []byte
		limit    decimal.Decimal
		usage    decimal.Decimal
		lastCalc sql.NullTime
		lastColl sql.NullTime
	)
	err := row.Scan(
		&rawID, &company.CNPJ, &company.LegalName, &company.TradeName, &regime,
		&limit, &codes, &status, &usage, &lastCalc,
		&company.Notification.EmailEnabled, &company.Notification.Email,
		&company.Notification.WebhookURL, &company.Notification.WarningPercent,
		&company.Notification.CriticalPercent, &company.AutoCollect,
		&lastColl, &company.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	company.ID = id.CompanyID(rawID)
	company.Regime = models.Regime(regime)
	company.RevenueStatus = models.RevenueStatus(status)
	company.AnnualLimit = limit
	company.UsagePercent = usage
	if err := json.Unmarshal(codes, &company.PermittedServiceCodes); err != nil {
		return nil, fmt.Errorf("unmarshal permitted codes: %w", err)
	}
	company.LastCalculatedAt = nullableTime(lastCalc)
	company.LastCollectionAt = nullableTime(lastColl)
	return &company, nil
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
