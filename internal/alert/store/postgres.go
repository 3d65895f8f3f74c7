package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"fiscalwatch/internal/alert/models"
	id "fiscalwatch/pkg/domain"
	"fiscalwatch/pkg/platform/sentinel"
	txcontext "fiscalwatch/pkg/platform/tx"
)

// Postgres persists alerts. Create participates in the context transaction
// so an alert commits together with the revenue cache update that caused it.
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

const alertColumns = `id, company_id, invoice_id, type, title, body,
	read, read_at, email_notified, webhook_notified, created_at`

func (s *Postgres) Create(ctx context.Context, alert *models.Alert) error {
	var invoiceID any
	if !alert.InvoiceID.IsNil() {
		invoiceID = uuid.UUID(alert.InvoiceID)
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO alerts (`+alertColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		uuid.UUID(alert.ID), uuid.UUID(alert.CompanyID), invoiceID,
		string(alert.Type), alert.Title, alert.Body,
		alert.Read, alert.ReadAt, alert.EmailNotified, alert.WebhookNotified,
		alert.CreatedAt,
	)
	return err
}

func (s *Postgres) FindByID(ctx context.Context, alertID id.AlertID) (*models.Alert, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE id = $1`, uuid.UUID(alertID))
	return scanAlert(row)
}

func (s *Postgres) ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*models.Alert, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE company_id = $1 ORDER BY created_at DESC`,
		uuid.UUID(companyID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, alert)
	}
	return out, rows.Err()
}

func (s *Postgres) ExistsSince(ctx context.Context, companyID id.CompanyID, types []models.Type, cutoff time.Time) (bool, error) {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM alerts
			WHERE company_id = $1 AND type = ANY($2) AND created_at >= $3
		)`,
		uuid.UUID(companyID), pq.Array(names), cutoff).Scan(&exists)
	return exists, err
}

func (s *Postgres) Update(ctx context.Context, alert *models.Alert) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE alerts SET
			read = $2, read_at = $3, email_notified = $4, webhook_notified = $5
		WHERE id = $1`,
		uuid.UUID(alert.ID), alert.Read, alert.ReadAt,
		alert.EmailNotified, alert.WebhookNotified,
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

func scanAlert(row rowScanner) (*models.Alert, error) {
	var (
		alert     models.Alert
		rawID     uuid.UUID
		companyID uuid.UUID
		invoiceID uuid.NullUUID
		kind      string
		readAt    sql.NullTime
	)
	err := row.Scan(
		&rawID, &companyID, &invoiceID, &kind, &alert.Title, &alert.Body,
		&alert.Read, &readAt, &alert.EmailNotified, &alert.WebhookNotified,
		&alert.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	alert.ID = id.AlertID(rawID)
	alert.CompanyID = id.CompanyID(companyID)
	if invoiceID.Valid {
		alert.InvoiceID = id.InvoiceID(invoiceID.UUID)
	}
	alert.Type = models.Type(kind)
	if readAt.Valid {
		t := readAt.Time
		alert.ReadAt = &t
	}
	return &alert, nil
}
