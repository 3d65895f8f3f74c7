package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"fiscalwatch/internal/collector/models"
	id "fiscalwatch/pkg/domain"
	txcontext "fiscalwatch/pkg/platform/tx"
)

// Postgres persists collection log entries.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) execer(ctx context.Context) interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
} {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) Append(ctx context.Context, entry *models.CollectionLogEntry) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO collection_log (id, company_id, outcome, invoices_collected, message, executed_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		entry.ID, uuid.UUID(entry.CompanyID), string(entry.Outcome),
		entry.InvoicesCollected, entry.Message, entry.ExecutedAt,
	)
	return err
}

func (s *Postgres) ListByCompany(ctx context.Context, companyID id.CompanyID, limit int) ([]*models.CollectionLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, company_id, outcome, invoices_collected, message, executed_at
		FROM collection_log WHERE company_id = $1
		ORDER BY executed_at DESC LIMIT $2`,
		uuid.UUID(companyID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.CollectionLogEntry
	for rows.Next() {
		var (
			entry     models.CollectionLogEntry
			companyID uuid.UUID
			outcome   string
		)
		if err := rows.Scan(&entry.ID, &companyID, &outcome,
			&entry.InvoicesCollected, &entry.Message, &entry.ExecutedAt); err != nil {
			return nil, err
		}
		entry.CompanyID = id.CompanyID(companyID)
		entry.Outcome = models.Outcome(outcome)
		out = append(out, &entry)
	}
	return out, rows.Err()
}
