package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"fiscalwatch/internal/invoice/models"
	id "fiscalwatch/pkg/domain"
	txcontext "fiscalwatch/pkg/platform/tx"
)

// Postgres persists invoices. Records are insert-only; the audit verdict is
// final before the row is written.
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

const invoiceColumns = `id, company_id, number, issued_at, service_code, total_value,
	validation_key, payer_tax_id, issuer_tax_id, source_format, origin, raw_xml,
	audit_status, audit_message, imported_at`

func (s *Postgres) Create(ctx context.Context, invoice *models.Invoice) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		uuid.UUID(invoice.ID), uuid.UUID(invoice.CompanyID), invoice.Number,
		invoice.IssuedAt, invoice.ServiceCode, invoice.TotalValue,
		invoice.ValidationKey, invoice.PayerTaxID, invoice.IssuerTaxID,
		string(invoice.SourceFormat), string(invoice.Origin), invoice.RawXML,
		string(invoice.AuditStatus), invoice.AuditMessage, invoice.ImportedAt,
	)
	return err
}

func (s *Postgres) ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*models.Invoice, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE company_id = $1 ORDER BY issued_at`,
		uuid.UUID(companyID))
	if err != nil {
		return nil, err
	}
	return scanInvoices(rows)
}

func (s *Postgres) ListIssuedSince(ctx context.Context, companyID id.CompanyID, cutoff time.Time) ([]*models.Invoice, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE company_id = $1 AND issued_at >= $2 ORDER BY issued_at`,
		uuid.UUID(companyID), cutoff)
	if err != nil {
		return nil, err
	}
	return scanInvoices(rows)
}

func (s *Postgres) HighestNumber(ctx context.Context, companyID id.CompanyID) (int, error) {
	var highest int
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(MAX(number), 0) FROM invoices WHERE company_id = $1`,
		uuid.UUID(companyID)).Scan(&highest)
	return highest, err
}

func scanInvoices(rows *sql.Rows) ([]*models.Invoice, error) {
	defer rows.Close()
	var out []*models.Invoice
	for rows.Next() {
		var (
			invoice   models.Invoice
			rawID     uuid.UUID
			companyID uuid.UUID
			format    string
			origin    string
			status    string
		)
		if err := rows.Scan(
			&rawID, &companyID, &invoice.Number, &invoice.IssuedAt,
			&invoice.ServiceCode, &invoice.TotalValue, &invoice.ValidationKey,
			&invoice.PayerTaxID, &invoice.IssuerTaxID, &format, &origin,
			&invoice.RawXML, &status, &invoice.AuditMessage, &invoice.ImportedAt,
		); err != nil {
			return nil, err
		}
		invoice.ID = id.InvoiceID(rawID)
		invoice.CompanyID = id.CompanyID(companyID)
		invoice.SourceFormat = models.SourceFormat(format)
		invoice.Origin = models.Origin(origin)
		invoice.AuditStatus = models.AuditStatus(status)
		out = append(out, &invoice)
	}
	return out, rows.Err()
}
