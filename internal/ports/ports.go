// Package ports declares the persistence seams the services depend on. Each
// interface has an in-memory implementation for unit tests and the demo mode,
// and a postgres implementation for deployment. Stores return sentinel errors
// (pkg/platform/sentinel); translation to coded errors happens in services.
package ports

import (
	"context"
	"time"

	alertmodels "fiscalwatch/internal/alert/models"
	collectormodels "fiscalwatch/internal/collector/models"
	companymodels "fiscalwatch/internal/company/models"
	invoicemodels "fiscalwatch/internal/invoice/models"
	id "fiscalwatch/pkg/domain"
)

// CompanyStore persists monitored taxpayers.
type CompanyStore interface {
	// Create fails with sentinel.ErrConflict when the CNPJ is already enrolled.
	Create(ctx context.Context, company *companymodels.Company) error
	FindByID(ctx context.Context, companyID id.CompanyID) (*companymodels.Company, error)
	FindByCNPJ(ctx context.Context, normalizedCNPJ string) (*companymodels.Company, error)
	List(ctx context.Context) ([]*companymodels.Company, error)
	ListAutoCollect(ctx context.Context) ([]*companymodels.Company, error)
	Update(ctx context.Context, company *companymodels.Company) error
}

// InvoiceStore persists audited invoices. Records are write-once.
type InvoiceStore interface {
	Create(ctx context.Context, invoice *invoicemodels.Invoice) error
	ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*invoicemodels.Invoice, error)
	// ListIssuedSince returns the invoices issued at or after the cutoff;
	// this is the trailing-window query behind the revenue calculator.
	ListIssuedSince(ctx context.Context, companyID id.CompanyID, cutoff time.Time) ([]*invoicemodels.Invoice, error)
	// HighestNumber returns the largest invoice number for the company, or 0.
	HighestNumber(ctx context.Context, companyID id.CompanyID) (int, error)
}

// AlertStore persists alerts and answers the dedup-window query.
type AlertStore interface {
	Create(ctx context.Context, alert *alertmodels.Alert) error
	FindByID(ctx context.Context, alertID id.AlertID) (*alertmodels.Alert, error)
	ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*alertmodels.Alert, error)
	// ExistsSince reports whether any alert of the given types was created
	// for the company at or after the cutoff.
	ExistsSince(ctx context.Context, companyID id.CompanyID, types []alertmodels.Type, cutoff time.Time) (bool, error)
	Update(ctx context.Context, alert *alertmodels.Alert) error
}

// CollectionLogStore persists one entry per company per collection run.
type CollectionLogStore interface {
	Append(ctx context.Context, entry *collectormodels.CollectionLogEntry) error
	ListByCompany(ctx context.Context, companyID id.CompanyID, limit int) ([]*collectormodels.CollectionLogEntry, error)
}
