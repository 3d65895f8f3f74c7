// Package service holds company lifecycle operations: registration, lookup,
// and the settings that drive auditing and alerting.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"fiscalwatch/internal/company/models"
	"fiscalwatch/internal/ports"
	id "fiscalwatch/pkg/domain"
	dErrors "fiscalwatch/pkg/domain-errors"
	"fiscalwatch/pkg/platform/sentinel"
)

// CreateInput carries everything a registration may set. Zero-valued
// optional fields fall back to regime and threshold defaults.
type CreateInput struct {
	CNPJ                  string
	LegalName             string
	TradeName             string
	Regime                models.Regime
	AnnualLimit           decimal.Decimal
	PermittedServiceCodes map[string]string
	Notification          *models.NotificationConfig
	AutoCollect           bool
}

type Service struct {
	companies ports.CompanyStore
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(companies ports.CompanyStore, opts ...Option) *Service {
	s := &Service{
		companies: companies,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a company. CNPJ collisions surface as a conflict.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Company, error) {
	company, err := models.NewCompany(id.NewCompanyID(), in.CNPJ, in.LegalName, in.Regime, s.now().UTC())
	if err != nil {
		return nil, err
	}
	company.TradeName = in.TradeName
	company.AutoCollect = in.AutoCollect
	if in.AnnualLimit.IsPositive() {
		company.AnnualLimit = in.AnnualLimit
	}
	for code, description := range in.PermittedServiceCodes {
		company.PermittedServiceCodes[code] = description
	}
	if in.Notification != nil {
		if err := in.Notification.Validate(); err != nil {
			return nil, err
		}
		company.Notification = *in.Notification
	}

	if err := s.companies.Create(ctx, company); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "a company with cnpj %s already exists", company.CNPJ)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create company")
	}
	s.logger.InfoContext(ctx, "company registered",
		"company_id", company.ID, "cnpj", company.CNPJ, "regime", string(company.Regime))
	return company, nil
}

func (s *Service) Get(ctx context.Context, companyID id.CompanyID) (*models.Company, error) {
	return s.companies.FindByID(ctx, companyID)
}

func (s *Service) List(ctx context.Context) ([]*models.Company, error) {
	return s.companies.List(ctx)
}

// UpdateNotificationConfig replaces the company's alert thresholds and
// delivery channels.
func (s *Service) UpdateNotificationConfig(ctx context.Context, companyID id.CompanyID, cfg models.NotificationConfig) (*models.Company, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	company, err := s.companies.FindByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	company.Notification = cfg
	if err := s.companies.Update(ctx, company); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update notification config")
	}
	return company, nil
}

// SetPermittedServiceCodes replaces the compliance whitelist wholesale.
func (s *Service) SetPermittedServiceCodes(ctx context.Context, companyID id.CompanyID, codes map[string]string) (*models.Company, error) {
	company, err := s.companies.FindByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	company.PermittedServiceCodes = make(map[string]string, len(codes))
	for code, description := range codes {
		if code == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "service codes must not be empty")
		}
		company.PermittedServiceCodes[code] = description
	}
	if err := s.companies.Update(ctx, company); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update permitted service codes")
	}
	return company, nil
}

// SetAutoCollect toggles scheduled collection for the company.
func (s *Service) SetAutoCollect(ctx context.Context, companyID id.CompanyID, enabled bool) (*models.Company, error) {
	company, err := s.companies.FindByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	company.AutoCollect = enabled
	if err := s.companies.Update(ctx, company); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update auto-collect flag")
	}
	return company, nil
}
