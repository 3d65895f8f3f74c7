package store

import (
	"context"
	"sync"

	"fiscalwatch/internal/company/models"
	id "fiscalwatch/pkg/domain"
	"fiscalwatch/pkg/platform/sentinel"
)

// InMemory keeps companies in a map. Reads and writes copy the record so
// callers never alias store-owned state.
type InMemory struct {
	mu        sync.RWMutex
	companies map[id.CompanyID]*models.Company
	byCNPJ    map[string]id.CompanyID
}

func NewInMemory() *InMemory {
	return &InMemory{
		companies: make(map[id.CompanyID]*models.Company),
		byCNPJ:    make(map[string]id.CompanyID),
	}
}

func (s *InMemory) Create(_ context.Context, company *models.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byCNPJ[company.CNPJ]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.companies[company.ID]; exists {
		return sentinel.ErrConflict
	}
	s.companies[company.ID] = clone(company)
	s.byCNPJ[company.CNPJ] = company.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, companyID id.CompanyID) (*models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	company, ok := s.companies[companyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(company), nil
}

func (s *InMemory) FindByCNPJ(_ context.Context, normalizedCNPJ string) (*models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	companyID, ok := s.byCNPJ[normalizedCNPJ]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.companies[companyID]), nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Company, 0, len(s.companies))
	for _, company := range s.companies {
		out = append(out, clone(company))
	}
	return out, nil
}

func (s *InMemory) ListAutoCollect(_ context.Context) ([]*models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Company
	for _, company := range s.companies {
		if company.AutoCollect {
			out = append(out, clone(company))
		}
	}
	return out, nil
}

func (s *InMemory) Update(_ context.Context, company *models.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.companies[company.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if existing.CNPJ != company.CNPJ {
		// CNPJ is the external identity; re-keying it is not supported.
		return sentinel.ErrInvalidState
	}
	s.companies[company.ID] = clone(company)
	return nil
}

func clone(c *models.Company) *models.Company {
	cp := *c
	cp.PermittedServiceCodes = make(map[string]string, len(c.PermittedServiceCodes))
	for code, desc := range c.PermittedServiceCodes {
		cp.PermittedServiceCodes[code] = desc
	}
	if c.LastCalculatedAt != nil {
		t := *c.LastCalculatedAt
		cp.LastCalculatedAt = &t
	}
	if c.LastCollectionAt != nil {
		t := *c.LastCollectionAt
		cp.LastCollectionAt = &t
	}
	return &cp
}
