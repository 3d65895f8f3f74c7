package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"fiscalwatch/internal/invoice/models"
	id "fiscalwatch/pkg/domain"
)

// InMemory keeps invoices per company, ordered by issue timestamp.
type InMemory struct {
	mu       sync.RWMutex
	invoices map[id.CompanyID][]*models.Invoice
}

func NewInMemory() *InMemory {
	return &InMemory{invoices: make(map[id.CompanyID][]*models.Invoice)}
}

func (s *InMemory) Create(_ context.Context, invoice *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *invoice
	list := append(s.invoices[invoice.CompanyID], &cp)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].IssuedAt.Before(list[j].IssuedAt)
	})
	s.invoices[invoice.CompanyID] = list
	return nil
}

func (s *InMemory) ListByCompany(_ context.Context, companyID id.CompanyID) ([]*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyAll(s.invoices[companyID]), nil
}

func (s *InMemory) ListIssuedSince(_ context.Context, companyID id.CompanyID, cutoff time.Time) ([]*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Invoice
	for _, invoice := range s.invoices[companyID] {
		if !invoice.IssuedAt.Before(cutoff) {
			cp := *invoice
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemory) HighestNumber(_ context.Context, companyID id.CompanyID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	highest := 0
	for _, invoice := range s.invoices[companyID] {
		if invoice.Number > highest {
			highest = invoice.Number
		}
	}
	return highest, nil
}

func copyAll(list []*models.Invoice) []*models.Invoice {
	out := make([]*models.Invoice, len(list))
	for i, invoice := range list {
		cp := *invoice
		out[i] = &cp
	}
	return out
}
