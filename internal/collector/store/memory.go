package store

import (
	"context"
	"sync"

	"fiscalwatch/internal/collector/models"
	id "fiscalwatch/pkg/domain"
)

// InMemory keeps collection log entries newest-first per company.
type InMemory struct {
	mu      sync.RWMutex
	entries map[id.CompanyID][]*models.CollectionLogEntry
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[id.CompanyID][]*models.CollectionLogEntry)}
}

func (s *InMemory) Append(_ context.Context, entry *models.CollectionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.entries[entry.CompanyID] = append([]*models.CollectionLogEntry{&cp}, s.entries[entry.CompanyID]...)
	return nil
}

func (s *InMemory) ListByCompany(_ context.Context, companyID id.CompanyID, limit int) ([]*models.CollectionLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.entries[companyID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]*models.CollectionLogEntry, 0, limit)
	for _, entry := range list[:limit] {
		cp := *entry
		out = append(out, &cp)
	}
	return out, nil
}
