package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"fiscalwatch/internal/alert/models"
	id "fiscalwatch/pkg/domain"
	"fiscalwatch/pkg/platform/sentinel"
)

// InMemory keeps alerts in creation order per company.
type InMemory struct {
	mu     sync.RWMutex
	alerts map[id.AlertID]*models.Alert
	byCo   map[id.CompanyID][]id.AlertID
}

func NewInMemory() *InMemory {
	return &InMemory{
		alerts: make(map[id.AlertID]*models.Alert),
		byCo:   make(map[id.CompanyID][]id.AlertID),
	}
}

func (s *InMemory) Create(_ context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.alerts[alert.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *alert
	s.alerts[alert.ID] = &cp
	s.byCo[alert.CompanyID] = append(s.byCo[alert.CompanyID], alert.ID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, alertID id.AlertID) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alert, ok := s.alerts[alertID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *alert
	return &cp, nil
}

func (s *InMemory) ListByCompany(_ context.Context, companyID id.CompanyID) ([]*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byCo[companyID]
	out := make([]*models.Alert, 0, len(ids))
	for _, alertID := range ids {
		cp := *s.alerts[alertID]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemory) ExistsSince(_ context.Context, companyID id.CompanyID, types []models.Type, cutoff time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, alertID := range s.byCo[companyID] {
		alert := s.alerts[alertID]
		if alert.CreatedAt.Before(cutoff) {
			continue
		}
		if slices.Contains(types, alert.Type) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemory) Update(_ context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[alert.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *alert
	s.alerts[alert.ID] = &cp
	return nil
}
