package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fiscalwatch/internal/company/models"
	id "fiscalwatch/pkg/domain"
	"fiscalwatch/pkg/platform/sentinel"
)

type CompanyStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemory
}

func (s *CompanyStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
}

func TestCompanyStoreSuite(t *testing.T) {
	suite.Run(t, new(CompanyStoreSuite))
}

func (s *CompanyStoreSuite) newCompany(cnpj string) *models.Company {
	company, err := models.NewCompany(
		id.NewCompanyID(), cnpj, "Acme Serviços Ltda",
		models.RegimeSimplified, time.Now())
	s.Require().NoError(err)
	return company
}

func (s *CompanyStoreSuite) TestCreateAndLookups() {
	s.Run("creates and finds by ID and CNPJ", func() {
		company := s.newCompany("11222333000181")
		s.Require().NoError(s.store.Create(s.ctx, company))

		byID, err := s.store.FindByID(s.ctx, company.ID)
		s.Require().NoError(err)
		s.Equal(company.LegalName, byID.LegalName)

		byCNPJ, err := s.store.FindByCNPJ(s.ctx, "11222333000181")
		s.Require().NoError(err)
		s.Equal(company.ID, byCNPJ.ID)
	})

	s.Run("rejects a duplicate CNPJ", func() {
		first := s.newCompany("99888777000166")
		second := s.newCompany("99888777000166")
		s.Require().NoError(s.store.Create(s.ctx, first))
		s.Require().ErrorIs(s.store.Create(s.ctx, second), sentinel.ErrConflict)
	})

	s.Run("returns ErrNotFound for unknown IDs", func() {
		_, err := s.store.FindByID(s.ctx, id.NewCompanyID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *CompanyStoreSuite) TestAutoCollectListing() {
	auto := s.newCompany("11222333000181")
	auto.AutoCollect = true
	manual := s.newCompany("99888777000166")
	s.Require().NoError(s.store.Create(s.ctx, auto))
	s.Require().NoError(s.store.Create(s.ctx, manual))

	listed, err := s.store.ListAutoCollect(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(auto.ID, listed[0].ID)
}

func (s *CompanyStoreSuite) TestUpdate() {
	s.Run("persists field changes", func() {
		company := s.newCompany("11222333000181")
		s.Require().NoError(s.store.Create(s.ctx, company))

		company.AutoCollect = true
		s.Require().NoError(s.store.Update(s.ctx, company))

		stored, err := s.store.FindByID(s.ctx, company.ID)
		s.Require().NoError(err)
		s.True(stored.AutoCollect)
	})

	s.Run("rejects a CNPJ change", func() {
		company := s.newCompany("99888777000166")
		s.Require().NoError(s.store.Create(s.ctx, company))

		company.CNPJ = "12345678000190"
		s.Require().ErrorIs(s.store.Update(s.ctx, company), sentinel.ErrInvalidState)
	})

	s.Run("returns ErrNotFound for an unknown company", func() {
		s.Require().ErrorIs(s.store.Update(s.ctx, s.newCompany("44555666000177")), sentinel.ErrNotFound)
	})
}

func (s *CompanyStoreSuite) TestReadsNeverAliasStoreState() {
	company := s.newCompany("11222333000181")
	company.PermittedServiceCodes["08.02"] = "Consultoria"
	s.Require().NoError(s.store.Create(s.ctx, company))

	read, err := s.store.FindByID(s.ctx, company.ID)
	s.Require().NoError(err)
	read.PermittedServiceCodes["17.01"] = "injected"

	again, err := s.store.FindByID(s.ctx, company.ID)
	s.Require().NoError(err)
	s.False(again.PermitsServiceCode("17.01"))
}
