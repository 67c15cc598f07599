package summary

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"kintai/internal/attendance/models"
	id "kintai/pkg/domain"
)

type MemoryStoreSuite struct {
	suite.Suite
	store    *MemoryStore
	company  id.CompanyID
	employee id.EmployeeID
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.company = id.NewCompanyID()
	s.employee = id.NewEmployeeID()
}

func (s *MemoryStoreSuite) summary(periodKey string, overtime int) *models.MonthlyLaborSummary {
	return &models.MonthlyLaborSummary{
		CompanyID:                s.company,
		EmployeeID:               s.employee,
		PeriodKey:                periodKey,
		WorkDays:                 20,
		StatutoryOvertimeMinutes: overtime,
	}
}

func (s *MemoryStoreSuite) TestPutReplaces() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, s.summary("2026-04", 1200)))
	s.Require().NoError(s.store.Put(ctx, s.summary("2026-04", 1800)))

	got, err := s.store.Get(ctx, s.company, s.employee, "2026-04")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(1800, got.StatutoryOvertimeMinutes)
}

func (s *MemoryStoreSuite) TestGetAbsent() {
	got, err := s.store.Get(context.Background(), s.company, s.employee, "2026-04")
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *MemoryStoreSuite) TestListYear() {
	ctx := context.Background()
	// Out of order, with a neighboring year that must stay out.
	s.Require().NoError(s.store.Put(ctx, s.summary("2026-06", 300)))
	s.Require().NoError(s.store.Put(ctx, s.summary("2026-04", 100)))
	s.Require().NoError(s.store.Put(ctx, s.summary("2025-12", 999)))
	s.Require().NoError(s.store.Put(ctx, s.summary("2026-05", 200)))

	months, err := s.store.ListYear(ctx, s.company, s.employee, "2026")
	s.Require().NoError(err)
	s.Require().Len(months, 3)
	s.Equal("2026-04", months[0].PeriodKey)
	s.Equal("2026-05", months[1].PeriodKey)
	s.Equal("2026-06", months[2].PeriodKey)
}

func (s *MemoryStoreSuite) TestStoredCopyIsIsolated() {
	ctx := context.Background()
	m := s.summary("2026-04", 1200)
	s.Require().NoError(s.store.Put(ctx, m))
	m.StatutoryOvertimeMinutes = 0

	got, err := s.store.Get(ctx, s.company, s.employee, "2026-04")
	s.Require().NoError(err)
	s.Equal(1200, got.StatutoryOvertimeMinutes)
}
