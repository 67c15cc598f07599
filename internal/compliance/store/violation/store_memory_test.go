package violation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kintai/internal/compliance/models"
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

func (s *MemoryStoreSuite) report(run id.RunID, gran models.Granularity, periodKey string, date *time.Time, findings int) *models.ViolatorReport {
	r := &models.ViolatorReport{
		RunID:       run,
		CompanyID:   s.company,
		EmployeeID:  s.employee,
		PeriodKey:   periodKey,
		Granularity: gran,
		Date:        date,
		AssembledAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	for i := 0; i < findings; i++ {
		r.Findings = append(r.Findings, models.Violation{Severity: models.SeverityError})
		r.ErrorCount++
	}
	return r
}

func (s *MemoryStoreSuite) TestListOrdering() {
	ctx := context.Background()
	run := id.NewRunID()
	day2 := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	day9 := time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.PutReports(ctx, []*models.ViolatorReport{
		s.report(run, models.GranularityDaily, "2026-04", &day9, 1),
		s.report(run, models.GranularityYearly, "2026", nil, 0),
		s.report(run, models.GranularityDaily, "2026-04", &day2, 1),
		s.report(run, models.GranularityMonthly, "2026-04", nil, 2),
	}))

	reports, err := s.store.ListByEmployee(ctx, s.company, s.employee, "2026-04")
	s.Require().NoError(err)
	s.Require().Len(reports, 4)
	s.Equal(models.GranularityMonthly, reports[0].Granularity)
	s.Equal(models.GranularityYearly, reports[1].Granularity, "yearly rows join through the year prefix")
	s.Equal(day2, *reports[2].Date)
	s.Equal(day9, *reports[3].Date)
	s.Equal(2, reports[0].ErrorCount)
}

func (s *MemoryStoreSuite) TestSupersession() {
	ctx := context.Background()

	first := id.NewRunID()
	s.Require().NoError(s.store.PutReports(ctx, []*models.ViolatorReport{
		s.report(first, models.GranularityMonthly, "2026-04", nil, 3),
	}))

	second := id.NewRunID()
	s.Require().NoError(s.store.PutReports(ctx, []*models.ViolatorReport{
		s.report(second, models.GranularityMonthly, "2026-04", nil, 0),
	}))

	reports, err := s.store.ListByEmployee(ctx, s.company, s.employee, "2026-04")
	s.Require().NoError(err)
	s.Require().Len(reports, 1, "a rerun replaces the row, never accumulates")
	s.Equal(second, reports[0].RunID)
	s.True(reports[0].Compliant())
}

func (s *MemoryStoreSuite) TestStoredCopyIsIsolated() {
	ctx := context.Background()
	r := s.report(id.NewRunID(), models.GranularityMonthly, "2026-04", nil, 1)
	s.Require().NoError(s.store.PutReports(ctx, []*models.ViolatorReport{r}))

	r.Findings[0].Severity = models.SeverityWarning
	r.ErrorCount = 99

	stored, err := s.store.ListByEmployee(ctx, s.company, s.employee, "2026-04")
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal(1, stored[0].ErrorCount)
	s.Equal(models.SeverityError, stored[0].Findings[0].Severity)
}
