//go:build integration

package violation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kintai/internal/compliance/models"
	legal "kintai/internal/legal/models"
	id "kintai/pkg/domain"
	"kintai/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg       *containers.PostgresContainer
	store    *PostgresStore
	company  id.CompanyID
	employee id.EmployeeID
	rule     id.RuleID
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background(), "violator_reports", "violations"))
	s.company = id.NewCompanyID()
	s.employee = id.NewEmployeeID()
	s.rule = id.NewRuleID()
}

func (s *PostgresStoreSuite) finding(run id.RunID, severity models.Severity) models.Violation {
	detectedAt := time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC)
	f := models.Violation{
		RunID:            run,
		CompanyID:        s.company,
		EmployeeID:       s.employee,
		PeriodKey:        "2026-04",
		Granularity:      models.GranularityMonthly,
		Kind:             legal.LimitMonthlyOvertime,
		Severity:         severity,
		RuleID:           s.rule,
		LimitValue:       2700,
		ActualValue:      3000,
		WarningThreshold: 2160,
		Citation:         legal.Citation{Chapter: 4, Article: 36, Term: 4, Issue: 1},
		DetectedAt:       detectedAt,
	}
	f.ID = models.NewViolationID(f.RunID, f.EmployeeID, f.PeriodKey, f.Kind, f.Granularity, f.LimitValue, f.Date)
	return f
}

func (s *PostgresStoreSuite) report(run id.RunID, findings ...models.Violation) *models.ViolatorReport {
	r := &models.ViolatorReport{
		RunID:       run,
		CompanyID:   s.company,
		EmployeeID:  s.employee,
		PeriodKey:   "2026-04",
		Granularity: models.GranularityMonthly,
		Findings:    findings,
		AssembledAt: time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC),
	}
	for _, f := range findings {
		switch f.Severity {
		case models.SeverityError:
			r.ErrorCount++
		case models.SeverityWarning:
			r.WarnCount++
		}
	}
	return r
}

func (s *PostgresStoreSuite) TestRoundTripWithFindings() {
	ctx := context.Background()
	run := id.NewRunID()
	s.Require().NoError(s.store.PutReports(ctx, []*models.ViolatorReport{
		s.report(run, s.finding(run, models.SeverityError)),
	}))

	reports, err := s.store.ListByEmployee(ctx, s.company, s.employee, "2026-04")
	s.Require().NoError(err)
	s.Require().Len(reports, 1)
	s.Equal(run, reports[0].RunID)
	s.Equal(1, reports[0].ErrorCount)
	s.Require().Len(reports[0].Findings, 1)

	f := reports[0].Findings[0]
	s.Equal(legal.LimitMonthlyOvertime, f.Kind)
	s.Equal(2700, f.LimitValue)
	s.Equal(legal.Citation{Chapter: 4, Article: 36, Term: 4, Issue: 1}, f.Citation)
}

func (s *PostgresStoreSuite) TestSupersession() {
	ctx := context.Background()

	first := id.NewRunID()
	s.Require().NoError(s.store.PutReports(ctx, []*models.ViolatorReport{
		s.report(first, s.finding(first, models.SeverityError)),
	}))

	second := id.NewRunID()
	s.Require().NoError(s.store.PutReports(ctx, []*models.ViolatorReport{
		s.report(second),
	}))

	reports, err := s.store.ListByEmployee(ctx, s.company, s.employee, "2026-04")
	s.Require().NoError(err)
	s.Require().Len(reports, 1)
	s.Equal(second, reports[0].RunID)
	s.True(reports[0].Compliant())
	s.Empty(reports[0].Findings)
}

func (s *PostgresStoreSuite) TestYearlyJoinsThroughPrefix() {
	ctx := context.Background()
	run := id.NewRunID()

	monthly := s.report(run)
	yearly := s.report(run)
	yearly.PeriodKey = "2026"
	yearly.Granularity = models.GranularityYearly
	s.Require().NoError(s.store.PutReports(ctx, []*models.ViolatorReport{yearly, monthly}))

	reports, err := s.store.ListByEmployee(ctx, s.company, s.employee, "2026-04")
	s.Require().NoError(err)
	s.Require().Len(reports, 2)
	s.Equal(models.GranularityMonthly, reports[0].Granularity)
	s.Equal(models.GranularityYearly, reports[1].Granularity)
}
