package batch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kintai/internal/attendance/aggregator"
	"kintai/internal/attendance/models"
	"kintai/internal/attendance/normalizer"
	dailystore "kintai/internal/attendance/store/daily"
	summarystore "kintai/internal/attendance/store/summary"
	"kintai/internal/batch"
	"kintai/internal/batch/source"
	"kintai/internal/compliance/detector"
	cmodels "kintai/internal/compliance/models"
	violationstore "kintai/internal/compliance/store/violation"
	legal "kintai/internal/legal/models"
	"kintai/internal/legal/resolver"
	rulestore "kintai/internal/legal/store/rule"
	id "kintai/pkg/domain"
	dErrors "kintai/pkg/domain-errors"
)

// RunnerSuite wires the full pipeline over memory stores and sources: the
// closest thing to an end-to-end run without infrastructure.
type RunnerSuite struct {
	suite.Suite

	stamps    *source.MemoryStamps
	schedules *source.MemorySchedules
	periods   *source.MemoryPeriods
	roster    *source.MemoryRoster
	daily     *dailystore.MemoryStore
	summaries *summarystore.MemoryStore
	reports   *violationstore.MemoryStore
	rules     *rulestore.MemoryStore

	runner *batch.Runner

	company  id.CompanyID
	employee id.EmployeeID
	period   models.ClosingPeriod
}

func TestRunnerSuite(t *testing.T) {
	suite.Run(t, new(RunnerSuite))
}

func (s *RunnerSuite) SetupTest() {
	s.stamps = source.NewMemoryStamps()
	s.schedules = source.NewMemorySchedules()
	s.periods = source.NewMemoryPeriods()
	s.roster = source.NewMemoryRoster()
	s.daily = dailystore.NewMemory()
	s.summaries = summarystore.NewMemory()
	s.reports = violationstore.NewMemory()
	s.rules = rulestore.NewMemory()

	agg, err := aggregator.New(s.daily, s.summaries)
	s.Require().NoError(err)
	res, err := resolver.New(s.rules)
	s.Require().NoError(err)

	s.runner, err = batch.New(batch.Deps{
		Stamps:     s.stamps,
		Schedules:  s.schedules,
		Periods:    s.periods,
		Roster:     s.roster,
		Daily:      s.daily,
		Reports:    s.reports,
		Normalizer: normalizer.New(),
		Aggregator: agg,
		Resolver:   res,
		Detector:   detector.New(),
	}, batch.WithParallelism(4))
	s.Require().NoError(err)

	s.company = id.NewCompanyID()
	s.employee = id.NewEmployeeID()
	s.period = models.ClosingPeriod{
		CompanyID: s.company,
		Key:       "2026-04",
		From:      time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
		State:     models.PeriodOpen,
	}
	s.periods.Set(&s.period)
	s.roster.Set(s.company, batch.Employee{ID: s.employee})

	s.schedules.SetDefault(s.company, s.employee, models.WorkSchedule{
		ScheduledMinutes: 480,
	})
	s.seedAgreement()
}

func (s *RunnerSuite) seedAgreement() {
	s.rules.Seed(s.company, []*legal.LegalRule{{
		ID:       id.NewRuleID(),
		Kind:     legal.RuleAgreement36,
		Scope:    legal.Scope{CompanyID: s.company},
		TermFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		TermTo:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		Limits: []legal.Limit{
			{Kind: legal.LimitMonthlyOvertime, Value: 45 * 60, Citation: legal.Citation{Chapter: 4, Article: 36, Term: 4}},
		},
		DefaultWarningRatio: 0.8,
	}})
}

// stampDay adds one raw day: 9:00 start, worked minutes net of the break.
func (s *RunnerSuite) stampDay(employee id.EmployeeID, day, workedMinutes int) {
	date := time.Date(2026, 4, day, 0, 0, 0, 0, time.UTC)
	in := date.Add(9 * time.Hour)
	out := in.Add(time.Duration(workedMinutes)*time.Minute + time.Hour)
	s.stamps.Add(models.RawTimeRecord{
		CompanyID:  s.company,
		EmployeeID: employee,
		Date:       date,
		ClockIn:    &in,
		ClockOut:   &out,
		Breaks: []models.Span{{
			Start: date.Add(12 * time.Hour),
			End:   date.Add(13 * time.Hour),
		}},
	})
}

// workday returns the calendar day of the nth weekday of April 2026, keeping
// multi-day fixtures under the 40h weekly threshold.
func (s *RunnerSuite) workday(n int) int {
	d := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			n--
			if n == 0 {
				return d.Day()
			}
		}
		d = d.AddDate(0, 0, 1)
	}
}

func (s *RunnerSuite) job(employees ...id.EmployeeID) batch.Job {
	return batch.Job{
		RunID:     id.NewRunID(),
		CompanyID: s.company,
		PeriodKey: s.period.Key,
		Employees: employees,
	}
}

func (s *RunnerSuite) TestCompliantEmployee() {
	// Five 8h workdays: zero overtime, zero findings, but explicit report
	// shells.
	for i := 1; i <= 5; i++ {
		s.stampDay(s.employee, s.workday(i), 480)
	}

	result, err := s.runner.Run(context.Background(), s.job(s.employee))
	s.Require().NoError(err)
	s.Equal(1, result.Employees)
	s.Zero(result.Findings)
	s.Empty(result.Failed)
	s.Empty(result.Undetermined)

	reports, err := s.reports.ListByEmployee(context.Background(), s.company, s.employee, s.period.Key)
	s.Require().NoError(err)
	s.Require().Len(reports, 2, "monthly and yearly shells for a compliant employee")
	s.True(reports[0].Compliant())

	summary, err := s.summaries.Get(context.Background(), s.company, s.employee, s.period.Key)
	s.Require().NoError(err)
	s.Require().NotNil(summary)
	s.Equal(2400, summary.RealTotalMinutes)
	s.Zero(summary.StatutoryOvertimeMinutes)
	s.Equal(5, summary.WorkDays)
}

func (s *RunnerSuite) TestShortScheduleCompliant() {
	// A part-time week: 190 scheduled minutes a day, worked exactly to
	// schedule over five days. Nothing crosses any statutory line.
	s.schedules.SetDefault(s.company, s.employee, models.WorkSchedule{
		ScheduledMinutes: 190,
	})
	for i := 1; i <= 5; i++ {
		s.stampDay(s.employee, s.workday(i), 190)
	}

	result, err := s.runner.Run(context.Background(), s.job(s.employee))
	s.Require().NoError(err)
	s.Zero(result.Findings)
	s.Empty(result.Failed)
	s.Empty(result.Undetermined)

	summary, err := s.summaries.Get(context.Background(), s.company, s.employee, s.period.Key)
	s.Require().NoError(err)
	s.Require().NotNil(summary)
	s.Equal(950, summary.RealTotalMinutes)
	s.Equal(950, summary.ScheduledMinutes)
	s.Zero(summary.StatutoryOvertimeMinutes)

	reports, err := s.reports.ListByEmployee(context.Background(), s.company, s.employee, s.period.Key)
	s.Require().NoError(err)
	for _, r := range reports {
		s.True(r.Compliant())
	}
}

func (s *RunnerSuite) TestOvertimeProducesFindings() {
	// Twenty workdays of 11h work: 3h daily overtime, 60h in the month. That
	// breaches the 45h agreement ceiling.
	for i := 1; i <= 20; i++ {
		s.stampDay(s.employee, s.workday(i), 660)
	}

	result, err := s.runner.Run(context.Background(), s.job(s.employee))
	s.Require().NoError(err)
	s.Positive(result.Findings)

	reports, err := s.reports.ListByEmployee(context.Background(), s.company, s.employee, s.period.Key)
	s.Require().NoError(err)
	s.Require().NotEmpty(reports)
	monthly := reports[0]
	s.Equal(cmodels.GranularityMonthly, monthly.Granularity)
	s.Positive(monthly.ErrorCount)

	found := false
	for _, f := range monthly.Findings {
		if f.Kind == legal.LimitMonthlyOvertime {
			found = true
			s.Equal(cmodels.SeverityError, f.Severity)
			s.Equal(45*60, f.LimitValue)
			s.Equal(60*60, f.ActualValue)
		}
	}
	s.True(found, "expected a monthly overtime breach finding")
}

func (s *RunnerSuite) TestWarningBandProducesSingleWarning() {
	// A 60h ceiling with the warning band opening at 75%: 50h of overtime sits
	// between 45h and 60h, so the month yields one warning and no error.
	s.rules.Seed(s.company, []*legal.LegalRule{{
		ID:       id.NewRuleID(),
		Kind:     legal.RuleAgreement36,
		Scope:    legal.Scope{CompanyID: s.company},
		TermFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		TermTo:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		Limits: []legal.Limit{
			{Kind: legal.LimitMonthlyOvertime, Value: 60 * 60, WarningRatio: 0.75, Citation: legal.Citation{Chapter: 4, Article: 36, Term: 5}},
		},
		DefaultWarningRatio: 0.8,
	}})
	// Twenty workdays of 10.5h work: 150 minutes of daily overtime, 3000 in
	// the month.
	for i := 1; i <= 20; i++ {
		s.stampDay(s.employee, s.workday(i), 630)
	}

	result, err := s.runner.Run(context.Background(), s.job(s.employee))
	s.Require().NoError(err)
	s.Equal(1, result.Findings)

	reports, err := s.reports.ListByEmployee(context.Background(), s.company, s.employee, s.period.Key)
	s.Require().NoError(err)

	warnings, errorCount := 0, 0
	for _, r := range reports {
		warnings += r.WarnCount
		errorCount += r.ErrorCount
		for _, f := range r.Findings {
			s.Equal(legal.LimitMonthlyOvertime, f.Kind)
			s.Equal(cmodels.SeverityWarning, f.Severity)
			s.Equal(60*60, f.LimitValue)
			s.Equal(50*60, f.ActualValue)
		}
	}
	s.Equal(1, warnings)
	s.Zero(errorCount)
}

func (s *RunnerSuite) TestRunAdvancesPeriodState() {
	s.stampDay(s.employee, s.workday(1), 480)

	_, err := s.runner.Run(context.Background(), s.job(s.employee))
	s.Require().NoError(err)

	period, err := s.periods.Get(context.Background(), s.company, s.period.Key)
	s.Require().NoError(err)
	s.Require().NotNil(period)
	s.Equal(models.PeriodDetected, period.State, "a finished run leaves the period detected")

	// A recompute re-enters aggregation from Detected and lands back on
	// Detected.
	_, err = s.runner.Run(context.Background(), s.job(s.employee))
	s.Require().NoError(err)

	period, err = s.periods.Get(context.Background(), s.company, s.period.Key)
	s.Require().NoError(err)
	s.Equal(models.PeriodDetected, period.State)
}

func (s *RunnerSuite) TestIncompleteStampStaysProvisional() {
	date := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	in := date.Add(9 * time.Hour)
	s.stamps.Add(models.RawTimeRecord{
		CompanyID:  s.company,
		EmployeeID: s.employee,
		Date:       date,
		ClockIn:    &in,
	})
	s.stampDay(s.employee, 7, 480)

	result, err := s.runner.Run(context.Background(), s.job(s.employee))
	s.Require().NoError(err)
	s.Empty(result.Failed, "a missing stamp is not a pipeline failure")

	rec, err := s.daily.Latest(context.Background(), s.company, s.employee, date)
	s.Require().NoError(err)
	s.Require().NotNil(rec, "the provisional record must be persisted")
	s.Equal(models.RecordProvisional, rec.State)

	summary, err := s.summaries.Get(context.Background(), s.company, s.employee, s.period.Key)
	s.Require().NoError(err)
	s.Equal(1, summary.ProvisionalDays)
	s.Equal(480, summary.RealTotalMinutes, "only the confirmed day counts")
}

func (s *RunnerSuite) TestClosedPeriodRejectsJob() {
	closed := s.period
	closed.State = models.PeriodClosed
	s.periods.Set(&closed)

	_, err := s.runner.Run(context.Background(), s.job(s.employee))
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePeriodClosed))
}

func (s *RunnerSuite) TestUnknownPeriod() {
	job := s.job(s.employee)
	job.PeriodKey = "2031-01"
	_, err := s.runner.Run(context.Background(), job)
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RunnerSuite) TestEmployeeFailureIsolation() {
	good := s.employee
	missing := id.NewEmployeeID() // not on the roster
	s.stampDay(good, 1, 480)

	result, err := s.runner.Run(context.Background(), s.job(good, missing))
	s.Require().NoError(err, "one employee's failure never aborts the run")
	s.Equal(2, result.Employees)
	s.Len(result.Failed, 1)
	s.Contains(result.Failed, missing)
	s.True(dErrors.HasCode(result.Failed[missing], dErrors.CodeNotFound))

	// The good employee's pipeline completed.
	summary, err := s.summaries.Get(context.Background(), s.company, good, s.period.Key)
	s.Require().NoError(err)
	s.NotNil(summary)
}

func (s *RunnerSuite) TestUndeterminedCompliance() {
	// The company holds an agreement, but no rule covers this period's date:
	// compliance is undetermined and no report rows are written.
	s.rules.Seed(s.company, []*legal.LegalRule{{
		ID:       id.NewRuleID(),
		Kind:     legal.RuleAgreement36,
		Scope:    legal.Scope{CompanyID: s.company},
		TermFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		TermTo:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Limits:   []legal.Limit{{Kind: legal.LimitMonthlyOvertime, Value: 45 * 60}},
	}})
	s.stampDay(s.employee, 1, 480)

	result, err := s.runner.Run(context.Background(), s.job(s.employee))
	s.Require().NoError(err)
	s.Empty(result.Failed)
	s.Equal([]id.EmployeeID{s.employee}, result.Undetermined)

	reports, err := s.reports.ListByEmployee(context.Background(), s.company, s.employee, s.period.Key)
	s.Require().NoError(err)
	s.Empty(reports, "no shells for an undetermined employee; absence must not read as compliant")
}

func (s *RunnerSuite) TestRerunSupersedes() {
	for i := 1; i <= 20; i++ {
		s.stampDay(s.employee, s.workday(i), 660)
	}
	_, err := s.runner.Run(context.Background(), s.job(s.employee))
	s.Require().NoError(err)

	first, err := s.reports.ListByEmployee(context.Background(), s.company, s.employee, s.period.Key)
	s.Require().NoError(err)

	rerun := s.job(s.employee)
	_, err = s.runner.Run(context.Background(), rerun)
	s.Require().NoError(err)

	second, err := s.reports.ListByEmployee(context.Background(), s.company, s.employee, s.period.Key)
	s.Require().NoError(err)
	s.Equal(len(first), len(second), "a rerun replaces rows, never accumulates them")
	for _, r := range second {
		s.Equal(rerun.RunID, r.RunID)
	}
}

func (s *RunnerSuite) TestParallelEmployees() {
	employees := make([]id.EmployeeID, 10)
	for i := range employees {
		employees[i] = id.NewEmployeeID()
		s.roster.Set(s.company, batch.Employee{ID: employees[i]})
		s.schedules.SetDefault(s.company, employees[i], models.WorkSchedule{ScheduledMinutes: 480})
		for n := 1; n <= 5; n++ {
			s.stampDay(employees[i], s.workday(n), 480)
		}
	}

	result, err := s.runner.Run(context.Background(), s.job(employees...))
	s.Require().NoError(err)
	s.Equal(10, result.Employees)
	s.Empty(result.Failed)

	for _, e := range employees {
		summary, err := s.summaries.Get(context.Background(), s.company, e, s.period.Key)
		s.Require().NoError(err)
		s.Require().NotNil(summary)
		s.Equal(5, summary.WorkDays)
	}
}
