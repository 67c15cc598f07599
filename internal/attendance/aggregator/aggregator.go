// Package aggregator rolls normalized daily records into monthly and yearly
// labor summaries, respecting each company's closing calendar.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"kintai/internal/attendance/models"
	id "kintai/pkg/domain"
	dErrors "kintai/pkg/domain-errors"
)

// DailyStore lists the latest revision of daily records per date.
type DailyStore interface {
	ListPeriod(ctx context.Context, company id.CompanyID, employee id.EmployeeID, from, to time.Time) ([]*models.DailyLaborRecord, error)
}

// SummaryStore persists monthly summaries. Put replaces the summary for its
// (company, employee, period) key atomically.
type SummaryStore interface {
	Put(ctx context.Context, summary *models.MonthlyLaborSummary) error
	Get(ctx context.Context, company id.CompanyID, employee id.EmployeeID, periodKey string) (*models.MonthlyLaborSummary, error)
	ListYear(ctx context.Context, company id.CompanyID, employee id.EmployeeID, year string) ([]*models.MonthlyLaborSummary, error)
}

// Service computes period rollups. Aggregation over a period is associative in
// its totals; the tiered overtime buckets depend on chronological accrual, so
// records are re-sorted by date before bucketing regardless of input order.
type Service struct {
	daily     DailyStore
	summaries SummaryStore
	logger    *slog.Logger
	clock     func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a logger for aggregation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock sets the clock stamped onto ComputedAt (testing).
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New creates an aggregator service.
func New(daily DailyStore, summaries SummaryStore, opts ...Option) (*Service, error) {
	if daily == nil {
		return nil, fmt.Errorf("daily store is required")
	}
	if summaries == nil {
		return nil, fmt.Errorf("summary store is required")
	}
	svc := &Service{daily: daily, summaries: summaries, clock: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Aggregate recomputes the monthly summary for one employee and period and
// persists it. A closed period is rejected with CodePeriodClosed and the
// stored summary is left untouched; reopening is an explicit operator action
// upstream.
func (s *Service) Aggregate(ctx context.Context, period models.ClosingPeriod, employee id.EmployeeID) (*models.MonthlyLaborSummary, error) {
	if !period.State.AcceptsWrites() {
		return nil, dErrors.New(dErrors.CodePeriodClosed,
			fmt.Sprintf("period %s is closed", period.Key))
	}

	records, err := s.daily.ListPeriod(ctx, period.CompanyID, employee, period.From, period.To)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list daily records")
	}

	summary := s.compute(period, employee, records)

	if err := s.summaries.Put(ctx, summary); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store monthly summary")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "aggregated period",
			"employee_id", employee,
			"period", period.Key,
			"overtime_minutes", summary.StatutoryOvertimeMinutes,
			"mismatch", summary.Mismatch,
		)
	}
	return summary, nil
}

// compute folds the records into a summary. Pure aside from the ComputedAt
// stamp.
//
// The 40h weekly statutory threshold is applied here rather than in the
// normalizer: a single day cannot know its week's running total. Within-limit
// minutes beyond the weekly threshold are promoted to statutory overtime, and
// the promoted minutes participate in tier accrual on the day they occur.
func (s *Service) compute(period models.ClosingPeriod, employee id.EmployeeID, records []*models.DailyLaborRecord) *models.MonthlyLaborSummary {
	// Tier bucketing depends on accrual order; never trust input order.
	sorted := make([]*models.DailyLaborRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	summary := &models.MonthlyLaborSummary{
		CompanyID:  period.CompanyID,
		EmployeeID: employee,
		PeriodKey:  period.Key,
		ComputedAt: s.clock(),
	}

	cumulative := 0
	var weekStart time.Time
	weekMinutes := 0
	for _, rec := range sorted {
		if rec.State == models.RecordProvisional {
			summary.ProvisionalDays++
			continue
		}

		summary.ScheduledMinutes += rec.ScheduledMinutes
		summary.StatutoryWithinMinutes += rec.StatutoryWithinMinutes
		summary.StatutoryOvertimeMinutes += rec.StatutoryOvertimeMinutes
		summary.HolidayWorkMinutes += rec.HolidayWorkMinutes
		summary.LateNightMinutes += rec.LateNightMinutes
		summary.BreakMinutes += rec.BreakMinutes
		summary.LatenessMinutes += rec.LatenessMinutes
		summary.EarlyLeaveMinutes += rec.EarlyLeaveMinutes
		summary.RealTotalMinutes += rec.RealTotalMinutes
		summary.PaidLeaveMinutes += rec.PaidLeaveMinutes
		summary.CompensatoryLeaveMinutes += rec.CompensatoryLeaveMinutes

		if rec.IsWorkDay() {
			summary.WorkDays++
		}
		if rec.HolidayWorkMinutes > 0 {
			summary.HolidayWorkDays++
		}
		if !rec.Balanced() {
			summary.Mismatch = true
		}

		// Weekly threshold. Holiday work has its own category and never
		// counts toward the weekly within-limit total.
		if ws := mondayOf(rec.Date); !ws.Equal(weekStart) {
			weekStart = ws
			weekMinutes = 0
		}
		within := rec.ScheduledMinutes + rec.StatutoryWithinMinutes
		weekMinutes += within
		promoted := 0
		if weekMinutes > models.StatutoryWeeklyMinutes {
			promoted = min(weekMinutes-models.StatutoryWeeklyMinutes, within)
			weekMinutes = models.StatutoryWeeklyMinutes
		}
		if promoted > 0 {
			fromWithin := min(promoted, rec.StatutoryWithinMinutes)
			summary.StatutoryWithinMinutes -= fromWithin
			summary.ScheduledMinutes -= promoted - fromWithin
			summary.StatutoryOvertimeMinutes += promoted
		}

		before := cumulative
		cumulative += rec.StatutoryOvertimeMinutes + promoted
		if before <= models.OvertimeTier45Minutes && cumulative > models.OvertimeTier45Minutes {
			date := rec.Date
			summary.Crossed45On = &date
		}
		if before <= models.OvertimeTier60Minutes && cumulative > models.OvertimeTier60Minutes {
			date := rec.Date
			summary.Crossed60On = &date
		}
	}

	summary.OvertimeWithin45Minutes = min(cumulative, models.OvertimeTier45Minutes)
	summary.Overtime45To60Minutes = clamp(cumulative-models.OvertimeTier45Minutes, 0, models.OvertimeTier60Minutes-models.OvertimeTier45Minutes)
	summary.OvertimeOver60Minutes = max(cumulative-models.OvertimeTier60Minutes, 0)
	summary.OvertimeMinutesAll = summary.StatutoryOvertimeMinutes + summary.HolidayWorkMinutes

	return summary
}

// AggregateYear folds the stored monthly summaries of one agreement year into
// a yearly summary. ordinaryMonthlyLimit is the resolved rule's ordinary
// monthly ceiling, used to count special-provision invocations.
func (s *Service) AggregateYear(ctx context.Context, company id.CompanyID, employee id.EmployeeID, year string, ordinaryMonthlyLimit int) (*models.YearlyLaborSummary, error) {
	months, err := s.summaries.ListYear(ctx, company, employee, year)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list monthly summaries")
	}

	sort.Slice(months, func(i, j int) bool { return months[i].PeriodKey < months[j].PeriodKey })

	yearly := &models.YearlyLaborSummary{
		CompanyID:  company,
		EmployeeID: employee,
		Year:       year,
		ComputedAt: s.clock(),
	}
	for _, m := range months {
		yearly.StatutoryOvertimeMinutes += m.StatutoryOvertimeMinutes
		yearly.OvertimeMinutesAll += m.OvertimeMinutesAll
		yearly.HolidayWorkDays += m.HolidayWorkDays
		yearly.Months = append(yearly.Months, m.PeriodKey)
		if ordinaryMonthlyLimit > 0 && m.StatutoryOvertimeMinutes > ordinaryMonthlyLimit {
			yearly.MonthsOverOrdinaryLimit++
		}
	}
	return yearly, nil
}

// mondayOf returns midnight of the Monday starting the date's week.
func mondayOf(d time.Time) time.Time {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
