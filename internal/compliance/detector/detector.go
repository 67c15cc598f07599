// Package detector compares aggregated labor totals against resolved legal
// limits and emits typed findings with statutory citations.
//
// Detection is fully re-derivable: it reads only its inputs, keeps no
// counters across runs, and orders its output deterministically. Running it
// twice on identical inputs yields an identical finding set.
package detector

import (
	"log/slog"
	"sort"
	"time"

	attendance "kintai/internal/attendance/models"
	"kintai/internal/compliance/models"
	legal "kintai/internal/legal/models"
	id "kintai/pkg/domain"
)

// Input is everything one monthly detection pass reads. Daily records feed
// the daily-granularity quantities (consecutive workdays, rest intervals);
// Yearly is optional and enables yearly-limit checks.
type Input struct {
	Summary *attendance.MonthlyLaborSummary
	Daily   []*attendance.DailyLaborRecord
	Yearly  *attendance.YearlyLaborSummary
	Rule    *legal.LegalRule

	RunID      id.RunID
	DetectedAt time.Time
}

// Service evaluates limits. Stateless and safe for concurrent use.
type Service struct {
	logger *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a logger for detection diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a detector service.
func New(opts ...Option) *Service {
	svc := &Service{}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Detect runs every limit on the rule against the input and returns findings
// sorted by severity (errors first), then citation, then kind.
func (s *Service) Detect(in Input) []models.Violation {
	summary := in.Summary
	rule := in.Rule

	var findings []models.Violation
	emit := func(v *models.Violation) {
		if v != nil {
			findings = append(findings, *v)
		}
	}

	for _, limit := range rule.Limits {
		switch limit.Kind {
		case legal.LimitMonthlyOvertime:
			emit(s.check(in, limit, models.GranularityMonthly, nil, summary.StatutoryOvertimeMinutes))
		case legal.LimitMonthlyOvertimeAll:
			emit(s.check(in, limit, models.GranularityMonthly, nil, summary.OvertimeMinutesAll))
		case legal.LimitHolidayWorkDays:
			emit(s.check(in, limit, models.GranularityMonthly, nil, summary.HolidayWorkDays))
		case legal.LimitConsecutiveWorkdays:
			emit(s.check(in, limit, models.GranularityMonthly, nil, longestWorkStreak(in.Daily)))
		case legal.LimitRestInterval:
			for _, gap := range restGaps(in.Daily) {
				date := gap.date
				emit(s.check(in, limit, models.GranularityDaily, &date, gap.minutes))
			}
		case legal.LimitYearlyOvertime:
			if in.Yearly != nil {
				emit(s.checkYearly(in, limit, in.Yearly.StatutoryOvertimeMinutes))
			}
		case legal.LimitSpecialProvisionCount:
			if in.Yearly != nil {
				emit(s.checkYearly(in, limit, in.Yearly.MonthsOverOrdinaryLimit))
			}
		}
	}

	// The special provision carries its own ceilings beyond the listed
	// limits; a negotiated rule without it falls back to the statutory
	// special caps implicitly through configuration, never here.
	if sp := rule.SpecialProvision; sp != nil {
		if sp.MonthlyOvertimeAllMinutes > 0 {
			limit := legal.Limit{Kind: legal.LimitMonthlyOvertimeAll, Value: sp.MonthlyOvertimeAllMinutes, Citation: sp.Citation}
			emit(s.check(in, limit, models.GranularityMonthly, nil, summary.OvertimeMinutesAll))
		}
		if sp.YearlyOvertimeMinutes > 0 && in.Yearly != nil {
			limit := legal.Limit{Kind: legal.LimitYearlyOvertime, Value: sp.YearlyOvertimeMinutes, Citation: sp.Citation}
			emit(s.checkYearly(in, limit, in.Yearly.StatutoryOvertimeMinutes))
		}
		if sp.MaxInvocations > 0 && in.Yearly != nil {
			limit := legal.Limit{Kind: legal.LimitSpecialProvisionCount, Value: sp.MaxInvocations, Citation: sp.Citation}
			emit(s.checkYearly(in, limit, in.Yearly.MonthsOverOrdinaryLimit))
		}
	}

	sortFindings(findings)
	return findings
}

// check evaluates one quantity against a limit.
//
//	actual > limit                     -> error
//	limit*ratio <= actual <= limit     -> warning
//	actual < limit*ratio               -> nothing
//
// Minimum-type limits invert: actual below the floor is an error; a gap
// inside the band just above the floor warns.
func (s *Service) check(in Input, limit legal.Limit, gran models.Granularity, date *time.Time, actual int) *models.Violation {
	ratio := in.Rule.WarningRatio(limit)

	var severity models.Severity
	var threshold int
	if limit.Kind.IsMinimum() {
		threshold = int(float64(limit.Value) * (2 - ratio))
		switch {
		case actual < limit.Value:
			severity = models.SeverityError
		case actual <= threshold:
			severity = models.SeverityWarning
		default:
			return nil
		}
	} else {
		threshold = int(float64(limit.Value) * ratio)
		switch {
		case actual > limit.Value:
			severity = models.SeverityError
		case actual >= threshold:
			severity = models.SeverityWarning
		default:
			return nil
		}
	}

	summary := in.Summary
	v := &models.Violation{
		ID:               models.NewViolationID(in.RunID, summary.EmployeeID, summary.PeriodKey, limit.Kind, gran, limit.Value, date),
		RunID:            in.RunID,
		CompanyID:        summary.CompanyID,
		EmployeeID:       summary.EmployeeID,
		PeriodKey:        summary.PeriodKey,
		Granularity:      gran,
		Date:             date,
		Kind:             limit.Kind,
		Severity:         severity,
		RuleID:           in.Rule.ID,
		LimitValue:       limit.Value,
		ActualValue:      actual,
		WarningThreshold: threshold,
		Citation:         limit.Citation,
		DetectedAt:       in.DetectedAt,
	}

	if s.logger != nil {
		s.logger.Info("finding detected",
			"employee_id", summary.EmployeeID,
			"period", summary.PeriodKey,
			"kind", limit.Kind,
			"severity", severity,
			"actual", actual,
			"limit", limit.Value,
		)
	}
	return v
}

func (s *Service) checkYearly(in Input, limit legal.Limit, actual int) *models.Violation {
	v := s.check(in, limit, models.GranularityYearly, nil, actual)
	if v != nil {
		v.PeriodKey = in.Yearly.Year
	}
	return v
}

// longestWorkStreak finds the maximum run of consecutive worked calendar days.
func longestWorkStreak(records []*attendance.DailyLaborRecord) int {
	sorted := workDaysSorted(records)
	longest, current := 0, 0
	var prev time.Time
	for _, rec := range sorted {
		if !prev.IsZero() && rec.Date.Sub(prev) == 24*time.Hour {
			current++
		} else {
			current = 1
		}
		if current > longest {
			longest = current
		}
		prev = rec.Date
	}
	return longest
}

type restGap struct {
	date    time.Time
	minutes int
}

// restGaps measures clock-out to next clock-in intervals between consecutive
// worked days. Days without both stamps contribute no gap.
func restGaps(records []*attendance.DailyLaborRecord) []restGap {
	sorted := workDaysSorted(records)
	var gaps []restGap
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.ClockOut == nil || cur.ClockIn == nil {
			continue
		}
		minutes := int(cur.ClockIn.Sub(*prev.ClockOut) / time.Minute)
		if minutes < 0 {
			minutes = 0
		}
		gaps = append(gaps, restGap{date: cur.Date, minutes: minutes})
	}
	return gaps
}

func workDaysSorted(records []*attendance.DailyLaborRecord) []*attendance.DailyLaborRecord {
	var work []*attendance.DailyLaborRecord
	for _, rec := range records {
		if rec.IsWorkDay() {
			work = append(work, rec)
		}
	}
	sort.Slice(work, func(i, j int) bool { return work[i].Date.Before(work[j].Date) })
	return work
}

func sortFindings(findings []models.Violation) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Severity != b.Severity {
			return a.Severity == models.SeverityError
		}
		if a.Citation != b.Citation {
			return a.Citation.Less(b.Citation)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Date != nil && b.Date != nil {
			return a.Date.Before(*b.Date)
		}
		return a.Date == nil && b.Date != nil
	})
}
