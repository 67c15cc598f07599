// Package normalizer turns raw stamping input into canonical daily labor
// records. It is a pure categorization step: same input, same record.
package normalizer

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"kintai/internal/attendance/models"
	dErrors "kintai/pkg/domain-errors"
)

// Service normalizes one raw day at a time. It holds no per-day state, so a
// single instance is safe for concurrent use across employees.
type Service struct {
	logger *slog.Logger
	grace  time.Duration
	clock  func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a logger for normalization diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithGrace tolerates a missing end stamp for the given duration past the
// scheduled end before the day counts as incomplete.
func WithGrace(grace time.Duration) Option {
	return func(s *Service) {
		if grace > 0 {
			s.grace = grace
		}
	}
}

// WithClock sets the clock the grace window is measured against (testing).
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New creates a normalizer service.
func New(opts ...Option) *Service {
	svc := &Service{clock: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Normalize categorizes one raw day under the given schedule.
//
// When the end stamp is missing past the grace window, it returns a
// provisional record together with a CodeIncompleteStamp error: the record
// must still be persisted (never silently dropped) and is replaced wholesale
// once a complete day arrives. Inside the grace window the record is
// provisional without an error. Re-running with unchanged input yields an
// identical record.
func (s *Service) Normalize(raw models.RawTimeRecord, schedule models.WorkSchedule) (*models.DailyLaborRecord, error) {
	if raw.EmployeeID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "employee_id is required")
	}
	if raw.Date.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "date is required")
	}

	record := &models.DailyLaborRecord{
		CompanyID:  raw.CompanyID,
		EmployeeID: raw.EmployeeID,
		Date:       raw.Date,
		State:      models.RecordConfirmed,
		Telework:   raw.Telework,
		GroundCode: raw.GroundCode,
	}

	// No stamps at all: an absence day. Leave consumption arrives through
	// the ground code on the raw feed; minutes stay zero.
	if raw.ClockIn == nil && raw.ClockOut == nil {
		return record, nil
	}

	if raw.ClockIn == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "clock-out without clock-in")
	}

	clockIn := schedule.Rounding.Apply(*raw.ClockIn, true)
	record.ClockIn = &clockIn

	if raw.ClockOut == nil {
		record.State = models.RecordProvisional
		if s.clock().Before(s.graceDeadline(raw.Date, schedule)) {
			// Inside the grace window the stamp may simply not have
			// arrived yet; the day stays provisional without being an
			// input defect.
			return record, nil
		}
		if s.logger != nil {
			s.logger.Warn("end stamp missing past grace window, persisting provisional record",
				"employee_id", raw.EmployeeID,
				"date", raw.Date.Format("2006-01-02"),
			)
		}
		return record, dErrors.New(dErrors.CodeIncompleteStamp,
			fmt.Sprintf("no end stamp for %s on %s", raw.EmployeeID, raw.Date.Format("2006-01-02")))
	}

	clockOut := schedule.Rounding.Apply(*raw.ClockOut, false)
	if !clockOut.After(clockIn) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "clock-out not after clock-in")
	}
	record.ClockOut = &clockOut

	workSpan := models.Span{Start: clockIn, End: clockOut}
	breaks := clipBreaks(raw.Breaks, workSpan)
	for _, b := range breaks {
		record.BreakMinutes += b.Minutes()
	}

	worked := workSpan.Minutes() - record.BreakMinutes
	record.RealTotalMinutes = worked

	s.categorize(record, schedule, worked)
	record.LateNightMinutes = lateNightMinutes(workSpan, breaks, schedule, raw.Date)

	if !schedule.ScheduledStart.IsZero() && clockIn.After(schedule.ScheduledStart) {
		record.LatenessMinutes = models.Span{Start: schedule.ScheduledStart, End: clockIn}.Minutes()
	}
	if !schedule.ScheduledEnd.IsZero() && clockOut.Before(schedule.ScheduledEnd) {
		record.EarlyLeaveMinutes = models.Span{Start: clockOut, End: schedule.ScheduledEnd}.Minutes()
	}

	return record, nil
}

// graceDeadline is the instant a missing end stamp stops being tolerable:
// scheduled end plus the grace window, or end of day when the schedule has no
// scheduled end.
func (s *Service) graceDeadline(date time.Time, schedule models.WorkSchedule) time.Time {
	base := schedule.ScheduledEnd
	if base.IsZero() {
		base = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location()).Add(24 * time.Hour)
	}
	return base.Add(s.grace)
}

// categorize splits worked minutes into the exclusive partition. On a legal
// holiday everything is holiday work; otherwise minutes fill scheduled, then
// the statutory band up to the daily limit, then statutory overtime.
func (s *Service) categorize(record *models.DailyLaborRecord, schedule models.WorkSchedule, worked int) {
	if worked <= 0 {
		return
	}
	if schedule.LegalHoliday {
		record.HolidayWorkMinutes = worked
		return
	}

	dailyLimit := schedule.DailyLimit()
	scheduledCap := schedule.ScheduledMinutes
	if scheduledCap > dailyLimit {
		scheduledCap = dailyLimit
	}

	record.ScheduledMinutes = min(worked, scheduledCap)
	record.StatutoryWithinMinutes = min(worked, dailyLimit) - record.ScheduledMinutes
	record.StatutoryOvertimeMinutes = worked - min(worked, dailyLimit)
}

// lateNightMinutes measures the overlay of actual worked time with the
// late-night window. Breaks inside the window do not count.
func lateNightMinutes(work models.Span, breaks []models.Span, schedule models.WorkSchedule, date time.Time) int {
	total := 0
	for _, window := range schedule.LateNightWindow(date) {
		total += work.Overlap(window)
		for _, b := range breaks {
			total -= b.Overlap(window)
		}
	}
	if total < 0 {
		total = 0
	}
	return total
}

// clipBreaks intersects the declared breaks with the worked span and merges
// overlaps so double-declared breaks are not deducted twice.
func clipBreaks(breaks []models.Span, work models.Span) []models.Span {
	var clipped []models.Span
	for _, b := range breaks {
		start := b.Start
		if start.Before(work.Start) {
			start = work.Start
		}
		end := b.End
		if end.After(work.End) {
			end = work.End
		}
		if end.After(start) {
			clipped = append(clipped, models.Span{Start: start, End: end})
		}
	}
	if len(clipped) <= 1 {
		return clipped
	}

	sort.Slice(clipped, func(i, j int) bool { return clipped[i].Start.Before(clipped[j].Start) })
	merged := clipped[:1]
	for _, b := range clipped[1:] {
		last := &merged[len(merged)-1]
		if !b.Start.After(last.End) {
			if b.End.After(last.End) {
				last.End = b.End
			}
			continue
		}
		merged = append(merged, b)
	}
	return merged
}
