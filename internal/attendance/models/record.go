// Package models holds the attendance data model: raw stamp input, work
// schedules, normalized daily labor records, period summaries and the closing
// period state machine.
package models

import (
	"time"

	id "kintai/pkg/domain"
)

// Span is a half-open clock interval [Start, End) within a day.
type Span struct {
	Start time.Time
	End   time.Time
}

// Minutes returns the span length in whole minutes, never negative.
func (s Span) Minutes() int {
	d := s.End.Sub(s.Start)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// Overlap returns the overlap of two spans in minutes.
func (s Span) Overlap(other Span) int {
	start := s.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := s.End
	if other.End.Before(end) {
		end = other.End
	}
	return Span{Start: start, End: end}.Minutes()
}

// RawTimeRecord is one day of raw stamping input for an employee, as delivered
// by the time-card feed. The normalizer owns turning this into a
// DailyLaborRecord; nothing downstream reads raw stamps.
type RawTimeRecord struct {
	CompanyID  id.CompanyID
	EmployeeID id.EmployeeID
	Date       time.Time // midnight, company-local
	ClockIn    *time.Time
	ClockOut   *time.Time
	Breaks     []Span
	Telework   bool
	GroundCode string
}

// RecordState tells whether a daily record is settled or awaiting correction.
type RecordState string

const (
	// RecordConfirmed is a fully categorized record.
	RecordConfirmed RecordState = "confirmed"
	// RecordProvisional is persisted when the end stamp is missing past the
	// grace window. It carries no categorized minutes and is replaced
	// wholesale once the stamp arrives or an operator corrects it.
	RecordProvisional RecordState = "provisional"
)

// IsValid reports whether the state is a known variant.
func (s RecordState) IsValid() bool {
	return s == RecordConfirmed || s == RecordProvisional
}

// DailyLaborRecord is the canonical per-day labor-time breakdown for one
// employee. Category minutes partition worked time:
//
//	ScheduledMinutes + StatutoryWithinMinutes + StatutoryOvertimeMinutes +
//	HolidayWorkMinutes == RealTotalMinutes
//
// LateNightMinutes is an additive overlay over the same worked time, not a
// partition member. Records are immutable once their period closes; a closed
// day is corrected by writing a superseding revision, never by mutation.
type DailyLaborRecord struct {
	CompanyID  id.CompanyID
	EmployeeID id.EmployeeID
	Date       time.Time
	Revision   int
	State      RecordState

	ClockIn  *time.Time
	ClockOut *time.Time

	ScheduledMinutes         int
	StatutoryWithinMinutes   int
	StatutoryOvertimeMinutes int
	HolidayWorkMinutes       int
	LateNightMinutes         int
	BreakMinutes             int
	LatenessMinutes          int
	EarlyLeaveMinutes        int
	RealTotalMinutes         int

	PaidLeaveMinutes         int
	CompensatoryLeaveMinutes int

	Telework   bool
	GroundCode string
}

// WorkedMinutes returns the categorized worked-time partition sum.
func (r *DailyLaborRecord) WorkedMinutes() int {
	return r.ScheduledMinutes + r.StatutoryWithinMinutes +
		r.StatutoryOvertimeMinutes + r.HolidayWorkMinutes
}

// Balanced reports whether the category partition matches the measured total.
// An unbalanced record signals a normalization defect upstream; aggregation
// flags it but still proceeds.
func (r *DailyLaborRecord) Balanced() bool {
	return r.WorkedMinutes() == r.RealTotalMinutes
}

// IsWorkDay reports whether the employee actually worked on this day.
func (r *DailyLaborRecord) IsWorkDay() bool {
	return r.State == RecordConfirmed && r.RealTotalMinutes > 0
}
