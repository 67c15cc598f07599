package models

import (
	"time"

	id "kintai/pkg/domain"
)

// Overtime tier thresholds over cumulative monthly statutory overtime.
const (
	OvertimeTier45Minutes = 45 * 60
	OvertimeTier60Minutes = 60 * 60
)

// MonthlyLaborSummary is the per-employee rollup of one closing period.
// Recomputed whenever a daily record in an open period changes; frozen once
// the period closes.
type MonthlyLaborSummary struct {
	CompanyID  id.CompanyID
	EmployeeID id.EmployeeID
	PeriodKey  string

	WorkDays        int
	HolidayWorkDays int

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

	// Tiered overtime buckets, carved from the cumulative statutory
	// overtime sum in chronological accrual order.
	OvertimeWithin45Minutes int
	Overtime45To60Minutes   int
	OvertimeOver60Minutes   int

	// OvertimeMinutesAll includes holiday work, the basis for the special
	// provision's 100h monthly ceiling.
	OvertimeMinutesAll int

	// Crossed45On / Crossed60On record the day cumulative overtime first
	// exceeded each tier, when it did.
	Crossed45On *time.Time
	Crossed60On *time.Time

	// Mismatch marks that at least one daily record's category partition
	// did not balance against its measured total. The summary is still
	// produced; the flag signals an upstream normalization defect.
	Mismatch bool

	ProvisionalDays int

	ComputedAt time.Time
}

// YearlyLaborSummary accumulates the agreement year for yearly-limit and
// special-provision monitoring.
type YearlyLaborSummary struct {
	CompanyID  id.CompanyID
	EmployeeID id.EmployeeID
	// Year is the agreement year label, e.g. "2026".
	Year string

	StatutoryOvertimeMinutes int
	OvertimeMinutesAll       int
	HolidayWorkDays          int

	// MonthsOverOrdinaryLimit counts closing periods whose overtime
	// exceeded the ordinary 36-Agreement ceiling, i.e. special-provision
	// invocations.
	MonthsOverOrdinaryLimit int

	Months []string // period keys included, chronological

	ComputedAt time.Time
}
