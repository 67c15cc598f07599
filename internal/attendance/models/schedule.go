package models

import "time"

// RoundingMode selects how stamp times snap to the rounding unit.
type RoundingMode string

const (
	RoundNone    RoundingMode = "none"
	RoundDown    RoundingMode = "down"
	RoundUp      RoundingMode = "up"
	RoundNearest RoundingMode = "nearest"
)

// RoundingRule is the per-schedule stamp rounding configuration. Seconds are
// always truncated first; the minute component then snaps to UnitMinutes
// according to Mode.
type RoundingRule struct {
	UnitMinutes int
	Mode        RoundingMode
}

// Apply rounds t per the rule. Clock-in uses inbound=true (round against the
// employee, toward later), clock-out inbound=false (toward earlier), so
// rounding never manufactures work time.
func (r RoundingRule) Apply(t time.Time, inbound bool) time.Time {
	t = t.Truncate(time.Minute)
	if r.UnitMinutes <= 1 || r.Mode == RoundNone {
		return t
	}
	unit := time.Duration(r.UnitMinutes) * time.Minute
	switch r.Mode {
	case RoundDown:
		return t.Truncate(unit)
	case RoundUp:
		if rounded := t.Truncate(unit); rounded.Equal(t) {
			return t
		}
		return t.Truncate(unit).Add(unit)
	case RoundNearest:
		return t.Round(unit)
	default:
		// Directional default: in up, out down.
		if inbound {
			if rounded := t.Truncate(unit); rounded.Equal(t) {
				return t
			}
			return t.Truncate(unit).Add(unit)
		}
		return t.Truncate(unit)
	}
}

// Statutory defaults from the Labor Standards Act.
const (
	StatutoryDailyMinutes  = 8 * 60
	StatutoryWeeklyMinutes = 40 * 60

	DefaultLateNightFromMinute  = 22 * 60 // 22:00
	DefaultLateNightUntilMinute = 5 * 60  // 05:00 next day
)

// WorkSchedule is the employee's active schedule definition for one date,
// provided by work-schedule assignment (external). The normalizer reads it for
// scheduled hours, rounding and the late-night window.
type WorkSchedule struct {
	ScheduledStart time.Time
	ScheduledEnd   time.Time

	// ScheduledMinutes is the contracted working time for the day net of
	// scheduled breaks. Zero means a non-working day under the schedule.
	ScheduledMinutes int

	// StatutoryDailyLimit overrides the 8h/day statutory threshold when a
	// variable-hours arrangement applies. Zero means the statutory default.
	StatutoryDailyLimit int

	// LegalHoliday marks the date as a designated statutory holiday; all
	// work on it categorizes as holiday work.
	LegalHoliday bool

	// Late-night window as minutes of day; zero values mean the statutory
	// 22:00–05:00 window.
	LateNightFromMinute  int
	LateNightUntilMinute int

	Rounding RoundingRule
}

// DailyLimit returns the effective statutory daily threshold in minutes.
func (w WorkSchedule) DailyLimit() int {
	if w.StatutoryDailyLimit > 0 {
		return w.StatutoryDailyLimit
	}
	return StatutoryDailyMinutes
}

// LateNightWindow returns the late-night window for the record's date as
// concrete spans. The window wraps midnight, so a day touches it twice: the
// early morning of the date itself and the evening running into the next day.
func (w WorkSchedule) LateNightWindow(date time.Time) []Span {
	from := w.LateNightFromMinute
	until := w.LateNightUntilMinute
	if from == 0 && until == 0 {
		from = DefaultLateNightFromMinute
		until = DefaultLateNightUntilMinute
	}
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return []Span{
		{Start: midnight, End: midnight.Add(time.Duration(until) * time.Minute)},
		{Start: midnight.Add(time.Duration(from) * time.Minute), End: midnight.Add(24*time.Hour + time.Duration(until)*time.Minute)},
	}
}
