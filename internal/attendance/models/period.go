package models

import (
	"time"

	id "kintai/pkg/domain"
	"kintai/pkg/platform/sentinel"
)

// PeriodState is the closing-period lifecycle. Only Open periods accept new
// daily records; Detected results are invalidated by a reopen.
type PeriodState string

const (
	PeriodOpen       PeriodState = "open"
	PeriodAggregated PeriodState = "aggregated"
	PeriodDetected   PeriodState = "detected"
	PeriodClosed     PeriodState = "closed"
)

// IsValid reports whether the state is a known variant.
func (s PeriodState) IsValid() bool {
	switch s {
	case PeriodOpen, PeriodAggregated, PeriodDetected, PeriodClosed:
		return true
	}
	return false
}

// CanTransition reports whether moving to next is a legal lifecycle step.
// Reopen (Closed -> Open) is operator-gated but legal at this level; callers
// gate it behind explicit operator action.
func (s PeriodState) CanTransition(next PeriodState) bool {
	switch s {
	case PeriodOpen:
		return next == PeriodAggregated
	case PeriodAggregated:
		// Re-aggregation of an open period lands back here; detection
		// advances it.
		return next == PeriodDetected || next == PeriodAggregated
	case PeriodDetected:
		return next == PeriodClosed || next == PeriodAggregated
	case PeriodClosed:
		return next == PeriodOpen
	}
	return false
}

// AcceptsWrites reports whether daily records and summaries may still change.
// Aggregated and Detected periods accept corrections: the correction path in
// CanTransition (Detected -> Aggregated) exists exactly for that, and the next
// recompute re-enters Aggregated before detection runs again. Only Closed
// refuses writes; new records for a closed month require an operator reopen.
func (s PeriodState) AcceptsWrites() bool {
	return s != PeriodClosed
}

// ClosingPeriod is one company-defined accounting month. Boundary
// configuration is owned by company settings; the core reads it fresh per run
// and never writes From/To.
type ClosingPeriod struct {
	CompanyID id.CompanyID
	// Key names the period, e.g. "2026-04". It stays stable across closing
	// date changes so summaries and violations join on it.
	Key   string
	From  time.Time
	To    time.Time // inclusive last day
	State PeriodState
}

// Contains reports whether a date falls inside the period.
func (p ClosingPeriod) Contains(date time.Time) bool {
	return !date.Before(p.From) && !date.After(p.To)
}

// Transition validates and applies a state change.
func (p *ClosingPeriod) Transition(next PeriodState) error {
	if !p.State.CanTransition(next) {
		return sentinel.ErrInvalidState
	}
	p.State = next
	return nil
}
