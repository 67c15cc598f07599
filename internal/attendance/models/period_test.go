package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "kintai/pkg/domain"
	"kintai/pkg/platform/sentinel"
)

func TestPeriodStateTransitions(t *testing.T) {
	tests := []struct {
		from, to PeriodState
		ok       bool
	}{
		{PeriodOpen, PeriodAggregated, true},
		{PeriodAggregated, PeriodDetected, true},
		{PeriodAggregated, PeriodAggregated, true}, // recompute of an open period
		{PeriodDetected, PeriodClosed, true},
		{PeriodDetected, PeriodAggregated, true}, // corrections invalidate detection
		{PeriodClosed, PeriodOpen, true},         // operator reopen

		{PeriodOpen, PeriodDetected, false},
		{PeriodOpen, PeriodClosed, false},
		{PeriodAggregated, PeriodOpen, false},
		{PeriodClosed, PeriodAggregated, false},
		{PeriodClosed, PeriodClosed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))
		})
	}
}

func TestPeriodTransitionRejectsIllegalStep(t *testing.T) {
	p := ClosingPeriod{CompanyID: id.NewCompanyID(), Key: "2026-04", State: PeriodOpen}

	err := p.Transition(PeriodClosed)
	require.ErrorIs(t, err, sentinel.ErrInvalidState)
	assert.Equal(t, PeriodOpen, p.State, "a rejected transition leaves state untouched")

	require.NoError(t, p.Transition(PeriodAggregated))
	assert.Equal(t, PeriodAggregated, p.State)
}

func TestPeriodAcceptsWrites(t *testing.T) {
	assert.True(t, PeriodOpen.AcceptsWrites())
	assert.True(t, PeriodAggregated.AcceptsWrites())
	assert.True(t, PeriodDetected.AcceptsWrites())
	assert.False(t, PeriodClosed.AcceptsWrites())
}

func TestPeriodStateIsValid(t *testing.T) {
	assert.True(t, PeriodDetected.IsValid())
	assert.False(t, PeriodState("archived").IsValid())
	assert.False(t, PeriodState("").IsValid())
}

func TestPeriodContains(t *testing.T) {
	p := ClosingPeriod{
		Key:  "2026-04",
		From: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, p.Contains(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, p.Contains(time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)), "To is inclusive")
	assert.False(t, p.Contains(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)))
}
