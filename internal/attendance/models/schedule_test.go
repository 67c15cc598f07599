package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundingRuleApply(t *testing.T) {
	at := func(h, m, sec int) time.Time {
		return time.Date(2026, 4, 1, h, m, sec, 0, time.UTC)
	}

	tests := []struct {
		name    string
		rule    RoundingRule
		in      time.Time
		inbound bool
		want    time.Time
	}{
		{"seconds always truncate", RoundingRule{}, at(9, 0, 59), true, at(9, 0, 0)},
		{"unit 1 leaves minutes", RoundingRule{UnitMinutes: 1, Mode: RoundUp}, at(9, 7, 0), true, at(9, 7, 0)},
		{"directional in rounds up", RoundingRule{UnitMinutes: 15}, at(9, 7, 0), true, at(9, 15, 0)},
		{"directional out rounds down", RoundingRule{UnitMinutes: 15}, at(18, 7, 0), false, at(18, 0, 0)},
		{"boundary stays put", RoundingRule{UnitMinutes: 15}, at(9, 15, 0), true, at(9, 15, 0)},
		{"explicit down", RoundingRule{UnitMinutes: 10, Mode: RoundDown}, at(9, 9, 0), true, at(9, 0, 0)},
		{"explicit up", RoundingRule{UnitMinutes: 10, Mode: RoundUp}, at(18, 1, 0), false, at(18, 10, 0)},
		{"nearest", RoundingRule{UnitMinutes: 10, Mode: RoundNearest}, at(9, 6, 0), true, at(9, 10, 0)},
		{"none ignores unit", RoundingRule{UnitMinutes: 30, Mode: RoundNone}, at(9, 17, 0), true, at(9, 17, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Apply(tt.in, tt.inbound))
		})
	}
}

func TestWorkScheduleDailyLimit(t *testing.T) {
	assert.Equal(t, StatutoryDailyMinutes, WorkSchedule{}.DailyLimit())
	assert.Equal(t, 420, WorkSchedule{StatutoryDailyLimit: 420}.DailyLimit())
}

func TestLateNightWindowDefault(t *testing.T) {
	date := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	spans := WorkSchedule{}.LateNightWindow(date)
	require.Len(t, spans, 2)

	// Early morning of the date itself, then the evening wrapping into the
	// next day.
	assert.Equal(t, date, spans[0].Start)
	assert.Equal(t, date.Add(5*time.Hour), spans[0].End)
	assert.Equal(t, date.Add(22*time.Hour), spans[1].Start)
	assert.Equal(t, date.Add(29*time.Hour), spans[1].End)
}

func TestLateNightWindowOverride(t *testing.T) {
	date := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	w := WorkSchedule{LateNightFromMinute: 23 * 60, LateNightUntilMinute: 6 * 60}
	spans := w.LateNightWindow(date)
	require.Len(t, spans, 2)
	assert.Equal(t, date.Add(6*time.Hour), spans[0].End)
	assert.Equal(t, date.Add(23*time.Hour), spans[1].Start)
}
