package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isectech/ops-simulator/config"
	"github.com/isectech/ops-simulator/domain/service"
)

func TestBuildCalendarWindow(t *testing.T) {
	loc := losAngeles(t)
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, loc)

	cal := service.BuildCalendar(start, 180)
	require.Len(t, cal, 180)

	byDate := map[string]int{}
	for i, d := range cal {
		byDate[d.Date.Format("2006-01-02")] = i
		assert.Equal(t, int(d.Date.Weekday()), d.DayOfWeek)
		wantWeekend := d.Date.Weekday() == time.Saturday || d.Date.Weekday() == time.Sunday
		assert.Equal(t, wantWeekend, d.IsWeekend)
	}

	holidays := map[string]string{
		"2025-07-04": "Independence Day",
		"2025-09-01": "Labor Day", // first Monday of September 2025
		"2025-11-27": "Thanksgiving",
		"2025-12-25": "Christmas Day",
	}
	for date, name := range holidays {
		idx, ok := byDate[date]
		require.True(t, ok, "window missing %s", date)
		assert.True(t, cal[idx].IsHoliday, "%s not flagged", date)
		assert.Equal(t, name, cal[idx].HolidayName)
	}

	// A plain workday is neither weekend nor holiday.
	idx := byDate["2025-07-02"]
	assert.False(t, cal[idx].IsWeekend)
	assert.False(t, cal[idx].IsHoliday)
	assert.Empty(t, cal[idx].HolidayName)
}

func TestBuildStaffingShiftsAndRamp(t *testing.T) {
	loc := losAngeles(t)
	cfg := config.Default().Simulation.Staffing
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, loc)
	days := 180

	staff := service.BuildStaffing(cfg, "America/Los_Angeles", start, days)
	require.Len(t, staff, days*len(cfg.Shifts))

	// Rows come in (date, shift) order; the first day is outside the
	// deterioration window.
	first := staff[0]
	assert.Equal(t, "DAY", first.ShiftName)
	assert.Equal(t, 8, first.ShiftStartHour)
	assert.Equal(t, 16, first.ShiftEndHour)
	assert.Equal(t, 1.0, first.DeteriorationFactor)

	// July 1 2025 is a Tuesday: 36 planned agents split 65/35.
	assert.Equal(t, 23, first.PlannedAgents)
	assert.Equal(t, 18, first.EffectiveAgents) // round(23 * 0.78)

	// The final day bottoms out at the deterioration floor.
	last := staff[len(staff)-1]
	assert.InDelta(t, cfg.DeteriorationFloor, last.DeteriorationFactor, 1e-9)

	// Deterioration never rises and never goes below the floor.
	prev := 1.0
	for i := 0; i < len(staff); i += len(cfg.Shifts) {
		det := staff[i].DeteriorationFactor
		assert.LessOrEqual(t, det, prev+1e-9)
		assert.GreaterOrEqual(t, det, cfg.DeteriorationFloor-1e-9)
		prev = det
	}
}
