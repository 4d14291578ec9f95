package entity

import "time"

// CalendarDay represents one day-grain row of the simulation calendar.
// Rows are immutable once built.
type CalendarDay struct {
	Date        time.Time `db:"cal_date" json:"cal_date"`
	DayOfWeek   int       `db:"dow" json:"dow"`
	IsWeekend   bool      `db:"is_weekend" json:"is_weekend"`
	IsHoliday   bool      `db:"is_holiday" json:"is_holiday"`
	HolidayName string    `db:"holiday_name" json:"holiday_name,omitempty"`
}

// StaffingShiftRecord represents planned and effective coverage for one
// (date, shift) pair, after shrinkage and the late-window deterioration ramp.
type StaffingShiftRecord struct {
	ShiftDate           time.Time `db:"shift_date" json:"shift_date"`
	TeamTZ              string    `db:"team_tz" json:"team_tz"`
	ShiftName           string    `db:"shift_name" json:"shift_name"`
	ShiftStartHour      int       `db:"shift_start_hour" json:"shift_start_hour"`
	ShiftEndHour        int       `db:"shift_end_hour" json:"shift_end_hour"`
	PlannedAgents       int       `db:"planned_agents" json:"planned_agents"`
	ShrinkageRate       float64   `db:"shrinkage_rate" json:"shrinkage_rate"`
	DeteriorationFactor float64   `db:"deterioration_multiplier" json:"deterioration_multiplier"`
	EffectiveAgents     int       `db:"effective_agents" json:"effective_agents"`
}
