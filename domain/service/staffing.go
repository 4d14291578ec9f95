package service

import (
	"math"
	"time"

	"github.com/isectech/ops-simulator/config"
	"github.com/isectech/ops-simulator/domain/entity"
)

// BuildStaffing constructs the shift-grain staffing schedule: planned agents
// per weekday split across shifts by the day-shift ratio, reduced by shrinkage,
// and degraded by a linear coverage ramp over the final deterioration window.
func BuildStaffing(cfg config.StaffingConfig, tz string, start time.Time, days int) []entity.StaffingShiftRecord {
	rows := make([]entity.StaffingShiftRecord, 0, days*len(cfg.Shifts))

	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		plannedTotal := cfg.PlannedAgents(d.Weekday())
		det := deteriorationMultiplier(i, days, cfg.DeteriorationDays, cfg.DeteriorationFloor)

		for _, shift := range cfg.Shifts {
			ratio := 1.0 - cfg.DayShiftRatio
			if shift.Name == "DAY" {
				ratio = cfg.DayShiftRatio
			}
			plannedShift := int(math.Round(float64(plannedTotal) * ratio))
			effective := int(math.Round(float64(plannedShift) * (1.0 - cfg.ShrinkageRate) * det))

			rows = append(rows, entity.StaffingShiftRecord{
				ShiftDate:           d,
				TeamTZ:              tz,
				ShiftName:           shift.Name,
				ShiftStartHour:      shift.StartHour,
				ShiftEndHour:        shift.EndHour,
				PlannedAgents:       plannedShift,
				ShrinkageRate:       cfg.ShrinkageRate,
				DeteriorationFactor: det,
				EffectiveAgents:     effective,
			})
		}
	}
	return rows
}

// deteriorationMultiplier ramps coverage linearly from 1.0 down to the floor
// over the final detDays days of the window.
func deteriorationMultiplier(dayIndex, days, detDays int, floor float64) float64 {
	daysLeft := (days - 1) - dayIndex
	if detDays <= 0 || daysLeft >= detDays {
		return 1.0
	}
	frac := 1.0 - float64(daysLeft)/float64(detDays)
	return 1.0 - frac*(1.0-floor)
}
