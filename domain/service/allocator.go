package service

import (
	"fmt"
	"time"

	"github.com/isectech/ops-simulator/config"
)

// AllocateVolume distributes the target case count across the simulation days.
// Each day's weight is its weekday intensity, multiplied over the final ramp
// window by a factor rising linearly from 1.0 to the configured peak; the
// weight vector is renormalized and the counts come from a single multinomial
// draw, so they are non-negative integers summing exactly to the target.
func AllocateVolume(rng *Stream, cfg config.IntakeConfig, start time.Time, days, target int) ([]int, error) {
	if target <= 0 {
		return nil, fmt.Errorf("target case volume must be positive, got %d", target)
	}
	if days <= 0 {
		return nil, fmt.Errorf("simulation window must cover at least one day, got %d", days)
	}

	weights := make([]float64, days)
	total := 0.0
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		weights[i] = cfg.WeekdayWeight(d.Weekday()) * rampMultiplier(i, days, cfg.RampDays, cfg.RampMultiplierMax)
		total += weights[i]
	}
	if total <= 0 {
		return nil, fmt.Errorf("intake weights sum to zero across the window")
	}

	return rng.Multinomial(target, weights), nil
}

// rampMultiplier returns the end-of-window intensity factor for one day. The
// final rampDays days ramp linearly from 1.0 up to maxMult; rampDays == 0
// disables the ramp.
func rampMultiplier(dayIndex, days, rampDays int, maxMult float64) float64 {
	if rampDays <= 0 || dayIndex < days-rampDays {
		return 1.0
	}
	denom := rampDays - 1
	if denom < 1 {
		denom = 1
	}
	frac := float64(dayIndex-(days-rampDays)) / float64(denom)
	return 1.0 + frac*(maxMult-1.0)
}
