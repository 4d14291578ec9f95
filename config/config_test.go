package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isectech/ops-simulator/config"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 180, cfg.Simulation.Window.Days)
	assert.Equal(t, 300000, cfg.Simulation.Scale.CasesTarget)
	assert.Equal(t, "America/Los_Angeles", cfg.Simulation.Teams.PrimaryTZ)
	assert.Equal(t, uint64(42), cfg.Simulation.Seed)
	assert.Equal(t, "sqlite3", cfg.Warehouse.Driver)

	start, err := cfg.Simulation.StartDate()
	require.NoError(t, err)
	assert.Equal(t, "2025-07-01", start.Format("2006-01-02"))
	assert.Equal(t, "America/Los_Angeles", start.Location().String())
}

func TestWeekdayLookups(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, 1.25, cfg.Simulation.Intake.WeekdayWeight(time.Monday))
	assert.Equal(t, 0.10, cfg.Simulation.Intake.WeekdayWeight(time.Sunday))
	assert.Equal(t, 38, cfg.Simulation.Staffing.PlannedAgents(time.Monday))
	assert.Equal(t, 4, cfg.Simulation.Staffing.PlannedAgents(time.Sunday))
}

func TestCasesTargetByMode(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, 300000, cfg.Simulation.CasesTarget("full"))
	assert.Equal(t, 50000, cfg.Simulation.CasesTarget("dev"))
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := map[string]func(*config.Config){
		"zero_window":         func(c *config.Config) { c.Simulation.Window.Days = 0 },
		"negative_target":     func(c *config.Config) { c.Simulation.Scale.CasesTarget = -5 },
		"zero_dev_target":     func(c *config.Config) { c.Simulation.Scale.DevCasesTarget = 0 },
		"bad_timezone":        func(c *config.Config) { c.Simulation.Teams.PrimaryTZ = "Mars/Olympus" },
		"bad_start_date":      func(c *config.Config) { c.Simulation.Window.StartDate = "July 1st" },
		"inverted_hours":      func(c *config.Config) { c.Simulation.BusinessHours.StartHour = 18; c.Simulation.BusinessHours.EndHour = 8 },
		"empty_tier_weights":  func(c *config.Config) { c.Simulation.CaseMix.TierWeights = nil },
		"zero_sum_types":      func(c *config.Config) { c.Simulation.CaseMix.TypeWeights = map[string]float64{"X": 0} },
		"negative_weight":     func(c *config.Config) { c.Simulation.Intake.WeekdayWeights["mon"] = -1 },
		"no_shifts":           func(c *config.Config) { c.Simulation.Staffing.Shifts = nil },
		"bad_shift_ratio":     func(c *config.Config) { c.Simulation.Staffing.DayShiftRatio = 1.5 },
		"zero_triage_median":  func(c *config.Config) { c.Simulation.StageTimes.TriageMedianByTier["TIER_1"] = 0 },
		"zero_review_median":  func(c *config.Config) { c.Simulation.StageTimes.ReviewMedianMin = 0 },
		"bad_split_ratio":     func(c *config.Config) { c.Simulation.StageTimes.WaitSplitRatio = 1.0 },
		"inverted_reopen":     func(c *config.Config) { c.Simulation.StageTimes.ReopenDelayDaysMin = 9 },
		"rate_above_one":      func(c *config.Config) { c.Simulation.Defects.DuplicateRate = 1.5 },
		"negative_rate":       func(c *config.Config) { c.Simulation.Defects.MissingEventTSRate = -0.1 },
		"bad_reopen_rate":     func(c *config.Config) { c.Simulation.StageTimes.ReopenRateByTier["TIER_2"] = 2.0 },
		"unknown_driver":      func(c *config.Config) { c.Warehouse.Driver = "duckdb" },
		"negative_ramp":       func(c *config.Config) { c.Simulation.Intake.RampDays = -1 },
		"ramp_mult_below_one": func(c *config.Config) { c.Simulation.Intake.RampMultiplierMax = 0.5 },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, config.Default().Simulation, cfg.Simulation)
}
