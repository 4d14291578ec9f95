package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the ops case simulator.
type Config struct {
	// Service configuration
	Service ServiceConfig `mapstructure:"service"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`

	// Metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Simulation parameters (immutable for the whole run)
	Simulation SimulationConfig `mapstructure:"simulation"`

	// Output configuration
	Output OutputConfig `mapstructure:"output"`

	// Warehouse configuration
	Warehouse WarehouseConfig `mapstructure:"warehouse"`
}

// ServiceConfig contains general service configuration
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Namespace   string `mapstructure:"namespace"`
	PushGateway string `mapstructure:"push_gateway"`
	JobName     string `mapstructure:"job_name"`
}

// SimulationConfig contains every parameter of the synthetic data run. It is
// loaded once, validated, and never mutated afterwards; a re-run with the same
// configuration and seed reproduces the dataset byte for byte.
type SimulationConfig struct {
	Window        WindowConfig        `mapstructure:"window"`
	Scale         ScaleConfig         `mapstructure:"scale"`
	Teams         TeamsConfig         `mapstructure:"teams"`
	BusinessHours BusinessHoursConfig `mapstructure:"business_hours"`
	CaseMix       CaseMixConfig       `mapstructure:"case_mix"`
	Intake        IntakeConfig        `mapstructure:"intake"`
	Staffing      StaffingConfig      `mapstructure:"staffing"`
	Congestion    CongestionConfig    `mapstructure:"congestion"`
	StageTimes    StageTimesConfig    `mapstructure:"stage_times"`
	Defects       DefectsConfig       `mapstructure:"defects"`
	Seed          uint64              `mapstructure:"seed"`
}

// WindowConfig contains the simulation window
type WindowConfig struct {
	StartDate string `mapstructure:"start_date"`
	Days      int    `mapstructure:"days"`
}

// ScaleConfig contains volume targets
type ScaleConfig struct {
	CasesTarget      int     `mapstructure:"cases_target"`
	DevCasesTarget   int     `mapstructure:"dev_cases_target"`
	AvgEventsPerCase float64 `mapstructure:"avg_events_per_case"`
}

// TeamsConfig contains team timezone configuration
type TeamsConfig struct {
	PrimaryTZ    string   `mapstructure:"primary_tz"`
	SecondaryTZs []string `mapstructure:"secondary_tzs"`
}

// BusinessHoursConfig contains the local daily intake window
type BusinessHoursConfig struct {
	StartHour int `mapstructure:"start_hour"`
	EndHour   int `mapstructure:"end_hour"`
}

// CaseMixConfig contains weighted categorical tables for type and tier
type CaseMixConfig struct {
	TypeWeights map[string]float64 `mapstructure:"type_weights"`
	TierWeights map[string]float64 `mapstructure:"tier_weights"`
}

// IntakeConfig contains intake seasonality parameters
type IntakeConfig struct {
	// Weekday intake intensity weights, keyed mon..sun
	WeekdayWeights map[string]float64 `mapstructure:"weekday_weights"`

	// End-of-window compliance-push ramp over the final RampDays days
	RampDays          int     `mapstructure:"ramp_days"`
	RampMultiplierMax float64 `mapstructure:"ramp_multiplier_max"`
}

// ShiftConfig defines one staffing shift in local team time
type ShiftConfig struct {
	Name      string `mapstructure:"name"`
	StartHour int    `mapstructure:"start_hour"`
	EndHour   int    `mapstructure:"end_hour"`
}

// StaffingConfig contains the planned-coverage model
type StaffingConfig struct {
	Shifts               []ShiftConfig  `mapstructure:"shifts"`
	PlannedAgentsWeekday map[string]int `mapstructure:"planned_agents_weekday"`
	ShrinkageRate        float64        `mapstructure:"shrinkage_rate"`
	DeteriorationDays    int            `mapstructure:"deterioration_days"`
	DeteriorationFloor   float64        `mapstructure:"deterioration_floor"`
	DayShiftRatio        float64        `mapstructure:"day_shift_ratio"`
}

// CongestionConfig contains congestion model parameters. These are carried in
// configuration for the downstream modeling layer; the generator core does not
// feed them into per-case durations.
type CongestionConfig struct {
	DailyNoiseSigma  float64 `mapstructure:"daily_noise_sigma"`
	Alpha            float64 `mapstructure:"alpha"`
	BacklogCarryover float64 `mapstructure:"backlog_carryover"`
}

// StageTimesConfig contains log-normal duration parameters per workflow stage,
// expressed as (median minutes, sigma) with mu = ln(median).
type StageTimesConfig struct {
	TriageMedianByTier map[string]float64 `mapstructure:"triage_median_by_tier"`
	TriageSigma        float64            `mapstructure:"triage_sigma"`

	ResolveMedianByTier map[string]float64 `mapstructure:"resolve_median_by_tier"`
	ResolveSigma        float64            `mapstructure:"resolve_sigma"`

	AssignMedianMin float64 `mapstructure:"assign_median_min"`
	AssignSigma     float64 `mapstructure:"assign_sigma"`

	ReviewMedianMin float64 `mapstructure:"review_median_min"`
	ReviewSigma     float64 `mapstructure:"review_sigma"`

	CustomerWaitMedianMin float64 `mapstructure:"customer_wait_median_min"`
	CustomerWaitSigma     float64 `mapstructure:"customer_wait_sigma"`
	CustomerWaitRate      float64 `mapstructure:"customer_wait_rate"`

	// Fraction of investigation that elapses before a customer wait interrupts it
	WaitSplitRatio float64 `mapstructure:"wait_split_ratio"`

	CloseMedianMin float64 `mapstructure:"close_median_min"`
	CloseSigma     float64 `mapstructure:"close_sigma"`

	CancelMedianMin float64 `mapstructure:"cancel_median_min"`
	CancelSigma     float64 `mapstructure:"cancel_sigma"`
	CancelRate      float64 `mapstructure:"cancel_rate"`

	EscalationRate float64 `mapstructure:"escalation_rate"`

	ReopenRateByTier    map[string]float64 `mapstructure:"reopen_rate_by_tier"`
	ReopenDelayDaysMin  int                `mapstructure:"reopen_delay_days_min"`
	ReopenDelayDaysMax  int                `mapstructure:"reopen_delay_days_max"`
}

// DefectsConfig contains data-quality defect rates. Defect injection is
// intended data, never an error; every rate is independently toggleable by
// setting it to zero.
type DefectsConfig struct {
	MissingEventTSRate   float64 `mapstructure:"missing_event_ts_rate"`
	TZInconsistencyRate  float64 `mapstructure:"tz_inconsistency_rate"`
	OutOfOrderRate       float64 `mapstructure:"out_of_order_rate"`
	DuplicateRate        float64 `mapstructure:"duplicate_rate"`
	MissingMilestoneRate float64 `mapstructure:"missing_milestone_rate"`
}

// OutputConfig contains partitioned-output paths
type OutputConfig struct {
	BaseDir         string `mapstructure:"base_dir"`
	ReportsDir      string `mapstructure:"reports_dir"`
	PartitionColumn string `mapstructure:"partition_column"`
}

// WarehouseConfig contains the analytical warehouse connection
type WarehouseConfig struct {
	// Driver is "sqlite3" (embedded, default) or "postgres"
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

var weekdayKeys = map[time.Weekday]string{
	time.Monday:    "mon",
	time.Tuesday:   "tue",
	time.Wednesday: "wed",
	time.Thursday:  "thu",
	time.Friday:    "fri",
	time.Saturday:  "sat",
	time.Sunday:    "sun",
}

// WeekdayWeight returns the intake intensity weight for a weekday.
func (c IntakeConfig) WeekdayWeight(d time.Weekday) float64 {
	return c.WeekdayWeights[weekdayKeys[d]]
}

// PlannedAgents returns the pre-shrinkage planned headcount for a weekday.
func (c StaffingConfig) PlannedAgents(d time.Weekday) int {
	return c.PlannedAgentsWeekday[weekdayKeys[d]]
}

// Location loads the primary team timezone.
func (c TeamsConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.PrimaryTZ)
	if err != nil {
		return nil, fmt.Errorf("failed to load primary timezone %q: %w", c.PrimaryTZ, err)
	}
	return loc, nil
}

// StartDate parses the window start date as local midnight in the primary timezone.
func (c SimulationConfig) StartDate() (time.Time, error) {
	loc, err := c.Teams.Location()
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation("2006-01-02", c.Window.StartDate, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse window start date %q: %w", c.Window.StartDate, err)
	}
	return t, nil
}

// CasesTarget returns the allocator total for the given run mode. Mode changes
// only the total, never a distributional parameter.
func (c SimulationConfig) CasesTarget(mode string) int {
	if mode == "full" {
		return c.Scale.CasesTarget
	}
	return c.Scale.DevCasesTarget
}

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvPrefix("OPSSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Default returns the built-in configuration, validated.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	config := &Config{}
	// Defaults are static and known-good; Unmarshal cannot fail on them.
	_ = v.Unmarshal(config)
	return config
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Service defaults
	v.SetDefault("service.name", "ops-simulator")
	v.SetDefault("service.version", "1.0.0")
	v.SetDefault("service.environment", "development")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "opssim")
	v.SetDefault("metrics.push_gateway", "")
	v.SetDefault("metrics.job_name", "ops_simulator_run")

	// Simulation window: ~6 months
	v.SetDefault("simulation.window.start_date", "2025-07-01")
	v.SetDefault("simulation.window.days", 180)

	// Scale: ~300k cases, ~2M events at full scale
	v.SetDefault("simulation.scale.cases_target", 300000)
	v.SetDefault("simulation.scale.dev_cases_target", 50000)
	v.SetDefault("simulation.scale.avg_events_per_case", 6.7)

	// Teams
	v.SetDefault("simulation.teams.primary_tz", "America/Los_Angeles")
	v.SetDefault("simulation.teams.secondary_tzs", []string{"America/Denver", "America/New_York"})

	// Business hours: Mon-Fri 08:00-18:00 local team tz
	v.SetDefault("simulation.business_hours.start_hour", 8)
	v.SetDefault("simulation.business_hours.end_hour", 18)

	// Case mix
	v.SetDefault("simulation.case_mix.type_weights", map[string]float64{
		"VENDOR_ASSESSMENT": 0.45,
		"ACCESS_REVIEW":     0.35,
		"POLICY_EXCEPTION":  0.20,
	})
	v.SetDefault("simulation.case_mix.tier_weights", map[string]float64{
		"TIER_1": 0.55,
		"TIER_2": 0.35,
		"TIER_3": 0.10,
	})

	// Intake seasonality: Mon/Tue heavier, weekend near-zero, end-of-quarter ramp
	v.SetDefault("simulation.intake.weekday_weights", map[string]float64{
		"mon": 1.25, "tue": 1.15, "wed": 1.05, "thu": 1.00,
		"fri": 0.85, "sat": 0.15, "sun": 0.10,
	})
	v.SetDefault("simulation.intake.ramp_days", 30)
	v.SetDefault("simulation.intake.ramp_multiplier_max", 1.20)

	// Staffing
	v.SetDefault("simulation.staffing.shifts", []map[string]interface{}{
		{"name": "DAY", "start_hour": 8, "end_hour": 16},
		{"name": "SWING", "start_hour": 10, "end_hour": 18},
	})
	v.SetDefault("simulation.staffing.planned_agents_weekday", map[string]int{
		"mon": 38, "tue": 36, "wed": 34, "thu": 34, "fri": 30, "sat": 6, "sun": 4,
	})
	v.SetDefault("simulation.staffing.shrinkage_rate", 0.22)
	v.SetDefault("simulation.staffing.deterioration_days", 60)
	v.SetDefault("simulation.staffing.deterioration_floor", 0.85)
	v.SetDefault("simulation.staffing.day_shift_ratio", 0.65)

	// Congestion (reserved for the scenario-modeling layer)
	v.SetDefault("simulation.congestion.daily_noise_sigma", 0.10)
	v.SetDefault("simulation.congestion.alpha", 1.35)
	v.SetDefault("simulation.congestion.backlog_carryover", 0.65)

	// Stage durations (minutes; median + log-space sigma)
	v.SetDefault("simulation.stage_times.triage_median_by_tier", map[string]float64{
		"TIER_1": 35, "TIER_2": 55, "TIER_3": 85,
	})
	v.SetDefault("simulation.stage_times.triage_sigma", 0.85)
	v.SetDefault("simulation.stage_times.resolve_median_by_tier", map[string]float64{
		"TIER_1": 420, "TIER_2": 720, "TIER_3": 1320,
	})
	v.SetDefault("simulation.stage_times.resolve_sigma", 0.95)
	v.SetDefault("simulation.stage_times.assign_median_min", 25.0)
	v.SetDefault("simulation.stage_times.assign_sigma", 0.8)
	v.SetDefault("simulation.stage_times.review_median_min", 90.0)
	v.SetDefault("simulation.stage_times.review_sigma", 0.70)
	v.SetDefault("simulation.stage_times.customer_wait_median_min", 720.0)
	v.SetDefault("simulation.stage_times.customer_wait_sigma", 1.10)
	v.SetDefault("simulation.stage_times.customer_wait_rate", 0.28)
	v.SetDefault("simulation.stage_times.wait_split_ratio", 0.45)
	v.SetDefault("simulation.stage_times.close_median_min", 20.0)
	v.SetDefault("simulation.stage_times.close_sigma", 0.7)
	v.SetDefault("simulation.stage_times.cancel_median_min", 45.0)
	v.SetDefault("simulation.stage_times.cancel_sigma", 0.8)
	v.SetDefault("simulation.stage_times.cancel_rate", 0.012)
	v.SetDefault("simulation.stage_times.escalation_rate", 0.035)
	v.SetDefault("simulation.stage_times.reopen_rate_by_tier", map[string]float64{
		"TIER_1": 0.035, "TIER_2": 0.055, "TIER_3": 0.085,
	})
	v.SetDefault("simulation.stage_times.reopen_delay_days_min", 1)
	v.SetDefault("simulation.stage_times.reopen_delay_days_max", 7)

	// Messy-data defect rates
	v.SetDefault("simulation.defects.missing_event_ts_rate", 0.018)
	v.SetDefault("simulation.defects.tz_inconsistency_rate", 0.030)
	v.SetDefault("simulation.defects.out_of_order_rate", 0.015)
	v.SetDefault("simulation.defects.duplicate_rate", 0.020)
	v.SetDefault("simulation.defects.missing_milestone_rate", 0.012)

	v.SetDefault("simulation.seed", 42)

	// Output defaults
	v.SetDefault("output.base_dir", "data/generated")
	v.SetDefault("output.reports_dir", "reports/run_summaries")
	v.SetDefault("output.partition_column", "intake_date")

	// Warehouse defaults
	v.SetDefault("warehouse.driver", "sqlite3")
	v.SetDefault("warehouse.dsn", "ops_warehouse.db")
}

// Validate checks the configuration and fails fast before any generation
// begins. Weight tables must be non-empty and sum positive, duration medians
// must be positive, rates must be probabilities, and the window and target
// volume must be usable.
func (c *Config) Validate() error {
	s := c.Simulation

	if s.Window.Days <= 0 {
		return fmt.Errorf("window days must be positive, got %d", s.Window.Days)
	}
	if _, err := s.StartDate(); err != nil {
		return err
	}
	if s.Scale.CasesTarget <= 0 {
		return fmt.Errorf("cases target must be positive, got %d", s.Scale.CasesTarget)
	}
	if s.Scale.DevCasesTarget <= 0 {
		return fmt.Errorf("dev cases target must be positive, got %d", s.Scale.DevCasesTarget)
	}
	if s.BusinessHours.StartHour < 0 || s.BusinessHours.EndHour > 24 ||
		s.BusinessHours.StartHour >= s.BusinessHours.EndHour {
		return fmt.Errorf("invalid business hours [%d, %d)", s.BusinessHours.StartHour, s.BusinessHours.EndHour)
	}

	if err := validateWeights("case type", s.CaseMix.TypeWeights); err != nil {
		return err
	}
	if err := validateWeights("case tier", s.CaseMix.TierWeights); err != nil {
		return err
	}
	if err := validateWeights("weekday intake", s.Intake.WeekdayWeights); err != nil {
		return err
	}
	if s.Intake.RampDays < 0 {
		return fmt.Errorf("intake ramp days must be non-negative, got %d", s.Intake.RampDays)
	}
	if s.Intake.RampDays > 0 && s.Intake.RampMultiplierMax < 1.0 {
		return fmt.Errorf("intake ramp multiplier must be >= 1.0, got %f", s.Intake.RampMultiplierMax)
	}

	if len(s.Staffing.Shifts) == 0 {
		return fmt.Errorf("staffing shifts must not be empty")
	}
	if s.Staffing.DayShiftRatio < 0 || s.Staffing.DayShiftRatio > 1 {
		return fmt.Errorf("day shift ratio must be in [0, 1], got %f", s.Staffing.DayShiftRatio)
	}

	if err := validateMedians("triage", s.StageTimes.TriageMedianByTier); err != nil {
		return err
	}
	if err := validateMedians("resolve", s.StageTimes.ResolveMedianByTier); err != nil {
		return err
	}
	for _, m := range []struct {
		name  string
		value float64
	}{
		{"assign", s.StageTimes.AssignMedianMin},
		{"review", s.StageTimes.ReviewMedianMin},
		{"customer wait", s.StageTimes.CustomerWaitMedianMin},
		{"close", s.StageTimes.CloseMedianMin},
		{"cancel", s.StageTimes.CancelMedianMin},
	} {
		if m.value <= 0 {
			return fmt.Errorf("%s duration median must be positive, got %f", m.name, m.value)
		}
	}
	if s.StageTimes.WaitSplitRatio <= 0 || s.StageTimes.WaitSplitRatio >= 1 {
		return fmt.Errorf("wait split ratio must be in (0, 1), got %f", s.StageTimes.WaitSplitRatio)
	}
	if s.StageTimes.ReopenDelayDaysMin > s.StageTimes.ReopenDelayDaysMax {
		return fmt.Errorf("reopen delay range inverted: [%d, %d]",
			s.StageTimes.ReopenDelayDaysMin, s.StageTimes.ReopenDelayDaysMax)
	}

	for _, r := range []struct {
		name  string
		value float64
	}{
		{"customer wait rate", s.StageTimes.CustomerWaitRate},
		{"cancel rate", s.StageTimes.CancelRate},
		{"escalation rate", s.StageTimes.EscalationRate},
		{"missing event_ts rate", s.Defects.MissingEventTSRate},
		{"tz inconsistency rate", s.Defects.TZInconsistencyRate},
		{"out of order rate", s.Defects.OutOfOrderRate},
		{"duplicate rate", s.Defects.DuplicateRate},
		{"missing milestone rate", s.Defects.MissingMilestoneRate},
	} {
		if r.value < 0 || r.value > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %f", r.name, r.value)
		}
	}
	for tier, rate := range s.StageTimes.ReopenRateByTier {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("reopen rate for %s must be in [0, 1], got %f", tier, rate)
		}
	}

	switch c.Warehouse.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported warehouse driver %q", c.Warehouse.Driver)
	}

	return nil
}

func validateWeights(name string, weights map[string]float64) error {
	if len(weights) == 0 {
		return fmt.Errorf("%s weights must not be empty", name)
	}
	total := 0.0
	for key, w := range weights {
		if w < 0 {
			return fmt.Errorf("%s weight for %q must be non-negative, got %f", name, key, w)
		}
		total += w
	}
	if total <= 0 {
		return fmt.Errorf("%s weights must sum to a positive value", name)
	}
	return nil
}

func validateMedians(name string, medians map[string]float64) error {
	if len(medians) == 0 {
		return fmt.Errorf("%s duration medians must not be empty", name)
	}
	for tier, m := range medians {
		if m <= 0 {
			return fmt.Errorf("%s duration median for %s must be positive, got %f", name, tier, m)
		}
	}
	return nil
}
