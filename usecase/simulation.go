package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/isectech/ops-simulator/config"
	"github.com/isectech/ops-simulator/domain/entity"
	"github.com/isectech/ops-simulator/domain/service"
)

// Run modes. Mode selects only the allocator's total case volume; every
// distributional parameter is identical between modes.
const (
	ModeDev  = "dev"
	ModeFull = "full"
)

// DayBatch holds one simulated day's fully materialized output. A day batch is
// the unit of persistence: it is either written completely or discarded.
type DayBatch struct {
	Index   int
	Date    time.Time
	Day     string
	Cases   []entity.CaseRecord
	Events  []entity.EventRecord
	Defects service.DefectStats
}

// Dataset is the full in-memory output of a generation pass.
type Dataset struct {
	Calendar []entity.CalendarDay
	Staffing []entity.StaffingShiftRecord
	Days     []*DayBatch
}

// CaseRows returns the total case count across all day batches.
func (d *Dataset) CaseRows() int {
	n := 0
	for _, b := range d.Days {
		n += len(b.Cases)
	}
	return n
}

// EventRows returns the total post-injection event row count.
func (d *Dataset) EventRows() int {
	n := 0
	for _, b := range d.Days {
		n += len(b.Events)
	}
	return n
}

// generator produces day batches for one run. All shared state is read-only
// after construction except the random streams, which are derived per day, so
// day batches may be generated in any order or concurrently.
type generator struct {
	cfg      config.SimulationConfig
	loc      *time.Location
	start    time.Time
	counts   []int
	idStarts []int
	sampler  *service.CaseMixSampler
	timeline *service.TimelineBuilder
	injector *service.DefectInjector
}

// newGenerator validates configuration, allocates the per-day case volume, and
// pre-computes each day's case-id range so ids stay globally contiguous in
// calendar order regardless of generation order.
func newGenerator(cfg config.SimulationConfig, mode string) (*generator, error) {
	if mode != ModeDev && mode != ModeFull {
		return nil, fmt.Errorf("unknown run mode %q (want %q or %q)", mode, ModeDev, ModeFull)
	}

	loc, err := cfg.Teams.Location()
	if err != nil {
		return nil, err
	}
	start, err := cfg.StartDate()
	if err != nil {
		return nil, err
	}

	sampler, err := service.NewCaseMixSampler(cfg.CaseMix)
	if err != nil {
		return nil, err
	}

	// Volume allocation consumes its own stream so day sub-streams stay
	// aligned with day indexes.
	allocStream := service.NewStream(cfg.Seed)
	counts, err := service.AllocateVolume(allocStream, cfg.Intake, start, cfg.Window.Days, cfg.CasesTarget(mode))
	if err != nil {
		return nil, err
	}

	idStarts := make([]int, len(counts))
	next := 1
	for i, n := range counts {
		idStarts[i] = next
		next += n
	}

	return &generator{
		cfg:      cfg,
		loc:      loc,
		start:    start,
		counts:   counts,
		idStarts: idStarts,
		sampler:  sampler,
		timeline: service.NewTimelineBuilder(cfg.StageTimes, cfg.Teams.PrimaryTZ),
		injector: service.NewDefectInjector(cfg.Defects, loc),
	}, nil
}

// generateDay materializes one day batch: case mix and intake draws, per-case
// lifecycle timelines, then defect injection over the day's assembled events.
func (g *generator) generateDay(dayIndex int) *DayBatch {
	n := g.counts[dayIndex]
	date := g.start.AddDate(0, 0, dayIndex)
	batch := &DayBatch{
		Index: dayIndex,
		Date:  date,
		Day:   date.Format("2006-01-02"),
	}
	if n == 0 {
		return batch
	}

	rng := service.NewDayStream(g.cfg.Seed, dayIndex)

	types, tiers := g.sampler.SampleMix(rng, n)
	intakes := service.SampleIntakeTimes(rng, date, n, g.cfg.BusinessHours)

	batch.Cases = make([]entity.CaseRecord, n)
	events := make([]entity.EventRecord, 0, n*7)
	for i := 0; i < n; i++ {
		c := entity.CaseRecord{
			CaseID:   entity.CaseID(g.idStarts[dayIndex] + i),
			IntakeTS: intakes[i],
			CaseType: types[i],
			Tier:     tiers[i],
			TeamTZ:   g.cfg.Teams.PrimaryTZ,
		}
		batch.Cases[i] = c
		events = append(events, g.timeline.BuildCaseEvents(rng, c)...)
	}

	batch.Events, batch.Defects = g.injector.Apply(rng, events)
	return batch
}

// Simulator coordinates a full synthetic-data run.
type Simulator struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSimulator creates a simulator. The configuration must already be
// validated.
func NewSimulator(cfg *config.Config, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{cfg: cfg, logger: logger}
}

// Generate runs a pure in-memory generation pass and returns the full dataset.
// Two calls with identical configuration and seed return identical data.
func (s *Simulator) Generate(ctx context.Context, mode string) (*Dataset, error) {
	gen, err := newGenerator(s.cfg.Simulation, mode)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		Calendar: service.BuildCalendar(gen.start, s.cfg.Simulation.Window.Days),
		Staffing: service.BuildStaffing(s.cfg.Simulation.Staffing, s.cfg.Simulation.Teams.PrimaryTZ, gen.start, s.cfg.Simulation.Window.Days),
		Days:     make([]*DayBatch, len(gen.counts)),
	}
	for i := range gen.counts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ds.Days[i] = gen.generateDay(i)
	}
	return ds, nil
}
