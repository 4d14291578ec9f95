package service

import (
	"math"
	"time"

	"github.com/isectech/ops-simulator/config"
	"github.com/isectech/ops-simulator/domain/entity"
)

// DefectInjector corrupts a generated event batch at the configured rates. It
// runs a fixed sequence of passes, each taking and returning the full ordered
// collection, because later passes read state the earlier ones mutated:
//
//  1. missing event timestamps
//  2. timezone inconsistencies (among rows that still have an event timestamp)
//  3. out-of-order arrival (late ingestion)
//  4. duplication (append-only retry copies, sampled pre-duplication)
//  5. missing milestones (case-level TRIAGE/RESOLVED drops)
//
// Nulled timestamps, inconsistent timezones, and duplicates are intended data,
// never errors. Setting a rate to zero disables its pass.
type DefectInjector struct {
	cfg config.DefectsConfig
	loc *time.Location
}

// DefectStats counts how many rows each pass touched.
type DefectStats struct {
	MissingTimestamps  int `json:"missing_timestamps"`
	TZInconsistencies  int `json:"tz_inconsistencies"`
	LateArrivals       int `json:"late_arrivals"`
	Duplicates         int `json:"duplicates"`
	DroppedMilestones  int `json:"dropped_milestones"`
}

// Add accumulates another batch's stats.
func (s *DefectStats) Add(o DefectStats) {
	s.MissingTimestamps += o.MissingTimestamps
	s.TZInconsistencies += o.TZInconsistencies
	s.LateArrivals += o.LateArrivals
	s.Duplicates += o.Duplicates
	s.DroppedMilestones += o.DroppedMilestones
}

// NewDefectInjector creates an injector. loc is the team location used when
// reinterpreting corrupted wall-clock times.
func NewDefectInjector(cfg config.DefectsConfig, loc *time.Location) *DefectInjector {
	return &DefectInjector{cfg: cfg, loc: loc}
}

// Apply runs the full injection pipeline over the batch and returns the
// corrupted batch together with per-defect counts. Defects compose on the
// pre-duplication population: a row may end up both late-arriving and
// timezone-inconsistent, but retry copies appended by the duplication pass are
// never re-corrupted within the same run.
func (d *DefectInjector) Apply(rng *Stream, events []entity.EventRecord) ([]entity.EventRecord, DefectStats) {
	stats := DefectStats{}

	events, stats.MissingTimestamps = d.dropEventTimestamps(rng, events)
	events, stats.TZInconsistencies = d.corruptTimezones(rng, events)
	events, stats.LateArrivals = d.delayIngestion(rng, events)
	events, stats.Duplicates = d.duplicateRows(rng, events)
	events, stats.DroppedMilestones = d.dropMilestones(rng, events)

	return events, stats
}

// dropEventTimestamps nulls event_ts on a sampled subset of rows. The row stays
// present and keeps its ingestion timestamp, modeling events where only the
// arrival time is known.
func (d *DefectInjector) dropEventTimestamps(rng *Stream, events []entity.EventRecord) ([]entity.EventRecord, int) {
	hit := 0
	for i := range events {
		if rng.Bernoulli(d.cfg.MissingEventTSRate) {
			events[i].EventTS = nil
			hit++
		}
	}
	return events, hit
}

// corruptTimezones reinterprets a sampled row's local wall-clock time as if it
// had been stored in UTC and converts it back to local, shifting the timestamp
// by the local UTC offset. This models a storage bug, not a real timezone
// change; rows without an event timestamp are skipped.
func (d *DefectInjector) corruptTimezones(rng *Stream, events []entity.EventRecord) ([]entity.EventRecord, int) {
	hit := 0
	for i := range events {
		if events[i].EventTS == nil || !rng.Bernoulli(d.cfg.TZInconsistencyRate) {
			continue
		}
		local := events[i].EventTS.In(d.loc)
		asUTC := time.Date(
			local.Year(), local.Month(), local.Day(),
			local.Hour(), local.Minute(), local.Second(), local.Nanosecond(),
			time.UTC,
		)
		bad := asUTC.In(d.loc)
		events[i].EventTS = &bad
		events[i].EventTZ = entity.TZInconsistent
		hit++
	}
	return events, hit
}

// delayIngestion pushes ingestion forward by 10-240 minutes on a sampled subset
// and flags the rows late-arriving, without moving event_ts, so logical order
// and arrival order diverge.
func (d *DefectInjector) delayIngestion(rng *Stream, events []entity.EventRecord) ([]entity.EventRecord, int) {
	hit := 0
	for i := range events {
		if rng.Bernoulli(d.cfg.OutOfOrderRate) {
			bump := time.Duration(rng.IntBetween(10, 240)) * time.Minute
			events[i].IngestionTS = events[i].IngestionTS.Add(bump)
			events[i].IsLateArrival = true
			hit++
		}
	}
	return events, hit
}

// duplicateRows clones a sampled subset of the pre-duplication batch as retry
// copies: suffixed event id, ingestion advanced 1-30 minutes, duplicate flag
// set. Copies are appended; originals are never removed.
func (d *DefectInjector) duplicateRows(rng *Stream, events []entity.EventRecord) ([]entity.EventRecord, int) {
	original := len(events)
	for i := 0; i < original; i++ {
		if !rng.Bernoulli(d.cfg.DuplicateRate) {
			continue
		}
		dup := events[i].Clone()
		dup.EventID += entity.DuplicateSuffix
		dup.IngestionTS = dup.IngestionTS.Add(time.Duration(rng.IntBetween(1, 30)) * time.Minute)
		dup.IsDuplicate = true
		events = append(events, dup)
	}
	return events, len(events) - original
}

// dropMilestones removes exactly one of TRIAGE or RESOLVED for a sampled
// fraction of cases, simulating milestone logging failures. It operates at
// case granularity: the chosen row disappears entirely, unlike the row-level
// missing-timestamp pass, and no case ever loses both milestones in one run.
func (d *DefectInjector) dropMilestones(rng *Stream, events []entity.EventRecord) ([]entity.EventRecord, int) {
	if d.cfg.MissingMilestoneRate <= 0 || len(events) == 0 {
		return events, 0
	}

	caseOrder := make([]string, 0)
	seen := make(map[string]bool)
	for _, e := range events {
		if !seen[e.CaseID] {
			seen[e.CaseID] = true
			caseOrder = append(caseOrder, e.CaseID)
		}
	}

	affected := int(math.Round(float64(len(caseOrder)) * d.cfg.MissingMilestoneRate))
	if affected == 0 {
		return events, 0
	}

	dropStatus := make(map[string]string, affected)
	for _, idx := range rng.SampleCaseIndexes(len(caseOrder), affected) {
		status := entity.StatusTriage
		if rng.Bernoulli(0.5) {
			status = entity.StatusResolved
		}
		dropStatus[caseOrder[idx]] = status
	}

	kept := events[:0]
	dropped := 0
	for _, e := range events {
		// Retry copies of the dropped milestone vanish with it; the logging
		// failure being modeled loses the milestone entirely.
		if status, ok := dropStatus[e.CaseID]; ok && e.Status == status {
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	return kept, dropped
}
