package service_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isectech/ops-simulator/config"
	"github.com/isectech/ops-simulator/domain/entity"
	"github.com/isectech/ops-simulator/domain/service"
)

func losAngeles(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

// syntheticBatch builds nCases cases with a TRIAGE and a RESOLVED row each.
func syntheticBatch(loc *time.Location, nCases int) []entity.EventRecord {
	events := make([]entity.EventRecord, 0, nCases*2)
	base := time.Date(2025, 7, 1, 9, 0, 0, 0, loc)
	for i := 0; i < nCases; i++ {
		caseID := fmt.Sprintf("C%09d", i+1)
		for j, status := range []string{entity.StatusTriage, entity.StatusResolved} {
			ts := base.Add(time.Duration(i)*time.Minute + time.Duration(j)*time.Hour)
			eventTS := ts
			events = append(events, entity.EventRecord{
				EventID:     fmt.Sprintf("%s_%03d", caseID, j+1),
				CaseID:      caseID,
				Status:      status,
				EventTS:     &eventTS,
				IngestionTS: ts.Add(5 * time.Minute),
				EventTZ:     "America/Los_Angeles",
			})
		}
	}
	return events
}

func TestDefectRatesConverge(t *testing.T) {
	loc := losAngeles(t)
	cfg := config.DefectsConfig{
		MissingEventTSRate:  0.018,
		TZInconsistencyRate: 0.030,
		OutOfOrderRate:      0.015,
		DuplicateRate:       0.020,
	}
	injector := service.NewDefectInjector(cfg, loc)

	batch := syntheticBatch(loc, 60000) // 120k rows
	pre := len(batch)
	out, stats := injector.Apply(service.NewStream(42), batch)

	checkRate := func(name string, observed int, want float64) {
		realized := float64(observed) / float64(pre)
		assert.InEpsilon(t, want, realized, 0.20, "%s realized %f want %f", name, realized, want)
	}
	checkRate("missing_ts", stats.MissingTimestamps, cfg.MissingEventTSRate)
	checkRate("late", stats.LateArrivals, cfg.OutOfOrderRate)
	checkRate("duplicate", stats.Duplicates, cfg.DuplicateRate)
	// The tz pass only sees rows that kept an event timestamp.
	checkRate("tz", stats.TZInconsistencies, cfg.TZInconsistencyRate*(1-cfg.MissingEventTSRate))

	assert.Equal(t, pre+stats.Duplicates, len(out))
}

func TestDefectsAllTogglesOff(t *testing.T) {
	loc := losAngeles(t)
	injector := service.NewDefectInjector(config.DefectsConfig{}, loc)

	batch := syntheticBatch(loc, 500)
	want := make([]entity.EventRecord, len(batch))
	copy(want, batch)

	out, stats := injector.Apply(service.NewStream(42), batch)
	assert.Equal(t, service.DefectStats{}, stats)
	assert.Equal(t, want, out)
}

func TestDuplicateIntegrity(t *testing.T) {
	loc := losAngeles(t)
	injector := service.NewDefectInjector(config.DefectsConfig{DuplicateRate: 1.0}, loc)

	batch := syntheticBatch(loc, 300)
	pre := len(batch)
	out, stats := injector.Apply(service.NewStream(42), batch)

	// Every pre-duplication row cloned exactly once, append-only.
	require.Equal(t, 2*pre, len(out))
	require.Equal(t, pre, stats.Duplicates)

	sources := map[string]entity.EventRecord{}
	for _, e := range out[:pre] {
		assert.False(t, e.IsDuplicate)
		sources[e.EventID] = e
	}
	for _, dup := range out[pre:] {
		assert.True(t, dup.IsDuplicate)
		require.True(t, strings.HasSuffix(dup.EventID, entity.DuplicateSuffix))

		src, ok := sources[strings.TrimSuffix(dup.EventID, entity.DuplicateSuffix)]
		require.True(t, ok, "duplicate %s has no source", dup.EventID)
		assert.Equal(t, src.CaseID, dup.CaseID)
		assert.Equal(t, src.Status, dup.Status)
		assert.True(t, dup.IngestionTS.After(src.IngestionTS))
	}
}

func TestDuplicateIsDeepCopy(t *testing.T) {
	loc := losAngeles(t)
	injector := service.NewDefectInjector(config.DefectsConfig{DuplicateRate: 1.0}, loc)

	batch := syntheticBatch(loc, 1)
	out, _ := injector.Apply(service.NewStream(42), batch)
	require.Len(t, out, 4)

	// Mutating a clone's timestamp must not reach through to its source.
	*out[2].EventTS = out[2].EventTS.Add(time.Hour)
	assert.NotEqual(t, *out[0].EventTS, *out[2].EventTS)
}

func TestTimezoneCorruptionShiftsByUTCOffset(t *testing.T) {
	loc := losAngeles(t)
	injector := service.NewDefectInjector(config.DefectsConfig{TZInconsistencyRate: 1.0}, loc)

	batch := syntheticBatch(loc, 50)
	originals := make([]time.Time, len(batch))
	for i, e := range batch {
		originals[i] = *e.EventTS
	}

	out, stats := injector.Apply(service.NewStream(42), batch)
	require.Equal(t, len(batch), stats.TZInconsistencies)

	for i, e := range out {
		require.NotNil(t, e.EventTS)
		assert.Equal(t, entity.TZInconsistent, e.EventTZ)
		// July in Los Angeles is UTC-7: reading local wall clock as UTC and
		// converting back shifts the instant 7 hours earlier.
		assert.Equal(t, originals[i].Add(-7*time.Hour).Unix(), e.EventTS.Unix())
	}
}

func TestTimezoneCorruptionSkipsMissingTimestamps(t *testing.T) {
	loc := losAngeles(t)
	injector := service.NewDefectInjector(config.DefectsConfig{
		MissingEventTSRate:  1.0,
		TZInconsistencyRate: 1.0,
	}, loc)

	out, stats := injector.Apply(service.NewStream(42), syntheticBatch(loc, 100))
	assert.Equal(t, 200, stats.MissingTimestamps)
	assert.Zero(t, stats.TZInconsistencies)
	for _, e := range out {
		assert.Nil(t, e.EventTS)
		assert.NotEqual(t, entity.TZInconsistent, e.EventTZ)
	}
}

func TestLateArrivalLeavesEventTime(t *testing.T) {
	loc := losAngeles(t)
	injector := service.NewDefectInjector(config.DefectsConfig{OutOfOrderRate: 1.0}, loc)

	batch := syntheticBatch(loc, 100)
	originals := make([]entity.EventRecord, len(batch))
	copy(originals, batch)

	out, stats := injector.Apply(service.NewStream(42), batch)
	require.Equal(t, len(batch), stats.LateArrivals)

	for i, e := range out {
		assert.True(t, e.IsLateArrival)
		assert.Equal(t, *originals[i].EventTS, *e.EventTS)

		bump := e.IngestionTS.Sub(originals[i].IngestionTS)
		assert.GreaterOrEqual(t, bump, 10*time.Minute)
		assert.Less(t, bump, 240*time.Minute)
	}
}

func TestMissingMilestoneExclusivity(t *testing.T) {
	loc := losAngeles(t)
	injector := service.NewDefectInjector(config.DefectsConfig{MissingMilestoneRate: 0.5}, loc)

	out, stats := injector.Apply(service.NewStream(42), syntheticBatch(loc, 2000))
	assert.Equal(t, 1000, stats.DroppedMilestones)

	remaining := map[string]map[string]bool{}
	for _, e := range out {
		if remaining[e.CaseID] == nil {
			remaining[e.CaseID] = map[string]bool{}
		}
		remaining[e.CaseID][e.Status] = true
	}

	// Every case keeps at least one of its two milestones.
	assert.Len(t, remaining, 2000)
	for caseID, statuses := range remaining {
		assert.True(t, statuses[entity.StatusTriage] || statuses[entity.StatusResolved],
			"case %s lost both milestones", caseID)
	}
}

func TestDefectsDeterministic(t *testing.T) {
	loc := losAngeles(t)
	cfg := config.Default().Simulation.Defects
	injector := service.NewDefectInjector(cfg, loc)

	a, statsA := injector.Apply(service.NewStream(42), syntheticBatch(loc, 3000))
	b, statsB := injector.Apply(service.NewStream(42), syntheticBatch(loc, 3000))
	assert.Equal(t, statsA, statsB)
	assert.Equal(t, a, b)
}
