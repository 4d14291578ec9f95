package warehouse_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isectech/ops-simulator/config"
	"github.com/isectech/ops-simulator/domain/entity"
	"github.com/isectech/ops-simulator/infrastructure/storage"
	"github.com/isectech/ops-simulator/infrastructure/warehouse"
)

// writeFixture produces a small two-day output tree: four cases, eight events,
// one of each defect flavor, plus calendar and staffing rows.
func writeFixture(t *testing.T, baseDir string) {
	t.Helper()
	w := storage.NewPartitionWriter(baseDir, "intake_date", nil)

	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	days := []string{"2025-07-01", "2025-07-02"}
	for di, day := range days {
		date, err := time.ParseInLocation("2006-01-02", day, loc)
		require.NoError(t, err)

		var cases []entity.CaseRecord
		var events []entity.EventRecord
		for ci := 0; ci < 2; ci++ {
			caseID := entity.CaseID(di*2 + ci + 1)
			intake := date.Add(time.Duration(9+ci) * time.Hour)
			cases = append(cases, entity.CaseRecord{
				CaseID: caseID, IntakeTS: intake,
				CaseType: "ACCESS_REVIEW", Tier: "TIER_1", TeamTZ: loc.String(),
			})

			intakeTS := intake
			events = append(events, entity.EventRecord{
				EventID: caseID + "_001", CaseID: caseID, Status: entity.StatusIntake,
				EventTS: &intakeTS, IngestionTS: intake.Add(5 * time.Minute),
				EventTZ: loc.String(),
			})
			second := entity.EventRecord{
				EventID: caseID + "_002", CaseID: caseID, Status: entity.StatusTriage,
				IngestionTS: intake.Add(45 * time.Minute), EventTZ: loc.String(),
			}
			switch {
			case di == 0 && ci == 0: // missing event_ts
				second.EventTS = nil
			case di == 0 && ci == 1: // tz reinterpretation
				triageTS := intake.Add(30 * time.Minute)
				second.EventTS = &triageTS
				second.EventTZ = entity.TZInconsistent
			case di == 1 && ci == 0: // late arrival
				triageTS := intake.Add(30 * time.Minute)
				second.EventTS = &triageTS
				second.IngestionTS = intake.Add(3 * time.Hour)
				second.IsLateArrival = true
			default: // duplicate
				triageTS := intake.Add(30 * time.Minute)
				second.EventTS = &triageTS
				second.EventID += entity.DuplicateSuffix
				second.IsDuplicate = true
			}
			events = append(events, second)
		}

		_, err = w.WriteCaseBatch(day, cases)
		require.NoError(t, err)
		_, err = w.WriteEventBatch(day, events)
		require.NoError(t, err)
	}

	start, err := time.ParseInLocation("2006-01-02", days[0], loc)
	require.NoError(t, err)
	_, err = w.WriteCalendar([]entity.CalendarDay{
		{Date: start, DayOfWeek: 2},
		{Date: start.AddDate(0, 0, 1), DayOfWeek: 3},
	})
	require.NoError(t, err)
	_, err = w.WriteStaffing([]entity.StaffingShiftRecord{
		{
			ShiftDate: start, TeamTZ: loc.String(), ShiftName: "DAY",
			ShiftStartHour: 8, ShiftEndHour: 16,
			PlannedAgents: 23, ShrinkageRate: 0.22, DeteriorationFactor: 1, EffectiveAgents: 18,
		},
	})
	require.NoError(t, err)
}

func newTestLoader(t *testing.T) *warehouse.Loader {
	t.Helper()
	cfg := config.WarehouseConfig{
		Driver: "sqlite3",
		DSN:    filepath.Join(t.TempDir(), "warehouse_test.db"),
	}
	loader, err := warehouse.NewLoader(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { loader.Close() })
	return loader
}

func TestLoadAllCountsAndPartitionKey(t *testing.T) {
	baseDir := t.TempDir()
	writeFixture(t, baseDir)
	loader := newTestLoader(t)
	ctx := context.Background()

	require.NoError(t, loader.LoadAll(ctx, baseDir, "intake_date"))

	for relation, want := range map[string]int64{
		storage.RelationCases:    4,
		storage.RelationEvents:   8,
		storage.RelationCalendar: 2,
		storage.RelationStaffing: 1,
	} {
		n, err := loader.Count(ctx, relation)
		require.NoError(t, err)
		assert.Equal(t, want, n, relation)
	}
}

func TestLoadAllIsIdempotent(t *testing.T) {
	baseDir := t.TempDir()
	writeFixture(t, baseDir)
	loader := newTestLoader(t)
	ctx := context.Background()

	require.NoError(t, loader.LoadAll(ctx, baseDir, "intake_date"))
	require.NoError(t, loader.LoadAll(ctx, baseDir, "intake_date"))

	n, err := loader.Count(ctx, storage.RelationEvents)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
}

func TestMeasureDataQuality(t *testing.T) {
	baseDir := t.TempDir()
	writeFixture(t, baseDir)
	loader := newTestLoader(t)
	ctx := context.Background()

	require.NoError(t, loader.LoadAll(ctx, baseDir, "intake_date"))

	dq, err := loader.MeasureDataQuality(ctx)
	require.NoError(t, err)

	// One defect of each flavor over eight event rows
	assert.InDelta(t, 12.5, dq.MissingEventTSPct, 1e-9)
	assert.InDelta(t, 12.5, dq.TZInconsistentPct, 1e-9)
	assert.InDelta(t, 12.5, dq.LateArrivingPct, 1e-9)
	assert.InDelta(t, 12.5, dq.DuplicatePct, 1e-9)
}

func TestMeasureDataQualityEmptyWarehouse(t *testing.T) {
	loader := newTestLoader(t)
	ctx := context.Background()

	require.NoError(t, loader.LoadAll(ctx, t.TempDir(), "intake_date"))

	dq, err := loader.MeasureDataQuality(ctx)
	require.NoError(t, err)
	assert.Zero(t, dq.MissingEventTSPct)
	assert.Zero(t, dq.DuplicatePct)
}

func TestCountUnknownRelation(t *testing.T) {
	loader := newTestLoader(t)
	_, err := loader.Count(context.Background(), "users; DROP TABLE cases")
	assert.Error(t, err)
}
