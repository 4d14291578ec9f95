package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/isectech/ops-simulator/domain/service"
	"github.com/isectech/ops-simulator/infrastructure/storage"
	"github.com/isectech/ops-simulator/infrastructure/warehouse"
	"github.com/isectech/ops-simulator/metrics"
)

// Summary reports one completed run: what was generated, what the warehouse
// loaded, and the realized data-quality percentages. It is written as JSON to
// the reports directory.
type Summary struct {
	RunID       string    `json:"run_id"`
	Mode        string    `json:"mode"`
	GeneratedAt time.Time `json:"generated_at"`

	Config struct {
		WindowDays  int    `json:"window_days"`
		StartDate   string `json:"start_date"`
		CasesTarget int    `json:"cases_target"`
		Seed        uint64 `json:"seed"`
	} `json:"config"`

	Generated struct {
		CaseRows       int `json:"case_rows"`
		EventRows      int `json:"event_rows"`
		CasePartFiles  int `json:"case_part_files"`
		EventPartFiles int `json:"event_part_files"`
		CalendarRows   int `json:"calendar_rows"`
		StaffingRows   int `json:"staffing_rows"`

		MissingTimestamps int `json:"defect_missing_timestamps"`
		TZInconsistencies int `json:"defect_tz_inconsistencies"`
		LateArrivals      int `json:"defect_late_arrivals"`
		Duplicates        int `json:"defect_duplicates"`
		DroppedMilestones int `json:"defect_dropped_milestones"`
	} `json:"generated"`

	LoadedCounts map[string]int64       `json:"loaded_counts"`
	DataQuality  *warehouse.DataQuality `json:"data_quality_pct"`

	RuntimeSeconds struct {
		Generate float64 `json:"generate_total"`
		Load     float64 `json:"load_total"`
		EndToEnd float64 `json:"end_to_end"`
	} `json:"runtime_seconds"`
}

// Run executes a full pipeline: clear prior partitions, generate and persist
// every day batch, bulk-load the warehouse, measure realized data quality, and
// write the run summary. Day batches are generated and persisted in parallel;
// a day that cannot be persisted discards its in-memory batch and fails the
// run, leaving no partial-day partition behind on that path.
func (s *Simulator) Run(ctx context.Context, mode string) (*Summary, error) {
	t0 := time.Now()

	gen, err := newGenerator(s.cfg.Simulation, mode)
	if err != nil {
		return nil, err
	}

	writer := storage.NewPartitionWriter(s.cfg.Output.BaseDir, s.cfg.Output.PartitionColumn, s.logger)
	if err := writer.ClearPartitions(); err != nil {
		return nil, err
	}

	s.logger.Info("starting generation",
		zap.String("mode", mode),
		zap.Int("window_days", s.cfg.Simulation.Window.Days),
		zap.Int("cases_target", s.cfg.Simulation.CasesTarget(mode)),
		zap.Uint64("seed", s.cfg.Simulation.Seed),
	)

	calendar := service.BuildCalendar(gen.start, s.cfg.Simulation.Window.Days)
	staffing := service.BuildStaffing(s.cfg.Simulation.Staffing, s.cfg.Simulation.Teams.PrimaryTZ, gen.start, s.cfg.Simulation.Window.Days)
	if _, err := writer.WriteCalendar(calendar); err != nil {
		return nil, err
	}
	if _, err := writer.WriteStaffing(staffing); err != nil {
		return nil, err
	}

	batches := make([]*DayBatch, len(gen.counts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i := range gen.counts {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dayStart := time.Now()
			batch := gen.generateDay(i)
			if len(batch.Cases) == 0 {
				batches[i] = batch
				return nil
			}
			if _, err := writer.WriteCaseBatch(batch.Day, batch.Cases); err != nil {
				return fmt.Errorf("day %s failed to persist cases: %w", batch.Day, err)
			}
			if _, err := writer.WriteEventBatch(batch.Day, batch.Events); err != nil {
				return fmt.Errorf("day %s failed to persist events: %w", batch.Day, err)
			}
			batches[i] = batch
			metrics.DayBatchDuration.Observe(time.Since(dayStart).Seconds())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:        uuid.NewString(),
		Mode:         mode,
		GeneratedAt:  t0.UTC(),
		LoadedCounts: map[string]int64{},
	}
	summary.Config.WindowDays = s.cfg.Simulation.Window.Days
	summary.Config.StartDate = s.cfg.Simulation.Window.StartDate
	summary.Config.CasesTarget = s.cfg.Simulation.CasesTarget(mode)
	summary.Config.Seed = s.cfg.Simulation.Seed
	summary.Generated.CalendarRows = len(calendar)
	summary.Generated.StaffingRows = len(staffing)

	for _, batch := range batches {
		if len(batch.Cases) == 0 {
			continue
		}
		summary.Generated.CaseRows += len(batch.Cases)
		summary.Generated.EventRows += len(batch.Events)
		summary.Generated.CasePartFiles++
		summary.Generated.EventPartFiles++
		summary.Generated.MissingTimestamps += batch.Defects.MissingTimestamps
		summary.Generated.TZInconsistencies += batch.Defects.TZInconsistencies
		summary.Generated.LateArrivals += batch.Defects.LateArrivals
		summary.Generated.Duplicates += batch.Defects.Duplicates
		summary.Generated.DroppedMilestones += batch.Defects.DroppedMilestones

		metrics.CasesGenerated.Add(float64(len(batch.Cases)))
		metrics.EventsGenerated.Add(float64(len(batch.Events)))
	}
	metrics.DefectsInjected.WithLabelValues("missing_timestamp").Add(float64(summary.Generated.MissingTimestamps))
	metrics.DefectsInjected.WithLabelValues("tz_inconsistency").Add(float64(summary.Generated.TZInconsistencies))
	metrics.DefectsInjected.WithLabelValues("late_arrival").Add(float64(summary.Generated.LateArrivals))
	metrics.DefectsInjected.WithLabelValues("duplicate").Add(float64(summary.Generated.Duplicates))
	metrics.DefectsInjected.WithLabelValues("missing_milestone").Add(float64(summary.Generated.DroppedMilestones))

	tGen := time.Now()
	summary.RuntimeSeconds.Generate = tGen.Sub(t0).Seconds()

	loader, err := warehouse.NewLoader(s.cfg.Warehouse, s.logger)
	if err != nil {
		return nil, err
	}
	defer loader.Close()

	if err := loader.LoadAll(ctx, s.cfg.Output.BaseDir, s.cfg.Output.PartitionColumn); err != nil {
		return nil, err
	}
	for _, relation := range []string{
		storage.RelationCalendar, storage.RelationStaffing,
		storage.RelationCases, storage.RelationEvents,
	} {
		n, err := loader.Count(ctx, relation)
		if err != nil {
			return nil, err
		}
		summary.LoadedCounts[relation] = n
		metrics.RowsLoaded.WithLabelValues(relation).Add(float64(n))
	}

	dq, err := loader.MeasureDataQuality(ctx)
	if err != nil {
		return nil, err
	}
	summary.DataQuality = dq

	now := time.Now()
	summary.RuntimeSeconds.Load = now.Sub(tGen).Seconds()
	summary.RuntimeSeconds.EndToEnd = now.Sub(t0).Seconds()

	if err := s.writeSummary(summary); err != nil {
		return nil, err
	}

	s.logger.Info("run complete",
		zap.String("run_id", summary.RunID),
		zap.Int("case_rows", summary.Generated.CaseRows),
		zap.Int("event_rows", summary.Generated.EventRows),
		zap.Float64("end_to_end_seconds", summary.RuntimeSeconds.EndToEnd),
	)
	return summary, nil
}

// writeSummary persists the run summary JSON under the reports directory.
func (s *Simulator) writeSummary(summary *Summary) error {
	dir := s.cfg.Output.ReportsDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create reports directory: %w", err)
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("run_summary_%s.json", summary.Mode))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run summary: %w", err)
	}
	s.logger.Info("wrote run summary", zap.String("path", path))
	return nil
}
