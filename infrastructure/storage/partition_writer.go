package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pierrec/lz4/v4"
	"go.uber.org/zap"

	"github.com/isectech/ops-simulator/domain/entity"
)

// Relation directory names under the output base. The warehouse loads each of
// these as a table of the same name.
const (
	RelationCases    = "cases"
	RelationEvents   = "events_log"
	RelationCalendar = "calendar_dim"
	RelationStaffing = "staffing_schedule"
)

// TimeFormat is the on-disk timestamp encoding for all relations.
const TimeFormat = time.RFC3339Nano

// CasesHeader is the column order of the cases relation files.
var CasesHeader = []string{"case_id", "intake_ts", "case_type", "tier", "team_tz"}

// EventsHeader is the column order of the events_log relation files.
var EventsHeader = []string{
	"event_id", "case_id", "status", "event_ts", "ingestion_ts",
	"event_tz", "is_late_arriving", "is_duplicate",
}

// CalendarHeader is the column order of the calendar_dim relation file.
var CalendarHeader = []string{"cal_date", "dow", "is_weekend", "is_holiday", "holiday_name"}

// StaffingHeader is the column order of the staffing_schedule relation file.
var StaffingHeader = []string{
	"shift_date", "team_tz", "shift_name", "shift_start_hour", "shift_end_hour",
	"planned_agents", "shrinkage_rate", "deterioration_multiplier", "effective_agents",
}

// PartitionWriter persists generated batches as lz4-compressed CSV files. Case
// and event batches go into hive-style partition directories keyed by intake
// date; calendar and staffing are single files.
type PartitionWriter struct {
	baseDir      string
	partitionCol string
	logger       *zap.Logger
}

// NewPartitionWriter creates a writer rooted at baseDir.
func NewPartitionWriter(baseDir, partitionCol string, logger *zap.Logger) *PartitionWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PartitionWriter{baseDir: baseDir, partitionCol: partitionCol, logger: logger}
}

// RelationDir returns the directory holding one relation's files.
func (w *PartitionWriter) RelationDir(relation string) string {
	return filepath.Join(w.baseDir, relation)
}

// PartitionColumn returns the partition key column name.
func (w *PartitionWriter) PartitionColumn() string {
	return w.partitionCol
}

// ClearPartitions removes all existing partition directories for the cases and
// events relations, so a re-run fully replaces prior output instead of
// double-counting it.
func (w *PartitionWriter) ClearPartitions() error {
	for _, relation := range []string{RelationCases, RelationEvents} {
		dir := w.RelationDir(relation)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to list %s partitions: %w", relation, err)
		}
		for _, e := range entries {
			if !strings.HasPrefix(e.Name(), w.partitionCol+"=") {
				continue
			}
			if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
				return fmt.Errorf("failed to clear %s partition %s: %w", relation, e.Name(), err)
			}
		}
		w.logger.Debug("cleared prior partitions", zap.String("relation", relation))
	}
	return nil
}

// WriteCaseBatch writes one day's cases into its intake-date partition and
// returns the file path.
func (w *PartitionWriter) WriteCaseBatch(day string, cases []entity.CaseRecord) (string, error) {
	rows := make([][]string, 0, len(cases))
	for _, c := range cases {
		rows = append(rows, []string{
			c.CaseID,
			c.IntakeTS.Format(TimeFormat),
			c.CaseType,
			c.Tier,
			c.TeamTZ,
		})
	}
	name := fmt.Sprintf("cases_%s_n%d.csv.lz4", day, len(cases))
	return w.writePartitionFile(RelationCases, day, name, CasesHeader, rows)
}

// WriteEventBatch writes one day's events into its intake-date partition and
// returns the file path.
func (w *PartitionWriter) WriteEventBatch(day string, events []entity.EventRecord) (string, error) {
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		eventTS := ""
		if e.EventTS != nil {
			eventTS = e.EventTS.Format(TimeFormat)
		}
		rows = append(rows, []string{
			e.EventID,
			e.CaseID,
			e.Status,
			eventTS,
			e.IngestionTS.Format(TimeFormat),
			e.EventTZ,
			formatBool(e.IsLateArrival),
			formatBool(e.IsDuplicate),
		})
	}
	name := fmt.Sprintf("events_%s_rows%d.csv.lz4", day, len(events))
	return w.writePartitionFile(RelationEvents, day, name, EventsHeader, rows)
}

// WriteCalendar writes the full calendar dimension as a single file.
func (w *PartitionWriter) WriteCalendar(cal []entity.CalendarDay) (string, error) {
	rows := make([][]string, 0, len(cal))
	for _, d := range cal {
		rows = append(rows, []string{
			d.Date.Format("2006-01-02"),
			strconv.Itoa(d.DayOfWeek),
			formatBool(d.IsWeekend),
			formatBool(d.IsHoliday),
			d.HolidayName,
		})
	}
	path := filepath.Join(w.RelationDir(RelationCalendar), "calendar_dim.csv.lz4")
	return path, w.writeFile(path, CalendarHeader, rows)
}

// WriteStaffing writes the full staffing schedule as a single file.
func (w *PartitionWriter) WriteStaffing(staff []entity.StaffingShiftRecord) (string, error) {
	rows := make([][]string, 0, len(staff))
	for _, s := range staff {
		rows = append(rows, []string{
			s.ShiftDate.Format("2006-01-02"),
			s.TeamTZ,
			s.ShiftName,
			strconv.Itoa(s.ShiftStartHour),
			strconv.Itoa(s.ShiftEndHour),
			strconv.Itoa(s.PlannedAgents),
			strconv.FormatFloat(s.ShrinkageRate, 'f', -1, 64),
			strconv.FormatFloat(s.DeteriorationFactor, 'f', -1, 64),
			strconv.Itoa(s.EffectiveAgents),
		})
	}
	path := filepath.Join(w.RelationDir(RelationStaffing), "staffing_schedule.csv.lz4")
	return path, w.writeFile(path, StaffingHeader, rows)
}

func (w *PartitionWriter) writePartitionFile(relation, day, name string, header []string, rows [][]string) (string, error) {
	dir := filepath.Join(w.RelationDir(relation), fmt.Sprintf("%s=%s", w.partitionCol, day))
	path := filepath.Join(dir, name)
	if err := w.writeFile(path, header, rows); err != nil {
		return "", err
	}
	w.logger.Debug("wrote partition file",
		zap.String("relation", relation),
		zap.String("partition", day),
		zap.Int("rows", len(rows)),
	)
	return path, nil
}

func (w *PartitionWriter) writeFile(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	zw := lz4.NewWriter(f)
	cw := csv.NewWriter(zw)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header to %s: %w", path, err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row to %s: %w", path, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to close lz4 stream for %s: %w", path, err)
	}
	return f.Close()
}

// Partition describes one discovered partition of a relation: its key value
// (recovered from the directory name) and the data files inside.
type Partition struct {
	Key   string
	Files []string
}

// DiscoverPartitions walks a relation directory and recovers the partition key
// for each hive-style child directory. Partitions come back sorted by key so
// ingestion order is stable.
func DiscoverPartitions(dir, partitionCol string) ([]Partition, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions under %s: %w", dir, err)
	}

	parts := make([]Partition, 0, len(entries))
	prefix := partitionCol + "="
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		key := strings.TrimPrefix(e.Name(), prefix)
		files, err := filepath.Glob(filepath.Join(dir, e.Name(), "*.csv.lz4"))
		if err != nil {
			return nil, fmt.Errorf("failed to glob partition %s: %w", e.Name(), err)
		}
		sort.Strings(files)
		parts = append(parts, Partition{Key: key, Files: files})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Key < parts[j].Key })
	return parts, nil
}

// ReadFile decompresses and parses one lz4 CSV file, returning the header and
// data rows.
func ReadFile(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(lz4.NewReader(f))
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
