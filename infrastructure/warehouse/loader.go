package warehouse

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/isectech/ops-simulator/config"
	"github.com/isectech/ops-simulator/infrastructure/storage"
)

// Loader bulk-ingests the generated partition files into the analytical
// warehouse and exposes the raw relations queryable by name. The default
// driver is the embedded sqlite3 store; postgres is supported for server
// deployments. Loading is one-shot: each relation's table is dropped and
// recreated, then filled inside a single transaction per relation.
type Loader struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Portable DDL: TEXT/INTEGER/REAL columns work identically under sqlite3 and
// postgres, and boolean flags are stored as 0/1 integers so AVG-based
// data-quality queries run unchanged on both drivers.
var tableDDL = map[string]string{
	storage.RelationCalendar: `CREATE TABLE calendar_dim (
		cal_date TEXT NOT NULL,
		dow INTEGER NOT NULL,
		is_weekend INTEGER NOT NULL,
		is_holiday INTEGER NOT NULL,
		holiday_name TEXT
	)`,
	storage.RelationStaffing: `CREATE TABLE staffing_schedule (
		shift_date TEXT NOT NULL,
		team_tz TEXT NOT NULL,
		shift_name TEXT NOT NULL,
		shift_start_hour INTEGER NOT NULL,
		shift_end_hour INTEGER NOT NULL,
		planned_agents INTEGER NOT NULL,
		shrinkage_rate REAL NOT NULL,
		deterioration_multiplier REAL NOT NULL,
		effective_agents INTEGER NOT NULL
	)`,
	storage.RelationCases: `CREATE TABLE cases (
		case_id TEXT NOT NULL,
		intake_ts TEXT NOT NULL,
		case_type TEXT NOT NULL,
		tier TEXT NOT NULL,
		team_tz TEXT NOT NULL,
		intake_date TEXT NOT NULL
	)`,
	storage.RelationEvents: `CREATE TABLE events_log (
		event_id TEXT NOT NULL,
		case_id TEXT NOT NULL,
		status TEXT NOT NULL,
		event_ts TEXT,
		ingestion_ts TEXT NOT NULL,
		event_tz TEXT NOT NULL,
		is_late_arriving INTEGER NOT NULL,
		is_duplicate INTEGER NOT NULL,
		intake_date TEXT NOT NULL
	)`,
}

// Relation column counts exclude the partition key, which the loader appends
// from the directory structure for partitioned relations.
var insertSQL = map[string]string{
	storage.RelationCalendar: `INSERT INTO calendar_dim
		(cal_date, dow, is_weekend, is_holiday, holiday_name)
		VALUES (?, ?, ?, ?, ?)`,
	storage.RelationStaffing: `INSERT INTO staffing_schedule
		(shift_date, team_tz, shift_name, shift_start_hour, shift_end_hour,
		 planned_agents, shrinkage_rate, deterioration_multiplier, effective_agents)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	storage.RelationCases: `INSERT INTO cases
		(case_id, intake_ts, case_type, tier, team_tz, intake_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
	storage.RelationEvents: `INSERT INTO events_log
		(event_id, case_id, status, event_ts, ingestion_ts, event_tz,
		 is_late_arriving, is_duplicate, intake_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
}

// NewLoader opens the warehouse connection.
func NewLoader(cfg config.WarehouseConfig, logger *zap.Logger) (*Loader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sqlx.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to warehouse (%s): %w", cfg.Driver, err)
	}
	return &Loader{db: db, logger: logger}, nil
}

// Close releases the warehouse connection.
func (l *Loader) Close() error {
	return l.db.Close()
}

// LoadAll replaces and reloads the four raw relations from the output base
// directory. Calendar and staffing load from their single files; cases and
// events load from hive-style partition directories, with the partition key
// recovered from each directory name and appended as the intake_date column.
func (l *Loader) LoadAll(ctx context.Context, baseDir, partitionCol string) error {
	for _, relation := range []string{storage.RelationCalendar, storage.RelationStaffing} {
		files, err := filepath.Glob(filepath.Join(baseDir, relation, "*.csv.lz4"))
		if err != nil {
			return fmt.Errorf("failed to locate %s files: %w", relation, err)
		}
		if err := l.loadRelation(ctx, relation, files, nil); err != nil {
			return err
		}
	}

	for _, relation := range []string{storage.RelationCases, storage.RelationEvents} {
		parts, err := storage.DiscoverPartitions(filepath.Join(baseDir, relation), partitionCol)
		if err != nil {
			return err
		}
		var files []string
		var keys []string
		for _, p := range parts {
			for _, f := range p.Files {
				files = append(files, f)
				keys = append(keys, p.Key)
			}
		}
		if err := l.loadRelation(ctx, relation, files, keys); err != nil {
			return err
		}
	}
	return nil
}

// loadRelation recreates one table and streams the given files into it inside
// a transaction. When keys is non-nil, keys[i] is the partition value appended
// to every row of files[i].
func (l *Loader) loadRelation(ctx context.Context, relation string, files, keys []string) error {
	if _, err := l.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", relation)); err != nil {
		return fmt.Errorf("failed to drop %s: %w", relation, err)
	}
	if _, err := l.db.ExecContext(ctx, tableDDL[relation]); err != nil {
		return fmt.Errorf("failed to create %s: %w", relation, err)
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin %s load: %w", relation, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, l.db.Rebind(insertSQL[relation]))
	if err != nil {
		return fmt.Errorf("failed to prepare %s insert: %w", relation, err)
	}
	defer stmt.Close()

	total := 0
	for i, file := range files {
		_, rows, err := storage.ReadFile(file)
		if err != nil {
			return err
		}
		for _, row := range rows {
			args := make([]interface{}, 0, len(row)+1)
			for col, v := range row {
				// Empty event_ts means the authoritative time is lost; store NULL.
				if relation == storage.RelationEvents && col == 3 && v == "" {
					args = append(args, nil)
					continue
				}
				args = append(args, v)
			}
			if keys != nil {
				args = append(args, keys[i])
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("failed to insert into %s from %s: %w", relation, file, err)
			}
			total++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s load: %w", relation, err)
	}
	l.logger.Info("loaded relation",
		zap.String("relation", relation),
		zap.Int("rows", total),
		zap.Int("files", len(files)),
	)
	return nil
}

// Count returns the row count of one relation.
func (l *Loader) Count(ctx context.Context, relation string) (int64, error) {
	if _, ok := tableDDL[relation]; !ok {
		return 0, fmt.Errorf("unknown relation %q", relation)
	}
	var n int64
	if err := l.db.GetContext(ctx, &n, fmt.Sprintf("SELECT COUNT(*) FROM %s", relation)); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", relation, err)
	}
	return n, nil
}

// DataQuality holds the realized defect percentages measured over the loaded
// events_log relation.
type DataQuality struct {
	MissingEventTSPct float64 `json:"events_missing_event_ts_pct"`
	DuplicatePct      float64 `json:"events_duplicate_flag_pct"`
	LateArrivingPct   float64 `json:"events_late_arriving_flag_pct"`
	TZInconsistentPct float64 `json:"events_tz_inconsistent_pct"`
}

// MeasureDataQuality computes the realized defect rates from events_log. These
// converge to the configured rates as batch size grows; they are diagnostics,
// never failures.
func (l *Loader) MeasureDataQuality(ctx context.Context) (*DataQuality, error) {
	dq := &DataQuality{}
	n, err := l.Count(ctx, storage.RelationEvents)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return dq, nil
	}
	queries := []struct {
		dest  *float64
		query string
	}{
		{&dq.MissingEventTSPct, `SELECT 100.0 * AVG(CASE WHEN event_ts IS NULL THEN 1.0 ELSE 0.0 END) FROM events_log`},
		{&dq.DuplicatePct, `SELECT 100.0 * AVG(CAST(is_duplicate AS REAL)) FROM events_log`},
		{&dq.LateArrivingPct, `SELECT 100.0 * AVG(CAST(is_late_arriving AS REAL)) FROM events_log`},
		{&dq.TZInconsistentPct, `SELECT 100.0 * AVG(CASE WHEN event_tz = 'INCONSISTENT' THEN 1.0 ELSE 0.0 END) FROM events_log`},
	}
	for _, q := range queries {
		if err := l.db.GetContext(ctx, q.dest, q.query); err != nil {
			return nil, fmt.Errorf("failed to measure data quality: %w", err)
		}
	}
	return dq, nil
}
