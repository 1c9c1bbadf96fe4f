// Package history keeps a record of modcheck runs in a SQL database. SQLite is
// the default for local use; PostgreSQL serves shared CI installations.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/modcheck/pkg/finding"
)

var historyTracer = otel.Tracer("modcheck/history")

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// DefaultLimit caps List when no limit is given.
const DefaultLimit = 20

// Run is one recorded run.
type Run struct {
	ID           string           `json:"id"`
	Root         string           `json:"root"`
	StartedAt    time.Time        `json:"startedAt"`
	Duration     time.Duration    `json:"duration"`
	Results      int              `json:"results"`
	Fixed        int              `json:"fixed"`
	Unfixed      int              `json:"unfixed"`
	ModuleErrors int              `json:"moduleErrors"`
	Failed       bool             `json:"failed"`
	Error        string           `json:"error,omitempty"`
	Findings     []finding.Result `json:"findings,omitempty"`
}

// Store persists runs.
type Store interface {
	Record(ctx context.Context, run *Run) error
	Latest(ctx context.Context) (*Run, error)
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, limit int) ([]*Run, error)
	Close() error
}

// NewRun summarizes an outcome for recording.
func NewRun(root string, o *finding.Outcome, startedAt time.Time, duration time.Duration) *Run {
	r := &Run{
		ID:           o.RunID,
		Root:         root,
		StartedAt:    startedAt.UTC(),
		Duration:     duration,
		Results:      len(o.Results),
		Fixed:        o.Fixed(),
		Unfixed:      o.Unfixed,
		ModuleErrors: len(o.ModuleErrors),
		Failed:       o.Failed(),
		Findings:     o.Results,
	}
	if o.Err != nil {
		r.Error = o.Err.Error()
	}
	return r
}

// SQLStore is a Store over database/sql.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and creates the tables if needed.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver == "" {
		driver = "sqlite3"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s history: %w", driver, err)
	}
	if driver == "sqlite3" {
		// one writer; an in-memory database also lives on a single connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s history: %w", driver, err)
	}
	s, err := NewSQLStore(db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database and ensures the schema exists.
func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	s := &SQLStore{db: db, driver: driver}
	if err := s.ensureTables(); err != nil {
		return nil, fmt.Errorf("failed to ensure history tables: %w", err)
	}
	return s, nil
}

func (s *SQLStore) ensureTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id VARCHAR(36) PRIMARY KEY,
		root TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		duration_ms BIGINT NOT NULL,
		results INTEGER NOT NULL,
		fixed INTEGER NOT NULL,
		unfixed INTEGER NOT NULL,
		module_errors INTEGER NOT NULL,
		failed BOOLEAN NOT NULL,
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS run_findings (
		run_id VARCHAR(36) NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		module TEXT NOT NULL,
		rule_id VARCHAR(100) NOT NULL,
		kind VARCHAR(20) NOT NULL,
		action VARCHAR(20) NOT NULL,
		dependency TEXT,
		configuration VARCHAR(100),
		source TEXT,
		message TEXT NOT NULL,
		line INTEGER NOT NULL,
		col INTEGER NOT NULL,
		fixed BOOLEAN NOT NULL,
		file TEXT,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
	`
	_, err := s.db.Exec(query)
	return err
}

var placeholderRe = regexp.MustCompile(`\$\d+`)

// rebind rewrites $N placeholders for drivers that expect '?'.
func (s *SQLStore) rebind(query string) string {
	if s.driver == "postgres" {
		return query
	}
	return placeholderRe.ReplaceAllString(query, "?")
}

// Record stores run and its findings in one transaction.
func (s *SQLStore) Record(ctx context.Context, run *Run) (err error) {
	ctx, span := historyTracer.Start(ctx, "history.Record", trace.WithAttributes(
		attribute.String("run_id", run.ID),
		attribute.Int("findings", len(run.Findings)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to record run")
		}
		span.End()
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO runs (id, root, started_at, duration_ms, results, fixed, unfixed, module_errors, failed, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`),
		run.ID, run.Root, run.StartedAt, run.Duration.Milliseconds(), run.Results, run.Fixed, run.Unfixed,
		run.ModuleErrors, run.Failed, nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	if len(run.Findings) > 0 {
		stmt, err := tx.PrepareContext(ctx, s.rebind(`
			INSERT INTO run_findings (run_id, seq, module, rule_id, kind, action, dependency, configuration,
				source, message, line, col, fixed, file)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`))
		if err != nil {
			return fmt.Errorf("failed to prepare finding insert: %w", err)
		}
		defer stmt.Close()

		for i, f := range run.Findings {
			var line, col int
			if f.Position != nil {
				line, col = f.Position.Row, f.Position.Column
			}
			if _, err := stmt.ExecContext(ctx, run.ID, i, f.Module, f.RuleID, f.Kind, f.Action,
				f.Dependency, f.Configuration, f.Source, f.Message, line, col, f.Fixed, f.File); err != nil {
				return fmt.Errorf("failed to insert finding of run %s: %w", run.ID, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return nil
}

const runColumns = `id, root, started_at, duration_ms, results, fixed, unfixed, module_errors, failed, error`

// Latest returns the most recent run with its findings.
func (s *SQLStore) Latest(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT 1`)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}
	if run.Findings, err = s.findings(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// Get returns the run with id and its findings.
func (s *SQLStore) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+runColumns+` FROM runs WHERE id = $1`), id)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}
	if run.Findings, err = s.findings(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// List returns up to limit runs, newest first, without findings.
func (s *SQLStore) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT $1`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLStore) findings(ctx context.Context, runID string) ([]finding.Result, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT module, rule_id, kind, action, dependency, configuration, source, message, line, col, fixed, file
		FROM run_findings WHERE run_id = $1 ORDER BY seq`), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load findings of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []finding.Result
	for rows.Next() {
		var (
			r                                    finding.Result
			dependency, configuration, src, file sql.NullString
			line, col                            int
		)
		if err := rows.Scan(&r.Module, &r.RuleID, &r.Kind, &r.Action, &dependency, &configuration, &src,
			&r.Message, &line, &col, &r.Fixed, &file); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		r.Dependency, r.Configuration, r.Source, r.File = dependency.String, configuration.String, src.String, file.String
		if line > 0 {
			r.Position = &finding.Position{Row: line, Column: col}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run        Run
		durationMS int64
		runErr     sql.NullString
	)
	err := row.Scan(&run.ID, &run.Root, &run.StartedAt, &durationMS, &run.Results, &run.Fixed, &run.Unfixed,
		&run.ModuleErrors, &run.Failed, &runErr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	run.Error = runErr.String
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the database.
func (s *SQLStore) Close() error { return s.db.Close() }

// Recorder records every finished run of a workspace.
type Recorder struct {
	store Store
	root  string
	log   logrus.FieldLogger
}

// NewRecorder creates a run observer writing into store.
func NewRecorder(store Store, root string, log logrus.FieldLogger) *Recorder {
	if log == nil {
		log = logrus.New()
	}
	return &Recorder{store: store, root: root, log: log}
}

// RunFinished records o. Failures are logged; history never fails a run.
func (r *Recorder) RunFinished(ctx context.Context, o *finding.Outcome, duration time.Duration) {
	run := NewRun(r.root, o, time.Now().Add(-duration), duration)
	if err := r.store.Record(ctx, run); err != nil {
		r.log.WithField("run_id", o.RunID).WithError(err).Warn("failed to record run history")
	}
}
