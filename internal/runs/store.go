package runs

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Record is one row of the run index.
type Record struct {
	RunID         string
	RunName       string
	SaveDir       string
	SourceDomains []string
	TargetDomains []string
	Policy        string
	BatchSize     int
	Optimizer     string
	LR            float64
	Scheduler     string
	ResumedFrom   string
	StartedAt     time.Time
	CompletedAt   *time.Time
}

// EpochMetrics is one recorded (run, epoch, split, domain) metric row.
type EpochMetrics struct {
	Epoch   int
	Split   string // "train" or "val"
	Domain  string // empty for the aggregate row
	Loss    float64
	SemLoss float64
	BEVLoss float64
}

// Store persists the run index in a sqlite database.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the run index at path and
// applies any pending schema migrations.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening run index %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging run index %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// migrateUp applies all pending migrations from the embedded sources.
func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}
	driver, err := sqlitemigrate.WithInstance(s.db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("creating sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	// Closing m would close the underlying DB connection; leave it to
	// be garbage collected.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// InsertRun records a starting run. A missing RunID is filled with a
// fresh UUID; the stored record is returned.
func (s *Store) InsertRun(rec Record) (Record, error) {
	if rec.RunID == "" {
		rec.RunID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	query := `
		INSERT INTO runs (
			run_id, run_name, save_dir, source_domains, target_domains,
			collation_policy, batch_size, optimizer, lr, scheduler,
			resumed_from, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(query,
			rec.RunID,
			rec.RunName,
			rec.SaveDir,
			strings.Join(rec.SourceDomains, ","),
			nullStr(strings.Join(rec.TargetDomains, ",")),
			rec.Policy,
			rec.BatchSize,
			nullStr(rec.Optimizer),
			rec.LR,
			nullStr(rec.Scheduler),
			nullStr(rec.ResumedFrom),
			rec.StartedAt.UTC().Format(time.RFC3339),
		)
		return err
	})
	if err != nil {
		return Record{}, fmt.Errorf("inserting run %s: %w", rec.RunName, err)
	}
	return rec, nil
}

// CompleteRun stamps a run as finished.
func (s *Store) CompleteRun(runID string, at time.Time) error {
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`UPDATE runs SET completed_at = ? WHERE run_id = ?`,
			at.UTC().Format(time.RFC3339), runID)
		return err
	})
	if err != nil {
		return fmt.Errorf("completing run %s: %w", runID, err)
	}
	return nil
}

// RecordEpoch upserts one epoch's metrics for a run. Re-recording an
// epoch (after a resume that replays it) overwrites the earlier row.
func (s *Store) RecordEpoch(runID string, m EpochMetrics) error {
	query := `
		INSERT INTO epoch_metrics (run_id, epoch, split, domain, loss, sem_loss, bev_loss, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, epoch, split, domain) DO UPDATE SET
			loss = excluded.loss,
			sem_loss = excluded.sem_loss,
			bev_loss = excluded.bev_loss,
			recorded_at = excluded.recorded_at
	`
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(query,
			runID, m.Epoch, m.Split, m.Domain,
			m.Loss, m.SemLoss, m.BEVLoss,
			time.Now().UTC().Format(time.RFC3339),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("recording epoch %d of run %s: %w", m.Epoch, runID, err)
	}
	return nil
}

// GetRun fetches a run by id.
func (s *Store) GetRun(runID string) (Record, error) {
	row := s.db.QueryRow(`
		SELECT run_id, run_name, save_dir, source_domains, target_domains,
		       collation_policy, batch_size, optimizer, lr, scheduler,
		       resumed_from, started_at, completed_at
		FROM runs WHERE run_id = ?`, runID)
	return scanRun(row)
}

// LatestRun returns the most recently started run, or sql.ErrNoRows
// wrapped when the index is empty.
func (s *Store) LatestRun() (Record, error) {
	row := s.db.QueryRow(`
		SELECT run_id, run_name, save_dir, source_domains, target_domains,
		       collation_policy, batch_size, optimizer, lr, scheduler,
		       resumed_from, started_at, completed_at
		FROM runs ORDER BY started_at DESC LIMIT 1`)
	return scanRun(row)
}

// ListRuns returns all runs, most recent first.
func (s *Store) ListRuns() ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT run_id, run_name, save_dir, source_domains, target_domains,
		       collation_policy, batch_size, optimizer, lr, scheduler,
		       resumed_from, started_at, completed_at
		FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MetricSeries returns a run's aggregate metric rows for one split,
// ordered by epoch.
func (s *Store) MetricSeries(runID, split string) ([]EpochMetrics, error) {
	rows, err := s.db.Query(`
		SELECT epoch, split, domain, loss, COALESCE(sem_loss, 0), COALESCE(bev_loss, 0)
		FROM epoch_metrics
		WHERE run_id = ? AND split = ? AND domain = ''
		ORDER BY epoch`, runID, split)
	if err != nil {
		return nil, fmt.Errorf("loading %s metrics of run %s: %w", split, runID, err)
	}
	defer rows.Close()

	var out []EpochMetrics
	for rows.Next() {
		var m EpochMetrics
		if err := rows.Scan(&m.Epoch, &m.Split, &m.Domain, &m.Loss, &m.SemLoss, &m.BEVLoss); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Record, error) {
	var rec Record
	var sources string
	var targets, optimizer, scheduler, resumedFrom, completedAt sql.NullString
	var startedAt string
	err := row.Scan(&rec.RunID, &rec.RunName, &rec.SaveDir, &sources, &targets,
		&rec.Policy, &rec.BatchSize, &optimizer, &rec.LR, &scheduler,
		&resumedFrom, &startedAt, &completedAt)
	if err != nil {
		return Record{}, fmt.Errorf("scanning run: %w", err)
	}
	rec.SourceDomains = splitNonEmpty(sources)
	rec.TargetDomains = splitNonEmpty(targets.String)
	rec.Optimizer = optimizer.String
	rec.Scheduler = scheduler.String
	rec.ResumedFrom = resumedFrom.String
	if rec.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
		return Record{}, fmt.Errorf("parsing run start time %q: %w", startedAt, err)
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339, completedAt.String)
		if err != nil {
			return Record{}, fmt.Errorf("parsing run completion time %q: %w", completedAt.String, err)
		}
		rec.CompletedAt = &t
	}
	return rec, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
