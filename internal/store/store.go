package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/peakline/internal/peaks"
	"github.com/banshee-data/peakline/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists detection results to sqlite. The schema is managed by the
// embedded migrations; Open runs them before returning.
type Store struct {
	*sql.DB
	clock timeutil.Clock
}

// SetClock replaces the store's time source, for tests that pin computed_at.
func (s *Store) SetClock(c timeutil.Clock) { s.clock = c }

// Open opens (or creates) the results database and migrates it to the latest
// schema version.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	s := &Store{DB: db, clock: timeutil.RealClock{}}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenWithoutMigrations opens the database without touching the schema, for
// the migrate subcommand where the operator drives migrations explicitly.
func OpenWithoutMigrations(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	return &Store{DB: db, clock: timeutil.RealClock{}}, nil
}

// newMigrator builds a migrate instance over the embedded migration files.
// The instance must not be closed: that would close the underlying DB.
func (s *Store) newMigrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

// migrateUp applies all pending migrations. Already-current is not an error.
func (s *Store) migrateUp() error {
	m, err := s.newMigrator()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateUp applies all pending migrations.
func (s *Store) MigrateUp() error { return s.migrateUp() }

// MigrateDown rolls back one migration.
func (s *Store) MigrateDown() error {
	m, err := s.newMigrator()
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// MigrateVersion reports the current schema version and dirty flag. A fresh
// database reports version 0.
func (s *Store) MigrateVersion() (uint, bool, error) {
	m, err := s.newMigrator()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// GroupRecord is the stored form of one anomaly group.
type GroupRecord struct {
	UID           string          `json:"uid"`
	LineID        int             `json:"line_id"`
	Part          int             `json:"part"`
	PropertyGroup string          `json:"property_group"`
	Start         int             `json:"start"`
	End           int             `json:"end"`
	Azimuth       float64         `json:"azimuth"`
	ChannelCount  int             `json:"channel_count"`
	SubgroupCount int             `json:"subgroup_count"`
	Anomalies     []AnomalyRecord `json:"anomalies"`
}

// AnomalyRecord is the stored form of one anomaly.
type AnomalyRecord struct {
	ChannelUID  string  `json:"channel_uid"`
	Start       int     `json:"start"`
	InflectUp   int     `json:"inflect_up"`
	Peak        int     `json:"peak"`
	InflectDown int     `json:"inflect_down"`
	End         int     `json:"end"`
	Amplitude   float64 `json:"amplitude"`
}

// SaveLineResult replaces any stored rows for the result's (line, part) and
// writes the new groups and anomalies in one transaction.
func (s *Store) SaveLineResult(ctx context.Context, r *peaks.LineResult) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			// Rollback after commit reports ErrTxDone; anything else is a
			// real problem worth surfacing in logs via the caller's error.
			_ = err
		}
	}()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM anomalies WHERE group_uid IN (SELECT uid FROM anomaly_groups WHERE line_id = ? AND part = ?)`,
		r.LineID, r.Part); err != nil {
		return fmt.Errorf("clear prior anomalies: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM anomaly_groups WHERE line_id = ? AND part = ?`, r.LineID, r.Part); err != nil {
		return fmt.Errorf("clear prior groups: %w", err)
	}

	for _, g := range r.Groups {
		groupUID := uuid.NewString()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO anomaly_groups
				(uid, line_id, part, property_group, start_idx, end_idx, azimuth, channel_count, subgroup_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			groupUID, r.LineID, r.Part, g.PropertyGroup().Name,
			g.Start(), g.End(), g.Azimuth(), len(g.Anomalies()), g.NumSubgroups(),
		); err != nil {
			return fmt.Errorf("insert group: %w", err)
		}
		for _, a := range g.Anomalies() {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO anomalies
					(group_uid, channel_uid, start_idx, inflect_up, peak_idx, inflect_down, end_idx, amplitude)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				groupUID, a.Channel().UID().String(),
				a.Start, a.InflectUp, a.Peak, a.InflectDown, a.End, a.Amplitude,
			); err != nil {
				return fmt.Errorf("insert anomaly: %w", err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO line_results (line_id, part, group_count, computed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(line_id, part) DO UPDATE SET
			group_count = excluded.group_count,
			computed_at = excluded.computed_at`,
		r.LineID, r.Part, len(r.Groups), s.clock.Now().UTC(),
	); err != nil {
		return fmt.Errorf("upsert line result: %w", err)
	}

	return tx.Commit()
}

// GroupsForLine returns the stored groups of one line (all parts), anomalies
// included, ordered by part then start index.
func (s *Store) GroupsForLine(ctx context.Context, lineID int) ([]GroupRecord, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT uid, line_id, part, property_group, start_idx, end_idx, azimuth, channel_count, subgroup_count
		FROM anomaly_groups
		WHERE line_id = ?
		ORDER BY part, start_idx`, lineID)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var groups []GroupRecord
	for rows.Next() {
		var g GroupRecord
		if err := rows.Scan(&g.UID, &g.LineID, &g.Part, &g.PropertyGroup,
			&g.Start, &g.End, &g.Azimuth, &g.ChannelCount, &g.SubgroupCount); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range groups {
		anoms, err := s.anomaliesForGroup(ctx, groups[i].UID)
		if err != nil {
			return nil, err
		}
		groups[i].Anomalies = anoms
	}
	return groups, nil
}

func (s *Store) anomaliesForGroup(ctx context.Context, groupUID string) ([]AnomalyRecord, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT channel_uid, start_idx, inflect_up, peak_idx, inflect_down, end_idx, amplitude
		FROM anomalies
		WHERE group_uid = ?
		ORDER BY id`, groupUID)
	if err != nil {
		return nil, fmt.Errorf("query anomalies: %w", err)
	}
	defer rows.Close()

	var anoms []AnomalyRecord
	for rows.Next() {
		var a AnomalyRecord
		if err := rows.Scan(&a.ChannelUID, &a.Start, &a.InflectUp, &a.Peak,
			&a.InflectDown, &a.End, &a.Amplitude); err != nil {
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		anoms = append(anoms, a)
	}
	return anoms, rows.Err()
}

// Summary aggregates the stored results.
type Summary struct {
	Lines     int `json:"lines"`
	Parts     int `json:"parts"`
	Groups    int `json:"groups"`
	Anomalies int `json:"anomalies"`
}

// Summarize returns counts over everything stored.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	var sum Summary
	if err := s.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT line_id), COUNT(*) FROM line_results`).Scan(&sum.Lines, &sum.Parts); err != nil {
		return sum, fmt.Errorf("summarize line results: %w", err)
	}
	if err := s.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM anomaly_groups`).Scan(&sum.Groups); err != nil {
		return sum, fmt.Errorf("summarize groups: %w", err)
	}
	if err := s.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM anomalies`).Scan(&sum.Anomalies); err != nil {
		return sum, fmt.Errorf("summarize anomalies: %w", err)
	}
	return sum, nil
}
