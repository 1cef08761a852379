package persistence

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/fieldbook/fieldbook/infrastructure/service/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationFile is one versioned SQL script
type MigrationFile struct {
	Version int
	Name    string
	Path    string
	Kind    string // up or down
}

// Migrator applies the embedded schema scripts and records them in schema_migrations
type Migrator struct {
	db     *sql.DB
	files  fs.FS
	logger logger.Logger
}

// NewMigrator creates a migrator over the embedded scripts
func NewMigrator(db *sql.DB, log logger.Logger) *Migrator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Migrator{db: db, files: migrationFS, logger: log}
}

// Up applies every up script not yet recorded, in ascending version order
func (m *Migrator) Up(ctx context.Context) error {
	files, err := m.prepare(ctx)
	if err != nil {
		return err
	}

	for _, f := range files {
		if f.Kind != "up" {
			continue
		}
		applied, err := m.alreadyApplied(ctx, f.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		m.logger.Info(ctx, "Applying migration", map[string]interface{}{
			"version": f.Version,
			"name":    f.Name,
		})
		if err := m.exec(ctx, f, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", f.Version, f.Name)
			return err
		}); err != nil {
			return fmt.Errorf("failed applying %s: %w", f.Path, err)
		}
	}
	return nil
}

// Down reverts every recorded migration, newest first
func (m *Migrator) Down(ctx context.Context) error {
	files, err := m.prepare(ctx)
	if err != nil {
		return err
	}

	var downs []MigrationFile
	for _, f := range files {
		if f.Kind == "down" {
			downs = append(downs, f)
		}
	}
	sort.Slice(downs, func(i, j int) bool { return downs[i].Version > downs[j].Version })

	for _, f := range downs {
		applied, err := m.alreadyApplied(ctx, f.Version)
		if err != nil {
			return err
		}
		if !applied {
			continue
		}

		m.logger.Info(ctx, "Reverting migration", map[string]interface{}{
			"version": f.Version,
			"name":    f.Name,
		})
		if err := m.exec(ctx, f, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = $1", f.Version)
			return err
		}); err != nil {
			return fmt.Errorf("failed reverting %s: %w", f.Path, err)
		}
	}
	return nil
}

func (m *Migrator) prepare(ctx context.Context) ([]MigrationFile, error) {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure schema_migrations: %w", err)
	}
	return LoadMigrationFiles(m.files, "migrations")
}

func (m *Migrator) alreadyApplied(ctx context.Context, version int) (bool, error) {
	var exists bool
	err := m.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version).Scan(&exists)
	return exists, err
}

// exec runs a script and its bookkeeping statement in one transaction
func (m *Migrator) exec(ctx context.Context, f MigrationFile, record func(tx *sql.Tx) error) error {
	body, err := fs.ReadFile(m.files, f.Path)
	if err != nil {
		return err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := record(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// LoadMigrationFiles lists the versioned scripts in dir sorted by version
func LoadMigrationFiles(fsys fs.FS, dir string) ([]MigrationFile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var files []MigrationFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		lower := strings.ToLower(name)
		if !strings.HasSuffix(lower, ".sql") {
			continue
		}

		kind := "up"
		if strings.HasSuffix(lower, ".down.sql") {
			kind = "down"
		}

		ver, migName, err := ParseVersionAndName(name)
		if err != nil {
			continue
		}

		files = append(files, MigrationFile{
			Version: ver,
			Name:    migName,
			Path:    dir + "/" + name,
			Kind:    kind,
		})
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

// ParseVersionAndName splits 001_create_reservations.up.sql into 1 and create_reservations
func ParseVersionAndName(filename string) (int, string, error) {
	parts := strings.SplitN(filename, "_", 2)
	if len(parts) < 2 || parts[0] == "" {
		return 0, "", errors.New("invalid filename")
	}
	for _, r := range parts[0] {
		if r < '0' || r > '9' {
			return 0, "", errors.New("invalid version")
		}
	}
	ver, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", err
	}

	name := parts[1]
	for _, suffix := range []string{".up.sql", ".down.sql", ".sql"} {
		if strings.HasSuffix(strings.ToLower(name), suffix) {
			name = name[:len(name)-len(suffix)]
			break
		}
	}
	return ver, name, nil
}
