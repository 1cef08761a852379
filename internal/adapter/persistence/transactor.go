package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fieldbook/fieldbook/internal/ports"
)

// PostgresTransactor runs units of work in a database transaction
type PostgresTransactor struct {
	db *sql.DB
}

// NewPostgresTransactor creates a transactor over an open connection pool
func NewPostgresTransactor(db *sql.DB) *PostgresTransactor {
	return &PostgresTransactor{db: db}
}

// WithinTx commits when fn returns nil and rolls back otherwise
func (t *PostgresTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) (err error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, repositoriesFor(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Repositories returns repositories running in autocommit mode
func (t *PostgresTransactor) Repositories() ports.Repositories {
	return repositoriesFor(t.db)
}

func repositoriesFor(q querier) ports.Repositories {
	return ports.Repositories{
		Reservations: NewPostgresReservationRepository(q),
		Audit:        NewPostgresAuditRepository(q),
		Locks:        &advisoryDateLocker{db: q},
	}
}

// advisoryDateLocker serializes admission per date with a transaction-scoped advisory lock.
// Outside a transaction the lock is released as soon as the statement ends.
type advisoryDateLocker struct {
	db querier
}

func (l *advisoryDateLocker) LockDate(ctx context.Context, date string) error {
	if _, err := l.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "reservation:"+date); err != nil {
		return fmt.Errorf("failed to acquire advisory lock for %s: %w", date, err)
	}
	return nil
}
