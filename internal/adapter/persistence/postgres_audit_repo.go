package persistence

import (
	"context"
	"fmt"

	"github.com/fieldbook/fieldbook/internal/domain"
	"github.com/fieldbook/fieldbook/internal/ports"
)

// PostgresAuditRepository implements AuditRepository using PostgreSQL
type PostgresAuditRepository struct {
	db querier
}

// NewPostgresAuditRepository creates a repository bound to a DB or a transaction
func NewPostgresAuditRepository(db querier) ports.AuditRepository {
	return &PostgresAuditRepository{db: db}
}

// Append inserts an audit entry stamped with the wall clock at insert time.
// now() would give every entry in one transaction the same timestamp.
func (r *PostgresAuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_log (id, time, action, detail)
		VALUES ($1, clock_timestamp(), $2, $3::jsonb)
		RETURNING time
	`

	err := r.db.QueryRowContext(ctx, query,
		entry.ID,
		string(entry.Action),
		string(entry.Detail),
	).Scan(&entry.Time)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// List retrieves every audit entry, newest first
func (r *PostgresAuditRepository) List(ctx context.Context) ([]*domain.AuditEntry, error) {
	query := `SELECT id, time, action, detail FROM audit_log ORDER BY time DESC, seq DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry

	for rows.Next() {
		var entry domain.AuditEntry
		var detail []byte

		if err := rows.Scan(&entry.ID, &entry.Time, &entry.Action, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Detail = detail
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}

	return entries, nil
}
