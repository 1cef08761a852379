package ports

import (
	"context"

	"github.com/fieldbook/fieldbook/internal/domain"
)

// ReservationRepository defines the interface for reservation persistence
type ReservationRepository interface {
	// Create saves a new reservation and assigns its ID
	Create(ctx context.Context, reservation *domain.Reservation) error

	// Update overwrites every column of the reservation with the same ID.
	// Returns domain.ErrReservationNotFound when no row matches.
	Update(ctx context.Context, reservation *domain.Reservation) error

	// Delete removes a reservation; a missing ID is not an error
	Delete(ctx context.Context, id int64) error

	// ListByDate retrieves all reservations on a date in insertion order
	ListByDate(ctx context.Context, date string) ([]*domain.Reservation, error)

	// ListByDates retrieves reservations on any of the dates, ordered by date then ID
	ListByDates(ctx context.Context, dates []string) ([]*domain.Reservation, error)
}

// AuditRepository defines the interface for audit log persistence
type AuditRepository interface {
	// Append stores a new entry and stamps its commit time
	Append(ctx context.Context, entry *domain.AuditEntry) error

	// List retrieves all entries, newest first
	List(ctx context.Context) ([]*domain.AuditEntry, error)
}

// DateLocker serializes admission checks for a single date.
// The lock is held until the surrounding transaction ends.
type DateLocker interface {
	LockDate(ctx context.Context, date string) error
}

// Repositories groups the repositories bound to one transaction (or to none, for reads)
type Repositories struct {
	Reservations ReservationRepository
	Audit        AuditRepository
	Locks        DateLocker
}

// Transactor runs a unit of work atomically
type Transactor interface {
	// WithinTx commits when fn returns nil and rolls back otherwise
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error

	// Repositories returns non-transactional repositories for read paths
	Repositories() Repositories
}
