package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/fieldbook/fieldbook/internal/domain"
	"github.com/fieldbook/fieldbook/internal/ports"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const reservationColumns = `id, to_char(date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), fields, group_name`

// PostgresReservationRepository implements ReservationRepository using PostgreSQL
type PostgresReservationRepository struct {
	db querier
}

// NewPostgresReservationRepository creates a repository bound to a DB or a transaction
func NewPostgresReservationRepository(db querier) ports.ReservationRepository {
	return &PostgresReservationRepository{db: db}
}

// Create saves a new reservation and assigns its ID from the sequence
func (r *PostgresReservationRepository) Create(ctx context.Context, reservation *domain.Reservation) error {
	query := `
		INSERT INTO reservations (date, start_time, end_time, fields, group_name)
		VALUES ($1::date, $2::time, $3::time, $4, $5)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		reservation.Date,
		reservation.Start,
		reservation.End,
		pq.Array(reservation.Fields),
		reservation.Group,
	).Scan(&reservation.ID)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", translate(err))
	}

	return nil
}

// Update overwrites every column of an existing reservation
func (r *PostgresReservationRepository) Update(ctx context.Context, reservation *domain.Reservation) error {
	query := `
		UPDATE reservations
		SET date = $2::date, start_time = $3::time, end_time = $4::time,
			fields = $5, group_name = $6, updated_at = now()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		reservation.ID,
		reservation.Date,
		reservation.Start,
		reservation.End,
		pq.Array(reservation.Fields),
		reservation.Group,
	)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", translate(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrReservationNotFound
	}

	return nil
}

// Delete removes a reservation; zero affected rows is not an error
func (r *PostgresReservationRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	return nil
}

// ListByDate retrieves reservations on one date in insertion order
func (r *PostgresReservationRepository) ListByDate(ctx context.Context, date string) ([]*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE date = $1::date ORDER BY id`
	return r.query(ctx, query, date)
}

// ListByDates retrieves reservations on any of the given dates
func (r *PostgresReservationRepository) ListByDates(ctx context.Context, dates []string) ([]*domain.Reservation, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE date = ANY($1::date[]) ORDER BY date, id`
	return r.query(ctx, query, pq.Array(dates))
}

func (r *PostgresReservationRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", translate(err))
	}
	defer rows.Close()

	var reservations []*domain.Reservation

	for rows.Next() {
		var res domain.Reservation
		err := rows.Scan(
			&res.ID,
			&res.Date,
			&res.Start,
			&res.End,
			pq.Array(&res.Fields),
			&res.Group,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, &res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservations: %w", err)
	}

	return reservations, nil
}

// translate maps Postgres input errors onto domain validation errors
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code.Name() {
	case "invalid_datetime_format", "datetime_field_overflow", "check_violation":
		return domain.NewValidationError(pqErr.Message)
	}
	return err
}
