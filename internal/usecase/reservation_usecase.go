package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fieldbook/fieldbook/infrastructure/service/logger"
	"github.com/fieldbook/fieldbook/internal/domain"
	"github.com/fieldbook/fieldbook/internal/ports"
	"github.com/fieldbook/fieldbook/internal/validator"
)

// CreateReservationRequest represents the request to create a reservation
type CreateReservationRequest struct {
	Date   string   `json:"date" validate:"required,datetime=2006-01-02"`
	Start  string   `json:"start" validate:"required,timeofday"`
	End    string   `json:"end" validate:"required,timeofday"`
	Fields []string `json:"fields" validate:"required,min=1,dive,notblank"`
	Group  string   `json:"group" validate:"notblank"`
}

// UpdateReservationRequest represents the request to replace a reservation
type UpdateReservationRequest struct {
	ID     int64    `json:"id" validate:"gt=0"`
	Date   string   `json:"date" validate:"required,datetime=2006-01-02"`
	Start  string   `json:"start" validate:"required,timeofday"`
	End    string   `json:"end" validate:"required,timeofday"`
	Fields []string `json:"fields" validate:"required,min=1,dive,notblank"`
	Group  string   `json:"group" validate:"notblank"`
}

// Options tunes admission behaviour
type Options struct {
	// SerializeAdmission takes a per-date lock inside the create transaction,
	// closing the read-then-write race between concurrent creates.
	SerializeAdmission bool

	// RecheckOnUpdate runs the conflict checker against the new values on update.
	// Off by default: updates are applied unconditionally.
	RecheckOnUpdate bool
}

// ReservationUseCase owns admission and audit orchestration
type ReservationUseCase struct {
	tx        ports.Transactor
	publisher ports.EventPublisher
	validator *validator.RequestValidator
	logger    logger.Logger
	opts      Options
}

// NewReservationUseCase creates a new reservation use case
func NewReservationUseCase(
	tx ports.Transactor,
	publisher ports.EventPublisher,
	log logger.Logger,
	opts Options,
) *ReservationUseCase {
	if publisher == nil {
		publisher = ports.NoopEventPublisher{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ReservationUseCase{
		tx:        tx,
		publisher: publisher,
		validator: validator.New(),
		logger:    log.WithFields(map[string]interface{}{"component": "reservation_usecase"}),
		opts:      opts,
	}
}

// Create admits a new reservation if it does not collide with any reservation on the same date
func (uc *ReservationUseCase) Create(ctx context.Context, req CreateReservationRequest) (*domain.Reservation, error) {
	started := time.Now()

	if err := uc.validator.Struct(req); err != nil {
		return nil, err
	}
	candidate, err := domain.NewReservation(req.Date, req.Start, req.End, req.Fields, req.Group)
	if err != nil {
		return nil, err
	}

	var created *domain.Reservation
	err = uc.tx.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		if uc.opts.SerializeAdmission {
			if err := repos.Locks.LockDate(ctx, candidate.Date); err != nil {
				return fmt.Errorf("failed to lock date: %w", err)
			}
		}

		existing, err := repos.Reservations.ListByDate(ctx, candidate.Date)
		if err != nil {
			return fmt.Errorf("failed to load reservations: %w", err)
		}
		if clash := domain.FindConflict(candidate, existing); clash != nil {
			logger.LogReservationEvent(ctx, uc.logger, "create", 0, false, map[string]interface{}{
				"date":         candidate.Date,
				"fields":       candidate.Fields,
				"conflicts_id": clash.ID,
			})
			return domain.ErrReservationConflict
		}

		if err := repos.Reservations.Create(ctx, candidate); err != nil {
			return fmt.Errorf("failed to create reservation: %w", err)
		}
		if err := appendAudit(ctx, repos.Audit, domain.AuditActionCreate, candidate); err != nil {
			return err
		}
		created = candidate.Clone()
		return nil
	})
	if err != nil {
		uc.logFailure(ctx, "create", err)
		return nil, err
	}

	logger.LogReservationEvent(ctx, uc.logger, "create", created.ID, true, map[string]interface{}{"date": created.Date})
	logger.LogPerformance(ctx, uc.logger, "reservation.create", time.Since(started), nil)
	uc.publish(ctx, ports.EventTypeReservationCreated, created)
	return created, nil
}

// Update overwrites every attribute of an existing reservation
func (uc *ReservationUseCase) Update(ctx context.Context, req UpdateReservationRequest) (*domain.Reservation, error) {
	if err := uc.validator.Struct(req); err != nil {
		return nil, err
	}
	next, err := domain.NewReservation(req.Date, req.Start, req.End, req.Fields, req.Group)
	if err != nil {
		return nil, err
	}
	next.ID = req.ID

	var updated *domain.Reservation
	err = uc.tx.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		if uc.opts.RecheckOnUpdate && uc.opts.SerializeAdmission {
			if err := repos.Locks.LockDate(ctx, next.Date); err != nil {
				return fmt.Errorf("failed to lock date: %w", err)
			}
		}

		if err := repos.Reservations.Update(ctx, next); err != nil {
			if errors.Is(err, domain.ErrReservationNotFound) {
				return err
			}
			return fmt.Errorf("failed to update reservation: %w", err)
		}
		if uc.opts.RecheckOnUpdate {
			if err := uc.recheck(ctx, repos, next); err != nil {
				return err
			}
		}
		if err := appendAudit(ctx, repos.Audit, domain.AuditActionUpdate, next); err != nil {
			return err
		}
		updated = next.Clone()
		return nil
	})
	if err != nil {
		uc.logFailure(ctx, "update", err)
		return nil, err
	}

	logger.LogReservationEvent(ctx, uc.logger, "update", updated.ID, true, map[string]interface{}{"date": updated.Date})
	uc.publish(ctx, ports.EventTypeReservationUpdated, updated)
	return updated, nil
}

// recheck runs the admission check for an already staged update, ignoring the
// reservation itself. A conflict rolls the update back.
func (uc *ReservationUseCase) recheck(ctx context.Context, repos ports.Repositories, next *domain.Reservation) error {
	existing, err := repos.Reservations.ListByDate(ctx, next.Date)
	if err != nil {
		return fmt.Errorf("failed to load reservations: %w", err)
	}
	others := existing[:0:0]
	for _, e := range existing {
		if e.ID != next.ID {
			others = append(others, e)
		}
	}
	if domain.Conflicts(next, others) {
		return domain.ErrReservationConflict
	}
	return nil
}

// Delete removes a reservation. Deleting a missing ID succeeds and is still audited.
func (uc *ReservationUseCase) Delete(ctx context.Context, id int64) error {
	err := uc.tx.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		if err := repos.Reservations.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete reservation: %w", err)
		}
		return appendAudit(ctx, repos.Audit, domain.AuditActionDelete, domain.DeletedDetail{ID: id})
	})
	if err != nil {
		uc.logFailure(ctx, "delete", err)
		return err
	}

	logger.LogReservationEvent(ctx, uc.logger, "delete", id, true, nil)
	uc.publish(ctx, ports.EventTypeReservationDeleted, &domain.Reservation{ID: id})
	return nil
}

// ListByDate retrieves all reservations on a date
func (uc *ReservationUseCase) ListByDate(ctx context.Context, date string) ([]*domain.Reservation, error) {
	d, err := domain.ParseDate(date)
	if err != nil {
		return nil, err
	}
	reservations, err := uc.tx.Repositories().Reservations.ListByDate(ctx, d.Format(domain.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return nonNil(reservations), nil
}

// ListByWeek retrieves reservations on startDate and the six days after it
func (uc *ReservationUseCase) ListByWeek(ctx context.Context, startDate string) ([]*domain.Reservation, error) {
	dates, err := domain.WeekDates(startDate)
	if err != nil {
		return nil, err
	}
	reservations, err := uc.tx.Repositories().Reservations.ListByDates(ctx, dates)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return nonNil(reservations), nil
}

// ListAudit retrieves the audit trail, newest first
func (uc *ReservationUseCase) ListAudit(ctx context.Context) ([]*domain.AuditEntry, error) {
	entries, err := uc.tx.Repositories().Audit.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	if entries == nil {
		entries = []*domain.AuditEntry{}
	}
	return entries, nil
}

// Helper functions

func appendAudit(ctx context.Context, repo ports.AuditRepository, action domain.AuditAction, detail interface{}) error {
	entry, err := domain.NewAuditEntry(action, detail)
	if err != nil {
		return err
	}
	if err := repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (uc *ReservationUseCase) publish(ctx context.Context, eventType string, r *domain.Reservation) {
	event := ports.NewEvent(eventType, "reservation", strconv.FormatInt(r.ID, 10), map[string]interface{}{
		"date":   r.Date,
		"start":  r.Start,
		"end":    r.End,
		"fields": r.Fields,
		"group":  r.Group,
	}, 1)
	// The mutation is already committed; a publish failure is only logged.
	if err := uc.publisher.Publish(ctx, *event); err != nil {
		uc.logger.Warn(ctx, "Failed to publish reservation event", map[string]interface{}{
			"event_type": eventType,
			"error":      err.Error(),
		})
	}
}

func (uc *ReservationUseCase) logFailure(ctx context.Context, action string, err error) {
	var derr *domain.DomainError
	if errors.As(err, &derr) {
		uc.logger.Debug(ctx, "Reservation "+action+" refused", map[string]interface{}{"reason": derr.Message})
		return
	}
	uc.logger.Error(ctx, "Reservation "+action+" failed", err, nil)
}

func nonNil(rs []*domain.Reservation) []*domain.Reservation {
	if rs == nil {
		return []*domain.Reservation{}
	}
	return rs
}
