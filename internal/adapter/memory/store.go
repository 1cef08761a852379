// Package memory provides an in-process implementation of the persistence ports.
//
// Transactions stage their writes and apply them under a single lock at commit,
// so reads inside a transaction see committed state plus their own writes
// (read committed). Nothing serializes two transactions unless they take a date
// lock, which makes this store behave like the Postgres adapter under
// concurrent admission.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fieldbook/fieldbook/internal/domain"
	"github.com/fieldbook/fieldbook/internal/ports"
)

// Store holds committed reservations and audit entries
type Store struct {
	mu           sync.RWMutex
	reservations []*domain.Reservation
	audit        []*domain.AuditEntry

	nextID int64
	locks  *keyedMutex
	now    func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

// WithClock overrides the commit timestamp source
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// WithinTx runs fn against a staged transaction and commits if it returns nil
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	t := &tx{store: s}
	defer t.releaseLocks()

	if err := fn(ctx, t.repositories()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.commit()
}

// Repositories returns auto-committing repositories
func (s *Store) Repositories() ports.Repositories {
	t := &tx{store: s, autoCommit: true}
	return t.repositories()
}

type opKind int

const (
	opCreate opKind = iota
	opUpdate
	opDelete
)

type op struct {
	kind opKind
	res  *domain.Reservation
	id   int64
}

type tx struct {
	store      *Store
	autoCommit bool
	ops        []op
	audit      []*domain.AuditEntry
	held       []string
}

func (t *tx) repositories() ports.Repositories {
	return ports.Repositories{
		Reservations: &reservationRepo{tx: t},
		Audit:        &auditRepo{tx: t},
		Locks:        &dateLocker{tx: t},
	}
}

// view returns committed reservations with this transaction's staged ops applied
func (t *tx) view() []*domain.Reservation {
	t.store.mu.RLock()
	rows := make([]*domain.Reservation, 0, len(t.store.reservations)+len(t.ops))
	for _, r := range t.store.reservations {
		rows = append(rows, r.Clone())
	}
	t.store.mu.RUnlock()

	return applyOps(rows, t.ops)
}

func applyOps(rows []*domain.Reservation, ops []op) []*domain.Reservation {
	for _, o := range ops {
		switch o.kind {
		case opCreate:
			rows = append(rows, o.res.Clone())
		case opUpdate:
			for i, r := range rows {
				if r.ID == o.res.ID {
					rows[i] = o.res.Clone()
					break
				}
			}
		case opDelete:
			for i, r := range rows {
				if r.ID == o.id {
					rows = append(rows[:i], rows[i+1:]...)
					break
				}
			}
		}
	}
	return rows
}

func (t *tx) stage(o op) error {
	t.ops = append(t.ops, o)
	if t.autoCommit {
		return t.commit()
	}
	return nil
}

// commit applies the staged ops and audit entries, or nothing at all when an
// update targets a row that was deleted after it was staged.
func (t *tx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		t.ops = nil
		t.audit = nil
	}()

	if err := verifyOps(s.reservations, t.ops); err != nil {
		return err
	}

	s.reservations = applyOps(s.reservations, t.ops)
	stamp := s.now()
	for _, e := range t.audit {
		e.Time = stamp
		s.audit = append(s.audit, e)
	}
	return nil
}

func verifyOps(rows []*domain.Reservation, ops []op) error {
	live := make(map[int64]struct{}, len(rows))
	for _, r := range rows {
		live[r.ID] = struct{}{}
	}
	for _, o := range ops {
		switch o.kind {
		case opCreate:
			live[o.res.ID] = struct{}{}
		case opUpdate:
			if _, ok := live[o.res.ID]; !ok {
				return domain.ErrReservationNotFound
			}
		case opDelete:
			delete(live, o.id)
		}
	}
	return nil
}

func (t *tx) releaseLocks() {
	for _, date := range t.held {
		t.store.locks.Unlock(date)
	}
	t.held = nil
}

type reservationRepo struct {
	tx *tx
}

func (r *reservationRepo) Create(ctx context.Context, reservation *domain.Reservation) error {
	reservation.ID = atomic.AddInt64(&r.tx.store.nextID, 1)
	return r.tx.stage(op{kind: opCreate, res: reservation.Clone()})
}

func (r *reservationRepo) Update(ctx context.Context, reservation *domain.Reservation) error {
	found := false
	for _, existing := range r.tx.view() {
		if existing.ID == reservation.ID {
			found = true
			break
		}
	}
	if !found {
		return domain.ErrReservationNotFound
	}
	return r.tx.stage(op{kind: opUpdate, res: reservation.Clone()})
}

func (r *reservationRepo) Delete(ctx context.Context, id int64) error {
	return r.tx.stage(op{kind: opDelete, id: id})
}

func (r *reservationRepo) ListByDate(ctx context.Context, date string) ([]*domain.Reservation, error) {
	var out []*domain.Reservation
	for _, res := range r.tx.view() {
		if res.Date == date {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *reservationRepo) ListByDates(ctx context.Context, dates []string) ([]*domain.Reservation, error) {
	wanted := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		wanted[d] = struct{}{}
	}
	var out []*domain.Reservation
	for _, res := range r.tx.view() {
		if _, ok := wanted[res.Date]; ok {
			out = append(out, res)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type auditRepo struct {
	tx *tx
}

func (a *auditRepo) Append(ctx context.Context, entry *domain.AuditEntry) error {
	cp := *entry
	cp.Detail = append([]byte(nil), entry.Detail...)
	a.tx.audit = append(a.tx.audit, &cp)
	if a.tx.autoCommit {
		return a.tx.commit()
	}
	return nil
}

func (a *auditRepo) List(ctx context.Context) ([]*domain.AuditEntry, error) {
	s := a.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.AuditEntry, 0, len(s.audit))
	for i := len(s.audit) - 1; i >= 0; i-- {
		e := *s.audit[i]
		out = append(out, &e)
	}
	// Entries are appended in commit order; the stable sort only matters for an injected clock.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	return out, nil
}

type dateLocker struct {
	tx *tx
}

func (l *dateLocker) LockDate(ctx context.Context, date string) error {
	for _, held := range l.tx.held {
		if held == date {
			return nil
		}
	}
	l.tx.store.locks.Lock(date)
	if l.tx.autoCommit {
		l.tx.store.locks.Unlock(date)
		return nil
	}
	l.tx.held = append(l.tx.held, date)
	return nil
}
