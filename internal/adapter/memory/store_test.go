package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldbook/fieldbook/internal/domain"
	"github.com/fieldbook/fieldbook/internal/ports"
)

func newReservation(date string, fields ...string) *domain.Reservation {
	return &domain.Reservation{Date: date, Start: "09:00", End: "10:00", Fields: fields, Group: "X"}
}

func TestStore_RollbackLeavesNoPartialState(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		require.NoError(t, repos.Reservations.Create(ctx, newReservation("2024-05-01", "A")))
		entry, err := domain.NewAuditEntry(domain.AuditActionCreate, map[string]string{"k": "v"})
		require.NoError(t, err)
		require.NoError(t, repos.Audit.Append(ctx, entry))
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := store.Repositories().Reservations.ListByDate(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Empty(t, rows)

	entries, err := store.Repositories().Audit.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_TransactionSeesOwnWritesOnly(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	inside := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
			_ = repos.Reservations.Create(ctx, newReservation("2024-05-01", "A"))
			rows, _ := repos.Reservations.ListByDate(ctx, "2024-05-01")
			assert.Len(t, rows, 1)
			close(inside)
			<-release
			return nil
		})
	}()

	<-inside
	rows, err := store.Repositories().Reservations.ListByDate(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Empty(t, rows, "uncommitted rows must be invisible")

	close(release)
	wg.Wait()

	rows, err = store.Repositories().Reservations.ListByDate(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestStore_UpdateMissingReturnsNotFound(t *testing.T) {
	store := NewStore()
	err := store.Repositories().Reservations.Update(context.Background(), &domain.Reservation{ID: 9999})
	assert.ErrorIs(t, err, domain.ErrReservationNotFound)
}

func TestStore_CommitRejectsUpdateOfConcurrentlyDeletedRow(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	res := newReservation("2024-05-01", "A")
	require.NoError(t, store.Repositories().Reservations.Create(ctx, res))

	err := store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		moved := res.Clone()
		moved.Start = "11:00"
		moved.End = "12:00"
		require.NoError(t, repos.Reservations.Update(ctx, moved))

		// another writer removes the row before this transaction commits
		require.NoError(t, store.Repositories().Reservations.Delete(ctx, res.ID))

		entry, err := domain.NewAuditEntry(domain.AuditActionUpdate, moved)
		require.NoError(t, err)
		return repos.Audit.Append(ctx, entry)
	})
	require.ErrorIs(t, err, domain.ErrReservationNotFound)

	rows, err := store.Repositories().Reservations.ListByDate(ctx, "2024-05-01")
	require.NoError(t, err)
	assert.Empty(t, rows)

	entries, err := store.Repositories().Audit.List(ctx)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, domain.AuditActionUpdate, e.Action)
	}
}

func TestStore_DeleteMissingIsNoop(t *testing.T) {
	store := NewStore()
	assert.NoError(t, store.Repositories().Reservations.Delete(context.Background(), 42))
}

func TestStore_ListByDatesOrdersByDateThenID(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	repo := store.Repositories().Reservations

	require.NoError(t, repo.Create(ctx, newReservation("2024-05-02", "A")))
	require.NoError(t, repo.Create(ctx, newReservation("2024-05-01", "A")))
	require.NoError(t, repo.Create(ctx, newReservation("2024-05-09", "A")))
	require.NoError(t, repo.Create(ctx, newReservation("2024-05-01", "B")))

	rows, err := repo.ListByDates(ctx, []string{"2024-05-01", "2024-05-02"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2024-05-01", rows[0].Date)
	assert.Equal(t, int64(2), rows[0].ID)
	assert.Equal(t, int64(4), rows[1].ID)
	assert.Equal(t, "2024-05-02", rows[2].Date)
}

func TestStore_AuditNewestFirstWithCommitTime(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	store := NewStore().WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})
	ctx := context.Background()

	for _, action := range []domain.AuditAction{domain.AuditActionCreate, domain.AuditActionUpdate, domain.AuditActionDelete} {
		action := action
		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
			entry, err := domain.NewAuditEntry(action, domain.DeletedDetail{ID: 1})
			require.NoError(t, err)
			return repos.Audit.Append(ctx, entry)
		}))
	}

	entries, err := store.Repositories().Audit.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.AuditActionDelete, entries[0].Action)
	assert.Equal(t, domain.AuditActionCreate, entries[2].Action)
	assert.True(t, entries[0].Time.After(entries[1].Time))
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	k.Lock("2024-05-01")

	acquired := make(chan struct{})
	go func() {
		k.Lock("2024-05-01")
		close(acquired)
		k.Unlock("2024-05-01")
	}()

	k.Lock("2024-05-02")
	k.Unlock("2024-05-02")

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(20 * time.Millisecond):
	}

	k.Unlock("2024-05-01")
	<-acquired
}
