package event

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newOutboxEntries(t *testing.T, n int) []*shared.OutboxEntry {
	t.Helper()
	serializer := NewRoutingEventSerializer()
	base := time.Now().Add(-time.Hour)

	entries := make([]*shared.OutboxEntry, n)
	for i := range entries {
		event := routing.NewNodeCreatedEvent(newRootNode(t))
		payload, err := serializer.Serialize(event)
		require.NoError(t, err)
		entries[i] = shared.NewOutboxEntry(event, payload)
		entries[i].CreatedAt = base.Add(time.Duration(i) * time.Minute)
	}
	return entries
}

func ids(entries []*shared.OutboxEntry) []uuid.UUID {
	out := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestGormOutboxRepository_FindPending(t *testing.T) {
	ctx := context.Background()
	repo := NewGormOutboxRepository(newSQLiteDB(t))
	entries := newOutboxEntries(t, 3)
	require.NoError(t, repo.Save(ctx, entries[2], entries[0], entries[1]))

	pending, err := repo.FindPending(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{entries[0].ID, entries[1].ID}, ids(pending))
	assert.Equal(t, entries[0].Payload, pending[0].Payload)
}

func TestGormOutboxRepository_MarkProcessing(t *testing.T) {
	ctx := context.Background()
	repo := NewGormOutboxRepository(newSQLiteDB(t))
	entries := newOutboxEntries(t, 2)
	require.NoError(t, repo.Save(ctx, entries...))

	claimed, err := repo.MarkProcessing(ctx, ids(entries))
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	for _, e := range claimed {
		assert.Equal(t, shared.OutboxStatusProcessing, e.Status)
	}

	again, err := repo.MarkProcessing(ctx, ids(entries))
	require.NoError(t, err)
	assert.Empty(t, again, "entries already being processed are not claimed twice")

	pending, err := repo.FindPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGormOutboxRepository_UpdateAndRetry(t *testing.T) {
	ctx := context.Background()
	repo := NewGormOutboxRepository(newSQLiteDB(t))
	entries := newOutboxEntries(t, 1)
	require.NoError(t, repo.Save(ctx, entries...))

	claimed, err := repo.MarkProcessing(ctx, ids(entries))
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	entry := claimed[0]
	entry.MarkFailed("notifier unavailable")
	require.NoError(t, repo.Update(ctx, entry))

	due, err := repo.FindRetryable(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, due, "backoff has not elapsed")

	due, err = repo.FindRetryable(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].RetryCount)
	assert.Equal(t, "notifier unavailable", due[0].LastError)

	stored, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusFailed, stored.Status)
}

func TestGormOutboxRepository_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := NewGormOutboxRepository(newSQLiteDB(t))
	entries := newOutboxEntries(t, 3)
	require.NoError(t, repo.Save(ctx, entries...))

	old := time.Now().Add(-48 * time.Hour)
	entries[0].MarkSent()
	entries[0].ProcessedAt = &old
	require.NoError(t, repo.Update(ctx, entries[0]))
	entries[1].MarkSent()
	require.NoError(t, repo.Update(ctx, entries[1]))

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[shared.OutboxStatus]int64{
		shared.OutboxStatusSent:    1,
		shared.OutboxStatusPending: 1,
	}, counts)
}

func TestGormOutboxRepository_MarkProcessing_PostgresSkipsLockedRows(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "outbox_events" WHERE .* FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	claimed, err := NewGormOutboxRepository(db).MarkProcessing(context.Background(), []uuid.UUID{uuid.New()})
	require.NoError(t, err)
	assert.Empty(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
