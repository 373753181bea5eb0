package shared

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	BaseDomainEvent
}

func newTestEntry() *OutboxEntry {
	base := NewBaseDomainEvent("TestEvent", "Test", uuid.New(), uuid.New())
	return NewOutboxEntry(&testEvent{BaseDomainEvent: base}, []byte(`{}`))
}

func TestNewOutboxEntry(t *testing.T) {
	base := NewBaseDomainEvent("TestEvent", "Test", uuid.New(), uuid.New())
	evt := &testEvent{BaseDomainEvent: base}

	entry := NewOutboxEntry(evt, []byte(`{"a":1}`))

	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, evt.EventID(), entry.EventID)
	assert.Equal(t, evt.TenantID(), entry.TenantID)
	assert.Equal(t, "TestEvent", entry.EventType)
	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Equal(t, DefaultMaxRetries, entry.MaxRetries)
}

func TestOutboxEntry_MarkProcessing(t *testing.T) {
	tests := []struct {
		name        string
		status      OutboxStatus
		expectError bool
	}{
		{name: "pending", status: OutboxStatusPending},
		{name: "failed", status: OutboxStatusFailed},
		{name: "processing", status: OutboxStatusProcessing, expectError: true},
		{name: "sent", status: OutboxStatusSent, expectError: true},
		{name: "dead", status: OutboxStatusDead, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := newTestEntry()
			entry.Status = tt.status

			err := entry.MarkProcessing()
			if tt.expectError {
				assert.Error(t, err)
				assert.Equal(t, tt.status, entry.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, OutboxStatusProcessing, entry.Status)
		})
	}
}

func TestOutboxEntry_MarkFailed(t *testing.T) {
	t.Run("schedules retry with exponential backoff", func(t *testing.T) {
		entry := newTestEntry()

		before := time.Now()
		entry.MarkFailed("boom")
		require.NotNil(t, entry.NextRetryAt)
		assert.Equal(t, OutboxStatusFailed, entry.Status)
		assert.Equal(t, 1, entry.RetryCount)
		assert.Equal(t, "boom", entry.LastError)
		assert.True(t, entry.CanRetry())
		assert.WithinDuration(t, before.Add(time.Second), *entry.NextRetryAt, 500*time.Millisecond)

		entry.MarkFailed("boom again")
		assert.WithinDuration(t, before.Add(2*time.Second), *entry.NextRetryAt, 500*time.Millisecond)
	})

	t.Run("dead letters after max retries", func(t *testing.T) {
		entry := newTestEntry()
		for i := 0; i < DefaultMaxRetries; i++ {
			entry.MarkFailed("boom")
		}
		assert.True(t, entry.IsDead())
		assert.False(t, entry.CanRetry())
		assert.Nil(t, entry.NextRetryAt)
	})
}

func TestOutboxEntry_MarkSent(t *testing.T) {
	entry := newTestEntry()
	entry.MarkSent()

	assert.Equal(t, OutboxStatusSent, entry.Status)
	require.NotNil(t, entry.ProcessedAt)
}

func TestDomainError_Is(t *testing.T) {
	err := NewDomainError("NOT_FOUND", "routing node not found")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "NOT_FOUND", ErrorCode(err))
	assert.Equal(t, "", ErrorCode(assert.AnError))
}

func TestNormalizePage(t *testing.T) {
	page, size := NormalizePage(0, 0)
	assert.Equal(t, DefaultPage, page)
	assert.Equal(t, DefaultPageSize, size)

	page, size = NormalizePage(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, MaxPageSize, size)
}
