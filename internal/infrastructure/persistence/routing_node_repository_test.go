package persistence

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/disposisi/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newSQLiteDatabase opens a migrated in-memory SQLite database
func newSQLiteDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: ":memory:"}, nil)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newMockRoutingNodeRepository creates a GormRoutingNodeRepository with a mocked SQL connection
func newMockRoutingNodeRepository(t *testing.T) (*GormRoutingNodeRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return NewGormRoutingNodeRepository(gormDB), mock, mockDB
}

// repositories returns every RoutingNodeRepository implementation under test
func repositories(t *testing.T) map[string]routing.RoutingNodeRepository {
	return map[string]routing.RoutingNodeRepository{
		"gorm":   NewGormRoutingNodeRepository(newSQLiteDatabase(t).DB),
		"memory": NewMemoryRoutingNodeRepository(),
	}
}

func newRoot(t *testing.T, tenantID, documentID, to uuid.UUID) *routing.RoutingNode {
	t.Helper()
	node, err := routing.NewRootNode(tenantID, documentID, uuid.New(), to, routing.InstructionRoutine, "")
	require.NoError(t, err)
	return node
}

func TestRoutingNodeRepository_CreateAndFind(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tenantID := uuid.New()
			root := newRoot(t, tenantID, uuid.New(), uuid.New())

			require.NoError(t, repo.Create(ctx, root))

			got, err := repo.FindByID(ctx, tenantID, root.ID)
			require.NoError(t, err)
			assert.Equal(t, root.ID, got.ID)
			assert.Equal(t, root.DocumentID, got.DocumentID)
			assert.Equal(t, routing.NodeStatusPending, got.Status)
			assert.Equal(t, 1, got.Version)
			assert.Nil(t, got.ParentNodeID)
			assert.Empty(t, got.GetDomainEvents())

			_, err = repo.FindByID(ctx, uuid.New(), root.ID)
			assert.ErrorIs(t, err, shared.ErrNotFound, "other tenants cannot see the node")

			_, err = repo.FindByID(ctx, tenantID, uuid.New())
			assert.ErrorIs(t, err, shared.ErrNotFound)
		})
	}
}

func TestRoutingNodeRepository_Update(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tenantID := uuid.New()
			root := newRoot(t, tenantID, uuid.New(), uuid.New())
			require.NoError(t, repo.Create(ctx, root))

			expected := root.Expected()
			require.NoError(t, root.MarkRead(root.ToActorID))
			require.NoError(t, repo.Update(ctx, root, expected))

			got, err := repo.FindByID(ctx, tenantID, root.ID)
			require.NoError(t, err)
			assert.Equal(t, routing.NodeStatusRead, got.Status)
			assert.Equal(t, 2, got.Version)
			require.NotNil(t, got.ReadAt)
			assert.True(t, root.ReadAt.Equal(*got.ReadAt))

			t.Run("stale guard is a conflict", func(t *testing.T) {
				stale, err := repo.FindByID(ctx, tenantID, root.ID)
				require.NoError(t, err)
				require.NoError(t, stale.Complete(stale.ToActorID))

				err = repo.Update(ctx, stale, expected)
				assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

				current, err := repo.FindByID(ctx, tenantID, root.ID)
				require.NoError(t, err)
				assert.Equal(t, routing.NodeStatusRead, current.Status, "losing write must not apply")
			})
		})
	}
}

func TestRoutingNodeRepository_Forward(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tenantID := uuid.New()
			documentID := uuid.New()
			recipient := uuid.New()
			root := newRoot(t, tenantID, documentID, recipient)
			require.NoError(t, repo.Create(ctx, root))

			expected := root.Expected()
			child, err := root.Forward(recipient, uuid.New(), routing.InstructionCoordinate, "koordinasikan", true)
			require.NoError(t, err)
			require.NoError(t, repo.Forward(ctx, root, expected, child))

			chain, err := repo.FindByDocument(ctx, tenantID, documentID)
			require.NoError(t, err)
			require.Len(t, chain, 2)
			assert.Equal(t, root.ID, chain[0].ID)
			assert.Equal(t, routing.NodeStatusForwarded, chain[0].Status)
			assert.Equal(t, child.ID, chain[1].ID)
			require.NotNil(t, chain[1].ParentNodeID)
			assert.Equal(t, root.ID, *chain[1].ParentNodeID)
			assert.Equal(t, 2, chain[1].Level)

			t.Run("stale parent leaves no orphan child", func(t *testing.T) {
				other := newRoot(t, tenantID, documentID, recipient)
				require.NoError(t, repo.Create(ctx, other))
				guard := other.Expected()
				guard.Version++

				orphan, err := other.Forward(recipient, uuid.New(), routing.InstructionRoutine, "", true)
				require.NoError(t, err)
				err = repo.Forward(ctx, other, guard, orphan)
				assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

				_, err = repo.FindByID(ctx, tenantID, orphan.ID)
				assert.ErrorIs(t, err, shared.ErrNotFound)
				stored, err := repo.FindByID(ctx, tenantID, other.ID)
				require.NoError(t, err)
				assert.Equal(t, routing.NodeStatusPending, stored.Status)
			})
		})
	}
}

func TestRoutingNodeRepository_FindByDocumentOrder(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tenantID := uuid.New()
			documentID := uuid.New()

			first := newRoot(t, tenantID, documentID, uuid.New())
			second := newRoot(t, tenantID, documentID, uuid.New())
			second.CreatedAt = first.CreatedAt.Add(time.Second)
			require.NoError(t, repo.Create(ctx, second))
			require.NoError(t, repo.Create(ctx, first))

			expected := first.Expected()
			child, err := first.Forward(first.ToActorID, uuid.New(), routing.InstructionRoutine, "", true)
			require.NoError(t, err)
			require.NoError(t, repo.Forward(ctx, first, expected, child))

			// Unrelated document and tenant
			require.NoError(t, repo.Create(ctx, newRoot(t, tenantID, uuid.New(), uuid.New())))
			require.NoError(t, repo.Create(ctx, newRoot(t, uuid.New(), documentID, uuid.New())))

			chain, err := repo.FindByDocument(ctx, tenantID, documentID)
			require.NoError(t, err)
			require.Len(t, chain, 3)
			assert.Equal(t, first.ID, chain[0].ID)
			assert.Equal(t, second.ID, chain[1].ID)
			assert.Equal(t, child.ID, chain[2].ID)

			empty, err := repo.FindByDocument(ctx, tenantID, uuid.New())
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestRoutingNodeRepository_FindByRecipient(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tenantID := uuid.New()
			actor := uuid.New()
			base := time.Now().Truncate(time.Microsecond)

			var ids []uuid.UUID
			for i := range 5 {
				n := newRoot(t, tenantID, uuid.New(), actor)
				n.CreatedAt = base.Add(time.Duration(i) * time.Minute)
				if i%2 == 0 {
					require.NoError(t, n.MarkRead(actor))
				}
				require.NoError(t, repo.Create(ctx, n))
				ids = append(ids, n.ID)
			}
			require.NoError(t, repo.Create(ctx, newRoot(t, tenantID, uuid.New(), uuid.New())))

			page, total, err := repo.FindByRecipient(ctx, tenantID, actor, routing.InboxFilter{Page: 1, PageSize: 2})
			require.NoError(t, err)
			assert.Equal(t, int64(5), total)
			require.Len(t, page, 2)
			assert.Equal(t, ids[4], page[0].ID, "newest first")
			assert.Equal(t, ids[3], page[1].ID)

			last, _, err := repo.FindByRecipient(ctx, tenantID, actor, routing.InboxFilter{Page: 3, PageSize: 2})
			require.NoError(t, err)
			require.Len(t, last, 1)
			assert.Equal(t, ids[0], last[0].ID)

			pending, total, err := repo.FindByRecipient(ctx, tenantID, actor, routing.InboxFilter{
				Statuses: []routing.NodeStatus{routing.NodeStatusPending},
			})
			require.NoError(t, err)
			assert.Equal(t, int64(2), total)
			for _, n := range pending {
				assert.Equal(t, routing.NodeStatusPending, n.Status)
			}

			beyond, total, err := repo.FindByRecipient(ctx, tenantID, actor, routing.InboxFilter{Page: 9, PageSize: 2})
			require.NoError(t, err)
			assert.Empty(t, beyond)
			assert.Equal(t, int64(5), total)
		})
	}
}

// A forward and a complete race from the same observed snapshot; exactly one
// may win and the tree must stay consistent.
func TestRoutingNodeRepository_ConcurrentForwardAndComplete(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tenantID := uuid.New()
			documentID := uuid.New()
			recipient := uuid.New()
			root := newRoot(t, tenantID, documentID, recipient)
			require.NoError(t, repo.Create(ctx, root))

			for round := range 20 {
				node := newRoot(t, tenantID, documentID, recipient)
				require.NoError(t, repo.Create(ctx, node))

				forwarder, err := repo.FindByID(ctx, tenantID, node.ID)
				require.NoError(t, err)
				completer, err := repo.FindByID(ctx, tenantID, node.ID)
				require.NoError(t, err)

				var (
					wg         sync.WaitGroup
					start      = make(chan struct{})
					forwardErr error
					completeErr error
				)
				wg.Add(2)
				go func() {
					defer wg.Done()
					<-start
					expected := forwarder.Expected()
					child, err := forwarder.Forward(recipient, uuid.New(), routing.InstructionRoutine, "", true)
					if err != nil {
						forwardErr = err
						return
					}
					forwardErr = repo.Forward(ctx, forwarder, expected, child)
				}()
				go func() {
					defer wg.Done()
					<-start
					expected := completer.Expected()
					if err := completer.Complete(recipient); err != nil {
						completeErr = err
						return
					}
					completeErr = repo.Update(ctx, completer, expected)
				}()
				close(start)
				wg.Wait()

				wins := 0
				for _, err := range []error{forwardErr, completeErr} {
					if err == nil {
						wins++
					} else {
						assert.ErrorIs(t, err, shared.ErrConcurrencyConflict, "round %d", round)
					}
				}
				assert.Equal(t, 1, wins, "round %d", round)

				stored, err := repo.FindByID(ctx, tenantID, node.ID)
				require.NoError(t, err)
				if forwardErr == nil {
					assert.Equal(t, routing.NodeStatusForwarded, stored.Status)
				} else {
					assert.Equal(t, routing.NodeStatusCompleted, stored.Status)
				}
			}

			chain, err := repo.FindByDocument(ctx, tenantID, documentID)
			require.NoError(t, err)
			assert.NoError(t, routing.NewChain(chain).Verify())
		})
	}
}

func TestGormRoutingNodeRepository_UpdateSQL(t *testing.T) {
	t.Run("guards on id, tenant, status and version", func(t *testing.T) {
		repo, mock, mockDB := newMockRoutingNodeRepository(t)
		defer mockDB.Close()

		node := newRoot(t, uuid.New(), uuid.New(), uuid.New())
		expected := node.Expected()
		require.NoError(t, node.MarkRead(node.ToActorID))

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "routing_nodes" SET .* WHERE id = \$\d+ AND tenant_id = \$\d+ AND status = \$\d+ AND version = \$\d+`).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), routing.NodeStatusRead, sqlmock.AnyArg(), 2,
				node.ID, node.TenantID, routing.NodeStatusPending, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, repo.Update(context.Background(), node, expected))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero affected rows is a conflict", func(t *testing.T) {
		repo, mock, mockDB := newMockRoutingNodeRepository(t)
		defer mockDB.Close()

		node := newRoot(t, uuid.New(), uuid.New(), uuid.New())
		expected := node.Expected()
		require.NoError(t, node.Complete(node.ToActorID))

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "routing_nodes" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.Update(context.Background(), node, expected)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("forward skips the insert when the parent guard fails", func(t *testing.T) {
		repo, mock, mockDB := newMockRoutingNodeRepository(t)
		defer mockDB.Close()

		node := newRoot(t, uuid.New(), uuid.New(), uuid.New())
		expected := node.Expected()
		child, err := node.Forward(node.ToActorID, uuid.New(), routing.InstructionRoutine, "", true)
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "routing_nodes" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err = repo.Forward(context.Background(), node, expected, child)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

type recordingOutboxSaver struct {
	events []shared.DomainEvent
	err    error
}

func (s *recordingOutboxSaver) SaveEvents(_ context.Context, _ any, events ...shared.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, events...)
	return nil
}

func TestGormRoutingNodeRepository_OutboxSaver(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDatabase(t)
	repo := NewGormRoutingNodeRepository(db.DB)
	saver := &recordingOutboxSaver{}
	repo.SetOutboxSaver(saver)

	root := newRoot(t, uuid.New(), uuid.New(), uuid.New())
	require.NoError(t, repo.Create(ctx, root))
	require.Len(t, saver.events, 1)
	assert.Equal(t, routing.EventTypeNodeCreated, saver.events[0].EventType())

	root.ClearDomainEvents()
	expected := root.Expected()
	child, err := root.Forward(root.ToActorID, uuid.New(), routing.InstructionRoutine, "", true)
	require.NoError(t, err)
	require.NoError(t, repo.Forward(ctx, root, expected, child))
	assert.Len(t, saver.events, 3, "status change of the parent plus creation of the child")

	t.Run("outbox failure rolls the write back", func(t *testing.T) {
		saver.err = assert.AnError
		other := newRoot(t, uuid.New(), uuid.New(), uuid.New())
		err := repo.Create(ctx, other)
		assert.ErrorIs(t, err, assert.AnError)

		_, err = repo.FindByID(ctx, other.TenantID, other.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
