package routing

import (
	"testing"

	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTenantID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func newTestRoot(t *testing.T) (*RoutingNode, uuid.UUID, uuid.UUID) {
	t.Helper()
	from, to := uuid.New(), uuid.New()
	node, err := NewRootNode(testTenantID, uuid.New(), from, to, InstructionRoutine, "")
	require.NoError(t, err)
	node.ClearDomainEvents()
	return node, from, to
}

func TestNewRootNode(t *testing.T) {
	docID := uuid.New()
	from, to := uuid.New(), uuid.New()

	tests := []struct {
		name      string
		docID     uuid.UUID
		from      uuid.UUID
		to        uuid.UUID
		kind      InstructionKind
		errorCode string
	}{
		{name: "valid root", docID: docID, from: from, to: to, kind: InstructionUrgent},
		{name: "self target", docID: docID, from: from, to: from, kind: InstructionUrgent, errorCode: CodeInvalidTarget},
		{name: "missing document", docID: uuid.Nil, from: from, to: to, kind: InstructionUrgent, errorCode: CodeValidation},
		{name: "missing recipient", docID: docID, from: from, to: uuid.Nil, kind: InstructionUrgent, errorCode: CodeValidation},
		{name: "unknown instruction", docID: docID, from: from, to: to, kind: "SHRED", errorCode: CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := NewRootNode(testTenantID, tt.docID, tt.from, tt.to, tt.kind, "note")
			if tt.errorCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.errorCode, shared.ErrorCode(err))
				assert.Nil(t, node)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, RootLevel, node.Level)
			assert.Equal(t, NodeStatusPending, node.Status)
			assert.Nil(t, node.ParentNodeID)
			assert.Nil(t, node.ReadAt)
			assert.Nil(t, node.CompletedAt)
			assert.Equal(t, 1, node.Version)
			assert.True(t, node.IsRoot())

			events := node.GetDomainEvents()
			require.Len(t, events, 1)
			created, ok := events[0].(*NodeCreatedEvent)
			require.True(t, ok)
			assert.Equal(t, tt.to, created.ToActorID)
			assert.Equal(t, node.ID, created.AggregateID())
		})
	}
}

func TestNewRootNode_NoteTooLong(t *testing.T) {
	long := make([]byte, MaxNoteLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := NewRootNode(testTenantID, uuid.New(), uuid.New(), uuid.New(), InstructionRoutine, string(long))
	assert.Equal(t, CodeValidation, shared.ErrorCode(err))
}

func TestRoutingNode_MarkRead(t *testing.T) {
	node, from, to := newTestRoot(t)

	err := node.MarkRead(from)
	assert.Equal(t, CodeForbidden, shared.ErrorCode(err))
	assert.Equal(t, NodeStatusPending, node.Status)

	require.NoError(t, node.MarkRead(to))
	assert.Equal(t, NodeStatusRead, node.Status)
	require.NotNil(t, node.ReadAt)
	assert.Equal(t, 2, node.Version)

	events := node.GetDomainEvents()
	require.Len(t, events, 1)
	changed := events[0].(*NodeStatusChangedEvent)
	assert.Equal(t, NodeStatusPending, changed.OldStatus)
	assert.Equal(t, NodeStatusRead, changed.NewStatus)

	err = node.MarkRead(to)
	assert.Equal(t, CodeInvalidTransition, shared.ErrorCode(err))
}

func TestRoutingNode_StartProcessing(t *testing.T) {
	node, _, to := newTestRoot(t)

	err := node.StartProcessing(to)
	assert.Equal(t, CodeInvalidTransition, shared.ErrorCode(err), "pending cannot start processing")

	require.NoError(t, node.MarkRead(to))
	require.NoError(t, node.StartProcessing(to))
	assert.Equal(t, NodeStatusInProgress, node.Status)

	err = node.StartProcessing(to)
	assert.Equal(t, CodeInvalidTransition, shared.ErrorCode(err), "repeat start is rejected")
}

func TestRoutingNode_Complete(t *testing.T) {
	tests := []struct {
		name  string
		setup func(n *RoutingNode, to uuid.UUID)
	}{
		{name: "from pending", setup: func(n *RoutingNode, to uuid.UUID) {}},
		{name: "from read", setup: func(n *RoutingNode, to uuid.UUID) { _ = n.MarkRead(to) }},
		{name: "from in progress", setup: func(n *RoutingNode, to uuid.UUID) {
			_ = n.MarkRead(to)
			_ = n.StartProcessing(to)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, _, to := newTestRoot(t)
			tt.setup(node, to)

			require.NoError(t, node.Complete(to))
			assert.Equal(t, NodeStatusCompleted, node.Status)
			require.NotNil(t, node.CompletedAt)
			assert.True(t, node.IsTerminal())
		})
	}
}

func TestRoutingNode_TerminalPrecedesActorCheck(t *testing.T) {
	node, from, to := newTestRoot(t)
	require.NoError(t, node.Complete(to))

	for _, actor := range []uuid.UUID{to, from, uuid.New()} {
		assert.Equal(t, CodeInvalidTransition, shared.ErrorCode(node.MarkRead(actor)))
		assert.Equal(t, CodeInvalidTransition, shared.ErrorCode(node.StartProcessing(actor)))
		assert.Equal(t, CodeInvalidTransition, shared.ErrorCode(node.Complete(actor)))
		_, err := node.Forward(actor, uuid.New(), InstructionRoutine, "", true)
		assert.Equal(t, CodeInvalidTransition, shared.ErrorCode(err))
	}
}

func TestRoutingNode_ActorPrecedesStateOnLiveNode(t *testing.T) {
	node, from, to := newTestRoot(t)
	stranger := uuid.New()

	// PENDING cannot start processing, but a stranger must not learn that
	assert.Equal(t, CodeForbidden, shared.ErrorCode(node.StartProcessing(stranger)))
	assert.Equal(t, CodeForbidden, shared.ErrorCode(node.StartProcessing(from)))
	assert.Equal(t, CodeInvalidTransition, shared.ErrorCode(node.StartProcessing(to)))

	require.NoError(t, node.MarkRead(to))
	require.NoError(t, node.StartProcessing(to))

	assert.Equal(t, CodeForbidden, shared.ErrorCode(node.MarkRead(stranger)))
	assert.Equal(t, CodeForbidden, shared.ErrorCode(node.StartProcessing(stranger)))
	assert.Equal(t, CodeInvalidTransition, shared.ErrorCode(node.MarkRead(to)))
	assert.Equal(t, NodeStatusInProgress, node.Status)
}

func TestRoutingNode_Forward(t *testing.T) {
	t.Run("creates child one level deeper", func(t *testing.T) {
		node, _, to := newTestRoot(t)
		require.NoError(t, node.MarkRead(to))
		node.ClearDomainEvents()
		next := uuid.New()

		child, err := node.Forward(to, next, InstructionUrgent, "please review", true)
		require.NoError(t, err)

		assert.Equal(t, NodeStatusForwarded, node.Status)
		assert.Equal(t, 3, node.Version)
		assert.Nil(t, node.CompletedAt)

		assert.Equal(t, 2, child.Level)
		require.NotNil(t, child.ParentNodeID)
		assert.Equal(t, node.ID, *child.ParentNodeID)
		assert.Equal(t, to, child.FromActorID)
		assert.Equal(t, next, child.ToActorID)
		assert.Equal(t, node.DocumentID, child.DocumentID)
		assert.Equal(t, node.TenantID, child.TenantID)
		assert.Equal(t, NodeStatusPending, child.Status)
		assert.Equal(t, "please review", child.Note)

		require.Len(t, node.GetDomainEvents(), 1)
		require.Len(t, child.GetDomainEvents(), 1)
		assert.Equal(t, EventTypeNodeCreated, child.GetDomainEvents()[0].EventType())
	})

	t.Run("non recipient is forbidden", func(t *testing.T) {
		node, from, _ := newTestRoot(t)
		_, err := node.Forward(from, uuid.New(), InstructionRoutine, "", true)
		assert.Equal(t, CodeForbidden, shared.ErrorCode(err))
		assert.Equal(t, NodeStatusPending, node.Status)
	})

	t.Run("bounce back rejected when forbidden", func(t *testing.T) {
		node, from, to := newTestRoot(t)
		_, err := node.Forward(to, from, InstructionRoutine, "", true)
		assert.Equal(t, CodeInvalidTarget, shared.ErrorCode(err))
		assert.Equal(t, NodeStatusPending, node.Status)
		assert.Equal(t, 1, node.Version)
	})

	t.Run("bounce back allowed when permitted", func(t *testing.T) {
		node, from, to := newTestRoot(t)
		child, err := node.Forward(to, from, InstructionRoutine, "", false)
		require.NoError(t, err)
		assert.Equal(t, from, child.ToActorID)
	})

	t.Run("self target rejected", func(t *testing.T) {
		node, _, to := newTestRoot(t)
		_, err := node.Forward(to, to, InstructionRoutine, "", true)
		assert.Equal(t, CodeInvalidTarget, shared.ErrorCode(err))
		assert.Equal(t, NodeStatusPending, node.Status)
	})
}

func TestRoutingNode_SpawnChildOnTerminalParent(t *testing.T) {
	node, _, to := newTestRoot(t)
	require.NoError(t, node.Complete(to))

	_, err := node.SpawnChild(to, uuid.New(), InstructionRoutine, "")
	assert.Equal(t, CodeParentNotForwardable, shared.ErrorCode(err))
}

func TestRoutingNode_Expected(t *testing.T) {
	node, _, to := newTestRoot(t)
	before := node.Expected()
	require.NoError(t, node.MarkRead(to))

	assert.Equal(t, ExpectedState{Status: NodeStatusPending, Version: 1}, before)
	assert.Equal(t, ExpectedState{Status: NodeStatusRead, Version: 2}, node.Expected())
}
