package persistence

import (
	"context"
	"hash/fnv"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/google/uuid"
)

const memoryShardCount = 128

// memoryRow holds the current immutable snapshot of one node. The snapshot
// pointer is swapped atomically; hasChild is guarded by the node's shard.
type memoryRow struct {
	node     atomic.Pointer[routing.RoutingNode]
	hasChild bool
}

// MemoryRoutingNodeRepository keeps routing nodes in process memory.
//
// Compare-and-set on a node is serialized by one of 128 shard mutexes picked
// by an FNV-1a hash of the node ID, so transitions on different nodes rarely
// contend. The index lock guards the maps; a forward swaps the parent and
// inserts the child while holding it, so readers never see one without the
// other. Lock order is shard, then index.
type MemoryRoutingNodeRepository struct {
	shards [memoryShardCount]sync.Mutex

	mu          sync.RWMutex
	rows        map[uuid.UUID]*memoryRow
	byDocument  map[uuid.UUID][]uuid.UUID
	byRecipient map[uuid.UUID][]uuid.UUID
}

// NewMemoryRoutingNodeRepository creates an empty in-memory repository
func NewMemoryRoutingNodeRepository() *MemoryRoutingNodeRepository {
	return &MemoryRoutingNodeRepository{
		rows:        make(map[uuid.UUID]*memoryRow),
		byDocument:  make(map[uuid.UUID][]uuid.UUID),
		byRecipient: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (r *MemoryRoutingNodeRepository) shard(id uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write(id[:])
	return &r.shards[h.Sum32()%memoryShardCount]
}

func (r *MemoryRoutingNodeRepository) row(id uuid.UUID) *memoryRow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rows[id]
}

// FindByID finds a node by ID within a tenant
func (r *MemoryRoutingNodeRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*routing.RoutingNode, error) {
	row := r.row(id)
	if row == nil {
		return nil, shared.ErrNotFound
	}
	n := row.node.Load()
	if n.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return cloneNode(n), nil
}

// FindByDocument returns the whole chain of a document
func (r *MemoryRoutingNodeRepository) FindByDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]routing.RoutingNode, error) {
	out := r.collect(r.byDocument, documentID, tenantID, nil)
	sort.Slice(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return out, nil
}

// FindByRecipient returns a page of an actor's inbox, newest first
func (r *MemoryRoutingNodeRepository) FindByRecipient(ctx context.Context, tenantID, actorID uuid.UUID, filter routing.InboxFilter) ([]routing.RoutingNode, int64, error) {
	page, pageSize := shared.NormalizePage(filter.Page, filter.PageSize)

	out := r.collect(r.byRecipient, actorID, tenantID, func(n *routing.RoutingNode) bool {
		return len(filter.Statuses) == 0 || slices.Contains(filter.Statuses, n.Status)
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() > b.ID.String()
	})

	total := int64(len(out))
	start := (page - 1) * pageSize
	if start >= len(out) {
		return []routing.RoutingNode{}, total, nil
	}
	end := min(start+pageSize, len(out))
	return out[start:end], total, nil
}

// collect copies the indexed nodes of one tenant under the index read lock
func (r *MemoryRoutingNodeRepository) collect(
	index map[uuid.UUID][]uuid.UUID,
	key, tenantID uuid.UUID,
	keep func(*routing.RoutingNode) bool,
) []routing.RoutingNode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := index[key]
	out := make([]routing.RoutingNode, 0, len(ids))
	for _, id := range ids {
		n := r.rows[id].node.Load()
		if n.TenantID != tenantID || (keep != nil && !keep(n)) {
			continue
		}
		out = append(out, *cloneNode(n))
	}
	return out
}

// Create inserts a new node
func (r *MemoryRoutingNodeRepository) Create(ctx context.Context, node *routing.RoutingNode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rows[node.ID]; exists {
		return shared.ErrAlreadyExists
	}
	r.insertLocked(node)
	return nil
}

// Update persists a single-node transition guarded by expected
func (r *MemoryRoutingNodeRepository) Update(ctx context.Context, node *routing.RoutingNode, expected routing.ExpectedState) error {
	lock := r.shard(node.ID)
	lock.Lock()
	defer lock.Unlock()

	row, err := r.checkRow(node, expected)
	if err != nil {
		return err
	}
	row.node.Store(cloneNode(node))
	return nil
}

// Forward moves the parent to FORWARDED and inserts the child atomically
func (r *MemoryRoutingNodeRepository) Forward(ctx context.Context, parent *routing.RoutingNode, expected routing.ExpectedState, child *routing.RoutingNode) error {
	lock := r.shard(parent.ID)
	lock.Lock()
	defer lock.Unlock()

	row, err := r.checkRow(parent, expected)
	if err != nil {
		return err
	}
	if row.hasChild {
		return shared.ErrConcurrencyConflict
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rows[child.ID]; exists {
		return shared.ErrAlreadyExists
	}
	row.node.Store(cloneNode(parent))
	row.hasChild = true
	r.insertLocked(child)
	return nil
}

// checkRow compares the stored snapshot with expected; callers hold the shard
func (r *MemoryRoutingNodeRepository) checkRow(node *routing.RoutingNode, expected routing.ExpectedState) (*memoryRow, error) {
	row := r.row(node.ID)
	if row == nil {
		return nil, shared.ErrConcurrencyConflict
	}
	stored := row.node.Load()
	if stored.TenantID != node.TenantID || stored.Status != expected.Status || stored.Version != expected.Version {
		return nil, shared.ErrConcurrencyConflict
	}
	return row, nil
}

func (r *MemoryRoutingNodeRepository) insertLocked(node *routing.RoutingNode) {
	row := &memoryRow{}
	row.node.Store(cloneNode(node))
	r.rows[node.ID] = row
	r.byDocument[node.DocumentID] = append(r.byDocument[node.DocumentID], node.ID)
	r.byRecipient[node.ToActorID] = append(r.byRecipient[node.ToActorID], node.ID)
}

// cloneNode copies a node without its pending events so the store and its
// callers never share pointers
func cloneNode(n *routing.RoutingNode) *routing.RoutingNode {
	c := *n
	c.ClearDomainEvents()
	if n.ParentNodeID != nil {
		id := *n.ParentNodeID
		c.ParentNodeID = &id
	}
	if n.ReadAt != nil {
		t := *n.ReadAt
		c.ReadAt = &t
	}
	if n.CompletedAt != nil {
		t := *n.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
