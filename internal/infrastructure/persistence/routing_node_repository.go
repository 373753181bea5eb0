package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/disposisi/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormRoutingNodeRepository implements routing.RoutingNodeRepository using
// GORM. Transitions are compare-and-set updates keyed on (id, tenant_id,
// status, version); zero affected rows means another writer got there first.
type GormRoutingNodeRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver
}

// NewGormRoutingNodeRepository creates a new GormRoutingNodeRepository
func NewGormRoutingNodeRepository(db *gorm.DB) *GormRoutingNodeRepository {
	return &GormRoutingNodeRepository{db: db}
}

// SetOutboxSaver makes every write also store the aggregate's pending domain
// events in the outbox, inside the same transaction
func (r *GormRoutingNodeRepository) SetOutboxSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// FindByID finds a node by ID within a tenant
func (r *GormRoutingNodeRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*routing.RoutingNode, error) {
	var model models.RoutingNodeModel
	if err := r.db.WithContext(ctx).
		Scopes(tenantScope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByDocument returns the whole chain of a document
func (r *GormRoutingNodeRepository) FindByDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]routing.RoutingNode, error) {
	var rows []models.RoutingNodeModel
	if err := r.db.WithContext(ctx).
		Scopes(tenantScope(tenantID)).
		Where("document_id = ?", documentID).
		Order("level ASC, created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainNodes(rows), nil
}

// FindByRecipient returns a page of an actor's inbox, newest first
func (r *GormRoutingNodeRepository) FindByRecipient(ctx context.Context, tenantID, actorID uuid.UUID, filter routing.InboxFilter) ([]routing.RoutingNode, int64, error) {
	page, pageSize := shared.NormalizePage(filter.Page, filter.PageSize)

	query := r.db.WithContext(ctx).
		Model(&models.RoutingNodeModel{}).
		Scopes(tenantScope(tenantID)).
		Where("to_actor_id = ?", actorID)
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.RoutingNodeModel
	if err := query.
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toDomainNodes(rows), total, nil
}

// Create inserts a new node
func (r *GormRoutingNodeRepository) Create(ctx context.Context, node *routing.RoutingNode) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertNode(tx, node); err != nil {
			return err
		}
		return r.saveEvents(ctx, tx, node)
	})
}

// Update persists a single-node transition guarded by expected
func (r *GormRoutingNodeRepository) Update(ctx context.Context, node *routing.RoutingNode, expected routing.ExpectedState) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := casUpdate(tx, node, expected); err != nil {
			return err
		}
		return r.saveEvents(ctx, tx, node)
	})
}

// Forward moves the parent to FORWARDED and inserts the child atomically
func (r *GormRoutingNodeRepository) Forward(ctx context.Context, parent *routing.RoutingNode, expected routing.ExpectedState, child *routing.RoutingNode) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := casUpdate(tx, parent, expected); err != nil {
			return err
		}
		if err := insertNode(tx, child); err != nil {
			// The unique parent index turns a second child into a lost race
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrConcurrencyConflict
			}
			return err
		}
		return r.saveEvents(ctx, tx, parent, child)
	})
}

func insertNode(tx *gorm.DB, node *routing.RoutingNode) error {
	if err := tx.Create(models.RoutingNodeModelFromDomain(node)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		return fmt.Errorf("failed to insert routing node: %w", err)
	}
	return nil
}

func casUpdate(tx *gorm.DB, node *routing.RoutingNode, expected routing.ExpectedState) error {
	result := tx.Model(&models.RoutingNodeModel{}).
		Where("id = ? AND tenant_id = ? AND status = ? AND version = ?",
			node.ID, node.TenantID, expected.Status, expected.Version).
		Updates(map[string]any{
			"status":       node.Status,
			"read_at":      node.ReadAt,
			"completed_at": node.CompletedAt,
			"version":      node.Version,
			"updated_at":   node.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update routing node: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func (r *GormRoutingNodeRepository) saveEvents(ctx context.Context, tx *gorm.DB, nodes ...*routing.RoutingNode) error {
	if r.outboxSaver == nil {
		return nil
	}
	var events []shared.DomainEvent
	for _, n := range nodes {
		events = append(events, n.GetDomainEvents()...)
	}
	if len(events) == 0 {
		return nil
	}
	if err := r.outboxSaver.SaveEvents(ctx, tx, events...); err != nil {
		return fmt.Errorf("failed to save events to outbox: %w", err)
	}
	return nil
}

func toDomainNodes(rows []models.RoutingNodeModel) []routing.RoutingNode {
	nodes := make([]routing.RoutingNode, len(rows))
	for i := range rows {
		nodes[i] = *rows[i].ToDomain()
	}
	return nodes
}
