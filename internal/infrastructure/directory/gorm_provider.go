// Package directory resolves actors for the routing engine. The actor
// directory belongs to the identity system; every provider here is read-only.
package directory

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

// GormProvider reads the actors table
type GormProvider struct {
	db *gorm.DB
}

// NewGormProvider creates a provider on db
func NewGormProvider(db *gorm.DB) *GormProvider {
	return &GormProvider{db: db}
}

// GetActor returns the actor with id, active or not, so that history can
// still name people who have left
func (p *GormProvider) GetActor(ctx context.Context, id uuid.UUID) (*routing.Actor, error) {
	var row models.ActorModel
	if err := p.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load actor: %w", err)
	}
	actor := row.ToDomain()
	return &actor, nil
}

// ListActors returns active actors ordered by name
func (p *GormProvider) ListActors(ctx context.Context, excluding []uuid.UUID) ([]routing.Actor, error) {
	query := p.db.WithContext(ctx).Where("active = ?", true)
	if len(excluding) > 0 {
		query = query.Where("id NOT IN ?", excluding)
	}

	var rows []models.ActorModel
	if err := query.Order("display_name ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list actors: %w", err)
	}

	actors := make([]routing.Actor, len(rows))
	for i := range rows {
		actors[i] = rows[i].ToDomain()
	}
	return actors, nil
}

var _ routing.DirectoryProvider = (*GormProvider)(nil)
