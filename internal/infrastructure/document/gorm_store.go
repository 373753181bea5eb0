// Package document resolves the letters being routed. Document metadata is
// owned by the intake system; the routing engine only reads it.
package document

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

// GormStore reads the documents table
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store on db
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// GetDocument returns the document or shared.ErrNotFound
func (s *GormStore) GetDocument(ctx context.Context, id uuid.UUID) (*routing.Document, error) {
	var row models.DocumentModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return row.ToDomain(), nil
}

var _ routing.DocumentStore = (*GormStore)(nil)
