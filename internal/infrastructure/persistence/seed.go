package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/disposisi/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Seed is a fixture of directory actors and registered documents, loaded
// from JSON for local runs
type Seed struct {
	Actors    []SeedActor    `json:"actors"`
	Documents []SeedDocument `json:"documents"`
}

// SeedActor is one directory entry in a seed file
type SeedActor struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	OrgUnit     string    `json:"org_unit"`
}

// SeedDocument is one registered letter in a seed file
type SeedDocument struct {
	ID            uuid.UUID `json:"id"`
	Subject       string    `json:"subject"`
	Sender        string    `json:"sender"`
	ReceivedAt    time.Time `json:"received_at"`
	AttachmentRef string    `json:"attachment_ref"`
}

// LoadSeed reads a seed file. An empty path yields an empty seed.
func LoadSeed(path string) (*Seed, error) {
	if path == "" {
		return &Seed{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	for i, a := range seed.Actors {
		if a.ID == uuid.Nil || a.DisplayName == "" {
			return nil, fmt.Errorf("seed actor %d: id and display_name are required", i)
		}
	}
	for i, d := range seed.Documents {
		if d.ID == uuid.Nil || d.Subject == "" {
			return nil, fmt.Errorf("seed document %d: id and subject are required", i)
		}
	}
	return &seed, nil
}

// RoutingActors returns the seed actors as directory entries
func (s *Seed) RoutingActors() []routing.Actor {
	out := make([]routing.Actor, 0, len(s.Actors))
	for _, a := range s.Actors {
		out = append(out, routing.Actor{
			ID:          a.ID,
			DisplayName: a.DisplayName,
			Role:        a.Role,
			OrgUnit:     a.OrgUnit,
		})
	}
	return out
}

// RoutingDocuments returns the seed documents as routing documents
func (s *Seed) RoutingDocuments() []routing.Document {
	out := make([]routing.Document, 0, len(s.Documents))
	for _, d := range s.Documents {
		out = append(out, routing.Document{
			ID:            d.ID,
			Subject:       d.Subject,
			Sender:        d.Sender,
			ReceivedAt:    d.ReceivedAt,
			AttachmentRef: d.AttachmentRef,
		})
	}
	return out
}

// Apply inserts the seed rows. Rows whose ID already exists are left alone,
// so applying the same seed twice is harmless.
func (s *Seed) Apply(ctx context.Context, db *gorm.DB) error {
	if len(s.Actors) == 0 && len(s.Documents) == 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ignore := tx.Clauses(clause.OnConflict{DoNothing: true})
		for _, a := range s.Actors {
			if err := ignore.Create(models.NewActorModel(a.ID, a.DisplayName, a.Role, a.OrgUnit)).Error; err != nil {
				return fmt.Errorf("failed to seed actor %s: %w", a.ID, err)
			}
		}
		now := time.Now()
		for _, d := range s.Documents {
			row := &models.DocumentModel{
				BaseModel:     models.BaseModel{ID: d.ID, CreatedAt: now, UpdatedAt: now},
				Subject:       d.Subject,
				Sender:        d.Sender,
				ReceivedAt:    d.ReceivedAt,
				AttachmentRef: d.AttachmentRef,
			}
			if row.ReceivedAt.IsZero() {
				row.ReceivedAt = now
			}
			if err := ignore.Create(row).Error; err != nil {
				return fmt.Errorf("failed to seed document %s: %w", d.ID, err)
			}
		}
		return nil
	})
}
