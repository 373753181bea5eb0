package models

import (
	"time"

	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/google/uuid"
)

// ActorModel is a directory entry. The directory is owned by the identity
// system; this service only reads it.
type ActorModel struct {
	BaseModel
	DisplayName string `gorm:"type:varchar(200);not null"`
	Role        string `gorm:"type:varchar(50);not null;index"`
	OrgUnit     string `gorm:"type:varchar(200)"`
	Active      bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (ActorModel) TableName() string {
	return "actors"
}

// ToDomain converts the row to a routing Actor
func (m *ActorModel) ToDomain() routing.Actor {
	return routing.Actor{
		ID:          m.ID,
		DisplayName: m.DisplayName,
		Role:        m.Role,
		OrgUnit:     m.OrgUnit,
	}
}

// DocumentModel is an incoming letter registered at intake
type DocumentModel struct {
	BaseModel
	Subject       string    `gorm:"type:varchar(500);not null"`
	Sender        string    `gorm:"type:varchar(200);not null"`
	ReceivedAt    time.Time `gorm:"not null"`
	AttachmentRef string    `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

// ToDomain converts the row to a routing Document
func (m *DocumentModel) ToDomain() *routing.Document {
	return &routing.Document{
		ID:            m.ID,
		Subject:       m.Subject,
		Sender:        m.Sender,
		ReceivedAt:    m.ReceivedAt,
		AttachmentRef: m.AttachmentRef,
	}
}

// NewActorModel builds a directory row, used when seeding
func NewActorModel(id uuid.UUID, displayName, role, orgUnit string) *ActorModel {
	now := time.Now()
	return &ActorModel{
		BaseModel:   BaseModel{ID: id, CreatedAt: now, UpdatedAt: now},
		DisplayName: displayName,
		Role:        role,
		OrgUnit:     orgUnit,
		Active:      true,
	}
}
