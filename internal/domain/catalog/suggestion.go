package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const ExternalIDMaxLen = 64

// Suggestion is one catalog entry (club, competition, program...). Rows are
// written by the catalog sync and are read-only everywhere else.
type Suggestion struct {
	ID          uuid.UUID                    `gorm:"type:uuid;primaryKey" json:"-"`
	ExternalID  string                       `gorm:"size:64;uniqueIndex;not null;column:external_id" json:"external_id"`
	Name        string                       `gorm:"not null;index;column:name" json:"name"`
	Category    datatypes.JSONSlice[string]  `gorm:"column:category" json:"category"`
	Description string                       `gorm:"column:description" json:"description"`
	URL         string                       `gorm:"column:url" json:"url"`
	Image       string                       `gorm:"column:image" json:"image"`
	Tags        datatypes.JSONSlice[string]  `gorm:"column:tags" json:"tags"`
	Embedding   datatypes.JSONSlice[float32] `gorm:"column:embedding" json:"-"`
	CreatedAt   time.Time                    `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt   time.Time                    `gorm:"not null" json:"-"`
}

func (Suggestion) TableName() string { return "suggestion" }

func (s *Suggestion) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Category == nil {
		s.Category = datatypes.JSONSlice[string]{}
	}
	if s.Tags == nil {
		s.Tags = datatypes.JSONSlice[string]{}
	}
	return nil
}
