package social

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/pathfinder-backend/internal/domain/catalog"
	"github.com/yungbote/pathfinder-backend/internal/domain/user"
)

const (
	MinRating = 1
	MaxRating = 5
)

// UserRating is a user's review of a suggestion; at most one per pair.
type UserRating struct {
	ID           uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_user_rating_pair,priority:1;column:user_id" json:"user_id"`
	User         *user.User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	SuggestionID uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_user_rating_pair,priority:2;index;column:suggestion_id" json:"suggestion_id"`
	Suggestion   *catalog.Suggestion `gorm:"constraint:OnDelete:CASCADE;foreignKey:SuggestionID;references:ID" json:"suggestion,omitempty"`
	Rating       int                 `gorm:"not null;column:rating;check:chk_user_rating_range,rating >= 1 AND rating <= 5" json:"rating"`
	Comment      string              `gorm:"column:comment" json:"comment"`
	Image        string              `gorm:"column:image" json:"image"`
	CreatedAt    time.Time           `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"not null" json:"updated_at"`
}

func (UserRating) TableName() string { return "user_rating" }

func (r *UserRating) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
