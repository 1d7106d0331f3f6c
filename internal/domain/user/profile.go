package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserProfile is owned by exactly one User. basic_information, interests,
// goals and other_goals together form the ranking fingerprint.
type UserProfile struct {
	ID                 uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             uuid.UUID                   `gorm:"type:uuid;uniqueIndex;not null;column:user_id" json:"user_id"`
	User               *User                       `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	BasicInformation   datatypes.JSONMap           `gorm:"column:basic_information" json:"basic_information"`
	Interests          datatypes.JSONSlice[string] `gorm:"column:interests" json:"interests"`
	Goals              datatypes.JSONSlice[string] `gorm:"column:goals" json:"goals"`
	OtherGoals         *string                     `gorm:"column:other_goals" json:"other_goals"`
	SavedItems         datatypes.JSONSlice[string] `gorm:"column:saved_items" json:"saved_items"`
	FinishedOnboarding bool                        `gorm:"not null;default:false;column:finished_onboarding" json:"finished_onboarding"`
	CreatedAt          time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time                   `gorm:"not null" json:"updated_at"`
}

func (UserProfile) TableName() string { return "user_profile" }

func (p *UserProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Normalize()
	return nil
}

// Normalize replaces nil collections with empty ones so that a fresh profile
// and one that went through a JSON round trip look the same.
func (p *UserProfile) Normalize() {
	if p.BasicInformation == nil {
		p.BasicInformation = datatypes.JSONMap{}
	}
	if p.Interests == nil {
		p.Interests = datatypes.JSONSlice[string]{}
	}
	if p.Goals == nil {
		p.Goals = datatypes.JSONSlice[string]{}
	}
	if p.SavedItems == nil {
		p.SavedItems = datatypes.JSONSlice[string]{}
	}
}

// HasSaved reports whether externalID is in the saved items list.
func (p *UserProfile) HasSaved(externalID string) bool {
	if p == nil {
		return false
	}
	for _, id := range p.SavedItems {
		if id == externalID {
			return true
		}
	}
	return false
}

// SavedSet returns the saved items as a set.
func (p *UserProfile) SavedSet() map[string]struct{} {
	out := map[string]struct{}{}
	if p == nil {
		return out
	}
	for _, id := range p.SavedItems {
		out[id] = struct{}{}
	}
	return out
}
