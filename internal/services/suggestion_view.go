package services

import (
	"time"

	types "github.com/yungbote/pathfinder-backend/internal/domain"
)

// SuggestionView is the wire shape of a catalog item. Score is set only on
// personalized results and IsSaved only for authenticated callers.
type SuggestionView struct {
	ExternalID  string    `json:"external_id"`
	Name        string    `json:"name"`
	Category    []string  `json:"category"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Image       string    `json:"image"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	Score       *float64  `json:"score,omitempty"`
	IsSaved     *bool     `json:"is_saved,omitempty"`
}

func NewSuggestionView(s *types.Suggestion) SuggestionView {
	v := SuggestionView{
		ExternalID:  s.ExternalID,
		Name:        s.Name,
		Category:    []string(s.Category),
		Description: s.Description,
		URL:         s.URL,
		Image:       s.Image,
		Tags:        []string(s.Tags),
		CreatedAt:   s.CreatedAt,
	}
	if v.Category == nil {
		v.Category = []string{}
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	return v
}

// WithSaved annotates v against a saved set; a nil set leaves IsSaved unset.
func (v SuggestionView) WithSaved(saved map[string]struct{}) SuggestionView {
	if saved == nil {
		return v
	}
	_, ok := saved[v.ExternalID]
	v.IsSaved = &ok
	return v
}
