package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/yungbote/pathfinder-backend/internal/platform/apierr"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
	"github.com/yungbote/pathfinder-backend/internal/ranking"
)

// Ranker is satisfied by *ranking.Orchestrator.
type Ranker interface {
	Rank(ctx context.Context, userID uuid.UUID) (*ranking.Result, error)
}

type PersonalizationService interface {
	Personalized(ctx context.Context, page ranking.PageRequest) (ranking.Page[SuggestionView], error)
}

type personalizationService struct {
	log    *logger.Logger
	ranker Ranker
}

// NewPersonalizationService builds the personalized feed. ranker may be nil
// when no LLM is configured; every request then fails with 503.
func NewPersonalizationService(log *logger.Logger, ranker Ranker) PersonalizationService {
	return &personalizationService{
		log:    log.With("service", "PersonalizationService"),
		ranker: ranker,
	}
}

// Personalized pages through the caller's ranked catalog. is_saved comes from
// the profile loaded for this request, so it is current even on a cache hit.
func (s *personalizationService) Personalized(ctx context.Context, page ranking.PageRequest) (ranking.Page[SuggestionView], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return ranking.Page[SuggestionView]{}, err
	}
	if s.ranker == nil {
		return ranking.Page[SuggestionView]{}, apierr.New(http.StatusServiceUnavailable, apierr.CodeUnavailable, errors.New("personalized ranking is not configured"))
	}
	res, err := s.ranker.Rank(ctx, userID)
	if err != nil {
		ae := apierr.From(err)
		if !ae.Public() {
			s.log.Error("Personalized ranking failed", "user_id", userID, "error", err)
		}
		return ranking.Page[SuggestionView]{}, ae
	}
	saved := res.Profile.SavedSet()
	return ranking.MapPage(ranking.Paginate(res.Items, page), func(r ranking.Ranked) SuggestionView {
		v := NewSuggestionView(r.Suggestion).WithSaved(saved)
		v.Score = r.Score
		return v
	}), nil
}
