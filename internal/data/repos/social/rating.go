package social

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/pathfinder-backend/internal/domain"
	"github.com/yungbote/pathfinder-backend/internal/pkg/dbctx"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
)

type RatingSummary struct {
	Average float64
	Count   int64
}

type UserRatingRepo interface {
	Upsert(dbc dbctx.Context, rating *types.UserRating) (*types.UserRating, error)
	GetByUserAndSuggestion(dbc dbctx.Context, userID, suggestionID uuid.UUID) (*types.UserRating, error)
	ListBySuggestion(dbc dbctx.Context, suggestionID uuid.UUID) ([]*types.UserRating, error)
	SummaryBySuggestion(dbc dbctx.Context, suggestionID uuid.UUID) (RatingSummary, error)
	CountByUserAndSuggestion(dbc dbctx.Context, userID, suggestionID uuid.UUID) (int64, error)
	FullDeleteByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) error
}

type userRatingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRatingRepo(db *gorm.DB, baseLog *logger.Logger) UserRatingRepo {
	repoLog := baseLog.With("repo", "UserRatingRepo")
	return &userRatingRepo{db: db, log: repoLog}
}

// Upsert writes the (user, suggestion) rating, replacing rating and comment
// when one exists. created_at is kept; image is only replaced when a new one
// is given.
func (r *userRatingRepo) Upsert(dbc dbctx.Context, rating *types.UserRating) (*types.UserRating, error) {
	if rating == nil {
		return nil, errors.New("rating is nil")
	}
	cols := []string{"rating", "comment", "updated_at"}
	if rating.Image != "" {
		cols = append(cols, "image")
	}
	now := time.Now().UTC()
	rating.CreatedAt = now
	rating.UpdatedAt = now
	err := dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "suggestion_id"}},
			DoUpdates: clause.AssignmentColumns(cols),
		}).
		Create(rating).Error
	if err != nil {
		return nil, err
	}
	return r.GetByUserAndSuggestion(dbc, rating.UserID, rating.SuggestionID)
}

func (r *userRatingRepo) GetByUserAndSuggestion(dbc dbctx.Context, userID, suggestionID uuid.UUID) (*types.UserRating, error) {
	var out types.UserRating
	err := dbc.Conn(r.db).Where("user_id = ? AND suggestion_id = ?", userID, suggestionID).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListBySuggestion returns every rating for a suggestion, newest first, with
// the reviewing user preloaded.
func (r *userRatingRepo) ListBySuggestion(dbc dbctx.Context, suggestionID uuid.UUID) ([]*types.UserRating, error) {
	var out []*types.UserRating
	err := dbc.Conn(r.db).
		Preload("User").
		Where("suggestion_id = ?", suggestionID).
		Order("created_at DESC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *userRatingRepo) SummaryBySuggestion(dbc dbctx.Context, suggestionID uuid.UUID) (RatingSummary, error) {
	var row struct {
		Average *float64
		Count   int64
	}
	err := dbc.Conn(r.db).
		Model(&types.UserRating{}).
		Select("AVG(rating) AS average, COUNT(*) AS count").
		Where("suggestion_id = ?", suggestionID).
		Scan(&row).Error
	if err != nil {
		return RatingSummary{}, err
	}
	out := RatingSummary{Count: row.Count}
	if row.Average != nil {
		out.Average = *row.Average
	}
	return out, nil
}

func (r *userRatingRepo) CountByUserAndSuggestion(dbc dbctx.Context, userID, suggestionID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.Conn(r.db).Model(&types.UserRating{}).
		Where("user_id = ? AND suggestion_id = ?", userID, suggestionID).
		Count(&n).Error
	return n, err
}

func (r *userRatingRepo) FullDeleteByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	return dbc.Conn(r.db).Where("user_id IN ?", userIDs).Delete(&types.UserRating{}).Error
}
