package user

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/pathfinder-backend/internal/domain"
	"github.com/yungbote/pathfinder-backend/internal/pkg/dbctx"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
)

// ProfileFields are the fingerprint-bearing fields written by onboarding.
type ProfileFields struct {
	BasicInformation map[string]any
	Interests        []string
	Goals            []string
	OtherGoals       *string
}

type UserProfileRepo interface {
	Ensure(dbc dbctx.Context, userID uuid.UUID) (*types.UserProfile, error)
	GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.UserProfile, error)
	GetByUserIDForUpdate(dbc dbctx.Context, userID uuid.UUID) (*types.UserProfile, error)
	UpdateFields(dbc dbctx.Context, userID uuid.UUID, fields ProfileFields, finishedOnboarding bool) error
	SetSavedItems(dbc dbctx.Context, userID uuid.UUID, items []string) error
	FullDeleteByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) error
}

type userProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserProfileRepo(db *gorm.DB, baseLog *logger.Logger) UserProfileRepo {
	repoLog := baseLog.With("repo", "UserProfileRepo")
	return &userProfileRepo{db: db, log: repoLog}
}

// Ensure creates an empty profile for userID unless one exists, then returns it.
// Safe to call concurrently.
func (r *userProfileRepo) Ensure(dbc dbctx.Context, userID uuid.UUID) (*types.UserProfile, error) {
	row := &types.UserProfile{UserID: userID}
	row.Normalize()
	if err := dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(row).Error; err != nil {
		return nil, err
	}
	prof, err := r.GetByUserID(dbc, userID)
	if err != nil {
		return nil, err
	}
	if prof == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return prof, nil
}

// GetByUserID returns nil when the user has no profile yet.
func (r *userProfileRepo) GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.UserProfile, error) {
	return r.get(dbc.Conn(r.db), userID)
}

// GetByUserIDForUpdate row-locks the profile on Postgres. Call inside a transaction.
func (r *userProfileRepo) GetByUserIDForUpdate(dbc dbctx.Context, userID uuid.UUID) (*types.UserProfile, error) {
	q := dbc.Conn(r.db)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.get(q, userID)
}

func (r *userProfileRepo) get(q *gorm.DB, userID uuid.UUID) (*types.UserProfile, error) {
	var prof types.UserProfile
	err := q.Where("user_id = ?", userID).First(&prof).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	prof.Normalize()
	return &prof, nil
}

func (r *userProfileRepo) UpdateFields(dbc dbctx.Context, userID uuid.UUID, fields ProfileFields, finishedOnboarding bool) error {
	basic := datatypes.JSONMap(fields.BasicInformation)
	if basic == nil {
		basic = datatypes.JSONMap{}
	}
	updates := map[string]any{
		"basic_information":   basic,
		"interests":           datatypes.NewJSONSlice(nonNil(fields.Interests)),
		"goals":               datatypes.NewJSONSlice(nonNil(fields.Goals)),
		"other_goals":         fields.OtherGoals,
		"finished_onboarding": finishedOnboarding,
	}
	res := dbc.Conn(r.db).Model(&types.UserProfile{}).Where("user_id = ?", userID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userProfileRepo) SetSavedItems(dbc dbctx.Context, userID uuid.UUID, items []string) error {
	res := dbc.Conn(r.db).Model(&types.UserProfile{}).
		Where("user_id = ?", userID).
		Update("saved_items", datatypes.NewJSONSlice(nonNil(items)))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userProfileRepo) FullDeleteByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	return dbc.Conn(r.db).Where("user_id IN ?", userIDs).Delete(&types.UserProfile{}).Error
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
