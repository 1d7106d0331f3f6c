package auth

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/pathfinder-backend/internal/domain"
	"github.com/yungbote/pathfinder-backend/internal/pkg/dbctx"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
)

type UserIdentityRepo interface {
	GetByProviderSub(dbc dbctx.Context, provider, sub string) (*types.UserIdentity, error)
	Upsert(dbc dbctx.Context, identity *types.UserIdentity) error
	FullDeleteByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) error
}

type userIdentityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserIdentityRepo(db *gorm.DB, baseLog *logger.Logger) UserIdentityRepo {
	repoLog := baseLog.With("repo", "UserIdentityRepo")
	return &userIdentityRepo{db: db, log: repoLog}
}

func (r *userIdentityRepo) GetByProviderSub(dbc dbctx.Context, provider, sub string) (*types.UserIdentity, error) {
	var out types.UserIdentity
	err := dbc.Conn(r.db).Where("provider = ? AND provider_sub = ?", provider, sub).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *userIdentityRepo) Upsert(dbc dbctx.Context, identity *types.UserIdentity) error {
	if identity == nil {
		return nil
	}
	return dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_sub"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "email_verified", "updated_at"}),
		}).
		Create(identity).Error
}

func (r *userIdentityRepo) FullDeleteByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	return dbc.Conn(r.db).Where("user_id IN ?", userIDs).Delete(&types.UserIdentity{}).Error
}
