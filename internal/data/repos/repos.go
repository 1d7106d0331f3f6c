package repos

import (
	"github.com/yungbote/pathfinder-backend/internal/data/repos/auth"
	"github.com/yungbote/pathfinder-backend/internal/data/repos/catalog"
	"github.com/yungbote/pathfinder-backend/internal/data/repos/social"
	"github.com/yungbote/pathfinder-backend/internal/data/repos/user"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type UserRepo = user.UserRepo
type UserProfileRepo = user.UserProfileRepo
type ProfileFields = user.ProfileFields

type UserTokenRepo = auth.UserTokenRepo
type UserIdentityRepo = auth.UserIdentityRepo

type SuggestionRepo = catalog.SuggestionRepo

type UserRatingRepo = social.UserRatingRepo
type RatingSummary = social.RatingSummary

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }
func NewUserProfileRepo(db *gorm.DB, baseLog *logger.Logger) UserProfileRepo {
	return user.NewUserProfileRepo(db, baseLog)
}

func NewUserTokenRepo(db *gorm.DB, baseLog *logger.Logger) UserTokenRepo {
	return auth.NewUserTokenRepo(db, baseLog)
}
func NewUserIdentityRepo(db *gorm.DB, baseLog *logger.Logger) UserIdentityRepo {
	return auth.NewUserIdentityRepo(db, baseLog)
}

func NewSuggestionRepo(db *gorm.DB, baseLog *logger.Logger) SuggestionRepo {
	return catalog.NewSuggestionRepo(db, baseLog)
}

func NewUserRatingRepo(db *gorm.DB, baseLog *logger.Logger) UserRatingRepo {
	return social.NewUserRatingRepo(db, baseLog)
}
