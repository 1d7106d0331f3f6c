package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/pathfinder-backend/internal/data/repos"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
)

type Repos struct {
	User         repos.UserRepo
	UserProfile  repos.UserProfileRepo
	UserToken    repos.UserTokenRepo
	UserIdentity repos.UserIdentityRepo
	Suggestion   repos.SuggestionRepo
	UserRating   repos.UserRatingRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:         repos.NewUserRepo(db, log),
		UserProfile:  repos.NewUserProfileRepo(db, log),
		UserToken:    repos.NewUserTokenRepo(db, log),
		UserIdentity: repos.NewUserIdentityRepo(db, log),
		Suggestion:   repos.NewSuggestionRepo(db, log),
		UserRating:   repos.NewUserRatingRepo(db, log),
	}
}
