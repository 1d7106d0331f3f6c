package domain

import (
	"github.com/yungbote/pathfinder-backend/internal/domain/auth"
	"github.com/yungbote/pathfinder-backend/internal/domain/catalog"
	"github.com/yungbote/pathfinder-backend/internal/domain/social"
	"github.com/yungbote/pathfinder-backend/internal/domain/user"
)

type User = user.User
type UserProfile = user.UserProfile
type UserToken = auth.UserToken
type UserIdentity = auth.UserIdentity
type Suggestion = catalog.Suggestion
type UserRating = social.UserRating

const ProviderGoogle = auth.ProviderGoogle

// Models lists every persisted model in migration order.
func Models() []any {
	return []any{
		&User{},
		&UserProfile{},
		&UserToken{},
		&UserIdentity{},
		&Suggestion{},
		&UserRating{},
	}
}
