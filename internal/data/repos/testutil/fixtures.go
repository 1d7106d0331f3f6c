package testutil

import (
	"context"
	"strings"
	"testing"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/pathfinder-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, username string) *types.User {
	tb.Helper()
	u := &types.User{
		Username: username,
		Email:    strings.ToLower(username) + "@example.com",
		Password: "pw",
		Name:     username,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedProfile(tb testing.TB, ctx context.Context, tx *gorm.DB, u *types.User, interests, goals []string) *types.UserProfile {
	tb.Helper()
	p := &types.UserProfile{
		UserID:             u.ID,
		BasicInformation:   datatypes.JSONMap{},
		Interests:          datatypes.NewJSONSlice(interests),
		Goals:              datatypes.NewJSONSlice(goals),
		FinishedOnboarding: true,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed profile: %v", err)
	}
	return p
}

func SeedSuggestion(tb testing.TB, ctx context.Context, tx *gorm.DB, externalID, name string) *types.Suggestion {
	tb.Helper()
	s := &types.Suggestion{
		ExternalID:  externalID,
		Name:        name,
		Category:    datatypes.NewJSONSlice([]string{"Program"}),
		Description: name + " description",
		Tags:        datatypes.NewJSONSlice([]string{}),
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed suggestion: %v", err)
	}
	return s
}
