package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/pathfinder-backend/internal/data/repos/testutil"
	types "github.com/yungbote/pathfinder-backend/internal/domain"
	"github.com/yungbote/pathfinder-backend/internal/pkg/dbctx"
)

func TestUserTokenRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewUserTokenRepo(db, testutil.Logger(t))

	u := &types.User{Username: "usertokenrepo", Email: "usertokenrepo@example.com"}
	if err := tx.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	makeToken := func(access, refresh string, expires time.Time) *types.UserToken {
		return &types.UserToken{
			UserID:       u.ID,
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresAt:    expires,
		}
	}

	t1 := makeToken("access-1", "refresh-1", time.Now().Add(time.Hour))
	t2 := makeToken("access-2", "refresh-2", time.Now().Add(-time.Hour))
	if _, err := repo.Create(dbc, []*types.UserToken{t1, t2}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if tok, err := repo.GetByAccessToken(dbc, "access-1"); err != nil || tok == nil || tok.ID != t1.ID {
		t.Fatalf("GetByAccessToken: tok=%+v err=%v", tok, err)
	}
	if tok, err := repo.GetByRefreshToken(dbc, "refresh-1"); err != nil || tok == nil || tok.ID != t1.ID {
		t.Fatalf("GetByRefreshToken: tok=%+v err=%v", tok, err)
	}
	if tok, err := repo.GetByRefreshToken(dbc, "nope"); err != nil || tok != nil {
		t.Fatalf("GetByRefreshToken(missing): tok=%+v err=%v", tok, err)
	}
	if rows, err := repo.GetByUserIDs(dbc, []uuid.UUID{u.ID}); err != nil || len(rows) != 2 {
		t.Fatalf("GetByUserIDs: err=%v len=%d", err, len(rows))
	}

	n, err := repo.FullDeleteExpired(dbc, time.Now())
	if err != nil || n != 1 {
		t.Fatalf("FullDeleteExpired: n=%d err=%v", n, err)
	}
	if err := repo.FullDeleteByIDs(dbc, []uuid.UUID{t1.ID}); err != nil {
		t.Fatalf("FullDeleteByIDs: %v", err)
	}
	if err := repo.FullDeleteByUserIDs(dbc, []uuid.UUID{u.ID}); err != nil {
		t.Fatalf("FullDeleteByUserIDs: %v", err)
	}
	if rows, err := repo.GetByUserIDs(dbc, []uuid.UUID{u.ID}); err != nil || len(rows) != 0 {
		t.Fatalf("GetByUserIDs after delete: err=%v len=%d", err, len(rows))
	}
}

func TestUserIdentityRepoUpsert(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewUserIdentityRepo(db, testutil.Logger(t))

	u := &types.User{Username: "identityrepo", Email: "identityrepo@example.com"}
	if err := tx.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	id := &types.UserIdentity{UserID: u.ID, Provider: types.ProviderGoogle, ProviderSub: "sub-1", Email: "a@example.com"}
	if err := repo.Upsert(dbc, id); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	again := &types.UserIdentity{UserID: u.ID, Provider: types.ProviderGoogle, ProviderSub: "sub-1", Email: "b@example.com", EmailVerified: true}
	if err := repo.Upsert(dbc, again); err != nil {
		t.Fatalf("Upsert (again): %v", err)
	}

	got, err := repo.GetByProviderSub(dbc, types.ProviderGoogle, "sub-1")
	if err != nil || got == nil {
		t.Fatalf("GetByProviderSub: got=%v err=%v", got, err)
	}
	if got.Email != "b@example.com" || !got.EmailVerified {
		t.Fatalf("expected upsert to refresh email: %+v", got)
	}
	if missing, err := repo.GetByProviderSub(dbc, types.ProviderGoogle, "sub-2"); err != nil || missing != nil {
		t.Fatalf("GetByProviderSub(missing): got=%v err=%v", missing, err)
	}
}
