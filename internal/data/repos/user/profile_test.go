package user

import (
	"context"
	"testing"

	"github.com/yungbote/pathfinder-backend/internal/data/repos/testutil"
	"github.com/yungbote/pathfinder-backend/internal/pkg/dbctx"
)

func TestUserProfileRepoEnsureIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewUserProfileRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, dbc.Ctx, tx, "profile-ensure")

	first, err := repo.Ensure(dbc, u.ID)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	second, err := repo.Ensure(dbc, u.ID)
	if err != nil {
		t.Fatalf("Ensure (again): %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("Ensure created a second profile: %s vs %s", first.ID, second.ID)
	}
	if first.Interests == nil || first.SavedItems == nil || first.BasicInformation == nil {
		t.Fatalf("expected normalized empty collections: %+v", first)
	}
	if first.FinishedOnboarding {
		t.Fatalf("new profile should not be onboarded")
	}
}

func TestUserProfileRepoUpdates(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewUserProfileRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, dbc.Ctx, tx, "profile-update")
	if _, err := repo.Ensure(dbc, u.ID); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	other := "win a hackathon"
	err := repo.UpdateFields(dbc, u.ID, ProfileFields{
		BasicInformation: map[string]any{"grade": "11"},
		Interests:        []string{"robotics"},
		Goals:            []string{"college"},
		OtherGoals:       &other,
	}, true)
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if err := repo.SetSavedItems(dbc, u.ID, []string{"x1", "x2"}); err != nil {
		t.Fatalf("SetSavedItems: %v", err)
	}

	got, err := repo.GetByUserIDForUpdate(dbc, u.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByUserIDForUpdate: prof=%v err=%v", got, err)
	}
	if !got.FinishedOnboarding {
		t.Fatalf("expected finished_onboarding")
	}
	if len(got.Interests) != 1 || got.Interests[0] != "robotics" {
		t.Fatalf("unexpected interests: %v", got.Interests)
	}
	if got.BasicInformation["grade"] != "11" {
		t.Fatalf("unexpected basic information: %v", got.BasicInformation)
	}
	if got.OtherGoals == nil || *got.OtherGoals != other {
		t.Fatalf("unexpected other goals: %v", got.OtherGoals)
	}
	if !got.HasSaved("x2") || got.HasSaved("x3") {
		t.Fatalf("unexpected saved items: %v", got.SavedItems)
	}

	missing, err := repo.GetByUserID(dbc, testutil.SeedUser(t, dbc.Ctx, tx, "profile-missing").ID)
	if err != nil || missing != nil {
		t.Fatalf("GetByUserID(no profile): prof=%v err=%v", missing, err)
	}
}
