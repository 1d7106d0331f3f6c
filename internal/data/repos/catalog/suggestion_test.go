package catalog

import (
	"context"
	"testing"

	"gorm.io/datatypes"

	"github.com/yungbote/pathfinder-backend/internal/data/repos/testutil"
	types "github.com/yungbote/pathfinder-backend/internal/domain"
	"github.com/yungbote/pathfinder-backend/internal/pkg/dbctx"
)

func externalIDs(rows []*types.Suggestion) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ExternalID)
	}
	return out
}

func TestSuggestionRepoUpsertKeepsTags(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewSuggestionRepo(db, testutil.Logger(t))

	rows := []*types.Suggestion{
		{ExternalID: "robotics-club", Name: "Robotics Club", Description: "Build robots"},
		{ExternalID: "debate", Name: "Debate Team", Description: "Argue well"},
	}
	if err := repo.Upsert(dbc, rows); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.UpdateTags(dbc, "robotics-club", []string{"STEM", "Hands-on"}); err != nil {
		t.Fatalf("UpdateTags: %v", err)
	}

	again := []*types.Suggestion{
		{ExternalID: "robotics-club", Name: "Robotics Club", Description: "Build better robots"},
	}
	if err := repo.Upsert(dbc, again); err != nil {
		t.Fatalf("Upsert (again): %v", err)
	}

	got, err := repo.GetByExternalID(dbc, "robotics-club")
	if err != nil || got == nil {
		t.Fatalf("GetByExternalID: got=%v err=%v", got, err)
	}
	if got.Description != "Build better robots" {
		t.Fatalf("expected description to be refreshed, got %q", got.Description)
	}
	if len(got.Tags) != 2 {
		t.Fatalf("expected tags to survive upsert, got %v", got.Tags)
	}

	n, err := repo.Count(dbc)
	if err != nil || n != 2 {
		t.Fatalf("Count: n=%d err=%v", n, err)
	}

	untagged, err := repo.ListUntagged(dbc, 0)
	if err != nil {
		t.Fatalf("ListUntagged: %v", err)
	}
	if ids := externalIDs(untagged); len(ids) != 1 || ids[0] != "debate" {
		t.Fatalf("ListUntagged: unexpected %v", ids)
	}

	if err := repo.UpdateEmbedding(dbc, "debate", []float32{0.1, 0.2}); err != nil {
		t.Fatalf("UpdateEmbedding: %v", err)
	}
	noEmb, err := repo.ListWithoutEmbedding(dbc, 10)
	if err != nil {
		t.Fatalf("ListWithoutEmbedding: %v", err)
	}
	if ids := externalIDs(noEmb); len(ids) != 1 || ids[0] != "robotics-club" {
		t.Fatalf("ListWithoutEmbedding: unexpected %v", ids)
	}

	if err := repo.UpdateTags(dbc, "missing", nil); err == nil {
		t.Fatalf("UpdateTags on a missing row should fail")
	}
}

func TestSuggestionRepoListAndSearch(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewSuggestionRepo(db, testutil.Logger(t))

	testutil.SeedSuggestion(t, dbc.Ctx, tx, "b-2", "Beta")
	testutil.SeedSuggestion(t, dbc.Ctx, tx, "a-1", "Alpha")
	testutil.SeedSuggestion(t, dbc.Ctx, tx, "b-1", "Beta")
	s := testutil.SeedSuggestion(t, dbc.Ctx, tx, "c-1", "100% Gamma_Fund")
	if err := tx.Model(s).Update("tags", datatypes.NewJSONSlice([]string{"Scholarship"})).Error; err != nil {
		t.Fatalf("tag: %v", err)
	}

	all, err := repo.ListAll(dbc)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	want := []string{"c-1", "a-1", "b-1", "b-2"}
	got := externalIDs(all)
	if len(got) != len(want) {
		t.Fatalf("ListAll: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ListAll: got %v want %v", got, want)
		}
	}

	cases := []struct {
		query string
		want  int
	}{
		{"beta", 2},
		{"ALPHA", 1},
		{"scholarship", 1},
		{"100%", 1},
		{"gamma_", 1},
		{"%", 1},
		{"nothing-here", 0},
	}
	for _, tc := range cases {
		rows, err := repo.Search(dbc, tc.query)
		if err != nil {
			t.Fatalf("Search(%q): %v", tc.query, err)
		}
		if len(rows) != tc.want {
			t.Fatalf("Search(%q): got %v want %d rows", tc.query, externalIDs(rows), tc.want)
		}
	}

	byIDs, err := repo.GetByExternalIDs(dbc, []string{"a-1", "c-1", "zzz"})
	if err != nil || len(byIDs) != 2 {
		t.Fatalf("GetByExternalIDs: len=%d err=%v", len(byIDs), err)
	}
	if missing, err := repo.GetByExternalID(dbc, "zzz"); err != nil || missing != nil {
		t.Fatalf("GetByExternalID(missing): got=%v err=%v", missing, err)
	}
}

func TestSuggestionRepoFullDeleteNotIn(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewSuggestionRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, dbc.Ctx, tx, "pruner")
	keep := testutil.SeedSuggestion(t, dbc.Ctx, tx, "keep", "Keep")
	drop := testutil.SeedSuggestion(t, dbc.Ctx, tx, "drop", "Drop")
	if err := tx.Create(&types.UserRating{UserID: u.ID, SuggestionID: drop.ID, Rating: 4}).Error; err != nil {
		t.Fatalf("seed rating: %v", err)
	}

	if _, err := repo.FullDeleteNotIn(dbc, nil); err == nil {
		t.Fatalf("expected empty keep list to be refused")
	}

	n, err := repo.FullDeleteNotIn(dbc, []string{keep.ExternalID})
	if err != nil {
		t.Fatalf("FullDeleteNotIn: %v", err)
	}
	if n != 1 {
		t.Fatalf("FullDeleteNotIn: deleted %d, want 1", n)
	}
	var ratings int64
	if err := tx.Model(&types.UserRating{}).Count(&ratings).Error; err != nil {
		t.Fatalf("count ratings: %v", err)
	}
	if ratings != 0 {
		t.Fatalf("expected ratings of pruned suggestions to go, have %d", ratings)
	}
}
