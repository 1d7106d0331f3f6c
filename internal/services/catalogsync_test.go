package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/pathfinder-backend/internal/data/repos/testutil"
	"github.com/yungbote/pathfinder-backend/internal/pkg/dbctx"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Chess Club-Club, Academic":  "chess-club-club-academic",
		"  Café   Société  ":         "cafe-societe",
		"Robotics & AI -- Team!":     "robotics-ai-team",
		"under_score keeps":          "under_score-keeps",
		"---":                        "",
		strings.Repeat("a", 80):      strings.Repeat("a", 64),
		"日本語 Club":                   "club",
	}
	for in, want := range cases {
		require.Equal(t, want, Slugify(in), in)
	}
}

func TestRowsToSuggestions(t *testing.T) {
	raw := []map[string]any{
		{"name": "Chess Club", "category": "Club, Academic ,", "description": " Think ", "url": "https://c", "image": "https://i"},
		{"name": "", "category": "Club"},
		{"name": "Robotics", "category": "Competition", "external_id": " rb-1 "},
		{"name": "Robotics v2", "category": "Competition", "external_id": "rb-1"},
		{"name": "Numbered", "category": 7},
	}
	rows, skipped := RowsToSuggestions(raw)
	require.Equal(t, 2, skipped, "one nameless row and one duplicate id")
	require.Len(t, rows, 3)

	require.Equal(t, "chess-club-club-academic", rows[0].ExternalID)
	require.Equal(t, []string{"Club", "Academic"}, []string(rows[0].Category))
	require.Equal(t, "Think", rows[0].Description)

	require.Equal(t, "rb-1", rows[1].ExternalID)
	require.Equal(t, "Robotics v2", rows[1].Name, "later duplicate wins")

	require.Equal(t, "numbered-7", rows[2].ExternalID)
}

func TestTagsFromClassification(t *testing.T) {
	tags, err := TagsFromClassification(map[string]any{
		"classification": map[string]any{
			"interest_area": "STEM & Innovation",
			"activity_type": "Club",
			"skill_focus":   []any{"Leadership", "Not A Skill", "Leadership", "Creativity"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"STEM & Innovation", "Club", "Leadership", "Creativity"}, tags)

	_, err = TagsFromClassification(map[string]any{})
	require.Error(t, err)
	_, err = TagsFromClassification(map[string]any{"classification": map[string]any{"interest_area": "Nope"}})
	require.Error(t, err)
}

func sheetServer(t *testing.T, rows *atomic.Value) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sheet-1/1" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(rows.Load())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCatalogImportAndPrune(t *testing.T) {
	env := newEnv(t)
	bg := context.Background()
	dbc := dbctx.New(bg)

	var rows atomic.Value
	rows.Store([]map[string]any{
		{"name": "Chess Club", "category": "Club", "external_id": "x1"},
		{"name": "Robotics Team", "category": "Competition", "external_id": "x2"},
	})
	srv := sheetServer(t, &rows)
	svc := NewCatalogSyncService(env.db, env.log, env.suggestions, nil, CatalogSyncConfig{
		SheetURL:   srv.URL + "/sheet-1/1",
		HTTPClient: srv.Client(),
	})

	rep, err := svc.Import(bg, false)
	require.NoError(t, err)
	require.Equal(t, ImportReport{Fetched: 2, Upserted: 2}, rep)

	// a rating on x2 must go away with the row when pruned
	u := testutil.SeedUser(t, bg, env.db, "rater")
	rs := NewRatingService(env.db, env.log, env.ratings, env.suggestions, nil)
	_, err = rs.Rate(asUser(u.ID), RateInput{ExternalID: "x2", Rating: "4"})
	require.NoError(t, err)

	rows.Store([]map[string]any{
		{"name": "Chess Club", "category": "Club", "external_id": "x1", "description": "updated"},
		{"name": ""},
	})
	rep, err = svc.Import(bg, true)
	require.NoError(t, err)
	require.Equal(t, ImportReport{Fetched: 2, Upserted: 1, Skipped: 1, Pruned: 1}, rep)

	all, err := env.suggestions.ListAll(dbc)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "updated", all[0].Description)

	n, err := env.suggestions.Count(dbc)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestCatalogImportErrors(t *testing.T) {
	env := newEnv(t)
	_, err := NewCatalogSyncService(env.db, env.log, env.suggestions, nil, CatalogSyncConfig{}).Import(context.Background(), false)
	require.Error(t, err, "no sheet configured")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)
	svc := NewCatalogSyncService(env.db, env.log, env.suggestions, nil, CatalogSyncConfig{SheetURL: srv.URL, HTTPClient: srv.Client()})
	_, err = svc.Import(context.Background(), false)
	require.ErrorContains(t, err, "status 429")
}

func TestCatalogSheetURL(t *testing.T) {
	u, err := CatalogSyncConfig{SheetID: "abc"}.sheetURL()
	require.NoError(t, err)
	require.Equal(t, "https://opensheet.elk.sh/abc/1", u)

	u, err = CatalogSyncConfig{SheetID: "abc", SheetURL: "http://local/sheet"}.sheetURL()
	require.NoError(t, err)
	require.Equal(t, "http://local/sheet", u)
}

func TestTagAndEmbedMissing(t *testing.T) {
	env := newEnv(t)
	bg := context.Background()
	dbc := dbctx.New(bg)
	testutil.SeedSuggestion(t, bg, env.db, "x1", "Chess Club")
	testutil.SeedSuggestion(t, bg, env.db, "x2", "Robotics Team")
	testutil.SeedSuggestion(t, bg, env.db, "x3", "Broken")

	llm := &fakeLLM{generate: func(system, user string) (map[string]any, error) {
		if strings.Contains(user, "Broken") {
			return nil, errors.New("model refused")
		}
		return map[string]any{"classification": map[string]any{
			"interest_area": "Academic & Research",
			"activity_type": "Club",
			"skill_focus":   []any{"Critical Thinking"},
		}}, nil
	}}
	svc := NewCatalogSyncService(env.db, env.log, env.suggestions, llm, CatalogSyncConfig{TagConcurrency: 2})

	tagged, err := svc.TagMissing(bg, 0)
	require.Error(t, err, "a failed row is reported")
	require.Equal(t, 2, tagged)

	left, err := env.suggestions.ListUntagged(dbc, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	require.Equal(t, "x3", left[0].ExternalID)

	got, err := env.suggestions.GetByExternalID(dbc, "x1")
	require.NoError(t, err)
	require.Equal(t, []string{"Academic & Research", "Club", "Critical Thinking"}, []string(got.Tags))

	embedded, err := svc.EmbedMissing(bg, 0)
	require.NoError(t, err)
	require.Equal(t, 3, embedded)
	missing, err := env.suggestions.ListWithoutEmbedding(dbc, 0)
	require.NoError(t, err)
	require.Empty(t, missing)

	again, err := svc.EmbedMissing(bg, 0)
	require.NoError(t, err)
	require.Zero(t, again)
}

func TestTagAndEmbedWithoutLLM(t *testing.T) {
	env := newEnv(t)
	svc := NewCatalogSyncService(env.db, env.log, env.suggestions, nil, CatalogSyncConfig{})
	n, err := svc.TagMissing(context.Background(), 0)
	require.NoError(t, err)
	require.Zero(t, n)
	n, err = svc.EmbedMissing(context.Background(), 0)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestEmbeddingText(t *testing.T) {
	s := testutil.SeedSuggestion(t, context.Background(), testutil.DB(t), "x1", "Chess Club")
	s.Tags = []string{"Club", "Leadership"}
	require.Equal(t, "Chess Club. Chess Club description. Club, Leadership", EmbeddingText(s))
}
