package ranking

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/pathfinder-backend/internal/data/repos"
	"github.com/yungbote/pathfinder-backend/internal/data/repos/testutil"
	types "github.com/yungbote/pathfinder-backend/internal/domain"
	"github.com/yungbote/pathfinder-backend/internal/pkg/dbctx"
	"github.com/yungbote/pathfinder-backend/internal/platform/apierr"
)

type stubOracle struct {
	calls atomic.Int32
	mu    sync.Mutex
	hints []ScoredID
	err   error
	delay time.Duration
}

func (s *stubOracle) Rank(ctx context.Context, profile ProfileSnapshot, catalog []*types.Suggestion) ([]ScoredID, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, apierr.Upstream(ctx.Err())
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]ScoredID(nil), s.hints...), nil
}

type failingCache struct{}

func (failingCache) Get(context.Context, Fingerprint) (*Entry, bool, error) {
	return nil, false, errors.New("cache down")
}
func (failingCache) Set(context.Context, Fingerprint, *Entry) error { return errors.New("cache down") }
func (failingCache) Name() string                                   { return "failing" }

type fixture struct {
	db       *gorm.DB
	profiles repos.UserProfileRepo
	catalog  repos.SuggestionRepo
	oracle   *stubOracle
	orch     *Orchestrator
	user     *types.User
}

func newFixture(t *testing.T, cache Cache) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	fx := &fixture{
		db:       db,
		profiles: repos.NewUserProfileRepo(db, log),
		catalog:  repos.NewSuggestionRepo(db, log),
		oracle:   &stubOracle{hints: []ScoredID{{ExternalID: "x2", Score: f(90)}}},
	}
	if cache == nil {
		mc, err := NewMemoryCache(100, time.Hour)
		require.NoError(t, err)
		t.Cleanup(mc.Close)
		cache = mc
	}
	orch, err := NewOrchestrator(log, fx.profiles, fx.catalog, cache, fx.oracle)
	require.NoError(t, err)
	fx.orch = orch

	ctx := context.Background()
	fx.user = testutil.SeedUser(t, ctx, db, "ranker")
	testutil.SeedSuggestion(t, ctx, db, "x1", "Chess Club")
	testutil.SeedSuggestion(t, ctx, db, "x2", "Robotics Team")
	return fx
}

func resultIDs(r *Result) []string {
	out := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, it.Suggestion.ExternalID)
	}
	return out
}

func (fx *fixture) setInterests(t *testing.T, interests ...string) {
	t.Helper()
	err := fx.profiles.UpdateFields(dbctx.New(context.Background()), fx.user.ID, repos.ProfileFields{
		BasicInformation: map[string]any{"grade": "11"},
		Interests:        interests,
		Goals:            []string{"college"},
	}, true)
	require.NoError(t, err)
}

func TestRankMergesOracleHints(t *testing.T) {
	fx := newFixture(t, nil)

	res, err := fx.orch.Rank(context.Background(), fx.user.ID)
	require.NoError(t, err)
	require.Equal(t, SourceOracle, res.Source)
	require.Equal(t, []string{"x2", "x1"}, resultIDs(res))
	require.Equal(t, 90.0, *res.Items[0].Score)
	require.Nil(t, res.Items[1].Score)
	require.NotNil(t, res.Profile, "profile is created on first request")
}

func TestRankIsIdempotentForUnchangedProfile(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	first, err := fx.orch.Rank(ctx, fx.user.ID)
	require.NoError(t, err)

	fx.oracle.mu.Lock()
	fx.oracle.hints = []ScoredID{{ExternalID: "x1", Score: f(99)}}
	fx.oracle.mu.Unlock()

	second, err := fx.orch.Rank(ctx, fx.user.ID)
	require.NoError(t, err)
	require.Equal(t, SourceCache, second.Source)
	require.Equal(t, resultIDs(first), resultIDs(second))
	require.Equal(t, first.Fingerprint, second.Fingerprint)
	require.EqualValues(t, 1, fx.oracle.calls.Load())
}

func TestRankProfileChangeMissesCache(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	fx.setInterests(t, "robotics")
	_, err := fx.orch.Rank(ctx, fx.user.ID)
	require.NoError(t, err)

	fx.setInterests(t, "chess")
	res, err := fx.orch.Rank(ctx, fx.user.ID)
	require.NoError(t, err)
	require.Equal(t, SourceOracle, res.Source)
	require.EqualValues(t, 2, fx.oracle.calls.Load())
}

func TestRankOracleFailureIsNotCached(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	fx.oracle.err = apierr.Upstream(errors.New("bad json"))
	_, err := fx.orch.Rank(ctx, fx.user.ID)
	var ae *apierr.Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, http.StatusBadGateway, ae.Status)

	fx.oracle.mu.Lock()
	fx.oracle.err = nil
	fx.oracle.mu.Unlock()

	res, err := fx.orch.Rank(ctx, fx.user.ID)
	require.NoError(t, err)
	require.Equal(t, SourceOracle, res.Source)
	require.EqualValues(t, 2, fx.oracle.calls.Load())
}

func TestRankCacheHitSeesCatalogEdits(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	_, err := fx.orch.Rank(ctx, fx.user.ID)
	require.NoError(t, err)

	require.NoError(t, fx.db.Model(&types.Suggestion{}).Where("external_id = ?", "x2").Update("name", "Robotics Squad").Error)

	res, err := fx.orch.Rank(ctx, fx.user.ID)
	require.NoError(t, err)
	require.Equal(t, SourceCache, res.Source)
	require.Equal(t, "Robotics Squad", res.Items[0].Suggestion.Name)
}

func TestRankCatalogMembershipChangeMissesCache(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	_, err := fx.orch.Rank(ctx, fx.user.ID)
	require.NoError(t, err)

	testutil.SeedSuggestion(t, ctx, fx.db, "x3", "Art Guild")
	res, err := fx.orch.Rank(ctx, fx.user.ID)
	require.NoError(t, err)
	require.Equal(t, SourceOracle, res.Source)
	require.Equal(t, []string{"x2", "x3", "x1"}, resultIDs(res))
}

func TestRankSavedItemsAreFresh(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	first, err := fx.orch.Rank(ctx, fx.user.ID)
	require.NoError(t, err)
	require.False(t, first.Profile.HasSaved("x1"))

	require.NoError(t, fx.profiles.SetSavedItems(dbctx.New(ctx), fx.user.ID, []string{"x1"}))

	second, err := fx.orch.Rank(ctx, fx.user.ID)
	require.NoError(t, err)
	require.Equal(t, SourceCache, second.Source)
	require.True(t, second.Profile.HasSaved("x1"))
	require.Equal(t, resultIDs(first), resultIDs(second))
}

func TestRankCacheErrorsDegradeToMiss(t *testing.T) {
	fx := newFixture(t, failingCache{})

	res, err := fx.orch.Rank(context.Background(), fx.user.ID)
	require.NoError(t, err)
	require.Equal(t, SourceOracle, res.Source)
	require.Len(t, res.Items, 2)
}

func TestRankEmptyCatalogSkipsOracle(t *testing.T) {
	fx := newFixture(t, nil)
	require.NoError(t, fx.db.Where("1 = 1").Delete(&types.Suggestion{}).Error)

	res, err := fx.orch.Rank(context.Background(), fx.user.ID)
	require.NoError(t, err)
	require.Equal(t, SourceEmpty, res.Source)
	require.Empty(t, res.Items)
	require.Zero(t, fx.oracle.calls.Load())
}

func TestRankConcurrentMissesShareOneOracleCall(t *testing.T) {
	fx := newFixture(t, nil)
	fx.oracle.delay = 100 * time.Millisecond
	// create the profile up front so every caller computes the same fingerprint
	_, err := fx.profiles.Ensure(dbctx.New(context.Background()), fx.user.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Result, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = fx.orch.Rank(context.Background(), fx.user.ID)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, []string{"x2", "x1"}, resultIDs(results[i]))
	}
	require.LessOrEqual(t, fx.oracle.calls.Load(), int32(len(results)))
	require.GreaterOrEqual(t, fx.oracle.calls.Load(), int32(1))
}

func TestRankRejectsAnonymous(t *testing.T) {
	fx := newFixture(t, nil)
	_, err := fx.orch.Rank(context.Background(), uuid.Nil)
	var ae *apierr.Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, http.StatusUnauthorized, ae.Status)
}

func TestRankCancelledCallerDoesNotFailSharedCall(t *testing.T) {
	mc, err := NewMemoryCache(100, time.Hour)
	require.NoError(t, err)
	t.Cleanup(mc.Close)
	fx := newFixture(t, mc)
	fx.oracle.delay = 300 * time.Millisecond
	_, err = fx.profiles.Ensure(dbctx.New(context.Background()), fx.user.ID)
	require.NoError(t, err)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	firstErr := make(chan error, 1)
	go func() {
		_, err := fx.orch.Rank(firstCtx, fx.user.ID)
		firstErr <- err
	}()

	time.Sleep(100 * time.Millisecond)
	type outcome struct {
		res *Result
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := fx.orch.Rank(context.Background(), fx.user.ID)
		second <- outcome{res, err}
	}()

	time.Sleep(50 * time.Millisecond)
	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	got := <-second
	require.NoError(t, got.err)
	require.Equal(t, []string{"x2", "x1"}, resultIDs(got.res))
	require.EqualValues(t, 1, fx.oracle.calls.Load())

	entry, ok, err := mc.Get(context.Background(), got.res.Fingerprint)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, entry.Items, 2)
}
