package ranking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	types "github.com/yungbote/pathfinder-backend/internal/domain"
	"github.com/yungbote/pathfinder-backend/internal/observability"
	"github.com/yungbote/pathfinder-backend/internal/pkg/dbctx"
	"github.com/yungbote/pathfinder-backend/internal/platform/apierr"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
)

type ProfileSource interface {
	Ensure(dbc dbctx.Context, userID uuid.UUID) (*types.UserProfile, error)
}

type CatalogSource interface {
	ListAll(dbc dbctx.Context) ([]*types.Suggestion, error)
}

type Source string

const (
	SourceCache  Source = "cache"
	SourceOracle Source = "oracle"
	SourceEmpty  Source = "empty"
)

// Result is one user's full ranked catalog. Profile is the snapshot loaded
// for this request and carries the current saved items.
type Result struct {
	Items       []Ranked
	Profile     *types.UserProfile
	Fingerprint Fingerprint
	Source      Source
}

const (
	cacheWriteTimeout = 3 * time.Second
	// bounds a shared oracle call once it no longer follows any caller
	flightTimeout = 2 * time.Minute
)

type Orchestrator struct {
	log      *logger.Logger
	profiles ProfileSource
	catalog  CatalogSource
	cache    Cache
	oracle   Oracle
	flight   singleflight.Group
	now      func() time.Time
}

func NewOrchestrator(log *logger.Logger, profiles ProfileSource, catalog CatalogSource, cache Cache, oracle Oracle) (*Orchestrator, error) {
	switch {
	case log == nil:
		return nil, fmt.Errorf("logger required")
	case profiles == nil || catalog == nil:
		return nil, fmt.Errorf("profile and catalog sources required")
	case cache == nil:
		return nil, fmt.Errorf("cache required")
	case oracle == nil:
		return nil, fmt.Errorf("oracle required")
	}
	return &Orchestrator{
		log:      log.With("service", "RankingOrchestrator"),
		profiles: profiles,
		catalog:  catalog,
		cache:    cache,
		oracle:   oracle,
		now:      time.Now,
	}, nil
}

// Rank returns the user's personalized ordering of the whole catalog. A
// cached ranking for the same fingerprint is reused; otherwise the oracle is
// asked once per fingerprint across concurrent callers and the merged result
// is cached before returning.
func (o *Orchestrator) Rank(ctx context.Context, userID uuid.UUID) (*Result, error) {
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "ranking.Rank")
	defer span.End()

	res, err := o.rank(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ranking failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("ranking.source", string(res.Source)),
		attribute.Int("ranking.items", len(res.Items)),
	)
	observability.RankingDuration.WithLabelValues(string(res.Source)).Observe(time.Since(start).Seconds())
	return res, nil
}

func (o *Orchestrator) rank(ctx context.Context, userID uuid.UUID) (*Result, error) {
	if userID == uuid.Nil {
		return nil, apierr.Unauthorized("authentication required")
	}

	var (
		profile *types.UserProfile
		catalog []*types.Suggestion
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := o.profiles.Ensure(dbctx.New(gctx), userID)
		if err != nil {
			return fmt.Errorf("ensure profile: %w", err)
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		rows, err := o.catalog.ListAll(dbctx.New(gctx))
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		catalog = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.log.Error("ranking inputs failed to load", "error", err)
		return nil, apierr.Internal(err)
	}

	catalog = CatalogOrder(catalog)
	if len(catalog) == 0 {
		return &Result{Items: []Ranked{}, Profile: profile, Source: SourceEmpty}, nil
	}

	ids := make([]string, 0, len(catalog))
	for _, s := range catalog {
		ids = append(ids, s.ExternalID)
	}
	snapshot := SnapshotOf(profile)
	fp, err := ComputeFingerprint(snapshot, ids)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("fingerprint: %w", err))
	}

	if entry, ok := o.lookup(ctx, fp); ok {
		return &Result{Items: Resolve(catalog, entry.Items), Profile: profile, Fingerprint: fp, Source: SourceCache}, nil
	}

	// The shared call is detached from whichever caller started it; each
	// caller waits only as long as its own context allows.
	ch := o.flight.DoChan(fp.String(), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		hints, err := o.oracle.Rank(fctx, snapshot, catalog)
		if err != nil {
			return nil, err
		}
		entry := &Entry{Items: Merge(catalog, hints), CreatedAt: o.now().UTC()}
		o.store(fctx, fp, entry)
		return entry, nil
	})
	var (
		v      any
		shared bool
	)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		v, err, shared = r.Val, r.Err, r.Shared
	}
	if err != nil {
		var ae *apierr.Error
		if !errors.As(err, &ae) {
			ae = apierr.Upstream(err)
		}
		o.log.Warn("personalized ranking failed", "error", err, "fingerprint", fp.String(), "shared", shared)
		return nil, ae
	}
	entry := v.(*Entry)
	return &Result{Items: Resolve(catalog, entry.Items), Profile: profile, Fingerprint: fp, Source: SourceOracle}, nil
}

// lookup treats cache errors as misses.
func (o *Orchestrator) lookup(ctx context.Context, fp Fingerprint) (*Entry, bool) {
	entry, ok, err := o.cache.Get(ctx, fp)
	switch {
	case err != nil:
		observability.RankingCache.WithLabelValues(o.cache.Name(), "error").Inc()
		o.log.Warn("ranking cache read failed; treating as miss", "error", err, "backend", o.cache.Name())
		return nil, false
	case !ok || entry == nil:
		observability.RankingCache.WithLabelValues(o.cache.Name(), "miss").Inc()
		return nil, false
	default:
		observability.RankingCache.WithLabelValues(o.cache.Name(), "hit").Inc()
		return entry, true
	}
}

// store outlives the caller's cancellation so a finished ranking is kept.
func (o *Orchestrator) store(ctx context.Context, fp Fingerprint, entry *Entry) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()
	if err := o.cache.Set(wctx, fp, entry); err != nil {
		o.log.Warn("ranking cache write failed", "error", err, "backend", o.cache.Name())
	}
}
