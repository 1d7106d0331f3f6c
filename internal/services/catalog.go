package services

import (
	"context"
	"errors"
	"math"
	"net/http"
	"slices"
	"strings"

	"github.com/yungbote/pathfinder-backend/internal/data/repos"
	types "github.com/yungbote/pathfinder-backend/internal/domain"
	"github.com/yungbote/pathfinder-backend/internal/pkg/dbctx"
	"github.com/yungbote/pathfinder-backend/internal/platform/apierr"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
	"github.com/yungbote/pathfinder-backend/internal/platform/openai"
	"github.com/yungbote/pathfinder-backend/internal/ranking"
)

type SearchMode string

const (
	SearchKeyword  SearchMode = "keyword"
	SearchSemantic SearchMode = "semantic"
)

func ParseSearchMode(raw string) (SearchMode, error) {
	switch SearchMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SearchKeyword:
		return SearchKeyword, nil
	case SearchSemantic:
		return SearchSemantic, nil
	default:
		return "", apierr.Validation("mode must be keyword or semantic")
	}
}

type CatalogQuery struct {
	Query string
	Mode  SearchMode
	Page  ranking.PageRequest
}

type CatalogService interface {
	List(ctx context.Context, q CatalogQuery) (ranking.Page[SuggestionView], error)
	Detail(ctx context.Context, externalID string, withSaved bool) (*SuggestionView, error)
	// Lookup returns the catalog row or a NotFound error.
	Lookup(ctx context.Context, externalID string) (*types.Suggestion, error)
}

type catalogService struct {
	log            *logger.Logger
	suggestionRepo repos.SuggestionRepo
	profiles       ProfileService
	embedder       openai.Client
}

// NewCatalogService builds the catalog reader. embedder may be nil, in which
// case semantic search is unavailable.
func NewCatalogService(
	log *logger.Logger,
	suggestionRepo repos.SuggestionRepo,
	profiles ProfileService,
	embedder openai.Client,
) CatalogService {
	return &catalogService{
		log:            log.With("service", "CatalogService"),
		suggestionRepo: suggestionRepo,
		profiles:       profiles,
		embedder:       embedder,
	}
}

func (cs *catalogService) List(ctx context.Context, q CatalogQuery) (ranking.Page[SuggestionView], error) {
	rows, err := cs.find(ctx, strings.TrimSpace(q.Query), q.Mode)
	if err != nil {
		return ranking.Page[SuggestionView]{}, err
	}
	saved, err := cs.profiles.SavedSet(ctx)
	if err != nil {
		return ranking.Page[SuggestionView]{}, err
	}
	page := ranking.Paginate(rows, q.Page)
	return ranking.MapPage(page, func(s *types.Suggestion) SuggestionView {
		return NewSuggestionView(s).WithSaved(saved)
	}), nil
}

func (cs *catalogService) find(ctx context.Context, query string, mode SearchMode) ([]*types.Suggestion, error) {
	dbc := dbctx.New(ctx)
	if query == "" {
		rows, err := cs.suggestionRepo.ListAll(dbc)
		if err != nil {
			return nil, cs.classify("list catalog", err)
		}
		return rows, nil
	}
	if mode == SearchSemantic {
		return cs.semantic(ctx, query)
	}
	rows, err := cs.suggestionRepo.Search(dbc, query)
	if err != nil {
		return nil, cs.classify("search catalog", err)
	}
	return rows, nil
}

// semantic orders the catalog by L2 distance between the query embedding and
// each item's embedding. Items without an embedding follow in catalog order.
func (cs *catalogService) semantic(ctx context.Context, query string) ([]*types.Suggestion, error) {
	if cs.embedder == nil {
		return nil, apierr.New(http.StatusServiceUnavailable, apierr.CodeUnavailable, errors.New("semantic search is not configured"))
	}
	vecs, err := cs.embedder.Embed(ctx, []string{query})
	if err != nil {
		cs.log.Error("Query embedding failed", "error", err)
		return nil, apierr.Upstream(err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, apierr.Upstream(errors.New("empty query embedding"))
	}
	qv := vecs[0]

	rows, err := cs.suggestionRepo.ListAll(dbctx.New(ctx))
	if err != nil {
		return nil, cs.classify("list catalog", err)
	}

	type scored struct {
		s    *types.Suggestion
		dist float64
	}
	var (
		withVec []scored
		rest    []*types.Suggestion
	)
	for _, s := range ranking.CatalogOrder(rows) {
		if len(s.Embedding) != len(qv) {
			rest = append(rest, s)
			continue
		}
		withVec = append(withVec, scored{s: s, dist: l2(qv, s.Embedding)})
	}
	slices.SortStableFunc(withVec, func(a, b scored) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		}
		return 0
	})

	out := make([]*types.Suggestion, 0, len(rows))
	for _, w := range withVec {
		out = append(out, w.s)
	}
	return append(out, rest...), nil
}

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func (cs *catalogService) Lookup(ctx context.Context, externalID string) (*types.Suggestion, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, apierr.Validation("external_id is required")
	}
	s, err := cs.suggestionRepo.GetByExternalID(dbctx.New(ctx), externalID)
	if err != nil {
		return nil, cs.classify("lookup suggestion", err)
	}
	if s == nil {
		return nil, apierr.NotFound("suggestion %q not found", externalID)
	}
	return s, nil
}

func (cs *catalogService) Detail(ctx context.Context, externalID string, withSaved bool) (*SuggestionView, error) {
	s, err := cs.Lookup(ctx, externalID)
	if err != nil {
		return nil, err
	}
	v := NewSuggestionView(s)
	if withSaved {
		if _, err := requireUser(ctx); err != nil {
			return nil, err
		}
		saved, err := cs.profiles.SavedSet(ctx)
		if err != nil {
			return nil, err
		}
		v = v.WithSaved(saved)
	}
	return &v, nil
}

func (cs *catalogService) classify(op string, err error) error {
	ae := apierr.From(err)
	if !ae.Public() {
		cs.log.Error("Catalog operation failed", "op", op, "error", err)
	}
	return ae
}
