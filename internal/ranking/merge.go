package ranking

import (
	"cmp"
	"slices"

	types "github.com/yungbote/pathfinder-backend/internal/domain"
)

// Ranked is a catalog record with its transient score. The score is never
// written back to the record.
type Ranked struct {
	Suggestion *types.Suggestion
	Score      *float64
}

// CatalogOrder sorts a copy of catalog by name, then external_id.
func CatalogOrder(catalog []*types.Suggestion) []*types.Suggestion {
	out := make([]*types.Suggestion, 0, len(catalog))
	for _, s := range catalog {
		if s != nil {
			out = append(out, s)
		}
	}
	slices.SortStableFunc(out, func(a, b *types.Suggestion) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ExternalID, b.ExternalID)
	})
	return out
}

// Dedup keeps the first hint per external_id and drops empty ids.
func Dedup(hints []ScoredID) []ScoredID {
	seen := make(map[string]struct{}, len(hints))
	out := make([]ScoredID, 0, len(hints))
	for _, h := range hints {
		if h.ExternalID == "" {
			continue
		}
		if _, dup := seen[h.ExternalID]; dup {
			continue
		}
		seen[h.ExternalID] = struct{}{}
		out = append(out, h)
	}
	return out
}

// Merge lays oracle hints over the full catalog. Every catalog item appears
// exactly once; hints for unknown ids are ignored. Scored items come first by
// descending score, then unscored items, with catalog order breaking ties.
func Merge(catalog []*types.Suggestion, hints []ScoredID) []ScoredID {
	ordered := CatalogOrder(catalog)

	scores := make(map[string]float64, len(hints))
	for _, h := range Dedup(hints) {
		if h.Score == nil {
			continue
		}
		scores[h.ExternalID] = *h.Score
	}

	out := make([]ScoredID, 0, len(ordered))
	seen := make(map[string]struct{}, len(ordered))
	for _, s := range ordered {
		if _, dup := seen[s.ExternalID]; dup {
			continue
		}
		seen[s.ExternalID] = struct{}{}
		item := ScoredID{ExternalID: s.ExternalID}
		if v, ok := scores[s.ExternalID]; ok {
			score := v
			item.Score = &score
		}
		out = append(out, item)
	}

	slices.SortStableFunc(out, func(a, b ScoredID) int {
		switch {
		case a.Score == nil && b.Score == nil:
			return 0
		case a.Score == nil:
			return 1
		case b.Score == nil:
			return -1
		default:
			return cmp.Compare(*b.Score, *a.Score)
		}
	})
	return out
}

// Resolve maps a stored ranking onto the current catalog snapshot. Ids that
// left the catalog are dropped; catalog items missing from the ranking are
// appended unscored in catalog order.
func Resolve(catalog []*types.Suggestion, items []ScoredID) []Ranked {
	ordered := CatalogOrder(catalog)
	byID := make(map[string]*types.Suggestion, len(ordered))
	for _, s := range ordered {
		if _, ok := byID[s.ExternalID]; !ok {
			byID[s.ExternalID] = s
		}
	}

	out := make([]Ranked, 0, len(ordered))
	used := make(map[string]struct{}, len(ordered))
	for _, it := range items {
		s, ok := byID[it.ExternalID]
		if !ok {
			continue
		}
		if _, dup := used[it.ExternalID]; dup {
			continue
		}
		used[it.ExternalID] = struct{}{}
		out = append(out, Ranked{Suggestion: s, Score: it.Score})
	}
	for _, s := range ordered {
		if _, ok := used[s.ExternalID]; ok {
			continue
		}
		used[s.ExternalID] = struct{}{}
		out = append(out, Ranked{Suggestion: s})
	}
	return out
}
