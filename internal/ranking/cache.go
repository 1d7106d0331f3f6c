package ranking

import (
	"context"
	"time"
)

// ScoredID is one position in a ranked list. Score is nil for items the
// oracle did not score.
type ScoredID struct {
	ExternalID string   `json:"external_id"`
	Score      *float64 `json:"score,omitempty"`
}

// Entry is a memoized ranking: every catalog id at ranking time, in order.
type Entry struct {
	Items     []ScoredID `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
}

func (e *Entry) clone() *Entry {
	if e == nil {
		return nil
	}
	out := &Entry{CreatedAt: e.CreatedAt, Items: make([]ScoredID, len(e.Items))}
	copy(out.Items, e.Items)
	return out
}

// Cache maps a Fingerprint to its ranking. Set replaces any existing entry;
// concurrent writers for one key are last-writer-wins.
type Cache interface {
	Get(ctx context.Context, fp Fingerprint) (*Entry, bool, error)
	Set(ctx context.Context, fp Fingerprint, entry *Entry) error
	Name() string
}
