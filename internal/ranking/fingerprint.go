package ranking

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	types "github.com/yungbote/pathfinder-backend/internal/domain"
)

// Fingerprint identifies one ranking configuration: the profile fields that
// feed the oracle plus the catalog membership they were ranked against.
type Fingerprint string

func (f Fingerprint) String() string { return string(f) }

// ProfileSnapshot is the part of a profile the oracle sees.
type ProfileSnapshot struct {
	BasicInformation map[string]any `json:"basic_information"`
	Interests        []string       `json:"interests"`
	Goals            []string       `json:"goals"`
	OtherGoals       *string        `json:"other_goals"`
}

func SnapshotOf(p *types.UserProfile) ProfileSnapshot {
	if p == nil {
		return ProfileSnapshot{BasicInformation: map[string]any{}, Interests: []string{}, Goals: []string{}}
	}
	s := ProfileSnapshot{
		BasicInformation: map[string]any(p.BasicInformation),
		Interests:        []string(p.Interests),
		Goals:            []string(p.Goals),
		OtherGoals:       p.OtherGoals,
	}
	if s.BasicInformation == nil {
		s.BasicInformation = map[string]any{}
	}
	if s.Interests == nil {
		s.Interests = []string{}
	}
	if s.Goals == nil {
		s.Goals = []string{}
	}
	return s
}

type fingerprintDoc struct {
	ProfileSnapshot
	Catalog string `json:"catalog"`
}

// ComputeFingerprint hashes the canonical JSON form of the snapshot and a
// digest of the catalog ids. encoding/json writes map keys sorted, so key
// order in basic_information never matters; list order does.
func ComputeFingerprint(p ProfileSnapshot, catalogIDs []string) (Fingerprint, error) {
	doc := fingerprintDoc{ProfileSnapshot: p, Catalog: CatalogDigest(catalogIDs)}
	if doc.BasicInformation == nil {
		doc.BasicInformation = map[string]any{}
	}
	if doc.Interests == nil {
		doc.Interests = []string{}
	}
	if doc.Goals == nil {
		doc.Goals = []string{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return Fingerprint(hex.EncodeToString(sum[:])), nil
}

// CatalogDigest is order-independent over the id set.
func CatalogDigest(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}
