package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/yungbote/pathfinder-backend/internal/data/repos"
	types "github.com/yungbote/pathfinder-backend/internal/domain"
	"github.com/yungbote/pathfinder-backend/internal/domain/catalog"
	"github.com/yungbote/pathfinder-backend/internal/observability"
	"github.com/yungbote/pathfinder-backend/internal/pkg/dbctx"
	"github.com/yungbote/pathfinder-backend/internal/platform/apierr"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
	"github.com/yungbote/pathfinder-backend/internal/platform/openai"
)

const (
	defaultSheetBaseURL = "https://opensheet.elk.sh"
	sheetFetchTimeout   = 30 * time.Second
	embedBatchSize      = 64
)

type CatalogSyncConfig struct {
	// SheetURL wins over SheetID when both are set.
	SheetURL       string
	SheetID        string
	TagConcurrency int
	HTTPClient     *http.Client
}

func (c CatalogSyncConfig) sheetURL() (string, error) {
	if u := strings.TrimSpace(c.SheetURL); u != "" {
		return u, nil
	}
	if id := strings.TrimSpace(c.SheetID); id != "" {
		return fmt.Sprintf("%s/%s/1", defaultSheetBaseURL, id), nil
	}
	return "", apierr.Validation("CATALOG_SHEET_URL or CATALOG_SHEET_ID is required")
}

type ImportReport struct {
	Fetched  int   `json:"fetched"`
	Upserted int   `json:"upserted"`
	Skipped  int   `json:"skipped"`
	Pruned   int64 `json:"pruned"`
}

type SyncReport struct {
	Import   ImportReport `json:"import"`
	Tagged   int          `json:"tagged"`
	Embedded int          `json:"embedded"`
}

type CatalogSyncService interface {
	// Import fetches the sheet and upserts every row in one transaction. With
	// prune, catalog rows missing from the sheet are deleted with their ratings.
	Import(ctx context.Context, prune bool) (ImportReport, error)
	// TagMissing classifies up to limit untagged rows; limit <= 0 means all.
	TagMissing(ctx context.Context, limit int) (int, error)
	// EmbedMissing embeds up to limit rows lacking an embedding.
	EmbedMissing(ctx context.Context, limit int) (int, error)
	Sync(ctx context.Context, prune bool) (*SyncReport, error)
}

type catalogSyncService struct {
	db             *gorm.DB
	log            *logger.Logger
	suggestionRepo repos.SuggestionRepo
	llm            openai.Client
	cfg            CatalogSyncConfig
}

// NewCatalogSyncService builds the importer. llm may be nil; tagging and
// embedding then become no-ops.
func NewCatalogSyncService(
	db *gorm.DB,
	log *logger.Logger,
	suggestionRepo repos.SuggestionRepo,
	llm openai.Client,
	cfg CatalogSyncConfig,
) CatalogSyncService {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: sheetFetchTimeout}
	}
	if cfg.TagConcurrency <= 0 {
		cfg.TagConcurrency = 4
	}
	return &catalogSyncService{
		db:             db,
		log:            log.With("service", "CatalogSyncService"),
		suggestionRepo: suggestionRepo,
		llm:            llm,
		cfg:            cfg,
	}
}

func (s *catalogSyncService) Sync(ctx context.Context, prune bool) (*SyncReport, error) {
	imp, err := s.Import(ctx, prune)
	if err != nil {
		return nil, err
	}
	out := &SyncReport{Import: imp}
	if out.Tagged, err = s.TagMissing(ctx, 0); err != nil {
		return out, err
	}
	if out.Embedded, err = s.EmbedMissing(ctx, 0); err != nil {
		return out, err
	}
	return out, nil
}

func (s *catalogSyncService) Import(ctx context.Context, prune bool) (ImportReport, error) {
	var rep ImportReport
	url, err := s.cfg.sheetURL()
	if err != nil {
		return rep, err
	}
	s.log.Info("Syncing catalog from sheet", "url", url)

	raw, err := s.fetchSheet(ctx, url)
	if err != nil {
		return rep, err
	}
	rep.Fetched = len(raw)

	rows, skipped := RowsToSuggestions(raw)
	rep.Skipped = skipped
	if len(rows) == 0 {
		s.log.Warn("Sheet produced no importable rows", "fetched", rep.Fetched)
		observability.CatalogSyncItems.WithLabelValues("skipped").Add(float64(skipped))
		return rep, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.suggestionRepo.Upsert(dbc, rows); err != nil {
			return fmt.Errorf("upsert catalog: %w", err)
		}
		if !prune {
			return nil
		}
		keep := make([]string, 0, len(rows))
		for _, r := range rows {
			keep = append(keep, r.ExternalID)
		}
		n, err := s.suggestionRepo.FullDeleteNotIn(dbc, keep)
		if err != nil {
			return fmt.Errorf("prune catalog: %w", err)
		}
		rep.Pruned = n
		return nil
	})
	if err != nil {
		return rep, err
	}
	rep.Upserted = len(rows)

	observability.CatalogSyncItems.WithLabelValues("upserted").Add(float64(rep.Upserted))
	observability.CatalogSyncItems.WithLabelValues("skipped").Add(float64(rep.Skipped))
	observability.CatalogSyncItems.WithLabelValues("pruned").Add(float64(rep.Pruned))
	s.log.Info("Catalog import finished", "fetched", rep.Fetched, "upserted", rep.Upserted, "skipped", rep.Skipped, "pruned", rep.Pruned)
	return rep, nil
}

func (s *catalogSyncService) fetchSheet(ctx context.Context, url string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, sheetFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	res, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sheet: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("fetch sheet: status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	var rows []map[string]any
	if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode sheet: %w", err)
	}
	return rows, nil
}

// RowsToSuggestions maps sheet rows to catalog records. Rows without a name or
// a derivable external_id are skipped. When two rows share an external_id the
// later one wins.
func RowsToSuggestions(raw []map[string]any) ([]*types.Suggestion, int) {
	var (
		out     []*types.Suggestion
		index   = map[string]int{}
		skipped int
	)
	for _, row := range raw {
		name := cell(row, "name")
		if name == "" {
			skipped++
			continue
		}
		category := cell(row, "category")
		externalID := cell(row, "external_id")
		if externalID == "" {
			externalID = Slugify(name + "-" + category)
		}
		externalID = truncateRunes(externalID, catalog.ExternalIDMaxLen)
		if externalID == "" {
			skipped++
			continue
		}
		s := &types.Suggestion{
			ExternalID:  externalID,
			Name:        name,
			Category:    splitCategory(category),
			Description: cell(row, "description"),
			URL:         cell(row, "url"),
			Image:       cell(row, "image"),
		}
		if i, dup := index[externalID]; dup {
			out[i] = s
			skipped++
			continue
		}
		index[externalID] = len(out)
		out = append(out, s)
	}
	return out, skipped
}

func cell(row map[string]any, key string) string {
	switch v := row[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func splitCategory(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var (
	slugStrip = regexp.MustCompile(`[^\w\s-]`)
	slugDash  = regexp.MustCompile(`[-\s]+`)
)

// Slugify lowercases s, folds accents to ASCII, drops punctuation and joins
// words with single dashes. The result is capped at 64 characters.
func Slugify(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	ascii := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, strings.ToLower(folded))
	ascii = slugStrip.ReplaceAllString(ascii, "")
	ascii = strings.Trim(slugDash.ReplaceAllString(strings.TrimSpace(ascii), "-"), "-_")
	return truncateRunes(ascii, catalog.ExternalIDMaxLen)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ----- tagging -----

var (
	InterestAreas = []string{
		"STEM & Innovation",
		"Arts & Design",
		"Sports & Fitness",
		"Community & Service",
		"Leadership & Governance",
		"Culture & Language",
		"Business & Entrepreneurship",
		"Academic & Research",
		"Lifestyle & Wellness",
		"Gaming & Technology",
	}
	ActivityTypes = []string{
		"Club",
		"Competition",
		"Workshop",
		"Seminar / Talk",
		"Volunteer Project",
		"Exhibition / Performance",
		"Hackathon / Challenge",
		"Camp / Program",
		"Online Activity",
	}
	SkillFocuses = []string{
		"Leadership",
		"Creativity",
		"Collaboration",
		"Problem Solving",
		"Critical Thinking",
		"Communication",
		"Technical Skills",
		"Physical Skills",
		"Innovation",
		"Artistic Expression",
	}
)

const classificationSystemPrompt = `You are an intelligent classification engine for extracurricular activities, clubs, and competitions.

Given a single activity name and description, classify it into the standardized tag categories.
Choose the most appropriate value from each list based only on the activity's meaning and context.
When several options could apply, pick the one matching the activity's primary purpose.

- interest_area: the broad domain (STEM, Arts, Sports, Service...)
- activity_type: the structure or format (Club, Competition, Workshop...)
- skill_focus: the core skills built or used`

func classificationSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"classification": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"interest_area": map[string]any{"type": "string", "enum": InterestAreas},
					"activity_type": map[string]any{"type": "string", "enum": ActivityTypes},
					"skill_focus": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string", "enum": SkillFocuses},
					},
				},
				"required":             []string{"interest_area", "activity_type", "skill_focus"},
				"additionalProperties": false,
			},
		},
		"required":             []string{"classification"},
		"additionalProperties": false,
	}
}

// TagsFromClassification flattens a classification into
// [interest_area, activity_type, skill_focus...], dropping values outside the
// allowed enums.
func TagsFromClassification(obj map[string]any) ([]string, error) {
	cls, ok := obj["classification"].(map[string]any)
	if !ok {
		return nil, errors.New("classification missing")
	}
	var tags []string
	add := func(v any, allowed []string) {
		if s, ok := v.(string); ok && slices.Contains(allowed, s) && !slices.Contains(tags, s) {
			tags = append(tags, s)
		}
	}
	add(cls["interest_area"], InterestAreas)
	add(cls["activity_type"], ActivityTypes)
	switch sf := cls["skill_focus"].(type) {
	case []any:
		for _, v := range sf {
			add(v, SkillFocuses)
		}
	case string:
		add(sf, SkillFocuses)
	}
	if len(tags) == 0 {
		return nil, errors.New("classification produced no valid tags")
	}
	return tags, nil
}

func (s *catalogSyncService) TagMissing(ctx context.Context, limit int) (int, error) {
	if s.llm == nil {
		s.log.Warn("Skipping tagging, no LLM client configured")
		return 0, nil
	}
	rows, err := s.suggestionRepo.ListUntagged(dbctx.New(ctx), limit)
	if err != nil {
		return 0, fmt.Errorf("list untagged: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var (
		tagged atomic.Int64
		failed atomic.Int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.TagConcurrency)
	for _, row := range rows {
		g.Go(func() error {
			if err := s.tagOne(gctx, row); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				s.log.Warn("Tagging failed", "external_id", row.ExternalID, "error", err)
				return nil
			}
			tagged.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(tagged.Load()), err
	}

	observability.CatalogSyncItems.WithLabelValues("tagged").Add(float64(tagged.Load()))
	observability.CatalogSyncItems.WithLabelValues("tag_failed").Add(float64(failed.Load()))
	s.log.Info("Tagging finished", "tagged", tagged.Load(), "failed", failed.Load())
	if n := failed.Load(); n > 0 {
		return int(tagged.Load()), fmt.Errorf("%d of %d rows could not be tagged", n, len(rows))
	}
	return int(tagged.Load()), nil
}

func (s *catalogSyncService) tagOne(ctx context.Context, row *types.Suggestion) error {
	user, err := json.Marshal(map[string]string{
		"name":        row.Name,
		"description": row.Description,
	})
	if err != nil {
		return err
	}
	obj, err := s.llm.GenerateJSON(ctx, classificationSystemPrompt, string(user), "activity_classification", classificationSchema())
	if err != nil {
		return err
	}
	tags, err := TagsFromClassification(obj)
	if err != nil {
		return err
	}
	return s.suggestionRepo.UpdateTags(dbctx.New(ctx), row.ExternalID, tags)
}

// ----- embeddings -----

// EmbeddingText is the text embedded for semantic search.
func EmbeddingText(s *types.Suggestion) string {
	parts := []string{strings.TrimSpace(s.Name)}
	if d := strings.TrimSpace(s.Description); d != "" {
		parts = append(parts, d)
	}
	if len(s.Tags) > 0 {
		parts = append(parts, strings.Join(s.Tags, ", "))
	}
	return strings.Join(parts, ". ")
}

func (s *catalogSyncService) EmbedMissing(ctx context.Context, limit int) (int, error) {
	if s.llm == nil {
		s.log.Warn("Skipping embeddings, no LLM client configured")
		return 0, nil
	}
	rows, err := s.suggestionRepo.ListWithoutEmbedding(dbctx.New(ctx), limit)
	if err != nil {
		return 0, fmt.Errorf("list without embedding: %w", err)
	}

	embedded := 0
	for batch := range slices.Chunk(rows, embedBatchSize) {
		inputs := make([]string, len(batch))
		for i, r := range batch {
			inputs[i] = EmbeddingText(r)
		}
		vecs, err := s.llm.Embed(ctx, inputs)
		if err != nil {
			return embedded, fmt.Errorf("embed batch: %w", err)
		}
		if len(vecs) != len(batch) {
			return embedded, fmt.Errorf("embed batch: got %d vectors for %d inputs", len(vecs), len(batch))
		}
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			dbc := dbctx.Context{Ctx: ctx, Tx: tx}
			for i, r := range batch {
				if err := s.suggestionRepo.UpdateEmbedding(dbc, r.ExternalID, vecs[i]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return embedded, fmt.Errorf("store embeddings: %w", err)
		}
		embedded += len(batch)
	}
	if embedded > 0 {
		observability.CatalogSyncItems.WithLabelValues("embedded").Add(float64(embedded))
		s.log.Info("Embeddings stored", "count", embedded)
	}
	return embedded, nil
}
