package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/pathfinder-backend/internal/domain"
	"github.com/yungbote/pathfinder-backend/internal/pkg/dbctx"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
)

// Catalog default order: name ascending, external_id breaking ties.
const defaultOrder = "name ASC, external_id ASC"

type SuggestionRepo interface {
	ListAll(dbc dbctx.Context) ([]*types.Suggestion, error)
	Search(dbc dbctx.Context, query string) ([]*types.Suggestion, error)
	GetByExternalID(dbc dbctx.Context, externalID string) (*types.Suggestion, error)
	GetByExternalIDs(dbc dbctx.Context, externalIDs []string) ([]*types.Suggestion, error)
	Count(dbc dbctx.Context) (int64, error)
	Upsert(dbc dbctx.Context, rows []*types.Suggestion) error
	ListUntagged(dbc dbctx.Context, limit int) ([]*types.Suggestion, error)
	ListWithoutEmbedding(dbc dbctx.Context, limit int) ([]*types.Suggestion, error)
	UpdateTags(dbc dbctx.Context, externalID string, tags []string) error
	UpdateEmbedding(dbc dbctx.Context, externalID string, embedding []float32) error
	FullDeleteNotIn(dbc dbctx.Context, keep []string) (int64, error)
}

type suggestionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSuggestionRepo(db *gorm.DB, baseLog *logger.Logger) SuggestionRepo {
	repoLog := baseLog.With("repo", "SuggestionRepo")
	return &suggestionRepo{db: db, log: repoLog}
}

func (r *suggestionRepo) ListAll(dbc dbctx.Context) ([]*types.Suggestion, error) {
	var out []*types.Suggestion
	if err := dbc.Conn(r.db).Order(defaultOrder).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Search is a case-insensitive substring match over name, description,
// category and tags.
func (r *suggestionRepo) Search(dbc dbctx.Context, query string) ([]*types.Suggestion, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return r.ListAll(dbc)
	}
	like := "%" + escapeLike(query) + "%"
	var out []*types.Suggestion
	err := dbc.Conn(r.db).
		Where(
			"LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(description) LIKE ? ESCAPE '\\' OR LOWER(CAST(category AS TEXT)) LIKE ? ESCAPE '\\' OR LOWER(CAST(tags AS TEXT)) LIKE ? ESCAPE '\\'",
			like, like, like, like,
		).
		Order(defaultOrder).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *suggestionRepo) GetByExternalID(dbc dbctx.Context, externalID string) (*types.Suggestion, error) {
	var s types.Suggestion
	err := dbc.Conn(r.db).Where("external_id = ?", externalID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *suggestionRepo) GetByExternalIDs(dbc dbctx.Context, externalIDs []string) ([]*types.Suggestion, error) {
	var out []*types.Suggestion
	if len(externalIDs) == 0 {
		return out, nil
	}
	if err := dbc.Conn(r.db).Where("external_id IN ?", externalIDs).Order(defaultOrder).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *suggestionRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	err := dbc.Conn(r.db).Model(&types.Suggestion{}).Count(&n).Error
	return n, err
}

// Upsert inserts or updates rows keyed by external_id. created_at is refreshed
// on every upsert; tags and embeddings are left untouched.
func (r *suggestionRepo) Upsert(dbc dbctx.Context, rows []*types.Suggestion) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		row.CreatedAt = now
	}
	return dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "category", "description", "url", "image", "created_at", "updated_at",
			}),
		}).
		CreateInBatches(rows, 200).Error
}

func (r *suggestionRepo) ListUntagged(dbc dbctx.Context, limit int) ([]*types.Suggestion, error) {
	var out []*types.Suggestion
	q := dbc.Conn(r.db).
		Where("tags IS NULL OR CAST(tags AS TEXT) IN ('[]', 'null', '')").
		Order(defaultOrder)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *suggestionRepo) ListWithoutEmbedding(dbc dbctx.Context, limit int) ([]*types.Suggestion, error) {
	var out []*types.Suggestion
	q := dbc.Conn(r.db).
		Where("embedding IS NULL OR CAST(embedding AS TEXT) IN ('[]', 'null', '')").
		Order(defaultOrder)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *suggestionRepo) UpdateTags(dbc dbctx.Context, externalID string, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	return r.updateColumn(dbc, externalID, "tags", datatypes.NewJSONSlice(tags))
}

func (r *suggestionRepo) UpdateEmbedding(dbc dbctx.Context, externalID string, embedding []float32) error {
	return r.updateColumn(dbc, externalID, "embedding", datatypes.NewJSONSlice(embedding))
}

func (r *suggestionRepo) updateColumn(dbc dbctx.Context, externalID, column string, value any) error {
	res := dbc.Conn(r.db).Model(&types.Suggestion{}).Where("external_id = ?", externalID).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FullDeleteNotIn removes every suggestion whose external_id is not in keep,
// along with its ratings. An empty keep list is refused.
func (r *suggestionRepo) FullDeleteNotIn(dbc dbctx.Context, keep []string) (int64, error) {
	if len(keep) == 0 {
		return 0, errors.New("refusing to prune the whole catalog")
	}
	var deleted int64
	run := func(tx *gorm.DB) error {
		var ids []uuid.UUID
		if err := tx.Model(&types.Suggestion{}).Where("external_id NOT IN ?", keep).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("suggestion_id IN ?", ids).Delete(&types.UserRating{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&types.Suggestion{})
		deleted = res.RowsAffected
		return res.Error
	}
	if dbc.Tx != nil {
		return deleted, run(dbc.Conn(r.db))
	}
	return deleted, dbc.Conn(r.db).Transaction(run)
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
