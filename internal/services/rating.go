package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/pathfinder-backend/internal/data/repos"
	types "github.com/yungbote/pathfinder-backend/internal/domain"
	"github.com/yungbote/pathfinder-backend/internal/domain/social"
	"github.com/yungbote/pathfinder-backend/internal/pkg/dbctx"
	"github.com/yungbote/pathfinder-backend/internal/platform/apierr"
	"github.com/yungbote/pathfinder-backend/internal/platform/ctxutil"
	"github.com/yungbote/pathfinder-backend/internal/platform/gcp"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
)

// RateInput is a review submission. Rating is the raw client value so that
// non-integers can be rejected here rather than silently truncated.
type RateInput struct {
	ExternalID string
	Rating     string
	Comment    string
	Image      io.Reader
	ImageName  string
}

type ReviewUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ReviewView struct {
	Rating    int        `json:"rating"`
	Comment   string     `json:"comment"`
	Image     string     `json:"image"`
	CreatedAt time.Time  `json:"created_at"`
	User      ReviewUser `json:"user"`
}

type AverageRatingView struct {
	ExternalID    string   `json:"external_id"`
	AverageRating *float64 `json:"average_rating"`
	NumRatings    int64    `json:"num_ratings"`
	UserRating    *int     `json:"user_rating,omitempty"`
}

type RatingService interface {
	Rate(ctx context.Context, in RateInput) (*types.UserRating, error)
	Reviews(ctx context.Context, externalID string) ([]ReviewView, error)
	AverageRating(ctx context.Context, externalID string) (*AverageRatingView, error)
}

type ratingService struct {
	db             *gorm.DB
	log            *logger.Logger
	ratingRepo     repos.UserRatingRepo
	suggestionRepo repos.SuggestionRepo
	images         gcp.ImageStore
}

// NewRatingService wires the review flow. images may be nil, in which case
// reviews with an attached image are rejected.
func NewRatingService(
	db *gorm.DB,
	log *logger.Logger,
	ratingRepo repos.UserRatingRepo,
	suggestionRepo repos.SuggestionRepo,
	images gcp.ImageStore,
) RatingService {
	return &ratingService{
		db:             db,
		log:            log.With("service", "RatingService"),
		ratingRepo:     ratingRepo,
		suggestionRepo: suggestionRepo,
		images:         images,
	}
}

func ParseRating(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, apierr.Validation("rating must be an integer")
	}
	if n < social.MinRating || n > social.MaxRating {
		return 0, apierr.Validation("rating must be between %d and %d", social.MinRating, social.MaxRating)
	}
	return n, nil
}

func (rs *ratingService) Rate(ctx context.Context, in RateInput) (*types.UserRating, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	in.ExternalID = strings.TrimSpace(in.ExternalID)
	if in.ExternalID == "" {
		return nil, apierr.Validation("external_id is required")
	}
	value, err := ParseRating(in.Rating)
	if err != nil {
		return nil, err
	}

	dbc := dbctx.New(ctx)
	item, err := rs.suggestionRepo.GetByExternalID(dbc, in.ExternalID)
	if err != nil {
		return nil, rs.classify("lookup suggestion", err)
	}
	if item == nil {
		return nil, apierr.Validation("unknown external_id %q", in.ExternalID)
	}

	var imageURL string
	if in.Image != nil {
		if imageURL, err = rs.uploadImage(ctx, userID, item.ID, in.Image, in.ImageName); err != nil {
			return nil, err
		}
	}

	saved, err := rs.ratingRepo.Upsert(dbc, &types.UserRating{
		UserID:       userID,
		SuggestionID: item.ID,
		Rating:       value,
		Comment:      strings.TrimSpace(in.Comment),
		Image:        imageURL,
	})
	if err != nil {
		return nil, rs.classify("upsert rating", err)
	}
	rs.log.Info("Rating saved", "user_id", userID, "external_id", in.ExternalID, "rating", value)
	return saved, nil
}

func (rs *ratingService) uploadImage(ctx context.Context, userID, suggestionID uuid.UUID, r io.Reader, name string) (string, error) {
	if rs.images == nil {
		return "", apierr.Validation("image uploads are not enabled")
	}
	ext := strings.ToLower(path.Ext(name))
	if gcp.ContentTypeForKey(ext) == "" {
		return "", apierr.Validation("image must be png, jpeg, webp or gif")
	}
	key := fmt.Sprintf("reviews/%s/%s/%s%s", suggestionID, userID, uuid.NewString(), ext)
	url, err := rs.images.Upload(ctx, key, r)
	if err != nil {
		rs.log.Error("Review image upload failed", "key", key, "error", err)
		return "", apierr.Upstream(err)
	}
	return url, nil
}

func (rs *ratingService) lookup(dbc dbctx.Context, externalID string) (*types.Suggestion, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, apierr.Validation("external_id is required")
	}
	item, err := rs.suggestionRepo.GetByExternalID(dbc, externalID)
	if err != nil {
		return nil, rs.classify("lookup suggestion", err)
	}
	if item == nil {
		return nil, apierr.NotFound("suggestion %q not found", externalID)
	}
	return item, nil
}

func (rs *ratingService) Reviews(ctx context.Context, externalID string) ([]ReviewView, error) {
	dbc := dbctx.New(ctx)
	item, err := rs.lookup(dbc, externalID)
	if err != nil {
		return nil, err
	}
	rows, err := rs.ratingRepo.ListBySuggestion(dbc, item.ID)
	if err != nil {
		return nil, rs.classify("list reviews", err)
	}
	out := make([]ReviewView, 0, len(rows))
	for _, r := range rows {
		v := ReviewView{
			Rating:    r.Rating,
			Comment:   r.Comment,
			Image:     r.Image,
			CreatedAt: r.CreatedAt,
		}
		if r.User != nil {
			v.User = ReviewUser{Name: r.User.DisplayName(), Email: r.User.Email}
		}
		out = append(out, v)
	}
	return out, nil
}

func (rs *ratingService) AverageRating(ctx context.Context, externalID string) (*AverageRatingView, error) {
	dbc := dbctx.New(ctx)
	item, err := rs.lookup(dbc, externalID)
	if err != nil {
		return nil, err
	}
	sum, err := rs.ratingRepo.SummaryBySuggestion(dbc, item.ID)
	if err != nil {
		return nil, rs.classify("rating summary", err)
	}
	out := &AverageRatingView{ExternalID: item.ExternalID, NumRatings: sum.Count}
	if sum.Count > 0 {
		avg := sum.Average
		out.AverageRating = &avg
	}
	if userID := ctxutil.UserID(ctx); userID != uuid.Nil {
		mine, err := rs.ratingRepo.GetByUserAndSuggestion(dbc, userID, item.ID)
		if err != nil {
			return nil, rs.classify("load user rating", err)
		}
		if mine != nil {
			v := mine.Rating
			out.UserRating = &v
		}
	}
	return out, nil
}

func (rs *ratingService) classify(op string, err error) error {
	ae := apierr.From(err)
	if !ae.Public() {
		rs.log.Error("Rating operation failed", "op", op, "error", err)
	}
	return ae
}
