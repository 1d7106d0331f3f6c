package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/pathfinder-backend/internal/http/response"
	"github.com/yungbote/pathfinder-backend/internal/platform/apierr"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
	"github.com/yungbote/pathfinder-backend/internal/services"
)

// maxReviewImageBytes bounds multipart review uploads.
const maxReviewImageBytes = 10 << 20

type SocialHandler struct {
	log           *logger.Logger
	ratingService services.RatingService
}

func NewSocialHandler(log *logger.Logger, ratingService services.RatingService) *SocialHandler {
	RegisterValidators()
	return &SocialHandler{log: log.With("handler", "SocialHandler"), ratingService: ratingService}
}

// POST /api/social/rate
// JSON { "external_id", "rating", "comment" } or multipart with the same
// fields plus an optional "image" file.
func (sh *SocialHandler) Rate(c *gin.Context) {
	in, cleanup, err := sh.readRateInput(c)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		response.RespondError(c, sh.log, err)
		return
	}
	saved, err := sh.ratingService.Rate(c.Request.Context(), in)
	if err != nil {
		response.RespondError(c, sh.log, err)
		return
	}
	response.RespondOK(c, gin.H{
		"message":     "Rating saved",
		"external_id": in.ExternalID,
		"rating":      saved.Rating,
		"comment":     saved.Comment,
		"image":       saved.Image,
		"created_at":  saved.CreatedAt,
	})
}

func (sh *SocialHandler) readRateInput(c *gin.Context) (services.RateInput, func(), error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxReviewImageBytes+1<<20)
		in := services.RateInput{
			ExternalID: c.PostForm("external_id"),
			Rating:     c.PostForm("rating"),
			Comment:    c.PostForm("comment"),
		}
		fh, err := c.FormFile("image")
		if errors.Is(err, http.ErrMissingFile) {
			return in, nil, nil
		}
		if err != nil {
			return in, nil, apierr.Validation("invalid multipart body: %s", err.Error())
		}
		if fh.Size > maxReviewImageBytes {
			return in, nil, apierr.Validation("image must be at most %d MB", maxReviewImageBytes>>20)
		}
		f, err := fh.Open()
		if err != nil {
			return in, nil, apierr.Validation("unreadable image: %s", err.Error())
		}
		in.Image = f
		in.ImageName = fh.Filename
		return in, func() { _ = f.Close() }, nil
	}

	var req struct {
		ExternalID string `json:"external_id" binding:"required,externalid"`
		Rating     any    `json:"rating"`
		Comment    string `json:"comment"`
	}
	if err := bindJSON(c, &req); err != nil {
		return services.RateInput{}, nil, err
	}
	return services.RateInput{
		ExternalID: req.ExternalID,
		Rating:     ratingString(req.Rating),
		Comment:    req.Comment,
	}, nil, nil
}

// GET /api/social/reviews?external_id
func (sh *SocialHandler) Reviews(c *gin.Context) {
	externalID, err := requireParam(c, "external_id")
	if err != nil {
		response.RespondError(c, sh.log, err)
		return
	}
	reviews, err := sh.ratingService.Reviews(c.Request.Context(), externalID)
	if err != nil {
		response.RespondError(c, sh.log, err)
		return
	}
	response.RespondOK(c, gin.H{"reviews": reviews})
}

// GET /api/social/average-rating?external_id
func (sh *SocialHandler) AverageRating(c *gin.Context) {
	externalID, err := requireParam(c, "external_id")
	if err != nil {
		response.RespondError(c, sh.log, err)
		return
	}
	view, err := sh.ratingService.AverageRating(c.Request.Context(), externalID)
	if err != nil {
		response.RespondError(c, sh.log, err)
		return
	}
	response.RespondOK(c, view)
}
