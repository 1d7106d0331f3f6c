package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/pathfinder-backend/internal/http/response"
	"github.com/yungbote/pathfinder-backend/internal/platform/apierr"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
	"github.com/yungbote/pathfinder-backend/internal/services"
)

type ProfileHandler struct {
	log            *logger.Logger
	profileService services.ProfileService
}

func NewProfileHandler(log *logger.Logger, profileService services.ProfileService) *ProfileHandler {
	RegisterValidators()
	return &ProfileHandler{log: log.With("handler", "ProfileHandler"), profileService: profileService}
}

type externalIDRequest struct {
	ExternalID string `json:"external_id" form:"external_id" binding:"required,externalid"`
}

// GET /api/accounts/profile
func (ph *ProfileHandler) GetProfile(c *gin.Context) {
	view, err := ph.profileService.Get(c.Request.Context())
	if err != nil {
		response.RespondError(c, ph.log, err)
		return
	}
	response.RespondOK(c, view)
}

// POST /api/accounts/update-user-information
func (ph *ProfileHandler) UpdateInformation(c *gin.Context) {
	var req struct {
		BasicInformation map[string]any `json:"basic_information"`
		Interests        []string       `json:"interests"`
		Goals            []string       `json:"goals"`
		OtherGoals       *string        `json:"other_goals"`
	}
	if err := bindJSON(c, &req); err != nil {
		response.RespondError(c, ph.log, err)
		return
	}
	view, err := ph.profileService.UpdateInformation(c.Request.Context(), services.ProfileUpdate{
		BasicInformation: req.BasicInformation,
		Interests:        req.Interests,
		Goals:            req.Goals,
		OtherGoals:       req.OtherGoals,
	})
	if err != nil {
		response.RespondError(c, ph.log, err)
		return
	}
	response.RespondOK(c, gin.H{"message": "User information updated successfully", "profile": view})
}

// POST /api/accounts/save-item
func (ph *ProfileHandler) SaveItem(c *gin.Context) {
	var req externalIDRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondError(c, ph.log, err)
		return
	}
	res, err := ph.profileService.ToggleSaved(c.Request.Context(), strings.TrimSpace(req.ExternalID))
	if err != nil {
		response.RespondError(c, ph.log, err)
		return
	}
	response.RespondOK(c, res)
}

// GET|POST /api/accounts/check-item-saved
// external_id comes from the query string on GET and from the JSON body on POST.
func (ph *ProfileHandler) CheckItemSaved(c *gin.Context) {
	var req externalIDRequest
	var err error
	if c.Request.Method == http.MethodGet {
		err = bindQuery(c, &req)
	} else {
		err = bindJSON(c, &req)
	}
	if err != nil {
		response.RespondError(c, ph.log, err)
		return
	}
	saved, err := ph.profileService.IsSaved(c.Request.Context(), strings.TrimSpace(req.ExternalID))
	if err != nil {
		response.RespondError(c, ph.log, err)
		return
	}
	response.RespondOK(c, gin.H{"is_saved": saved})
}

// GET|POST /api/accounts/saved-items
func (ph *ProfileHandler) SavedItems(c *gin.Context) {
	items, err := ph.profileService.SavedItems(c.Request.Context())
	if err != nil {
		response.RespondError(c, ph.log, err)
		return
	}
	response.RespondOK(c, gin.H{"saved_items": items})
}

func requireParam(c *gin.Context, name string) (string, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		v = strings.TrimSpace(c.Param(name))
	}
	if v == "" {
		return "", apierr.Validation("%s is required", name)
	}
	return v, nil
}
