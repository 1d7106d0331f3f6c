package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/pathfinder-backend/internal/http/response"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
	"github.com/yungbote/pathfinder-backend/internal/ranking"
	"github.com/yungbote/pathfinder-backend/internal/services"
)

type SuggestionHandler struct {
	log             *logger.Logger
	catalog         services.CatalogService
	personalization services.PersonalizationService
}

func NewSuggestionHandler(log *logger.Logger, catalog services.CatalogService, personalization services.PersonalizationService) *SuggestionHandler {
	return &SuggestionHandler{
		log:             log.With("handler", "SuggestionHandler"),
		catalog:         catalog,
		personalization: personalization,
	}
}

// GET /api/suggestions?page&page_size&query&mode
func (sh *SuggestionHandler) List(c *gin.Context) {
	mode, err := services.ParseSearchMode(c.Query("mode"))
	if err != nil {
		response.RespondError(c, sh.log, err)
		return
	}
	page, err := sh.catalog.List(c.Request.Context(), services.CatalogQuery{
		Query: c.Query("query"),
		Mode:  mode,
		Page:  ranking.ParsePageRequest(c.Query("page"), c.Query("page_size")),
	})
	if err != nil {
		response.RespondError(c, sh.log, err)
		return
	}
	response.RespondOK(c, page)
}

// GET /api/suggestions/:external_id
func (sh *SuggestionHandler) Detail(c *gin.Context) {
	sh.detail(c, false)
}

// GET /api/suggestions-with-saved-status/:external_id
func (sh *SuggestionHandler) DetailWithSaved(c *gin.Context) {
	sh.detail(c, true)
}

func (sh *SuggestionHandler) detail(c *gin.Context, withSaved bool) {
	view, err := sh.catalog.Detail(c.Request.Context(), c.Param("external_id"), withSaved)
	if err != nil {
		response.RespondError(c, sh.log, err)
		return
	}
	response.RespondOK(c, view)
}

// GET /api/personalized-suggestions?page&page_size
func (sh *SuggestionHandler) Personalized(c *gin.Context) {
	page, err := sh.personalization.Personalized(
		c.Request.Context(),
		ranking.ParsePageRequest(c.Query("page"), c.Query("page_size")),
	)
	if err != nil {
		response.RespondError(c, sh.log, err)
		return
	}
	response.RespondOK(c, page)
}
