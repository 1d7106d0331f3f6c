package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/pathfinder-backend/internal/http/handlers"
	httpMW "github.com/yungbote/pathfinder-backend/internal/http/middleware"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	MetricsEnabled bool

	AuthMiddleware *httpMW.AuthMiddleware

	AuthHandler       *httpH.AuthHandler
	ProfileHandler    *httpH.ProfileHandler
	SuggestionHandler *httpH.SuggestionHandler
	SocialHandler     *httpH.SocialHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))
	if cfg.MetricsEnabled {
		r.Use(httpMW.Metrics())
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	if cfg.HealthHandler != nil {
		api.GET("/health", cfg.HealthHandler.Health)
	}

	requireAuth := func(c *gin.Context) { c.Next() }
	optionalAuth := func(c *gin.Context) { c.Next() }
	if cfg.AuthMiddleware != nil {
		requireAuth = cfg.AuthMiddleware.RequireAuth()
		optionalAuth = cfg.AuthMiddleware.OptionalAuth()
	}

	// Auth
	if h := cfg.AuthHandler; h != nil {
		api.POST("/register", h.Register)
		api.POST("/token", h.Login)
		api.POST("/token/refresh", h.Refresh)
		api.POST("/accounts/google", h.GoogleLogin)
		api.POST("/logout", requireAuth, h.Logout)
		api.GET("/test-jwt", requireAuth, h.TestJWT)
		api.DELETE("/accounts/me", requireAuth, h.DeleteAccount)
	}

	// Profile
	if h := cfg.ProfileHandler; h != nil {
		accounts := api.Group("/accounts", requireAuth)
		accounts.GET("/profile", h.GetProfile)
		accounts.POST("/update-user-information", h.UpdateInformation)
		accounts.POST("/save-item", h.SaveItem)
		accounts.GET("/check-item-saved", h.CheckItemSaved)
		accounts.POST("/check-item-saved", h.CheckItemSaved)
		accounts.GET("/saved-items", h.SavedItems)
		accounts.POST("/saved-items", h.SavedItems)
	}

	// Catalog
	if h := cfg.SuggestionHandler; h != nil {
		api.GET("/suggestions", optionalAuth, h.List)
		api.GET("/suggestions/:external_id", h.Detail)
		api.GET("/suggestions-with-saved-status/:external_id", requireAuth, h.DetailWithSaved)
		api.GET("/personalized-suggestions", requireAuth, h.Personalized)
	}

	// Social
	if h := cfg.SocialHandler; h != nil {
		social := api.Group("/social")
		social.POST("/rate", requireAuth, h.Rate)
		social.GET("/reviews", h.Reviews)
		social.GET("/average-rating", optionalAuth, h.AverageRating)
	}

	return r
}
