package app

import (
	"net"

	apphttp "github.com/yungbote/pathfinder-backend/internal/http"
	httpH "github.com/yungbote/pathfinder-backend/internal/http/handlers"
	httpMW "github.com/yungbote/pathfinder-backend/internal/http/middleware"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health     *httpH.HealthHandler
	Auth       *httpH.AuthHandler
	Profile    *httpH.ProfileHandler
	Suggestion *httpH.SuggestionHandler
	Social     *httpH.SocialHandler
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{Auth: httpMW.NewAuthMiddleware(log, services.Auth)}
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(),
		Auth:       httpH.NewAuthHandler(log, services.Auth),
		Profile:    httpH.NewProfileHandler(log, services.Profile),
		Suggestion: httpH.NewSuggestionHandler(log, services.Catalog, services.Personalization),
		Social:     httpH.NewSocialHandler(log, services.Rating),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *apphttp.Server {
	return apphttp.NewServer(net.JoinHostPort("", cfg.Port), apphttp.RouterConfig{
		Log:               log,
		ServiceName:       cfg.ServiceName,
		CORSOrigins:       cfg.CORSOrigins,
		MetricsEnabled:    cfg.MetricsEnabled,
		AuthMiddleware:    middleware.Auth,
		AuthHandler:       handlers.Auth,
		ProfileHandler:    handlers.Profile,
		SuggestionHandler: handlers.Suggestion,
		SocialHandler:     handlers.Social,
		HealthHandler:     handlers.Health,
	})
}
