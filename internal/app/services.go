package app

import (
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
	"github.com/yungbote/pathfinder-backend/internal/ranking"
	"github.com/yungbote/pathfinder-backend/internal/services"
)

type Services struct {
	Auth            services.AuthService
	Profile         services.ProfileService
	Catalog         services.CatalogService
	Rating          services.RatingService
	Personalization services.PersonalizationService
	CatalogSync     services.CatalogSyncService

	// Ranker is nil when no LLM client is configured.
	Ranker *ranking.Orchestrator
	cache  ranking.Cache
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	var oidc services.OIDCVerifier
	if cfg.Auth.GoogleClientID != "" {
		v, err := services.NewOIDCVerifier(&http.Client{Timeout: 10 * time.Second}, services.OIDCConfig{
			GoogleClientID: cfg.Auth.GoogleClientID,
		})
		if err != nil {
			return Services{}, fmt.Errorf("init oidc verifier: %w", err)
		}
		oidc = v
	} else {
		log.Warn("GOOGLE_OIDC_CLIENT_ID not set; Google sign-in disabled")
	}

	auth, err := services.NewAuthService(
		db,
		log,
		repos.User,
		repos.UserProfile,
		repos.UserToken,
		repos.UserIdentity,
		repos.UserRating,
		oidc,
		services.AuthConfig{
			JWTSecretKey:    cfg.Auth.JWTSecretKey,
			AccessTTL:       cfg.Auth.AccessTokenTTL,
			RefreshTTL:      cfg.Auth.RefreshTokenTTL,
			AllowedGoogleHD: cfg.Auth.AllowedGoogleHD,
		},
	)
	if err != nil {
		return Services{}, fmt.Errorf("init auth service: %w", err)
	}

	profile := services.NewProfileService(db, log, repos.User, repos.UserProfile, repos.Suggestion)
	catalog := services.NewCatalogService(log, repos.Suggestion, profile, clients.OpenAI)
	rating := services.NewRatingService(db, log, repos.UserRating, repos.Suggestion, clients.Images)
	catalogSync := services.NewCatalogSyncService(db, log, repos.Suggestion, clients.OpenAI, services.CatalogSyncConfig{
		SheetURL:       cfg.Catalog.SheetURL,
		SheetID:        cfg.Catalog.SheetID,
		TagConcurrency: cfg.Catalog.TagConcurrency,
	})

	cache, err := wireRankingCache(log, cfg, clients)
	if err != nil {
		return Services{}, err
	}

	out := Services{
		Auth:        auth,
		Profile:     profile,
		Catalog:     catalog,
		Rating:      rating,
		CatalogSync: catalogSync,
		cache:       cache,
	}

	var ranker services.Ranker
	if clients.OpenAI != nil {
		oracle, err := ranking.NewLLMOracle(log, clients.OpenAI, ranking.OracleConfig{
			Timeout: cfg.Ranking.OracleTimeout,
			RPS:     cfg.Ranking.OracleRPS,
			Burst:   cfg.Ranking.OracleBurst,
			TopN:    cfg.Ranking.TopN,
		})
		if err != nil {
			return Services{}, fmt.Errorf("init ranking oracle: %w", err)
		}
		orch, err := ranking.NewOrchestrator(log, repos.UserProfile, repos.Suggestion, cache, oracle)
		if err != nil {
			return Services{}, fmt.Errorf("init ranking orchestrator: %w", err)
		}
		out.Ranker = orch
		ranker = orch
	}
	out.Personalization = services.NewPersonalizationService(log, ranker)

	return out, nil
}

// wireRankingCache uses Redis when configured, else a bounded in-process cache.
func wireRankingCache(log *logger.Logger, cfg Config, clients Clients) (ranking.Cache, error) {
	if clients.Redis != nil {
		c, err := ranking.NewRedisCache(clients.Redis, cfg.Ranking.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("init redis ranking cache: %w", err)
		}
		log.Info("Ranking cache: redis", "ttl", cfg.Ranking.CacheTTL)
		return c, nil
	}
	c, err := ranking.NewMemoryCache(cfg.Ranking.CacheMaxEntries, cfg.Ranking.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("init memory ranking cache: %w", err)
	}
	log.Info("Ranking cache: memory", "ttl", cfg.Ranking.CacheTTL, "max_entries", cfg.Ranking.CacheMaxEntries)
	return c, nil
}

func (s *Services) Close() {
	if mc, ok := s.cache.(*ranking.MemoryCache); ok {
		mc.Close()
	}
}
