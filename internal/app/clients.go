package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/pathfinder-backend/internal/platform/gcp"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
	"github.com/yungbote/pathfinder-backend/internal/platform/openai"
	"github.com/yungbote/pathfinder-backend/internal/platform/redisx"
	"github.com/yungbote/pathfinder-backend/internal/temporalx"
)

// Clients holds the optional outbound connections. Any field may be nil when
// its configuration is absent.
type Clients struct {
	Redis    *goredis.Client
	OpenAI   openai.Client
	Images   gcp.ImageStore
	Temporal temporalsdkclient.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if cfg.Redis.Enabled() {
		rdb, err := redisx.NewClient(ctx, log, cfg.Redis)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
	}

	// OpenAI
	if cfg.OpenAI.APIKey != "" {
		llm, err := openai.NewClient(log, cfg.OpenAI)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init openai client: %w", err)
		}
		out.OpenAI = llm
	} else {
		log.Warn("OPENAI_API_KEY not set; personalized ranking, tagging and semantic search are unavailable")
	}

	// Gcs
	if cfg.Storage.Enabled() {
		images, err := gcp.NewImageStore(ctx, log, cfg.Storage)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init image store: %w", err)
		}
		out.Images = images
	}

	// Temporal
	tc, err := temporalx.NewClient(ctx, log, cfg.Temporal)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init temporal client: %w", err)
	}
	out.Temporal = tc

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
		c.Temporal = nil
	}
	if c.Images != nil {
		_ = c.Images.Close()
		c.Images = nil
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
		c.Redis = nil
	}
}
