package catalogsync

import (
	"context"
	"fmt"

	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
	"github.com/yungbote/pathfinder-backend/internal/services"
)

// RunLocal performs the same steps as Workflow in the calling process, for
// deployments without Temporal.
func RunLocal(ctx context.Context, log *logger.Logger, sync services.CatalogSyncService, in Input) (*Result, error) {
	rep, err := sync.Import(ctx, in.Prune)
	if err != nil {
		return nil, fmt.Errorf("catalog import: %w", err)
	}
	out := &Result{
		Fetched:  rep.Fetched,
		Upserted: rep.Upserted,
		Skipped:  rep.Skipped,
		Pruned:   rep.Pruned,
	}
	if !in.SkipTagging {
		n, err := sync.TagMissing(ctx, in.Limit)
		out.Tagged = n
		if err != nil {
			log.Warn("Catalog tagging failed", "error", err)
			out.Errors = append(out.Errors, "tag: "+err.Error())
		}
	}
	if !in.SkipEmbedding {
		n, err := sync.EmbedMissing(ctx, in.Limit)
		out.Embedded = n
		if err != nil {
			log.Warn("Catalog embedding failed", "error", err)
			out.Errors = append(out.Errors, "embed: "+err.Error())
		}
	}
	log.Info("Catalog sync finished", "upserted", out.Upserted, "tagged", out.Tagged, "embedded", out.Embedded)
	return out, nil
}
