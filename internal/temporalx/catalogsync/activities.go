package catalogsync

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/pathfinder-backend/internal/platform/apierr"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
	"github.com/yungbote/pathfinder-backend/internal/services"
)

type Activities struct {
	Log  *logger.Logger
	Sync services.CatalogSyncService
}

func (a *Activities) Import(ctx context.Context, prune bool) (services.ImportReport, error) {
	if a == nil || a.Sync == nil {
		return services.ImportReport{}, temporal.NewNonRetryableApplicationError("catalog sync not configured", "config", nil)
	}
	rep, err := a.Sync.Import(ctx, prune)
	if err != nil {
		return rep, activityError("import", err)
	}
	a.logger(ctx).Info("Catalog import finished",
		"fetched", rep.Fetched, "upserted", rep.Upserted, "skipped", rep.Skipped, "pruned", rep.Pruned)
	return rep, nil
}

func (a *Activities) TagMissing(ctx context.Context, limit int) (int, error) {
	if a == nil || a.Sync == nil {
		return 0, temporal.NewNonRetryableApplicationError("catalog sync not configured", "config", nil)
	}
	n, err := a.Sync.TagMissing(ctx, limit)
	if err != nil {
		return n, activityError("tag", err)
	}
	return n, nil
}

func (a *Activities) EmbedMissing(ctx context.Context, limit int) (int, error) {
	if a == nil || a.Sync == nil {
		return 0, temporal.NewNonRetryableApplicationError("catalog sync not configured", "config", nil)
	}
	n, err := a.Sync.EmbedMissing(ctx, limit)
	if err != nil {
		return n, activityError("embed", err)
	}
	return n, nil
}

func (a *Activities) logger(ctx context.Context) *logger.Logger {
	log := a.Log
	if log == nil {
		log = logger.Nop()
	}
	if activity.IsActivity(ctx) {
		info := activity.GetInfo(ctx)
		return log.With("activity", info.ActivityType.Name, "attempt", info.Attempt)
	}
	return log
}

// activityError marks client-side failures (bad config, 4xx from the sheet)
// as non-retryable; everything else is left to the retry policy.
func activityError(step string, err error) error {
	var ae *apierr.Error
	if errors.As(err, &ae) && ae.Public() {
		return temporal.NewNonRetryableApplicationError(fmt.Sprintf("%s: %v", step, err), ae.Code, err)
	}
	return fmt.Errorf("%s: %w", step, err)
}
