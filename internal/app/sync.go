package app

import (
	"context"
	"fmt"

	"github.com/yungbote/pathfinder-backend/internal/temporalx/catalogsync"
	"github.com/yungbote/pathfinder-backend/internal/temporalx/temporalworker"
)

// SyncCatalog runs one catalog sync. With viaTemporal it is dispatched to the
// worker fleet and awaited; otherwise it runs in this process.
func (a *App) SyncCatalog(ctx context.Context, in catalogsync.Input, viaTemporal bool) (*catalogsync.Result, error) {
	if !viaTemporal {
		return catalogsync.RunLocal(ctx, a.Log, a.Services.CatalogSync, in)
	}
	if a.Clients.Temporal == nil {
		return nil, fmt.Errorf("temporal is not configured (set TEMPORAL_ADDRESS)")
	}
	return temporalworker.RunCatalogSync(ctx, a.Clients.Temporal, a.Cfg.Temporal, in)
}
