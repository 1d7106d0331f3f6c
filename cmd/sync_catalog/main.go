package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/pathfinder-backend/internal/app"
	"github.com/yungbote/pathfinder-backend/internal/temporalx/catalogsync"
)

func main() {
	var (
		prune       = flag.Bool("prune", false, "delete catalog rows missing from the sheet")
		skipTag     = flag.Bool("skip-tag", false, "do not classify untagged rows")
		skipEmbed   = flag.Bool("skip-embed", false, "do not embed rows missing an embedding")
		limit       = flag.Int("limit", 0, "max rows to tag and embed (0 = all)")
		viaTemporal = flag.Bool("temporal", false, "run as a Temporal workflow instead of in-process")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The command never serves HTTP or hosts the worker.
	_ = os.Setenv("RUN_SERVER", "false")
	_ = os.Setenv("RUN_WORKER", "true")

	a, err := app.New(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	res, err := a.SyncCatalog(ctx, catalogsync.Input{
		Prune:         *prune,
		SkipTagging:   *skipTag,
		SkipEmbedding: *skipEmbed,
		Limit:         *limit,
	}, *viaTemporal)
	if err != nil {
		a.Log.Error("Catalog sync failed", "error", err)
		a.Close()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)
}
