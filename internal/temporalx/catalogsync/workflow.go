package catalogsync

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/pathfinder-backend/internal/services"
)

// Workflow imports the sheet, then tags and embeds new rows. An import
// failure fails the run; tagging and embedding failures are recorded in the
// result and picked up again by the next run.
func Workflow(ctx workflow.Context, in Input) (*Result, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    10 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    5 * time.Minute,
			MaximumAttempts:    MaxAttempts,
		},
	})
	log := workflow.GetLogger(ctx)

	var rep services.ImportReport
	if err := workflow.ExecuteActivity(ctx, ActivityImport, in.Prune).Get(ctx, &rep); err != nil {
		return nil, err
	}
	out := &Result{
		Fetched:  rep.Fetched,
		Upserted: rep.Upserted,
		Skipped:  rep.Skipped,
		Pruned:   rep.Pruned,
	}

	if !in.SkipTagging {
		if err := workflow.ExecuteActivity(ctx, ActivityTagMissing, in.Limit).Get(ctx, &out.Tagged); err != nil {
			log.Warn("Catalog tagging failed", "error", err)
			out.Errors = append(out.Errors, "tag: "+err.Error())
		}
	}
	if !in.SkipEmbedding {
		if err := workflow.ExecuteActivity(ctx, ActivityEmbed, in.Limit).Get(ctx, &out.Embedded); err != nil {
			log.Warn("Catalog embedding failed", "error", err)
			out.Errors = append(out.Errors, "embed: "+err.Error())
		}
	}
	log.Info("Catalog sync finished", "upserted", out.Upserted, "tagged", out.Tagged, "embedded", out.Embedded)
	return out, nil
}
