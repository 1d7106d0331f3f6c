package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/pathfinder-backend/internal/platform/envutil"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
	"github.com/yungbote/pathfinder-backend/internal/services"
	"github.com/yungbote/pathfinder-backend/internal/temporalx"
	"github.com/yungbote/pathfinder-backend/internal/temporalx/catalogsync"
)

type Runner struct {
	log  *logger.Logger
	cfg  temporalx.Config
	tc   temporalsdkclient.Client
	sync services.CatalogSyncService
}

func NewRunner(log *logger.Logger, cfg temporalx.Config, tc temporalsdkclient.Client, sync services.CatalogSyncService) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if sync == nil {
		return nil, fmt.Errorf("temporal worker missing catalog sync service")
	}
	return &Runner{log: log.With("component", "TemporalWorker"), cfg: cfg, tc: tc, sync: sync}, nil
}

// Start launches the worker and stops it when ctx is done. Start failures are
// retried for TEMPORAL_WORKER_START_MAX_WAIT_SECONDS.
func (r *Runner) Start(ctx context.Context) error {
	cfg := r.cfg
	r.log.Info("Starting Temporal worker", "address", cfg.Address, "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)

	if cfg.AutoRegisterNamespace {
		if err := temporalx.EnsureNamespace(ctx, r.tc, cfg, r.log); err != nil {
			r.log.Warn("Temporal namespace ensure failed; worker will retry on start", "namespace", cfg.Namespace, "error", err)
		}
	}

	maxWait := envutil.Seconds("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", 60*time.Second)
	backoff := envutil.Duration("TEMPORAL_WORKER_START_BACKOFF", 250*time.Millisecond)
	backoffMax := envutil.Duration("TEMPORAL_WORKER_START_BACKOFF_MAX", 5*time.Second)
	deadline := time.Now().Add(maxWait)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("Temporal worker started", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(startErr, &nfe) && cfg.AutoRegisterNamespace {
			_ = temporalx.EnsureNamespace(ctx, r.tc, cfg, r.log)
		}

		if maxWait <= 0 || time.Now().After(deadline) {
			if errors.As(startErr, &nfe) {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", cfg.Namespace, startErr)
			}
			return startErr
		}

		r.log.Warn("Temporal worker failed to start; retrying", "task_queue", cfg.TaskQueue, "attempt", attempt, "error", startErr)
		sleep := backoff << (attempt - 1)
		if sleep <= 0 || sleep > backoffMax {
			sleep = backoffMax
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func (r *Runner) newWorker() worker.Worker {
	concurrency := r.cfg.WorkerConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})
	Register(w, &catalogsync.Activities{Log: r.log, Sync: r.sync})
	return w
}

// registry is the part of worker.Worker that Register needs; the test
// workflow environment satisfies it too.
type registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register adds the catalog sync workflow and activities to w.
func Register(w registry, acts *catalogsync.Activities) {
	w.RegisterWorkflowWithOptions(catalogsync.Workflow, workflow.RegisterOptions{Name: catalogsync.WorkflowName})
	w.RegisterActivityWithOptions(acts.Import, activity.RegisterOptions{Name: catalogsync.ActivityImport})
	w.RegisterActivityWithOptions(acts.TagMissing, activity.RegisterOptions{Name: catalogsync.ActivityTagMissing})
	w.RegisterActivityWithOptions(acts.EmbedMissing, activity.RegisterOptions{Name: catalogsync.ActivityEmbed})
}

// ScheduleCatalogSync starts the cron workflow unless one is already running.
func ScheduleCatalogSync(ctx context.Context, log *logger.Logger, tc temporalsdkclient.Client, cfg temporalx.Config) error {
	if tc == nil || !cfg.CronEnabled() {
		return nil
	}
	run, err := tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:                    catalogsync.ScheduleID,
		TaskQueue:             cfg.TaskQueue,
		CronSchedule:          cfg.CatalogSyncCron,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}, catalogsync.WorkflowName, catalogsync.Input{Prune: cfg.CatalogSyncPrune})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			log.Info("Catalog sync already scheduled", "workflow_id", catalogsync.ScheduleID)
			return nil
		}
		return fmt.Errorf("schedule catalog sync: %w", err)
	}
	log.Info("Catalog sync scheduled", "workflow_id", run.GetID(), "run_id", run.GetRunID(), "cron", cfg.CatalogSyncCron)
	return nil
}

// RunCatalogSync starts a one-off sync and waits for its result.
func RunCatalogSync(ctx context.Context, tc temporalsdkclient.Client, cfg temporalx.Config, in catalogsync.Input) (*catalogsync.Result, error) {
	run, err := tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        fmt.Sprintf("catalog-sync-%d", time.Now().UnixNano()),
		TaskQueue: cfg.TaskQueue,
	}, catalogsync.WorkflowName, in)
	if err != nil {
		return nil, fmt.Errorf("start catalog sync: %w", err)
	}
	var out catalogsync.Result
	if err := run.Get(ctx, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
