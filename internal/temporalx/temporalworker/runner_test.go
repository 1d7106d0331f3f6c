package temporalworker

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
	"github.com/yungbote/pathfinder-backend/internal/temporalx"
	"github.com/yungbote/pathfinder-backend/internal/temporalx/catalogsync"
)

func TestNewRunnerRequiresDeps(t *testing.T) {
	_, err := NewRunner(logger.Nop(), temporalx.Config{}, nil, nil)
	require.Error(t, err)
}

func TestRegisterWiresWorkflowByName(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	Register(env, &catalogsync.Activities{Log: logger.Nop()})

	// Without a sync service the import activity fails without retrying.
	env.ExecuteWorkflow(catalogsync.WorkflowName, catalogsync.Input{})
	require.True(t, env.IsWorkflowCompleted())
	require.ErrorContains(t, env.GetWorkflowError(), "catalog sync not configured")
}

func TestScheduleCatalogSyncDisabled(t *testing.T) {
	cfg := temporalx.Config{CatalogSyncCron: "off"}
	require.False(t, cfg.CronEnabled())
	require.NoError(t, ScheduleCatalogSync(t.Context(), logger.Nop(), nil, cfg))
}
