package catalogsync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
)

func TestRunLocal(t *testing.T) {
	sync := &fakeSync{tagErr: errors.New("llm down")}
	res, err := RunLocal(context.Background(), logger.Nop(), sync, Input{Prune: true})
	require.NoError(t, err)
	require.True(t, sync.pruned.Load())
	require.Equal(t, 4, res.Upserted)
	require.EqualValues(t, 2, res.Pruned)
	require.Zero(t, res.Tagged)
	require.Equal(t, 4, res.Embedded)
	require.Len(t, res.Errors, 1)

	_, err = RunLocal(context.Background(), logger.Nop(), &fakeSync{importErr: errors.New("sheet 404")}, Input{})
	require.Error(t, err)

	sync = &fakeSync{}
	res, err = RunLocal(context.Background(), logger.Nop(), sync, Input{SkipTagging: true, SkipEmbedding: true})
	require.NoError(t, err)
	require.Zero(t, sync.tags.Load())
	require.Zero(t, sync.embeds.Load())
	require.Empty(t, res.Errors)
}
