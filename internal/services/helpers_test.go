package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/pathfinder-backend/internal/data/repos"
	"github.com/yungbote/pathfinder-backend/internal/data/repos/testutil"
	"github.com/yungbote/pathfinder-backend/internal/platform/apierr"
	"github.com/yungbote/pathfinder-backend/internal/platform/ctxutil"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
)

type testEnv struct {
	db          *gorm.DB
	log         *logger.Logger
	users       repos.UserRepo
	profiles    repos.UserProfileRepo
	tokens      repos.UserTokenRepo
	identities  repos.UserIdentityRepo
	suggestions repos.SuggestionRepo
	ratings     repos.UserRatingRepo
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	return &testEnv{
		db:          db,
		log:         log,
		users:       repos.NewUserRepo(db, log),
		profiles:    repos.NewUserProfileRepo(db, log),
		tokens:      repos.NewUserTokenRepo(db, log),
		identities:  repos.NewUserIdentityRepo(db, log),
		suggestions: repos.NewSuggestionRepo(db, log),
		ratings:     repos.NewUserRatingRepo(db, log),
	}
}

func asUser(userID uuid.UUID) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: userID})
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, status, apierr.From(err).Status, "error: %v", err)
}

// fakeLLM implements openai.Client.
type fakeLLM struct {
	mu       sync.Mutex
	embed    func(inputs []string) ([][]float32, error)
	generate func(system, user string) (map[string]any, error)
	prompts  []string
}

func (f *fakeLLM) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if f.embed == nil {
		out := make([][]float32, len(inputs))
		for i := range inputs {
			out[i] = []float32{float32(len(inputs[i])), 1}
		}
		return out, nil
	}
	return f.embed(inputs)
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, user)
	f.mu.Unlock()
	return f.generate(system, user)
}
