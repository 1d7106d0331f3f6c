package services

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/pathfinder-backend/internal/data/repos"
	"github.com/yungbote/pathfinder-backend/internal/pkg/dbctx"
	"github.com/yungbote/pathfinder-backend/internal/platform/apierr"
	"github.com/yungbote/pathfinder-backend/internal/platform/ctxutil"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
	"github.com/yungbote/pathfinder-backend/internal/ranking"
)

const (
	MsgItemSaved   = "Item added to saved items"
	MsgItemUnsaved = "Item removed from saved items"
)

type ProfileView struct {
	Name               string         `json:"name"`
	Email              string         `json:"email"`
	BasicInformation   map[string]any `json:"basic_information"`
	Interests          []string       `json:"interests"`
	Goals              []string       `json:"goals"`
	OtherGoals         *string        `json:"other_goals"`
	SavedItems         []string       `json:"saved_items"`
	FinishedOnboarding bool           `json:"finished_onboarding"`
}

// ProfileUpdate carries the onboarding answers. A nil field means the client
// did not send it.
type ProfileUpdate struct {
	BasicInformation map[string]any
	Interests        []string
	Goals            []string
	OtherGoals       *string
}

type ToggleResult struct {
	Message string `json:"message"`
	IsSaved bool   `json:"is_saved"`
}

type ProfileService interface {
	Get(ctx context.Context) (*ProfileView, error)
	UpdateInformation(ctx context.Context, in ProfileUpdate) (*ProfileView, error)
	ToggleSaved(ctx context.Context, externalID string) (*ToggleResult, error)
	IsSaved(ctx context.Context, externalID string) (bool, error)
	SavedItems(ctx context.Context) ([]SuggestionView, error)
	// SavedSet returns the caller's saved ids, or nil for anonymous callers.
	SavedSet(ctx context.Context) (map[string]struct{}, error)
}

type profileService struct {
	db             *gorm.DB
	log            *logger.Logger
	userRepo       repos.UserRepo
	profileRepo    repos.UserProfileRepo
	suggestionRepo repos.SuggestionRepo
}

func NewProfileService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	profileRepo repos.UserProfileRepo,
	suggestionRepo repos.SuggestionRepo,
) ProfileService {
	return &profileService{
		db:             db,
		log:            log.With("service", "ProfileService"),
		userRepo:       userRepo,
		profileRepo:    profileRepo,
		suggestionRepo: suggestionRepo,
	}
}

func requireUser(ctx context.Context) (uuid.UUID, error) {
	userID := ctxutil.UserID(ctx)
	if userID == uuid.Nil {
		return uuid.Nil, apierr.Unauthorized("authentication required")
	}
	return userID, nil
}

func (ps *profileService) Get(ctx context.Context) (*ProfileView, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return ps.load(dbctx.New(ctx), userID)
}

func (ps *profileService) load(dbc dbctx.Context, userID uuid.UUID) (*ProfileView, error) {
	users, err := ps.userRepo.GetByIDs(dbc, []uuid.UUID{userID})
	if err != nil {
		return nil, ps.classify("load user", err)
	}
	if len(users) == 0 {
		return nil, apierr.NotFound("user not found")
	}
	prof, err := ps.profileRepo.Ensure(dbc, userID)
	if err != nil {
		return nil, ps.classify("ensure profile", err)
	}
	u := users[0]
	return &ProfileView{
		Name:               u.DisplayName(),
		Email:              u.Email,
		BasicInformation:   map[string]any(prof.BasicInformation),
		Interests:          []string(prof.Interests),
		Goals:              []string(prof.Goals),
		OtherGoals:         prof.OtherGoals,
		SavedItems:         []string(prof.SavedItems),
		FinishedOnboarding: prof.FinishedOnboarding,
	}, nil
}

func (ps *profileService) UpdateInformation(ctx context.Context, in ProfileUpdate) (*ProfileView, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if in.BasicInformation == nil || in.Interests == nil || in.Goals == nil {
		return nil, apierr.Validation("basic_information, interests and goals are required")
	}
	if in.OtherGoals != nil {
		trimmed := strings.TrimSpace(*in.OtherGoals)
		in.OtherGoals = &trimmed
	}

	var out *ProfileView
	err = ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := ps.profileRepo.Ensure(dbc, userID); err != nil {
			return err
		}
		if err := ps.profileRepo.UpdateFields(dbc, userID, repos.ProfileFields{
			BasicInformation: in.BasicInformation,
			Interests:        cleanStrings(in.Interests),
			Goals:            cleanStrings(in.Goals),
			OtherGoals:       in.OtherGoals,
		}, true); err != nil {
			return err
		}
		var err error
		out, err = ps.load(dbc, userID)
		return err
	})
	if err != nil {
		return nil, ps.classify("update profile", err)
	}
	ps.log.Info("Profile updated", "user_id", userID)
	return out, nil
}

// ToggleSaved flips membership of externalID in the caller's saved items. The
// profile row is locked for the read-modify-write.
func (ps *profileService) ToggleSaved(ctx context.Context, externalID string) (*ToggleResult, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, apierr.Validation("external_id is required")
	}

	var out ToggleResult
	err = ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		prof, err := ps.profileRepo.GetByUserIDForUpdate(dbc, userID)
		if err != nil {
			return err
		}
		if prof == nil {
			return apierr.NotFound("profile not found")
		}
		item, err := ps.suggestionRepo.GetByExternalID(dbc, externalID)
		if err != nil {
			return err
		}
		if item == nil {
			return apierr.NotFound("suggestion %q not found", externalID)
		}

		items := []string(prof.SavedItems)
		if idx := slices.Index(items, externalID); idx >= 0 {
			items = slices.Delete(slices.Clone(items), idx, idx+1)
			out = ToggleResult{Message: MsgItemUnsaved, IsSaved: false}
		} else {
			items = append(slices.Clone(items), externalID)
			out = ToggleResult{Message: MsgItemSaved, IsSaved: true}
		}
		return ps.profileRepo.SetSavedItems(dbc, userID, items)
	})
	if err != nil {
		return nil, ps.classify("toggle saved", err)
	}
	return &out, nil
}

func (ps *profileService) IsSaved(ctx context.Context, externalID string) (bool, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return false, err
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return false, apierr.Validation("external_id is required")
	}
	prof, err := ps.profileRepo.GetByUserID(dbctx.New(ctx), userID)
	if err != nil {
		return false, ps.classify("load profile", err)
	}
	return prof.HasSaved(externalID), nil
}

func (ps *profileService) SavedItems(ctx context.Context) ([]SuggestionView, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.New(ctx)
	prof, err := ps.profileRepo.Ensure(dbc, userID)
	if err != nil {
		return nil, ps.classify("ensure profile", err)
	}
	if len(prof.SavedItems) == 0 {
		return []SuggestionView{}, nil
	}
	rows, err := ps.suggestionRepo.GetByExternalIDs(dbc, []string(prof.SavedItems))
	if err != nil {
		return nil, ps.classify("load saved suggestions", err)
	}
	saved := prof.SavedSet()
	out := make([]SuggestionView, 0, len(rows))
	for _, s := range ranking.CatalogOrder(rows) {
		out = append(out, NewSuggestionView(s).WithSaved(saved))
	}
	return out, nil
}

func (ps *profileService) SavedSet(ctx context.Context) (map[string]struct{}, error) {
	userID := ctxutil.UserID(ctx)
	if userID == uuid.Nil {
		return nil, nil
	}
	prof, err := ps.profileRepo.GetByUserID(dbctx.New(ctx), userID)
	if err != nil {
		return nil, ps.classify("load profile", err)
	}
	if prof == nil {
		return map[string]struct{}{}, nil
	}
	return prof.SavedSet(), nil
}

func (ps *profileService) classify(op string, err error) error {
	ae := apierr.From(err)
	if !ae.Public() {
		ps.log.Error("Profile operation failed", "op", op, "error", err)
	}
	return ae
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

