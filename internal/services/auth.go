package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yungbote/pathfinder-backend/internal/data/repos"
	types "github.com/yungbote/pathfinder-backend/internal/domain"
	"github.com/yungbote/pathfinder-backend/internal/pkg/dbctx"
	"github.com/yungbote/pathfinder-backend/internal/platform/apierr"
	"github.com/yungbote/pathfinder-backend/internal/platform/ctxutil"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
)

type JWTClaims struct {
	jwt.RegisteredClaims
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Name     string
}

// GoogleLoginResult is returned by GoogleLogin.
type GoogleLoginResult struct {
	Tokens             TokenPair
	User               *types.User
	FinishedOnboarding bool
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*types.User, TokenPair, error)
	Login(ctx context.Context, login, password string) (TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	GoogleLogin(ctx context.Context, credential string) (*GoogleLoginResult, error)
	DeleteAccount(ctx context.Context) error
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetAccessTTL() time.Duration
}

type AuthConfig struct {
	JWTSecretKey string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	// AllowedGoogleHD restricts Google sign-in to one hosted domain when set.
	AllowedGoogleHD string
}

type authService struct {
	db           *gorm.DB
	log          *logger.Logger
	userRepo     repos.UserRepo
	profileRepo  repos.UserProfileRepo
	tokenRepo    repos.UserTokenRepo
	identityRepo repos.UserIdentityRepo
	ratingRepo   repos.UserRatingRepo
	oidc         OIDCVerifier
	cfg          AuthConfig
	now          func() time.Time
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	profileRepo repos.UserProfileRepo,
	tokenRepo repos.UserTokenRepo,
	identityRepo repos.UserIdentityRepo,
	ratingRepo repos.UserRatingRepo,
	oidc OIDCVerifier,
	cfg AuthConfig,
) (AuthService, error) {
	if strings.TrimSpace(cfg.JWTSecretKey) == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	cfg.AllowedGoogleHD = strings.ToLower(strings.TrimSpace(cfg.AllowedGoogleHD))
	return &authService{
		db:           db,
		log:          log.With("service", "AuthService"),
		userRepo:     userRepo,
		profileRepo:  profileRepo,
		tokenRepo:    tokenRepo,
		identityRepo: identityRepo,
		ratingRepo:   ratingRepo,
		oidc:         oidc,
		cfg:          cfg,
		now:          time.Now,
	}, nil
}

func (as *authService) GetAccessTTL() time.Duration { return as.cfg.AccessTTL }

var (
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]{3,64}$`)
)

func (as *authService) Register(ctx context.Context, in RegisterInput) (*types.User, TokenPair, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)

	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, TokenPair{}, apierr.Validation("username, email and password are required")
	}
	if !usernamePattern.MatchString(in.Username) {
		return nil, TokenPair{}, apierr.Validation("username must be 3-64 letters, digits, '.', '_' or '-'")
	}
	if !emailPattern.MatchString(in.Email) {
		return nil, TokenPair{}, apierr.Validation("invalid email")
	}
	if len(in.Password) < 8 {
		return nil, TokenPair{}, apierr.Validation("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, TokenPair{}, apierr.Internal(fmt.Errorf("hash password: %w", err))
	}

	user := &types.User{
		Username: in.Username,
		Email:    in.Email,
		Password: string(hash),
		Name:     in.Name,
	}
	var pair TokenPair
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		taken, err := as.userRepo.UsernameExists(dbc, in.Username)
		if err != nil {
			return err
		}
		if taken {
			return apierr.Validation("username already taken")
		}
		taken, err = as.userRepo.EmailExists(dbc, in.Email)
		if err != nil {
			return err
		}
		if taken {
			return apierr.Validation("email already registered")
		}
		if _, err := as.userRepo.Create(dbc, []*types.User{user}); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if _, err := as.profileRepo.Ensure(dbc, user.ID); err != nil {
			return fmt.Errorf("ensure profile: %w", err)
		}
		pair, err = as.issueTokens(dbc, user)
		return err
	})
	if err != nil {
		return nil, TokenPair{}, as.classify("register", err)
	}
	as.log.Info("User registered", "user_id", user.ID)
	return user, pair, nil
}

func (as *authService) Login(ctx context.Context, login, password string) (TokenPair, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return TokenPair{}, apierr.Validation("username and password are required")
	}

	user, err := as.userRepo.GetByLogin(dbctx.New(ctx), login)
	if err != nil {
		return TokenPair{}, as.classify("login", err)
	}
	// Google-only accounts carry no password hash and cannot log in here.
	if user == nil || user.Password == "" {
		return TokenPair{}, apierr.Unauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return TokenPair{}, apierr.Unauthorized("invalid credentials")
	}

	var pair TokenPair
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := as.tokenRepo.FullDeleteExpired(dbc, as.now()); err != nil {
			return err
		}
		pair, err = as.issueTokens(dbc, user)
		return err
	})
	if err != nil {
		return TokenPair{}, as.classify("login", err)
	}
	return pair, nil
}

func (as *authService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenPair{}, apierr.Validation("refresh is required")
	}

	var pair TokenPair
	err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		existing, err := as.tokenRepo.GetByRefreshToken(dbc, refreshToken)
		if err != nil {
			return err
		}
		if existing == nil {
			return apierr.Unauthorized("invalid refresh token")
		}
		if !existing.ExpiresAt.After(as.now()) {
			if err := as.tokenRepo.FullDeleteByIDs(dbc, []uuid.UUID{existing.ID}); err != nil {
				return err
			}
			return apierr.Unauthorized("refresh token expired")
		}
		users, err := as.userRepo.GetByIDs(dbc, []uuid.UUID{existing.UserID})
		if err != nil {
			return err
		}
		if len(users) == 0 {
			return apierr.Unauthorized("invalid refresh token")
		}
		// rotate: the presented refresh token is single use
		if err := as.tokenRepo.FullDeleteByIDs(dbc, []uuid.UUID{existing.ID}); err != nil {
			return err
		}
		pair, err = as.issueTokens(dbc, users[0])
		return err
	})
	if err != nil {
		return TokenPair{}, as.classify("refresh", err)
	}
	return pair, nil
}

// Logout removes the given refresh token, or every token of the caller when
// refreshToken is empty.
func (as *authService) Logout(ctx context.Context, refreshToken string) error {
	userID := ctxutil.UserID(ctx)
	if userID == uuid.Nil {
		return apierr.Unauthorized("authentication required")
	}
	dbc := dbctx.New(ctx)

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		if err := as.tokenRepo.FullDeleteByUserIDs(dbc, []uuid.UUID{userID}); err != nil {
			return as.classify("logout", err)
		}
		return nil
	}

	tok, err := as.tokenRepo.GetByRefreshToken(dbc, refreshToken)
	if err != nil {
		return as.classify("logout", err)
	}
	if tok == nil || tok.UserID != userID {
		return nil
	}
	if err := as.tokenRepo.FullDeleteByIDs(dbc, []uuid.UUID{tok.ID}); err != nil {
		return as.classify("logout", err)
	}
	return nil
}

func (as *authService) GoogleLogin(ctx context.Context, credential string) (*GoogleLoginResult, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, apierr.Validation("credential is required")
	}
	if as.oidc == nil {
		return nil, apierr.New(http.StatusServiceUnavailable, apierr.CodeUnavailable, errors.New("google sign-in is not configured"))
	}

	ident, err := as.oidc.VerifyGoogleIDToken(ctx, credential)
	if err != nil {
		as.log.Warn("Google token rejected", "error", err)
		return nil, apierr.Unauthorized("invalid Google token")
	}
	if !ident.EmailVerified || strings.TrimSpace(ident.Email) == "" {
		return nil, apierr.Unauthorized("Google account email is not verified")
	}
	if as.cfg.AllowedGoogleHD != "" && !strings.EqualFold(ident.HostedDomain, as.cfg.AllowedGoogleHD) {
		return nil, apierr.Forbidden("Google account domain is not allowed")
	}
	email := strings.ToLower(strings.TrimSpace(ident.Email))

	out := &GoogleLoginResult{}
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		user, err := as.userForGoogleIdentity(dbc, ident.Sub, email, ident.Name)
		if err != nil {
			return err
		}
		if err := as.identityRepo.Upsert(dbc, &types.UserIdentity{
			UserID:        user.ID,
			Provider:      types.ProviderGoogle,
			ProviderSub:   ident.Sub,
			Email:         email,
			EmailVerified: ident.EmailVerified,
		}); err != nil {
			return fmt.Errorf("upsert identity: %w", err)
		}
		prof, err := as.profileRepo.Ensure(dbc, user.ID)
		if err != nil {
			return fmt.Errorf("ensure profile: %w", err)
		}
		pair, err := as.issueTokens(dbc, user)
		if err != nil {
			return err
		}
		out.Tokens = pair
		out.User = user
		out.FinishedOnboarding = prof.FinishedOnboarding
		return nil
	})
	if err != nil {
		return nil, as.classify("google login", err)
	}
	return out, nil
}

// userForGoogleIdentity resolves the account for a Google subject: an existing
// identity link first, then an account with the same email, else a new one.
func (as *authService) userForGoogleIdentity(dbc dbctx.Context, sub, email, name string) (*types.User, error) {
	linked, err := as.identityRepo.GetByProviderSub(dbc, types.ProviderGoogle, sub)
	if err != nil {
		return nil, err
	}
	if linked != nil {
		users, err := as.userRepo.GetByIDs(dbc, []uuid.UUID{linked.UserID})
		if err != nil {
			return nil, err
		}
		if len(users) > 0 {
			return users[0], nil
		}
	}

	byEmail, err := as.userRepo.GetByEmails(dbc, []string{email})
	if err != nil {
		return nil, err
	}
	if len(byEmail) > 0 {
		u := byEmail[0]
		if strings.TrimSpace(u.Name) == "" && strings.TrimSpace(name) != "" {
			if err := as.userRepo.UpdateName(dbc, u.ID, name); err != nil {
				return nil, err
			}
			u.Name = name
		}
		return u, nil
	}

	username, err := as.availableUsername(dbc, email)
	if err != nil {
		return nil, err
	}
	u := &types.User{Username: username, Email: email, Name: strings.TrimSpace(name)}
	if _, err := as.userRepo.Create(dbc, []*types.User{u}); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	as.log.Info("User created from Google sign-in", "user_id", u.ID)
	return u, nil
}

func (as *authService) availableUsername(dbc dbctx.Context, email string) (string, error) {
	base := email
	if at := strings.IndexByte(base, '@'); at > 0 {
		base = base[:at]
	}
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		default:
			return -1
		}
	}, strings.ToLower(base))
	if len(base) < 3 {
		base = "user" + base
	}
	if len(base) > 48 {
		base = base[:48]
	}

	candidate := base
	for i := 0; i < 5; i++ {
		taken, err := as.userRepo.UsernameExists(dbc, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + uuid.NewString()[:8]
	}
	return base + "-" + uuid.NewString(), nil
}

// DeleteAccount removes the caller and everything hanging off the account.
func (as *authService) DeleteAccount(ctx context.Context) error {
	userID := ctxutil.UserID(ctx)
	if userID == uuid.Nil {
		return apierr.Unauthorized("authentication required")
	}
	ids := []uuid.UUID{userID}
	err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := as.ratingRepo.FullDeleteByUserIDs(dbc, ids); err != nil {
			return err
		}
		if err := as.profileRepo.FullDeleteByUserIDs(dbc, ids); err != nil {
			return err
		}
		if err := as.tokenRepo.FullDeleteByUserIDs(dbc, ids); err != nil {
			return err
		}
		if err := as.identityRepo.FullDeleteByUserIDs(dbc, ids); err != nil {
			return err
		}
		return as.userRepo.FullDeleteByIDs(dbc, ids)
	})
	if err != nil {
		return as.classify("delete account", err)
	}
	as.log.Info("Account deleted", "user_id", userID)
	return nil
}

// SetContextFromToken validates an access token and attaches the caller to ctx.
// The token must be signed by us, unexpired, and still present in user_token.
func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return ctx, apierr.Unauthorized("missing token")
	}

	claims := &JWTClaims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(as.cfg.JWTSecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || tok == nil || !tok.Valid {
		return ctx, apierr.Unauthorized("invalid token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, apierr.Unauthorized("invalid token subject")
	}

	stored, err := as.tokenRepo.GetByAccessToken(dbctx.New(ctx), tokenString)
	if err != nil {
		return ctx, as.classify("token lookup", err)
	}
	if stored == nil || stored.UserID != userID {
		return ctx, apierr.Unauthorized("token revoked")
	}

	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		TokenString: tokenString,
		UserID:      userID,
	}), nil
}

func (as *authService) issueTokens(dbc dbctx.Context, user *types.User) (TokenPair, error) {
	now := as.now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.cfg.AccessTTL)),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(as.cfg.JWTSecretKey))
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh := uuid.NewString()
	if _, err := as.tokenRepo.Create(dbc, []*types.UserToken{{
		UserID:       user.ID,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(as.cfg.RefreshTTL),
	}}); err != nil {
		return TokenPair{}, fmt.Errorf("store user token: %w", err)
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (as *authService) classify(op string, err error) error {
	ae := apierr.From(err)
	if !ae.Public() {
		as.log.Error("Auth operation failed", "op", op, "error", err)
	}
	return ae
}
