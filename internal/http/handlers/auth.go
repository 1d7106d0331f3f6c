package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/pathfinder-backend/internal/http/response"
	"github.com/yungbote/pathfinder-backend/internal/platform/ctxutil"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
	"github.com/yungbote/pathfinder-backend/internal/services"
)

type AuthHandler struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthHandler(log *logger.Logger, authService services.AuthService) *AuthHandler {
	RegisterValidators()
	return &AuthHandler{log: log.With("handler", "AuthHandler"), authService: authService}
}

type userSummary struct {
	Email              string `json:"email"`
	Name               string `json:"name"`
	FinishedOnboarding bool   `json:"finished_onboarding"`
}

// POST /api/register
func (ah *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
		Name     string `json:"name"`
	}
	if err := bindJSON(c, &req); err != nil {
		response.RespondError(c, ah.log, err)
		return
	}
	user, tokens, err := ah.authService.Register(c.Request.Context(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		response.RespondError(c, ah.log, err)
		return
	}
	response.RespondCreated(c, gin.H{
		"tokens": tokens,
		"user":   userSummary{Email: user.Email, Name: user.DisplayName()},
	})
}

// POST /api/token
func (ah *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		response.RespondError(c, ah.log, err)
		return
	}
	tokens, err := ah.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.RespondError(c, ah.log, err)
		return
	}
	response.RespondOK(c, tokens)
}

// POST /api/token/refresh
func (ah *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		Refresh string `json:"refresh" binding:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		response.RespondError(c, ah.log, err)
		return
	}
	tokens, err := ah.authService.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		response.RespondError(c, ah.log, err)
		return
	}
	response.RespondOK(c, tokens)
}

// POST /api/logout
// body (optional): { "refresh": "..." }; without it every session of the caller ends.
func (ah *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if c.Request.ContentLength != 0 {
		if err := bindJSON(c, &req); err != nil {
			response.RespondError(c, ah.log, err)
			return
		}
	}
	if err := ah.authService.Logout(c.Request.Context(), req.Refresh); err != nil {
		response.RespondError(c, ah.log, err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Logged out"})
}

// POST /api/accounts/google
func (ah *AuthHandler) GoogleLogin(c *gin.Context) {
	var req struct {
		Credential string `json:"credential" binding:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		response.RespondError(c, ah.log, err)
		return
	}
	res, err := ah.authService.GoogleLogin(c.Request.Context(), req.Credential)
	if err != nil {
		response.RespondError(c, ah.log, err)
		return
	}
	response.RespondOK(c, gin.H{
		"tokens": res.Tokens,
		"user": userSummary{
			Email:              res.User.Email,
			Name:               res.User.DisplayName(),
			FinishedOnboarding: res.FinishedOnboarding,
		},
	})
}

// GET /api/test-jwt
func (ah *AuthHandler) TestJWT(c *gin.Context) {
	response.RespondOK(c, gin.H{
		"message": "JWT is valid",
		"user_id": ctxutil.UserID(c.Request.Context()).String(),
	})
}

// DELETE /api/accounts/me
func (ah *AuthHandler) DeleteAccount(c *gin.Context) {
	if err := ah.authService.DeleteAccount(c.Request.Context()); err != nil {
		response.RespondError(c, ah.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
