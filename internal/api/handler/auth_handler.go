package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mowalen/ustc-database-learning-platform/config"
	"github.com/Mowalen/ustc-database-learning-platform/internal/dto"
	"github.com/Mowalen/ustc-database-learning-platform/internal/service"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/response"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/v1/auth"
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
	authCfg *config.AuthConfig // 为 nil 时不下发 refresh_token Cookie
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService, authCfg *config.AuthConfig) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, authCfg: authCfg}
}

// Login 用户登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken, req.RememberMe)
	response.OK(c, result)
}

// Register 学生自助注册
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.authSvc.Register(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.Created(c, user)
}

// RefreshToken 刷新 Token；refresh_token 取自请求体，缺省时取 Cookie
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req dto.RefreshTokenRequest
	_ = c.ShouldBindJSON(&req)
	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		token, _ = c.Cookie(refreshCookieName)
	}
	if token == "" {
		response.BadRequest(c, 10001, "缺少 refresh_token")
		return
	}

	result, err := h.authSvc.Refresh(c.Request.Context(), token)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken, false)
	response.OK(c, result)
}

// Logout 注销当前 access token，并尽量使 refresh token 失效
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	var req dto.LogoutRequest
	_ = c.ShouldBindJSON(&req)
	refresh := strings.TrimSpace(req.RefreshToken)
	if refresh == "" {
		refresh, _ = c.Cookie(refreshCookieName)
	}

	if err := h.authSvc.Logout(c.Request.Context(), id.TokenID, id.ExpiresAt, refresh); err != nil {
		h.handleAuthError(c, err)
		return
	}

	h.clearRefreshCookie(c)
	response.OK(c, nil)
}

// GetCurrentUser 当前用户信息
// GET /api/v1/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	user, err := h.authSvc.Me(c.Request.Context(), userID)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, user)
}

// ChangePassword 修改密码
// PUT /api/v1/auth/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authSvc.ChangePassword(c.Request.Context(), userID, &req); err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, nil)
}

// RequestPasswordReset 申请密码重置验证码；邮箱是否注册都返回成功
// POST /api/v1/auth/password-reset/request
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req dto.PasswordResetRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authSvc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, gin.H{"message": "若邮箱已注册，验证码将发送至该邮箱"})
}

// ConfirmPasswordReset 使用验证码重置密码
// POST /api/v1/auth/password-reset/confirm
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req dto.PasswordResetConfirmRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authSvc.ConfirmPasswordReset(c.Request.Context(), &req); err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, nil)
}

// ────────────────────── Cookie ──────────────────────

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string, rememberMe bool) {
	if h.authCfg == nil || token == "" {
		return
	}
	ttl := h.authCfg.RefreshTokenTTLDefault
	if rememberMe {
		ttl = h.authCfg.RefreshTokenTTLRemember
	}
	c.SetSameSite(parseSameSite(h.authCfg.Cookie.SameSite))
	c.SetCookie(refreshCookieName, token, int(ttl/time.Second), refreshCookiePath,
		h.authCfg.Cookie.Domain, h.authCfg.Cookie.Secure, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	if h.authCfg == nil {
		return
	}
	c.SetSameSite(parseSameSite(h.authCfg.Cookie.SameSite))
	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath,
		h.authCfg.Cookie.Domain, h.authCfg.Cookie.Secure, true)
}

func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (h *AuthHandler) handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, 11001, "用户名或密码错误")
	case errors.Is(err, service.ErrUserDisabled):
		response.Forbidden(c, 11002, "账号已停用")
	case errors.Is(err, service.ErrUsernameExists):
		response.Conflict(c, 11003, "用户名已存在")
	case errors.Is(err, service.ErrEmailExists):
		response.Conflict(c, 11004, "邮箱已被使用")
	case errors.Is(err, service.ErrInvalidRefreshToken):
		response.Unauthorized(c, 11005, "refresh token 无效或已过期")
	case errors.Is(err, service.ErrOldPasswordWrong):
		response.BadRequest(c, 11006, "原密码错误")
	case errors.Is(err, service.ErrResetCodeInvalid):
		response.BadRequest(c, 11007, "验证码无效或已过期")
	case errors.Is(err, service.ErrTokenStoreDisabled):
		response.Error(c, http.StatusServiceUnavailable, 11008, "密码重置服务暂不可用")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 11009, "用户不存在")
	default:
		handleKindError(c, err)
	}
}
