package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Mowalen/ustc-database-learning-platform/config"
	"github.com/Mowalen/ustc-database-learning-platform/internal/dto"
	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
	"github.com/Mowalen/ustc-database-learning-platform/internal/repository"
	pkgerrors "github.com/Mowalen/ustc-database-learning-platform/pkg/errors"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/jwt"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/mailer"
	pkgredis "github.com/Mowalen/ustc-database-learning-platform/pkg/redis"
)

// ── 认证模块业务错误 ──

var (
	ErrInvalidCredentials  = pkgerrors.New(pkgerrors.ErrUnauthorized, "用户名或密码错误")
	ErrUserDisabled        = pkgerrors.New(pkgerrors.ErrForbidden, "账号已停用")
	ErrUserNotFound        = pkgerrors.New(pkgerrors.ErrNotFound, "用户不存在")
	ErrUsernameExists      = pkgerrors.New(pkgerrors.ErrConflict, "用户名已存在")
	ErrEmailExists         = pkgerrors.New(pkgerrors.ErrConflict, "邮箱已被使用")
	ErrInvalidRefreshToken = pkgerrors.New(pkgerrors.ErrUnauthorized, "refresh token 无效或已过期")
	ErrOldPasswordWrong    = pkgerrors.New(pkgerrors.ErrBadRequest, "原密码错误")
	ErrResetCodeInvalid    = pkgerrors.New(pkgerrors.ErrBadRequest, "验证码无效或已过期")
	ErrTokenStoreDisabled  = errors.New("token 存储不可用")
)

const resetCodeDigits = 6

// AuthService 认证业务接口
type AuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.UserResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error)
	// Logout 使 access token（按 jti）失效；refreshToken 非空时一并失效
	Logout(ctx context.Context, accessJTI string, accessExpiresAt time.Time, refreshToken string) error
	Me(ctx context.Context, userID string) (*dto.UserResponse, error)
	ChangePassword(ctx context.Context, userID string, req *dto.ChangePasswordRequest) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, req *dto.PasswordResetConfirmRequest) error
}

type authService struct {
	cfg    *config.Config
	repo   *repository.Repository
	jwtMgr *jwt.Manager
	tokens TokenStore
	mail   mailer.Mailer
	logger *zap.Logger
}

// NewAuthService 创建 AuthService 实例；tokens 为 nil 时注销与密码重置不可用
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	tokens TokenStore,
	mail mailer.Mailer,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:    cfg,
		repo:   repo,
		jwtMgr: jwtMgr,
		tokens: tokens,
		mail:   mail,
		logger: logger,
	}
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	user, err := s.repo.User.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	return s.issueTokens(user, req.RememberMe)
}

func (s *authService) issueTokens(user *model.User, rememberMe bool) (*dto.TokenResponse, error) {
	role := user.Role.String()

	accessToken, err := s.jwtMgr.GenerateAccessToken(user.UserID, role)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}

	refreshToken, err := s.jwtMgr.GenerateRefreshToken(user.UserID, role, rememberMe)
	if err != nil {
		s.logger.Error("生成 RefreshToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:         dto.NewUserResponse(user),
	}, nil
}

// ────────────────────── Register ──────────────────────

// Register 自助注册，角色固定为学生
func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.UserResponse, error) {
	user, err := createUser(ctx, s.repo, s.logger, newUserInput{
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Role:     model.RoleStudent,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("学生注册", zap.String("user_id", user.UserID), zap.String("username", user.Username))
	resp := dto.NewUserResponse(user)
	return &resp, nil
}

// ────────────────────── Refresh ──────────────────────

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseToken(refreshToken)
	if err != nil || claims.TokenType != jwt.TokenTypeRefresh {
		return nil, ErrInvalidRefreshToken
	}

	if s.tokens != nil {
		revoked, err := s.tokens.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Error("查询 Token 黑名单失败", zap.Error(err))
			return nil, err
		}
		if revoked {
			return nil, ErrInvalidRefreshToken
		}
	}

	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	// 旧 refresh token 轮换后立即作废
	if s.tokens != nil {
		if err := s.tokens.BlacklistToken(ctx, claims.ID, claims.RemainingTTL()); err != nil {
			s.logger.Warn("作废旧 RefreshToken 失败", zap.Error(err))
		}
	}

	return s.issueTokens(user, claims.RememberMe)
}

// ────────────────────── Logout ──────────────────────

func (s *authService) Logout(ctx context.Context, accessJTI string, accessExpiresAt time.Time, refreshToken string) error {
	if s.tokens == nil {
		s.logger.Warn("Redis 未启用，注销仅由客户端丢弃 Token")
		return nil
	}

	if ttl := time.Until(accessExpiresAt); accessJTI != "" && ttl > 0 {
		if err := s.tokens.BlacklistToken(ctx, accessJTI, ttl); err != nil {
			s.logger.Error("加入黑名单失败", zap.Error(err))
			return err
		}
	}

	if refreshToken != "" {
		claims, err := s.jwtMgr.ParseToken(refreshToken)
		if err != nil {
			// 已过期或非法的 refresh token 无需作废
			return nil
		}
		if err := s.tokens.BlacklistToken(ctx, claims.ID, claims.RemainingTTL()); err != nil {
			s.logger.Error("加入黑名单失败", zap.Error(err))
			return err
		}
	}
	return nil
}

// ────────────────────── Me / ChangePassword ──────────────────────

func (s *authService) Me(ctx context.Context, userID string) (*dto.UserResponse, error) {
	user, err := getUser(ctx, s.repo, userID, s.logger)
	if err != nil {
		return nil, err
	}
	resp := dto.NewUserResponse(user)
	return &resp, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID string, req *dto.ChangePasswordRequest) error {
	user, err := getUser(ctx, s.repo, userID, s.logger)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return ErrOldPasswordWrong
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return err
	}
	user.PasswordHash = hash

	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("修改密码失败", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── 密码重置 ──────────────────────

// RequestPasswordReset 生成 6 位验证码并发送邮件；邮箱不存在时静默成功，避免枚举账号
func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	if s.tokens == nil {
		return ErrTokenStoreDisabled
	}

	user, err := s.repo.User.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Info("密码重置：邮箱未注册", zap.String("email", email))
			return nil
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return err
	}
	if !user.IsActive {
		return nil
	}

	code, err := generateResetCode()
	if err != nil {
		s.logger.Error("生成验证码失败", zap.Error(err))
		return err
	}

	ttl := s.cfg.Auth.PasswordResetTTL
	if err := s.tokens.SaveResetCode(ctx, email, code, ttl); err != nil {
		s.logger.Error("保存验证码失败", zap.Error(err))
		return err
	}

	minutes := int(ttl.Minutes())
	msg := mailer.Message{
		To:      email,
		ToName:  user.FullName,
		Subject: "密码重置验证码",
		Text:    fmt.Sprintf("您的验证码为 %s，%d 分钟内有效。如非本人操作请忽略。", code, minutes),
		HTML:    fmt.Sprintf("<p>您的验证码为 <strong>%s</strong>，%d 分钟内有效。</p><p>如非本人操作请忽略。</p>", code, minutes),
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		s.logger.Error("发送验证码邮件失败", zap.String("user_id", user.UserID), zap.Error(err))
		return err
	}
	return nil
}

func (s *authService) ConfirmPasswordReset(ctx context.Context, req *dto.PasswordResetConfirmRequest) error {
	if s.tokens == nil {
		return ErrTokenStoreDisabled
	}

	if err := s.tokens.ConsumeResetCode(ctx, req.Email, req.Code); err != nil {
		if errors.Is(err, pkgredis.ErrResetCodeInvalid) {
			return ErrResetCodeInvalid
		}
		s.logger.Error("校验验证码失败", zap.Error(err))
		return err
	}

	user, err := s.repo.User.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrResetCodeInvalid
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return err
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return err
	}
	user.PasswordHash = hash

	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("重置密码失败", zap.String("user_id", user.UserID), zap.Error(err))
		return err
	}

	s.logger.Info("密码已通过验证码重置", zap.String("user_id", user.UserID))
	return nil
}

// generateResetCode 生成 6 位数字验证码
func generateResetCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < resetCodeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", resetCodeDigits, n.Int64()), nil
}
