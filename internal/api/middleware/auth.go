package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Mowalen/ustc-database-learning-platform/internal/authz"
	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/response"
)

// 上下文键，handler 通过 context_helper 读取
const (
	CtxUserID    = "user_id"
	CtxRole      = "role"
	CtxTokenID   = "token_id"
	CtxExpiresAt = "token_expires_at"
)

// JWTAuth JWT 认证中间件
// 从 Authorization: Bearer <token> 中提取 Access Token，交由 Guard 识别身份
func JWTAuth(guard *authz.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "缺少认证头")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, 10002, "认证头格式无效")
			c.Abort()
			return
		}

		id, err := guard.Identify(c.Request.Context(), parts[1])
		if err != nil {
			switch {
			case errors.Is(err, authz.ErrCredentialExpired):
				response.Unauthorized(c, 10002, "Token 已过期")
			case errors.Is(err, authz.ErrCredentialRevoked):
				response.Unauthorized(c, 10002, "Token 已失效，请重新登录")
			case errors.Is(err, authz.ErrInvalidCredential), errors.Is(err, authz.ErrMissingCredential):
				response.Unauthorized(c, 10002, "Token 无效")
			default:
				// 黑名单查询失败
				_ = c.Error(err)
				response.InternalError(c)
			}
			c.Abort()
			return
		}

		c.Set(CtxUserID, id.UserID)
		c.Set(CtxRole, id.Role)
		c.Set(CtxTokenID, id.TokenID)
		c.Set(CtxExpiresAt, id.ExpiresAt)

		c.Next()
	}
}

// RequireRole 角色门禁，用于整组路由（如 /admin）
// 细粒度的归属判断仍在 handler 中通过 authz.Authorize 完成
func RequireRole(allowed ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(CtxRole)
		if !exists {
			response.Unauthorized(c, 10002, "未认证")
			c.Abort()
			return
		}

		role, _ := v.(model.Role)
		for _, r := range allowed {
			if role == r {
				c.Next()
				return
			}
		}

		response.Forbidden(c, 10003, "无权限访问")
		c.Abort()
	}
}
