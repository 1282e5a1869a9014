package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mowalen/ustc-database-learning-platform/internal/api/middleware"
	"github.com/Mowalen/ustc-database-learning-platform/internal/api/validate"
	"github.com/Mowalen/ustc-database-learning-platform/internal/authz"
	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
	pkgerrors "github.com/Mowalen/ustc-database-learning-platform/pkg/errors"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// JWT 中间件未注入时写入 401 并返回 false，调用方应直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	s := c.GetString(middleware.CtxUserID)
	if s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (model.Role, bool) {
	v, exists := c.Get(middleware.CtxRole)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return 0, false
	}
	r, ok := v.(model.Role)
	if !ok || !r.Valid() {
		response.Unauthorized(c, 10002, "未认证")
		return 0, false
	}
	return r, true
}

// MustGetIdentity 一次取出调用者身份
func MustGetIdentity(c *gin.Context) (authz.Identity, bool) {
	uid, ok := MustGetUserID(c)
	if !ok {
		return authz.Identity{}, false
	}
	role, ok := MustGetRole(c)
	if !ok {
		return authz.Identity{}, false
	}
	id := authz.Identity{UserID: uid, Role: role, TokenID: c.GetString(middleware.CtxTokenID)}
	if exp, ok := c.Get(middleware.CtxExpiresAt); ok {
		id.ExpiresAt, _ = exp.(time.Time)
	}
	return id, true
}

// authorize 执行权限判定，拒绝时写入 403 并返回 false
func authorize(c *gin.Context, id authz.Identity, action authz.Action, owner string) bool {
	if err := authz.Authorize(id.UserID, id.Role, action, owner); err != nil {
		if errors.Is(err, authz.ErrNotResourceOwner) {
			response.Forbidden(c, 10003, "只能操作自己的资源")
		} else {
			response.Forbidden(c, 10003, "无权限访问")
		}
		return false
	}
	return true
}

// bindJSON 绑定并校验请求体，失败时写入 400
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			return false
		}
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", validate.Describe(err))
		return false
	}
	return true
}

// bindQuery 绑定并校验查询参数
func bindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", validate.Describe(err))
		return false
	}
	return true
}

// handleKindError 未被模块错误表覆盖的错误，按分类映射 HTTP 状态
func handleKindError(c *gin.Context, err error) {
	switch pkgerrors.Kind(err) {
	case pkgerrors.ErrNotFound:
		response.NotFound(c, 10006, err.Error())
	case pkgerrors.ErrConflict:
		response.Conflict(c, 10007, err.Error())
	case pkgerrors.ErrForbidden:
		response.Forbidden(c, 10003, err.Error())
	case pkgerrors.ErrBadRequest:
		response.BadRequest(c, 10001, err.Error())
	case pkgerrors.ErrUnauthorized:
		response.Unauthorized(c, 10002, err.Error())
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
