// Package authz 集中处理身份识别与权限判定。
//
// Guard.Identify 从 access token 得到调用者身份；所有会修改数据或读取他人数据的操作，
// 在执行前统一调用 Authorize，各业务服务本身不再比较角色常量。
package authz

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
	pkgerrors "github.com/Mowalen/ustc-database-learning-platform/pkg/errors"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/jwt"
)

var (
	ErrMissingCredential = pkgerrors.New(pkgerrors.ErrUnauthorized, "缺少认证凭证")
	ErrInvalidCredential = pkgerrors.New(pkgerrors.ErrUnauthorized, "认证凭证无效")
	ErrCredentialExpired = pkgerrors.New(pkgerrors.ErrUnauthorized, "认证凭证已过期")
	ErrCredentialRevoked = pkgerrors.New(pkgerrors.ErrUnauthorized, "认证凭证已失效，请重新登录")
	ErrPermissionDenied  = pkgerrors.New(pkgerrors.ErrForbidden, "无权限执行该操作")
	ErrNotResourceOwner  = pkgerrors.New(pkgerrors.ErrForbidden, "只能操作自己的资源")
)

// Identity 已认证的调用者
type Identity struct {
	UserID    string
	Role      model.Role
	TokenID   string
	ExpiresAt time.Time
}

// Action 受保护的操作
type Action string

const (
	// 学生本人（或管理员代操作）
	ActionEnroll            Action = "enrollment.enroll"
	ActionDrop              Action = "enrollment.drop"
	ActionViewEnrollments   Action = "enrollment.view_own"
	ActionSubmit            Action = "submission.submit"
	ActionViewOwnSubmission Action = "submission.view_own"
	ActionViewStudentScores Action = "score.view_own"
	ActionViewPending       Action = "dashboard.view_own"

	// 课程所属教师（或管理员）
	ActionManageCourse    Action = "course.manage"
	ActionListStudents    Action = "enrollment.list_course"
	ActionCreateTask      Action = "task.create"
	ActionListSubmissions Action = "submission.list"
	ActionGrade           Action = "submission.grade"
	ActionViewCourseScore Action = "score.view_course"
	ActionExportScores    Action = "score.export"

	// 仅按角色
	ActionCreateCourse Action = "course.create"
	ActionUpload       Action = "upload.create"

	// 仅管理员
	ActionManageUsers         Action = "user.manage"
	ActionManageAnnouncements Action = "announcement.manage"
	ActionDeactivateCourse    Action = "course.deactivate"
)

type policyKind int

const (
	policyStudentSelf policyKind = iota + 1
	policyOwningTeacher
	policyRoles
	policyAdminOnly
)

type policy struct {
	kind  policyKind
	roles []model.Role
}

var policies = map[Action]policy{
	ActionEnroll:            {kind: policyStudentSelf},
	ActionDrop:              {kind: policyStudentSelf},
	ActionViewEnrollments:   {kind: policyStudentSelf},
	ActionSubmit:            {kind: policyStudentSelf},
	ActionViewOwnSubmission: {kind: policyStudentSelf},
	ActionViewStudentScores: {kind: policyStudentSelf},
	ActionViewPending:       {kind: policyRoles, roles: []model.Role{model.RoleStudent, model.RoleTeacher}},

	ActionManageCourse:    {kind: policyOwningTeacher},
	ActionListStudents:    {kind: policyOwningTeacher},
	ActionCreateTask:      {kind: policyOwningTeacher},
	ActionListSubmissions: {kind: policyOwningTeacher},
	ActionGrade:           {kind: policyOwningTeacher},
	ActionViewCourseScore: {kind: policyOwningTeacher},
	ActionExportScores:    {kind: policyOwningTeacher},

	ActionCreateCourse: {kind: policyRoles, roles: []model.Role{model.RoleTeacher, model.RoleAdmin}},
	ActionUpload:       {kind: policyRoles, roles: []model.Role{model.RoleStudent, model.RoleTeacher, model.RoleAdmin}},

	ActionManageUsers:         {kind: policyAdminOnly},
	ActionManageAnnouncements: {kind: policyAdminOnly},
	ActionDeactivateCourse:    {kind: policyAdminOnly},
}

// TokenParser 解析访问令牌
type TokenParser interface {
	ParseToken(token string) (*jwt.Claims, error)
}

// RevocationChecker 查询令牌是否已注销
type RevocationChecker interface {
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// Guard 身份识别与权限判定
type Guard struct {
	tokens  TokenParser
	revoked RevocationChecker // 为 nil 时不检查黑名单（Redis 不可用的降级模式）
}

// NewGuard 创建 Guard；revoked 可为 nil
func NewGuard(tokens TokenParser, revoked RevocationChecker) *Guard {
	return &Guard{tokens: tokens, revoked: revoked}
}

// Identify 校验 access token 并返回调用者身份
func (g *Guard) Identify(ctx context.Context, credential string) (*Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, ErrMissingCredential
	}

	claims, err := g.tokens.ParseToken(credential)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrCredentialExpired
		}
		return nil, ErrInvalidCredential
	}
	if claims.TokenType != jwt.TokenTypeAccess {
		return nil, ErrInvalidCredential
	}

	role, err := model.ParseRole(claims.Role)
	if err != nil || claims.UserID == "" {
		return nil, ErrInvalidCredential
	}

	if g.revoked != nil {
		revoked, err := g.revoked.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrCredentialRevoked
		}
	}

	id := &Identity{UserID: claims.UserID, Role: role, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// Authorize 判断 userID 以 role 身份对 resourceOwner 所属资源执行 action 是否被允许
//
// resourceOwner 的含义随操作而定：学生本人类操作为目标学生 ID，
// 课程类操作为课程所属教师 ID；仅按角色判定的操作忽略该参数。
func Authorize(userID string, role model.Role, action Action, resourceOwner string) error {
	p, ok := policies[action]
	if !ok {
		return ErrPermissionDenied
	}

	switch p.kind {
	case policyStudentSelf:
		if role == model.RoleAdmin {
			return nil
		}
		if role != model.RoleStudent {
			return ErrPermissionDenied
		}
		if resourceOwner != userID {
			return ErrNotResourceOwner
		}
		return nil

	case policyOwningTeacher:
		if role == model.RoleAdmin {
			return nil
		}
		if role != model.RoleTeacher {
			return ErrPermissionDenied
		}
		if resourceOwner != userID {
			return ErrNotResourceOwner
		}
		return nil

	case policyRoles:
		for _, r := range p.roles {
			if r == role {
				return nil
			}
		}
		return ErrPermissionDenied

	case policyAdminOnly:
		if role == model.RoleAdmin {
			return nil
		}
		return ErrPermissionDenied
	}

	return ErrPermissionDenied
}
