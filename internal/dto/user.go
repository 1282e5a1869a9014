package dto

import (
	"time"

	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
)

// ── 用户模块 DTO ──

// CreateUserRequest 管理员创建用户
type CreateUserRequest struct {
	Username string  `json:"username"  binding:"required,min=3,max=50"`
	Password string  `json:"password"  binding:"required,min=8,max=64"`
	FullName string  `json:"full_name" binding:"omitempty,max=100"`
	Email    *string `json:"email"     binding:"omitempty,email"`
	Phone    *string `json:"phone"     binding:"omitempty,max=20"`
	Role     int16   `json:"role"      binding:"required,oneof=1 2 3"`
}

// UpdateUserRequest 管理员更新用户（仅更新非 nil 字段）
type UpdateUserRequest struct {
	FullName  *string `json:"full_name"  binding:"omitempty,max=100"`
	Email     *string `json:"email"      binding:"omitempty,email"`
	Phone     *string `json:"phone"      binding:"omitempty,max=20"`
	AvatarURL *string `json:"avatar_url" binding:"omitempty,max=500"`
	Role      *int16  `json:"role"       binding:"omitempty,oneof=1 2 3"`
	IsActive  *bool   `json:"is_active"`
	Password  *string `json:"password"   binding:"omitempty,min=8,max=64"`
}

// UpdateProfileRequest 用户修改自己的资料
type UpdateProfileRequest struct {
	FullName  *string `json:"full_name"  binding:"omitempty,max=100"`
	Email     *string `json:"email"      binding:"omitempty,email"`
	Phone     *string `json:"phone"      binding:"omitempty,max=20"`
	AvatarURL *string `json:"avatar_url" binding:"omitempty,max=500"`
}

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
	Role     int16  `form:"role"      binding:"omitempty,oneof=1 2 3"`
	IsActive *bool  `form:"is_active"`
	Keyword  string `form:"keyword"   binding:"omitempty,max=50"`
}

// UserResponse 用户信息（脱敏）
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	RoleID    int16     `json:"role_id"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserResponse 从模型构造脱敏响应
func NewUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:        u.UserID,
		Username:  u.Username,
		FullName:  u.FullName,
		Email:     u.Email,
		Phone:     u.Phone,
		AvatarURL: u.AvatarURL,
		RoleID:    int16(u.Role),
		Role:      u.Role.String(),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// ImportUserResponse 批量导入用户响应
type ImportUserResponse struct {
	Total   int               `json:"total"`
	Success int               `json:"success"`
	Failed  int               `json:"failed"`
	Errors  []ImportUserError `json:"errors,omitempty"`
}

// ImportUserError 导入错误详情
type ImportUserError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}
