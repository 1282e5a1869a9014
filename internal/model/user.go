package model

import "fmt"

// Role 用户角色，库中以 SMALLINT 存储
type Role int16

const (
	RoleStudent Role = 1
	RoleTeacher Role = 2
	RoleAdmin   Role = 3
)

var roleNames = map[Role]string{
	RoleStudent: "student",
	RoleTeacher: "teacher",
	RoleAdmin:   "admin",
}

// String 返回角色名（student | teacher | admin）
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int16(r))
}

// Valid 是否为已知角色
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole 将角色名解析为 Role
func ParseRole(name string) (Role, error) {
	for r, n := range roleNames {
		if n == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("未知角色 %q", name)
}

// User 用户表 — 对应 users
type User struct {
	UserID       string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Username     string  `gorm:"type:varchar(50);not null;uniqueIndex"          json:"username"`
	PasswordHash string  `gorm:"type:varchar(255);not null"                     json:"-"`
	FullName     string  `gorm:"type:varchar(100);not null;default:''"          json:"full_name"`
	Email        *string `gorm:"type:varchar(255)"                              json:"email,omitempty"`
	Phone        *string `gorm:"type:varchar(20)"                               json:"phone,omitempty"`
	AvatarURL    *string `gorm:"type:varchar(500)"                              json:"avatar_url,omitempty"`
	Role         Role    `gorm:"type:smallint;not null;default:1"               json:"role"`
	IsActive     bool    `gorm:"not null;default:true"                          json:"is_active"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }
