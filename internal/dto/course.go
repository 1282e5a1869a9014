package dto

import (
	"time"

	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
)

// ── 课程模块 DTO ──

// CreateCourseRequest 创建课程；teacher_id 仅管理员可指定
type CreateCourseRequest struct {
	Title       string  `json:"title"       binding:"required,max=200"`
	Description string  `json:"description"`
	CoverURL    *string `json:"cover_url"   binding:"omitempty,max=500"`
	Category    string  `json:"category"    binding:"omitempty,max=50"`
	TeacherID   string  `json:"teacher_id"  binding:"omitempty,uuid"`
}

// UpdateCourseRequest 更新课程（仅更新非 nil 字段）
type UpdateCourseRequest struct {
	Title       *string `json:"title"       binding:"omitempty,max=200"`
	Description *string `json:"description"`
	CoverURL    *string `json:"cover_url"   binding:"omitempty,max=500"`
	Category    *string `json:"category"    binding:"omitempty,max=50"`
	IsActive    *bool   `json:"is_active"`
}

// CourseListRequest 课程列表查询参数
type CourseListRequest struct {
	PaginationRequest
	TeacherID string `form:"teacher_id" binding:"omitempty,uuid"`
	Category  string `form:"category"   binding:"omitempty,max=50"`
	IsActive  *bool  `form:"is_active"`
}

// CourseResponse 课程信息
type CourseResponse struct {
	ID          string    `json:"id"`
	TeacherID   string    `json:"teacher_id"`
	TeacherName string    `json:"teacher_name,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CoverURL    *string   `json:"cover_url,omitempty"`
	Category    string    `json:"category"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewCourseResponse 从模型构造响应
func NewCourseResponse(c *model.Course) CourseResponse {
	resp := CourseResponse{
		ID:          c.CourseID,
		TeacherID:   c.TeacherID,
		Title:       c.Title,
		Description: c.Description,
		CoverURL:    c.CoverURL,
		Category:    c.Category,
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt,
	}
	if c.Teacher != nil {
		resp.TeacherName = c.Teacher.FullName
		if resp.TeacherName == "" {
			resp.TeacherName = c.Teacher.Username
		}
	}
	return resp
}

// ── 章节 ──

// CreateSectionRequest 创建章节
type CreateSectionRequest struct {
	Title       string  `json:"title"        binding:"required,max=200"`
	Content     string  `json:"content"`
	MaterialURL *string `json:"material_url" binding:"omitempty,max=500"`
	VideoURL    *string `json:"video_url"    binding:"omitempty,max=500"`
	OrderIndex  int     `json:"order_index"  binding:"min=0"`
}

// UpdateSectionRequest 更新章节（仅更新非 nil 字段）
type UpdateSectionRequest struct {
	Title       *string `json:"title"        binding:"omitempty,max=200"`
	Content     *string `json:"content"`
	MaterialURL *string `json:"material_url" binding:"omitempty,max=500"`
	VideoURL    *string `json:"video_url"    binding:"omitempty,max=500"`
	OrderIndex  *int    `json:"order_index"  binding:"omitempty,min=0"`
}
