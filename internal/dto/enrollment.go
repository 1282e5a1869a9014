package dto

import (
	"time"

	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
)

// ── 选课模块 DTO ──

// EnrollRequest 选课 / 退课；student_id 缺省为当前用户
type EnrollRequest struct {
	StudentID string `json:"student_id" binding:"omitempty,uuid"`
}

// StudentQuery 以学生为维度的查询；student_id 缺省为当前用户
type StudentQuery struct {
	StudentID string `form:"student_id" binding:"omitempty,uuid"`
}

// EnrollmentResponse 选课记录
type EnrollmentResponse struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"course_id"`
	StudentID  string    `json:"student_id"`
	Status     string    `json:"status"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// EnrollmentWithCourse 学生的选课记录 + 课程摘要
type EnrollmentWithCourse struct {
	EnrollmentResponse
	Course *CourseResponse `json:"course,omitempty"`
}

// EnrollmentWithStudent 课程的选课记录 + 学生资料与角色
type EnrollmentWithStudent struct {
	EnrollmentResponse
	Student *UserResponse `json:"student,omitempty"`
}

// NewEnrollmentResponse 从模型构造响应
func NewEnrollmentResponse(e *model.Enrollment) EnrollmentResponse {
	return EnrollmentResponse{
		ID:         e.EnrollmentID,
		CourseID:   e.CourseID,
		StudentID:  e.StudentID,
		Status:     e.Status,
		EnrolledAt: e.EnrolledAt,
	}
}

// NewEnrollmentWithCourse 附带课程摘要
func NewEnrollmentWithCourse(e *model.Enrollment) EnrollmentWithCourse {
	out := EnrollmentWithCourse{EnrollmentResponse: NewEnrollmentResponse(e)}
	if e.Course != nil {
		c := NewCourseResponse(e.Course)
		out.Course = &c
	}
	return out
}

// NewEnrollmentWithStudent 附带学生资料
func NewEnrollmentWithStudent(e *model.Enrollment) EnrollmentWithStudent {
	out := EnrollmentWithStudent{EnrollmentResponse: NewEnrollmentResponse(e)}
	if e.Student != nil {
		u := NewUserResponse(e.Student)
		out.Student = &u
	}
	return out
}
