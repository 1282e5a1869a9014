package dto

import (
	"time"

	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
)

// ── 作业 / 提交 / 评分 DTO ──

// CreateTaskRequest 布置作业或考试
// teacher_id 必须与课程所属教师一致；缺省时由接口层填充
// deadline 支持 RFC 3339，或不带时区的 "2006-01-02 15:04:05"（按应用时区解释）
type CreateTaskRequest struct {
	TeacherID   string  `json:"teacher_id"  binding:"omitempty,uuid"`
	Title       string  `json:"title"       binding:"required,max=200"`
	Description string  `json:"description"`
	Type        string  `json:"type"        binding:"omitempty,task_type"`
	Deadline    *string `json:"deadline"`
}

// SubmitRequest 提交作业；student_id 缺省为当前用户
type SubmitRequest struct {
	StudentID  string  `json:"student_id"  binding:"omitempty,uuid"`
	AnswerText *string `json:"answer_text"`
	FileURL    *string `json:"file_url"    binding:"omitempty,max=500"`
}

// GradeRequest 评分；status 缺省为 graded
type GradeRequest struct {
	Score    *float64 `json:"score"    binding:"required,min=0,max=999.99"`
	Feedback *string  `json:"feedback"`
	Status   string   `json:"status"   binding:"omitempty,submission_status"`
}

// TaskResponse 作业信息
type TaskResponse struct {
	ID          string     `json:"id"`
	CourseID    string     `json:"course_id"`
	TeacherID   string     `json:"teacher_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	Deadline    *time.Time `json:"deadline"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewTaskResponse 从模型构造响应
func NewTaskResponse(t *model.Task) TaskResponse {
	return TaskResponse{
		ID:          t.TaskID,
		CourseID:    t.CourseID,
		TeacherID:   t.TeacherID,
		Title:       t.Title,
		Description: t.Description,
		Type:        t.Type,
		Deadline:    t.Deadline,
		CreatedAt:   t.CreatedAt,
	}
}

// SubmissionResponse 提交记录
type SubmissionResponse struct {
	ID          string        `json:"id"`
	TaskID      string        `json:"task_id"`
	StudentID   string        `json:"student_id"`
	AnswerText  *string       `json:"answer_text"`
	FileURL     *string       `json:"file_url"`
	Score       *float64      `json:"score"`
	Feedback    *string       `json:"feedback"`
	Status      string        `json:"status"`
	SubmittedAt time.Time     `json:"submitted_at"`
	GradedAt    *time.Time    `json:"graded_at"`
	Student     *UserResponse `json:"student,omitempty"`
}

// NewSubmissionResponse 从模型构造响应，已加载学生时一并返回
func NewSubmissionResponse(s *model.Submission) SubmissionResponse {
	resp := SubmissionResponse{
		ID:          s.SubmissionID,
		TaskID:      s.TaskID,
		StudentID:   s.StudentID,
		AnswerText:  s.AnswerText,
		FileURL:     s.FileURL,
		Score:       s.Score,
		Feedback:    s.Feedback,
		Status:      s.Status,
		SubmittedAt: s.SubmittedAt,
		GradedAt:    s.GradedAt,
	}
	if s.Student != nil {
		u := NewUserResponse(s.Student)
		resp.Student = &u
	}
	return resp
}

// PendingResponse 待办数量：学生返回 pending_tasks，教师返回 pending_grading
type PendingResponse struct {
	PendingTasks   *int64 `json:"pending_tasks,omitempty"`
	PendingGrading *int64 `json:"pending_grading,omitempty"`
}

// ExportRequest 成绩导出格式
type ExportRequest struct {
	Format string `form:"format" binding:"omitempty,oneof=csv xlsx"`
}
