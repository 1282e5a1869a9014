package model

import "time"

// 提交状态
const (
	SubmissionSubmitted = "submitted"
	SubmissionLate      = "late"
	SubmissionGraded    = "graded"
)

// Submission 作业提交 — 对应 submissions
// (task_id, student_id) 唯一：重新提交覆盖原行
type Submission struct {
	SubmissionID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"            json:"submission_id"`
	TaskID       string     `gorm:"type:uuid;not null;uniqueIndex:uk_submissions_task_student" json:"task_id"`
	StudentID    string     `gorm:"type:uuid;not null;uniqueIndex:uk_submissions_task_student" json:"student_id"`
	AnswerText   *string    `gorm:"type:text"                                                 json:"answer_text,omitempty"`
	FileURL      *string    `gorm:"type:varchar(500)"                                         json:"file_url,omitempty"`
	Score        *float64   `gorm:"type:numeric(5,2)"                                         json:"score,omitempty"`
	Feedback     *string    `gorm:"type:text"                                                 json:"feedback,omitempty"`
	Status       string     `gorm:"type:varchar(16);not null;default:'submitted'"             json:"status"`
	SubmittedAt  time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"                        json:"submitted_at"`
	GradedAt     *time.Time `gorm:"type:timestamptz"                                          json:"graded_at,omitempty"`

	// 关联
	Task    *Task `gorm:"foreignKey:TaskID;references:TaskID"    json:"task,omitempty"`
	Student *User `gorm:"foreignKey:StudentID;references:UserID" json:"student,omitempty"`
}

// TableName 指定表名
func (Submission) TableName() string { return "submissions" }

// ScoreRecord 成绩投影：提交 + 任务（+ 学生）
type ScoreRecord struct {
	SubmissionID    string     `json:"submission_id"`
	CourseID        string     `json:"course_id"`
	TaskID          string     `json:"task_id"`
	TaskTitle       string     `json:"task_title"`
	StudentID       string     `json:"student_id"`
	StudentUsername string     `json:"student_username,omitempty"`
	StudentName     string     `json:"student_name,omitempty"`
	Score           *float64   `json:"score"`
	Feedback        *string    `json:"feedback,omitempty"`
	Status          string     `json:"status"`
	GradedAt        *time.Time `json:"graded_at"`
}
