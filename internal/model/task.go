package model

import "time"

// 任务类型
const (
	TaskTypeAssignment = "assignment"
	TaskTypeExam       = "exam"
)

// Task 作业/考试 — 对应 tasks
type Task struct {
	TaskID      string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"task_id"`
	CourseID    string     `gorm:"type:uuid;not null;index"                       json:"course_id"`
	TeacherID   string     `gorm:"type:uuid;not null"                             json:"teacher_id"`
	Title       string     `gorm:"type:varchar(200);not null"                     json:"title"`
	Description string     `gorm:"type:text;not null;default:''"                  json:"description"`
	Type        string     `gorm:"type:varchar(16);not null;default:'assignment'" json:"type"`
	Deadline    *time.Time `gorm:"type:timestamptz"                               json:"deadline,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Task) TableName() string { return "tasks" }

// IsLate 判断 at 时刻提交是否逾期；没有截止时间的任务永不逾期
func (t *Task) IsLate(at time.Time) bool {
	return t.Deadline != nil && at.UTC().After(t.Deadline.UTC())
}
