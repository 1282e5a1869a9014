package model

import "time"

// 选课状态
const (
	EnrollmentActive  = "active"
	EnrollmentDropped = "dropped"
)

// Enrollment 选课记录 — 对应 course_enrollments
// (course_id, student_id) 唯一：退课后重新选课复用同一行
type Enrollment struct {
	EnrollmentID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"            json:"enrollment_id"`
	CourseID     string    `gorm:"type:uuid;not null;uniqueIndex:uk_enrollments_course_student" json:"course_id"`
	StudentID    string    `gorm:"type:uuid;not null;uniqueIndex:uk_enrollments_course_student" json:"student_id"`
	Status       string    `gorm:"type:varchar(16);not null;default:'active'"                json:"status"`
	EnrolledAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                        json:"enrolled_at"`

	// 关联
	Course  *Course `gorm:"foreignKey:CourseID;references:CourseID"  json:"course,omitempty"`
	Student *User   `gorm:"foreignKey:StudentID;references:UserID"  json:"student,omitempty"`
}

// TableName 指定表名
func (Enrollment) TableName() string { return "course_enrollments" }

// IsActive 是否处于在读状态
func (e *Enrollment) IsActive() bool { return e.Status == EnrollmentActive }
