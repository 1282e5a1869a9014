package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	User         UserRepository
	Course       CourseRepository
	Section      SectionRepository
	Enrollment   EnrollmentRepository
	Task         TaskRepository
	Submission   SubmissionRepository
	Announcement AnnouncementRepository
	Resource     ResourceRepository

	db *gorm.DB
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		User:         NewUserRepo(db),
		Course:       NewCourseRepo(db),
		Section:      NewSectionRepo(db),
		Enrollment:   NewEnrollmentRepo(db),
		Task:         NewTaskRepo(db),
		Submission:   NewSubmissionRepo(db),
		Announcement: NewAnnouncementRepo(db),
		Resource:     NewResourceRepo(db),
		db:           db,
	}
}

// Ping 检查数据库连通性（健康检查使用）
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Page 分页参数
type Page struct {
	Offset int
	Limit  int
}
