package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
)

// TaskRepository 作业/考试数据访问接口
type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	GetByID(ctx context.Context, id string) (*model.Task, error)
	ListByCourse(ctx context.Context, courseID string) ([]model.Task, error)
	ListByCourseIDs(ctx context.Context, courseIDs []string) ([]model.Task, error)
}

type taskRepo struct {
	db *gorm.DB
}

// NewTaskRepo 创建 TaskRepository 实例
func NewTaskRepo(db *gorm.DB) TaskRepository {
	return &taskRepo{db: db}
}

func (r *taskRepo) Create(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *taskRepo) GetByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("task_id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepo) ListByCourse(ctx context.Context, courseID string) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("created_at DESC").
		Find(&tasks).Error
	return tasks, err
}

func (r *taskRepo) ListByCourseIDs(ctx context.Context, courseIDs []string) ([]model.Task, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("course_id IN ?", courseIDs).
		Order("deadline ASC NULLS LAST, created_at DESC").
		Find(&tasks).Error
	return tasks, err
}
