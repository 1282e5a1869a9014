package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
)

// EnrollmentRepository 选课数据访问接口
//
// 状态切换（Reactivate / Drop）都是带前置状态条件的单条 UPDATE，
// 前置状态不满足时返回 gorm.ErrRecordNotFound，由唯一约束兜底并发插入。
type EnrollmentRepository interface {
	Create(ctx context.Context, e *model.Enrollment) error
	GetByCourseAndStudent(ctx context.Context, courseID, studentID string) (*model.Enrollment, error)
	// Reactivate 将 dropped 行恢复为 active 并刷新 enrolled_at
	Reactivate(ctx context.Context, courseID, studentID string, at time.Time) (*model.Enrollment, error)
	// Drop 将 active 行置为 dropped
	Drop(ctx context.Context, courseID, studentID string) (*model.Enrollment, error)
	IsActive(ctx context.Context, courseID, studentID string) (bool, error)
	ListActiveByStudent(ctx context.Context, studentID string) ([]model.Enrollment, error)
	ListActiveByCourse(ctx context.Context, courseID string) ([]model.Enrollment, error)
	ListActiveCourseIDs(ctx context.Context, studentID string) ([]string, error)
}

type enrollmentRepo struct {
	db *gorm.DB
}

// NewEnrollmentRepo 创建 EnrollmentRepository 实例
func NewEnrollmentRepo(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepo{db: db}
}

func (r *enrollmentRepo) Create(ctx context.Context, e *model.Enrollment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(e).Error
}

func (r *enrollmentRepo) GetByCourseAndStudent(ctx context.Context, courseID, studentID string) (*model.Enrollment, error) {
	var e model.Enrollment
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND student_id = ?", courseID, studentID).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *enrollmentRepo) Reactivate(ctx context.Context, courseID, studentID string, at time.Time) (*model.Enrollment, error) {
	return r.transition(ctx, courseID, studentID, model.EnrollmentDropped, map[string]interface{}{
		"status":      model.EnrollmentActive,
		"enrolled_at": at,
	})
}

func (r *enrollmentRepo) Drop(ctx context.Context, courseID, studentID string) (*model.Enrollment, error) {
	return r.transition(ctx, courseID, studentID, model.EnrollmentActive, map[string]interface{}{
		"status": model.EnrollmentDropped,
	})
}

// transition UPDATE ... WHERE status = from RETURNING *
func (r *enrollmentRepo) transition(ctx context.Context, courseID, studentID, from string, values map[string]interface{}) (*model.Enrollment, error) {
	var rows []model.Enrollment
	res := r.db.WithContext(ctx).
		Model(&rows).
		Clauses(clause.Returning{}).
		Where("course_id = ? AND student_id = ? AND status = ?", courseID, studentID, from).
		Updates(values)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 || len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

func (r *enrollmentRepo) IsActive(ctx context.Context, courseID, studentID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Enrollment{}).
		Where("course_id = ? AND student_id = ? AND status = ?", courseID, studentID, model.EnrollmentActive).
		Count(&n).Error
	return n > 0, err
}

func (r *enrollmentRepo) ListActiveByStudent(ctx context.Context, studentID string) ([]model.Enrollment, error) {
	var list []model.Enrollment
	err := r.db.WithContext(ctx).
		Preload("Course").
		Preload("Course.Teacher").
		Where("student_id = ? AND status = ?", studentID, model.EnrollmentActive).
		Order("enrolled_at DESC").
		Find(&list).Error
	return list, err
}

func (r *enrollmentRepo) ListActiveByCourse(ctx context.Context, courseID string) ([]model.Enrollment, error) {
	var list []model.Enrollment
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("course_id = ? AND status = ?", courseID, model.EnrollmentActive).
		Order("enrolled_at DESC").
		Find(&list).Error
	return list, err
}

func (r *enrollmentRepo) ListActiveCourseIDs(ctx context.Context, studentID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Enrollment{}).
		Where("student_id = ? AND status = ?", studentID, model.EnrollmentActive).
		Pluck("course_id", &ids).Error
	return ids, err
}
