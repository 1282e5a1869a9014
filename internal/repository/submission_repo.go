package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
)

// GradeUpdate 评分写入的字段
type GradeUpdate struct {
	Score    float64
	Feedback *string
	Status   string
	GradedAt time.Time
}

// SubmissionRepository 作业提交数据访问接口
type SubmissionRepository interface {
	// Upsert 按 (task_id, student_id) 插入或覆盖答案、附件、状态与提交时间
	Upsert(ctx context.Context, sub *model.Submission) error
	GetByID(ctx context.Context, id string) (*model.Submission, error)
	GetByTaskAndStudent(ctx context.Context, taskID, studentID string) (*model.Submission, error)
	// UpdateGrade 写入评分并返回更新后的行
	UpdateGrade(ctx context.Context, id string, g GradeUpdate) (*model.Submission, error)
	ListByTask(ctx context.Context, taskID string) ([]model.Submission, error)
	ListTaskIDsByStudent(ctx context.Context, studentID string, taskIDs []string) ([]string, error)
	CountPendingForTeacher(ctx context.Context, teacherID string) (int64, error)
	ScoresForStudent(ctx context.Context, studentID string) ([]model.ScoreRecord, error)
	ScoresForCourse(ctx context.Context, courseID string) ([]model.ScoreRecord, error)
}

type submissionRepo struct {
	db *gorm.DB
}

// NewSubmissionRepo 创建 SubmissionRepository 实例
func NewSubmissionRepo(db *gorm.DB) SubmissionRepository {
	return &submissionRepo{db: db}
}

func (r *submissionRepo) Upsert(ctx context.Context, sub *model.Submission) error {
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "task_id"}, {Name: "student_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"answer_text", "file_url", "status", "submitted_at"}),
			},
			clause.Returning{},
		).
		Create(sub).Error
}

func (r *submissionRepo) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	var sub model.Submission
	err := r.db.WithContext(ctx).
		Preload("Task").
		Where("submission_id = ?", id).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *submissionRepo) GetByTaskAndStudent(ctx context.Context, taskID, studentID string) (*model.Submission, error) {
	var sub model.Submission
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND student_id = ?", taskID, studentID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *submissionRepo) UpdateGrade(ctx context.Context, id string, g GradeUpdate) (*model.Submission, error) {
	var rows []model.Submission
	res := r.db.WithContext(ctx).
		Model(&rows).
		Clauses(clause.Returning{}).
		Where("submission_id = ?", id).
		Updates(map[string]interface{}{
			"score":     g.Score,
			"feedback":  g.Feedback,
			"status":    g.Status,
			"graded_at": g.GradedAt,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 || len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

func (r *submissionRepo) ListByTask(ctx context.Context, taskID string) ([]model.Submission, error) {
	var subs []model.Submission
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("task_id = ?", taskID).
		Order("submitted_at DESC").
		Find(&subs).Error
	return subs, err
}

func (r *submissionRepo) ListTaskIDsByStudent(ctx context.Context, studentID string, taskIDs []string) ([]string, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Submission{}).
		Where("student_id = ? AND task_id IN ?", studentID, taskIDs).
		Pluck("task_id", &ids).Error
	return ids, err
}

// CountPendingForTeacher 统计教师名下课程中、学生仍在读且尚未评分的提交数
func (r *submissionRepo) CountPendingForTeacher(ctx context.Context, teacherID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Table("submissions s").
		Joins("JOIN tasks t ON t.task_id = s.task_id").
		Joins("JOIN courses c ON c.course_id = t.course_id").
		Joins("JOIN course_enrollments e ON e.course_id = c.course_id AND e.student_id = s.student_id").
		Where("c.teacher_id = ? AND s.status IN ? AND e.status = ?",
			teacherID,
			[]string{model.SubmissionSubmitted, model.SubmissionLate},
			model.EnrollmentActive).
		Count(&n).Error
	return n, err
}

const scoreColumns = `s.submission_id, t.course_id, s.task_id, t.title AS task_title, s.student_id,
	u.username AS student_username, u.full_name AS student_name,
	s.score, s.feedback, s.status, s.graded_at`

func (r *submissionRepo) scoreQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("submissions s").
		Select(scoreColumns).
		Joins("JOIN tasks t ON t.task_id = s.task_id").
		Joins("JOIN users u ON u.user_id = s.student_id")
}

func (r *submissionRepo) ScoresForStudent(ctx context.Context, studentID string) ([]model.ScoreRecord, error) {
	var records []model.ScoreRecord
	err := r.scoreQuery(ctx).
		Where("s.student_id = ?", studentID).
		Order("s.graded_at DESC NULLS LAST, s.submitted_at DESC").
		Scan(&records).Error
	return records, err
}

func (r *submissionRepo) ScoresForCourse(ctx context.Context, courseID string) ([]model.ScoreRecord, error) {
	var records []model.ScoreRecord
	err := r.scoreQuery(ctx).
		Where("t.course_id = ?", courseID).
		Order("s.graded_at DESC NULLS LAST, s.submitted_at DESC").
		Scan(&records).Error
	return records, err
}
