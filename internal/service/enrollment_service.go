package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
	"github.com/Mowalen/ustc-database-learning-platform/internal/repository"
	pkgerrors "github.com/Mowalen/ustc-database-learning-platform/pkg/errors"
)

// ── 选课模块业务错误 ──

var (
	ErrCourseNotFound     = pkgerrors.New(pkgerrors.ErrNotFound, "课程不存在或已停用")
	ErrStudentNotFound    = pkgerrors.New(pkgerrors.ErrNotFound, "学生不存在或已停用")
	ErrAlreadyEnrolled    = pkgerrors.New(pkgerrors.ErrConflict, "已选修该课程")
	ErrEnrollmentNotFound = pkgerrors.New(pkgerrors.ErrNotFound, "未选修该课程")
)

// EnrollmentService 选课业务接口
type EnrollmentService interface {
	Enroll(ctx context.Context, courseID, studentID string) (*model.Enrollment, error)
	Drop(ctx context.Context, courseID, studentID string) (*model.Enrollment, error)
	ListForStudent(ctx context.Context, studentID string) ([]model.Enrollment, error)
	ListForCourse(ctx context.Context, courseID string) ([]model.Enrollment, error)
}

type enrollmentService struct {
	repo   *repository.Repository
	clock  func() time.Time
	logger *zap.Logger
}

// NewEnrollmentService 创建 EnrollmentService 实例
func NewEnrollmentService(repo *repository.Repository, logger *zap.Logger) EnrollmentService {
	return &enrollmentService{repo: repo, clock: time.Now, logger: logger}
}

// ────────────────────── Enroll ──────────────────────

func (s *enrollmentService) Enroll(ctx context.Context, courseID, studentID string) (*model.Enrollment, error) {
	if _, err := activeCourse(ctx, s.repo, courseID, s.logger); err != nil {
		return nil, err
	}
	if _, err := s.activeStudent(ctx, studentID); err != nil {
		return nil, err
	}

	now := s.clock().UTC()

	existing, err := s.repo.Enrollment.GetByCourseAndStudent(ctx, courseID, studentID)
	switch {
	case err == nil:
		if existing.IsActive() {
			return nil, ErrAlreadyEnrolled
		}
		// 退课后重新选课：复用原行
		e, err := s.repo.Enrollment.Reactivate(ctx, courseID, studentID, now)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 并发请求已先一步恢复
			return nil, ErrAlreadyEnrolled
		}
		if err != nil {
			s.logger.Error("恢复选课失败", zap.String("course_id", courseID), zap.String("student_id", studentID), zap.Error(err))
			return nil, err
		}
		return e, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		e := &model.Enrollment{
			CourseID:   courseID,
			StudentID:  studentID,
			Status:     model.EnrollmentActive,
			EnrolledAt: now,
		}
		if err := s.repo.Enrollment.Create(ctx, e); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, ErrAlreadyEnrolled
			}
			s.logger.Error("创建选课失败", zap.String("course_id", courseID), zap.String("student_id", studentID), zap.Error(err))
			return nil, err
		}
		return e, nil

	default:
		s.logger.Error("查询选课失败", zap.String("course_id", courseID), zap.Error(err))
		return nil, err
	}
}

// ────────────────────── Drop ──────────────────────

func (s *enrollmentService) Drop(ctx context.Context, courseID, studentID string) (*model.Enrollment, error) {
	if _, err := activeCourse(ctx, s.repo, courseID, s.logger); err != nil {
		return nil, err
	}
	if _, err := s.activeStudent(ctx, studentID); err != nil {
		return nil, err
	}

	e, err := s.repo.Enrollment.Drop(ctx, courseID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		s.logger.Error("退课失败", zap.String("course_id", courseID), zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	return e, nil
}

// ────────────────────── List ──────────────────────

func (s *enrollmentService) ListForStudent(ctx context.Context, studentID string) ([]model.Enrollment, error) {
	if _, err := s.activeStudent(ctx, studentID); err != nil {
		return nil, err
	}

	list, err := s.repo.Enrollment.ListActiveByStudent(ctx, studentID)
	if err != nil {
		s.logger.Error("查询学生选课失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	return list, nil
}

func (s *enrollmentService) ListForCourse(ctx context.Context, courseID string) ([]model.Enrollment, error) {
	if _, err := activeCourse(ctx, s.repo, courseID, s.logger); err != nil {
		return nil, err
	}

	list, err := s.repo.Enrollment.ListActiveByCourse(ctx, courseID)
	if err != nil {
		s.logger.Error("查询课程学生失败", zap.String("course_id", courseID), zap.Error(err))
		return nil, err
	}
	return list, nil
}

// activeStudent 学生必须存在、启用且角色为学生
func (s *enrollmentService) activeStudent(ctx context.Context, studentID string) (*model.User, error) {
	u, err := s.repo.User.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		s.logger.Error("查询学生失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	if !u.IsActive || u.Role != model.RoleStudent {
		return nil, ErrStudentNotFound
	}
	return u, nil
}

// ── 跨服务共用的课程查询 ──

// getCourse 查询课程（不论是否启用）
func getCourse(ctx context.Context, repo *repository.Repository, courseID string, logger *zap.Logger) (*model.Course, error) {
	c, err := repo.Course.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		logger.Error("查询课程失败", zap.String("course_id", courseID), zap.Error(err))
		return nil, err
	}
	return c, nil
}

// activeCourse 查询课程，停用课程视为不存在
func activeCourse(ctx context.Context, repo *repository.Repository, courseID string, logger *zap.Logger) (*model.Course, error) {
	c, err := getCourse(ctx, repo, courseID, logger)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, ErrCourseNotFound
	}
	return c, nil
}
