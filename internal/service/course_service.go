package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Mowalen/ustc-database-learning-platform/internal/dto"
	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
	"github.com/Mowalen/ustc-database-learning-platform/internal/repository"
	pkgerrors "github.com/Mowalen/ustc-database-learning-platform/pkg/errors"
)

// ── 课程模块业务错误 ──

var (
	ErrTeacherNotFound    = pkgerrors.New(pkgerrors.ErrBadRequest, "指定的教师不存在或已停用")
	ErrSectionNotFound    = pkgerrors.New(pkgerrors.ErrNotFound, "章节不存在")
	ErrCourseTitleMissing = pkgerrors.New(pkgerrors.ErrBadRequest, "课程标题不能为空")
)

// CourseService 课程业务接口
type CourseService interface {
	// Create teacherID 为课程所属教师，由接口层根据调用者决定
	Create(ctx context.Context, req *dto.CreateCourseRequest, teacherID string) (*dto.CourseResponse, error)
	Get(ctx context.Context, id string) (*dto.CourseResponse, error)
	List(ctx context.Context, req *dto.CourseListRequest) ([]dto.CourseResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateCourseRequest) (*dto.CourseResponse, error)
	Deactivate(ctx context.Context, id string) error
	// Owner 返回课程所属教师 ID，供权限判定使用
	Owner(ctx context.Context, id string) (string, error)
}

type courseService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewCourseService 创建 CourseService 实例
func NewCourseService(repo *repository.Repository, logger *zap.Logger) CourseService {
	return &courseService{repo: repo, logger: logger}
}

func (s *courseService) Create(ctx context.Context, req *dto.CreateCourseRequest, teacherID string) (*dto.CourseResponse, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrCourseTitleMissing
	}

	teacher, err := s.repo.User.GetByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeacherNotFound
		}
		s.logger.Error("查询教师失败", zap.String("teacher_id", teacherID), zap.Error(err))
		return nil, err
	}
	if !teacher.IsActive || teacher.Role == model.RoleStudent {
		return nil, ErrTeacherNotFound
	}

	course := &model.Course{
		TeacherID:   teacherID,
		Title:       title,
		Description: req.Description,
		CoverURL:    req.CoverURL,
		Category:    req.Category,
		IsActive:    true,
	}
	if err := s.repo.Course.Create(ctx, course); err != nil {
		s.logger.Error("创建课程失败", zap.Error(err))
		return nil, err
	}
	course.Teacher = teacher

	resp := dto.NewCourseResponse(course)
	return &resp, nil
}

func (s *courseService) Get(ctx context.Context, id string) (*dto.CourseResponse, error) {
	course, err := getCourse(ctx, s.repo, id, s.logger)
	if err != nil {
		return nil, err
	}
	resp := dto.NewCourseResponse(course)
	return &resp, nil
}

func (s *courseService) List(ctx context.Context, req *dto.CourseListRequest) ([]dto.CourseResponse, int64, error) {
	courses, total, err := s.repo.Course.List(ctx, repository.CourseFilter{
		TeacherID: req.TeacherID,
		Category:  req.Category,
		IsActive:  req.IsActive,
	}, repository.Page{Offset: req.GetOffset(), Limit: req.GetPageSize()})
	if err != nil {
		s.logger.Error("列出课程失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.CourseResponse, 0, len(courses))
	for i := range courses {
		result = append(result, dto.NewCourseResponse(&courses[i]))
	}
	return result, total, nil
}

func (s *courseService) Update(ctx context.Context, id string, req *dto.UpdateCourseRequest) (*dto.CourseResponse, error) {
	course, err := getCourse(ctx, s.repo, id, s.logger)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, ErrCourseTitleMissing
		}
		course.Title = title
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.CoverURL != nil {
		course.CoverURL = req.CoverURL
	}
	if req.Category != nil {
		course.Category = *req.Category
	}
	if req.IsActive != nil {
		course.IsActive = *req.IsActive
	}

	if err := s.repo.Course.Update(ctx, course); err != nil {
		s.logger.Error("更新课程失败", zap.String("course_id", id), zap.Error(err))
		return nil, err
	}

	resp := dto.NewCourseResponse(course)
	return &resp, nil
}

func (s *courseService) Deactivate(ctx context.Context, id string) error {
	course, err := getCourse(ctx, s.repo, id, s.logger)
	if err != nil {
		return err
	}
	if !course.IsActive {
		return nil
	}

	course.IsActive = false
	if err := s.repo.Course.Update(ctx, course); err != nil {
		s.logger.Error("停用课程失败", zap.String("course_id", id), zap.Error(err))
		return err
	}
	s.logger.Info("课程已停用", zap.String("course_id", id))
	return nil
}

func (s *courseService) Owner(ctx context.Context, id string) (string, error) {
	course, err := getCourse(ctx, s.repo, id, s.logger)
	if err != nil {
		return "", err
	}
	return course.TeacherID, nil
}

// ═══════════════════════════════════════════════════════════
// 章节
// ═══════════════════════════════════════════════════════════

// SectionService 课程章节业务接口
type SectionService interface {
	Create(ctx context.Context, courseID string, req *dto.CreateSectionRequest) (*model.Section, error)
	List(ctx context.Context, courseID string) ([]model.Section, error)
	Get(ctx context.Context, id string) (*model.Section, error)
	Update(ctx context.Context, id string, req *dto.UpdateSectionRequest) (*model.Section, error)
	Delete(ctx context.Context, id string) error
	// Owner 返回章节所属课程的教师 ID
	Owner(ctx context.Context, id string) (string, error)
}

type sectionService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewSectionService 创建 SectionService 实例
func NewSectionService(repo *repository.Repository, logger *zap.Logger) SectionService {
	return &sectionService{repo: repo, logger: logger}
}

func (s *sectionService) Create(ctx context.Context, courseID string, req *dto.CreateSectionRequest) (*model.Section, error) {
	if _, err := getCourse(ctx, s.repo, courseID, s.logger); err != nil {
		return nil, err
	}

	section := &model.Section{
		CourseID:    courseID,
		Title:       req.Title,
		Content:     req.Content,
		MaterialURL: req.MaterialURL,
		VideoURL:    req.VideoURL,
		OrderIndex:  req.OrderIndex,
	}
	if err := s.repo.Section.Create(ctx, section); err != nil {
		s.logger.Error("创建章节失败", zap.String("course_id", courseID), zap.Error(err))
		return nil, err
	}
	return section, nil
}

func (s *sectionService) List(ctx context.Context, courseID string) ([]model.Section, error) {
	if _, err := getCourse(ctx, s.repo, courseID, s.logger); err != nil {
		return nil, err
	}
	sections, err := s.repo.Section.ListByCourse(ctx, courseID)
	if err != nil {
		s.logger.Error("查询章节失败", zap.String("course_id", courseID), zap.Error(err))
		return nil, err
	}
	return sections, nil
}

func (s *sectionService) Get(ctx context.Context, id string) (*model.Section, error) {
	section, err := s.repo.Section.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSectionNotFound
		}
		s.logger.Error("查询章节失败", zap.String("section_id", id), zap.Error(err))
		return nil, err
	}
	return section, nil
}

func (s *sectionService) Update(ctx context.Context, id string, req *dto.UpdateSectionRequest) (*model.Section, error) {
	section, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		section.Title = *req.Title
	}
	if req.Content != nil {
		section.Content = *req.Content
	}
	if req.MaterialURL != nil {
		section.MaterialURL = req.MaterialURL
	}
	if req.VideoURL != nil {
		section.VideoURL = req.VideoURL
	}
	if req.OrderIndex != nil {
		section.OrderIndex = *req.OrderIndex
	}

	if err := s.repo.Section.Update(ctx, section); err != nil {
		s.logger.Error("更新章节失败", zap.String("section_id", id), zap.Error(err))
		return nil, err
	}
	return section, nil
}

func (s *sectionService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Section.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSectionNotFound
		}
		s.logger.Error("删除章节失败", zap.String("section_id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *sectionService) Owner(ctx context.Context, id string) (string, error) {
	section, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	course, err := getCourse(ctx, s.repo, section.CourseID, s.logger)
	if err != nil {
		return "", err
	}
	return course.TeacherID, nil
}
