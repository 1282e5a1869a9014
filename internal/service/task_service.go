package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Mowalen/ustc-database-learning-platform/internal/dto"
	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
	"github.com/Mowalen/ustc-database-learning-platform/internal/repository"
	pkgerrors "github.com/Mowalen/ustc-database-learning-platform/pkg/errors"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/timeutil"
)

// ── 作业 / 提交模块业务错误 ──

var (
	ErrTaskNotFound       = pkgerrors.New(pkgerrors.ErrNotFound, "作业不存在")
	ErrSubmissionNotFound = pkgerrors.New(pkgerrors.ErrNotFound, "提交记录不存在")
	ErrTeacherMismatch    = pkgerrors.New(pkgerrors.ErrBadRequest, "teacher_id 与课程所属教师不一致")
	ErrInvalidDeadline    = pkgerrors.New(pkgerrors.ErrBadRequest, "截止时间格式无效")
	ErrEmptySubmission    = pkgerrors.New(pkgerrors.ErrBadRequest, "答案与附件不能同时为空")
	ErrNotEnrolled        = pkgerrors.New(pkgerrors.ErrForbidden, "未选修该课程，无法提交")
)

// TaskService 作业、提交与评分业务接口
type TaskService interface {
	CreateTask(ctx context.Context, courseID string, req *dto.CreateTaskRequest) (*model.Task, error)
	ListTasks(ctx context.Context, courseID string) ([]model.Task, error)
	GetTask(ctx context.Context, taskID string) (*model.Task, error)
	// CourseOwnerOfTask 返回作业所属课程的教师 ID，供权限判定使用
	CourseOwnerOfTask(ctx context.Context, taskID string) (string, error)

	Submit(ctx context.Context, taskID, studentID string, req *dto.SubmitRequest) (*model.Submission, error)
	// MySubmission 学生在某作业下的提交，未提交返回 ErrSubmissionNotFound
	MySubmission(ctx context.Context, taskID, studentID string) (*model.Submission, error)
	ListSubmissions(ctx context.Context, taskID string) ([]model.Submission, error)
	// CourseOwnerOfSubmission 返回提交所属课程的教师 ID，供权限判定使用
	CourseOwnerOfSubmission(ctx context.Context, submissionID string) (string, error)
	Grade(ctx context.Context, submissionID string, p GradePayload) (*model.Submission, error)

	PendingTaskCount(ctx context.Context, studentID string) (int64, error)
	PendingGradingCount(ctx context.Context, teacherID string) (int64, error)
}

type taskService struct {
	repo   *repository.Repository
	loc    *time.Location // 不带时区的截止时间按此解释
	clock  func() time.Time
	logger *zap.Logger
}

// NewTaskService 创建 TaskService 实例
func NewTaskService(repo *repository.Repository, loc *time.Location, logger *zap.Logger) TaskService {
	if loc == nil {
		loc = time.UTC
	}
	return &taskService{repo: repo, loc: loc, clock: time.Now, logger: logger}
}

// ────────────────────── Task ──────────────────────

func (s *taskService) CreateTask(ctx context.Context, courseID string, req *dto.CreateTaskRequest) (*model.Task, error) {
	course, err := activeCourse(ctx, s.repo, courseID, s.logger)
	if err != nil {
		return nil, err
	}
	if req.TeacherID != course.TeacherID {
		return nil, ErrTeacherMismatch
	}

	deadline, err := timeutil.ParseOptional(req.Deadline, s.loc)
	if err != nil {
		return nil, ErrInvalidDeadline
	}

	taskType := req.Type
	if taskType == "" {
		taskType = model.TaskTypeAssignment
	}

	task := &model.Task{
		CourseID:    courseID,
		TeacherID:   course.TeacherID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Type:        taskType,
		Deadline:    deadline,
	}
	if err := s.repo.Task.Create(ctx, task); err != nil {
		s.logger.Error("创建作业失败", zap.String("course_id", courseID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("布置作业",
		zap.String("task_id", task.TaskID),
		zap.String("course_id", courseID),
		zap.String("type", taskType),
	)
	return task, nil
}

func (s *taskService) ListTasks(ctx context.Context, courseID string) ([]model.Task, error) {
	if _, err := activeCourse(ctx, s.repo, courseID, s.logger); err != nil {
		return nil, err
	}
	tasks, err := s.repo.Task.ListByCourse(ctx, courseID)
	if err != nil {
		s.logger.Error("查询作业列表失败", zap.String("course_id", courseID), zap.Error(err))
		return nil, err
	}
	return tasks, nil
}

func (s *taskService) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := s.repo.Task.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		s.logger.Error("查询作业失败", zap.String("task_id", taskID), zap.Error(err))
		return nil, err
	}
	return task, nil
}

func (s *taskService) CourseOwnerOfTask(ctx context.Context, taskID string) (string, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return "", err
	}
	course, err := getCourse(ctx, s.repo, task.CourseID, s.logger)
	if err != nil {
		return "", err
	}
	return course.TeacherID, nil
}

// ────────────────────── Submission ──────────────────────

func (s *taskService) Submit(ctx context.Context, taskID, studentID string, req *dto.SubmitRequest) (*model.Submission, error) {
	if isBlank(req.AnswerText) && isBlank(req.FileURL) {
		return nil, ErrEmptySubmission
	}

	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	enrolled, err := s.repo.Enrollment.IsActive(ctx, task.CourseID, studentID)
	if err != nil {
		s.logger.Error("查询选课状态失败", zap.String("task_id", taskID), zap.Error(err))
		return nil, err
	}
	if !enrolled {
		return nil, ErrNotEnrolled
	}

	now := s.clock().UTC()
	status := model.SubmissionSubmitted
	if task.IsLate(now) {
		status = model.SubmissionLate
	}

	sub := &model.Submission{
		TaskID:      taskID,
		StudentID:   studentID,
		AnswerText:  req.AnswerText,
		FileURL:     req.FileURL,
		Status:      status,
		SubmittedAt: now,
	}
	if err := s.repo.Submission.Upsert(ctx, sub); err != nil {
		s.logger.Error("保存提交失败", zap.String("task_id", taskID), zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	return sub, nil
}

func (s *taskService) MySubmission(ctx context.Context, taskID, studentID string) (*model.Submission, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	sub, err := s.repo.Submission.GetByTaskAndStudent(ctx, taskID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		s.logger.Error("查询本人提交失败", zap.String("task_id", taskID), zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	sub.Task = task
	return sub, nil
}

func (s *taskService) ListSubmissions(ctx context.Context, taskID string) ([]model.Submission, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	subs, err := s.repo.Submission.ListByTask(ctx, taskID)
	if err != nil {
		s.logger.Error("查询提交列表失败", zap.String("task_id", taskID), zap.Error(err))
		return nil, err
	}
	return subs, nil
}

func (s *taskService) getSubmission(ctx context.Context, submissionID string) (*model.Submission, error) {
	sub, err := s.repo.Submission.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		s.logger.Error("查询提交失败", zap.String("submission_id", submissionID), zap.Error(err))
		return nil, err
	}
	return sub, nil
}

func (s *taskService) CourseOwnerOfSubmission(ctx context.Context, submissionID string) (string, error) {
	sub, err := s.getSubmission(ctx, submissionID)
	if err != nil {
		return "", err
	}
	return s.CourseOwnerOfTask(ctx, sub.TaskID)
}

// ────────────────────── Grade ──────────────────────

func (s *taskService) Grade(ctx context.Context, submissionID string, p GradePayload) (*model.Submission, error) {
	sub, err := s.getSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	graded := applyGrade(*sub, p, s.clock())

	updated, err := s.repo.Submission.UpdateGrade(ctx, submissionID, repository.GradeUpdate{
		Score:    *graded.Score,
		Feedback: graded.Feedback,
		Status:   graded.Status,
		GradedAt: *graded.GradedAt,
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		s.logger.Error("评分失败", zap.String("submission_id", submissionID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("作业已评分",
		zap.String("submission_id", submissionID),
		zap.Float64("score", p.Score),
		zap.String("status", updated.Status),
	)
	return updated, nil
}

// ────────────────────── 待办统计 ──────────────────────

// PendingTaskCount 在读课程中的作业数 - 其中已提交的作业数
func (s *taskService) PendingTaskCount(ctx context.Context, studentID string) (int64, error) {
	courseIDs, err := s.repo.Enrollment.ListActiveCourseIDs(ctx, studentID)
	if err != nil {
		s.logger.Error("查询在读课程失败", zap.String("student_id", studentID), zap.Error(err))
		return 0, err
	}
	if len(courseIDs) == 0 {
		return 0, nil
	}

	tasks, err := s.repo.Task.ListByCourseIDs(ctx, courseIDs)
	if err != nil {
		s.logger.Error("查询课程作业失败", zap.String("student_id", studentID), zap.Error(err))
		return 0, err
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		taskIDs = append(taskIDs, t.TaskID)
	}

	submitted, err := s.repo.Submission.ListTaskIDsByStudent(ctx, studentID, taskIDs)
	if err != nil {
		s.logger.Error("查询已提交作业失败", zap.String("student_id", studentID), zap.Error(err))
		return 0, err
	}

	done := make(map[string]struct{}, len(submitted))
	for _, id := range submitted {
		done[id] = struct{}{}
	}

	var pending int64
	for _, id := range taskIDs {
		if _, ok := done[id]; !ok {
			pending++
		}
	}
	return pending, nil
}

func (s *taskService) PendingGradingCount(ctx context.Context, teacherID string) (int64, error) {
	n, err := s.repo.Submission.CountPendingForTeacher(ctx, teacherID)
	if err != nil {
		s.logger.Error("统计待批改数量失败", zap.String("teacher_id", teacherID), zap.Error(err))
		return 0, err
	}
	return n, nil
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
