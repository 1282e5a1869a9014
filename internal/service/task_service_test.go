package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mowalen/ustc-database-learning-platform/internal/dto"
	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
	"github.com/Mowalen/ustc-database-learning-platform/internal/repository"
	pkgerrors "github.com/Mowalen/ustc-database-learning-platform/pkg/errors"
)

type taskFixture struct {
	repo     *repository.Repository
	db       *memDB
	tasks    TaskService
	enroll   EnrollmentService
	teacher  *model.User
	student  *model.User
	course   *model.Course
	setClock func(time.Time)
}

func setupTaskFixture(t *testing.T, now time.Time) *taskFixture {
	t.Helper()
	repo, db := newMockRepository()
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	tasks := NewTaskService(repo, shanghai, zap.NewNop())
	enroll := NewEnrollmentService(repo, zap.NewNop())

	f := &taskFixture{repo: repo, db: db, tasks: tasks, enroll: enroll}
	f.setClock = func(at time.Time) {
		tasks.(*taskService).clock = fixedClock(at)
		enroll.(*enrollmentService).clock = fixedClock(at)
	}
	f.setClock(now)

	f.teacher = seedUser(db, "teacher1", model.RoleTeacher)
	f.student = seedUser(db, "student1", model.RoleStudent)
	f.course = seedCourse(db, f.teacher.UserID, "数据库系统")
	return f
}

func strPtr(s string) *string { return &s }

// ────────────────────── CreateTask ──────────────────────

func TestTaskService_CreateTask_Success(t *testing.T) {
	f := setupTaskFixture(t, time.Now())

	task, err := f.tasks.CreateTask(context.Background(), f.course.CourseID, &dto.CreateTaskRequest{
		TeacherID: f.teacher.UserID,
		Title:     "  实验一  ",
		Deadline:  strPtr("2025-04-01 23:59:00"),
	})
	require.NoError(t, err)

	assert.Equal(t, "实验一", task.Title)
	assert.Equal(t, model.TaskTypeAssignment, task.Type, "类型缺省为 assignment")
	require.NotNil(t, task.Deadline)
	// 不带时区的截止时间按 Asia/Shanghai 解释后存为 UTC
	assert.Equal(t, time.Date(2025, 4, 1, 15, 59, 0, 0, time.UTC), *task.Deadline)
}

func TestTaskService_CreateTask_TeacherMismatch(t *testing.T) {
	f := setupTaskFixture(t, time.Now())
	other := seedUser(f.db, "teacher2", model.RoleTeacher)

	_, err := f.tasks.CreateTask(context.Background(), f.course.CourseID, &dto.CreateTaskRequest{
		TeacherID: other.UserID,
		Title:     "实验一",
	})
	if !errors.Is(err, ErrTeacherMismatch) {
		t.Errorf("期望 ErrTeacherMismatch，实际: %v", err)
	}
	if !errors.Is(err, pkgerrors.ErrBadRequest) {
		t.Errorf("期望错误类别为 BadRequest，实际: %v", err)
	}
}

func TestTaskService_CreateTask_CourseMissingOrInactive(t *testing.T) {
	f := setupTaskFixture(t, time.Now())
	req := &dto.CreateTaskRequest{TeacherID: f.teacher.UserID, Title: "实验一"}

	if _, err := f.tasks.CreateTask(context.Background(), "missing", req); !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("期望 ErrCourseNotFound，实际: %v", err)
	}

	f.course.IsActive = false
	if _, err := f.tasks.CreateTask(context.Background(), f.course.CourseID, req); !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("停用课程期望 ErrCourseNotFound，实际: %v", err)
	}
}

func TestTaskService_CreateTask_BadDeadline(t *testing.T) {
	f := setupTaskFixture(t, time.Now())

	_, err := f.tasks.CreateTask(context.Background(), f.course.CourseID, &dto.CreateTaskRequest{
		TeacherID: f.teacher.UserID,
		Title:     "实验一",
		Deadline:  strPtr("下周五"),
	})
	if !errors.Is(err, ErrInvalidDeadline) {
		t.Errorf("期望 ErrInvalidDeadline，实际: %v", err)
	}
}

func TestTaskService_ListTasks_NewestFirst(t *testing.T) {
	f := setupTaskFixture(t, time.Now())
	seedTask(f.db, f.course, "旧作业", nil)
	newer := seedTask(f.db, f.course, "新作业", nil)

	tasks, err := f.tasks.ListTasks(context.Background(), f.course.CourseID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, newer.TaskID, tasks[0].TaskID)

	_, err = f.tasks.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskService_ListTasks_CourseMissingOrInactive(t *testing.T) {
	f := setupTaskFixture(t, time.Now())
	seedTask(f.db, f.course, "实验一", nil)

	_, err := f.tasks.ListTasks(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCourseNotFound)

	f.course.IsActive = false
	_, err = f.tasks.ListTasks(context.Background(), f.course.CourseID)
	assert.ErrorIs(t, err, ErrCourseNotFound, "停用课程的作业列表视为不存在")
}

// ────────────────────── Submit ──────────────────────

func TestTaskService_Submit_OnTimeAndLate(t *testing.T) {
	deadline := time.Date(2025, 4, 1, 16, 0, 0, 0, time.UTC)
	f := setupTaskFixture(t, deadline.Add(-time.Hour))
	task := seedTask(f.db, f.course, "实验一", &deadline)
	ctx := context.Background()

	_, err := f.enroll.Enroll(ctx, f.course.CourseID, f.student.UserID)
	require.NoError(t, err)

	sub, err := f.tasks.Submit(ctx, task.TaskID, f.student.UserID, &dto.SubmitRequest{AnswerText: strPtr("SELECT 1;")})
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionSubmitted, sub.Status)

	// 截止时刻本身不算逾期
	f.setClock(deadline)
	sub, err = f.tasks.Submit(ctx, task.TaskID, f.student.UserID, &dto.SubmitRequest{AnswerText: strPtr("SELECT 2;")})
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionSubmitted, sub.Status)

	f.setClock(deadline.Add(time.Second))
	sub, err = f.tasks.Submit(ctx, task.TaskID, f.student.UserID, &dto.SubmitRequest{AnswerText: strPtr("SELECT 3;")})
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionLate, sub.Status)
}

func TestTaskService_Submit_NoDeadlineNeverLate(t *testing.T) {
	f := setupTaskFixture(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	task := seedTask(f.db, f.course, "开放作业", nil)
	_, err := f.enroll.Enroll(context.Background(), f.course.CourseID, f.student.UserID)
	require.NoError(t, err)

	sub, err := f.tasks.Submit(context.Background(), task.TaskID, f.student.UserID, &dto.SubmitRequest{FileURL: strPtr("/uploads/a.sql")})
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionSubmitted, sub.Status)
}

func TestTaskService_Resubmit_OverwritesSingleRow(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	f := setupTaskFixture(t, now)
	task := seedTask(f.db, f.course, "实验一", nil)
	ctx := context.Background()
	_, err := f.enroll.Enroll(ctx, f.course.CourseID, f.student.UserID)
	require.NoError(t, err)

	first, err := f.tasks.Submit(ctx, task.TaskID, f.student.UserID, &dto.SubmitRequest{AnswerText: strPtr("v1")})
	require.NoError(t, err)

	later := now.Add(time.Hour)
	f.setClock(later)
	second, err := f.tasks.Submit(ctx, task.TaskID, f.student.UserID, &dto.SubmitRequest{AnswerText: strPtr("v2")})
	require.NoError(t, err)

	assert.Equal(t, first.SubmissionID, second.SubmissionID, "重新提交应覆盖原行")
	assert.Len(t, f.db.submissions, 1)
	require.NotNil(t, second.AnswerText)
	assert.Equal(t, "v2", *second.AnswerText)
	assert.True(t, second.SubmittedAt.Equal(later))
}

func TestTaskService_Submit_NotEnrolled(t *testing.T) {
	f := setupTaskFixture(t, time.Now())
	task := seedTask(f.db, f.course, "实验一", nil)

	_, err := f.tasks.Submit(context.Background(), task.TaskID, f.student.UserID, &dto.SubmitRequest{AnswerText: strPtr("x")})
	if !errors.Is(err, ErrNotEnrolled) || !errors.Is(err, pkgerrors.ErrForbidden) {
		t.Errorf("期望 Forbidden/ErrNotEnrolled，实际: %v", err)
	}
}

func TestTaskService_Submit_AfterDrop_Forbidden(t *testing.T) {
	f := setupTaskFixture(t, time.Now())
	task := seedTask(f.db, f.course, "实验一", nil)
	ctx := context.Background()

	_, err := f.enroll.Enroll(ctx, f.course.CourseID, f.student.UserID)
	require.NoError(t, err)
	_, err = f.enroll.Drop(ctx, f.course.CourseID, f.student.UserID)
	require.NoError(t, err)

	_, err = f.tasks.Submit(ctx, task.TaskID, f.student.UserID, &dto.SubmitRequest{AnswerText: strPtr("x")})
	assert.ErrorIs(t, err, pkgerrors.ErrForbidden)
}

func TestTaskService_Submit_EmptyAndMissingTask(t *testing.T) {
	f := setupTaskFixture(t, time.Now())
	task := seedTask(f.db, f.course, "实验一", nil)

	_, err := f.tasks.Submit(context.Background(), task.TaskID, f.student.UserID, &dto.SubmitRequest{AnswerText: strPtr("   ")})
	assert.ErrorIs(t, err, ErrEmptySubmission)

	_, err = f.tasks.Submit(context.Background(), "missing", f.student.UserID, &dto.SubmitRequest{AnswerText: strPtr("x")})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

// ────────────────────── Grade ──────────────────────

func TestTaskService_Grade_Idempotent(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	f := setupTaskFixture(t, now)
	task := seedTask(f.db, f.course, "实验一", nil)
	ctx := context.Background()
	_, err := f.enroll.Enroll(ctx, f.course.CourseID, f.student.UserID)
	require.NoError(t, err)
	sub, err := f.tasks.Submit(ctx, task.TaskID, f.student.UserID, &dto.SubmitRequest{AnswerText: strPtr("x")})
	require.NoError(t, err)

	payload := GradePayload{Score: 85, Feedback: strPtr("不错")}
	first, err := f.tasks.Grade(ctx, sub.SubmissionID, payload)
	require.NoError(t, err)
	second, err := f.tasks.Grade(ctx, sub.SubmissionID, payload)
	require.NoError(t, err)

	for _, g := range []*model.Submission{first, second} {
		require.NotNil(t, g.Score)
		assert.Equal(t, 85.0, *g.Score)
		assert.Equal(t, model.SubmissionGraded, g.Status)
		require.NotNil(t, g.GradedAt)
		assert.True(t, g.GradedAt.Equal(now))
		require.NotNil(t, g.Feedback)
		assert.Equal(t, "不错", *g.Feedback)
	}
}

func TestTaskService_Grade_NotFound(t *testing.T) {
	f := setupTaskFixture(t, time.Now())
	_, err := f.tasks.Grade(context.Background(), "missing", GradePayload{Score: 60})
	if !errors.Is(err, ErrSubmissionNotFound) {
		t.Errorf("期望 ErrSubmissionNotFound，实际: %v", err)
	}
}

// 评分后允许再次提交：状态回到 submitted/late，分数保留待重新评分
func TestTaskService_ResubmitAfterGrading_Allowed(t *testing.T) {
	f := setupTaskFixture(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	task := seedTask(f.db, f.course, "实验一", nil)
	ctx := context.Background()
	_, err := f.enroll.Enroll(ctx, f.course.CourseID, f.student.UserID)
	require.NoError(t, err)
	sub, err := f.tasks.Submit(ctx, task.TaskID, f.student.UserID, &dto.SubmitRequest{AnswerText: strPtr("v1")})
	require.NoError(t, err)
	_, err = f.tasks.Grade(ctx, sub.SubmissionID, GradePayload{Score: 70})
	require.NoError(t, err)

	again, err := f.tasks.Submit(ctx, task.TaskID, f.student.UserID, &dto.SubmitRequest{AnswerText: strPtr("v2")})
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionSubmitted, again.Status)
	require.NotNil(t, again.Score)
	assert.Equal(t, 70.0, *again.Score)
}

func TestTaskService_MySubmission(t *testing.T) {
	f := setupTaskFixture(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	task := seedTask(f.db, f.course, "实验一", nil)
	ctx := context.Background()

	_, err := f.tasks.MySubmission(ctx, task.TaskID, f.student.UserID)
	assert.ErrorIs(t, err, ErrSubmissionNotFound, "未提交时返回 NotFound")

	_, err = f.enroll.Enroll(ctx, f.course.CourseID, f.student.UserID)
	require.NoError(t, err)
	sub, err := f.tasks.Submit(ctx, task.TaskID, f.student.UserID, &dto.SubmitRequest{AnswerText: strPtr("SELECT 1;")})
	require.NoError(t, err)

	mine, err := f.tasks.MySubmission(ctx, task.TaskID, f.student.UserID)
	require.NoError(t, err)
	assert.Equal(t, sub.SubmissionID, mine.SubmissionID)
	assert.Equal(t, "SELECT 1;", *mine.AnswerText)
	require.NotNil(t, mine.Task)
	assert.Equal(t, "实验一", mine.Task.Title)

	_, err = f.tasks.MySubmission(ctx, "missing", f.student.UserID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskService_CourseOwnerLookups(t *testing.T) {
	f := setupTaskFixture(t, time.Now())
	task := seedTask(f.db, f.course, "实验一", nil)
	ctx := context.Background()
	_, err := f.enroll.Enroll(ctx, f.course.CourseID, f.student.UserID)
	require.NoError(t, err)
	sub, err := f.tasks.Submit(ctx, task.TaskID, f.student.UserID, &dto.SubmitRequest{AnswerText: strPtr("x")})
	require.NoError(t, err)

	owner, err := f.tasks.CourseOwnerOfTask(ctx, task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, f.teacher.UserID, owner)

	owner, err = f.tasks.CourseOwnerOfSubmission(ctx, sub.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, f.teacher.UserID, owner)

	subs, err := f.tasks.ListSubmissions(ctx, task.TaskID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.NotNil(t, subs[0].Student)
	assert.Equal(t, f.student.Username, subs[0].Student.Username)
}

// ────────────────────── 待办统计 ──────────────────────

func TestTaskService_PendingCounts(t *testing.T) {
	f := setupTaskFixture(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	other := seedUser(f.db, "student2", model.RoleStudent)
	t1 := seedTask(f.db, f.course, "实验一", nil)
	t2 := seedTask(f.db, f.course, "实验二", nil)
	seedTask(f.db, f.course, "实验三", nil)

	// 未选课的课程中的作业不计入
	otherCourse := seedCourse(f.db, f.teacher.UserID, "操作系统")
	seedTask(f.db, otherCourse, "OS 实验", nil)

	for _, s := range []*model.User{f.student, other} {
		_, err := f.enroll.Enroll(ctx, f.course.CourseID, s.UserID)
		require.NoError(t, err)
	}

	n, err := f.tasks.PendingTaskCount(ctx, f.student.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	sub1, err := f.tasks.Submit(ctx, t1.TaskID, f.student.UserID, &dto.SubmitRequest{AnswerText: strPtr("a")})
	require.NoError(t, err)
	_, err = f.tasks.Submit(ctx, t2.TaskID, f.student.UserID, &dto.SubmitRequest{AnswerText: strPtr("b")})
	require.NoError(t, err)
	_, err = f.tasks.Submit(ctx, t1.TaskID, other.UserID, &dto.SubmitRequest{AnswerText: strPtr("c")})
	require.NoError(t, err)

	n, err = f.tasks.PendingTaskCount(ctx, f.student.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	grading, err := f.tasks.PendingGradingCount(ctx, f.teacher.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), grading)

	// 已评分与已退课学生的提交不再待批改
	_, err = f.tasks.Grade(ctx, sub1.SubmissionID, GradePayload{Score: 90})
	require.NoError(t, err)
	_, err = f.enroll.Drop(ctx, f.course.CourseID, other.UserID)
	require.NoError(t, err)

	grading, err = f.tasks.PendingGradingCount(ctx, f.teacher.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), grading)

	none, err := f.tasks.PendingTaskCount(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, none)
}
