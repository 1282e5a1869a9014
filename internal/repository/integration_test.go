//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
	"github.com/Mowalen/ustc-database-learning-platform/internal/repository"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/database"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var (
	testDB   *gorm.DB
	testRepo *repository.Repository
)

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=postgres password=postgres dbname=ustc_db_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "执行迁移失败: %v\n", err)
		os.Exit(1)
	}

	testRepo = repository.NewRepository(testDB)
	os.Exit(m.Run())
}

type fixture struct {
	teacher *model.User
	student *model.User
	course  *model.Course
}

// setupFixture 创建教师、学生与课程，测试结束后按依赖顺序清理
func setupFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.NewString()[:8]

	teacher := &model.User{Username: "t_" + suffix, PasswordHash: "x", Role: model.RoleTeacher, IsActive: true}
	student := &model.User{Username: "s_" + suffix, PasswordHash: "x", Role: model.RoleStudent, IsActive: true}
	require.NoError(t, testRepo.User.Create(ctx, teacher))
	require.NoError(t, testRepo.User.Create(ctx, student))

	course := &model.Course{TeacherID: teacher.UserID, Title: "数据库系统-" + suffix, IsActive: true}
	require.NoError(t, testRepo.Course.Create(ctx, course))

	t.Cleanup(func() {
		testDB.Exec("DELETE FROM submissions WHERE student_id = ?", student.UserID)
		testDB.Exec("DELETE FROM tasks WHERE course_id = ?", course.CourseID)
		testDB.Exec("DELETE FROM enrollments WHERE course_id = ?", course.CourseID)
		testDB.Exec("DELETE FROM courses WHERE course_id = ?", course.CourseID)
		testDB.Exec("DELETE FROM users WHERE user_id IN ?", []string{teacher.UserID, student.UserID})
	})

	return &fixture{teacher: teacher, student: student, course: course}
}

// ═══════════════════════════════════════════════════════════
// Users
// ═══════════════════════════════════════════════════════════

func TestUserRepo_UniqueUsername(t *testing.T) {
	f := setupFixture(t)
	dup := &model.User{Username: f.student.Username, PasswordHash: "x", Role: model.RoleStudent}

	err := testRepo.User.Create(context.Background(), dup)
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("重复用户名应返回 ErrDuplicatedKey, got %v", err)
	}
}

// ═══════════════════════════════════════════════════════════
// Enrollments
// ═══════════════════════════════════════════════════════════

func TestEnrollmentRepo_UniqueAndReactivate(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	e := &model.Enrollment{CourseID: f.course.CourseID, StudentID: f.student.UserID, Status: model.EnrollmentActive, EnrolledAt: time.Now().UTC()}
	require.NoError(t, testRepo.Enrollment.Create(ctx, e))

	dup := &model.Enrollment{CourseID: f.course.CourseID, StudentID: f.student.UserID, Status: model.EnrollmentActive, EnrolledAt: time.Now().UTC()}
	assert.ErrorIs(t, testRepo.Enrollment.Create(ctx, dup), gorm.ErrDuplicatedKey, "(course_id, student_id) 必须唯一")

	dropped, err := testRepo.Enrollment.Drop(ctx, f.course.CourseID, f.student.UserID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentDropped, dropped.Status)

	_, err = testRepo.Enrollment.Drop(ctx, f.course.CourseID, f.student.UserID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "重复退课应视为不存在")

	at := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	back, err := testRepo.Enrollment.Reactivate(ctx, f.course.CourseID, f.student.UserID, at)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentActive, back.Status)
	assert.Equal(t, e.EnrollmentID, back.EnrollmentID, "重新选课应复用原记录")
	assert.True(t, back.EnrolledAt.Equal(at))

	active, err := testRepo.Enrollment.IsActive(ctx, f.course.CourseID, f.student.UserID)
	require.NoError(t, err)
	assert.True(t, active)
}

// ═══════════════════════════════════════════════════════════
// Submissions
// ═══════════════════════════════════════════════════════════

func TestSubmissionRepo_UpsertAndGrade(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, testRepo.Enrollment.Create(ctx, &model.Enrollment{
		CourseID: f.course.CourseID, StudentID: f.student.UserID, Status: model.EnrollmentActive, EnrolledAt: time.Now().UTC(),
	}))
	task := &model.Task{CourseID: f.course.CourseID, TeacherID: f.teacher.UserID, Title: "实验一", Type: model.TaskTypeAssignment}
	require.NoError(t, testRepo.Task.Create(ctx, task))

	first := "v1"
	sub := &model.Submission{TaskID: task.TaskID, StudentID: f.student.UserID, AnswerText: &first, Status: model.SubmissionSubmitted, SubmittedAt: time.Now().UTC()}
	require.NoError(t, testRepo.Submission.Upsert(ctx, sub))

	n, err := testRepo.Submission.CountPendingForTeacher(ctx, f.teacher.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	graded, err := testRepo.Submission.UpdateGrade(ctx, sub.SubmissionID, repository.GradeUpdate{
		Score: 88.5, Status: model.SubmissionGraded, GradedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NotNil(t, graded.Score)
	assert.Equal(t, 88.5, *graded.Score)

	second := "v2"
	again := &model.Submission{TaskID: task.TaskID, StudentID: f.student.UserID, AnswerText: &second, Status: model.SubmissionLate, SubmittedAt: time.Now().UTC()}
	require.NoError(t, testRepo.Submission.Upsert(ctx, again))

	got, err := testRepo.Submission.GetByTaskAndStudent(ctx, task.TaskID, f.student.UserID)
	require.NoError(t, err)
	assert.Equal(t, sub.SubmissionID, got.SubmissionID, "(task_id, student_id) 只能有一行")
	assert.Equal(t, "v2", *got.AnswerText)
	assert.Equal(t, model.SubmissionLate, got.Status)
	require.NotNil(t, got.Score, "重新提交保留原分数")

	records, err := testRepo.Submission.ScoresForCourse(ctx, f.course.CourseID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "实验一", records[0].TaskTitle)
}

func TestSubmissionRepo_ScoresForCourseOrder(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	base := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)

	var subs []*model.Submission
	for i, title := range []string{"实验一", "实验二", "实验三"} {
		task := &model.Task{CourseID: f.course.CourseID, TeacherID: f.teacher.UserID, Title: title, Type: model.TaskTypeAssignment}
		require.NoError(t, testRepo.Task.Create(ctx, task))
		sub := &model.Submission{TaskID: task.TaskID, StudentID: f.student.UserID, Status: model.SubmissionSubmitted, SubmittedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, testRepo.Submission.Upsert(ctx, sub))
		subs = append(subs, sub)
	}

	// 实验一后评分，实验二先评分，实验三未评分
	_, err := testRepo.Submission.UpdateGrade(ctx, subs[1].SubmissionID, repository.GradeUpdate{Score: 60, Status: model.SubmissionGraded, GradedAt: base.Add(24 * time.Hour)})
	require.NoError(t, err)
	_, err = testRepo.Submission.UpdateGrade(ctx, subs[0].SubmissionID, repository.GradeUpdate{Score: 90, Status: model.SubmissionGraded, GradedAt: base.Add(48 * time.Hour)})
	require.NoError(t, err)

	records, err := testRepo.Submission.ScoresForCourse(ctx, f.course.CourseID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"实验一", "实验二", "实验三"},
		[]string{records[0].TaskTitle, records[1].TaskTitle, records[2].TaskTitle},
		"按评分时间倒序，未评分的排在最后")
}

func TestSubmissionRepo_UpdateGradeMissing(t *testing.T) {
	_, err := testRepo.Submission.UpdateGrade(context.Background(), uuid.NewString(), repository.GradeUpdate{
		Score: 1, Status: model.SubmissionGraded, GradedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
