package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mowalen/ustc-database-learning-platform/internal/dto"
	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
)

// ────────────────────── 课程 ──────────────────────

func TestCourseService_CreateAndGet(t *testing.T) {
	repo, db := newMockRepository()
	svc := NewCourseService(repo, zap.NewNop())
	teacher := seedUser(db, "teacher1", model.RoleTeacher)
	teacher.FullName = "李老师"

	created, err := svc.Create(context.Background(), &dto.CreateCourseRequest{Title: " 数据库系统 ", Category: "CS"}, teacher.UserID)
	require.NoError(t, err)
	assert.Equal(t, "数据库系统", created.Title)
	assert.Equal(t, "李老师", created.TeacherName)
	assert.True(t, created.IsActive)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, teacher.UserID, got.TeacherID)

	owner, err := svc.Owner(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, teacher.UserID, owner)
}

func TestCourseService_Create_InvalidTeacher(t *testing.T) {
	repo, db := newMockRepository()
	svc := NewCourseService(repo, zap.NewNop())
	student := seedUser(db, "student1", model.RoleStudent)

	_, err := svc.Create(context.Background(), &dto.CreateCourseRequest{Title: "数据库系统"}, student.UserID)
	if !errors.Is(err, ErrTeacherNotFound) {
		t.Errorf("学生不能作为课程教师，期望 ErrTeacherNotFound，实际: %v", err)
	}
	_, err = svc.Create(context.Background(), &dto.CreateCourseRequest{Title: "数据库系统"}, "missing")
	if !errors.Is(err, ErrTeacherNotFound) {
		t.Errorf("期望 ErrTeacherNotFound，实际: %v", err)
	}
}

func TestCourseService_UpdateListDeactivate(t *testing.T) {
	repo, db := newMockRepository()
	svc := NewCourseService(repo, zap.NewNop())
	t1 := seedUser(db, "teacher1", model.RoleTeacher)
	t2 := seedUser(db, "teacher2", model.RoleTeacher)
	c1 := seedCourse(db, t1.UserID, "数据库系统")
	seedCourse(db, t2.UserID, "编译原理")
	ctx := context.Background()

	title := "数据库系统（2025 春）"
	updated, err := svc.Update(ctx, c1.CourseID, &dto.UpdateCourseRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	blank := "  "
	_, err = svc.Update(ctx, c1.CourseID, &dto.UpdateCourseRequest{Title: &blank})
	assert.ErrorIs(t, err, ErrCourseTitleMissing)

	list, total, err := svc.List(ctx, &dto.CourseListRequest{TeacherID: t1.UserID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, c1.CourseID, list[0].ID)

	require.NoError(t, svc.Deactivate(ctx, c1.CourseID))
	active := true
	_, total, err = svc.List(ctx, &dto.CourseListRequest{IsActive: &active})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "停用课程不应出现在启用列表中")

	assert.ErrorIs(t, svc.Deactivate(ctx, "missing"), ErrCourseNotFound)
}

// ────────────────────── 章节 ──────────────────────

func TestSectionService_CRUD(t *testing.T) {
	repo, db := newMockRepository()
	svc := NewSectionService(repo, zap.NewNop())
	teacher := seedUser(db, "teacher1", model.RoleTeacher)
	course := seedCourse(db, teacher.UserID, "数据库系统")
	ctx := context.Background()

	second, err := svc.Create(ctx, course.CourseID, &dto.CreateSectionRequest{Title: "第二章 关系模型", OrderIndex: 2})
	require.NoError(t, err)
	_, err = svc.Create(ctx, course.CourseID, &dto.CreateSectionRequest{Title: "第一章 绪论", OrderIndex: 1})
	require.NoError(t, err)

	list, err := svc.List(ctx, course.CourseID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "第一章 绪论", list[0].Title, "应按 order_index 升序")

	video := "https://example.com/v/2"
	updated, err := svc.Update(ctx, second.SectionID, &dto.UpdateSectionRequest{VideoURL: &video})
	require.NoError(t, err)
	require.NotNil(t, updated.VideoURL)
	assert.Equal(t, video, *updated.VideoURL)

	owner, err := svc.Owner(ctx, second.SectionID)
	require.NoError(t, err)
	assert.Equal(t, teacher.UserID, owner)

	require.NoError(t, svc.Delete(ctx, second.SectionID))
	assert.ErrorIs(t, svc.Delete(ctx, second.SectionID), ErrSectionNotFound)

	_, err = svc.Create(ctx, "missing", &dto.CreateSectionRequest{Title: "x"})
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

// ────────────────────── 公告 ──────────────────────

func TestAnnouncementService(t *testing.T) {
	repo, db := newMockRepository()
	svc := NewAnnouncementService(repo, zap.NewNop())
	admin := seedUser(db, "admin", model.RoleAdmin)
	ctx := context.Background()

	a1, err := svc.Create(ctx, &dto.CreateAnnouncementRequest{Title: "期中考试安排", Content: "第 9 周"}, admin.UserID)
	require.NoError(t, err)
	_, err = svc.Create(ctx, &dto.CreateAnnouncementRequest{Title: "实验室开放", Content: "周三下午"}, admin.UserID)
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, a1.AnnouncementID))

	visible, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "实验室开放", visible[0].Title)

	all, err := svc.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.ErrorIs(t, svc.Deactivate(ctx, "missing"), ErrAnnouncementNotFound)
}
