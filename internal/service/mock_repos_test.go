package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
	"github.com/Mowalen/ustc-database-learning-platform/internal/repository"
)

// memDB 所有 mock repo 共享的内存表，便于模拟跨表查询
type memDB struct {
	seq           int
	users         map[string]*model.User
	courses       map[string]*model.Course
	sections      map[string]*model.Section
	enrollments   map[string]*model.Enrollment // key: course|student
	tasks         map[string]*model.Task
	submissions   map[string]*model.Submission
	announcements map[string]*model.Announcement
	resources     map[string]*model.Resource
}

var mockEpoch = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func newMemDB() *memDB {
	return &memDB{
		users:         make(map[string]*model.User),
		courses:       make(map[string]*model.Course),
		sections:      make(map[string]*model.Section),
		enrollments:   make(map[string]*model.Enrollment),
		tasks:         make(map[string]*model.Task),
		submissions:   make(map[string]*model.Submission),
		announcements: make(map[string]*model.Announcement),
		resources:     make(map[string]*model.Resource),
	}
}

// nextID 生成递增 ID，同时返回单调递增的创建时间
func (m *memDB) nextID(prefix string) (string, time.Time) {
	m.seq++
	return fmt.Sprintf("%s-%03d", prefix, m.seq), mockEpoch.Add(time.Duration(m.seq) * time.Second)
}

// newMockRepository 组装基于 memDB 的 Repository 聚合
func newMockRepository() (*repository.Repository, *memDB) {
	db := newMemDB()
	return &repository.Repository{
		User:         &mockUserRepo{db},
		Course:       &mockCourseRepo{db},
		Section:      &mockSectionRepo{db},
		Enrollment:   &mockEnrollmentRepo{db},
		Task:         &mockTaskRepo{db},
		Submission:   &mockSubmissionRepo{db},
		Announcement: &mockAnnouncementRepo{db},
		Resource:     &mockResourceRepo{db},
	}, db
}

// ── Mock UserRepository ──

type mockUserRepo struct{ db *memDB }

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.db.users {
		if u.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
		if user.Email != nil && u.Email != nil && *u.Email == *user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.UserID == "" {
		user.UserID, user.CreatedAt = m.db.nextID("user")
	}
	cp := *user
	m.db.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) BatchCreate(ctx context.Context, users []model.User) error {
	for i := range users {
		if err := m.Create(ctx, &users[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.db.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.db.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.db.users {
		if u.Email != nil && *u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	cp := *user
	m.db.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) List(_ context.Context, filter repository.UserFilter, page repository.Page) ([]model.User, int64, error) {
	var result []model.User
	for _, u := range m.db.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		if filter.Keyword != "" && !strings.Contains(u.Username, filter.Keyword) && !strings.Contains(u.FullName, filter.Keyword) {
			continue
		}
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return paginate(result, page), int64(len(result)), nil
}

// ── Mock CourseRepository ──

type mockCourseRepo struct{ db *memDB }

func (m *mockCourseRepo) Create(_ context.Context, course *model.Course) error {
	if course.CourseID == "" {
		course.CourseID, course.CreatedAt = m.db.nextID("course")
	}
	cp := *course
	cp.Teacher = nil
	m.db.courses[course.CourseID] = &cp
	return nil
}

func (m *mockCourseRepo) GetByID(_ context.Context, id string) (*model.Course, error) {
	c, ok := m.db.courses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	if t, ok := m.db.users[c.TeacherID]; ok {
		teacher := *t
		cp.Teacher = &teacher
	}
	return &cp, nil
}

func (m *mockCourseRepo) Update(_ context.Context, course *model.Course) error {
	cp := *course
	cp.Teacher = nil
	m.db.courses[course.CourseID] = &cp
	return nil
}

func (m *mockCourseRepo) List(_ context.Context, filter repository.CourseFilter, page repository.Page) ([]model.Course, int64, error) {
	var result []model.Course
	for _, c := range m.db.courses {
		if filter.TeacherID != "" && c.TeacherID != filter.TeacherID {
			continue
		}
		if filter.Category != "" && c.Category != filter.Category {
			continue
		}
		if filter.IsActive != nil && c.IsActive != *filter.IsActive {
			continue
		}
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return paginate(result, page), int64(len(result)), nil
}

// ── Mock SectionRepository ──

type mockSectionRepo struct{ db *memDB }

func (m *mockSectionRepo) Create(_ context.Context, section *model.Section) error {
	if section.SectionID == "" {
		section.SectionID, section.CreatedAt = m.db.nextID("section")
	}
	cp := *section
	m.db.sections[section.SectionID] = &cp
	return nil
}

func (m *mockSectionRepo) GetByID(_ context.Context, id string) (*model.Section, error) {
	if s, ok := m.db.sections[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSectionRepo) ListByCourse(_ context.Context, courseID string) ([]model.Section, error) {
	var result []model.Section
	for _, s := range m.db.sections {
		if s.CourseID == courseID {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].OrderIndex < result[j].OrderIndex })
	return result, nil
}

func (m *mockSectionRepo) Update(_ context.Context, section *model.Section) error {
	cp := *section
	m.db.sections[section.SectionID] = &cp
	return nil
}

func (m *mockSectionRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.db.sections[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.db.sections, id)
	return nil
}

// ── Mock EnrollmentRepository ──

type mockEnrollmentRepo struct{ db *memDB }

func enrollmentKey(courseID, studentID string) string { return courseID + "|" + studentID }

func (m *mockEnrollmentRepo) Create(_ context.Context, e *model.Enrollment) error {
	key := enrollmentKey(e.CourseID, e.StudentID)
	if _, ok := m.db.enrollments[key]; ok {
		return gorm.ErrDuplicatedKey
	}
	if e.EnrollmentID == "" {
		e.EnrollmentID, _ = m.db.nextID("enroll")
	}
	cp := *e
	m.db.enrollments[key] = &cp
	return nil
}

func (m *mockEnrollmentRepo) GetByCourseAndStudent(_ context.Context, courseID, studentID string) (*model.Enrollment, error) {
	if e, ok := m.db.enrollments[enrollmentKey(courseID, studentID)]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEnrollmentRepo) Reactivate(_ context.Context, courseID, studentID string, at time.Time) (*model.Enrollment, error) {
	e, ok := m.db.enrollments[enrollmentKey(courseID, studentID)]
	if !ok || e.Status != model.EnrollmentDropped {
		return nil, gorm.ErrRecordNotFound
	}
	e.Status = model.EnrollmentActive
	e.EnrolledAt = at
	cp := *e
	return &cp, nil
}

func (m *mockEnrollmentRepo) Drop(_ context.Context, courseID, studentID string) (*model.Enrollment, error) {
	e, ok := m.db.enrollments[enrollmentKey(courseID, studentID)]
	if !ok || e.Status != model.EnrollmentActive {
		return nil, gorm.ErrRecordNotFound
	}
	e.Status = model.EnrollmentDropped
	cp := *e
	return &cp, nil
}

func (m *mockEnrollmentRepo) IsActive(_ context.Context, courseID, studentID string) (bool, error) {
	e, ok := m.db.enrollments[enrollmentKey(courseID, studentID)]
	return ok && e.Status == model.EnrollmentActive, nil
}

func (m *mockEnrollmentRepo) ListActiveByStudent(_ context.Context, studentID string) ([]model.Enrollment, error) {
	var result []model.Enrollment
	for _, e := range m.db.enrollments {
		if e.StudentID != studentID || e.Status != model.EnrollmentActive {
			continue
		}
		cp := *e
		if c, ok := m.db.courses[e.CourseID]; ok {
			course := *c
			cp.Course = &course
		}
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EnrolledAt.After(result[j].EnrolledAt) })
	return result, nil
}

func (m *mockEnrollmentRepo) ListActiveByCourse(_ context.Context, courseID string) ([]model.Enrollment, error) {
	var result []model.Enrollment
	for _, e := range m.db.enrollments {
		if e.CourseID != courseID || e.Status != model.EnrollmentActive {
			continue
		}
		cp := *e
		if u, ok := m.db.users[e.StudentID]; ok {
			student := *u
			cp.Student = &student
		}
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EnrolledAt.After(result[j].EnrolledAt) })
	return result, nil
}

func (m *mockEnrollmentRepo) ListActiveCourseIDs(_ context.Context, studentID string) ([]string, error) {
	var ids []string
	for _, e := range m.db.enrollments {
		if e.StudentID == studentID && e.Status == model.EnrollmentActive {
			ids = append(ids, e.CourseID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// activeCount 某学生在某课程下的 active 行数（用于校验唯一性）
func (m *memDB) activeCount(courseID, studentID string) int {
	n := 0
	for _, e := range m.enrollments {
		if e.CourseID == courseID && e.StudentID == studentID && e.Status == model.EnrollmentActive {
			n++
		}
	}
	return n
}

// ── Mock TaskRepository ──

type mockTaskRepo struct{ db *memDB }

func (m *mockTaskRepo) Create(_ context.Context, task *model.Task) error {
	if task.TaskID == "" {
		task.TaskID, task.CreatedAt = m.db.nextID("task")
	}
	cp := *task
	m.db.tasks[task.TaskID] = &cp
	return nil
}

func (m *mockTaskRepo) GetByID(_ context.Context, id string) (*model.Task, error) {
	if t, ok := m.db.tasks[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTaskRepo) ListByCourse(_ context.Context, courseID string) ([]model.Task, error) {
	return m.ListByCourseIDs(context.Background(), []string{courseID})
}

func (m *mockTaskRepo) ListByCourseIDs(_ context.Context, courseIDs []string) ([]model.Task, error) {
	want := make(map[string]bool, len(courseIDs))
	for _, id := range courseIDs {
		want[id] = true
	}
	var result []model.Task
	for _, t := range m.db.tasks {
		if want[t.CourseID] {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

// ── Mock SubmissionRepository ──

type mockSubmissionRepo struct{ db *memDB }

func (m *mockSubmissionRepo) Upsert(_ context.Context, sub *model.Submission) error {
	for _, existing := range m.db.submissions {
		if existing.TaskID == sub.TaskID && existing.StudentID == sub.StudentID {
			existing.AnswerText = sub.AnswerText
			existing.FileURL = sub.FileURL
			existing.Status = sub.Status
			existing.SubmittedAt = sub.SubmittedAt
			*sub = *existing
			return nil
		}
	}
	sub.SubmissionID, _ = m.db.nextID("sub")
	cp := *sub
	m.db.submissions[sub.SubmissionID] = &cp
	return nil
}

func (m *mockSubmissionRepo) GetByID(_ context.Context, id string) (*model.Submission, error) {
	s, ok := m.db.submissions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	if t, ok := m.db.tasks[s.TaskID]; ok {
		task := *t
		cp.Task = &task
	}
	return &cp, nil
}

func (m *mockSubmissionRepo) GetByTaskAndStudent(_ context.Context, taskID, studentID string) (*model.Submission, error) {
	for _, s := range m.db.submissions {
		if s.TaskID == taskID && s.StudentID == studentID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubmissionRepo) UpdateGrade(_ context.Context, id string, g repository.GradeUpdate) (*model.Submission, error) {
	s, ok := m.db.submissions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	score := g.Score
	gradedAt := g.GradedAt
	s.Score = &score
	s.Feedback = g.Feedback
	s.Status = g.Status
	s.GradedAt = &gradedAt
	cp := *s
	return &cp, nil
}

func (m *mockSubmissionRepo) ListByTask(_ context.Context, taskID string) ([]model.Submission, error) {
	var result []model.Submission
	for _, s := range m.db.submissions {
		if s.TaskID != taskID {
			continue
		}
		cp := *s
		if u, ok := m.db.users[s.StudentID]; ok {
			student := *u
			cp.Student = &student
		}
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SubmittedAt.After(result[j].SubmittedAt) })
	return result, nil
}

func (m *mockSubmissionRepo) ListTaskIDsByStudent(_ context.Context, studentID string, taskIDs []string) ([]string, error) {
	want := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		want[id] = true
	}
	var ids []string
	for _, s := range m.db.submissions {
		if s.StudentID == studentID && want[s.TaskID] {
			ids = append(ids, s.TaskID)
		}
	}
	return ids, nil
}

func (m *mockSubmissionRepo) CountPendingForTeacher(_ context.Context, teacherID string) (int64, error) {
	var n int64
	for _, s := range m.db.submissions {
		if s.Status != model.SubmissionSubmitted && s.Status != model.SubmissionLate {
			continue
		}
		t, ok := m.db.tasks[s.TaskID]
		if !ok {
			continue
		}
		c, ok := m.db.courses[t.CourseID]
		if !ok || c.TeacherID != teacherID {
			continue
		}
		if m.db.activeCount(t.CourseID, s.StudentID) == 0 {
			continue
		}
		n++
	}
	return n, nil
}

func (m *mockSubmissionRepo) scoreRecords(match func(s *model.Submission, t *model.Task) bool) []model.ScoreRecord {
	var result []model.ScoreRecord
	for _, s := range m.db.submissions {
		t, ok := m.db.tasks[s.TaskID]
		if !ok || !match(s, t) {
			continue
		}
		r := model.ScoreRecord{
			SubmissionID: s.SubmissionID,
			CourseID:     t.CourseID,
			TaskID:       t.TaskID,
			TaskTitle:    t.Title,
			StudentID:    s.StudentID,
			Score:        s.Score,
			Feedback:     s.Feedback,
			Status:       s.Status,
			GradedAt:     s.GradedAt,
		}
		if u, ok := m.db.users[s.StudentID]; ok {
			r.StudentUsername = u.Username
			r.StudentName = u.FullName
		}
		result = append(result, r)
	}
	// 与 SQL 一致：graded_at 倒序，未评分排在最后
	sort.Slice(result, func(i, j int) bool {
		gi, gj := result[i].GradedAt, result[j].GradedAt
		switch {
		case gi != nil && gj != nil && !gi.Equal(*gj):
			return gi.After(*gj)
		case (gi == nil) != (gj == nil):
			return gi != nil
		}
		return result[i].SubmissionID < result[j].SubmissionID
	})
	return result
}

func (m *mockSubmissionRepo) ScoresForStudent(_ context.Context, studentID string) ([]model.ScoreRecord, error) {
	return m.scoreRecords(func(s *model.Submission, _ *model.Task) bool { return s.StudentID == studentID }), nil
}

func (m *mockSubmissionRepo) ScoresForCourse(_ context.Context, courseID string) ([]model.ScoreRecord, error) {
	return m.scoreRecords(func(_ *model.Submission, t *model.Task) bool { return t.CourseID == courseID }), nil
}

// ── Mock AnnouncementRepository / ResourceRepository ──

type mockAnnouncementRepo struct{ db *memDB }

func (m *mockAnnouncementRepo) Create(_ context.Context, a *model.Announcement) error {
	if a.AnnouncementID == "" {
		a.AnnouncementID, a.CreatedAt = m.db.nextID("ann")
	}
	cp := *a
	m.db.announcements[a.AnnouncementID] = &cp
	return nil
}

func (m *mockAnnouncementRepo) GetByID(_ context.Context, id string) (*model.Announcement, error) {
	if a, ok := m.db.announcements[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAnnouncementRepo) Update(_ context.Context, a *model.Announcement) error {
	cp := *a
	m.db.announcements[a.AnnouncementID] = &cp
	return nil
}

func (m *mockAnnouncementRepo) List(_ context.Context, includeInactive bool) ([]model.Announcement, error) {
	var result []model.Announcement
	for _, a := range m.db.announcements {
		if a.IsActive || includeInactive {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

type mockResourceRepo struct{ db *memDB }

func (m *mockResourceRepo) Create(_ context.Context, res *model.Resource) error {
	if res.ResourceID == "" {
		res.ResourceID, res.CreatedAt = m.db.nextID("res")
	}
	cp := *res
	m.db.resources[res.ResourceID] = &cp
	return nil
}

func (m *mockResourceRepo) GetByID(_ context.Context, id string) (*model.Resource, error) {
	if r, ok := m.db.resources[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockResourceRepo) ListByOwner(_ context.Context, ownerID string, page repository.Page) ([]model.Resource, int64, error) {
	var result []model.Resource
	for _, r := range m.db.resources {
		if r.CreatedBy == ownerID {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return paginate(result, page), int64(len(result)), nil
}

func paginate[T any](items []T, page repository.Page) []T {
	if page.Offset >= len(items) {
		return nil
	}
	end := len(items)
	if page.Limit > 0 && page.Offset+page.Limit < end {
		end = page.Offset + page.Limit
	}
	return items[page.Offset:end]
}

// ── 数据准备辅助 ──

func seedUser(db *memDB, username string, role model.Role) *model.User {
	id, created := db.nextID("user")
	u := &model.User{
		UserID:       id,
		Username:     username,
		FullName:     username,
		PasswordHash: "$2a$04$invalidhashforseedusersonly000000000000000000000000000",
		Role:         role,
		IsActive:     true,
	}
	u.CreatedAt = created
	db.users[id] = u
	return u
}

func seedCourse(db *memDB, teacherID, title string) *model.Course {
	id, created := db.nextID("course")
	c := &model.Course{CourseID: id, TeacherID: teacherID, Title: title, IsActive: true}
	c.CreatedAt = created
	db.courses[id] = c
	return c
}

func seedTask(db *memDB, course *model.Course, title string, deadline *time.Time) *model.Task {
	id, created := db.nextID("task")
	t := &model.Task{
		TaskID:    id,
		CourseID:  course.CourseID,
		TeacherID: course.TeacherID,
		Title:     title,
		Type:      model.TaskTypeAssignment,
		Deadline:  deadline,
	}
	t.CreatedAt = created
	db.tasks[id] = t
	return t
}

// fixedClock 返回固定时间的时钟
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
