package service

import (
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/Mowalen/ustc-database-learning-platform/internal/repository"
)

// CalendarService 学生截止日历导出
type CalendarService interface {
	// StudentDeadlines 生成学生在读课程中所有带截止时间作业的 iCalendar 文本
	StudentDeadlines(ctx context.Context, studentID string) ([]byte, error)
}

type calendarService struct {
	repo    *repository.Repository
	appName string
	clock   func() time.Time
	logger  *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(repo *repository.Repository, appName string, logger *zap.Logger) CalendarService {
	return &calendarService{repo: repo, appName: appName, clock: time.Now, logger: logger}
}

// 日历中每个截止事件的时长
const deadlineEventSpan = time.Hour

func (s *calendarService) StudentDeadlines(ctx context.Context, studentID string) ([]byte, error) {
	enrollments, err := s.repo.Enrollment.ListActiveByStudent(ctx, studentID)
	if err != nil {
		s.logger.Error("查询在读课程失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	courseTitles := make(map[string]string, len(enrollments))
	courseIDs := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		courseIDs = append(courseIDs, e.CourseID)
		if e.Course != nil {
			courseTitles[e.CourseID] = e.Course.Title
		}
	}

	tasks, err := s.repo.Task.ListByCourseIDs(ctx, courseIDs)
	if err != nil {
		s.logger.Error("查询课程作业失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		taskIDs = append(taskIDs, t.TaskID)
	}
	submitted, err := s.repo.Submission.ListTaskIDsByStudent(ctx, studentID, taskIDs)
	if err != nil {
		s.logger.Error("查询已提交作业失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	done := make(map[string]bool, len(submitted))
	for _, id := range submitted {
		done[id] = true
	}

	now := s.clock().UTC()

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//" + s.appName + "//deadlines//ZH")
	cal.SetXWRCalName(s.appName + " 作业截止")

	for _, t := range tasks {
		if t.Deadline == nil {
			continue
		}
		deadline := t.Deadline.UTC()

		summary := fmt.Sprintf("[%s] %s 截止", courseTitles[t.CourseID], t.Title)
		if done[t.TaskID] {
			summary += "（已提交）"
		}

		evt := cal.AddEvent(t.TaskID + "@deadlines")
		evt.SetDtStampTime(now)
		evt.SetCreatedTime(t.CreatedAt.UTC())
		evt.SetStartAt(deadline.Add(-deadlineEventSpan))
		evt.SetEndAt(deadline)
		evt.SetSummary(summary)
		if t.Description != "" {
			evt.SetDescription(t.Description)
		}
	}

	return []byte(cal.Serialize()), nil
}
