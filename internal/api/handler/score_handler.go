package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Mowalen/ustc-database-learning-platform/internal/authz"
	"github.com/Mowalen/ustc-database-learning-platform/internal/dto"
	"github.com/Mowalen/ustc-database-learning-platform/internal/service"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/response"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ScoreHandler 成绩查询与导出 HTTP 处理器
type ScoreHandler struct {
	scoreSvc    service.ScoreService
	calendarSvc service.CalendarService
	courses     courseOwners
}

// NewScoreHandler 创建 ScoreHandler
func NewScoreHandler(scoreSvc service.ScoreService, calendarSvc service.CalendarService, courses courseOwners) *ScoreHandler {
	return &ScoreHandler{scoreSvc: scoreSvc, calendarSvc: calendarSvc, courses: courses}
}

// MyScores 学生本人的成绩
// GET /api/v1/me/scores
func (h *ScoreHandler) MyScores(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	var q dto.StudentQuery
	if !bindQuery(c, &q) {
		return
	}
	studentID := q.StudentID
	if studentID == "" {
		studentID = id.UserID
	}
	if !authorize(c, id, authz.ActionViewStudentScores, studentID) {
		return
	}

	records, err := h.scoreSvc.ScoresForStudent(c.Request.Context(), studentID)
	if err != nil {
		h.handleScoreError(c, err)
		return
	}

	response.OK(c, gin.H{"list": records})
}

// CourseScores 课程全部成绩
// GET /api/v1/courses/:id/scores
func (h *ScoreHandler) CourseScores(c *gin.Context) {
	courseID := c.Param("id")
	if !h.authorizeCourse(c, courseID, authz.ActionViewCourseScore) {
		return
	}

	records, err := h.scoreSvc.ScoresForCourse(c.Request.Context(), courseID)
	if err != nil {
		h.handleScoreError(c, err)
		return
	}

	response.OK(c, gin.H{"list": records})
}

// ExportCourseScores 导出课程成绩，format=csv（默认）| xlsx
// GET /api/v1/courses/:id/scores/export
func (h *ScoreHandler) ExportCourseScores(c *gin.Context) {
	courseID := c.Param("id")
	if !h.authorizeCourse(c, courseID, authz.ActionExportScores) {
		return
	}

	var q dto.ExportRequest
	if !bindQuery(c, &q) {
		return
	}

	var (
		body        []byte
		filename    string
		contentType string
		err         error
	)
	if q.Format == "xlsx" {
		body, filename, err = h.scoreSvc.ExportCourseXLSX(c.Request.Context(), courseID)
		contentType = contentTypeXLSX
	} else {
		body, filename, err = h.scoreSvc.ExportCourseCSV(c.Request.Context(), courseID)
		contentType = contentTypeCSV
	}
	if err != nil {
		h.handleScoreError(c, err)
		return
	}

	response.Attachment(c, filename, contentType, body)
}

// MyCalendar 学生在读课程的作业截止日历
// GET /api/v1/me/calendar.ics
func (h *ScoreHandler) MyCalendar(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	if !authorize(c, id, authz.ActionViewEnrollments, id.UserID) {
		return
	}

	body, err := h.calendarSvc.StudentDeadlines(c.Request.Context(), id.UserID)
	if err != nil {
		h.handleScoreError(c, err)
		return
	}

	response.Attachment(c, "deadlines.ics", contentTypeICS, body)
}

func (h *ScoreHandler) authorizeCourse(c *gin.Context, courseID string, action authz.Action) bool {
	id, ok := MustGetIdentity(c)
	if !ok {
		return false
	}
	owner, err := h.courses.Owner(c.Request.Context(), courseID)
	if err != nil {
		h.handleScoreError(c, err)
		return false
	}
	return authorize(c, id, action, owner)
}

func (h *ScoreHandler) handleScoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 17001, "课程不存在")
	case errors.Is(err, service.ErrExportGenerateFail):
		_ = c.Error(err)
		response.InternalError(c)
	default:
		handleKindError(c, err)
	}
}
