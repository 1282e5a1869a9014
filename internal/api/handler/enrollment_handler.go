package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Mowalen/ustc-database-learning-platform/internal/authz"
	"github.com/Mowalen/ustc-database-learning-platform/internal/dto"
	"github.com/Mowalen/ustc-database-learning-platform/internal/service"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/response"
)

// EnrollmentHandler 选课模块 HTTP 处理器
type EnrollmentHandler struct {
	enrollSvc service.EnrollmentService
	courses   courseOwners
}

// NewEnrollmentHandler 创建 EnrollmentHandler
func NewEnrollmentHandler(enrollSvc service.EnrollmentService, courses courseOwners) *EnrollmentHandler {
	return &EnrollmentHandler{enrollSvc: enrollSvc, courses: courses}
}

// Enroll 选课；管理员可代学生选课
// POST /api/v1/courses/:id/enroll
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	studentID, ok := h.targetStudent(c, authz.ActionEnroll)
	if !ok {
		return
	}

	enrollment, err := h.enrollSvc.Enroll(c.Request.Context(), c.Param("id"), studentID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, dto.NewEnrollmentResponse(enrollment))
}

// Drop 退课
// POST /api/v1/courses/:id/drop
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	studentID, ok := h.targetStudent(c, authz.ActionDrop)
	if !ok {
		return
	}

	enrollment, err := h.enrollSvc.Drop(c.Request.Context(), c.Param("id"), studentID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	response.OK(c, dto.NewEnrollmentResponse(enrollment))
}

// MyEnrollments 学生的在读课程
// GET /api/v1/me/enrollments
func (h *EnrollmentHandler) MyEnrollments(c *gin.Context) {
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
	if !authorize(c, id, authz.ActionViewEnrollments, studentID) {
		return
	}

	list, err := h.enrollSvc.ListForStudent(c.Request.Context(), studentID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	out := make([]dto.EnrollmentWithCourse, 0, len(list))
	for i := range list {
		out = append(out, dto.NewEnrollmentWithCourse(&list[i]))
	}
	response.OK(c, gin.H{"list": out})
}

// ListStudents 课程的在读学生
// GET /api/v1/courses/:id/students
func (h *EnrollmentHandler) ListStudents(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	courseID := c.Param("id")
	owner, err := h.courses.Owner(c.Request.Context(), courseID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}
	if !authorize(c, id, authz.ActionListStudents, owner) {
		return
	}

	list, err := h.enrollSvc.ListForCourse(c.Request.Context(), courseID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}

	out := make([]dto.EnrollmentWithStudent, 0, len(list))
	for i := range list {
		out = append(out, dto.NewEnrollmentWithStudent(&list[i]))
	}
	response.OK(c, gin.H{"list": out})
}

// targetStudent 解析操作对象：请求体 student_id 缺省为调用者本人
func (h *EnrollmentHandler) targetStudent(c *gin.Context, action authz.Action) (string, bool) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return "", false
	}

	var req dto.EnrollRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return "", false
	}
	studentID := req.StudentID
	if studentID == "" {
		studentID = id.UserID
	}

	if !authorize(c, id, action, studentID) {
		return "", false
	}
	return studentID, true
}

func (h *EnrollmentHandler) handleEnrollmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 15001, "课程不存在或已停用")
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 15002, "学生不存在或已停用")
	case errors.Is(err, service.ErrAlreadyEnrolled):
		response.Conflict(c, 15003, "已选修该课程")
	case errors.Is(err, service.ErrEnrollmentNotFound):
		response.NotFound(c, 15004, "未选修该课程")
	default:
		handleKindError(c, err)
	}
}
