package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Mowalen/ustc-database-learning-platform/internal/authz"
	"github.com/Mowalen/ustc-database-learning-platform/internal/dto"
	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
	"github.com/Mowalen/ustc-database-learning-platform/internal/service"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/response"
)

// courseOwners 查询课程所属教师，供权限判定使用
type courseOwners interface {
	Owner(ctx context.Context, courseID string) (string, error)
}

// CourseHandler 课程与章节 HTTP 处理器
type CourseHandler struct {
	courseSvc  service.CourseService
	sectionSvc service.SectionService
}

// NewCourseHandler 创建 CourseHandler
func NewCourseHandler(courseSvc service.CourseService, sectionSvc service.SectionService) *CourseHandler {
	return &CourseHandler{courseSvc: courseSvc, sectionSvc: sectionSvc}
}

// ListCourses 课程列表
// GET /api/v1/courses
func (h *CourseHandler) ListCourses(c *gin.Context) {
	var req dto.CourseListRequest
	if !bindQuery(c, &req) {
		return
	}

	list, total, err := h.courseSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetCourse 课程详情
// GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *gin.Context) {
	course, err := h.courseSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, course)
}

// CreateCourse 创建课程
// 教师只能为自己创建；管理员可通过 teacher_id 指定授课教师
// POST /api/v1/courses
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	if !authorize(c, id, authz.ActionCreateCourse, "") {
		return
	}

	var req dto.CreateCourseRequest
	if !bindJSON(c, &req) {
		return
	}

	teacherID := id.UserID
	if req.TeacherID != "" {
		if id.Role != model.RoleAdmin && req.TeacherID != id.UserID {
			response.Forbidden(c, 13004, "只能为自己创建课程")
			return
		}
		teacherID = req.TeacherID
	}

	course, err := h.courseSvc.Create(c.Request.Context(), &req, teacherID)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.Created(c, course)
}

// UpdateCourse 更新课程
// PUT /api/v1/courses/:id
func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	courseID := c.Param("id")
	if !h.authorizeCourse(c, courseID, authz.ActionManageCourse) {
		return
	}

	var req dto.UpdateCourseRequest
	if !bindJSON(c, &req) {
		return
	}

	course, err := h.courseSvc.Update(c.Request.Context(), courseID, &req)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, course)
}

// DeactivateCourse 停用课程
// DELETE /api/v1/admin/courses/:id
func (h *CourseHandler) DeactivateCourse(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	if !authorize(c, id, authz.ActionDeactivateCourse, "") {
		return
	}

	if err := h.courseSvc.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, nil)
}

// ────────────────────── 章节 ──────────────────────

// ListSections 课程章节列表（按 order_index）
// GET /api/v1/courses/:id/sections
func (h *CourseHandler) ListSections(c *gin.Context) {
	sections, err := h.sectionSvc.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, gin.H{"list": sections})
}

// CreateSection 新增章节
// POST /api/v1/courses/:id/sections
func (h *CourseHandler) CreateSection(c *gin.Context) {
	courseID := c.Param("id")
	if !h.authorizeCourse(c, courseID, authz.ActionManageCourse) {
		return
	}

	var req dto.CreateSectionRequest
	if !bindJSON(c, &req) {
		return
	}

	section, err := h.sectionSvc.Create(c.Request.Context(), courseID, &req)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.Created(c, section)
}

// GetSection 章节详情
// GET /api/v1/sections/:id
func (h *CourseHandler) GetSection(c *gin.Context) {
	section, err := h.sectionSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, section)
}

// UpdateSection 更新章节
// PUT /api/v1/sections/:id
func (h *CourseHandler) UpdateSection(c *gin.Context) {
	sectionID := c.Param("id")
	if !h.authorizeSection(c, sectionID) {
		return
	}

	var req dto.UpdateSectionRequest
	if !bindJSON(c, &req) {
		return
	}

	section, err := h.sectionSvc.Update(c.Request.Context(), sectionID, &req)
	if err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, section)
}

// DeleteSection 删除章节
// DELETE /api/v1/sections/:id
func (h *CourseHandler) DeleteSection(c *gin.Context) {
	sectionID := c.Param("id")
	if !h.authorizeSection(c, sectionID) {
		return
	}

	if err := h.sectionSvc.Delete(c.Request.Context(), sectionID); err != nil {
		h.handleCourseError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *CourseHandler) authorizeCourse(c *gin.Context, courseID string, action authz.Action) bool {
	id, ok := MustGetIdentity(c)
	if !ok {
		return false
	}
	owner, err := h.courseSvc.Owner(c.Request.Context(), courseID)
	if err != nil {
		h.handleCourseError(c, err)
		return false
	}
	return authorize(c, id, action, owner)
}

func (h *CourseHandler) authorizeSection(c *gin.Context, sectionID string) bool {
	id, ok := MustGetIdentity(c)
	if !ok {
		return false
	}
	owner, err := h.sectionSvc.Owner(c.Request.Context(), sectionID)
	if err != nil {
		h.handleCourseError(c, err)
		return false
	}
	return authorize(c, id, authz.ActionManageCourse, owner)
}

func (h *CourseHandler) handleCourseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 13001, "课程不存在")
	case errors.Is(err, service.ErrTeacherNotFound):
		response.BadRequest(c, 13002, "指定的教师不存在或已停用")
	case errors.Is(err, service.ErrCourseTitleMissing):
		response.BadRequest(c, 13003, "课程标题不能为空")
	case errors.Is(err, service.ErrSectionNotFound):
		response.NotFound(c, 14001, "章节不存在")
	default:
		handleKindError(c, err)
	}
}
