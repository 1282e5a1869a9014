package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Mowalen/ustc-database-learning-platform/internal/authz"
	"github.com/Mowalen/ustc-database-learning-platform/internal/dto"
	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
	"github.com/Mowalen/ustc-database-learning-platform/internal/service"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/response"
)

// AnnouncementHandler 公告 HTTP 处理器
type AnnouncementHandler struct {
	announcementSvc service.AnnouncementService
}

// NewAnnouncementHandler 创建 AnnouncementHandler
func NewAnnouncementHandler(announcementSvc service.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{announcementSvc: announcementSvc}
}

// ListAnnouncements 公告列表；include_inactive 仅对管理员生效
// GET /api/v1/announcements
func (h *AnnouncementHandler) ListAnnouncements(c *gin.Context) {
	role, ok := MustGetRole(c)
	if !ok {
		return
	}
	var q dto.AnnouncementListRequest
	if !bindQuery(c, &q) {
		return
	}

	list, err := h.announcementSvc.List(c.Request.Context(), q.IncludeInactive && role == model.RoleAdmin)
	if err != nil {
		h.handleAnnouncementError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// CreateAnnouncement 发布公告
// POST /api/v1/admin/announcements
func (h *AnnouncementHandler) CreateAnnouncement(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	if !authorize(c, id, authz.ActionManageAnnouncements, "") {
		return
	}

	var req dto.CreateAnnouncementRequest
	if !bindJSON(c, &req) {
		return
	}

	a, err := h.announcementSvc.Create(c.Request.Context(), &req, id.UserID)
	if err != nil {
		h.handleAnnouncementError(c, err)
		return
	}

	response.Created(c, a)
}

// DeactivateAnnouncement 下线公告
// DELETE /api/v1/admin/announcements/:id
func (h *AnnouncementHandler) DeactivateAnnouncement(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	if !authorize(c, id, authz.ActionManageAnnouncements, "") {
		return
	}

	if err := h.announcementSvc.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		h.handleAnnouncementError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *AnnouncementHandler) handleAnnouncementError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAnnouncementNotFound):
		response.NotFound(c, 18001, "公告不存在")
	default:
		handleKindError(c, err)
	}
}
