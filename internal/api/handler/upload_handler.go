package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mowalen/ustc-database-learning-platform/internal/authz"
	"github.com/Mowalen/ustc-database-learning-platform/internal/dto"
	"github.com/Mowalen/ustc-database-learning-platform/internal/repository"
	"github.com/Mowalen/ustc-database-learning-platform/internal/service"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/response"
)

// UploadHandler 文件上传 HTTP 处理器
type UploadHandler struct {
	uploadSvc service.UploadService
}

// NewUploadHandler 创建 UploadHandler
func NewUploadHandler(uploadSvc service.UploadService) *UploadHandler {
	return &UploadHandler{uploadSvc: uploadSvc}
}

// UploadFile 上传单个文件（multipart，字段 file，可选 folder）
// POST /api/v1/uploads/file
func (h *UploadHandler) UploadFile(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	if !authorize(c, id, authz.ActionUpload, "") {
		return
	}

	var req dto.UploadRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, 19001, "文件超过大小限制")
			return
		}
		response.BadRequest(c, 19004, "请选择要上传的文件（字段名 file）")
		return
	}

	f, err := fh.Open()
	if err != nil {
		_ = c.Error(err)
		response.InternalError(c)
		return
	}
	defer f.Close()

	res, err := h.uploadSvc.Upload(c.Request.Context(), id.UserID, service.UploadInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Folder:      req.Folder,
		Body:        f,
	})
	if err != nil {
		h.handleUploadError(c, err)
		return
	}

	response.Created(c, res)
}

// ListMyResources 本人上传的文件
// GET /api/v1/uploads/resources
func (h *UploadHandler) ListMyResources(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var p dto.PaginationRequest
	if !bindQuery(c, &p) {
		return
	}

	list, total, err := h.uploadSvc.ListMine(c.Request.Context(), userID, repository.Page{
		Offset: p.GetOffset(),
		Limit:  p.GetPageSize(),
	})
	if err != nil {
		h.handleUploadError(c, err)
		return
	}

	response.OKPage(c, list, total, p.GetPage(), p.GetPageSize())
}

func (h *UploadHandler) handleUploadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, 19001, "文件超过大小限制")
	case errors.Is(err, service.ErrFileTypeDenied):
		response.BadRequest(c, 19002, "不支持的文件类型")
	case errors.Is(err, service.ErrFileEmpty):
		response.BadRequest(c, 19003, "文件为空")
	default:
		handleKindError(c, err)
	}
}
