package dto

// ── 公告 / 上传 DTO ──

// CreateAnnouncementRequest 发布公告
type CreateAnnouncementRequest struct {
	Title   string `json:"title"   binding:"required,max=200"`
	Content string `json:"content" binding:"required"`
}

// AnnouncementListRequest 公告列表；include_inactive 仅管理员生效
type AnnouncementListRequest struct {
	IncludeInactive bool `form:"include_inactive"`
}

// UploadRequest 上传参数；folder 为可选的子目录
type UploadRequest struct {
	Folder string `form:"folder" binding:"omitempty,max=50,alphanum"`
}
