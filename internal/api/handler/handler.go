package handler

import (
	"github.com/Mowalen/ustc-database-learning-platform/config"
	"github.com/Mowalen/ustc-database-learning-platform/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth         *AuthHandler
	User         *UserHandler
	Course       *CourseHandler
	Enrollment   *EnrollmentHandler
	Task         *TaskHandler
	Score        *ScoreHandler
	Announcement *AnnouncementHandler
	Upload       *UploadHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, cfg *config.Config) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Auth, &cfg.Auth),
		User:         NewUserHandler(svc.User),
		Course:       NewCourseHandler(svc.Course, svc.Section),
		Enrollment:   NewEnrollmentHandler(svc.Enrollment, svc.Course),
		Task:         NewTaskHandler(svc.Task, svc.Course),
		Score:        NewScoreHandler(svc.Score, svc.Calendar, svc.Course),
		Announcement: NewAnnouncementHandler(svc.Announcement),
		Upload:       NewUploadHandler(svc.Upload),
	}
}
