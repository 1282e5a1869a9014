package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Mowalen/ustc-database-learning-platform/config"
	"github.com/Mowalen/ustc-database-learning-platform/internal/repository"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/jwt"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/mailer"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/storage"
)

// TokenStore Token 黑名单与密码重置验证码存储（Redis 实现）
type TokenStore interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	SaveResetCode(ctx context.Context, email, code string, ttl time.Duration) error
	ConsumeResetCode(ctx context.Context, email, code string) error
}

// Deps 构造 Service 聚合所需的外部依赖
type Deps struct {
	Config  *config.Config
	Repo    *repository.Repository
	JWT     *jwt.Manager
	Tokens  TokenStore // 可为 nil：Redis 不可用时注销与密码重置降级
	Mailer  mailer.Mailer
	Storage storage.Storage
	Logger  *zap.Logger
}

// Service 所有 Service 的聚合入口
type Service struct {
	Auth         AuthService
	User         UserService
	Course       CourseService
	Section      SectionService
	Enrollment   EnrollmentService
	Task         TaskService
	Score        ScoreService
	Calendar     CalendarService
	Announcement AnnouncementService
	Upload       UploadService
}

// NewService 创建 Service 聚合
func NewService(d Deps) *Service {
	loc := d.Config.App.Location()
	return &Service{
		Auth:         NewAuthService(d.Config, d.Repo, d.JWT, d.Tokens, d.Mailer, d.Logger),
		User:         NewUserService(d.Repo, d.Logger),
		Course:       NewCourseService(d.Repo, d.Logger),
		Section:      NewSectionService(d.Repo, d.Logger),
		Enrollment:   NewEnrollmentService(d.Repo, d.Logger),
		Task:         NewTaskService(d.Repo, loc, d.Logger),
		Score:        NewScoreService(d.Repo, d.Logger),
		Calendar:     NewCalendarService(d.Repo, d.Config.App.Name, d.Logger),
		Announcement: NewAnnouncementService(d.Repo, d.Logger),
		Upload:       NewUploadService(d.Repo, d.Storage, d.Config.Server.MaxUploadMB<<20, d.Logger),
	}
}
