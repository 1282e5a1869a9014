package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Mowalen/ustc-database-learning-platform/config"
	"github.com/Mowalen/ustc-database-learning-platform/internal/api/handler"
	"github.com/Mowalen/ustc-database-learning-platform/internal/api/middleware"
	"github.com/Mowalen/ustc-database-learning-platform/internal/authz"
	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
)

// Deps 路由依赖
type Deps struct {
	Config  *config.Config
	Handler *handler.Handler
	Guard   *authz.Guard
	Limiter middleware.RateLimiter // 可为 nil：不限流
	Metrics *middleware.Metrics    // 可为 nil：不暴露 /metrics
	Health  func() error           // 可为 nil
	Logger  *zap.Logger
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(d Deps) *gin.Engine {
	cfg := d.Config
	h := d.Handler

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		if d.Health != nil {
			if err := d.Health(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── 本地存储的上传文件 ──
	if cfg.Storage.Driver == "local" {
		r.Static(cfg.Storage.PublicPath, cfg.Storage.LocalDir)
	}

	maxBody := cfg.Server.MaxBodyMB << 20
	// multipart 边界与表单字段额外留 1MB
	maxUpload := (cfg.Server.MaxUploadMB + 1) << 20
	jwtAuth := middleware.JWTAuth(d.Guard)

	api := r.Group("/api/v1")

	// ── 普通 JSON 接口 ──
	v1 := api.Group("", middleware.BodyLimit(maxBody))
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", middleware.RateLimit(d.Limiter, cfg.Auth.LoginRateLimit, time.Minute), h.Auth.Login)
			auth.POST("/register", middleware.RateLimit(d.Limiter, cfg.Auth.LoginRateLimit, time.Minute), h.Auth.Register)
			auth.POST("/refresh", h.Auth.RefreshToken)
			auth.POST("/password-reset/request", middleware.RateLimit(d.Limiter, 5, time.Minute), h.Auth.RequestPasswordReset)
			auth.POST("/password-reset/confirm", middleware.RateLimit(d.Limiter, 10, time.Minute), h.Auth.ConfirmPasswordReset)
		}

		authorized := v1.Group("", jwtAuth)
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)
			authorized.PUT("/auth/password", h.Auth.ChangePassword)
			authorized.PUT("/users/me", h.User.UpdateProfile)

			// 课程与章节
			courses := authorized.Group("/courses")
			{
				courses.GET("", h.Course.ListCourses)
				courses.POST("", h.Course.CreateCourse)
				courses.GET("/:id", h.Course.GetCourse)
				courses.PUT("/:id", h.Course.UpdateCourse)
				courses.GET("/:id/sections", h.Course.ListSections)
				courses.POST("/:id/sections", h.Course.CreateSection)

				// 选课
				courses.POST("/:id/enroll", h.Enrollment.Enroll)
				courses.POST("/:id/drop", h.Enrollment.Drop)
				courses.GET("/:id/students", h.Enrollment.ListStudents)

				// 作业
				courses.POST("/:id/tasks", h.Task.CreateTask)
				courses.GET("/:id/tasks", h.Task.ListTasks)

				// 成绩
				courses.GET("/:id/scores", h.Score.CourseScores)
				courses.GET("/:id/scores/export", h.Score.ExportCourseScores)
			}

			sections := authorized.Group("/sections")
			{
				sections.GET("/:id", h.Course.GetSection)
				sections.PUT("/:id", h.Course.UpdateSection)
				sections.DELETE("/:id", h.Course.DeleteSection)
			}

			tasks := authorized.Group("/tasks")
			{
				tasks.GET("/:id", h.Task.GetTask)
				tasks.POST("/:id/submit", h.Task.Submit)
				tasks.GET("/:id/my-submission", h.Task.MySubmission)
				tasks.GET("/:id/submissions", h.Task.ListSubmissions)
			}

			authorized.PUT("/submissions/:id/grade", h.Task.Grade)

			// 个人视图
			me := authorized.Group("/me")
			{
				me.GET("/enrollments", h.Enrollment.MyEnrollments)
				me.GET("/scores", h.Score.MyScores)
				me.GET("/pending", h.Task.Pending)
				me.GET("/calendar.ics", h.Score.MyCalendar)
			}

			authorized.GET("/announcements", h.Announcement.ListAnnouncements)
			authorized.GET("/uploads/resources", h.Upload.ListMyResources)

			// 管理员
			admin := authorized.Group("/admin", middleware.RequireRole(model.RoleAdmin))
			{
				admin.POST("/users", h.User.CreateUser)
				admin.GET("/users", h.User.ListUsers)
				admin.GET("/users/:id", h.User.GetUser)
				admin.PUT("/users/:id", h.User.UpdateUser)
				admin.DELETE("/users/:id", h.User.DeactivateUser)

				admin.DELETE("/courses/:id", h.Course.DeactivateCourse)

				admin.POST("/announcements", h.Announcement.CreateAnnouncement)
				admin.DELETE("/announcements/:id", h.Announcement.DeactivateAnnouncement)
			}
		}
	}

	// ── 文件接口（更大的请求体上限） ──
	files := api.Group("", jwtAuth, middleware.BodyLimit(maxUpload))
	{
		files.POST("/uploads/file", h.Upload.UploadFile)
		files.POST("/admin/users/import", middleware.RequireRole(model.RoleAdmin), h.User.ImportUsers)
	}

	return r
}
