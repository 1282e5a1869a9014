package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Mowalen/ustc-database-learning-platform/config"
	"github.com/Mowalen/ustc-database-learning-platform/internal/api/handler"
	"github.com/Mowalen/ustc-database-learning-platform/internal/api/middleware"
	"github.com/Mowalen/ustc-database-learning-platform/internal/api/router"
	"github.com/Mowalen/ustc-database-learning-platform/internal/api/validate"
	"github.com/Mowalen/ustc-database-learning-platform/internal/authz"
	"github.com/Mowalen/ustc-database-learning-platform/internal/repository"
	"github.com/Mowalen/ustc-database-learning-platform/internal/service"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/database"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/jwt"
	applogger "github.com/Mowalen/ustc-database-learning-platform/pkg/logger"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/mailer"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/redis"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/storage"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("LEARN_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log, cfg.App.Name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := validate.Register(); err != nil {
		logger.Fatal("注册校验规则失败", zap.Error(err))
	}

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("timezone", cfg.App.Timezone),
	)

	// 3. 连接数据库并执行迁移
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：失败时降级运行）
	// 接口变量只在连接成功时赋值，避免把 nil 指针装进非 nil 接口
	var (
		tokens  service.TokenStore
		revoked authz.RevocationChecker
		limiter middleware.RateLimiter
	)
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单、限流与密码重置不可用", zap.Error(err))
		rdb = nil
	} else {
		tokens, revoked, limiter = rdb, rdb, rdb
	}

	// 5. 文件存储与邮件
	ctx := context.Background()
	store, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		logger.Fatal("初始化文件存储失败", zap.Error(err))
	}
	mail := mailer.New(&cfg.Mail, cfg.App.Name, logger)

	// 6. 依赖注入: Repository → Service → Handler
	jwtMgr := jwt.NewManager(&cfg.Auth)
	repo := repository.NewRepository(db)
	svc := service.NewService(service.Deps{
		Config:  cfg,
		Repo:    repo,
		JWT:     jwtMgr,
		Tokens:  tokens,
		Mailer:  mail,
		Storage: store,
		Logger:  logger,
	})
	h := handler.NewHandler(svc, cfg)

	// 7. 初始化路由
	engine := router.Setup(router.Deps{
		Config:  cfg,
		Handler: h,
		Guard:   authz.NewGuard(jwtMgr, revoked),
		Limiter: limiter,
		Metrics: middleware.NewMetrics("learning"),
		Health: func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return repo.Ping(pingCtx)
		},
		Logger: logger,
	})

	// 8. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second, // 上传需要更长的读取时间
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 9. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	_ = sqlDB.Close()
	if rdb != nil {
		_ = rdb.Close()
	}

	logger.Info("服务器已关闭")
}
