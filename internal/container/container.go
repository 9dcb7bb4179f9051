package container

import (
	"fmt"
	"time"

	"github.com/mautops/pickup-gin/internal/api"
	"github.com/mautops/pickup-gin/internal/auth"
	"github.com/mautops/pickup-gin/internal/config"
	"github.com/mautops/pickup-gin/internal/database"
	"github.com/mautops/pickup-gin/internal/repository"
	"github.com/mautops/pickup-gin/internal/service"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、服务、调度器等
type Container struct {
	db               *gorm.DB
	logger           *logrus.Logger
	tokenValidator   *auth.TokenValidator
	activityLogSvc   service.ActivityLogService
	taskService      service.TaskService
	containerService service.ContainerService
	dailyScheduler   *service.DailyScheduler
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config) (*Container, error) {
	// 1. 初始化日志
	logger, err := api.NewLoggerFromConfig(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// 2. 初始化数据库（带重试机制）
	// 默认重试 3 次，初始间隔 1 秒，指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// 3. 初始化 Token 验证器
	tokenValidator := auth.NewTokenValidator(cfg.Auth.TokenSecret)

	// 4. 初始化服务
	activityLogSvc := service.NewActivityLogService(repository.NewActivityLogRepository(db))
	taskSvc := service.NewTaskService(db, activityLogSvc)
	containerSvc := service.NewContainerService(db, activityLogSvc)

	// 5. 初始化每日任务调度器
	scheduler, err := service.NewDailyScheduler(db, activityLogSvc, &service.DailySchedulerConfig{
		Timezone:     cfg.Scheduler.Timezone,
		InitialDelay: cfg.Scheduler.InitialDelay,
		Interval:     cfg.Scheduler.Interval,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize daily scheduler: %w", err)
	}

	return &Container{
		db:               db,
		logger:           logger,
		tokenValidator:   tokenValidator,
		activityLogSvc:   activityLogSvc,
		taskService:      taskSvc,
		containerService: containerSvc,
		dailyScheduler:   scheduler,
	}, nil
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Logger 获取日志记录器
func (c *Container) Logger() *logrus.Logger {
	return c.logger
}

// TokenValidator 获取 Token 验证器
func (c *Container) TokenValidator() *auth.TokenValidator {
	return c.tokenValidator
}

// ActivityLogService 获取操作日志服务
func (c *Container) ActivityLogService() service.ActivityLogService {
	return c.activityLogSvc
}

// TaskService 获取任务服务
func (c *Container) TaskService() service.TaskService {
	return c.taskService
}

// ContainerService 获取容器服务
func (c *Container) ContainerService() service.ContainerService {
	return c.containerService
}

// DailyScheduler 获取每日任务调度器
func (c *Container) DailyScheduler() *service.DailyScheduler {
	return c.dailyScheduler
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.dailyScheduler != nil {
		c.dailyScheduler.Stop()
	}

	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	return nil
}
