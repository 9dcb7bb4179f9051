package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/pickup-gin/internal/config"
	"github.com/mautops/pickup-gin/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// GetPoolConfig 获取连接池配置
func GetPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: 3600, // 1 小时
		ConnMaxIdleTime: 600,  // 10 分钟
	}
}

// Connect 连接数据库
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := BuildDSN(cfg)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 从配置中读取连接池参数，如果没有配置则使用默认值
	poolConfig := GetPoolConfig()
	if cfg.MaxIdleConns > 0 {
		poolConfig.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolConfig.ConnMaxIdleTime = cfg.ConnMaxIdleTime
	}

	sqlDB.SetMaxIdleConns(poolConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(poolConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(poolConfig.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(poolConfig.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}

		// 如果不是最后一次重试，等待后重试
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	// 检测数据库类型
	dialector := db.Dialector.Name()

	// SQLite 不支持 jsonb，需要手动创建表
	if dialector == "sqlite" || dialector == "sqlite3" {
		if err := createSQLiteTables(db); err != nil {
			return fmt.Errorf("failed to create SQLite tables: %w", err)
		}
	} else {
		// PostgreSQL 等其他数据库使用 AutoMigrate
		if err := db.AutoMigrate(
			&model.ContainerModel{},
			&model.StandModel{},
			&model.BoxModel{},
			&model.TaskModel{},
			&model.FillHistoryModel{},
			&model.ActivityLogModel{},
		); err != nil {
			return fmt.Errorf("failed to auto migrate: %w", err)
		}
	}

	// 创建索引
	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createSQLiteTables 为 SQLite 手动创建表（使用 TEXT 替代 jsonb）
func createSQLiteTables(db *gorm.DB) error {
	// 创建 containers 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS containers (
			id VARCHAR(64) PRIMARY KEY,
			kind VARCHAR(16) NOT NULL,
			name VARCHAR(128),
			material_type VARCHAR(64) NOT NULL,
			unit VARCHAR(16) NOT NULL,
			current_amount REAL NOT NULL DEFAULT 0,
			max_capacity REAL NOT NULL,
			last_emptied_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create containers table: %w", err)
	}

	// 创建 stands 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS stands (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(128) NOT NULL,
			source_container_id VARCHAR(64) NOT NULL,
			material_type VARCHAR(64) NOT NULL,
			unit VARCHAR(16),
			estimated_amount REAL,
			active BOOLEAN NOT NULL DEFAULT 1,
			daily_full BOOLEAN NOT NULL DEFAULT 0,
			last_daily_task_generated_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create stands table: %w", err)
	}

	// 创建 boxes 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS boxes (
			id VARCHAR(64) PRIMARY KEY,
			label VARCHAR(64) NOT NULL,
			assigned_task_id VARCHAR(64),
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create boxes table: %w", err)
	}

	// 创建 tasks 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id VARCHAR(64) PRIMARY KEY,
			workflow VARCHAR(16) NOT NULL,
			type VARCHAR(16) NOT NULL,
			state VARCHAR(32) NOT NULL,
			material_type VARCHAR(64) NOT NULL,
			unit VARCHAR(16),
			planned_quantity REAL,
			estimated_amount REAL,
			measured_weight REAL,
			source_container_id VARCHAR(64) NOT NULL,
			destination_container_id VARCHAR(64),
			stand_id VARCHAR(64),
			box_id VARCHAR(64),
			claimed_by_user_id VARCHAR(64),
			claimed_at DATETIME,
			handover_at DATETIME,
			scheduled_for VARCHAR(10),
			dedup_key VARCHAR(128),
			assigned_at DATETIME,
			accepted_at DATETIME,
			picked_up_at DATETIME,
			in_transit_at DATETIME,
			delivered_at DATETIME,
			completed_at DATETIME,
			dropped_off_at DATETIME,
			taken_over_at DATETIME,
			weighed_at DATETIME,
			disposed_at DATETIME,
			cancelled_at DATETIME,
			cancellation_reason TEXT,
			created_by VARCHAR(64),
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create tasks table: %w", err)
	}

	// 创建 fill_history 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS fill_history (
			id VARCHAR(64) PRIMARY KEY,
			container_id VARCHAR(64) NOT NULL,
			amount_added REAL NOT NULL,
			unit VARCHAR(16) NOT NULL,
			task_id VARCHAR(64),
			recorded_by VARCHAR(64) NOT NULL,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create fill_history table: %w", err)
	}

	// 创建 activity_logs 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS activity_logs (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			action VARCHAR(64) NOT NULL,
			task_id VARCHAR(64),
			container_id VARCHAR(64),
			request_id VARCHAR(64),
			ip VARCHAR(45),
			details TEXT,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create activity_logs table: %w", err)
	}

	return nil
}

// CreateIndexes 创建数据库索引
func CreateIndexes(db *gorm.DB) error {
	// tasks 表索引
	// dedup_key 唯一索引是每日任务至多一次生成的存储侧保证
	if err := db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_dedup_key ON tasks(dedup_key)").Error; err != nil {
		return fmt.Errorf("failed to create idx_tasks_dedup_key: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_tasks_state_type ON tasks(state, type)").Error; err != nil {
		return fmt.Errorf("failed to create idx_tasks_state_type: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_tasks_claimed_by ON tasks(claimed_by_user_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_tasks_claimed_by: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_tasks_stand_id ON tasks(stand_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_tasks_stand_id: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_tasks_updated_at ON tasks(updated_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_tasks_updated_at: %w", err)
	}

	// containers 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_containers_kind ON containers(kind)").Error; err != nil {
		return fmt.Errorf("failed to create idx_containers_kind: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_containers_material ON containers(material_type)").Error; err != nil {
		return fmt.Errorf("failed to create idx_containers_material: %w", err)
	}

	// stands 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_stands_active_daily ON stands(active, daily_full)").Error; err != nil {
		return fmt.Errorf("failed to create idx_stands_active_daily: %w", err)
	}

	// fill_history 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_fill_history_container ON fill_history(container_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_fill_history_container: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_fill_history_task ON fill_history(task_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_fill_history_task: %w", err)
	}

	// activity_logs 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_activity_task ON activity_logs(task_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_activity_task: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_activity_user ON activity_logs(user_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_activity_user: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_activity_created_at ON activity_logs(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_activity_created_at: %w", err)
	}

	return nil
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(db *gorm.DB) bool {
	if db == nil {
		return false
	}

	sqlDB, err := db.DB()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return false
	}

	return true
}
