package repository

import (
	"github.com/mautops/pickup-gin/internal/model"
	"gorm.io/gorm"
)

// ActivityLogRepository 操作日志仓储接口
// 只追加:接口上不存在更新或删除方法
type ActivityLogRepository interface {
	Create(entry *model.ActivityLogModel) error
	FindByTask(taskID string) ([]*model.ActivityLogModel, error)
	FindByUser(userID string) ([]*model.ActivityLogModel, error)
}

// activityLogRepository 操作日志仓储实现
type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository 创建操作日志仓储
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

// Create 追加操作日志
func (r *activityLogRepository) Create(entry *model.ActivityLogModel) error {
	return r.db.Create(entry).Error
}

// FindByTask 查询任务的操作日志
func (r *activityLogRepository) FindByTask(taskID string) ([]*model.ActivityLogModel, error) {
	var entries []*model.ActivityLogModel
	err := r.db.Where("task_id = ?", taskID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

// FindByUser 查询用户的操作日志
func (r *activityLogRepository) FindByUser(userID string) ([]*model.ActivityLogModel, error) {
	var entries []*model.ActivityLogModel
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}
