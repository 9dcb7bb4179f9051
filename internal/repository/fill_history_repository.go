package repository

import (
	"github.com/mautops/pickup-gin/internal/model"
	"gorm.io/gorm"
)

// FillHistoryRepository 填充历史仓储接口
// 只追加:接口上不存在更新或删除方法
type FillHistoryRepository interface {
	Create(entry *model.FillHistoryModel) error
	FindByContainer(containerID string) ([]*model.FillHistoryModel, error)
	FindByTask(taskID string) ([]*model.FillHistoryModel, error)
	// SumForContainer 账本自始至今的累加和,用于校验缓存投影
	SumForContainer(containerID string) (float64, error)
}

// fillHistoryRepository 填充历史仓储实现
type fillHistoryRepository struct {
	db *gorm.DB
}

// NewFillHistoryRepository 创建填充历史仓储
func NewFillHistoryRepository(db *gorm.DB) FillHistoryRepository {
	return &fillHistoryRepository{db: db}
}

// Create 追加账本行
func (r *fillHistoryRepository) Create(entry *model.FillHistoryModel) error {
	return r.db.Create(entry).Error
}

// FindByContainer 查询容器的填充历史
func (r *fillHistoryRepository) FindByContainer(containerID string) ([]*model.FillHistoryModel, error) {
	var entries []*model.FillHistoryModel
	err := r.db.Where("container_id = ?", containerID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// FindByTask 查询任务关联的填充历史
func (r *fillHistoryRepository) FindByTask(taskID string) ([]*model.FillHistoryModel, error) {
	var entries []*model.FillHistoryModel
	err := r.db.Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// SumForContainer 累加带符号的数量变化
func (r *fillHistoryRepository) SumForContainer(containerID string) (float64, error) {
	var sum float64
	err := r.db.Model(&model.FillHistoryModel{}).
		Where("container_id = ?", containerID).
		Select("COALESCE(SUM(amount_added), 0)").
		Scan(&sum).Error
	return sum, err
}
