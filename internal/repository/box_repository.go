package repository

import (
	"time"

	"github.com/mautops/pickup-gin/internal/model"
	"gorm.io/gorm"
)

// BoxRepository 运输容器仓储接口
type BoxRepository interface {
	Create(box *model.BoxModel) error
	FindByID(id string) (*model.BoxModel, error)
	// Assign 将运输容器绑定到任务
	Assign(id string, taskID string, now time.Time) error
	// ReleaseByTask 解除任务占用的运输容器,返回释放数量
	ReleaseByTask(taskID string, now time.Time) (int64, error)
}

// boxRepository 运输容器仓储实现
type boxRepository struct {
	db *gorm.DB
}

// NewBoxRepository 创建运输容器仓储
func NewBoxRepository(db *gorm.DB) BoxRepository {
	return &boxRepository{db: db}
}

// Create 创建运输容器
func (r *boxRepository) Create(box *model.BoxModel) error {
	return r.db.Create(box).Error
}

// FindByID 根据 ID 查找运输容器
func (r *boxRepository) FindByID(id string) (*model.BoxModel, error) {
	var box model.BoxModel
	if err := r.db.Where("id = ?", id).First(&box).Error; err != nil {
		return nil, err
	}
	return &box, nil
}

// Assign 绑定运输容器
func (r *boxRepository) Assign(id string, taskID string, now time.Time) error {
	return r.db.Model(&model.BoxModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"assigned_task_id": taskID,
			"updated_at":       now,
		}).Error
}

// ReleaseByTask 任务进入终态时释放运输容器
func (r *boxRepository) ReleaseByTask(taskID string, now time.Time) (int64, error) {
	res := r.db.Model(&model.BoxModel{}).
		Where("assigned_task_id = ?", taskID).
		Updates(map[string]interface{}{
			"assigned_task_id": nil,
			"updated_at":       now,
		})
	return res.RowsAffected, res.Error
}
