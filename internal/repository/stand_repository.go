package repository

import (
	"time"

	"github.com/mautops/pickup-gin/internal/model"
	"gorm.io/gorm"
)

// StandRepository 取货点仓储接口
type StandRepository interface {
	Create(stand *model.StandModel) error
	Save(stand *model.StandModel) error
	FindByID(id string) (*model.StandModel, error)
	FindActiveDailyFull() ([]*model.StandModel, error)
	StampGenerated(id string, now time.Time) error
}

// standRepository 取货点仓储实现
type standRepository struct {
	db *gorm.DB
}

// NewStandRepository 创建取货点仓储
func NewStandRepository(db *gorm.DB) StandRepository {
	return &standRepository{db: db}
}

// Create 创建取货点
func (r *standRepository) Create(stand *model.StandModel) error {
	return r.db.Create(stand).Error
}

// Save 保存取货点
func (r *standRepository) Save(stand *model.StandModel) error {
	return r.db.Save(stand).Error
}

// FindByID 根据 ID 查找取货点
func (r *standRepository) FindByID(id string) (*model.StandModel, error) {
	var stand model.StandModel
	if err := r.db.Where("id = ?", id).First(&stand).Error; err != nil {
		return nil, err
	}
	return &stand, nil
}

// FindActiveDailyFull 查找所有启用每日满载任务的活跃取货点
func (r *standRepository) FindActiveDailyFull() ([]*model.StandModel, error) {
	var stands []*model.StandModel
	err := r.db.
		Where("active = ? AND daily_full = ?", true, true).
		Order("id").
		Find(&stands).Error
	return stands, err
}

// StampGenerated 回写最近一次每日任务生成时间
func (r *standRepository) StampGenerated(id string, now time.Time) error {
	return r.db.Model(&model.StandModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_daily_task_generated_at": now,
			"updated_at":                   now,
		}).Error
}
