package repository

import (
	"time"

	"github.com/mautops/pickup-gin/internal/model"
	"gorm.io/gorm"
)

// ContainerRepository 容器仓储接口
type ContainerRepository interface {
	Create(container *model.ContainerModel) error
	Save(container *model.ContainerModel) error
	FindByID(id string) (*model.ContainerModel, error)
	// AddAmountIfFits 原子增量:容量与物料校验在同一条 UPDATE 中完成
	AddAmountIfFits(id string, materialType string, amount float64, now time.Time) (bool, error)
	// EmptyIf 原子清空:仅当当前量等于期望值时置零并记录清空时间
	EmptyIf(id string, expectedAmount float64, now time.Time) (bool, error)
}

// containerRepository 容器仓储实现
type containerRepository struct {
	db *gorm.DB
}

// NewContainerRepository 创建容器仓储
func NewContainerRepository(db *gorm.DB) ContainerRepository {
	return &containerRepository{db: db}
}

// Create 创建容器
func (r *containerRepository) Create(container *model.ContainerModel) error {
	return r.db.Create(container).Error
}

// Save 保存容器
func (r *containerRepository) Save(container *model.ContainerModel) error {
	return r.db.Save(container).Error
}

// FindByID 根据 ID 查找容器
func (r *containerRepository) FindByID(id string) (*model.ContainerModel, error) {
	var container model.ContainerModel
	if err := r.db.Where("id = ?", id).First(&container).Error; err != nil {
		return nil, err
	}
	return &container, nil
}

// AddAmountIfFits 容量守卫的权威检查:条件放在 WHERE 中,
// 避免读取-写入之间的并发转移绕过上限
func (r *containerRepository) AddAmountIfFits(id string, materialType string, amount float64, now time.Time) (bool, error) {
	res := r.db.Model(&model.ContainerModel{}).
		Where("id = ? AND material_type = ? AND current_amount + ? <= max_capacity", id, materialType, amount).
		Updates(map[string]interface{}{
			"current_amount": gorm.Expr("current_amount + ?", amount),
			"updated_at":     now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// EmptyIf 当前量 CAS 置零
func (r *containerRepository) EmptyIf(id string, expectedAmount float64, now time.Time) (bool, error) {
	res := r.db.Model(&model.ContainerModel{}).
		Where("id = ? AND current_amount = ?", id, expectedAmount).
		Updates(map[string]interface{}{
			"current_amount":  0,
			"last_emptied_at": now,
			"updated_at":      now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
