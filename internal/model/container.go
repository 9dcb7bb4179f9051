package model

import (
	"errors"
	"time"
)

// 容器种类
const (
	ContainerKindSource      = "source"      // 客户侧来源容器
	ContainerKindDestination = "destination" // 仓库侧目标容器
)

// ContainerModel 容器数据模型
// 不变量: 0 <= current_amount <= max_capacity,在任何增量转移前校验
type ContainerModel struct {
	ID            string  `gorm:"primaryKey;type:varchar(64)"`
	Kind          string  `gorm:"type:varchar(16);not null;index"` // source/destination
	Name          string  `gorm:"type:varchar(128)"`
	MaterialType  string  `gorm:"type:varchar(64);not null;index"`
	Unit          string  `gorm:"type:varchar(16);not null"`
	CurrentAmount float64 `gorm:"not null;default:0"` // 填充历史的缓存投影
	MaxCapacity   float64 `gorm:"not null"`
	LastEmptiedAt *time.Time
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName 指定表名
func (ContainerModel) TableName() string {
	return "containers"
}

// Validate 验证容器模型
func (cm *ContainerModel) Validate() error {
	if cm.ID == "" {
		return errors.New("container ID is required")
	}
	if cm.Kind != ContainerKindSource && cm.Kind != ContainerKindDestination {
		return errors.New("container kind is invalid")
	}
	if cm.MaterialType == "" {
		return errors.New("material type is required")
	}
	if cm.MaxCapacity <= 0 {
		return errors.New("max capacity must be positive")
	}
	if cm.CurrentAmount < 0 || cm.CurrentAmount > cm.MaxCapacity {
		return errors.New("current amount out of range")
	}
	return nil
}

// RemainingCapacity 剩余容量
func (cm *ContainerModel) RemainingCapacity() float64 {
	return cm.MaxCapacity - cm.CurrentAmount
}
