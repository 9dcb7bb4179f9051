package model

import (
	"errors"
	"time"
)

// BoxModel 运输容器数据模型
// 任务进入终态(DISPOSED/CANCELLED)时释放回未分配状态
type BoxModel struct {
	ID             string  `gorm:"primaryKey;type:varchar(64)"`
	Label          string  `gorm:"type:varchar(64);not null"`
	AssignedTaskID *string `gorm:"type:varchar(64);index"` // 为空表示未分配
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName 指定表名
func (BoxModel) TableName() string {
	return "boxes"
}

// Validate 验证运输容器模型
func (bm *BoxModel) Validate() error {
	if bm.ID == "" {
		return errors.New("box ID is required")
	}
	if bm.Label == "" {
		return errors.New("box label is required")
	}
	return nil
}
