package model

import (
	"errors"
	"time"
)

// StandModel 固定取货点数据模型
// 由配置创建,调度器只读取并回写 last_daily_task_generated_at
type StandModel struct {
	ID                       string `gorm:"primaryKey;type:varchar(64)"`
	Name                     string `gorm:"type:varchar(128);not null"`
	SourceContainerID        string `gorm:"type:varchar(64);not null"`
	MaterialType             string `gorm:"type:varchar(64);not null"`
	Unit                     string `gorm:"type:varchar(16)"`
	EstimatedAmount          *float64
	Active                   bool `gorm:"not null;default:true;index"`
	DailyFull                bool `gorm:"not null;default:false;index"` // 是否每日生成满载任务
	LastDailyTaskGeneratedAt *time.Time
	CreatedAt                time.Time `gorm:"not null"`
	UpdatedAt                time.Time `gorm:"not null"`
}

// TableName 指定表名
func (StandModel) TableName() string {
	return "stands"
}

// Validate 验证取货点模型
func (sm *StandModel) Validate() error {
	if sm.ID == "" {
		return errors.New("stand ID is required")
	}
	if sm.Name == "" {
		return errors.New("stand name is required")
	}
	if sm.SourceContainerID == "" {
		return errors.New("source container ID is required")
	}
	if sm.MaterialType == "" {
		return errors.New("material type is required")
	}
	return nil
}
