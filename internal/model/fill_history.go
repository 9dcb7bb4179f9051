package model

import (
	"errors"
	"time"
)

// FillHistoryModel 填充历史数据模型
// 只追加的账本行,永不更新或删除;容器 current_amount 必须等于
// 自上次重置以来所有 amount_added 的累加和
type FillHistoryModel struct {
	ID          string  `gorm:"primaryKey;type:varchar(64)"`
	ContainerID string  `gorm:"type:varchar(64);not null;index"`
	AmountAdded float64 `gorm:"not null"` // 带符号,重置记为负值
	Unit        string  `gorm:"type:varchar(16);not null"`
	TaskID      *string `gorm:"type:varchar(64);index"`
	RecordedBy  string  `gorm:"type:varchar(64);not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (FillHistoryModel) TableName() string {
	return "fill_history"
}

// Validate 验证填充历史模型
func (fm *FillHistoryModel) Validate() error {
	if fm.ID == "" {
		return errors.New("fill history ID is required")
	}
	if fm.ContainerID == "" {
		return errors.New("container ID is required")
	}
	if fm.Unit == "" {
		return errors.New("unit is required")
	}
	if fm.RecordedBy == "" {
		return errors.New("recorded by is required")
	}
	return nil
}
