package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// ActivityLogModel 操作日志数据模型
// 每个改变状态的操作都会生成一条不可变记录,独立于填充历史
type ActivityLogModel struct {
	ID          string         `gorm:"primaryKey;type:varchar(64)"`
	UserID      string         `gorm:"type:varchar(64);not null;index"`
	Action      string         `gorm:"type:varchar(64);not null;index"` // create/claim/accept/pickup/deliver/cancel/handover/status_set/daily_generate
	TaskID      *string        `gorm:"type:varchar(64);index"`
	ContainerID *string        `gorm:"type:varchar(64);index"`
	RequestID   string         `gorm:"type:varchar(64);index"`
	IP          string         `gorm:"type:varchar(45)"` // IPv4 或 IPv6
	Details     datatypes.JSON `gorm:"type:jsonb"`       // 操作详情
	CreatedAt   time.Time      `gorm:"not null;index"`
}

// TableName 指定表名
func (ActivityLogModel) TableName() string {
	return "activity_logs"
}

// Validate 验证操作日志模型
func (am *ActivityLogModel) Validate() error {
	if am.ID == "" {
		return errors.New("activity log ID is required")
	}
	if am.UserID == "" {
		return errors.New("user ID is required")
	}
	if am.Action == "" {
		return errors.New("action is required")
	}
	return nil
}
