package model

import (
	"errors"
	"time"
)

// 任务生命周期家族
const (
	WorkflowLegacy     = "legacy"     // 传统取送流程
	WorkflowAutomotive = "automotive" // 汽车件回收流程
)

// 任务类型
const (
	TaskTypeManual = "manual" // 手动创建的任务
	TaskTypeDaily  = "daily"  // 调度器生成的每日任务
)

// TaskModel 任务数据模型
// 每个状态转换对应一个独立的可空时间戳字段
type TaskModel struct {
	ID       string `gorm:"primaryKey;type:varchar(64)"`
	Workflow string `gorm:"type:varchar(16);not null;index"` // 生命周期家族: legacy/automotive
	Type     string `gorm:"type:varchar(16);not null;index"` // 任务类型: manual/daily
	State    string `gorm:"type:varchar(32);not null;index"` // 当前状态

	// 物料与数量
	MaterialType    string   `gorm:"type:varchar(64);not null"`
	Unit            string   `gorm:"type:varchar(16)"`
	PlannedQuantity *float64 // 计划数量
	EstimatedAmount *float64 // 估算数量
	MeasuredWeight  *float64 // 实测重量(仅在完成时写入)

	// 关联
	SourceContainerID      string  `gorm:"type:varchar(64);not null;index"`
	DestinationContainerID *string `gorm:"type:varchar(64);index"`
	StandID                *string `gorm:"type:varchar(64);index"` // 固定取货点(每日任务)
	BoxID                  *string `gorm:"type:varchar(64);index"` // 运输容器

	// 归属
	ClaimedByUserID *string    `gorm:"type:varchar(64);index"` // 为空表示可认领
	ClaimedAt       *time.Time
	HandoverAt      *time.Time

	// 调度元数据
	ScheduledFor *string `gorm:"type:varchar(10)"`              // 计划日期(YYYY-MM-DD)
	DedupKey     *string `gorm:"type:varchar(128);uniqueIndex"` // 去重键,存在时唯一

	// 每状态时间戳
	AssignedAt   *time.Time
	AcceptedAt   *time.Time
	PickedUpAt   *time.Time
	InTransitAt  *time.Time
	DeliveredAt  *time.Time
	CompletedAt  *time.Time
	DroppedOffAt *time.Time
	TakenOverAt  *time.Time
	WeighedAt    *time.Time
	DisposedAt   *time.Time
	CancelledAt  *time.Time

	// 审计字段
	CancellationReason *string `gorm:"type:text"`
	CreatedBy          string  `gorm:"type:varchar(64);index"`
	CreatedAt          time.Time `gorm:"not null;index"`
	UpdatedAt          time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (TaskModel) TableName() string {
	return "tasks"
}

// Validate 验证任务模型
func (tm *TaskModel) Validate() error {
	if tm.ID == "" {
		return errors.New("task ID is required")
	}
	if tm.Workflow != WorkflowLegacy && tm.Workflow != WorkflowAutomotive {
		return errors.New("task workflow is invalid")
	}
	if tm.State == "" {
		return errors.New("task state is required")
	}
	if tm.SourceContainerID == "" {
		return errors.New("source container ID is required")
	}
	if tm.MaterialType == "" {
		return errors.New("material type is required")
	}
	return nil
}

// IsOwned 判断任务是否已被认领
func (tm *TaskModel) IsOwned() bool {
	return tm.ClaimedByUserID != nil && *tm.ClaimedByUserID != ""
}

// OwnedBy 判断任务是否归属指定用户
func (tm *TaskModel) OwnedBy(userID string) bool {
	return tm.ClaimedByUserID != nil && *tm.ClaimedByUserID == userID
}
