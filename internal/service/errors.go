package service

import (
	"errors"
	"fmt"
)

// 预期业务错误分类
// 校验器与容量守卫只返回决策,由服务层翻译为这里的错误类型;
// 只有基础设施故障(存储不可达等)以未分类错误向上传播
var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrContainerNotFound = errors.New("container not found")
	ErrStandNotFound     = errors.New("stand not found")
	ErrBoxNotFound       = errors.New("box not found")
)

// ForbiddenError 调用者缺少归属或角色
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.Reason
}

// TransitionConflictError 非法状态转换
// 携带当前状态与请求状态,调用方可据此决定静默重试或报错
type TransitionConflictError struct {
	Workflow        string `json:"workflow"`
	CurrentStatus   string `json:"current_status"`
	RequestedStatus string `json:"requested_status"`
}

func (e *TransitionConflictError) Error() string {
	return fmt.Sprintf("illegal transition: %s -> %s (%s workflow)",
		e.CurrentStatus, e.RequestedStatus, e.Workflow)
}

// ClaimConflictError 任务已被他人认领
type ClaimConflictError struct {
	TaskID    string `json:"task_id"`
	ClaimedBy string `json:"claimed_by"`
}

func (e *ClaimConflictError) Error() string {
	return fmt.Sprintf("task %s already claimed by %s", e.TaskID, e.ClaimedBy)
}

// ValidationError 输入无法通过业务校验
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}
