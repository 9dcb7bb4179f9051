package workflow_test

import (
	"testing"
	"time"

	"github.com/mautops/pickup-gin/internal/model"
	"github.com/mautops/pickup-gin/internal/workflow"
	"github.com/stretchr/testify/assert"
)

// TestCanTransition_LegacyForward 测试传统流程的合法前进转换
func TestCanTransition_LegacyForward(t *testing.T) {
	steps := [][2]string{
		{workflow.StatusPlanned, workflow.StatusAssigned},
		{workflow.StatusAssigned, workflow.StatusAccepted},
		{workflow.StatusAccepted, workflow.StatusPickedUp},
		{workflow.StatusPickedUp, workflow.StatusInTransit},
		{workflow.StatusInTransit, workflow.StatusDelivered},
		{workflow.StatusDelivered, workflow.StatusCompleted},
	}
	for _, step := range steps {
		assert.True(t, workflow.CanTransition(model.WorkflowLegacy, step[0], step[1]),
			"%s -> %s should be legal", step[0], step[1])
	}

	// 认领直接进入 ACCEPTED
	assert.True(t, workflow.CanTransition(model.WorkflowLegacy, workflow.StatusPlanned, workflow.StatusAccepted))
}

// TestCanTransition_LegacySkipForbidden 测试传统流程禁止跳步
func TestCanTransition_LegacySkipForbidden(t *testing.T) {
	assert.False(t, workflow.CanTransition(model.WorkflowLegacy, workflow.StatusPlanned, workflow.StatusPickedUp))
	assert.False(t, workflow.CanTransition(model.WorkflowLegacy, workflow.StatusAccepted, workflow.StatusInTransit))
	assert.False(t, workflow.CanTransition(model.WorkflowLegacy, workflow.StatusAccepted, workflow.StatusDelivered))
	assert.False(t, workflow.CanTransition(model.WorkflowLegacy, workflow.StatusPickedUp, workflow.StatusCompleted))
}

// TestCanTransition_NoBackward 测试禁止逆向转换
func TestCanTransition_NoBackward(t *testing.T) {
	assert.False(t, workflow.CanTransition(model.WorkflowLegacy, workflow.StatusAccepted, workflow.StatusPlanned))
	assert.False(t, workflow.CanTransition(model.WorkflowLegacy, workflow.StatusInTransit, workflow.StatusPickedUp))
	assert.False(t, workflow.CanTransition(model.WorkflowAutomotive, workflow.StatusWeighed, workflow.StatusTakenOver))
}

// TestCanTransition_AutomotiveForward 测试汽车件流程的合法前进转换
func TestCanTransition_AutomotiveForward(t *testing.T) {
	steps := [][2]string{
		{workflow.StatusOpen, workflow.StatusPickedUp},
		{workflow.StatusPickedUp, workflow.StatusInTransit},
		{workflow.StatusInTransit, workflow.StatusDroppedOff},
		{workflow.StatusDroppedOff, workflow.StatusTakenOver},
		{workflow.StatusTakenOver, workflow.StatusWeighed},
		{workflow.StatusWeighed, workflow.StatusDisposed},
	}
	for _, step := range steps {
		assert.True(t, workflow.CanTransition(model.WorkflowAutomotive, step[0], step[1]),
			"%s -> %s should be legal", step[0], step[1])
	}

	// DROPPED_OFF 是汽车件独有的状态,传统流程不识别
	assert.False(t, workflow.CanTransition(model.WorkflowLegacy, workflow.StatusInTransit, workflow.StatusDroppedOff))
}

// TestCanTransition_CancelFromAnyNonTerminal 测试任意非终态可取消
func TestCanTransition_CancelFromAnyNonTerminal(t *testing.T) {
	legacyStates := []string{
		workflow.StatusPlanned, workflow.StatusAssigned, workflow.StatusAccepted,
		workflow.StatusPickedUp, workflow.StatusInTransit, workflow.StatusDelivered,
	}
	for _, from := range legacyStates {
		assert.True(t, workflow.CanTransition(model.WorkflowLegacy, from, workflow.StatusCancelled),
			"%s -> CANCELLED should be legal", from)
	}

	automotiveStates := []string{
		workflow.StatusOpen, workflow.StatusPickedUp, workflow.StatusInTransit,
		workflow.StatusDroppedOff, workflow.StatusTakenOver, workflow.StatusWeighed,
	}
	for _, from := range automotiveStates {
		assert.True(t, workflow.CanTransition(model.WorkflowAutomotive, from, workflow.StatusCancelled),
			"%s -> CANCELLED should be legal", from)
	}
}

// TestCanTransition_TerminalStatesAreFinal 测试终态无出口
func TestCanTransition_TerminalStatesAreFinal(t *testing.T) {
	targets := []string{
		workflow.StatusPlanned, workflow.StatusAccepted, workflow.StatusPickedUp,
		workflow.StatusInTransit, workflow.StatusDelivered, workflow.StatusCompleted,
		workflow.StatusCancelled,
	}
	for _, to := range targets {
		assert.False(t, workflow.CanTransition(model.WorkflowLegacy, workflow.StatusCompleted, to))
		assert.False(t, workflow.CanTransition(model.WorkflowLegacy, workflow.StatusCancelled, to))
		assert.False(t, workflow.CanTransition(model.WorkflowAutomotive, workflow.StatusDisposed, to))
	}
}

// TestNormalizeStatus_OffenAlias 测试历史别名 OFFEN 的归一化
func TestNormalizeStatus_OffenAlias(t *testing.T) {
	assert.Equal(t, workflow.StatusPlanned, workflow.NormalizeStatus("OFFEN"))
	assert.Equal(t, workflow.StatusPlanned, workflow.NormalizeStatus(workflow.StatusPlanned))
	assert.Equal(t, workflow.StatusOpen, workflow.NormalizeStatus(workflow.StatusOpen))

	// 别名在转换判断中与规范名等价
	assert.True(t, workflow.CanTransition(model.WorkflowLegacy, "OFFEN", workflow.StatusAccepted))
	assert.True(t, workflow.CanTransition(model.WorkflowLegacy, "OFFEN", workflow.StatusCancelled))
}

// TestInitialStatus 测试家族初始状态
func TestInitialStatus(t *testing.T) {
	assert.Equal(t, workflow.StatusPlanned, workflow.InitialStatus(model.WorkflowLegacy))
	assert.Equal(t, workflow.StatusOpen, workflow.InitialStatus(model.WorkflowAutomotive))
}

// TestIsTerminal 测试终态判断
func TestIsTerminal(t *testing.T) {
	assert.True(t, workflow.IsTerminal(workflow.StatusCompleted))
	assert.True(t, workflow.IsTerminal(workflow.StatusDisposed))
	assert.True(t, workflow.IsTerminal(workflow.StatusCancelled))
	assert.False(t, workflow.IsTerminal(workflow.StatusPlanned))
	assert.False(t, workflow.IsTerminal(workflow.StatusDelivered))
	assert.False(t, workflow.IsTerminal(workflow.StatusWeighed))
}

// TestStatusRank 测试状态序号
func TestStatusRank(t *testing.T) {
	assert.Equal(t, 0, workflow.StatusRank(model.WorkflowLegacy, workflow.StatusPlanned))
	assert.Equal(t, 0, workflow.StatusRank(model.WorkflowLegacy, "OFFEN"))
	assert.Equal(t, 6, workflow.StatusRank(model.WorkflowLegacy, workflow.StatusCompleted))
	assert.Equal(t, 6, workflow.StatusRank(model.WorkflowAutomotive, workflow.StatusDisposed))

	// CANCELLED 与未知状态不在前进顺序中
	assert.Equal(t, -1, workflow.StatusRank(model.WorkflowLegacy, workflow.StatusCancelled))
	assert.Equal(t, -1, workflow.StatusRank(model.WorkflowLegacy, "NONSENSE"))
	assert.Equal(t, -1, workflow.StatusRank(model.WorkflowLegacy, workflow.StatusDroppedOff))
}

// TestKnownStatus 测试状态归属判断
func TestKnownStatus(t *testing.T) {
	assert.True(t, workflow.KnownStatus(model.WorkflowLegacy, workflow.StatusDelivered))
	assert.True(t, workflow.KnownStatus(model.WorkflowLegacy, workflow.StatusCancelled))
	assert.True(t, workflow.KnownStatus(model.WorkflowAutomotive, workflow.StatusWeighed))
	assert.False(t, workflow.KnownStatus(model.WorkflowAutomotive, workflow.StatusDelivered))
	assert.False(t, workflow.KnownStatus(model.WorkflowLegacy, "NONSENSE"))
}

// TestApplyTimestamp 测试状态时间戳写入
func TestApplyTimestamp(t *testing.T) {
	task := &model.TaskModel{Workflow: model.WorkflowLegacy}
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	workflow.ApplyTimestamp(task, workflow.StatusAccepted, first)
	assert.NotNil(t, task.AcceptedAt)
	assert.Equal(t, first, *task.AcceptedAt)
	assert.Nil(t, task.PickedUpAt)

	// 重试不会覆盖首次时间戳
	later := first.Add(time.Hour)
	workflow.ApplyTimestamp(task, workflow.StatusAccepted, later)
	assert.Equal(t, first, *task.AcceptedAt)

	// 未知状态静默忽略
	workflow.ApplyTimestamp(task, "NONSENSE", later)
}

// TestTimestampFor 测试状态时间戳读取
func TestTimestampFor(t *testing.T) {
	now := time.Now()
	task := &model.TaskModel{WeighedAt: &now}

	assert.Equal(t, &now, workflow.TimestampFor(task, workflow.StatusWeighed))
	assert.Nil(t, workflow.TimestampFor(task, workflow.StatusDisposed))
	assert.Nil(t, workflow.TimestampFor(task, "NONSENSE"))
}
