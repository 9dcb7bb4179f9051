package workflow

import "github.com/mautops/pickup-gin/internal/model"

// 传统流程状态
const (
	StatusPlanned   = "PLANNED"
	StatusAssigned  = "ASSIGNED"
	StatusAccepted  = "ACCEPTED"
	StatusPickedUp  = "PICKED_UP"
	StatusInTransit = "IN_TRANSIT"
	StatusDelivered = "DELIVERED"
	StatusCompleted = "COMPLETED"
)

// 汽车件流程状态
const (
	StatusOpen       = "OPEN"
	StatusDroppedOff = "DROPPED_OFF"
	StatusTakenOver  = "TAKEN_OVER"
	StatusWeighed    = "WEIGHED"
	StatusDisposed   = "DISPOSED"
)

// StatusCancelled 两个家族共用的取消终态
const StatusCancelled = "CANCELLED"

// statusOffen 历史别名,输入时归一化为 PLANNED,永不落库
const statusOffen = "OFFEN"

// NormalizeStatus 归一化状态别名
func NormalizeStatus(status string) string {
	if status == statusOffen {
		return StatusPlanned
	}
	return status
}

// InitialStatus 返回家族的初始开放状态
func InitialStatus(workflow string) string {
	if workflow == model.WorkflowAutomotive {
		return StatusOpen
	}
	return StatusPlanned
}

// IsOpen 判断是否为家族的开放状态(可认领)
func IsOpen(workflow, status string) bool {
	return NormalizeStatus(status) == InitialStatus(workflow)
}

// IsTerminal 判断是否为终态
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusDisposed, StatusCancelled:
		return true
	}
	return false
}

// legacyOrder 传统流程的前进顺序
var legacyOrder = []string{
	StatusPlanned,
	StatusAssigned,
	StatusAccepted,
	StatusPickedUp,
	StatusInTransit,
	StatusDelivered,
	StatusCompleted,
}

// automotiveOrder 汽车件流程的前进顺序
var automotiveOrder = []string{
	StatusOpen,
	StatusPickedUp,
	StatusInTransit,
	StatusDroppedOff,
	StatusTakenOver,
	StatusWeighed,
	StatusDisposed,
}

// StatusRank 返回状态在家族前进顺序中的序号
// CANCELLED 和未知状态返回 -1
func StatusRank(workflow, status string) int {
	status = NormalizeStatus(status)
	order := legacyOrder
	if workflow == model.WorkflowAutomotive {
		order = automotiveOrder
	}
	for i, s := range order {
		if s == status {
			return i
		}
	}
	return -1
}

// KnownStatus 判断状态是否属于指定家族
func KnownStatus(workflow, status string) bool {
	return NormalizeStatus(status) == StatusCancelled || StatusRank(workflow, status) >= 0
}
