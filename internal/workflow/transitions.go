package workflow

import "github.com/mautops/pickup-gin/internal/model"

// legacyTransitions 传统流程转换表
// 前进转换必须严格按顺序,CANCELLED 可从任意非终态到达
var legacyTransitions = map[string]map[string]struct{}{
	StatusPlanned: {
		StatusAssigned:  {},
		StatusAccepted:  {}, // 认领直接进入 ACCEPTED
		StatusCancelled: {},
	},
	StatusAssigned: {
		StatusAccepted:  {},
		StatusCancelled: {},
	},
	StatusAccepted: {
		StatusPickedUp:  {},
		StatusCancelled: {},
	},
	StatusPickedUp: {
		StatusInTransit: {},
		StatusCancelled: {},
	},
	StatusInTransit: {
		StatusDelivered: {},
		StatusCancelled: {},
	},
	StatusDelivered: {
		StatusCompleted: {},
		StatusCancelled: {},
	},
	StatusCompleted: {},
	StatusCancelled: {},
}

// automotiveTransitions 汽车件流程转换表
var automotiveTransitions = map[string]map[string]struct{}{
	StatusOpen: {
		StatusPickedUp:  {},
		StatusCancelled: {},
	},
	StatusPickedUp: {
		StatusInTransit: {},
		StatusCancelled: {},
	},
	StatusInTransit: {
		StatusDroppedOff: {},
		StatusCancelled:  {},
	},
	StatusDroppedOff: {
		StatusTakenOver: {},
		StatusCancelled: {},
	},
	StatusTakenOver: {
		StatusWeighed:   {},
		StatusCancelled: {},
	},
	StatusWeighed: {
		StatusDisposed:  {},
		StatusCancelled: {},
	},
	StatusDisposed:  {},
	StatusCancelled: {},
}

// CanTransition 判断状态转换是否合法
// 纯决策函数,无 I/O,不产生副作用
func CanTransition(workflow, from, to string) bool {
	from = NormalizeStatus(from)
	to = NormalizeStatus(to)

	table := legacyTransitions
	if workflow == model.WorkflowAutomotive {
		table = automotiveTransitions
	}

	targets, ok := table[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}
