package workflow

import (
	"time"

	"github.com/mautops/pickup-gin/internal/model"
)

// timestampSetters 状态到时间戳字段的查找表
// 新增状态只需在此处加一行
var timestampSetters = map[string]func(*model.TaskModel, time.Time){
	StatusAssigned:   func(t *model.TaskModel, now time.Time) { t.AssignedAt = &now },
	StatusAccepted:   func(t *model.TaskModel, now time.Time) { t.AcceptedAt = &now },
	StatusPickedUp:   func(t *model.TaskModel, now time.Time) { t.PickedUpAt = &now },
	StatusInTransit:  func(t *model.TaskModel, now time.Time) { t.InTransitAt = &now },
	StatusDelivered:  func(t *model.TaskModel, now time.Time) { t.DeliveredAt = &now },
	StatusCompleted:  func(t *model.TaskModel, now time.Time) { t.CompletedAt = &now },
	StatusDroppedOff: func(t *model.TaskModel, now time.Time) { t.DroppedOffAt = &now },
	StatusTakenOver:  func(t *model.TaskModel, now time.Time) { t.TakenOverAt = &now },
	StatusWeighed:    func(t *model.TaskModel, now time.Time) { t.WeighedAt = &now },
	StatusDisposed:   func(t *model.TaskModel, now time.Time) { t.DisposedAt = &now },
	StatusCancelled:  func(t *model.TaskModel, now time.Time) { t.CancelledAt = &now },
}

// ApplyTimestamp 根据目标状态写入对应时间戳
// 已有时间戳不会被二次覆盖(幂等重试不改变首次时间)
func ApplyTimestamp(task *model.TaskModel, status string, now time.Time) {
	setter, ok := timestampSetters[NormalizeStatus(status)]
	if !ok {
		return
	}
	if TimestampFor(task, status) == nil {
		setter(task, now)
	}
}

// TimestampFor 读取状态对应的时间戳
var timestampGetters = map[string]func(*model.TaskModel) *time.Time{
	StatusAssigned:   func(t *model.TaskModel) *time.Time { return t.AssignedAt },
	StatusAccepted:   func(t *model.TaskModel) *time.Time { return t.AcceptedAt },
	StatusPickedUp:   func(t *model.TaskModel) *time.Time { return t.PickedUpAt },
	StatusInTransit:  func(t *model.TaskModel) *time.Time { return t.InTransitAt },
	StatusDelivered:  func(t *model.TaskModel) *time.Time { return t.DeliveredAt },
	StatusCompleted:  func(t *model.TaskModel) *time.Time { return t.CompletedAt },
	StatusDroppedOff: func(t *model.TaskModel) *time.Time { return t.DroppedOffAt },
	StatusTakenOver:  func(t *model.TaskModel) *time.Time { return t.TakenOverAt },
	StatusWeighed:    func(t *model.TaskModel) *time.Time { return t.WeighedAt },
	StatusDisposed:   func(t *model.TaskModel) *time.Time { return t.DisposedAt },
	StatusCancelled:  func(t *model.TaskModel) *time.Time { return t.CancelledAt },
}

// TimestampFor 返回任务在指定状态的时间戳,未到达返回 nil
func TimestampFor(task *model.TaskModel, status string) *time.Time {
	getter, ok := timestampGetters[NormalizeStatus(status)]
	if !ok {
		return nil
	}
	return getter(task)
}
