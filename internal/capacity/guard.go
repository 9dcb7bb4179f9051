package capacity

import (
	"fmt"

	"github.com/mautops/pickup-gin/internal/model"
)

// MaterialMismatchError 物料类型不匹配
// 携带双方物料值,供客户端提示替代目标容器
type MaterialMismatchError struct {
	SourceMaterial      string `json:"source_material"`
	DestinationMaterial string `json:"destination_material"`
}

func (e *MaterialMismatchError) Error() string {
	return fmt.Sprintf("material mismatch: source %q, destination %q", e.SourceMaterial, e.DestinationMaterial)
}

// CapacityExceededError 目标容器剩余容量不足
// 携带请求量与剩余量,供客户端自行修正
type CapacityExceededError struct {
	Requested         float64 `json:"requested"`
	RemainingCapacity float64 `json:"remaining_capacity"`
	Unit              string  `json:"unit"`
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded: requested %.2f %s, remaining %.2f %s",
		e.Requested, e.Unit, e.RemainingCapacity, e.Unit)
}

// CheckTransfer 校验向目标容器转移指定物料与数量是否可行
// 纯检查,无副作用;转移操作需调用两次:接受时的预检和提交前的终检
func CheckTransfer(destination *model.ContainerModel, materialType string, amount float64) error {
	if destination.MaterialType != materialType {
		return &MaterialMismatchError{
			SourceMaterial:      materialType,
			DestinationMaterial: destination.MaterialType,
		}
	}
	if remaining := destination.RemainingCapacity(); amount > remaining {
		return &CapacityExceededError{
			Requested:         amount,
			RemainingCapacity: remaining,
			Unit:              destination.Unit,
		}
	}
	return nil
}
