package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/pickup-gin/internal/auth"
	"github.com/mautops/pickup-gin/internal/capacity"
	"github.com/mautops/pickup-gin/internal/metrics"
	"github.com/mautops/pickup-gin/internal/model"
	"github.com/mautops/pickup-gin/internal/repository"
	"github.com/mautops/pickup-gin/internal/workflow"
	"gorm.io/gorm"
)

// TaskService 任务生命周期服务接口
// 所有操作面向不可靠网络重试设计:对已达成效果的重复调用
// 返回当前任务状态和 already_done 标记,而不是报错
type TaskService interface {
	Create(ctx context.Context, actor auth.Identity, req *CreateTaskRequest) (*model.TaskModel, error)
	Get(id string) (*model.TaskModel, error)
	List(filter *repository.TaskFilter) ([]*model.TaskModel, error)
	Claim(ctx context.Context, actor auth.Identity, id string) (*TaskResult, error)
	Accept(ctx context.Context, actor auth.Identity, id string) (*TaskResult, error)
	Pickup(ctx context.Context, actor auth.Identity, id string) (*TaskResult, error)
	Transit(ctx context.Context, actor auth.Identity, id string) (*TaskResult, error)
	Deliver(ctx context.Context, actor auth.Identity, id string, req *DeliverRequest) (*TaskResult, error)
	Cancel(ctx context.Context, actor auth.Identity, id string, reason string) (*TaskResult, error)
	Handover(ctx context.Context, actor auth.Identity, id string, toUserID string) (*TaskResult, error)
	Assign(ctx context.Context, actor auth.Identity, id string, toUserID string) (*TaskResult, error)
	SetStatus(ctx context.Context, actor auth.Identity, id string, req *SetStatusRequest) (*TaskResult, error)
}

// CreateTaskRequest 创建任务请求
// @Description 创建取送任务的请求参数
type CreateTaskRequest struct {
	Workflow               string   `json:"workflow" example:"legacy"` // 流程家族,默认 legacy
	SourceContainerID      string   `json:"source_container_id" example:"cont-001" binding:"required"`
	DestinationContainerID *string  `json:"destination_container_id" example:"cont-100"`
	MaterialType           string   `json:"material_type" example:"aluminium" binding:"required"`
	Unit                   string   `json:"unit" example:"kg"`
	PlannedQuantity        *float64 `json:"planned_quantity" example:"250"`
	EstimatedAmount        *float64 `json:"estimated_amount" example:"200"`
	BoxID                  *string  `json:"box_id" example:"box-007"` // 运输容器
}

// DeliverRequest 交付请求
// @Description 交付任务的请求参数
type DeliverRequest struct {
	MeasuredWeight         *float64 `json:"measured_weight" example:"240.5"` // 实测重量
	DestinationContainerID *string  `json:"destination_container_id" example:"cont-100"`
}

// SetStatusRequest 汽车件流程通用状态设置请求
// @Description 状态设置的请求参数
type SetStatusRequest struct {
	Status                 string   `json:"status" example:"WEIGHED" binding:"required"`
	Weight                 *float64 `json:"weight" example:"42.7"` // WEIGHED 必填
	DestinationContainerID *string  `json:"destination_container_id" example:"cont-100"`
	Reason                 string   `json:"reason" example:"damaged part"`
}

// TaskResult 操作结果
// @Description 任务操作的统一响应,already_done 表示效果此前已达成
type TaskResult struct {
	Task                 *model.TaskModel      `json:"task"`
	AlreadyDone          bool                  `json:"already_done"`
	SourceContainer      *model.ContainerModel `json:"source_container,omitempty"`
	DestinationContainer *model.ContainerModel `json:"destination_container,omitempty"`
}

// taskService 任务生命周期服务实现
type taskService struct {
	db          *gorm.DB
	tasks       repository.TaskRepository
	containers  repository.ContainerRepository
	boxes       repository.BoxRepository
	fills       repository.FillHistoryRepository
	activityLog ActivityLogService
}

// NewTaskService 创建任务生命周期服务
func NewTaskService(db *gorm.DB, activityLog ActivityLogService) TaskService {
	return &taskService{
		db:          db,
		tasks:       repository.NewTaskRepository(db),
		containers:  repository.NewContainerRepository(db),
		boxes:       repository.NewBoxRepository(db),
		fills:       repository.NewFillHistoryRepository(db),
		activityLog: activityLog,
	}
}

// Create 创建任务
// 归属字段在创建时始终为空:这是一个拉取系统,任务由工人认领
func (s *taskService) Create(ctx context.Context, actor auth.Identity, req *CreateTaskRequest) (*model.TaskModel, error) {
	wf := req.Workflow
	if wf == "" {
		wf = model.WorkflowLegacy
	}
	if wf != model.WorkflowLegacy && wf != model.WorkflowAutomotive {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown workflow %q", wf)}
	}

	source, err := s.containers.FindByID(req.SourceContainerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContainerNotFound
		}
		return nil, fmt.Errorf("failed to load source container: %w", err)
	}
	if source.MaterialType != req.MaterialType {
		return nil, &capacity.MaterialMismatchError{
			SourceMaterial:      req.MaterialType,
			DestinationMaterial: source.MaterialType,
		}
	}

	if req.DestinationContainerID != nil {
		if _, err := s.containers.FindByID(*req.DestinationContainerID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrContainerNotFound
			}
			return nil, fmt.Errorf("failed to load destination container: %w", err)
		}
	}

	unit := req.Unit
	if unit == "" {
		unit = source.Unit
	}

	now := time.Now()
	task := &model.TaskModel{
		ID:                     uuid.New().String(),
		Workflow:               wf,
		Type:                   model.TaskTypeManual,
		State:                  workflow.InitialStatus(wf),
		MaterialType:           req.MaterialType,
		Unit:                   unit,
		PlannedQuantity:        req.PlannedQuantity,
		EstimatedAmount:        req.EstimatedAmount,
		SourceContainerID:      req.SourceContainerID,
		DestinationContainerID: req.DestinationContainerID,
		BoxID:                  req.BoxID,
		CreatedBy:              actor.UserID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := task.Validate(); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if err := s.tasks.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if req.BoxID != nil {
		if err := s.boxes.Assign(*req.BoxID, task.ID, now); err != nil {
			return nil, fmt.Errorf("failed to assign box: %w", err)
		}
	}

	metrics.RecordTaskCreated(wf)
	s.audit(ctx, actor, "create", &task.ID, &task.SourceContainerID, map[string]interface{}{
		"workflow": wf, "material_type": req.MaterialType,
	})

	return task, nil
}

// Get 获取任务详情
func (s *taskService) Get(id string) (*model.TaskModel, error) {
	task, err := s.tasks.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

// List 按过滤器查询任务
func (s *taskService) List(filter *repository.TaskFilter) ([]*model.TaskModel, error) {
	return s.tasks.FindByFilter(filter)
}

// Claim 认领任务
// 传统流程直接进入 ACCEPTED;汽车件流程仅打上归属,状态留在 OPEN
func (s *taskService) Claim(ctx context.Context, actor auth.Identity, id string) (*TaskResult, error) {
	task, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	// 幂等重试:同一调用者此前已认领成功
	if task.OwnedBy(actor.UserID) {
		return s.enrich(task, true), nil
	}
	if task.IsOwned() {
		return nil, &ClaimConflictError{TaskID: id, ClaimedBy: *task.ClaimedByUserID}
	}
	if workflow.IsTerminal(task.State) {
		return nil, &TransitionConflictError{
			Workflow:        task.Workflow,
			CurrentStatus:   task.State,
			RequestedStatus: workflow.StatusAccepted,
		}
	}

	now := time.Now()
	updates := map[string]interface{}{
		"claimed_by_user_id": actor.UserID,
		"claimed_at":         now,
		"updated_at":         now,
	}
	openStates := []string{workflow.StatusOpen}
	if task.Workflow == model.WorkflowLegacy {
		openStates = []string{workflow.StatusPlanned}
		updates["state"] = workflow.StatusAccepted
		updates["accepted_at"] = now
	}

	won, err := s.tasks.ClaimIfUnowned(id, openStates, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	if !won {
		// 读取与写入之间被他人抢先
		task, err = s.Get(id)
		if err != nil {
			return nil, err
		}
		if task.OwnedBy(actor.UserID) {
			return s.enrich(task, true), nil
		}
		if task.IsOwned() {
			return nil, &ClaimConflictError{TaskID: id, ClaimedBy: *task.ClaimedByUserID}
		}
		return nil, &TransitionConflictError{
			Workflow:        task.Workflow,
			CurrentStatus:   task.State,
			RequestedStatus: workflow.StatusAccepted,
		}
	}

	task, err = s.Get(id)
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(task.Workflow, task.State)
	s.audit(ctx, actor, "claim", &task.ID, nil, map[string]interface{}{"state": task.State})
	return s.enrich(task, false), nil
}

// Accept 接受任务(仅传统流程)
// 未归属任务由接受者自动认领;已接受或更靠后的状态返回 already_done
func (s *taskService) Accept(ctx context.Context, actor auth.Identity, id string) (*TaskResult, error) {
	task, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if task.Workflow != model.WorkflowLegacy {
		return nil, &ValidationError{Reason: "accept applies to the legacy workflow only"}
	}

	acceptedRank := workflow.StatusRank(task.Workflow, workflow.StatusAccepted)
	if rank := workflow.StatusRank(task.Workflow, task.State); rank >= acceptedRank {
		if !actor.IsAdmin() && !task.OwnedBy(actor.UserID) {
			claimedBy := ""
			if task.ClaimedByUserID != nil {
				claimedBy = *task.ClaimedByUserID
			}
			return nil, &ClaimConflictError{TaskID: id, ClaimedBy: claimedBy}
		}
		return s.enrich(task, true), nil
	}
	if task.State == workflow.StatusCancelled {
		return nil, &TransitionConflictError{
			Workflow:        task.Workflow,
			CurrentStatus:   task.State,
			RequestedStatus: workflow.StatusAccepted,
		}
	}

	// 授权:管理员,已分配的归属人,或自动认领未归属任务
	if task.IsOwned() && !task.OwnedBy(actor.UserID) && !actor.IsAdmin() {
		return nil, &ForbiddenError{Reason: "task is assigned to another worker"}
	}

	// 预检:物料匹配与计划量不超过剩余容量,失败时携带数值上下文
	if task.DestinationContainerID != nil {
		destination, err := s.containers.FindByID(*task.DestinationContainerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrContainerNotFound
			}
			return nil, fmt.Errorf("failed to load destination container: %w", err)
		}
		if amount := resolveTransferAmount(nil, task.PlannedQuantity, task.EstimatedAmount); amount > 0 {
			if err := capacity.CheckTransfer(destination, task.MaterialType, amount); err != nil {
				return nil, err
			}
		}
	}

	now := time.Now()
	updates := map[string]interface{}{
		"state":       workflow.StatusAccepted,
		"accepted_at": now,
		"updated_at":  now,
	}
	if !task.IsOwned() {
		updates["claimed_by_user_id"] = actor.UserID
		updates["claimed_at"] = now
	}

	ok, err := s.tasks.UpdateStateIf(id, task.State, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to accept task: %w", err)
	}
	if !ok {
		// 状态在读取后被并发修改,按当前权威状态重新评估
		return s.Accept(ctx, actor, id)
	}

	task, err = s.Get(id)
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(task.Workflow, task.State)
	s.audit(ctx, actor, "accept", &task.ID, nil, map[string]interface{}{"state": task.State})
	return s.enrich(task, false), nil
}

// Pickup 取货(仅传统流程),要求先处于 ACCEPTED
func (s *taskService) Pickup(ctx context.Context, actor auth.Identity, id string) (*TaskResult, error) {
	return s.advanceLegacy(ctx, actor, id, "pickup", workflow.StatusAccepted, workflow.StatusPickedUp)
}

// Transit 开始运输(仅传统流程),要求先处于 PICKED_UP
func (s *taskService) Transit(ctx context.Context, actor auth.Identity, id string) (*TaskResult, error) {
	return s.advanceLegacy(ctx, actor, id, "transit", workflow.StatusPickedUp, workflow.StatusInTransit)
}

// advanceLegacy 传统流程单步前进的公共实现
func (s *taskService) advanceLegacy(ctx context.Context, actor auth.Identity, id, action, requiredState, toState string) (*TaskResult, error) {
	task, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if task.Workflow != model.WorkflowLegacy {
		return nil, &ValidationError{Reason: action + " applies to the legacy workflow only"}
	}
	if !actor.IsAdmin() && !task.OwnedBy(actor.UserID) {
		return nil, &ForbiddenError{Reason: "caller is neither admin nor task owner"}
	}

	// 已到达或越过目标状态:幂等响应,不二次改写时间戳
	if rank := workflow.StatusRank(task.Workflow, task.State); rank >= workflow.StatusRank(task.Workflow, toState) {
		return s.enrich(task, true), nil
	}
	if task.State != requiredState {
		return nil, &TransitionConflictError{
			Workflow:        task.Workflow,
			CurrentStatus:   task.State,
			RequestedStatus: toState,
		}
	}

	now := time.Now()
	updated := &model.TaskModel{}
	*updated = *task
	workflow.ApplyTimestamp(updated, toState, now)
	updates := map[string]interface{}{
		"state":      toState,
		"updated_at": now,
	}
	if ts := workflow.TimestampFor(updated, toState); ts != nil {
		updates[timestampColumn(toState)] = *ts
	}

	ok, err := s.tasks.UpdateStateIf(id, requiredState, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to %s task: %w", action, err)
	}
	if !ok {
		return s.advanceLegacy(ctx, actor, id, action, requiredState, toState)
	}

	task, err = s.Get(id)
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(task.Workflow, task.State)
	s.audit(ctx, actor, action, &task.ID, nil, map[string]interface{}{"state": task.State})
	return s.enrich(task, false), nil
}

// Deliver 交付任务(仅传统流程)
// 在一个事务内完成:任务进入终态、追加填充历史、更新目标容器存量、
// 清空来源容器并打上清空时间、写入操作日志。容量在提交前重新校验
func (s *taskService) Deliver(ctx context.Context, actor auth.Identity, id string, req *DeliverRequest) (*TaskResult, error) {
	task, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if task.Workflow != model.WorkflowLegacy {
		return nil, &ValidationError{Reason: "deliver applies to the legacy workflow only"}
	}
	if !actor.IsAdmin() && !task.OwnedBy(actor.UserID) {
		return nil, &ForbiddenError{Reason: "caller is neither admin nor task owner"}
	}
	if task.State == workflow.StatusCompleted {
		return s.enrich(task, true), nil
	}
	if task.State != workflow.StatusInTransit {
		return nil, &TransitionConflictError{
			Workflow:        task.Workflow,
			CurrentStatus:   task.State,
			RequestedStatus: workflow.StatusDelivered,
		}
	}

	destinationID := task.DestinationContainerID
	if req.DestinationContainerID != nil {
		destinationID = req.DestinationContainerID
	}
	if destinationID == nil {
		return nil, &ValidationError{Reason: "destination container is required for delivery"}
	}

	measured := req.MeasuredWeight
	if measured == nil {
		measured = task.MeasuredWeight
	}
	amount := resolveTransferAmount(measured, task.PlannedQuantity, task.EstimatedAmount)
	if amount <= 0 {
		return nil, &ValidationError{Reason: "transfer amount must be positive"}
	}

	now := time.Now()
	updates := map[string]interface{}{
		"state":                    workflow.StatusCompleted,
		"delivered_at":             now,
		"completed_at":             now,
		"updated_at":               now,
		"destination_container_id": *destinationID,
	}
	if measured != nil {
		updates["measured_weight"] = *measured
	}

	result, err := s.commitTransfer(ctx, actor, task, *destinationID, amount, task.State, updates, "deliver")
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(task.Workflow, workflow.StatusCompleted)
	return result, nil
}

// Cancel 取消任务,可从任意非终态发起
func (s *taskService) Cancel(ctx context.Context, actor auth.Identity, id string, reason string) (*TaskResult, error) {
	task, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if task.State == workflow.StatusCancelled {
		return s.enrich(task, true), nil
	}
	if workflow.IsTerminal(task.State) {
		return nil, &TransitionConflictError{
			Workflow:        task.Workflow,
			CurrentStatus:   task.State,
			RequestedStatus: workflow.StatusCancelled,
		}
	}
	if !actor.IsAdmin() && !task.OwnedBy(actor.UserID) && task.CreatedBy != actor.UserID {
		return nil, &ForbiddenError{Reason: "caller is neither admin, owner nor creator"}
	}

	now := time.Now()
	ok, err := s.tasks.UpdateStateIf(id, task.State, map[string]interface{}{
		"state":               workflow.StatusCancelled,
		"cancelled_at":        now,
		"cancellation_reason": reason,
		"updated_at":          now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel task: %w", err)
	}
	if !ok {
		return s.Cancel(ctx, actor, id, reason)
	}

	if _, err := s.boxes.ReleaseByTask(id, now); err != nil {
		return nil, fmt.Errorf("failed to release box: %w", err)
	}

	task, err = s.Get(id)
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(task.Workflow, task.State)
	s.audit(ctx, actor, "cancel", &task.ID, nil, map[string]interface{}{"reason": reason})
	return s.enrich(task, false), nil
}

// Handover 移交任务归属
// 终态禁止移交;记录移交时间与新旧归属双方
func (s *taskService) Handover(ctx context.Context, actor auth.Identity, id string, toUserID string) (*TaskResult, error) {
	if toUserID == "" {
		return nil, &ValidationError{Reason: "handover target user is required"}
	}

	task, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if workflow.IsTerminal(task.State) {
		return nil, &TransitionConflictError{
			Workflow:        task.Workflow,
			CurrentStatus:   task.State,
			RequestedStatus: task.State,
		}
	}
	if task.OwnedBy(toUserID) {
		return s.enrich(task, true), nil
	}
	if !task.IsOwned() {
		return nil, &ValidationError{Reason: "task has no owner to hand over from"}
	}
	if !actor.IsAdmin() && !task.OwnedBy(actor.UserID) {
		return nil, &ForbiddenError{Reason: "caller is neither admin nor task owner"}
	}

	fromUserID := *task.ClaimedByUserID
	now := time.Now()
	res := s.db.Model(&model.TaskModel{}).
		Where("id = ? AND claimed_by_user_id = ?", id, fromUserID).
		Updates(map[string]interface{}{
			"claimed_by_user_id": toUserID,
			"handover_at":        now,
			"updated_at":         now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to hand over task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.Handover(ctx, actor, id, toUserID)
	}

	task, err = s.Get(id)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "handover", &task.ID, nil, map[string]interface{}{
		"from_user": fromUserID, "to_user": toUserID,
	})
	return s.enrich(task, false), nil
}

// Assign 管理员显式指派(传统流程 PLANNED -> ASSIGNED)
func (s *taskService) Assign(ctx context.Context, actor auth.Identity, id string, toUserID string) (*TaskResult, error) {
	if !actor.IsAdmin() {
		return nil, &ForbiddenError{Reason: "assign requires admin role"}
	}
	if toUserID == "" {
		return nil, &ValidationError{Reason: "assign target user is required"}
	}

	task, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if task.Workflow != model.WorkflowLegacy {
		return nil, &ValidationError{Reason: "assign applies to the legacy workflow only"}
	}
	if task.OwnedBy(toUserID) {
		return s.enrich(task, true), nil
	}
	if task.IsOwned() {
		return nil, &ClaimConflictError{TaskID: id, ClaimedBy: *task.ClaimedByUserID}
	}

	now := time.Now()
	won, err := s.tasks.ClaimIfUnowned(id, []string{workflow.StatusPlanned}, map[string]interface{}{
		"state":              workflow.StatusAssigned,
		"claimed_by_user_id": toUserID,
		"assigned_at":        now,
		"updated_at":         now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assign task: %w", err)
	}
	if !won {
		return s.Assign(ctx, actor, id, toUserID)
	}

	task, err = s.Get(id)
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(task.Workflow, task.State)
	s.audit(ctx, actor, "assign", &task.ID, nil, map[string]interface{}{"to_user": toUserID})
	return s.enrich(task, false), nil
}

// SetStatus 汽车件流程的通用状态入口
// 时间戳由状态查找表自动写入;进入 WEIGHED 时执行称重转移提交,
// 进入 DISPOSED/CANCELLED 终态时释放运输容器
func (s *taskService) SetStatus(ctx context.Context, actor auth.Identity, id string, req *SetStatusRequest) (*TaskResult, error) {
	task, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if task.Workflow != model.WorkflowAutomotive {
		return nil, &ValidationError{Reason: "status-set applies to the automotive workflow only"}
	}

	requested := workflow.NormalizeStatus(req.Status)
	if !workflow.KnownStatus(task.Workflow, requested) {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown status %q", req.Status)}
	}
	if !actor.IsAdmin() && task.IsOwned() && !task.OwnedBy(actor.UserID) {
		return nil, &ForbiddenError{Reason: "task is claimed by another worker"}
	}

	// 幂等:已在请求状态或更靠后
	if requested == task.State {
		return s.enrich(task, true), nil
	}
	if reqRank := workflow.StatusRank(task.Workflow, requested); reqRank >= 0 {
		if rank := workflow.StatusRank(task.Workflow, task.State); rank >= reqRank {
			return s.enrich(task, true), nil
		}
	}

	if !workflow.CanTransition(task.Workflow, task.State, requested) {
		return nil, &TransitionConflictError{
			Workflow:        task.Workflow,
			CurrentStatus:   task.State,
			RequestedStatus: requested,
		}
	}

	now := time.Now()

	if requested == workflow.StatusWeighed {
		// 称重要求同一操作携带实测重量,并在提交前通过容量守卫
		if req.Weight == nil {
			return nil, &ValidationError{Reason: "weight is required for the WEIGHED status"}
		}
		destinationID := task.DestinationContainerID
		if req.DestinationContainerID != nil {
			destinationID = req.DestinationContainerID
		}
		if destinationID == nil {
			return nil, &ValidationError{Reason: "destination container is required for weighing"}
		}
		updates := map[string]interface{}{
			"state":                    workflow.StatusWeighed,
			"weighed_at":               now,
			"measured_weight":          *req.Weight,
			"updated_at":               now,
			"destination_container_id": *destinationID,
		}
		result, err := s.commitTransfer(ctx, actor, task, *destinationID, *req.Weight, task.State, updates, "status_set")
		if err != nil {
			return nil, err
		}
		metrics.RecordTransition(task.Workflow, requested)
		return result, nil
	}

	updated := &model.TaskModel{}
	*updated = *task
	workflow.ApplyTimestamp(updated, requested, now)
	updates := map[string]interface{}{
		"state":      requested,
		"updated_at": now,
	}
	if ts := workflow.TimestampFor(updated, requested); ts != nil {
		updates[timestampColumn(requested)] = *ts
	}
	if requested == workflow.StatusCancelled && req.Reason != "" {
		updates["cancellation_reason"] = req.Reason
	}

	ok, err := s.tasks.UpdateStateIf(id, task.State, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to set status: %w", err)
	}
	if !ok {
		return s.SetStatus(ctx, actor, id, req)
	}

	// 进入处置或取消终态时释放运输容器
	if requested == workflow.StatusDisposed || requested == workflow.StatusCancelled {
		if _, err := s.boxes.ReleaseByTask(id, now); err != nil {
			return nil, fmt.Errorf("failed to release box: %w", err)
		}
	}

	task, err = s.Get(id)
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(task.Workflow, requested)
	s.audit(ctx, actor, "status_set", &task.ID, nil, map[string]interface{}{
		"status": requested, "reason": req.Reason,
	})
	return s.enrich(task, false), nil
}

// commitTransfer 转移提交:权威容量检查与全部写入在一个事务内完成
// 任何后置校验失败都会整体回滚,不留下部分效果
func (s *taskService) commitTransfer(
	ctx context.Context,
	actor auth.Identity,
	task *model.TaskModel,
	destinationID string,
	amount float64,
	fromState string,
	taskUpdates map[string]interface{},
	action string,
) (*TaskResult, error) {
	now := time.Now()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		containers := repository.NewContainerRepository(tx)
		tasks := repository.NewTaskRepository(tx)
		fills := repository.NewFillHistoryRepository(tx)
		logs := repository.NewActivityLogRepository(tx)

		destination, err := containers.FindByID(destinationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrContainerNotFound
			}
			return fmt.Errorf("failed to load destination container: %w", err)
		}
		source, err := containers.FindByID(task.SourceContainerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrContainerNotFound
			}
			return fmt.Errorf("failed to load source container: %w", err)
		}

		// 权威检查:条件更新针对提交时刻的存量,关闭读取后的竞争窗口
		ok, err := containers.AddAmountIfFits(destinationID, task.MaterialType, amount, now)
		if err != nil {
			return fmt.Errorf("failed to update destination container: %w", err)
		}
		if !ok {
			fresh, err := containers.FindByID(destinationID)
			if err != nil {
				return fmt.Errorf("failed to reload destination container: %w", err)
			}
			if checkErr := capacity.CheckTransfer(fresh, task.MaterialType, amount); checkErr != nil {
				return checkErr
			}
			return fmt.Errorf("destination container %s rejected transfer", destinationID)
		}

		// 目标容器账本行
		if err := fills.Create(&model.FillHistoryModel{
			ID:          uuid.New().String(),
			ContainerID: destinationID,
			AmountAdded: amount,
			Unit:        destination.Unit,
			TaskID:      &task.ID,
			RecordedBy:  actor.UserID,
			CreatedAt:   now,
		}); err != nil {
			return fmt.Errorf("failed to append fill history: %w", err)
		}

		// 来源容器清空:负账本行保持累加和不变量
		if source.CurrentAmount > 0 {
			if err := fills.Create(&model.FillHistoryModel{
				ID:          uuid.New().String(),
				ContainerID: source.ID,
				AmountAdded: -source.CurrentAmount,
				Unit:        source.Unit,
				TaskID:      &task.ID,
				RecordedBy:  actor.UserID,
				CreatedAt:   now,
			}); err != nil {
				return fmt.Errorf("failed to append source fill history: %w", err)
			}
		}
		emptied, err := containers.EmptyIf(source.ID, source.CurrentAmount, now)
		if err != nil {
			return fmt.Errorf("failed to empty source container: %w", err)
		}
		if !emptied {
			return fmt.Errorf("source container %s modified concurrently", source.ID)
		}

		// 任务状态 CAS:读取后发生的并发转换导致整体回滚
		ok, err = tasks.UpdateStateIf(task.ID, fromState, taskUpdates)
		if err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		if !ok {
			return &TransitionConflictError{
				Workflow:        task.Workflow,
				CurrentStatus:   fromState,
				RequestedStatus: fmt.Sprintf("%v", taskUpdates["state"]),
			}
		}

		return logs.Create(&model.ActivityLogModel{
			ID:          uuid.New().String(),
			UserID:      actor.UserID,
			Action:      action,
			TaskID:      &task.ID,
			ContainerID: &destinationID,
			RequestID:   requestIDFromContext(ctx),
			Details:     mustJSON(map[string]interface{}{"amount": amount, "unit": destination.Unit}),
			CreatedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	fresh, err := s.Get(task.ID)
	if err != nil {
		return nil, err
	}
	return s.enrich(fresh, false), nil
}

// enrich 附带来源/目标容器快照的响应
func (s *taskService) enrich(task *model.TaskModel, alreadyDone bool) *TaskResult {
	result := &TaskResult{Task: task, AlreadyDone: alreadyDone}
	if source, err := s.containers.FindByID(task.SourceContainerID); err == nil {
		result.SourceContainer = source
	}
	if task.DestinationContainerID != nil {
		if destination, err := s.containers.FindByID(*task.DestinationContainerID); err == nil {
			result.DestinationContainer = destination
		}
	}
	return result
}

// audit 操作日志写入失败不阻断业务结果
func (s *taskService) audit(ctx context.Context, actor auth.Identity, action string, taskID *string, containerID *string, details interface{}) {
	if s.activityLog != nil {
		_ = s.activityLog.RecordAction(ctx, actor.UserID, action, taskID, containerID, details)
	}
}

// resolveTransferAmount 转移量取值优先级:实测 > 计划 > 估算
func resolveTransferAmount(measured, planned, estimated *float64) float64 {
	if measured != nil && *measured > 0 {
		return *measured
	}
	if planned != nil && *planned > 0 {
		return *planned
	}
	if estimated != nil && *estimated > 0 {
		return *estimated
	}
	return 0
}

// timestampColumn 状态对应的时间戳列名
var timestampColumns = map[string]string{
	workflow.StatusAssigned:   "assigned_at",
	workflow.StatusAccepted:   "accepted_at",
	workflow.StatusPickedUp:   "picked_up_at",
	workflow.StatusInTransit:  "in_transit_at",
	workflow.StatusDelivered:  "delivered_at",
	workflow.StatusCompleted:  "completed_at",
	workflow.StatusDroppedOff: "dropped_off_at",
	workflow.StatusTakenOver:  "taken_over_at",
	workflow.StatusWeighed:    "weighed_at",
	workflow.StatusDisposed:   "disposed_at",
	workflow.StatusCancelled:  "cancelled_at",
}

func timestampColumn(status string) string {
	return timestampColumns[status]
}
