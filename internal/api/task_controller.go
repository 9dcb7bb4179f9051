package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/pickup-gin/internal/auth"
	"github.com/mautops/pickup-gin/internal/repository"
	"github.com/mautops/pickup-gin/internal/service"
)

// TaskController 任务控制器
type TaskController struct {
	taskService service.TaskService
}

// NewTaskController 创建任务控制器
func NewTaskController(taskService service.TaskService) *TaskController {
	return &TaskController{
		taskService: taskService,
	}
}

// CancelRequest 取消请求
type CancelRequest struct {
	Reason string `json:"reason" example:"customer withdrew order"`
}

// HandoverRequest 移交请求
type HandoverRequest struct {
	ToUserID string `json:"to_user_id" example:"user-42" binding:"required"`
}

// AssignRequest 指派请求
type AssignRequest struct {
	ToUserID string `json:"to_user_id" example:"user-42" binding:"required"`
}

// Create 创建任务
// @Summary      创建取送任务
// @Description  创建新的取送任务,legacy 流程初始为 PLANNED,automotive 流程初始为 OPEN
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        request body service.CreateTaskRequest true "任务信息"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /tasks [post]
// @Security     BearerAuth
func (c *TaskController) Create(ctx *gin.Context) {
	var req service.CreateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	actor := auth.IdentityFromContext(ctx)
	task, err := c.taskService.Create(ctx.Request.Context(), actor, &req)
	if err != nil {
		HandleServiceError(ctx, err, "create task")
		return
	}

	Success(ctx, task)
}

// Get 获取任务
// @Summary      获取任务详情
// @Description  根据 ID 获取任务详情
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /tasks/{id} [get]
// @Security     BearerAuth
func (c *TaskController) Get(ctx *gin.Context) {
	task, err := c.taskService.Get(ctx.Param("id"))
	if err != nil {
		HandleServiceError(ctx, err, "get task")
		return
	}

	Success(ctx, task)
}

// List 列表查询任务
// @Summary      查询任务列表
// @Description  按状态、流程家族、类型、认领人、站点过滤任务
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        state query string false "状态过滤"
// @Param        workflow query string false "流程家族过滤"
// @Param        type query string false "任务类型过滤"
// @Param        claimed_by query string false "认领人过滤"
// @Param        stand_id query string false "站点过滤"
// @Success      200  {object}  Response
// @Failure      500  {object}  ErrorResponse
// @Router       /tasks [get]
// @Security     BearerAuth
func (c *TaskController) List(ctx *gin.Context) {
	filter := &repository.TaskFilter{}
	if v := ctx.Query("state"); v != "" {
		filter.State = &v
	}
	if v := ctx.Query("workflow"); v != "" {
		filter.Workflow = &v
	}
	if v := ctx.Query("type"); v != "" {
		filter.Type = &v
	}
	if v := ctx.Query("claimed_by"); v != "" {
		filter.ClaimedBy = &v
	}
	if v := ctx.Query("stand_id"); v != "" {
		filter.StandID = &v
	}

	tasks, err := c.taskService.List(filter)
	if err != nil {
		HandleServiceError(ctx, err, "list tasks")
		return
	}

	Success(ctx, tasks)
}

// Claim 认领任务
// @Summary      认领任务
// @Description  司机认领开放任务,同一任务只有一个认领人能成功
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /tasks/{id}/claim [post]
// @Security     BearerAuth
func (c *TaskController) Claim(ctx *gin.Context) {
	actor := auth.IdentityFromContext(ctx)
	result, err := c.taskService.Claim(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		HandleServiceError(ctx, err, "claim task")
		return
	}

	Success(ctx, result)
}

// Accept 接受任务
// @Summary      接受任务
// @Description  认领人确认接受任务,ASSIGNED -> ACCEPTED
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /tasks/{id}/accept [post]
// @Security     BearerAuth
func (c *TaskController) Accept(ctx *gin.Context) {
	actor := auth.IdentityFromContext(ctx)
	result, err := c.taskService.Accept(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		HandleServiceError(ctx, err, "accept task")
		return
	}

	Success(ctx, result)
}

// Pickup 取件
// @Summary      确认取件
// @Description  认领人到达源容器确认取件,ACCEPTED -> PICKED_UP
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /tasks/{id}/pickup [post]
// @Security     BearerAuth
func (c *TaskController) Pickup(ctx *gin.Context) {
	actor := auth.IdentityFromContext(ctx)
	result, err := c.taskService.Pickup(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		HandleServiceError(ctx, err, "pickup task")
		return
	}

	Success(ctx, result)
}

// Transit 开始运输
// @Summary      开始运输
// @Description  认领人开始运输,PICKED_UP -> IN_TRANSIT
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /tasks/{id}/transit [post]
// @Security     BearerAuth
func (c *TaskController) Transit(ctx *gin.Context) {
	actor := auth.IdentityFromContext(ctx)
	result, err := c.taskService.Transit(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		HandleServiceError(ctx, err, "transit task")
		return
	}

	Success(ctx, result)
}

// Deliver 交付任务
// @Summary      交付任务
// @Description  交付到目标容器并提交转移,物料与容量校验通过后记账,IN_TRANSIT -> COMPLETED
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Param        request body service.DeliverRequest true "交付信息"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /tasks/{id}/deliver [post]
// @Security     BearerAuth
func (c *TaskController) Deliver(ctx *gin.Context) {
	var req service.DeliverRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	actor := auth.IdentityFromContext(ctx)
	result, err := c.taskService.Deliver(ctx.Request.Context(), actor, ctx.Param("id"), &req)
	if err != nil {
		HandleServiceError(ctx, err, "deliver task")
		return
	}

	Success(ctx, result)
}

// Cancel 取消任务
// @Summary      取消任务
// @Description  取消未完成的任务,终态任务不可取消
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Param        request body CancelRequest false "取消原因"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /tasks/{id}/cancel [post]
// @Security     BearerAuth
func (c *TaskController) Cancel(ctx *gin.Context) {
	var req CancelRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
			return
		}
	}

	actor := auth.IdentityFromContext(ctx)
	result, err := c.taskService.Cancel(ctx.Request.Context(), actor, ctx.Param("id"), req.Reason)
	if err != nil {
		HandleServiceError(ctx, err, "cancel task")
		return
	}

	Success(ctx, result)
}

// Handover 移交任务
// @Summary      移交任务
// @Description  当前认领人把任务移交给另一名司机
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Param        request body HandoverRequest true "接收人"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /tasks/{id}/handover [post]
// @Security     BearerAuth
func (c *TaskController) Handover(ctx *gin.Context) {
	var req HandoverRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	actor := auth.IdentityFromContext(ctx)
	result, err := c.taskService.Handover(ctx.Request.Context(), actor, ctx.Param("id"), req.ToUserID)
	if err != nil {
		HandleServiceError(ctx, err, "handover task")
		return
	}

	Success(ctx, result)
}

// Assign 指派任务
// @Summary      指派任务
// @Description  管理员把任务直接指派给指定司机
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Param        request body AssignRequest true "指派对象"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /tasks/{id}/assign [post]
// @Security     BearerAuth
func (c *TaskController) Assign(ctx *gin.Context) {
	var req AssignRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	actor := auth.IdentityFromContext(ctx)
	result, err := c.taskService.Assign(ctx.Request.Context(), actor, ctx.Param("id"), req.ToUserID)
	if err != nil {
		HandleServiceError(ctx, err, "assign task")
		return
	}

	Success(ctx, result)
}

// SetStatus 设置状态
// @Summary      推进汽车件任务状态
// @Description  按 automotive 流程推进状态,WEIGHED 需携带重量并触发转移记账
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        id path string true "任务 ID"
// @Param        request body service.SetStatusRequest true "目标状态"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      422  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /tasks/{id}/status [put]
// @Security     BearerAuth
func (c *TaskController) SetStatus(ctx *gin.Context) {
	var req service.SetStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	actor := auth.IdentityFromContext(ctx)
	result, err := c.taskService.SetStatus(ctx.Request.Context(), actor, ctx.Param("id"), &req)
	if err != nil {
		HandleServiceError(ctx, err, "set task status")
		return
	}

	Success(ctx, result)
}
