package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/pickup-gin/internal/auth"
	"github.com/mautops/pickup-gin/internal/service"
)

// SchedulerController 日常任务调度控制器
type SchedulerController struct {
	scheduler *service.DailyScheduler
}

// NewSchedulerController 创建调度控制器
func NewSchedulerController(scheduler *service.DailyScheduler) *SchedulerController {
	return &SchedulerController{
		scheduler: scheduler,
	}
}

// RunDaily 手动触发日常任务生成
// @Summary      触发日常任务生成
// @Description  管理员手动触发一轮日常满载任务生成,已存在的当日任务会被跳过
// @Tags         调度管理
// @Accept       json
// @Produce      json
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /scheduler/daily-run [post]
// @Security     BearerAuth
func (c *SchedulerController) RunDaily(ctx *gin.Context) {
	actor := auth.IdentityFromContext(ctx)
	if !actor.IsAdmin() {
		Error(ctx, http.StatusForbidden, "forbidden", "daily generation requires admin role")
		return
	}

	report, err := c.scheduler.Run(ctx.Request.Context())
	if err != nil {
		HandleServiceError(ctx, err, "run daily generation")
		return
	}

	Success(ctx, report)
}
