package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/pickup-gin/internal/auth"
	"github.com/mautops/pickup-gin/internal/service"
)

// ContainerController 容器控制器
type ContainerController struct {
	containerService service.ContainerService
}

// NewContainerController 创建容器控制器
func NewContainerController(containerService service.ContainerService) *ContainerController {
	return &ContainerController{
		containerService: containerService,
	}
}

// Get 获取容器
// @Summary      获取容器详情
// @Description  根据 ID 获取容器当前填充量与容量信息
// @Tags         容器管理
// @Accept       json
// @Produce      json
// @Param        id path string true "容器 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /containers/{id} [get]
// @Security     BearerAuth
func (c *ContainerController) Get(ctx *gin.Context) {
	container, err := c.containerService.Get(ctx.Param("id"))
	if err != nil {
		HandleServiceError(ctx, err, "get container")
		return
	}

	Success(ctx, container)
}

// History 获取容器填充历史
// @Summary      获取容器填充历史
// @Description  按时间倒序返回容器的全部填充账本行
// @Tags         容器管理
// @Accept       json
// @Produce      json
// @Param        id path string true "容器 ID"
// @Success      200  {object}  Response
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /containers/{id}/history [get]
// @Security     BearerAuth
func (c *ContainerController) History(ctx *gin.Context) {
	entries, err := c.containerService.History(ctx.Param("id"))
	if err != nil {
		HandleServiceError(ctx, err, "get container history")
		return
	}

	Success(ctx, entries)
}

// Reset 重置容器
// @Summary      清空容器
// @Description  管理员清空容器填充量,写入负账本行保持历史可追溯
// @Tags         容器管理
// @Accept       json
// @Produce      json
// @Param        id path string true "容器 ID"
// @Success      200  {object}  Response
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /containers/{id}/reset [post]
// @Security     BearerAuth
func (c *ContainerController) Reset(ctx *gin.Context) {
	actor := auth.IdentityFromContext(ctx)
	container, err := c.containerService.Reset(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		HandleServiceError(ctx, err, "reset container")
		return
	}

	Success(ctx, container)
}
