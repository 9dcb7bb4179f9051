package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/pickup-gin/internal/capacity"
	"github.com/mautops/pickup-gin/internal/service"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()

			var apiErr *APIError
			if errors.As(err, &apiErr) {
				Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			} else {
				Error(c, http.StatusInternalServerError, "internal server error", err.Error())
			}
		}
	}
}

// HandleServiceError 业务错误分类到 HTTP 状态码的统一映射
// 幂等回显不会走到这里;只有真正非法的操作返回错误,
// 且冲突与校验失败携带当前权威状态和数值上下文
func HandleServiceError(c *gin.Context, err error, operation string) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, service.ErrContainerNotFound),
		errors.Is(err, service.ErrStandNotFound),
		errors.Is(err, service.ErrBoxNotFound):
		Error(c, http.StatusNotFound, err.Error(), "")
		return
	}

	var forbidden *service.ForbiddenError
	if errors.As(err, &forbidden) {
		Error(c, http.StatusForbidden, "forbidden", forbidden.Reason)
		return
	}

	var claimConflict *service.ClaimConflictError
	if errors.As(err, &claimConflict) {
		ErrorWithData(c, http.StatusConflict, "task already claimed", err.Error(), claimConflict)
		return
	}

	var transitionConflict *service.TransitionConflictError
	if errors.As(err, &transitionConflict) {
		ErrorWithData(c, http.StatusConflict, "illegal transition", err.Error(), transitionConflict)
		return
	}

	var materialMismatch *capacity.MaterialMismatchError
	if errors.As(err, &materialMismatch) {
		ErrorWithData(c, http.StatusUnprocessableEntity, "material mismatch", err.Error(), materialMismatch)
		return
	}

	var capacityExceeded *capacity.CapacityExceededError
	if errors.As(err, &capacityExceeded) {
		ErrorWithData(c, http.StatusUnprocessableEntity, "capacity exceeded", err.Error(), capacityExceeded)
		return
	}

	var validation *service.ValidationError
	if errors.As(err, &validation) {
		Error(c, http.StatusUnprocessableEntity, "validation failed", validation.Reason)
		return
	}

	Error(c, http.StatusInternalServerError, "failed to "+operation, err.Error())
}
