package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/pickup-gin/internal/model"
	"github.com/mautops/pickup-gin/internal/repository"
)

// ActivityLogService 操作日志服务
type ActivityLogService interface {
	RecordAction(ctx context.Context, userID string, action string, taskID *string, containerID *string, details interface{}) error
}

// activityLogService 操作日志服务实现
type activityLogService struct {
	logRepo repository.ActivityLogRepository
}

// NewActivityLogService 创建操作日志服务
func NewActivityLogService(logRepo repository.ActivityLogRepository) ActivityLogService {
	return &activityLogService{
		logRepo: logRepo,
	}
}

// RecordAction 记录一次改变状态的操作
func (s *activityLogService) RecordAction(
	ctx context.Context,
	userID string,
	action string,
	taskID *string,
	containerID *string,
	details interface{},
) error {
	// 序列化详情
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	// 获取请求信息
	requestID := ""
	if req := ctx.Value("request_id"); req != nil {
		requestID = req.(string)
	}

	ip := ""
	if req := ctx.Value("ip"); req != nil {
		ip = req.(string)
	}

	entry := &model.ActivityLogModel{
		ID:          uuid.New().String(),
		UserID:      userID,
		Action:      action,
		TaskID:      taskID,
		ContainerID: containerID,
		RequestID:   requestID,
		IP:          ip,
		Details:     detailsJSON,
		CreatedAt:   time.Now(),
	}

	return s.logRepo.Create(entry)
}
