package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/pickup-gin/internal/auth"
	"github.com/mautops/pickup-gin/internal/model"
	"github.com/mautops/pickup-gin/internal/repository"
	"gorm.io/gorm"
)

// ContainerService 容器读取与重置服务
// 目录维护是外部协作方的职责,这里只提供审计展示所需的
// 只读投影和管理员的显式清空操作
type ContainerService interface {
	Get(id string) (*model.ContainerModel, error)
	History(id string) ([]*model.FillHistoryModel, error)
	// Reset 管理员清空容器:以负账本行保持累加和不变量
	Reset(ctx context.Context, actor auth.Identity, id string) (*model.ContainerModel, error)
}

// containerService 容器服务实现
type containerService struct {
	db          *gorm.DB
	containers  repository.ContainerRepository
	fills       repository.FillHistoryRepository
	activityLog ActivityLogService
}

// NewContainerService 创建容器服务
func NewContainerService(db *gorm.DB, activityLog ActivityLogService) ContainerService {
	return &containerService{
		db:          db,
		containers:  repository.NewContainerRepository(db),
		fills:       repository.NewFillHistoryRepository(db),
		activityLog: activityLog,
	}
}

// Get 获取容器详情
func (s *containerService) Get(id string) (*model.ContainerModel, error) {
	container, err := s.containers.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContainerNotFound
		}
		return nil, err
	}
	return container, nil
}

// History 容器的填充历史(只读)
func (s *containerService) History(id string) ([]*model.FillHistoryModel, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	return s.fills.FindByContainer(id)
}

// Reset 清空容器
func (s *containerService) Reset(ctx context.Context, actor auth.Identity, id string) (*model.ContainerModel, error) {
	if !actor.IsAdmin() {
		return nil, &ForbiddenError{Reason: "reset requires admin role"}
	}

	container, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if container.CurrentAmount == 0 {
		return container, nil
	}

	now := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		containers := repository.NewContainerRepository(tx)
		fills := repository.NewFillHistoryRepository(tx)

		if err := fills.Create(&model.FillHistoryModel{
			ID:          uuid.New().String(),
			ContainerID: id,
			AmountAdded: -container.CurrentAmount,
			Unit:        container.Unit,
			RecordedBy:  actor.UserID,
			CreatedAt:   now,
		}); err != nil {
			return fmt.Errorf("failed to append reset entry: %w", err)
		}

		emptied, err := containers.EmptyIf(id, container.CurrentAmount, now)
		if err != nil {
			return fmt.Errorf("failed to empty container: %w", err)
		}
		if !emptied {
			return fmt.Errorf("container %s modified concurrently", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.activityLog != nil {
		_ = s.activityLog.RecordAction(ctx, actor.UserID, "container_reset", nil, &id, map[string]interface{}{
			"previous_amount": container.CurrentAmount,
		})
	}
	return s.Get(id)
}
