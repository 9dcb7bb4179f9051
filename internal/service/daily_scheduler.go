package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/pickup-gin/internal/metrics"
	"github.com/mautops/pickup-gin/internal/model"
	"github.com/mautops/pickup-gin/internal/repository"
	"github.com/mautops/pickup-gin/internal/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DedupKeyPrefix 每日任务去重键前缀
const DedupKeyPrefix = "daily-full"

// CancelReasonSuperseded 过期每日任务的取消原因
const CancelReasonSuperseded = "superseded by new daily generation"

// schedulerUserID 调度器写入审计记录时使用的主体
const schedulerUserID = "daily-scheduler"

// DailySchedulerConfig 每日任务调度配置
type DailySchedulerConfig struct {
	Timezone     string        // "今天"的固定时区
	InitialDelay time.Duration // 进程启动后首次运行的延迟
	Interval     time.Duration // 周期运行间隔
}

// GenerationReport 单次生成运行的汇总
// @Description 每日任务生成报告
type GenerationReport struct {
	CreatedCount           int      `json:"created_count"`
	SkippedCount           int      `json:"skipped_count"`
	CancelledPreviousCount int      `json:"cancelled_previous_count"`
	Created                []string `json:"created"`
	Skipped                []string `json:"skipped"`
}

// DailyScheduler 每日任务调度器
// 显式持有自己的生命周期(Start/Stop),同一算法同时服务定时触发
// 和管理员同步触发,因此生成必须容忍去重键冲突
type DailyScheduler struct {
	tasks       repository.TaskRepository
	stands      repository.StandRepository
	activityLog ActivityLogService
	location    *time.Location
	config      *DailySchedulerConfig
	logger      *logrus.Logger
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewDailyScheduler 创建每日任务调度器
func NewDailyScheduler(db *gorm.DB, activityLog ActivityLogService, config *DailySchedulerConfig, logger *logrus.Logger) (*DailyScheduler, error) {
	if config == nil {
		config = &DailySchedulerConfig{}
	}
	if config.Timezone == "" {
		config.Timezone = "Europe/Berlin"
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 10 * time.Second
	}
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}

	location, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduler timezone: %w", err)
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &DailyScheduler{
		tasks:       repository.NewTaskRepository(db),
		stands:      repository.NewStandRepository(db),
		activityLog: activityLog,
		location:    location,
		config:      config,
		logger:      logger,
		stopChan:    make(chan struct{}),
	}, nil
}

// Start 启动调度循环:短暂延迟后首次运行,之后按固定间隔运行
func (s *DailyScheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case <-time.After(s.config.InitialDelay):
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}

		s.runLogged(ctx)

		ticker := time.NewTicker(s.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.runLogged(ctx)
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop 停止调度循环并等待退出
func (s *DailyScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

// Today 固定时区下的今日日期串
func (s *DailyScheduler) Today() string {
	return time.Now().In(s.location).Format("2006-01-02")
}

// DedupKeyFor 取货点在指定日期的去重键
func DedupKeyFor(standID, date string) string {
	return fmt.Sprintf("%s:%s:%s", DedupKeyPrefix, standID, date)
}

// runLogged 周期触发的运行,只记录日志不向上返回
func (s *DailyScheduler) runLogged(ctx context.Context) {
	report, err := s.Run(ctx)
	if err != nil {
		s.logger.WithError(err).Error("daily task generation failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"created":            report.CreatedCount,
		"skipped":            report.SkippedCount,
		"cancelled_previous": report.CancelledPreviousCount,
	}).Info("daily task generation completed")

	s.refreshStateGauges()
}

// refreshStateGauges 刷新按状态统计的任务数量指标
func (s *DailyScheduler) refreshStateGauges() {
	counts, err := s.tasks.CountByState()
	if err != nil {
		s.logger.WithError(err).Warn("failed to refresh task state gauges")
		return
	}
	for state, count := range counts {
		metrics.UpdateTasksByState(state, float64(count))
	}
}

// Run 执行一次生成:取消过期的开放每日任务,再为每个启用
// daily_full 的活跃取货点恰好生成一个当日任务
func (s *DailyScheduler) Run(ctx context.Context) (*GenerationReport, error) {
	today := s.Today()
	report := &GenerationReport{Created: []string{}, Skipped: []string{}}

	// 1. 取消去重键不属于今天的开放每日任务,防止无限累积
	stale, err := s.tasks.FindOpenDaily(":" + today)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale daily tasks: %w", err)
	}
	now := time.Now()
	for _, task := range stale {
		ok, err := s.tasks.UpdateStateIf(task.ID, task.State, map[string]interface{}{
			"state":               workflow.StatusCancelled,
			"cancelled_at":        now,
			"cancellation_reason": CancelReasonSuperseded,
			"updated_at":          now,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to cancel stale daily task %s: %w", task.ID, err)
		}
		if ok {
			report.CancelledPreviousCount++
			metrics.RecordDailyGeneration("cancelled_stale")
			s.recordAudit(ctx, "daily_cancel_stale", task.ID, map[string]interface{}{
				"reason": CancelReasonSuperseded,
			})
		}
	}

	// 2. 每个取货点尝试插入当日任务,去重键冲突视为他人已完成
	stands, err := s.stands.FindActiveDailyFull()
	if err != nil {
		return nil, fmt.Errorf("failed to find stands: %w", err)
	}

	for _, stand := range stands {
		dedupKey := DedupKeyFor(stand.ID, today)
		scheduledFor := today
		task := &model.TaskModel{
			ID:                uuid.New().String(),
			Workflow:          model.WorkflowLegacy,
			Type:              model.TaskTypeDaily,
			State:             workflow.StatusPlanned,
			MaterialType:      stand.MaterialType,
			Unit:              stand.Unit,
			EstimatedAmount:   stand.EstimatedAmount,
			SourceContainerID: stand.SourceContainerID,
			StandID:           &stand.ID,
			ScheduledFor:      &scheduledFor,
			DedupKey:          &dedupKey,
			CreatedBy:         schedulerUserID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		created, err := s.tasks.InsertIfAbsent(task)
		if err != nil {
			return nil, fmt.Errorf("failed to insert daily task for stand %s: %w", stand.ID, err)
		}
		if !created {
			// 并发运行或手动触发已经插入:静默跳过,不重试不报错
			report.SkippedCount++
			report.Skipped = append(report.Skipped, stand.ID)
			metrics.RecordDailyGeneration("skipped")
			continue
		}

		if err := s.stands.StampGenerated(stand.ID, now); err != nil {
			return nil, fmt.Errorf("failed to stamp stand %s: %w", stand.ID, err)
		}
		report.CreatedCount++
		report.Created = append(report.Created, task.ID)
		metrics.RecordDailyGeneration("created")
		s.recordAudit(ctx, "daily_generate", task.ID, map[string]interface{}{
			"stand_id": stand.ID, "dedup_key": dedupKey,
		})
	}

	return report, nil
}

// recordAudit 调度器审计写入失败不中断生成
func (s *DailyScheduler) recordAudit(ctx context.Context, action string, taskID string, details map[string]interface{}) {
	if s.activityLog != nil {
		_ = s.activityLog.RecordAction(ctx, schedulerUserID, action, &taskID, nil, details)
	}
}
