package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/mautops/pickup-gin/internal/model"
	"github.com/mautops/pickup-gin/internal/repository"
	"github.com/mautops/pickup-gin/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupScheduler 创建调度器与内存数据库
func setupScheduler(t *testing.T) (*service.DailyScheduler, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&model.TaskModel{},
		&model.StandModel{},
		&model.ActivityLogModel{},
	)
	require.NoError(t, err)

	activityLog := service.NewActivityLogService(repository.NewActivityLogRepository(db))
	scheduler, err := service.NewDailyScheduler(db, activityLog, &service.DailySchedulerConfig{
		InitialDelay: 10 * time.Millisecond,
		Interval:     time.Hour,
	}, nil)
	require.NoError(t, err)

	return scheduler, db
}

// seedStand 准备一个启用每日满载任务的取货点
func seedStand(t *testing.T, db *gorm.DB, id string) {
	now := time.Now()
	estimated := 180.0
	require.NoError(t, db.Create(&model.StandModel{
		ID:                id,
		Name:              "stand " + id,
		SourceContainerID: "cont-" + id,
		MaterialType:      "aluminium",
		Unit:              "kg",
		EstimatedAmount:   &estimated,
		Active:            true,
		DailyFull:         true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}).Error)
}

// TestDailyScheduler_Run 测试每个取货点恰好生成一个当日任务
func TestDailyScheduler_Run(t *testing.T) {
	scheduler, db := setupScheduler(t)
	seedStand(t, db, "stand-001")
	seedStand(t, db, "stand-002")

	report, err := scheduler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.CreatedCount)
	assert.Equal(t, 0, report.SkippedCount)
	assert.Len(t, report.Created, 2)

	today := scheduler.Today()
	var task model.TaskModel
	dedupKey := service.DedupKeyFor("stand-001", today)
	require.NoError(t, db.Where("dedup_key = ?", dedupKey).First(&task).Error)
	assert.Equal(t, model.TaskTypeDaily, task.Type)
	assert.Equal(t, model.WorkflowLegacy, task.Workflow)
	assert.Equal(t, "PLANNED", task.State)
	assert.Equal(t, "cont-stand-001", task.SourceContainerID)
	require.NotNil(t, task.EstimatedAmount)
	assert.Equal(t, 180.0, *task.EstimatedAmount)
	require.NotNil(t, task.ScheduledFor)
	assert.Equal(t, today, *task.ScheduledFor)

	// 取货点回写生成时间
	var stand model.StandModel
	require.NoError(t, db.Where("id = ?", "stand-001").First(&stand).Error)
	assert.NotNil(t, stand.LastDailyTaskGeneratedAt)
}

// TestDailyScheduler_RunTwiceSameDay 测试同日重复运行全部跳过
func TestDailyScheduler_RunTwiceSameDay(t *testing.T) {
	scheduler, db := setupScheduler(t)
	seedStand(t, db, "stand-001")
	seedStand(t, db, "stand-002")

	_, err := scheduler.Run(context.Background())
	require.NoError(t, err)

	report, err := scheduler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.CreatedCount)
	assert.Equal(t, 2, report.SkippedCount)
	assert.ElementsMatch(t, []string{"stand-001", "stand-002"}, report.Skipped)

	var count int64
	require.NoError(t, db.Model(&model.TaskModel{}).Where("type = ?", model.TaskTypeDaily).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

// TestDailyScheduler_CancelsStaleOpenTasks 测试过期开放任务被取消并生成新任务
func TestDailyScheduler_CancelsStaleOpenTasks(t *testing.T) {
	scheduler, db := setupScheduler(t)
	seedStand(t, db, "stand-001")

	// 昨天生成的任务无人认领
	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	staleKey := service.DedupKeyFor("stand-001", yesterday)
	now := time.Now()
	require.NoError(t, db.Create(&model.TaskModel{
		ID:                "task-stale",
		Workflow:          model.WorkflowLegacy,
		Type:              model.TaskTypeDaily,
		State:             "PLANNED",
		MaterialType:      "aluminium",
		Unit:              "kg",
		SourceContainerID: "cont-stand-001",
		DedupKey:          &staleKey,
		ScheduledFor:      &yesterday,
		CreatedBy:         "daily-scheduler",
		CreatedAt:         now.AddDate(0, 0, -1),
		UpdatedAt:         now.AddDate(0, 0, -1),
	}).Error)

	report, err := scheduler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.CancelledPreviousCount)
	assert.Equal(t, 1, report.CreatedCount)

	var stale model.TaskModel
	require.NoError(t, db.Where("id = ?", "task-stale").First(&stale).Error)
	assert.Equal(t, "CANCELLED", stale.State)
	require.NotNil(t, stale.CancellationReason)
	assert.Equal(t, service.CancelReasonSuperseded, *stale.CancellationReason)
}

// TestDailyScheduler_ClaimedStaleTaskSurvives 测试已认领的过期任务不被取消
func TestDailyScheduler_ClaimedStaleTaskSurvives(t *testing.T) {
	scheduler, db := setupScheduler(t)
	seedStand(t, db, "stand-001")

	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	staleKey := service.DedupKeyFor("stand-001", yesterday)
	claimedBy := "worker-1"
	now := time.Now()
	require.NoError(t, db.Create(&model.TaskModel{
		ID:                "task-claimed",
		Workflow:          model.WorkflowLegacy,
		Type:              model.TaskTypeDaily,
		State:             "ACCEPTED",
		MaterialType:      "aluminium",
		Unit:              "kg",
		SourceContainerID: "cont-stand-001",
		DedupKey:          &staleKey,
		ClaimedByUserID:   &claimedBy,
		CreatedBy:         "daily-scheduler",
		CreatedAt:         now.AddDate(0, 0, -1),
		UpdatedAt:         now.AddDate(0, 0, -1),
	}).Error)

	report, err := scheduler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.CancelledPreviousCount)
	assert.Equal(t, 1, report.CreatedCount) // 新的当日任务照常生成

	var claimed model.TaskModel
	require.NoError(t, db.Where("id = ?", "task-claimed").First(&claimed).Error)
	assert.Equal(t, "ACCEPTED", claimed.State)
}

// TestDailyScheduler_InactiveStandsExcluded 测试停用取货点不生成任务
func TestDailyScheduler_InactiveStandsExcluded(t *testing.T) {
	scheduler, db := setupScheduler(t)
	seedStand(t, db, "stand-001")

	now := time.Now()
	require.NoError(t, db.Create(&model.StandModel{
		ID: "stand-off", Name: "disabled stand", SourceContainerID: "cont-off",
		MaterialType: "aluminium", Active: false, DailyFull: true,
		CreatedAt: now, UpdatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&model.StandModel{
		ID: "stand-nodaily", Name: "manual stand", SourceContainerID: "cont-nd",
		MaterialType: "aluminium", Active: true, DailyFull: false,
		CreatedAt: now, UpdatedAt: now,
	}).Error)

	report, err := scheduler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.CreatedCount)
}

// TestDailyScheduler_DedupKeyFor 测试去重键格式
func TestDailyScheduler_DedupKeyFor(t *testing.T) {
	assert.Equal(t, "daily-full:stand-001:2026-08-30", service.DedupKeyFor("stand-001", "2026-08-30"))
}

// TestDailyScheduler_StartStop 测试调度循环的启动与停止
func TestDailyScheduler_StartStop(t *testing.T) {
	scheduler, db := setupScheduler(t)
	seedStand(t, db, "stand-001")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler.Start(ctx)

	// 首次运行在初始延迟后发生
	require.Eventually(t, func() bool {
		var count int64
		if err := db.Model(&model.TaskModel{}).Where("type = ?", model.TaskTypeDaily).Count(&count).Error; err != nil {
			return false
		}
		return count == 1
	}, 2*time.Second, 20*time.Millisecond)

	// Stop 幂等且等待循环退出
	scheduler.Stop()
	scheduler.Stop()
}
