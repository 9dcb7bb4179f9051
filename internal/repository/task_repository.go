package repository

import (
	"github.com/mautops/pickup-gin/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskRepository 任务仓储接口
// 条件更新方法返回是否命中,调用方据此区分竞争失败与成功
type TaskRepository interface {
	Create(task *model.TaskModel) error
	Save(task *model.TaskModel) error
	FindByID(id string) (*model.TaskModel, error)
	FindByFilter(filter *TaskFilter) ([]*model.TaskModel, error)
	// ClaimIfUnowned 仅当任务无归属且处于开放状态时应用更新
	ClaimIfUnowned(id string, openStates []string, updates map[string]interface{}) (bool, error)
	// UpdateStateIf 状态 CAS:仅当当前状态匹配时应用更新
	UpdateStateIf(id string, fromState string, updates map[string]interface{}) (bool, error)
	// InsertIfAbsent 依赖 dedup_key 唯一约束的插入,冲突时静默跳过
	InsertIfAbsent(task *model.TaskModel) (bool, error)
	// FindOpenDaily 查找去重键不以指定日期结尾的开放每日任务
	FindOpenDaily(notTodaySuffix string) ([]*model.TaskModel, error)
	// CountByState 按状态统计任务数量
	CountByState() (map[string]int64, error)
}

// TaskFilter 任务查询过滤器
type TaskFilter struct {
	State     *string
	Workflow  *string
	Type      *string
	ClaimedBy *string
	StandID   *string
}

// taskRepository 任务仓储实现
type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建任务仓储
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Create 创建任务
func (r *taskRepository) Create(task *model.TaskModel) error {
	return r.db.Create(task).Error
}

// Save 保存任务
func (r *taskRepository) Save(task *model.TaskModel) error {
	return r.db.Save(task).Error
}

// FindByID 根据 ID 查找任务
func (r *taskRepository) FindByID(id string) (*model.TaskModel, error) {
	var task model.TaskModel
	if err := r.db.Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByFilter 根据过滤器查找任务
func (r *taskRepository) FindByFilter(filter *TaskFilter) ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	query := r.db.Model(&model.TaskModel{})

	if filter != nil {
		if filter.State != nil {
			query = query.Where("state = ?", *filter.State)
		}
		if filter.Workflow != nil {
			query = query.Where("workflow = ?", *filter.Workflow)
		}
		if filter.Type != nil {
			query = query.Where("type = ?", *filter.Type)
		}
		if filter.ClaimedBy != nil {
			query = query.Where("claimed_by_user_id = ?", *filter.ClaimedBy)
		}
		if filter.StandID != nil {
			query = query.Where("stand_id = ?", *filter.StandID)
		}
	}

	err := query.Order("created_at DESC").Find(&tasks).Error
	return tasks, err
}

// ClaimIfUnowned 原子认领:归属为空且状态开放时才更新
func (r *taskRepository) ClaimIfUnowned(id string, openStates []string, updates map[string]interface{}) (bool, error) {
	res := r.db.Model(&model.TaskModel{}).
		Where("id = ? AND claimed_by_user_id IS NULL AND state IN ?", id, openStates).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateStateIf 状态 CAS 更新
func (r *taskRepository) UpdateStateIf(id string, fromState string, updates map[string]interface{}) (bool, error) {
	res := r.db.Model(&model.TaskModel{}).
		Where("id = ? AND state = ?", id, fromState).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// InsertIfAbsent 去重键冲突时不报错,返回是否真正插入
func (r *taskRepository) InsertIfAbsent(task *model.TaskModel) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoNothing: true,
	}).Create(task)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindOpenDaily 查找过期的开放每日任务
func (r *taskRepository) FindOpenDaily(notTodaySuffix string) ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	err := r.db.
		Where("type = ? AND state IN ? AND dedup_key IS NOT NULL AND dedup_key NOT LIKE ?",
			model.TaskTypeDaily, OpenDailyStates, "%"+notTodaySuffix).
		Find(&tasks).Error
	return tasks, err
}

// CountByState 按状态分组统计任务数
func (r *taskRepository) CountByState() (map[string]int64, error) {
	var rows []struct {
		State string
		Count int64
	}
	err := r.db.Model(&model.TaskModel{}).
		Select("state, COUNT(*) AS count").
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.State] = row.Count
	}
	return counts, nil
}

// OpenDailyStates 调度器视为"仍然开放"的每日任务状态
var OpenDailyStates = []string{"PLANNED", "OPEN"}
