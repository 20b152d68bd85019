package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/devtrackhq/devtrack/internal/models"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task
func (r *GormTaskRepository) Create(task *models.Task) error {
	return r.db.Create(task).Error
}

// FindByID finds a task by ID with optional preloading
func (r *GormTaskRepository) FindByID(id uint64, preload ...string) (*models.Task, error) {
	var task models.Task
	query := r.db

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&task, id).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// FindByProjectAndNumbers finds tasks in a project by their human-readable numbers
func (r *GormTaskRepository) FindByProjectAndNumbers(projectID uint64, numbers []int) ([]models.Task, error) {
	if len(numbers) == 0 {
		return []models.Task{}, nil
	}

	var tasks []models.Task
	err := r.db.
		Where("project_id = ? AND number IN ?", projectID, numbers).
		Order("number ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// FindOpenAssigned finds a user's assigned, not-yet-done tasks in a project
func (r *GormTaskRepository) FindOpenAssigned(projectID, userID uint64) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.
		Joins("JOIN task_assignees ON task_assignees.task_id = tasks.id").
		Where("tasks.project_id = ? AND task_assignees.user_id = ? AND tasks.status <> ?",
			projectID, userID, models.TaskStatusDone).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListByProject lists all tasks of a project
func (r *GormTaskRepository) ListByProject(projectID uint64, preload ...string) ([]models.Task, error) {
	var tasks []models.Task
	query := r.db.Where("project_id = ?", projectID)

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.Order("number ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListAssignedToUser lists tasks assigned to a user, earliest deadline first
func (r *GormTaskRepository) ListAssignedToUser(userID uint64) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.
		Joins("JOIN task_assignees ON task_assignees.task_id = tasks.id").
		Where("task_assignees.user_id = ?", userID).
		Preload("Project").
		Preload("Assignees").
		Order("CASE WHEN tasks.deadline IS NULL THEN 1 ELSE 0 END, tasks.deadline ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// CountByProject counts tasks in a project, including soft-deleted rows so
// that task numbers are never reused after a deletion.
func (r *GormTaskRepository) CountByProject(projectID uint64) (int64, error) {
	var count int64
	err := r.db.Unscoped().Model(&models.Task{}).
		Where("project_id = ?", projectID).
		Count(&count).Error
	return count, err
}

// Save persists all fields of a task
func (r *GormTaskRepository) Save(task *models.Task) error {
	return r.db.Save(task).Error
}

// UpdateStatusVersioned applies a status change guarded by lock_version.
func (r *GormTaskRepository) UpdateStatusVersioned(taskID uint64, lockVersion uint32, status models.TaskStatus) (bool, error) {
	res := r.db.Model(&models.Task{}).
		Where("id = ? AND lock_version = ?", taskID, lockVersion).
		Updates(map[string]any{
			"status":       status,
			"lock_version": gorm.Expr("lock_version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// LinkCommit inserts a linked commit unless the task already links that URL.
func (r *GormTaskRepository) LinkCommit(lc *models.LinkedCommit) (bool, error) {
	res := r.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_id"}, {Name: "commit_url"}},
			DoNothing: true,
		}).
		Create(lc)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AppendHistory appends one audit entry
func (r *GormTaskRepository) AppendHistory(entry *models.TaskHistory) error {
	return r.db.Create(entry).Error
}

// AddComment appends one comment
func (r *GormTaskRepository) AddComment(comment *models.TaskComment) error {
	return r.db.Create(comment).Error
}

// AssignUser adds a user to the task's assignee set
func (r *GormTaskRepository) AssignUser(taskID, userID uint64) error {
	return r.db.
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&taskAssignee{TaskID: taskID, UserID: userID}).Error
}

// UnassignUser removes a user from the task's assignee set
func (r *GormTaskRepository) UnassignUser(taskID, userID uint64) error {
	return r.db.
		Where("task_id = ? AND user_id = ?", taskID, userID).
		Delete(&taskAssignee{}).Error
}

// IsAssigned reports whether the user is in the task's assignee set
func (r *GormTaskRepository) IsAssigned(taskID, userID uint64) (bool, error) {
	var count int64
	err := r.db.Model(&taskAssignee{}).
		Where("task_id = ? AND user_id = ?", taskID, userID).
		Count(&count).Error
	return count > 0, err
}

// UnassignUserFromProject removes a user from every task of a project
func (r *GormTaskRepository) UnassignUserFromProject(projectID, userID uint64) error {
	return r.db.
		Where("user_id = ? AND task_id IN (?)",
			userID,
			r.db.Model(&models.Task{}).Select("id").Where("project_id = ?", projectID),
		).
		Delete(&taskAssignee{}).Error
}

// DeleteByProject removes all tasks of a project with their child rows
func (r *GormTaskRepository) DeleteByProject(projectID uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		taskIDs := tx.Model(&models.Task{}).Select("id").Where("project_id = ?", projectID)

		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&taskAssignee{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&models.TaskHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&models.TaskComment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&models.LinkedCommit{}).Error; err != nil {
			return err
		}
		return tx.Where("project_id = ?", projectID).Delete(&models.Task{}).Error
	})
}

// taskAssignee maps the many2many join table so membership rows can be
// manipulated directly.
type taskAssignee struct {
	TaskID uint64 `gorm:"primarykey"`
	UserID uint64 `gorm:"primarykey"`
}

func (taskAssignee) TableName() string { return "task_assignees" }
