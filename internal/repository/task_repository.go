package repository

import (
	"context"

	"github.com/yukikurage/task-sync/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

func byPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *GormTaskRepository) withChildren(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Subtasks", byPosition).
		Preload("Comments", byPosition).
		Preload("Attachments", byPosition)
}

// Create creates a new task
func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	numberChildren(task)
	return r.db.WithContext(ctx).Create(task).Error
}

// FindByID finds a task by ID
func (r *GormTaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := r.withChildren(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// List retrieves tasks with filtering
func (r *GormTaskRepository) List(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	var tasks []models.Task

	query := r.withChildren(ctx).Model(&models.Task{}).
		Where("tasks.workspace_id = ?", filter.WorkspaceID)

	if filter.Origin != "" {
		query = query.Where("tasks.origin = ?", filter.Origin)
	}
	if filter.Status != nil {
		query = query.Where("tasks.status = ?", *filter.Status)
	}

	if filter.SortByDueDate {
		query = query.Order("CASE WHEN tasks.due_date IS NULL THEN 1 ELSE 0 END, tasks.due_date ASC")
	}
	query = query.Order("tasks.created_at ASC").Order("tasks.id ASC")

	if err := query.Find(&tasks).Error; err != nil {
		return nil, err
	}

	return tasks, nil
}

// Update updates a task and replaces its owned rows
func (r *GormTaskRepository) Update(ctx context.Context, task *models.Task) error {
	numberChildren(task)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(task).Error; err != nil {
			return err
		}
		if err := deleteChildren(tx, task.ID); err != nil {
			return err
		}
		if len(task.Subtasks) > 0 {
			if err := tx.Create(&task.Subtasks).Error; err != nil {
				return err
			}
		}
		if len(task.Comments) > 0 {
			if err := tx.Create(&task.Comments).Error; err != nil {
				return err
			}
		}
		if len(task.Attachments) > 0 {
			if err := tx.Create(&task.Attachments).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes a task and its sub-collections
func (r *GormTaskRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteChildren(tx, id); err != nil {
			return err
		}

		result := tx.Where("id = ?", id).Delete(&models.Task{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func deleteChildren(tx *gorm.DB, taskID string) error {
	for _, child := range []any{&models.Subtask{}, &models.Comment{}, &models.Attachment{}} {
		if err := tx.Where("task_id = ?", taskID).Delete(child).Error; err != nil {
			return err
		}
	}
	return nil
}

// numberChildren links owned rows to their task and records their order.
func numberChildren(task *models.Task) {
	for i := range task.Subtasks {
		task.Subtasks[i].TaskID = task.ID
		task.Subtasks[i].Position = i
	}
	for i := range task.Comments {
		task.Comments[i].TaskID = task.ID
		task.Comments[i].Position = i
	}
	for i := range task.Attachments {
		task.Attachments[i].TaskID = task.ID
		task.Attachments[i].Position = i
	}
}
