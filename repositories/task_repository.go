package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"kazi/models"

	"gorm.io/gorm"
)

var (
	// ErrStaleState is returned when a conditional update matched no row
	// because another request moved the record first.
	ErrStaleState = errors.New("record changed concurrently")

	ErrDuplicateApplicant = errors.New("applicant already recorded for task")
)

type TaskFilter struct {
	Category string
	Search   string
	Page     int
	Limit    int
}

func (f TaskFilter) offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Omit("Applicants").Create(task).Error
}

// FindByID loads a task with its applicants in application order.
func (r *TaskRepository) FindByID(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Preload("Applicants", func(db *gorm.DB) *gorm.DB {
			return db.Order("applied_at ASC, id ASC")
		}).
		First(&task, id).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListOpen pages through open tasks, newest first.
func (r *TaskRepository) ListOpen(ctx context.Context, f TaskFilter) ([]models.Task, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("status = ?", models.TaskStatusOpen)
		if f.Category != "" {
			db = db.Where("category = ?", f.Category)
		}
		if s := strings.TrimSpace(f.Search); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			db = db.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", like, like)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Task{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	q := r.db.WithContext(ctx).Scopes(scope).Order("created_at DESC, id DESC")
	if f.Limit > 0 {
		q = q.Offset(f.offset()).Limit(f.Limit)
	}
	var tasks []models.Task
	err := q.Find(&tasks).Error
	return tasks, total, err
}

func (r *TaskRepository) HasApplicant(ctx context.Context, taskID, userID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.TaskApplicant{}).
		Where("task_id = ? AND applicant_id = ?", taskID, userID).
		Count(&n).Error
	return n > 0, err
}

// AddApplicant inserts the application only while the task is still open.
func (r *TaskRepository) AddApplicant(ctx context.Context, a *models.TaskApplicant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Task{}).
			Where("id = ? AND status = ?", a.TaskID, models.TaskStatusOpen).
			Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrStaleState
		}
		if err := tx.Create(a).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateApplicant
			}
			return err
		}
		return nil
	})
}

// Assign moves the task to in-progress with applicantID as assignee, provided
// status and assignee are still what the caller observed.
func (r *TaskRepository) Assign(ctx context.Context, taskID uint, fromStatus string, prevAssignee *uint, applicantID uint) error {
	q := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND status = ?", taskID, fromStatus)
	if prevAssignee == nil {
		q = q.Where("assigned_to_id IS NULL")
	} else {
		q = q.Where("assigned_to_id = ?", *prevAssignee)
	}
	res := q.Updates(map[string]interface{}{
		"status":         models.TaskStatusInProgress,
		"assigned_to_id": applicantID,
		"updated_at":     time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

// Complete marks an in-progress task completed by its assignee and bumps the
// worker's completed counter in the same transaction.
func (r *TaskRepository) Complete(ctx context.Context, taskID, assigneeID uint, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Task{}).
			Where("id = ? AND status = ? AND assigned_to_id = ?", taskID, models.TaskStatusInProgress, assigneeID).
			Updates(map[string]interface{}{
				"status":       models.TaskStatusCompleted,
				"completed_at": at,
				"updated_at":   at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleState
		}
		return tx.Model(&models.User{}).Where("id = ?", assigneeID).
			UpdateColumn("completed_tasks", gorm.Expr("completed_tasks + 1")).Error
	})
}

// MarkPaid settles a completed task. It reports false when the task was not
// in the completed/unpaid state, which makes repeated calls harmless.
func (r *TaskRepository) MarkPaid(ctx context.Context, taskID uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND status = ? AND payment_status = ?", taskID, models.TaskStatusCompleted, models.PaymentStatusUnpaid).
		Updates(map[string]interface{}{
			"status":         models.TaskStatusPaid,
			"payment_status": models.PaymentStatusPaid,
			"paid_at":        at,
			"updated_at":     at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Delete removes an unpaid task together with its applications and chat.
func (r *TaskRepository) Delete(ctx context.Context, taskID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskApplicant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND payment_status = ?", taskID, models.PaymentStatusUnpaid).Delete(&models.Task{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleState
		}
		return nil
	})
}
