package repositories

import (
	"context"

	"kazi/models"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, m *models.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListByTask returns the task's chat in posting order.
func (r *MessageRepository) ListByTask(ctx context.Context, taskID uint) ([]models.Message, error) {
	var out []models.Message
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// MarkReadForUser marks every unread message on the task that userID did
// not send.
func (r *MessageRepository) MarkReadForUser(ctx context.Context, taskID, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("task_id = ? AND sender_id <> ? AND is_read = ?", taskID, userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}
