package models

import "time"

const (
	NotificationApplication = "application"
	NotificationAssignment  = "assignment"
	NotificationCompletion  = "completion"
	NotificationPayment     = "payment"
	NotificationGeneral     = "general"
)

type Notification struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	Message       string    `gorm:"type:text;not null" json:"message"`
	Type          string    `gorm:"size:20;not null" json:"type"`
	TaskID        *uint     `gorm:"column:task_id;index" json:"task_id,omitempty"`
	RelatedUserID *uint     `gorm:"column:related_user_id" json:"related_user_id,omitempty"`
	IsRead        bool      `gorm:"column:is_read;not null;default:false" json:"is_read"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
