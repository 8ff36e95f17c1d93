package models

import "time"

// Message is a chat line posted on a task by one of its participants.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TaskID    uint      `gorm:"column:task_id;not null;index" json:"task_id"`
	SenderID  uint      `gorm:"column:sender_id;not null;index" json:"sender_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	IsRead    bool      `gorm:"column:is_read;not null;default:false" json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Task{},
		&TaskApplicant{},
		&Transaction{},
		&ParkedCallback{},
		&Notification{},
		&Message{},
	}
}
