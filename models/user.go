package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Name           string          `gorm:"size:100;not null" json:"name"`
	Email          string          `gorm:"size:191;uniqueIndex;not null" json:"email"`
	Phone          string          `gorm:"size:20;uniqueIndex;not null" json:"phone"` // canonical 2547XXXXXXXX / 2541XXXXXXXX
	Password       string          `gorm:"size:255;not null" json:"-"`
	Rating         decimal.Decimal `gorm:"type:decimal(3,2)" json:"rating"`
	CompletedTasks int             `gorm:"column:completed_tasks;not null;default:0" json:"completed_tasks"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"-"`
}

func (User) TableName() string {
	return "users"
}
