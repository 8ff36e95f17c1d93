package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TaskStatusOpen       = "open"
	TaskStatusInProgress = "in-progress"
	TaskStatusCompleted  = "completed"
	TaskStatusPaid       = "paid"
	TaskStatusCancelled  = "cancelled"

	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
)

var TaskCategories = []string{"delivery", "cleaning", "tutoring", "writing", "tech", "errands", "other"}

var TaskStatuses = []string{TaskStatusOpen, TaskStatusInProgress, TaskStatusCompleted, TaskStatusPaid, TaskStatusCancelled}

func IsTaskCategory(c string) bool {
	for _, v := range TaskCategories {
		if v == c {
			return true
		}
	}
	return false
}

func IsTaskStatus(s string) bool {
	for _, v := range TaskStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Task is a unit of work posted by one user (the owner) and carried out by at
// most one assignee picked from its applicants.
type Task struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Title         string          `gorm:"size:120;not null" json:"title"`
	Description   string          `gorm:"type:text" json:"description"`
	Budget        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"budget"`
	Category      string          `gorm:"size:30;not null;index" json:"category"`
	Status        string          `gorm:"size:20;not null;index" json:"status"`
	PaymentStatus string          `gorm:"column:payment_status;size:20;not null" json:"payment_status"`
	Deadline      *time.Time      `json:"deadline,omitempty"`
	PostedByID    uint            `gorm:"column:posted_by_id;not null;index" json:"posted_by"`
	AssignedToID  *uint           `gorm:"column:assigned_to_id;index" json:"assigned_to,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Applicants []TaskApplicant `gorm:"foreignKey:TaskID" json:"applicants"`
}

func (Task) TableName() string {
	return "tasks"
}

// HasApplicant reports whether userID is in the loaded applicant list.
func (t *Task) HasApplicant(userID uint) bool {
	for _, a := range t.Applicants {
		if a.ApplicantID == userID {
			return true
		}
	}
	return false
}

func (t *Task) IsAssignee(userID uint) bool {
	return t.AssignedToID != nil && *t.AssignedToID == userID
}

// IsParticipant covers the owner, the assignee and every applicant.
func (t *Task) IsParticipant(userID uint) bool {
	return t.PostedByID == userID || t.IsAssignee(userID) || t.HasApplicant(userID)
}

type TaskApplicant struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TaskID      uint      `gorm:"column:task_id;not null;uniqueIndex:idx_task_applicant" json:"task_id"`
	ApplicantID uint      `gorm:"column:applicant_id;not null;uniqueIndex:idx_task_applicant" json:"applicant_id"`
	Message     string    `gorm:"type:text" json:"message"`
	AppliedAt   time.Time `gorm:"column:applied_at;not null" json:"applied_at"`
}

func (TaskApplicant) TableName() string {
	return "task_applicants"
}
