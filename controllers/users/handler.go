package users

import (
	"context"

	"kazi/models"
	"kazi/repositories"
	"kazi/services"
)

type TaskService interface {
	Create(ctx context.Context, ownerID uint, in services.CreateTaskInput) (*models.Task, error)
	Get(ctx context.Context, id uint) (*models.Task, error)
	ListOpen(ctx context.Context, f repositories.TaskFilter) ([]models.Task, int64, error)
	Apply(ctx context.Context, taskID, applicantID uint, message string) (*models.Task, error)
	Assign(ctx context.Context, taskID, callerID, applicantID uint) (*models.Task, error)
	Complete(ctx context.Context, taskID, callerID uint) (*models.Task, error)
	Delete(ctx context.Context, taskID, callerID uint) error
	Dashboard(ctx context.Context, userID uint, q services.DashboardQuery) ([]repositories.DashboardRow, error)
	View(ctx context.Context, userID uint, view services.DashboardView) ([]repositories.DashboardRow, error)
}

// Payer starts worker payouts.
type Payer interface {
	InitiatePayout(ctx context.Context, in services.PayoutInput) (*models.Transaction, error)
}

type NotificationService interface {
	List(ctx context.Context, userID uint, page, limit int) ([]models.Notification, int64, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, userID, id uint) error
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
	Delete(ctx context.Context, userID, id uint) error
}

type MessageService interface {
	ListByTask(ctx context.Context, taskID, userID uint) ([]models.Message, error)
	Send(ctx context.Context, taskID, senderID uint, content string) (*models.Message, error)
	MarkRead(ctx context.Context, taskID, userID uint) (int64, error)
}

// Handler serves the authenticated task, notification and message endpoints.
type Handler struct {
	tasks    TaskService
	payer    Payer
	notes    NotificationService
	messages MessageService
}

func NewHandler(tasks TaskService, payer Payer, notes NotificationService, messages MessageService) *Handler {
	return &Handler{tasks: tasks, payer: payer, notes: notes, messages: messages}
}
