package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"kazi/apperrors"
	"kazi/models"
	"kazi/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CreateTaskInput struct {
	Title       string
	Description string
	Budget      decimal.Decimal
	Category    string
	Deadline    *time.Time
}

type TaskService struct {
	tasks     *repositories.TaskRepository
	txs       *repositories.TransactionRepository
	dashboard *repositories.DashboardRepository
	notifier  *NotificationService
	now       func() time.Time
}

func NewTaskService(
	tasks *repositories.TaskRepository,
	txs *repositories.TransactionRepository,
	dashboard *repositories.DashboardRepository,
	notifier *NotificationService,
) *TaskService {
	return &TaskService{
		tasks:     tasks,
		txs:       txs,
		dashboard: dashboard,
		notifier:  notifier,
		now:       time.Now,
	}
}

func (s *TaskService) Create(ctx context.Context, ownerID uint, in CreateTaskInput) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if n := utf8.RuneCountInString(title); n < 3 || n > 120 {
		return nil, apperrors.Validation(apperrors.MsgInvalidTitle)
	}
	desc := strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(desc) > 5000 {
		return nil, apperrors.Validation(apperrors.MsgInvalidDescription)
	}
	if !in.Budget.IsPositive() {
		return nil, apperrors.Validation(apperrors.MsgInvalidBudget)
	}
	if !models.IsTaskCategory(in.Category) {
		return nil, apperrors.Validation(apperrors.MsgInvalidCategory)
	}
	if in.Deadline != nil && !in.Deadline.After(s.now()) {
		return nil, apperrors.Validation(apperrors.MsgInvalidDeadline)
	}

	task := &models.Task{
		Title:         title,
		Description:   desc,
		Budget:        in.Budget.Round(2),
		Category:      in.Category,
		Status:        models.TaskStatusOpen,
		PaymentStatus: models.PaymentStatusUnpaid,
		Deadline:      in.Deadline,
		PostedByID:    ownerID,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, apperrors.Internal(err)
	}
	zap.L().Info("task created", zap.Uint("task_id", task.ID), zap.Uint("owner_id", ownerID))
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, id uint) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, apperrors.MsgTaskNotFound)
	}
	return task, nil
}

func (s *TaskService) ListOpen(ctx context.Context, f repositories.TaskFilter) ([]models.Task, int64, error) {
	if f.Category != "" && !models.IsTaskCategory(f.Category) {
		return nil, 0, apperrors.Validation(apperrors.MsgInvalidCategory)
	}
	list, total, err := s.tasks.ListOpen(ctx, f)
	if err != nil {
		return nil, 0, apperrors.Internal(err)
	}
	return list, total, nil
}

func (s *TaskService) Apply(ctx context.Context, taskID, applicantID uint, message string) (*models.Task, error) {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.PostedByID == applicantID {
		return nil, apperrors.Authorization(apperrors.MsgOwnerCannotApply)
	}
	if task.Status != models.TaskStatusOpen {
		return nil, apperrors.Conflict(apperrors.MsgTaskNotOpen)
	}
	if task.HasApplicant(applicantID) {
		return nil, apperrors.Conflict(apperrors.MsgAlreadyApplied)
	}

	err = s.tasks.AddApplicant(ctx, &models.TaskApplicant{
		TaskID:      taskID,
		ApplicantID: applicantID,
		Message:     strings.TrimSpace(message),
		AppliedAt:   s.now(),
	})
	switch {
	case errors.Is(err, repositories.ErrDuplicateApplicant):
		return nil, apperrors.Conflict(apperrors.MsgAlreadyApplied)
	case errors.Is(err, repositories.ErrStaleState):
		return nil, apperrors.Conflict(apperrors.MsgTaskNotOpen)
	case err != nil:
		return nil, apperrors.Internal(err)
	}

	s.notifier.notify(ctx, NotifyInput{
		UserID:        task.PostedByID,
		Type:          models.NotificationApplication,
		Message:       fmt.Sprintf("New application for %q", task.Title),
		TaskID:        &task.ID,
		RelatedUserID: &applicantID,
	})
	return s.Get(ctx, taskID)
}

// Assign hands the task to one of its applicants. An in-progress task may be
// reassigned; the previous assignee is replaced.
func (s *TaskService) Assign(ctx context.Context, taskID, callerID, applicantID uint) (*models.Task, error) {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.PostedByID != callerID {
		return nil, apperrors.Authorization(apperrors.MsgNotTaskOwner)
	}
	if task.Status != models.TaskStatusOpen && task.Status != models.TaskStatusInProgress {
		return nil, apperrors.Conflict(apperrors.MsgTaskNotAssignable)
	}
	if !task.HasApplicant(applicantID) {
		return nil, apperrors.Conflict(apperrors.MsgNotAnApplicant)
	}

	if err := s.tasks.Assign(ctx, taskID, task.Status, task.AssignedToID, applicantID); err != nil {
		if errors.Is(err, repositories.ErrStaleState) {
			return nil, apperrors.Conflict(apperrors.MsgTaskChanged)
		}
		return nil, apperrors.Internal(err)
	}

	s.notifier.notify(ctx, NotifyInput{
		UserID:        applicantID,
		Type:          models.NotificationAssignment,
		Message:       fmt.Sprintf("You have been assigned to %q", task.Title),
		TaskID:        &task.ID,
		RelatedUserID: &callerID,
	})
	return s.Get(ctx, taskID)
}

func (s *TaskService) Complete(ctx context.Context, taskID, callerID uint) (*models.Task, error) {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsAssignee(callerID) {
		return nil, apperrors.Authorization(apperrors.MsgNotAssignee)
	}
	if task.Status != models.TaskStatusInProgress {
		return nil, apperrors.Conflict(apperrors.MsgTaskNotInProgress)
	}

	if err := s.tasks.Complete(ctx, taskID, callerID, s.now()); err != nil {
		if errors.Is(err, repositories.ErrStaleState) {
			return nil, apperrors.Conflict(apperrors.MsgTaskChanged)
		}
		return nil, apperrors.Internal(err)
	}

	s.notifier.notify(ctx, NotifyInput{
		UserID:        task.PostedByID,
		Type:          models.NotificationCompletion,
		Message:       fmt.Sprintf("%q has been marked complete", task.Title),
		TaskID:        &task.ID,
		RelatedUserID: &callerID,
	})
	return s.Get(ctx, taskID)
}

// MarkPaid settles a completed task after its payout succeeded. It reports
// false for a task that is not completed and unpaid.
func (s *TaskService) MarkPaid(ctx context.Context, taskID uint, amount decimal.Decimal) (bool, error) {
	applied, err := s.tasks.MarkPaid(ctx, taskID, s.now())
	if err != nil {
		return false, apperrors.Internal(err)
	}
	if !applied {
		return false, nil
	}

	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil || task.AssignedToID == nil {
		zap.L().Warn("paid task has no assignee to notify", zap.Uint("task_id", taskID), zap.Error(err))
		return true, nil
	}
	s.notifier.notify(ctx, NotifyInput{
		UserID:        *task.AssignedToID,
		Type:          models.NotificationPayment,
		Message:       fmt.Sprintf("You have been paid KES %s for %q", amount.StringFixed(2), task.Title),
		TaskID:        &task.ID,
		RelatedUserID: &task.PostedByID,
	})
	return true, nil
}

// Delete removes a task that holds no money.
func (s *TaskService) Delete(ctx context.Context, taskID, callerID uint) error {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if task.PostedByID != callerID {
		return apperrors.Authorization(apperrors.MsgNotTaskOwner)
	}
	if task.PaymentStatus == models.PaymentStatusPaid {
		return apperrors.Conflict(apperrors.MsgTaskAlreadyPaid)
	}

	live := []string{models.TransactionStatusPending, models.TransactionStatusCompleted}
	payout, err := s.txs.ExistsForTask(ctx, taskID, models.TransactionTypePayout, live...)
	if err != nil {
		return apperrors.Internal(err)
	}
	if payout {
		return apperrors.Conflict(apperrors.MsgPayoutExists)
	}
	collected, err := s.txs.ExistsForTask(ctx, taskID, models.TransactionTypeCollection, live...)
	if err != nil {
		return apperrors.Internal(err)
	}
	if collected {
		return apperrors.Conflict(apperrors.MsgTaskHasFunds)
	}

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		if errors.Is(err, repositories.ErrStaleState) {
			return apperrors.Conflict(apperrors.MsgTaskChanged)
		}
		return apperrors.Internal(err)
	}
	zap.L().Info("task deleted", zap.Uint("task_id", taskID), zap.Uint("owner_id", callerID))
	return nil
}
