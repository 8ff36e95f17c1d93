package services

import (
	"context"
	"errors"

	"kazi/apperrors"
	"kazi/models"
	"kazi/repositories"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Events pushed over the realtime channel.
const (
	EventNewNotification = "newNotification"
	EventNewMessage      = "newMessage"
)

// Publisher delivers events to connected clients. Delivery is best effort.
type Publisher interface {
	NotifyUser(userID uint, event string, data interface{})
	BroadcastTask(taskID uint, event string, data interface{}, exceptUserID uint)
}

type nopPublisher struct{}

func (nopPublisher) NotifyUser(uint, string, interface{})          {}
func (nopPublisher) BroadcastTask(uint, string, interface{}, uint) {}

type NotifyInput struct {
	UserID        uint
	Type          string
	Message       string
	TaskID        *uint
	RelatedUserID *uint
}

type NotificationService struct {
	repo *repositories.NotificationRepository
	pub  Publisher
}

func NewNotificationService(repo *repositories.NotificationRepository, pub Publisher) *NotificationService {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &NotificationService{repo: repo, pub: pub}
}

// Notify stores the notification and pushes it to the user's connections.
func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) (*models.Notification, error) {
	typ := in.Type
	if typ == "" {
		typ = models.NotificationGeneral
	}
	n := &models.Notification{
		UserID:        in.UserID,
		Message:       in.Message,
		Type:          typ,
		TaskID:        in.TaskID,
		RelatedUserID: in.RelatedUserID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, apperrors.Internal(err)
	}
	s.pub.NotifyUser(n.UserID, EventNewNotification, n)
	return n, nil
}

// notify is the side-effect form used by state transitions: failures are
// logged and never returned.
func (s *NotificationService) notify(ctx context.Context, in NotifyInput) {
	if _, err := s.Notify(context.WithoutCancel(ctx), in); err != nil {
		zap.L().Warn("notification not delivered",
			zap.Uint("user_id", in.UserID),
			zap.String("type", in.Type),
			zap.Error(err))
	}
}

func (s *NotificationService) List(ctx context.Context, userID uint, page, limit int) ([]models.Notification, int64, error) {
	list, total, err := s.repo.ListByUser(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, apperrors.Internal(err)
	}
	return list, total, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	n, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return n, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	return notFoundAs(s.repo.MarkRead(ctx, userID, id), apperrors.MsgNotificationNotFound)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return n, nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	return notFoundAs(s.repo.Delete(ctx, userID, id), apperrors.MsgNotificationNotFound)
}

// notFoundAs maps a missing row to a NotFound error with messageID and any
// other failure to Internal.
func notFoundAs(err error, messageID string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.NotFound(messageID)
	default:
		return apperrors.Internal(err)
	}
}
