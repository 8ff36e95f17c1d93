package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"kazi/apperrors"
	"kazi/models"
	"kazi/repositories"
)

const maxMessageLength = 2000

type MessageService struct {
	tasks *repositories.TaskRepository
	msgs  *repositories.MessageRepository
	pub   Publisher
}

func NewMessageService(tasks *repositories.TaskRepository, msgs *repositories.MessageRepository, pub Publisher) *MessageService {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &MessageService{tasks: tasks, msgs: msgs, pub: pub}
}

// IsParticipant reports whether userID may read and post in the task chat.
func (s *MessageService) IsParticipant(ctx context.Context, taskID, userID uint) (bool, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return false, notFoundAs(err, apperrors.MsgTaskNotFound)
	}
	return task.IsParticipant(userID), nil
}

func (s *MessageService) requireParticipant(ctx context.Context, taskID, userID uint) error {
	ok, err := s.IsParticipant(ctx, taskID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Authorization(apperrors.MsgNotParticipant)
	}
	return nil
}

func (s *MessageService) ListByTask(ctx context.Context, taskID, userID uint) ([]models.Message, error) {
	if err := s.requireParticipant(ctx, taskID, userID); err != nil {
		return nil, err
	}
	list, err := s.msgs.ListByTask(ctx, taskID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return list, nil
}

// Send stores the message and fans it out to everyone watching the task
// except the sender.
func (s *MessageService) Send(ctx context.Context, taskID, senderID uint, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(content); n == 0 || n > maxMessageLength {
		return nil, apperrors.Validation(apperrors.MsgInvalidMessage)
	}
	if err := s.requireParticipant(ctx, taskID, senderID); err != nil {
		return nil, err
	}
	m := &models.Message{TaskID: taskID, SenderID: senderID, Content: content}
	if err := s.msgs.Create(ctx, m); err != nil {
		return nil, apperrors.Internal(err)
	}
	s.pub.BroadcastTask(taskID, EventNewMessage, m, senderID)
	return m, nil
}

func (s *MessageService) MarkRead(ctx context.Context, taskID, userID uint) (int64, error) {
	if err := s.requireParticipant(ctx, taskID, userID); err != nil {
		return 0, err
	}
	n, err := s.msgs.MarkReadForUser(ctx, taskID, userID)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return n, nil
}
