package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"kazi/apperrors"
	"kazi/database"
	"kazi/gateway"
	"kazi/models"
	"kazi/repositories"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type mockGateway struct {
	mock.Mock
}

func gatewayReturns(args mock.Arguments) (*gateway.Response, error) {
	resp, _ := args.Get(0).(*gateway.Response)
	return resp, args.Error(1)
}

func (m *mockGateway) SimulateC2B(ctx context.Context, phone string, amount decimal.Decimal, reference string) (*gateway.Response, error) {
	return gatewayReturns(m.Called(ctx, phone, amount, reference))
}

func (m *mockGateway) B2CPayment(ctx context.Context, p gateway.PayoutRequest) (*gateway.Response, error) {
	return gatewayReturns(m.Called(ctx, p))
}

func (m *mockGateway) RegisterURLs(ctx context.Context) (*gateway.Response, error) {
	return gatewayReturns(m.Called(ctx))
}

func (m *mockGateway) AccountBalance(ctx context.Context) (*gateway.Response, error) {
	return gatewayReturns(m.Called(ctx))
}

type published struct {
	userID, taskID, except uint
	event                  string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) NotifyUser(userID uint, event string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{userID: userID, event: event})
}

func (p *recordingPublisher) BroadcastTask(taskID uint, event string, _ interface{}, except uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{taskID: taskID, event: event, except: except})
}

type ServiceSuite struct {
	suite.Suite
	ctx context.Context
	db  *gorm.DB

	gw        *mockGateway
	pub       *recordingPublisher
	txRepo    *repositories.TransactionRepository
	notes     *NotificationService
	tasks     *TaskService
	payments  *PaymentService
	messages  *MessageService
	userRepo  *repositories.UserRepository
	taskRepo  *repositories.TaskRepository
	noteRepo  *repositories.NotificationRepository
	dashboard *repositories.DashboardRepository

	owner, worker, other models.User
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	db, err := database.OpenMemory()
	s.Require().NoError(err)
	x, err := database.SQLX(db, "sqlite")
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.db = db
	s.gw = new(mockGateway)
	s.pub = &recordingPublisher{}
	s.userRepo = repositories.NewUserRepository(db)
	s.taskRepo = repositories.NewTaskRepository(db)
	s.txRepo = repositories.NewTransactionRepository(db)
	s.noteRepo = repositories.NewNotificationRepository(db)
	s.dashboard = repositories.NewDashboardRepository(x)

	s.notes = NewNotificationService(s.noteRepo, s.pub)
	s.tasks = NewTaskService(s.taskRepo, s.txRepo, s.dashboard, s.notes)
	s.payments = NewPaymentService(s.taskRepo, s.txRepo, s.userRepo, s.tasks, s.notes, s.gw, 10)
	s.messages = NewMessageService(s.taskRepo, repositories.NewMessageRepository(db), s.pub)

	s.owner = s.user("Owner", "owner@example.com", "254711000001")
	s.worker = s.user("Worker", "worker@example.com", "254711000002")
	s.other = s.user("Other", "other@example.com", "254711000003")
}

func (s *ServiceSuite) user(name, email, phone string) models.User {
	u := models.User{Name: name, Email: email, Phone: phone, Password: "x"}
	s.Require().NoError(s.userRepo.Create(s.ctx, &u))
	return u
}

func (s *ServiceSuite) postTask(budget int64) *models.Task {
	task, err := s.tasks.Create(s.ctx, s.owner.ID, CreateTaskInput{
		Title:    "Deliver documents",
		Budget:   decimal.NewFromInt(budget),
		Category: "delivery",
	})
	s.Require().NoError(err)
	return task
}

// completedTask walks a task through apply, assign and complete by the worker.
func (s *ServiceSuite) completedTask(budget int64) *models.Task {
	task := s.postTask(budget)
	_, err := s.tasks.Apply(s.ctx, task.ID, s.worker.ID, "I can do it")
	s.Require().NoError(err)
	_, err = s.tasks.Assign(s.ctx, task.ID, s.owner.ID, s.worker.ID)
	s.Require().NoError(err)
	task, err = s.tasks.Complete(s.ctx, task.ID, s.worker.ID)
	s.Require().NoError(err)
	return task
}

func (s *ServiceSuite) collect(task *models.Task) *models.Transaction {
	s.gw.On("SimulateC2B", mock.Anything, "254711000001", mock.Anything, mock.Anything).
		Return(&gateway.Response{ConversationID: "AG_C", ResponseCode: "0"}, nil).Once()
	tx, err := s.payments.InitiateCollection(s.ctx, CollectionInput{TaskID: task.ID, CallerID: s.owner.ID})
	s.Require().NoError(err)
	s.Require().NoError(s.payments.HandleCollectionConfirmation(s.ctx, gateway.C2BCallback{
		TransID:       "QK12345",
		TransAmount:   "500",
		BillRefNumber: tx.Reference,
	}, []byte(`{"TransID":"QK12345"}`)))
	return tx
}

func (s *ServiceSuite) expectPayout(conversationID string) {
	s.gw.On("B2CPayment", mock.Anything, mock.AnythingOfType("gateway.PayoutRequest")).
		Return(&gateway.Response{ConversationID: conversationID, OriginatorConversationID: "OC_" + conversationID, ResponseCode: "0"}, nil).Once()
}

func (s *ServiceSuite) notificationsFor(userID uint, typ string) []models.Notification {
	var out []models.Notification
	s.Require().NoError(s.db.Where("user_id = ? AND type = ?", userID, typ).Find(&out).Error)
	return out
}

func (s *ServiceSuite) payoutCount(taskID uint, status string) int64 {
	var n int64
	s.Require().NoError(s.db.Model(&models.Transaction{}).
		Where("task_id = ? AND type = ? AND status = ?", taskID, models.TransactionTypePayout, status).
		Count(&n).Error)
	return n
}

func (s *ServiceSuite) requireKind(err error, kind apperrors.Kind, messageID string) {
	s.Require().Error(err)
	var appErr *apperrors.Error
	s.Require().True(errors.As(err, &appErr), "unexpected error %v", err)
	s.Equal(kind, appErr.Kind)
	if messageID != "" {
		s.Equal(messageID, appErr.MessageID)
	}
}

func (s *ServiceSuite) TestCommissionSplit() {
	c, n := CommissionSplit(decimal.NewFromInt(1000), decimal.NewFromInt(10))
	s.True(c.Equal(decimal.NewFromInt(100)))
	s.True(n.Equal(decimal.NewFromInt(900)))

	c, n = CommissionSplit(decimal.RequireFromString("333.33"), decimal.NewFromInt(10))
	s.Equal("33.33", c.StringFixed(2))
	s.Equal("300.00", n.StringFixed(2))
}

func (s *ServiceSuite) TestFullFlowPaysWorkerNetOfCommission() {
	task := s.completedTask(500)
	s.collect(task)

	s.gw.On("B2CPayment", mock.Anything, mock.MatchedBy(func(p gateway.PayoutRequest) bool {
		return p.Amount.Equal(decimal.NewFromInt(450)) && p.Phone == "254711000002"
	})).Return(&gateway.Response{ConversationID: "AG_P1", OriginatorConversationID: "OC_P1", ResponseCode: "0"}, nil).Once()

	payout, err := s.payments.InitiatePayout(s.ctx, PayoutInput{TaskID: task.ID, CallerID: s.owner.ID})
	s.Require().NoError(err)
	s.Equal(models.TransactionStatusPending, payout.Status)

	result := gateway.ResultEnvelope{Result: gateway.Result{
		ResultCode:     gateway.CodeOf(0),
		ResultDesc:     "The service request is processed successfully.",
		ConversationID: "AG_P1",
		TransactionID:  "NLJ41HAY6Q",
	}}
	raw := []byte(`{"Result":{"ResultCode":0,"ConversationID":"AG_P1"}}`)
	s.Require().NoError(s.payments.HandlePayoutResult(s.ctx, result, raw))

	got, err := s.tasks.Get(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(models.TaskStatusPaid, got.Status)
	s.Equal(models.PaymentStatusPaid, got.PaymentStatus)
	s.Require().NotNil(got.PaidAt)
	s.False(got.PaidAt.Before(*got.CompletedAt))

	tx, err := s.txRepo.FindByID(s.ctx, payout.ID)
	s.Require().NoError(err)
	s.Equal(models.TransactionStatusCompleted, tx.Status)
	s.Equal("500.00", tx.Amount.StringFixed(2))
	s.Equal("50.00", tx.Commission.StringFixed(2))
	s.Equal("450.00", tx.NetAmount.StringFixed(2))

	// paying again is refused before any gateway call
	_, err = s.payments.InitiatePayout(s.ctx, PayoutInput{TaskID: task.ID, CallerID: s.owner.ID})
	s.requireKind(err, apperrors.KindConflict, apperrors.MsgTaskAlreadyPaid)
	s.EqualValues(1, s.payoutCount(task.ID, models.TransactionStatusCompleted))

	// re-delivery changes nothing and notifies nobody
	s.Require().NoError(s.payments.HandlePayoutResult(s.ctx, result, raw))
	s.Len(s.notificationsFor(s.worker.ID, models.NotificationPayment), 1)
	tx, err = s.txRepo.FindByID(s.ctx, payout.ID)
	s.Require().NoError(err)
	s.Equal(models.TransactionStatusCompleted, tx.Status)

	s.gw.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestPayInProgressTaskIsRejectedWithoutRecord() {
	task := s.postTask(500)
	_, err := s.tasks.Apply(s.ctx, task.ID, s.worker.ID, "")
	s.Require().NoError(err)
	_, err = s.tasks.Assign(s.ctx, task.ID, s.owner.ID, s.worker.ID)
	s.Require().NoError(err)

	_, err = s.payments.InitiatePayout(s.ctx, PayoutInput{TaskID: task.ID, CallerID: s.owner.ID})
	s.requireKind(err, apperrors.KindConflict, apperrors.MsgTaskNotCompleted)

	var n int64
	s.Require().NoError(s.db.Model(&models.Transaction{}).Where("task_id = ?", task.ID).Count(&n).Error)
	s.Zero(n)
	s.gw.AssertNotCalled(s.T(), "B2CPayment", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestPayoutGuardOrder() {
	_, err := s.payments.InitiatePayout(s.ctx, PayoutInput{TaskID: 999, CallerID: s.owner.ID})
	s.requireKind(err, apperrors.KindNotFound, apperrors.MsgTaskNotFound)

	task := s.completedTask(500)
	_, err = s.payments.InitiatePayout(s.ctx, PayoutInput{TaskID: task.ID, CallerID: s.worker.ID})
	s.requireKind(err, apperrors.KindAuthorization, apperrors.MsgNotTaskOwner)

	_, err = s.payments.InitiatePayout(s.ctx, PayoutInput{TaskID: task.ID, CallerID: s.owner.ID})
	s.requireKind(err, apperrors.KindConflict, apperrors.MsgCollectionRequired)

	s.Zero(s.payoutCount(task.ID, models.TransactionStatusPending))
	s.gw.AssertNotCalled(s.T(), "B2CPayment", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestPayoutGatewayFailureKeepsPendingRecord() {
	task := s.completedTask(500)
	s.collect(task)

	s.gw.On("B2CPayment", mock.Anything, mock.Anything).
		Return(nil, apperrors.Gateway(apperrors.MsgGatewayUnavailable, errors.New("connection reset"))).Once()

	_, err := s.payments.InitiatePayout(s.ctx, PayoutInput{TaskID: task.ID, CallerID: s.owner.ID})
	s.requireKind(err, apperrors.KindGateway, apperrors.MsgGatewayUnavailable)

	var txs []models.Transaction
	s.Require().NoError(s.db.Where("task_id = ? AND type = ?", task.ID, models.TransactionTypePayout).Find(&txs).Error)
	s.Require().Len(txs, 1)
	s.Equal(models.TransactionStatusPending, txs[0].Status)
	s.Require().NotNil(txs[0].ErrorMessage)
	s.Contains(*txs[0].ErrorMessage, "connection reset")

	_, err = s.payments.InitiatePayout(s.ctx, PayoutInput{TaskID: task.ID, CallerID: s.owner.ID})
	s.requireKind(err, apperrors.KindConflict, apperrors.MsgPayoutExists)
}

func (s *ServiceSuite) TestFailedPayoutNotifiesOwnerAndAllowsRetry() {
	task := s.completedTask(500)
	s.collect(task)
	s.expectPayout("AG_F1")

	_, err := s.payments.InitiatePayout(s.ctx, PayoutInput{TaskID: task.ID, CallerID: s.owner.ID})
	s.Require().NoError(err)

	failed := gateway.ResultEnvelope{Result: gateway.Result{
		ResultCode:               gateway.CodeOf(2001),
		ResultDesc:               "The initiator information is invalid.",
		OriginatorConversationID: "OC_AG_F1",
	}}
	s.Require().NoError(s.payments.HandlePayoutResult(s.ctx, failed, []byte(`{}`)))
	s.Require().NoError(s.payments.HandlePayoutResult(s.ctx, failed, []byte(`{}`)))

	got, err := s.tasks.Get(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(models.TaskStatusCompleted, got.Status)
	s.Equal(models.PaymentStatusUnpaid, got.PaymentStatus)

	ownerPayments := s.notificationsFor(s.owner.ID, models.NotificationPayment)
	// one for the confirmed collection, one for the failed payout
	s.Len(ownerPayments, 2)
	s.Empty(s.notificationsFor(s.worker.ID, models.NotificationPayment))

	s.expectPayout("AG_F2")
	_, err = s.payments.InitiatePayout(s.ctx, PayoutInput{TaskID: task.ID, CallerID: s.owner.ID})
	s.NoError(err)
}

func (s *ServiceSuite) TestPayoutTimeout() {
	task := s.completedTask(500)
	s.collect(task)
	s.expectPayout("AG_T1")
	payout, err := s.payments.InitiatePayout(s.ctx, PayoutInput{TaskID: task.ID, CallerID: s.owner.ID})
	s.Require().NoError(err)

	s.Require().NoError(s.payments.HandlePayoutTimeout(s.ctx, gateway.ResultEnvelope{Result: gateway.Result{
		ResultCode: gateway.CodeOf(1), ConversationID: "AG_T1",
	}}, []byte(`{}`)))

	tx, err := s.txRepo.FindByID(s.ctx, payout.ID)
	s.Require().NoError(err)
	s.Equal(models.TransactionStatusTimeout, tx.Status)
	s.True(tx.CallbackReceived)
}

func (s *ServiceSuite) parkedCount() int64 {
	var n int64
	s.Require().NoError(s.db.Model(&models.ParkedCallback{}).Count(&n).Error)
	return n
}

func (s *ServiceSuite) TestPayoutResultDuringSubmissionIsApplied() {
	task := s.completedTask(500)
	s.collect(task)

	// the result arrives before B2CPayment has returned the conversation id
	s.gw.On("B2CPayment", mock.Anything, mock.AnythingOfType("gateway.PayoutRequest")).
		Run(func(mock.Arguments) {
			s.Require().NoError(s.payments.HandlePayoutResult(s.ctx, gateway.ResultEnvelope{Result: gateway.Result{
				ResultCode:     gateway.CodeOf(0),
				ConversationID: "AG_FAST",
				TransactionID:  "NLJ7RT61SV",
			}}, []byte(`{"Result":{"ResultCode":0,"ConversationID":"AG_FAST","TransactionID":"NLJ7RT61SV"}}`)))
			s.EqualValues(1, s.parkedCount())
		}).
		Return(&gateway.Response{ConversationID: "AG_FAST", ResponseCode: "0"}, nil).Once()

	payout, err := s.payments.InitiatePayout(s.ctx, PayoutInput{TaskID: task.ID, CallerID: s.owner.ID})
	s.Require().NoError(err)

	tx, err := s.txRepo.FindByID(s.ctx, payout.ID)
	s.Require().NoError(err)
	s.Equal(models.TransactionStatusCompleted, tx.Status)
	s.Equal("NLJ7RT61SV", tx.GatewayTransactionID)
	s.True(tx.CallbackReceived)
	s.Zero(s.parkedCount())

	got, err := s.tasks.Get(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(models.TaskStatusPaid, got.Status)
	s.Equal(models.PaymentStatusPaid, got.PaymentStatus)
	s.gw.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestPayoutResultMatchesOriginatorIDBeforeSubmission() {
	task := s.completedTask(500)
	s.collect(task)

	var sent string
	s.gw.On("B2CPayment", mock.Anything, mock.AnythingOfType("gateway.PayoutRequest")).
		Run(func(args mock.Arguments) {
			sent = args.Get(1).(gateway.PayoutRequest).OriginatorConversationID
			s.Require().NotEmpty(sent)
			s.Require().NoError(s.payments.HandlePayoutResult(s.ctx, gateway.ResultEnvelope{Result: gateway.Result{
				ResultCode:               gateway.CodeOf(2001),
				ResultDesc:               "The initiator information is invalid.",
				OriginatorConversationID: sent,
			}}, []byte(`{}`)))
		}).
		Return(&gateway.Response{ConversationID: "AG_ORIG", ResponseCode: "0"}, nil).Once()

	payout, err := s.payments.InitiatePayout(s.ctx, PayoutInput{TaskID: task.ID, CallerID: s.owner.ID})
	s.Require().NoError(err)

	tx, err := s.txRepo.FindByID(s.ctx, payout.ID)
	s.Require().NoError(err)
	s.Equal(sent, tx.OriginatorConversationID)
	s.Equal(models.TransactionStatusFailed, tx.Status)
	s.Equal("2001", tx.ResultCode)
	s.Zero(s.parkedCount())

	got, err := s.tasks.Get(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(models.PaymentStatusUnpaid, got.PaymentStatus)
}

func (s *ServiceSuite) TestPayoutResultWithoutCodeStaysPending() {
	task := s.completedTask(500)
	s.collect(task)
	s.expectPayout("AG_N1")
	payout, err := s.payments.InitiatePayout(s.ctx, PayoutInput{TaskID: task.ID, CallerID: s.owner.ID})
	s.Require().NoError(err)

	for _, body := range []string{
		`{"Result":{"ConversationID":"AG_N1"}}`,
		`{"Result":{"ResultCode":null,"ConversationID":"AG_N1"}}`,
		`{"Result":{"ResultCode":"","ConversationID":"AG_N1"}}`,
	} {
		var env gateway.ResultEnvelope
		s.Require().NoError(json.Unmarshal([]byte(body), &env))
		err := s.payments.HandlePayoutResult(s.ctx, env, []byte(body))
		s.requireKind(err, apperrors.KindValidation, apperrors.MsgInvalidCallback)
	}

	tx, err := s.txRepo.FindByID(s.ctx, payout.ID)
	s.Require().NoError(err)
	s.Equal(models.TransactionStatusPending, tx.Status)
	s.False(tx.CallbackReceived)

	got, err := s.tasks.Get(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(models.TaskStatusCompleted, got.Status)
	s.Equal(models.PaymentStatusUnpaid, got.PaymentStatus)
	s.Zero(s.parkedCount())
}

func (s *ServiceSuite) TestUnmatchedPayoutResultIsParked() {
	result := gateway.ResultEnvelope{Result: gateway.Result{ResultCode: gateway.CodeOf(0), ConversationID: "AG_UNKNOWN"}}
	s.Require().NoError(s.payments.HandlePayoutResult(s.ctx, result, nil))
	s.EqualValues(1, s.parkedCount())

	var parked models.ParkedCallback
	s.Require().NoError(s.db.First(&parked).Error)
	s.Equal(models.CallbackKindPayoutResult, parked.Kind)
	s.Equal("AG_UNKNOWN", parked.ConversationID)
	s.Contains(string(parked.Payload), "AG_UNKNOWN")

	err := s.payments.HandlePayoutTimeout(s.ctx, gateway.ResultEnvelope{}, []byte(`{}`))
	s.requireKind(err, apperrors.KindNotFound, apperrors.MsgTransactionNotFound)
	s.EqualValues(1, s.parkedCount())
}

func (s *ServiceSuite) TestCollectionRejectsAmountRoundingToZero() {
	task := s.postTask(500)
	_, err := s.payments.InitiateCollection(s.ctx, CollectionInput{
		TaskID: task.ID, CallerID: s.owner.ID, Amount: decimal.RequireFromString("0.40"),
	})
	s.requireKind(err, apperrors.KindValidation, apperrors.MsgInvalidAmount)

	var n int64
	s.Require().NoError(s.db.Model(&models.Transaction{}).Where("task_id = ?", task.ID).Count(&n).Error)
	s.Zero(n)
	s.gw.AssertNotCalled(s.T(), "SimulateC2B", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestShortCollectionPaymentFails() {
	task := s.completedTask(500)
	s.gw.On("SimulateC2B", mock.Anything, "254711000001", mock.Anything, mock.Anything).
		Return(&gateway.Response{ConversationID: "AG_C", ResponseCode: "0"}, nil).Twice()
	tx, err := s.payments.InitiateCollection(s.ctx, CollectionInput{TaskID: task.ID, CallerID: s.owner.ID})
	s.Require().NoError(err)

	s.Require().NoError(s.payments.HandleCollectionConfirmation(s.ctx, gateway.C2BCallback{
		TransID: "QK22222", TransAmount: "300", BillRefNumber: tx.Reference,
	}, []byte(`{"TransID":"QK22222"}`)))

	got, err := s.txRepo.FindByID(s.ctx, tx.ID)
	s.Require().NoError(err)
	s.Equal(models.TransactionStatusFailed, got.Status)
	s.Equal("short payment", got.ResultDesc)
	s.Equal("500.00", got.Amount.StringFixed(2))
	s.Len(s.notificationsFor(s.owner.ID, models.NotificationPayment), 1)

	_, err = s.payments.InitiatePayout(s.ctx, PayoutInput{TaskID: task.ID, CallerID: s.owner.ID})
	s.requireKind(err, apperrors.KindConflict, apperrors.MsgCollectionRequired)
	s.gw.AssertNotCalled(s.T(), "B2CPayment", mock.Anything, mock.Anything)

	// the failed collection frees the task for another attempt
	_, err = s.payments.InitiateCollection(s.ctx, CollectionInput{TaskID: task.ID, CallerID: s.owner.ID})
	s.NoError(err)
}

func (s *ServiceSuite) TestCollectionSettlesOnPaidAmount() {
	task := s.completedTask(500)
	s.gw.On("SimulateC2B", mock.Anything, "254711000001", mock.Anything, mock.Anything).
		Return(&gateway.Response{ConversationID: "AG_C", ResponseCode: "0"}, nil).Once()
	tx, err := s.payments.InitiateCollection(s.ctx, CollectionInput{TaskID: task.ID, CallerID: s.owner.ID})
	s.Require().NoError(err)
	s.Require().NoError(s.payments.HandleCollectionConfirmation(s.ctx, gateway.C2BCallback{
		TransID: "QK33333", TransAmount: "600", BillRefNumber: tx.Reference,
	}, []byte(`{"TransID":"QK33333"}`)))

	got, err := s.txRepo.FindByID(s.ctx, tx.ID)
	s.Require().NoError(err)
	s.Equal(models.TransactionStatusCompleted, got.Status)
	s.Equal("600.00", got.Amount.StringFixed(2))
	s.Equal("600.00", got.NetAmount.StringFixed(2))

	s.gw.On("B2CPayment", mock.Anything, mock.MatchedBy(func(p gateway.PayoutRequest) bool {
		return p.Amount.Equal(decimal.NewFromInt(540))
	})).Return(&gateway.Response{ConversationID: "AG_P6", ResponseCode: "0"}, nil).Once()
	payout, err := s.payments.InitiatePayout(s.ctx, PayoutInput{TaskID: task.ID, CallerID: s.owner.ID})
	s.Require().NoError(err)
	s.Equal("60.00", payout.Commission.StringFixed(2))
	s.gw.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestCollectionConfirmationIsIdempotent() {
	task := s.postTask(500)
	tx := s.collect(task)

	s.Require().NoError(s.payments.HandleCollectionConfirmation(s.ctx, gateway.C2BCallback{
		TransID: "QK12345", TransAmount: "500", BillRefNumber: tx.Reference,
	}, []byte(`{"TransID":"QK12345"}`)))

	var n int64
	s.Require().NoError(s.db.Model(&models.Transaction{}).
		Where("task_id = ? AND type = ? AND status = ?", task.ID, models.TransactionTypeCollection, models.TransactionStatusCompleted).
		Count(&n).Error)
	s.EqualValues(1, n)
	s.Len(s.notificationsFor(s.owner.ID, models.NotificationPayment), 1)

	_, err := s.payments.InitiateCollection(s.ctx, CollectionInput{TaskID: task.ID, CallerID: s.owner.ID})
	s.requireKind(err, apperrors.KindConflict, apperrors.MsgCollectionExists)

	err = s.payments.HandleCollectionValidation(s.ctx, gateway.C2BCallback{BillRefNumber: "UNKNOWN"})
	s.requireKind(err, apperrors.KindNotFound, apperrors.MsgTransactionNotFound)
}

func (s *ServiceSuite) TestCollectionRejectsBadPhone() {
	task := s.postTask(500)
	_, err := s.payments.InitiateCollection(s.ctx, CollectionInput{TaskID: task.ID, CallerID: s.owner.ID, Phone: "0812345678"})
	s.requireKind(err, apperrors.KindValidation, apperrors.MsgInvalidPhone)
	s.gw.AssertNotCalled(s.T(), "SimulateC2B", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestGetTransactionHidesOtherUsers() {
	task := s.postTask(500)
	tx := s.collect(task)

	_, err := s.payments.GetTransaction(s.ctx, s.other.ID, tx.ID)
	s.requireKind(err, apperrors.KindNotFound, apperrors.MsgTransactionNotFound)

	got, err := s.payments.GetTransaction(s.ctx, s.owner.ID, tx.ID)
	s.Require().NoError(err)
	s.Equal(tx.Reference, got.Reference)
}

func (s *ServiceSuite) TestApplyTwiceIsConflict() {
	task := s.postTask(300)
	_, err := s.tasks.Apply(s.ctx, task.ID, s.worker.ID, "first")
	s.Require().NoError(err)

	_, err = s.tasks.Apply(s.ctx, task.ID, s.worker.ID, "again")
	s.requireKind(err, apperrors.KindConflict, apperrors.MsgAlreadyApplied)

	got, err := s.tasks.Get(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Len(got.Applicants, 1)

	_, err = s.tasks.Apply(s.ctx, task.ID, s.owner.ID, "")
	s.requireKind(err, apperrors.KindAuthorization, apperrors.MsgOwnerCannotApply)
}

func (s *ServiceSuite) TestAssignNonApplicantLeavesTaskUnchanged() {
	task := s.postTask(300)
	_, err := s.tasks.Apply(s.ctx, task.ID, s.worker.ID, "")
	s.Require().NoError(err)

	_, err = s.tasks.Assign(s.ctx, task.ID, s.owner.ID, s.other.ID)
	s.requireKind(err, apperrors.KindConflict, apperrors.MsgNotAnApplicant)

	_, err = s.tasks.Assign(s.ctx, task.ID, s.worker.ID, s.worker.ID)
	s.requireKind(err, apperrors.KindAuthorization, apperrors.MsgNotTaskOwner)

	got, err := s.tasks.Get(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(models.TaskStatusOpen, got.Status)
	s.Nil(got.AssignedToID)
}

func (s *ServiceSuite) TestReassignReplacesAssignee() {
	task := s.postTask(300)
	for _, u := range []uint{s.worker.ID, s.other.ID} {
		_, err := s.tasks.Apply(s.ctx, task.ID, u, "")
		s.Require().NoError(err)
	}
	_, err := s.tasks.Assign(s.ctx, task.ID, s.owner.ID, s.worker.ID)
	s.Require().NoError(err)
	got, err := s.tasks.Assign(s.ctx, task.ID, s.owner.ID, s.other.ID)
	s.Require().NoError(err)
	s.True(got.IsAssignee(s.other.ID))
	s.Equal(models.TaskStatusInProgress, got.Status)
}

func (s *ServiceSuite) TestCompleteByOtherUserIsAuthorizationError() {
	task := s.postTask(300)
	_, err := s.tasks.Apply(s.ctx, task.ID, s.worker.ID, "")
	s.Require().NoError(err)
	_, err = s.tasks.Assign(s.ctx, task.ID, s.owner.ID, s.worker.ID)
	s.Require().NoError(err)

	_, err = s.tasks.Complete(s.ctx, task.ID, s.other.ID)
	s.requireKind(err, apperrors.KindAuthorization, apperrors.MsgNotAssignee)

	got, err := s.tasks.Get(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(models.TaskStatusInProgress, got.Status)
	s.Nil(got.CompletedAt)

	got, err = s.tasks.Complete(s.ctx, task.ID, s.worker.ID)
	s.Require().NoError(err)
	s.Equal(models.TaskStatusCompleted, got.Status)
	_, err = s.tasks.Complete(s.ctx, task.ID, s.worker.ID)
	s.requireKind(err, apperrors.KindConflict, apperrors.MsgTaskNotInProgress)
}

func (s *ServiceSuite) TestCreateValidation() {
	_, err := s.tasks.Create(s.ctx, s.owner.ID, CreateTaskInput{Title: "ok title", Budget: decimal.Zero, Category: "tech"})
	s.requireKind(err, apperrors.KindValidation, apperrors.MsgInvalidBudget)
	_, err = s.tasks.Create(s.ctx, s.owner.ID, CreateTaskInput{Title: "ok title", Budget: decimal.NewFromInt(5), Category: "gardening"})
	s.requireKind(err, apperrors.KindValidation, apperrors.MsgInvalidCategory)
	_, err = s.tasks.Create(s.ctx, s.owner.ID, CreateTaskInput{Title: "ab", Budget: decimal.NewFromInt(5), Category: "tech"})
	s.requireKind(err, apperrors.KindValidation, apperrors.MsgInvalidTitle)
}

func (s *ServiceSuite) TestNotificationsListedNewestFirst() {
	task := s.postTask(300)
	_, err := s.tasks.Apply(s.ctx, task.ID, s.worker.ID, "")
	s.Require().NoError(err)
	_, err = s.tasks.Apply(s.ctx, task.ID, s.other.ID, "")
	s.Require().NoError(err)

	list, total, err := s.notes.List(s.ctx, s.owner.ID, 1, 20)
	s.Require().NoError(err)
	s.EqualValues(2, total)
	s.Require().Len(list, 2)
	s.Equal(s.other.ID, *list[0].RelatedUserID)
	s.Equal(s.worker.ID, *list[1].RelatedUserID)
	s.False(list[0].CreatedAt.Before(list[1].CreatedAt))

	pushed := 0
	for _, e := range s.pub.events {
		if e.userID == s.owner.ID && e.event == EventNewNotification {
			pushed++
		}
	}
	s.Equal(2, pushed)

	s.requireKind(s.notes.MarkRead(s.ctx, s.worker.ID, list[0].ID), apperrors.KindNotFound, apperrors.MsgNotificationNotFound)
	s.Require().NoError(s.notes.MarkRead(s.ctx, s.owner.ID, list[0].ID))
	n, err := s.notes.UnreadCount(s.ctx, s.owner.ID)
	s.Require().NoError(err)
	s.EqualValues(1, n)
}

func (s *ServiceSuite) TestDeleteBlockedOnceFundsCollected() {
	task := s.postTask(500)
	s.collect(task)
	s.requireKind(s.tasks.Delete(s.ctx, task.ID, s.owner.ID), apperrors.KindConflict, apperrors.MsgTaskHasFunds)

	fresh := s.postTask(200)
	s.requireKind(s.tasks.Delete(s.ctx, fresh.ID, s.worker.ID), apperrors.KindAuthorization, apperrors.MsgNotTaskOwner)
	s.Require().NoError(s.tasks.Delete(s.ctx, fresh.ID, s.owner.ID))
	_, err := s.tasks.Get(s.ctx, fresh.ID)
	s.requireKind(err, apperrors.KindNotFound, apperrors.MsgTaskNotFound)
}

func (s *ServiceSuite) TestDashboardViews() {
	done := s.completedTask(400)
	open := s.postTask(100)
	_, err := s.tasks.Apply(s.ctx, open.ID, s.worker.ID, "")
	s.Require().NoError(err)

	completed, err := s.tasks.View(s.ctx, s.worker.ID, ViewCompleted)
	s.Require().NoError(err)
	s.Require().Len(completed, 1)
	s.Equal(done.ID, completed[0].ID)

	applied, err := s.tasks.View(s.ctx, s.worker.ID, ViewApplied)
	s.Require().NoError(err)
	s.Len(applied, 2)

	mine, err := s.tasks.View(s.ctx, s.owner.ID, ViewMyTasks)
	s.Require().NoError(err)
	s.Len(mine, 2)

	_, err = s.tasks.Dashboard(s.ctx, s.owner.ID, DashboardQuery{Role: "admin"})
	s.requireKind(err, apperrors.KindValidation, apperrors.MsgInvalidRoleFilter)
	rows, err := s.tasks.Dashboard(s.ctx, s.owner.ID, DashboardQuery{Role: "owner", Status: models.TaskStatusOpen})
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(open.ID, rows[0].ID)
}

func (s *ServiceSuite) TestMessagesParticipantsOnly() {
	task := s.postTask(300)
	_, err := s.tasks.Apply(s.ctx, task.ID, s.worker.ID, "")
	s.Require().NoError(err)

	_, err = s.messages.Send(s.ctx, task.ID, s.other.ID, "hello")
	s.requireKind(err, apperrors.KindAuthorization, apperrors.MsgNotParticipant)

	_, err = s.messages.Send(s.ctx, task.ID, s.worker.ID, "   ")
	s.requireKind(err, apperrors.KindValidation, apperrors.MsgInvalidMessage)

	m, err := s.messages.Send(s.ctx, task.ID, s.worker.ID, " when do you need it? ")
	s.Require().NoError(err)
	s.Equal("when do you need it?", m.Content)

	last := s.pub.events[len(s.pub.events)-1]
	s.Equal(EventNewMessage, last.event)
	s.Equal(task.ID, last.taskID)
	s.Equal(s.worker.ID, last.except)

	n, err := s.messages.MarkRead(s.ctx, task.ID, s.owner.ID)
	s.Require().NoError(err)
	s.EqualValues(1, n)

	list, err := s.messages.ListByTask(s.ctx, task.ID, s.owner.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.True(list[0].IsRead)
}
