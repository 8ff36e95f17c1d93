package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kazi/apperrors"
	"kazi/gateway"
	"kazi/models"
	"kazi/repositories"
	"kazi/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentGateway is the subset of the mobile-money client the payment flow
// needs.
type PaymentGateway interface {
	SimulateC2B(ctx context.Context, phone string, amount decimal.Decimal, reference string) (*gateway.Response, error)
	B2CPayment(ctx context.Context, p gateway.PayoutRequest) (*gateway.Response, error)
	RegisterURLs(ctx context.Context) (*gateway.Response, error)
	AccountBalance(ctx context.Context) (*gateway.Response, error)
}

const (
	collectionRefPrefix = "KC"
	payoutRefPrefix     = "KP"

	shortPaymentDesc = "short payment"
)

var hundred = decimal.NewFromInt(100)

// CommissionSplit returns the platform commission on amount, rounded to
// cents, and what is left for the worker.
func CommissionSplit(amount, percent decimal.Decimal) (commission, net decimal.Decimal) {
	commission = amount.Mul(percent).Div(hundred).Round(2)
	return commission, amount.Sub(commission)
}

type CollectionInput struct {
	TaskID   uint
	CallerID uint
	Phone    string
	// Amount defaults to the task budget when zero.
	Amount decimal.Decimal
}

type PayoutInput struct {
	TaskID   uint
	CallerID uint
	// Phone defaults to the assignee's registered number when empty.
	Phone string
}

type PaymentService struct {
	tasks      *repositories.TaskRepository
	txs        *repositories.TransactionRepository
	users      *repositories.UserRepository
	taskSvc    *TaskService
	notifier   *NotificationService
	gw         PaymentGateway
	commission decimal.Decimal
	now        func() time.Time
}

func NewPaymentService(
	tasks *repositories.TaskRepository,
	txs *repositories.TransactionRepository,
	users *repositories.UserRepository,
	taskSvc *TaskService,
	notifier *NotificationService,
	gw PaymentGateway,
	commissionPercent int,
) *PaymentService {
	if commissionPercent < 0 || commissionPercent > 100 {
		commissionPercent = 10
	}
	return &PaymentService{
		tasks:      tasks,
		txs:        txs,
		users:      users,
		taskSvc:    taskSvc,
		notifier:   notifier,
		gw:         gw,
		commission: decimal.NewFromInt(int64(commissionPercent)),
		now:        time.Now,
	}
}

// InitiateCollection asks the payer's wallet for the task money. The pending
// transaction is written before the gateway call and survives its failure.
func (s *PaymentService) InitiateCollection(ctx context.Context, in CollectionInput) (*models.Transaction, error) {
	task, err := s.loadTask(ctx, in.TaskID)
	if err != nil {
		return nil, err
	}
	if task.PostedByID != in.CallerID {
		return nil, apperrors.Authorization(apperrors.MsgNotTaskOwner)
	}
	if task.PaymentStatus == models.PaymentStatusPaid {
		return nil, apperrors.Conflict(apperrors.MsgTaskAlreadyPaid)
	}
	if task.Status == models.TaskStatusCancelled {
		return nil, apperrors.Conflict(apperrors.MsgTaskCancelled)
	}
	exists, err := s.txs.ExistsForTask(ctx, task.ID, models.TransactionTypeCollection,
		models.TransactionStatusPending, models.TransactionStatusCompleted)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if exists {
		return nil, apperrors.Conflict(apperrors.MsgCollectionExists)
	}

	amount := in.Amount
	if amount.IsZero() {
		amount = task.Budget
	}
	// the gateway only moves whole currency units
	if !amount.IsPositive() || gateway.WholeAmount(amount) <= 0 {
		return nil, apperrors.Validation(apperrors.MsgInvalidAmount)
	}
	phone, err := s.resolvePhone(ctx, in.Phone, task.PostedByID)
	if err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		Type:        models.TransactionTypeCollection,
		Reference:   utils.GenerateReference(collectionRefPrefix, task.ID),
		Amount:      amount.Round(2),
		Commission:  decimal.Zero,
		NetAmount:   amount.Round(2),
		PhoneNumber: phone,
		FromUserID:  &task.PostedByID,
		TaskID:      task.ID,
		Status:      models.TransactionStatusPending,
		ActiveKey:   models.ActiveKeyFor(models.TransactionTypeCollection, task.ID),
		InitiatedAt: s.now(),
	}
	if err := s.record(ctx, tx, apperrors.MsgCollectionExists); err != nil {
		return nil, err
	}

	resp, err := s.gw.SimulateC2B(ctx, phone, tx.Amount, tx.Reference)
	if err != nil {
		return nil, s.submissionFailed(ctx, tx, err)
	}
	s.submitted(ctx, tx, resp)
	return tx, nil
}

// InitiatePayout pays the assignee of a completed task. Every eligibility
// check runs before anything is written or sent.
func (s *PaymentService) InitiatePayout(ctx context.Context, in PayoutInput) (*models.Transaction, error) {
	task, err := s.loadTask(ctx, in.TaskID)
	if err != nil {
		return nil, err
	}
	if task.PostedByID != in.CallerID {
		return nil, apperrors.Authorization(apperrors.MsgNotTaskOwner)
	}
	if task.PaymentStatus == models.PaymentStatusPaid || task.Status == models.TaskStatusPaid {
		return nil, apperrors.Conflict(apperrors.MsgTaskAlreadyPaid)
	}
	if task.Status != models.TaskStatusCompleted {
		return nil, apperrors.Conflict(apperrors.MsgTaskNotCompleted)
	}
	if task.AssignedToID == nil {
		return nil, apperrors.Conflict(apperrors.MsgTaskNotAssigned)
	}
	collection, err := s.txs.FindCompletedCollection(ctx, task.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Conflict(apperrors.MsgCollectionRequired)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	exists, err := s.txs.ExistsForTask(ctx, task.ID, models.TransactionTypePayout,
		models.TransactionStatusPending, models.TransactionStatusCompleted)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if exists {
		return nil, apperrors.Conflict(apperrors.MsgPayoutExists)
	}
	phone, err := s.resolvePhone(ctx, in.Phone, *task.AssignedToID)
	if err != nil {
		return nil, err
	}

	amount := collection.Amount
	if amount.IsZero() {
		amount = task.Budget
	}
	commission, net := CommissionSplit(amount, s.commission)
	if gateway.WholeAmount(net) <= 0 {
		return nil, apperrors.Validation(apperrors.MsgInvalidAmount)
	}
	tx := &models.Transaction{
		Type:        models.TransactionTypePayout,
		Reference:   utils.GenerateReference(payoutRefPrefix, task.ID),
		Amount:      amount,
		Commission:  commission,
		NetAmount:   net,
		PhoneNumber: phone,
		FromUserID:  &task.PostedByID,
		ToUserID:    task.AssignedToID,
		TaskID:      task.ID,
		Status:      models.TransactionStatusPending,
		ActiveKey:   models.ActiveKeyFor(models.TransactionTypePayout, task.ID),
		InitiatedAt: s.now(),
		// stored before submission so an early result callback still matches
		OriginatorConversationID: uuid.NewString(),
	}
	if err := s.record(ctx, tx, apperrors.MsgPayoutExists); err != nil {
		return nil, err
	}

	resp, err := s.gw.B2CPayment(ctx, gateway.PayoutRequest{
		Phone:    phone,
		Amount:   net,
		Remarks:  fmt.Sprintf("Payment for task %d", task.ID),
		Occasion: tx.Reference,

		OriginatorConversationID: tx.OriginatorConversationID,
	})
	if err != nil {
		return nil, s.submissionFailed(ctx, tx, err)
	}
	s.submitted(ctx, tx, resp)
	zap.L().Info("payout submitted",
		zap.Uint("task_id", task.ID),
		zap.String("reference", tx.Reference),
		zap.String("net_amount", net.StringFixed(2)))
	return tx, nil
}

// HandleCollectionConfirmation settles the collection named by the bill
// reference. Re-deliveries only mark the callback as received.
func (s *PaymentService) HandleCollectionConfirmation(ctx context.Context, cb gateway.C2BCallback, raw []byte) error {
	tx, err := s.txs.FindByReference(ctx, cb.BillRefNumber)
	if err != nil {
		return notFoundAs(err, apperrors.MsgTransactionNotFound)
	}
	if tx.Type != models.TransactionTypeCollection {
		return apperrors.NotFound(apperrors.MsgTransactionNotFound)
	}
	update := repositories.TerminalUpdate{
		Status:               models.TransactionStatusCompleted,
		ResultCode:           "0",
		ResultDesc:           "Payment confirmed",
		GatewayTransactionID: cb.TransID,
		Raw:                  raw,
		At:                   s.now(),
	}
	// a short payment fails the collection, any other amount is what the
	// payout is later computed from
	if paid, err := decimal.NewFromString(cb.TransAmount.String()); err == nil && !paid.Equal(tx.Amount) {
		zap.L().Warn("collection amount differs from request",
			zap.String("reference", tx.Reference),
			zap.String("requested", tx.Amount.StringFixed(2)),
			zap.String("paid", paid.StringFixed(2)))
		if paid.LessThan(decimal.NewFromInt(gateway.WholeAmount(tx.Amount))) {
			update.Status = models.TransactionStatusFailed
			update.ResultCode = ""
			update.ResultDesc = shortPaymentDesc
		} else {
			settled := paid.Round(2)
			update.SettledAmount = &settled
			tx.Amount = settled
		}
	}

	applied, err := s.txs.Finalize(ctx, tx.ID, update)
	if err != nil {
		return apperrors.Internal(err)
	}
	if !applied {
		return s.redelivered(ctx, tx)
	}
	if update.Status == models.TransactionStatusFailed {
		if tx.FromUserID != nil {
			s.notifier.notify(ctx, NotifyInput{
				UserID:  *tx.FromUserID,
				Type:    models.NotificationPayment,
				Message: fmt.Sprintf("Payment for task %d was less than KES %s and was not accepted", tx.TaskID, tx.Amount.StringFixed(2)),
				TaskID:  &tx.TaskID,
			})
		}
		return nil
	}

	task, err := s.tasks.FindByID(ctx, tx.TaskID)
	if err != nil {
		zap.L().Warn("collection confirmed for missing task", zap.Uint("task_id", tx.TaskID), zap.Error(err))
		return nil
	}
	s.notifier.notify(ctx, NotifyInput{
		UserID:  task.PostedByID,
		Type:    models.NotificationPayment,
		Message: fmt.Sprintf("Payment of KES %s received for %q", tx.Amount.StringFixed(2), task.Title),
		TaskID:  &task.ID,
	})
	return nil
}

// HandleCollectionValidation checks that a reference belongs to a pending
// collection. The answer is informational only.
func (s *PaymentService) HandleCollectionValidation(ctx context.Context, cb gateway.C2BCallback) error {
	tx, err := s.txs.FindByReference(ctx, cb.BillRefNumber)
	if err != nil {
		return notFoundAs(err, apperrors.MsgTransactionNotFound)
	}
	if tx.Type != models.TransactionTypeCollection || tx.Status != models.TransactionStatusPending {
		return apperrors.Conflict(apperrors.MsgCollectionExists)
	}
	return nil
}

// HandlePayoutResult settles a payout from its result callback. A result
// without a result code leaves the payout pending for reconciliation.
func (s *PaymentService) HandlePayoutResult(ctx context.Context, env gateway.ResultEnvelope, raw []byte) error {
	return s.settlePayout(ctx, models.CallbackKindPayoutResult, env, raw, true)
}

func (s *PaymentService) HandlePayoutTimeout(ctx context.Context, env gateway.ResultEnvelope, raw []byte) error {
	return s.settlePayout(ctx, models.CallbackKindPayoutTimeout, env, raw, true)
}

// settlePayout applies a result or timeout callback. When no transaction
// carries its ids yet and park is set, the callback is parked and replayed
// by submitted.
func (s *PaymentService) settlePayout(ctx context.Context, kind string, env gateway.ResultEnvelope, raw []byte, park bool) error {
	res := env.Result
	status := models.TransactionStatusTimeout
	if kind == models.CallbackKindPayoutResult {
		if !res.ResultCode.Set {
			zap.L().Warn("payout result without result code, left pending",
				zap.String("conversation_id", res.ConversationID),
				zap.String("originator_conversation_id", res.OriginatorConversationID),
				zap.String("result_desc", res.ResultDesc))
			return apperrors.Validation(apperrors.MsgInvalidCallback)
		}
		status = models.TransactionStatusFailed
		if res.Succeeded() {
			status = models.TransactionStatusCompleted
		}
	}

	tx, err := s.txs.FindByConversation(ctx, res.ConversationID, res.OriginatorConversationID)
	if errors.Is(err, gorm.ErrRecordNotFound) && park {
		return s.park(ctx, kind, env, raw)
	}
	if err != nil {
		return notFoundAs(err, apperrors.MsgTransactionNotFound)
	}
	if tx.Type != models.TransactionTypePayout {
		return apperrors.NotFound(apperrors.MsgTransactionNotFound)
	}

	applied, err := s.txs.Finalize(ctx, tx.ID, repositories.TerminalUpdate{
		Status:               status,
		ResultCode:           res.ResultCode.String(),
		ResultDesc:           res.ResultDesc,
		GatewayTransactionID: res.TransactionID,
		Raw:                  raw,
		At:                   s.now(),
	})
	if err != nil {
		return apperrors.Internal(err)
	}
	if !applied {
		return s.redelivered(ctx, tx)
	}

	if status == models.TransactionStatusCompleted {
		paid, err := s.taskSvc.MarkPaid(ctx, tx.TaskID, tx.NetAmount)
		if err != nil {
			return err
		}
		if !paid {
			zap.L().Warn("payout completed for task not awaiting payment",
				zap.Uint("task_id", tx.TaskID), zap.String("reference", tx.Reference))
		}
		return nil
	}

	zap.L().Warn("payout did not complete",
		zap.Uint("task_id", tx.TaskID),
		zap.String("status", status),
		zap.String("result_code", res.ResultCode.String()),
		zap.String("result_desc", res.ResultDesc))
	if tx.FromUserID == nil {
		return nil
	}
	msg := fmt.Sprintf("Payout of KES %s for task %d failed: %s", tx.NetAmount.StringFixed(2), tx.TaskID, res.ResultDesc)
	if status == models.TransactionStatusTimeout {
		msg = fmt.Sprintf("Payout of KES %s for task %d timed out, you can retry", tx.NetAmount.StringFixed(2), tx.TaskID)
	}
	s.notifier.notify(ctx, NotifyInput{
		UserID:  *tx.FromUserID,
		Type:    models.NotificationPayment,
		Message: msg,
		TaskID:  &tx.TaskID,
	})
	return nil
}

// park stores a payout callback that matched no transaction. The lookup is
// repeated afterwards in case the ids were recorded in between.
func (s *PaymentService) park(ctx context.Context, kind string, env gateway.ResultEnvelope, raw []byte) error {
	res := env.Result
	if res.ConversationID == "" && res.OriginatorConversationID == "" {
		return apperrors.NotFound(apperrors.MsgTransactionNotFound)
	}
	payload := raw
	if !json.Valid(payload) {
		b, err := json.Marshal(env)
		if err != nil {
			return apperrors.Internal(err)
		}
		payload = b
	}
	err := s.txs.ParkCallback(ctx, &models.ParkedCallback{
		Kind:                     kind,
		ConversationID:           res.ConversationID,
		OriginatorConversationID: res.OriginatorConversationID,
		Payload:                  datatypes.JSON(payload),
		ReceivedAt:               s.now(),
	})
	if err != nil {
		return apperrors.Internal(err)
	}
	zap.L().Info("payout callback parked",
		zap.String("kind", kind),
		zap.String("conversation_id", res.ConversationID),
		zap.String("originator_conversation_id", res.OriginatorConversationID))

	if tx, err := s.txs.FindByConversation(ctx, res.ConversationID, res.OriginatorConversationID); err == nil {
		s.replayParked(ctx, tx)
	}
	return nil
}

// replayParked applies callbacks parked for tx. Finalize is conditional on
// pending, so a callback replayed twice settles once.
func (s *PaymentService) replayParked(ctx context.Context, tx *models.Transaction) {
	parked, err := s.txs.TakeParkedCallbacks(ctx, tx.ConversationID, tx.OriginatorConversationID)
	if err != nil {
		zap.L().Error("failed to load parked callbacks", zap.Uint("transaction_id", tx.ID), zap.Error(err))
		return
	}
	for _, p := range parked {
		var env gateway.ResultEnvelope
		if err := json.Unmarshal(p.Payload, &env); err != nil {
			zap.L().Warn("dropping unreadable parked callback", zap.Uint("parked_id", p.ID), zap.Error(err))
			continue
		}
		if err := s.settlePayout(ctx, p.Kind, env, p.Payload, false); err != nil {
			zap.L().Warn("parked callback not applied",
				zap.Uint("transaction_id", tx.ID), zap.String("kind", p.Kind), zap.Error(err))
		}
	}
}

// HandleBalanceResult records the outcome of a balance inquiry in the log.
func (s *PaymentService) HandleBalanceResult(_ context.Context, env gateway.ResultEnvelope) error {
	balance, _ := env.Result.Param("AccountBalance")
	zap.L().Info("account balance result",
		zap.String("result_code", env.Result.ResultCode.String()),
		zap.String("result_desc", env.Result.ResultDesc),
		zap.Any("balance", balance))
	return nil
}

func (s *PaymentService) ListTransactions(ctx context.Context, userID uint, f repositories.TransactionFilter) ([]models.Transaction, int64, error) {
	list, total, err := s.txs.ListForUser(ctx, userID, f)
	if err != nil {
		return nil, 0, apperrors.Internal(err)
	}
	return list, total, nil
}

// GetTransaction hides transactions the user is not a party to.
func (s *PaymentService) GetTransaction(ctx context.Context, userID, id uint) (*models.Transaction, error) {
	tx, err := s.txs.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, apperrors.MsgTransactionNotFound)
	}
	if (tx.FromUserID == nil || *tx.FromUserID != userID) && (tx.ToUserID == nil || *tx.ToUserID != userID) {
		return nil, apperrors.NotFound(apperrors.MsgTransactionNotFound)
	}
	return tx, nil
}

func (s *PaymentService) RegisterCallbackURLs(ctx context.Context) (*gateway.Response, error) {
	resp, err := s.gw.RegisterURLs(ctx)
	if err != nil {
		return nil, gatewayError(err)
	}
	return resp, nil
}

func (s *PaymentService) BalanceInquiry(ctx context.Context) (*gateway.Response, error) {
	resp, err := s.gw.AccountBalance(ctx)
	if err != nil {
		return nil, gatewayError(err)
	}
	return resp, nil
}

func (s *PaymentService) loadTask(ctx context.Context, id uint) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, apperrors.MsgTaskNotFound)
	}
	return task, nil
}

func (s *PaymentService) resolvePhone(ctx context.Context, raw string, fallbackUserID uint) (string, error) {
	if raw == "" {
		u, err := s.users.FindByID(ctx, fallbackUserID)
		if err != nil {
			return "", notFoundAs(err, apperrors.MsgUserNotFound)
		}
		raw = u.Phone
	}
	return gateway.NormalizePhone(raw)
}

func (s *PaymentService) record(ctx context.Context, tx *models.Transaction, duplicateMsg string) error {
	err := s.txs.Create(ctx, tx)
	if errors.Is(err, repositories.ErrDuplicateActive) {
		return apperrors.Conflict(duplicateMsg)
	}
	if err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// submissionFailed keeps the pending row for reconciliation and stores the
// reason on it.
func (s *PaymentService) submissionFailed(ctx context.Context, tx *models.Transaction, cause error) error {
	if err := s.txs.RecordFailure(context.WithoutCancel(ctx), tx.ID, cause.Error()); err != nil {
		zap.L().Error("failed to record gateway failure", zap.Uint("transaction_id", tx.ID), zap.Error(err))
	}
	msg := cause.Error()
	tx.ErrorMessage = &msg
	zap.L().Warn("gateway request failed",
		zap.String("type", tx.Type),
		zap.String("reference", tx.Reference),
		zap.Error(cause))
	return gatewayError(cause)
}

func (s *PaymentService) submitted(ctx context.Context, tx *models.Transaction, resp *gateway.Response) {
	if resp == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	tx.ConversationID = resp.ConversationID
	if resp.OriginatorConversationID != "" {
		tx.OriginatorConversationID = resp.OriginatorConversationID
	}
	if err := s.txs.RecordSubmission(ctx, tx.ID, tx.ConversationID, tx.OriginatorConversationID); err != nil {
		zap.L().Error("failed to record gateway ids", zap.Uint("transaction_id", tx.ID), zap.Error(err))
		return
	}
	if tx.Type == models.TransactionTypePayout {
		s.replayParked(ctx, tx)
	}
}

func (s *PaymentService) redelivered(ctx context.Context, tx *models.Transaction) error {
	zap.L().Info("callback for settled transaction ignored",
		zap.String("reference", tx.Reference), zap.String("status", tx.Status))
	if err := s.txs.MarkCallbackReceived(ctx, tx.ID); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

func gatewayError(err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Gateway(apperrors.MsgGatewayUnavailable, err)
}
