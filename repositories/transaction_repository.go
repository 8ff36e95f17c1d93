package repositories

import (
	"context"
	"errors"
	"time"

	"kazi/models"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrDuplicateActive means the task already has a live transaction of the
// same type.
var ErrDuplicateActive = errors.New("live transaction already exists for task")

type TransactionFilter struct {
	Type   string
	Status string
	Page   int
	Limit  int
}

// TerminalUpdate carries the outcome reported by a gateway callback.
type TerminalUpdate struct {
	Status               string
	ResultCode           string
	ResultDesc           string
	GatewayTransactionID string
	Raw                  datatypes.JSON
	At                   time.Time
	// SettledAmount replaces amount and net_amount of a collection the
	// payer settled with a different sum.
	SettledAmount *decimal.Decimal
}

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, t *models.Transaction) error {
	err := r.db.WithContext(ctx).Create(t).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateActive
	}
	return err
}

func (r *TransactionRepository) FindByID(ctx context.Context, id uint) (*models.Transaction, error) {
	var t models.Transaction
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) FindByReference(ctx context.Context, ref string) (*models.Transaction, error) {
	if ref == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var t models.Transaction
	if err := r.db.WithContext(ctx).Where("reference = ?", ref).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// FindByConversation matches on the originator conversation id first, which
// is stored before submission, and falls back to the gateway conversation id.
func (r *TransactionRepository) FindByConversation(ctx context.Context, conversationID, originatorID string) (*models.Transaction, error) {
	var t models.Transaction
	if originatorID != "" {
		err := r.db.WithContext(ctx).Where("originator_conversation_id = ?", originatorID).First(&t).Error
		if err == nil {
			return &t, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if conversationID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	if err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) ParkCallback(ctx context.Context, p *models.ParkedCallback) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// TakeParkedCallbacks removes and returns the parked callbacks matching
// either id, oldest first.
func (r *TransactionRepository) TakeParkedCallbacks(ctx context.Context, conversationID, originatorID string) ([]models.ParkedCallback, error) {
	if conversationID == "" && originatorID == "" {
		return nil, nil
	}
	var out []models.ParkedCallback
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("1 = 0")
		if conversationID != "" {
			q = q.Or("conversation_id = ?", conversationID)
		}
		if originatorID != "" {
			q = q.Or("originator_conversation_id = ?", originatorID)
		}
		if err := q.Order("id ASC").Find(&out).Error; err != nil {
			return err
		}
		if len(out) == 0 {
			return nil
		}
		ids := make([]uint, len(out))
		for i, p := range out {
			ids[i] = p.ID
		}
		return tx.Delete(&models.ParkedCallback{}, ids).Error
	})
	return out, err
}

func (r *TransactionRepository) FindCompletedCollection(ctx context.Context, taskID uint) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND type = ? AND status = ?", taskID, models.TransactionTypeCollection, models.TransactionStatusCompleted).
		Order("id DESC").
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ExistsForTask reports whether the task has a transaction of txType in any
// of the given statuses.
func (r *TransactionRepository) ExistsForTask(ctx context.Context, taskID uint, txType string, statuses ...string) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("task_id = ? AND type = ?", taskID, txType)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var n int64
	err := q.Count(&n).Error
	return n > 0, err
}

// RecordSubmission stores the identifiers the gateway returned on accept.
func (r *TransactionRepository) RecordSubmission(ctx context.Context, id uint, conversationID, originatorID string) error {
	return r.db.WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"conversation_id":            conversationID,
			"originator_conversation_id": originatorID,
		}).Error
}

// RecordFailure keeps the row pending and stores why submission failed.
func (r *TransactionRepository) RecordFailure(ctx context.Context, id uint, reason string) error {
	return r.db.WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", id).
		Update("error_message", reason).Error
}

// Finalize moves a pending transaction to its terminal status. It reports
// false, and changes nothing, when the transaction already left pending.
func (r *TransactionRepository) Finalize(ctx context.Context, id uint, u TerminalUpdate) (bool, error) {
	at := u.At
	if at.IsZero() {
		at = time.Now()
	}
	fields := map[string]interface{}{
		"status":            u.Status,
		"result_code":       u.ResultCode,
		"result_desc":       u.ResultDesc,
		"callback_received": true,
		"completed_at":      at,
	}
	if u.GatewayTransactionID != "" {
		fields["gateway_transaction_id"] = u.GatewayTransactionID
	}
	if len(u.Raw) > 0 {
		fields["raw_callback"] = u.Raw
	}
	if u.SettledAmount != nil {
		fields["amount"] = *u.SettledAmount
		fields["net_amount"] = *u.SettledAmount
	}
	if u.Status != models.TransactionStatusCompleted {
		// releases the live slot so the task can be retried
		fields["active_key"] = nil
	}
	res := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.TransactionStatusPending).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *TransactionRepository) MarkCallbackReceived(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", id).
		Update("callback_received", true).Error
}

// ListForUser returns transactions the user paid or received, newest first.
func (r *TransactionRepository) ListForUser(ctx context.Context, userID uint, f TransactionFilter) ([]models.Transaction, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("(from_user_id = ? OR to_user_id = ?)", userID, userID)
		if f.Type != "" {
			db = db.Where("type = ?", f.Type)
		}
		if f.Status != "" {
			db = db.Where("status = ?", f.Status)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Transaction{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	q := r.db.WithContext(ctx).Scopes(scope).Order("created_at DESC, id DESC")
	if f.Limit > 0 {
		offset := 0
		if f.Page > 1 {
			offset = (f.Page - 1) * f.Limit
		}
		q = q.Offset(offset).Limit(f.Limit)
	}
	var out []models.Transaction
	err := q.Find(&out).Error
	return out, total, err
}
