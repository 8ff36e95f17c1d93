package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	TransactionTypeCollection = "collection"
	TransactionTypePayout     = "payout"
	TransactionTypeReversal   = "reversal"

	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
	TransactionStatusCancelled = "cancelled"
	TransactionStatusTimeout   = "timeout"
)

// Transaction is one money-movement attempt against the gateway. It is
// created pending and moves to a terminal status exactly once.
type Transaction struct {
	ID                       uint            `gorm:"primaryKey" json:"id"`
	Type                     string          `gorm:"size:20;not null;index" json:"type"`
	Reference                string          `gorm:"size:64;not null;uniqueIndex" json:"reference"`
	ConversationID           string          `gorm:"column:conversation_id;size:100;index" json:"conversation_id,omitempty"`
	OriginatorConversationID string          `gorm:"column:originator_conversation_id;size:100;index" json:"originator_conversation_id,omitempty"`
	GatewayTransactionID     string          `gorm:"column:gateway_transaction_id;size:64" json:"gateway_transaction_id,omitempty"`
	Amount                   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Commission               decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"commission"`
	NetAmount                decimal.Decimal `gorm:"column:net_amount;type:decimal(15,2);not null" json:"net_amount"`
	PhoneNumber              string          `gorm:"column:phone_number;size:20;not null" json:"phone_number"`
	FromUserID               *uint           `gorm:"column:from_user_id;index" json:"from_user_id,omitempty"`
	ToUserID                 *uint           `gorm:"column:to_user_id;index" json:"to_user_id,omitempty"`
	TaskID                   uint            `gorm:"column:task_id;not null;index" json:"task_id"`
	Status                   string          `gorm:"size:20;not null;index" json:"status"`
	ResultCode               string          `gorm:"column:result_code;size:20" json:"result_code,omitempty"`
	ResultDesc               string          `gorm:"column:result_desc;size:255" json:"result_desc,omitempty"`
	ErrorMessage             *string         `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	CallbackReceived         bool            `gorm:"column:callback_received;not null;default:false" json:"callback_received"`
	RawCallback              datatypes.JSON  `gorm:"column:raw_callback" json:"raw_callback,omitempty"`
	// ActiveKey is set while the transaction is pending or completed and
	// cleared when it fails. The unique index keeps one live collection and
	// one live payout per task.
	ActiveKey   *string    `gorm:"column:active_key;size:64;uniqueIndex" json:"-"`
	InitiatedAt time.Time  `gorm:"column:initiated_at;not null" json:"initiated_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// ActiveKeyFor builds the live-slot key for a task and transaction type.
func ActiveKeyFor(txType string, taskID uint) *string {
	k := fmt.Sprintf("%s:%d", txType, taskID)
	return &k
}

func IsTerminalTransactionStatus(s string) bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled, TransactionStatusTimeout:
		return true
	}
	return false
}

const (
	CallbackKindPayoutResult  = "payout_result"
	CallbackKindPayoutTimeout = "payout_timeout"
)

// ParkedCallback holds a payout result that arrived before its transaction
// carried the matching conversation ids. It is replayed once the ids are
// recorded.
type ParkedCallback struct {
	ID                       uint           `gorm:"primaryKey" json:"id"`
	Kind                     string         `gorm:"size:20;not null" json:"kind"`
	ConversationID           string         `gorm:"column:conversation_id;size:100;index" json:"conversation_id,omitempty"`
	OriginatorConversationID string         `gorm:"column:originator_conversation_id;size:100;index" json:"originator_conversation_id,omitempty"`
	Payload                  datatypes.JSON `gorm:"column:payload;not null" json:"payload"`
	ReceivedAt               time.Time      `gorm:"column:received_at;not null" json:"received_at"`
}

func (ParkedCallback) TableName() string {
	return "parked_callbacks"
}
