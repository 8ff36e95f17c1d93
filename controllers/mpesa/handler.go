package mpesa

import (
	"context"

	"kazi/gateway"
	"kazi/models"
	"kazi/repositories"
	"kazi/services"
)

type Service interface {
	InitiateCollection(ctx context.Context, in services.CollectionInput) (*models.Transaction, error)
	InitiatePayout(ctx context.Context, in services.PayoutInput) (*models.Transaction, error)
	HandleCollectionConfirmation(ctx context.Context, cb gateway.C2BCallback, raw []byte) error
	HandleCollectionValidation(ctx context.Context, cb gateway.C2BCallback) error
	HandlePayoutResult(ctx context.Context, env gateway.ResultEnvelope, raw []byte) error
	HandlePayoutTimeout(ctx context.Context, env gateway.ResultEnvelope, raw []byte) error
	HandleBalanceResult(ctx context.Context, env gateway.ResultEnvelope) error
	ListTransactions(ctx context.Context, userID uint, f repositories.TransactionFilter) ([]models.Transaction, int64, error)
	GetTransaction(ctx context.Context, userID, id uint) (*models.Transaction, error)
	RegisterCallbackURLs(ctx context.Context) (*gateway.Response, error)
	BalanceInquiry(ctx context.Context) (*gateway.Response, error)
}

// Handler serves /api/mpesa: user-initiated payments and the gateway
// callbacks.
type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}
