package auth

import (
	"context"

	"kazi/models"
	"kazi/services"
)

type Service interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, in services.LoginInput) (*services.AuthResult, error)
	Me(ctx context.Context, userID uint) (*models.User, error)
}

// Handler serves the account endpoints under /api/auth.
type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}
