package routes

import (
	"net/http"
	"strings"
	"time"

	"kazi/controllers/mpesa"
	"kazi/gateway"
	"kazi/middleware"

	"github.com/gorilla/mux"
)

// MPesaRoutes mounts the payment endpoints. Gateway callbacks are public and
// only rate limited, and a throttled callback is still acknowledged.
func MPesaRoutes(api *mux.Router, h *mpesa.Handler, opts Options) {
	limit := opts.WebhookLimit
	if limit <= 0 {
		limit = 500
	}
	webhookLimiter := middleware.NewWebhookLimiter(limit, time.Hour, opts.WebhookWhitelist).
		WithTrustedProxies(opts.TrustedProxies).
		WithRejectHandler(http.HandlerFunc(mpesa.Throttled))

	// Callback paths are absolute and already carry the /api prefix.
	callbacks := map[string]http.HandlerFunc{
		gateway.PathC2BConfirmation: h.C2BConfirmation,
		gateway.PathC2BValidation:   h.C2BValidation,
		gateway.PathB2CResult:       h.B2CResult,
		gateway.PathB2CTimeout:      h.B2CTimeout,
		gateway.PathBalanceResult:   h.BalanceResult,
	}
	for path, fn := range callbacks {
		api.Handle(strings.TrimPrefix(path, "/api"), webhookLimiter.Middleware(fn)).Methods(http.MethodPost)
	}

	userLimiter := middleware.NewUserRateLimiter(120, 30, time.Minute)
	s := api.PathPrefix("/mpesa").Subrouter()
	s.Use(middleware.AuthMiddleware, userLimiter.Middleware)

	s.HandleFunc("/register-urls", h.RegisterURLs).Methods(http.MethodPost)
	s.HandleFunc("/simulate", h.Simulate).Methods(http.MethodPost)
	s.HandleFunc("/b2c/payout", h.Payout).Methods(http.MethodPost)
	s.HandleFunc("/transactions", h.ListTransactions).Methods(http.MethodGet)
	s.HandleFunc("/transactions/{id}", h.GetTransaction).Methods(http.MethodGet)
	s.HandleFunc("/balance", h.Balance).Methods(http.MethodGet)
}
