package mpesa

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"kazi/gateway"
	"kazi/utils"

	"go.uber.org/zap"
)

// The gateway retries any delivery that is not acknowledged, so every
// callback answers with gateway.Ack whatever happened while processing it.

func ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(gateway.Ack)
}

// readCallback decodes the body into dst and returns the raw bytes. It
// reports false for an unreadable or malformed body.
func readCallback(r *http.Request, name string, dst interface{}) ([]byte, bool) {
	raw, err := io.ReadAll(r.Body)
	if err == nil {
		err = json.Unmarshal(raw, dst)
	}
	if err != nil {
		zap.L().Warn("malformed gateway callback",
			zap.String("callback", name),
			zap.String("request_id", utils.GetRequestID(r)),
			zap.Error(err))
		return nil, false
	}
	return raw, true
}

func logOutcome(r *http.Request, name string, err error) {
	if err == nil {
		return
	}
	zap.L().Warn("gateway callback not applied",
		zap.String("callback", name),
		zap.String("request_id", utils.GetRequestID(r)),
		zap.Error(err))
}

// callbackContext keeps processing alive if the gateway hangs up early.
func callbackContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// Throttled acknowledges a callback dropped by the rate limiter so the
// gateway does not count it as a failed delivery.
func Throttled(w http.ResponseWriter, r *http.Request) {
	zap.L().Warn("gateway callback throttled",
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("request_id", utils.GetRequestID(r)))
	ack(w)
}

// POST /api/mpesa/c2b/confirmation
func (h *Handler) C2BConfirmation(w http.ResponseWriter, r *http.Request) {
	var cb gateway.C2BCallback
	if raw, ok := readCallback(r, "c2b_confirmation", &cb); ok {
		logOutcome(r, "c2b_confirmation", h.svc.HandleCollectionConfirmation(callbackContext(r), cb, raw))
	}
	ack(w)
}

// POST /api/mpesa/c2b/validation
func (h *Handler) C2BValidation(w http.ResponseWriter, r *http.Request) {
	var cb gateway.C2BCallback
	if _, ok := readCallback(r, "c2b_validation", &cb); ok {
		logOutcome(r, "c2b_validation", h.svc.HandleCollectionValidation(callbackContext(r), cb))
	}
	ack(w)
}

// POST /api/mpesa/b2c/result
func (h *Handler) B2CResult(w http.ResponseWriter, r *http.Request) {
	var env gateway.ResultEnvelope
	if raw, ok := readCallback(r, "b2c_result", &env); ok {
		logOutcome(r, "b2c_result", h.svc.HandlePayoutResult(callbackContext(r), env, raw))
	}
	ack(w)
}

// POST /api/mpesa/b2c/timeout
func (h *Handler) B2CTimeout(w http.ResponseWriter, r *http.Request) {
	var env gateway.ResultEnvelope
	if raw, ok := readCallback(r, "b2c_timeout", &env); ok {
		logOutcome(r, "b2c_timeout", h.svc.HandlePayoutTimeout(callbackContext(r), env, raw))
	}
	ack(w)
}

// POST /api/mpesa/balance/result
func (h *Handler) BalanceResult(w http.ResponseWriter, r *http.Request) {
	var env gateway.ResultEnvelope
	if _, ok := readCallback(r, "balance_result", &env); ok {
		logOutcome(r, "balance_result", h.svc.HandleBalanceResult(callbackContext(r), env))
	}
	ack(w)
}
