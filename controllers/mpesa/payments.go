package mpesa

import (
	"net/http"

	"kazi/apperrors"
	"kazi/middleware"
	"kazi/repositories"
	"kazi/services"
	"kazi/utils"

	"github.com/shopspring/decimal"
)

type SimulateRequest struct {
	TaskID uint            `json:"taskId" validate:"required"`
	Phone  string          `json:"phone" validate:"phoneke"`
	Amount decimal.Decimal `json:"amount"`
}

type PayoutRequest struct {
	TaskID uint   `json:"taskId" validate:"required"`
	Phone  string `json:"phone" validate:"phoneke"`
}

// POST /api/mpesa/simulate asks the owner's wallet for the task money.
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	var req SimulateRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	tx, err := h.svc.InitiateCollection(r.Context(), services.CollectionInput{
		TaskID:   req.TaskID,
		CallerID: uid,
		Phone:    req.Phone,
		Amount:   req.Amount,
	})
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusAccepted, utils.APIResponse{Success: true, Message: "Payment request sent", Data: tx})
}

// POST /api/mpesa/b2c/payout
func (h *Handler) Payout(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	var req PayoutRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	tx, err := h.svc.InitiatePayout(r.Context(), services.PayoutInput{TaskID: req.TaskID, CallerID: uid, Phone: req.Phone})
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusAccepted, utils.APIResponse{Success: true, Message: "Payout initiated", Data: tx})
}

// GET /api/mpesa/transactions?type=&status=&page=&limit=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	page, limit := utils.Pagination(r)
	list, total, err := h.svc.ListTransactions(r.Context(), uid, repositories.TransactionFilter{
		Type:   r.URL.Query().Get("type"),
		Status: r.URL.Query().Get("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK", Data: utils.Page{
		Items: list, Page: page, Limit: limit, Total: total,
	}})
}

// GET /api/mpesa/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	id, ok := utils.PathUint(r, "id")
	if !ok {
		utils.WriteMessage(w, r, http.StatusBadRequest, apperrors.MsgInvalidID)
		return
	}
	tx, err := h.svc.GetTransaction(r.Context(), uid, id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK", Data: tx})
}

// POST /api/mpesa/register-urls
func (h *Handler) RegisterURLs(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.RegisterCallbackURLs(r.Context())
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Callback URLs registered", Data: resp})
}

// GET /api/mpesa/balance starts an account balance query. The figure
// arrives on the balance result callback.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.BalanceInquiry(r.Context())
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusAccepted, utils.APIResponse{Success: true, Message: "Balance query submitted", Data: resp})
}
