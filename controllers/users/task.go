package users

import (
	"net/http"
	"strings"
	"time"

	"kazi/apperrors"
	"kazi/middleware"
	"kazi/repositories"
	"kazi/services"
	"kazi/utils"

	"github.com/shopspring/decimal"
)

type CreateTaskRequest struct {
	Title       string          `json:"title" validate:"required,min=3,max=120"`
	Description string          `json:"description" validate:"max=5000"`
	Budget      decimal.Decimal `json:"budget"`
	Category    string          `json:"category" validate:"required"`
	Deadline    *time.Time      `json:"deadline"`
}

type ApplyRequest struct {
	Message string `json:"message" validate:"max=2000"`
}

type AssignRequest struct {
	ApplicantID uint `json:"applicantId" validate:"required"`
}

type PayRequest struct {
	Phone string `json:"phone" validate:"phoneke"`
}

// POST /api/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	var req CreateTaskRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	task, err := h.tasks.Create(r.Context(), uid, services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
		Category:    strings.ToLower(strings.TrimSpace(req.Category)),
		Deadline:    req.Deadline,
	})
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{Success: true, Message: "Task created", Data: task})
}

// GET /api/tasks?category=&search=&page=&limit=
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	page, limit := utils.Pagination(r)
	q := r.URL.Query()
	list, total, err := h.tasks.ListOpen(r.Context(), repositories.TaskFilter{
		Category: strings.ToLower(strings.TrimSpace(q.Get("category"))),
		Search:   strings.TrimSpace(q.Get("search")),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK", Data: utils.Page{
		Items: list, Page: page, Limit: limit, Total: total,
	}})
}

// GET /api/tasks/dashboard?role=&status=
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	rows, err := h.tasks.Dashboard(r.Context(), uid, services.DashboardQuery{
		Role:   r.URL.Query().Get("role"),
		Status: r.URL.Query().Get("status"),
	})
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK", Data: rows})
}

// DashboardView serves one of the fixed projections, e.g. GET /api/tasks/my-tasks.
func (h *Handler) DashboardView(view services.DashboardView) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, _ := utils.GetUserID(r)
		rows, err := h.tasks.View(r.Context(), uid, view)
		if err != nil {
			utils.WriteError(w, r, err)
			return
		}
		utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK", Data: rows})
	}
}

// GET /api/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := utils.PathUint(r, "id")
	if !ok {
		utils.WriteMessage(w, r, http.StatusBadRequest, apperrors.MsgInvalidID)
		return
	}
	task, err := h.tasks.Get(r.Context(), id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK", Data: task})
}

// POST /api/tasks/{id}/apply
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	id, ok := utils.PathUint(r, "id")
	if !ok {
		utils.WriteMessage(w, r, http.StatusBadRequest, apperrors.MsgInvalidID)
		return
	}
	var req ApplyRequest
	if r.ContentLength != 0 {
		if err := middleware.ValidateJSON(w, r, &req); err != nil {
			return
		}
	}
	task, err := h.tasks.Apply(r.Context(), id, uid, req.Message)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Application submitted", Data: task})
}

// POST /api/tasks/{id}/assign
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	id, ok := utils.PathUint(r, "id")
	if !ok {
		utils.WriteMessage(w, r, http.StatusBadRequest, apperrors.MsgInvalidID)
		return
	}
	var req AssignRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	task, err := h.tasks.Assign(r.Context(), id, uid, req.ApplicantID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Task assigned", Data: task})
}

// POST /api/tasks/{id}/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	id, ok := utils.PathUint(r, "id")
	if !ok {
		utils.WriteMessage(w, r, http.StatusBadRequest, apperrors.MsgInvalidID)
		return
	}
	task, err := h.tasks.Complete(r.Context(), id, uid)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Task completed", Data: task})
}

// POST /api/tasks/{id}/pay starts the payout to the assignee. The task turns
// paid when the gateway confirms it.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	id, ok := utils.PathUint(r, "id")
	if !ok {
		utils.WriteMessage(w, r, http.StatusBadRequest, apperrors.MsgInvalidID)
		return
	}
	var req PayRequest
	if r.ContentLength != 0 {
		if err := middleware.ValidateJSON(w, r, &req); err != nil {
			return
		}
	}
	tx, err := h.payer.InitiatePayout(r.Context(), services.PayoutInput{TaskID: id, CallerID: uid, Phone: req.Phone})
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusAccepted, utils.APIResponse{Success: true, Message: "Payout initiated", Data: tx})
}

// DELETE /api/tasks/{id}
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	id, ok := utils.PathUint(r, "id")
	if !ok {
		utils.WriteMessage(w, r, http.StatusBadRequest, apperrors.MsgInvalidID)
		return
	}
	if err := h.tasks.Delete(r.Context(), id, uid); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Task deleted"})
}
