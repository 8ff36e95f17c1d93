package users

import (
	"net/http"

	"kazi/apperrors"
	"kazi/middleware"
	"kazi/utils"
)

type SendMessageRequest struct {
	TaskID  uint   `json:"taskId" validate:"required"`
	Content string `json:"content" validate:"required,max=2000"`
}

// GET /api/messages/{taskId}
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	taskID, ok := utils.PathUint(r, "taskId")
	if !ok {
		utils.WriteMessage(w, r, http.StatusBadRequest, apperrors.MsgInvalidID)
		return
	}
	list, err := h.messages.ListByTask(r.Context(), taskID, uid)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK", Data: list})
}

// POST /api/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	var req SendMessageRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	m, err := h.messages.Send(r.Context(), req.TaskID, uid, req.Content)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{Success: true, Message: "Message sent", Data: m})
}

// PUT /api/messages/{taskId}/read
func (h *Handler) MarkMessagesRead(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	taskID, ok := utils.PathUint(r, "taskId")
	if !ok {
		utils.WriteMessage(w, r, http.StatusBadRequest, apperrors.MsgInvalidID)
		return
	}
	n, err := h.messages.MarkRead(r.Context(), taskID, uid)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Messages marked as read", Data: map[string]int64{"updated": n}})
}
