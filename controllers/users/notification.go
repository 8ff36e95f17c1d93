package users

import (
	"net/http"

	"kazi/apperrors"
	"kazi/utils"
)

// GET /api/notifications?page=&limit=
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	page, limit := utils.Pagination(r)
	list, total, err := h.notes.List(r.Context(), uid, page, limit)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK", Data: utils.Page{
		Items: list, Page: page, Limit: limit, Total: total,
	}})
}

// GET /api/notifications/unread-count
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	n, err := h.notes.UnreadCount(r.Context(), uid)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK", Data: map[string]int64{"count": n}})
}

// PUT /api/notifications/{id}/read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	id, ok := utils.PathUint(r, "id")
	if !ok {
		utils.WriteMessage(w, r, http.StatusBadRequest, apperrors.MsgInvalidID)
		return
	}
	if err := h.notes.MarkRead(r.Context(), uid, id); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Notification marked as read"})
}

// PUT /api/notifications/read-all
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	n, err := h.notes.MarkAllRead(r.Context(), uid)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "All notifications marked as read", Data: map[string]int64{"updated": n}})
}

// DELETE /api/notifications/{id}
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	id, ok := utils.PathUint(r, "id")
	if !ok {
		utils.WriteMessage(w, r, http.StatusBadRequest, apperrors.MsgInvalidID)
		return
	}
	if err := h.notes.Delete(r.Context(), uid, id); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Notification deleted"})
}
