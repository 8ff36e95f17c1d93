package auth

import (
	"net/http"
	"strings"

	"kazi/apperrors"
	"kazi/middleware"
	"kazi/services"
	"kazi/utils"
)

// LoginRequest accepts the account identifier as email, phone or a generic
// identifier field.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password" validate:"required"`
}

func (req LoginRequest) identifier() string {
	for _, v := range []string{req.Identifier, req.Email, req.Phone} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	id := req.identifier()
	if id == "" {
		utils.WriteMessage(w, r, http.StatusBadRequest, apperrors.MsgInvalidCredentials)
		return
	}

	res, err := h.svc.Login(r.Context(), services.LoginInput{Identifier: id, Password: req.Password})
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Login successful", Data: res})
}
