package auth

import (
	"net/http"

	"kazi/utils"

	"go.uber.org/zap"
)

// POST /api/auth/logout revokes the presented access token until it expires.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if tokenStr, ok := utils.BearerToken(r); ok {
		if claims, err := utils.ValidateAccessToken(tokenStr); err == nil {
			jti, ttl := utils.TokenIDAndExpiry(claims)
			if err := utils.RevokeJTI(r.Context(), jti, ttl); err != nil {
				zap.L().Warn("token not revoked", zap.String("request_id", utils.GetRequestID(r)), zap.Error(err))
			}
		}
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Logged out"})
}

// GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	uid, _ := utils.GetUserID(r)
	user, err := h.svc.Me(r.Context(), uid)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK", Data: user})
}
