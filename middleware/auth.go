package middleware

import (
	"context"
	"errors"
	"net/http"

	"kazi/apperrors"
	"kazi/utils"
)

// AuthMiddleware requires a valid bearer token and stores the user id in the
// request context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, ok := utils.BearerToken(r)
		if !ok {
			utils.WriteMessage(w, r, http.StatusUnauthorized, apperrors.MsgUnauthorized)
			return
		}
		userID, err := utils.UserIDFromToken(tokenStr)
		if err != nil {
			if errors.Is(err, utils.ErrTokenExpired) {
				utils.WriteMessage(w, r, http.StatusUnauthorized, apperrors.MsgSessionExpired)
				return
			}
			utils.WriteMessage(w, r, http.StatusUnauthorized, apperrors.MsgInvalidToken)
			return
		}

		ctx := context.WithValue(r.Context(), utils.UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
