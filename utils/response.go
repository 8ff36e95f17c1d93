package utils

import (
	"encoding/json"
	"net/http"

	"kazi/apperrors"
	"kazi/translator"

	"go.uber.org/zap"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Page wraps a list response with its pagination window.
type Page struct {
	Items interface{} `json:"items"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
	Total int64       `json:"total"`
}

func WriteJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteError maps err onto its HTTP status and a localized message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("request_id", GetRequestID(r)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	WriteJSON(w, status, APIResponse{Success: false, Message: apperrors.LocalizedMessage(err, GetLang(r))})
}

// WriteMessage writes a failure envelope for a bare message id.
func WriteMessage(w http.ResponseWriter, r *http.Request, status int, messageID string) {
	WriteJSON(w, status, APIResponse{Success: false, Message: apperrors.Message(messageID, GetLang(r))})
}

func GetLang(r *http.Request) string {
	if lang, ok := r.Context().Value(LanguageKey).(string); ok && lang != "" {
		return lang
	}
	return translator.LanguageEn
}

func GetRequestID(r *http.Request) string {
	rid, _ := r.Context().Value(RequestIDKey).(string)
	return rid
}
