package middleware

import (
	"context"
	"net/http"

	"kazi/translator"
	"kazi/utils"
)

// LanguageMiddleware resolves the response language from ?lang= or
// Accept-Language.
func LanguageMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Accept-Language")
		if q := r.URL.Query().Get("lang"); q != "" {
			header = q
		}
		ctx := context.WithValue(r.Context(), utils.LanguageKey, translator.MatchLanguage(header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
