package utils

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PathUint parses a positive integer path variable.
func PathUint(r *http.Request, name string) (uint, bool) {
	v, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

// Pagination reads page and limit query values, clamping them to sane bounds.
func Pagination(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}
