package controllers

import (
	"context"
	"net/http"
	"os"
	"time"

	"kazi/utils"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const (
	StatusOk        = "ok"
	StatusDown      = "down"
	StatusDisabled  = "disabled"
	healthDBTimeout = 2 * time.Second
)

type HealthServices struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

type HealthReport struct {
	AppName           string         `json:"app_name"`
	AppVersion        string         `json:"app_version"`
	CurrentSystemTime string         `json:"current_system_time"`
	Message           string         `json:"message"`
	Status            HealthServices `json:"status"`
}

type HealthHandler struct {
	db  *sqlx.DB
	rdb *redis.Client
}

func NewHealthHandler(db *sqlx.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb}
}

// GET /health answers 503 when the database is unreachable. Redis is
// reported but never fails the check.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthDBTimeout)
	defer cancel()

	report := HealthReport{
		AppName:           getenv("APP_NAME", "kazi"),
		AppVersion:        getenv("APP_VERSION", "dev"),
		CurrentSystemTime: time.Now().Format("2006-01-02 15:04:05"),
		Message:           StatusOk,
		Status:            HealthServices{Database: StatusOk, Redis: StatusDisabled},
	}
	status := http.StatusOK
	if h.db == nil || h.db.PingContext(ctx) != nil {
		report.Message = StatusDown
		report.Status.Database = StatusDown
		status = http.StatusServiceUnavailable
	}
	if h.rdb != nil {
		report.Status.Redis = StatusOk
		if h.rdb.Ping(ctx).Err() != nil {
			report.Status.Redis = StatusDown
		}
	}
	utils.WriteJSON(w, status, utils.APIResponse{Success: status == http.StatusOK, Message: report.Message, Data: report})
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
