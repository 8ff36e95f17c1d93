package routes

import (
	"net/http"
	"time"

	"kazi/apperrors"
	"kazi/controllers/auth"
	"kazi/controllers/users"
	"kazi/middleware"
	"kazi/services"
	"kazi/utils"

	"github.com/gorilla/mux"
)

func notFound(w http.ResponseWriter, r *http.Request) {
	utils.WriteMessage(w, r, http.StatusNotFound, apperrors.MsgRouteNotFound)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	utils.WriteMessage(w, r, http.StatusMethodNotAllowed, apperrors.MsgMethodNotAllowed)
}

// AuthRoutes mounts registration, login and the session endpoints.
func AuthRoutes(api *mux.Router, h *auth.Handler) {
	// 60 attempts per IP per 5 minutes; per-account lockout lives in the service.
	loginLimiter := middleware.NewIPRateLimiter(60, 5*time.Minute)
	userLimiter := middleware.NewUserRateLimiter(120, 60, time.Minute)

	api.Handle("/auth/register", loginLimiter.Middleware(http.HandlerFunc(h.Register))).Methods(http.MethodPost)
	api.Handle("/auth/login", loginLimiter.Middleware(http.HandlerFunc(h.Login))).Methods(http.MethodPost)
	api.Handle("/auth/me", middleware.AuthMiddleware(userLimiter.Middleware(http.HandlerFunc(h.Me)))).Methods(http.MethodGet)
	api.Handle("/auth/logout", middleware.AuthMiddleware(userLimiter.Middleware(http.HandlerFunc(h.Logout)))).Methods(http.MethodPost)
}

// UsersRoutes mounts the authenticated task, notification and message
// endpoints.
func UsersRoutes(api *mux.Router, h *users.Handler) {
	// 120 reads and 60 writes per user per minute
	userLimiter := middleware.NewUserRateLimiter(120, 60, time.Minute)

	s := api.NewRoute().Subrouter()
	s.Use(middleware.AuthMiddleware, userLimiter.Middleware)

	// Tasks
	s.HandleFunc("/tasks", h.CreateTask).Methods(http.MethodPost)
	s.HandleFunc("/tasks", h.ListTasks).Methods(http.MethodGet)
	s.HandleFunc("/tasks/dashboard", h.Dashboard).Methods(http.MethodGet)
	s.Handle("/tasks/my-tasks", h.DashboardView(services.ViewMyTasks)).Methods(http.MethodGet)
	s.Handle("/tasks/applied", h.DashboardView(services.ViewApplied)).Methods(http.MethodGet)
	s.Handle("/tasks/assigned", h.DashboardView(services.ViewAssigned)).Methods(http.MethodGet)
	s.Handle("/tasks/completed", h.DashboardView(services.ViewCompleted)).Methods(http.MethodGet)
	s.HandleFunc("/tasks/{id}", h.GetTask).Methods(http.MethodGet)
	s.HandleFunc("/tasks/{id}", h.DeleteTask).Methods(http.MethodDelete)
	s.HandleFunc("/tasks/{id}/apply", h.Apply).Methods(http.MethodPost)
	s.HandleFunc("/tasks/{id}/assign", h.Assign).Methods(http.MethodPost)
	s.HandleFunc("/tasks/{id}/complete", h.Complete).Methods(http.MethodPost)
	s.HandleFunc("/tasks/{id}/pay", h.Pay).Methods(http.MethodPost)

	// Notifications
	s.HandleFunc("/notifications", h.ListNotifications).Methods(http.MethodGet)
	s.HandleFunc("/notifications/unread-count", h.UnreadCount).Methods(http.MethodGet)
	s.HandleFunc("/notifications/read-all", h.MarkAllNotificationsRead).Methods(http.MethodPut)
	s.HandleFunc("/notifications/{id}/read", h.MarkNotificationRead).Methods(http.MethodPut)
	s.HandleFunc("/notifications/{id}", h.DeleteNotification).Methods(http.MethodDelete)

	// Messages
	s.HandleFunc("/messages", h.SendMessage).Methods(http.MethodPost)
	s.HandleFunc("/messages/{taskId}", h.ListMessages).Methods(http.MethodGet)
	s.HandleFunc("/messages/{taskId}/read", h.MarkMessagesRead).Methods(http.MethodPut)
}
