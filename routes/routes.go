package routes

import (
	"net/http"
	"time"

	"kazi/controllers"
	"kazi/controllers/auth"
	"kazi/controllers/mpesa"
	"kazi/controllers/users"
	"kazi/middleware"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Handlers groups the controllers mounted by InitRouter.
type Handlers struct {
	Auth     *auth.Handler
	Users    *users.Handler
	MPesa    *mpesa.Handler
	Health   *controllers.HealthHandler
	Realtime http.Handler
}

type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	// WebhookWhitelist bypasses the callback limiter.
	WebhookWhitelist []string
	// TrustedProxies are allowed to name the client in X-Forwarded-For.
	TrustedProxies []string
	// WebhookLimit caps callbacks per source IP and hour. Zero means 500.
	WebhookLimit int
}

var defaultOrigins = []string{
	"http://localhost:3000", "http://localhost:5173", "http://127.0.0.1:3000",
}

// InitRouter mounts every route under /api and wraps the result in the
// global middleware chain.
func InitRouter(h Handlers, opts Options) http.Handler {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}

	// CORS wraps the router so preflights are answered before routing.
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "Accept-Language", "X-Requested-With", "X-Request-ID"}),
		handlers.AllowCredentials(),
	)

	r := mux.NewRouter()

	// Root level health check for container orchestrators.
	r.Handle("/health", http.HandlerFunc(h.Health.CheckHealth)).Methods(http.MethodGet)

	// The socket outlives any request timeout.
	if h.Realtime != nil {
		r.Handle("/ws", h.Realtime).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.TimeoutMiddleware(opts.RequestTimeout))

	api.Handle("/health", http.HandlerFunc(h.Health.CheckHealth)).Methods(http.MethodGet)

	AuthRoutes(api, h.Auth)
	MPesaRoutes(api, h.MPesa, opts)
	UsersRoutes(api, h.Users)

	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	// Logging -> Security headers -> Request ID -> Max Body -> Recovery -> Language -> CORS
	return middleware.RequestLogMiddleware(
		middleware.SecurityHeadersMiddleware(
			middleware.RequestIDMiddleware(
				middleware.MaxBodyMiddleware(opts.MaxBodyBytes)(
					middleware.RecoveryMiddleware(
						middleware.LanguageMiddleware(cors(r)),
					),
				),
			),
		),
	)
}
