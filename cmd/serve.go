package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"kazi/config"
	"kazi/controllers"
	"kazi/controllers/auth"
	"kazi/controllers/mpesa"
	"kazi/controllers/users"
	"kazi/database"
	"kazi/gateway"
	"kazi/realtime"
	"kazi/repositories"
	"kazi/routes"
	"kazi/services"
	"kazi/translator"
	"kazi/utils"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	autoMigrate  bool
	registerURLs bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Starts the HTTP API, the websocket hub and, when Redis is configured, the cross-instance event bridge",
	RunE: func(cmd *cobra.Command, args []string) error {
		config.LoadDotEnv()
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logger, err := newLogger(cfg.Env)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		translator.InitTranslator(translator.Config{
			TranslationFolder:  cfg.TranslationsDir,
			SupportedLanguages: []string{translator.LanguageEn, translator.LanguageSw},
		})

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "run schema migration before serving")
	serveCmd.Flags().BoolVar(&registerURLs, "register-urls", false, "register the gateway callback URLs at startup")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg config.Config) error {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if autoMigrate || cfg.Env == "development" {
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		zap.L().Info("auto-migration completed")
	}
	sqlDB, err := database.SQLX(db, cfg.Database.Driver)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Pass,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			zap.L().Warn("redis unreachable, continuing", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		utils.RedisClient = rdb
	}

	hub := realtime.NewHub()
	var publisher services.Publisher = hub
	if rdb != nil {
		bridge := realtime.NewRedisBridge(hub, rdb, cfg.Redis.Channel)
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zap.L().Error("realtime bridge stopped", zap.Error(err))
			}
		}()
		publisher = bridge
	}

	gw := gateway.NewClient(gateway.Config{
		BaseURL:            cfg.MPesa.BaseURL,
		ConsumerKey:        cfg.MPesa.ConsumerKey,
		ConsumerSecret:     cfg.MPesa.ConsumerSecret,
		ShortCode:          cfg.MPesa.ShortCode,
		B2CShortCode:       cfg.MPesa.B2CShortCode,
		InitiatorName:      cfg.MPesa.InitiatorName,
		SecurityCredential: cfg.MPesa.SecurityCredential,
		CallbackBaseURL:    cfg.MPesa.CallbackBaseURL,
		TokenMargin:        cfg.MPesa.TokenMargin,
		Timeout:            cfg.MPesa.Timeout,
	}, nil)

	userRepo := repositories.NewUserRepository(db)
	taskRepo := repositories.NewTaskRepository(db)
	txRepo := repositories.NewTransactionRepository(db)
	noteRepo := repositories.NewNotificationRepository(db)
	msgRepo := repositories.NewMessageRepository(db)
	dashRepo := repositories.NewDashboardRepository(sqlDB)

	notifier := services.NewNotificationService(noteRepo, publisher)
	taskSvc := services.NewTaskService(taskRepo, txRepo, dashRepo, notifier)
	paymentSvc := services.NewPaymentService(taskRepo, txRepo, userRepo, taskSvc, notifier, gw, cfg.CommissionPercent)
	messageSvc := services.NewMessageService(taskRepo, msgRepo, publisher)
	authSvc := services.NewAuthService(userRepo, services.NewLoginGuard(rdb), cfg.JWT.TTL)

	if registerURLs && cfg.MPesa.Enabled {
		regCtx, cancel := context.WithTimeout(ctx, cfg.MPesa.Timeout)
		if _, err := paymentSvc.RegisterCallbackURLs(regCtx); err != nil {
			zap.L().Warn("callback URL registration failed", zap.Error(err))
		}
		cancel()
	}

	handler := routes.InitRouter(routes.Handlers{
		Auth:     auth.NewHandler(authSvc),
		Users:    users.NewHandler(taskSvc, paymentSvc, notifier, messageSvc),
		MPesa:    mpesa.NewHandler(paymentSvc),
		Health:   controllers.NewHealthHandler(sqlDB, rdb),
		Realtime: realtime.NewHandler(hub, messageSvc, utils.UserIDFromToken, cfg.CORSAllowedOrigins),
	}, routes.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		RequestTimeout:   cfg.RequestTimeout,
		TrustedProxies:   cfg.TrustedProxies,
		WebhookWhitelist: cfg.MPesa.CallbackWhitelist,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	zap.L().Info("server exited")
	return nil
}
