package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/growfund/backend/internal/config"
	"github.com/growfund/backend/internal/database"
	"github.com/growfund/backend/internal/handlers"
	"github.com/growfund/backend/internal/jobs"
	mW "github.com/growfund/backend/internal/middleware"
	"github.com/growfund/backend/internal/services"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jobs.timezone", "JOBS_TIMEZONE")

	if err := viper.ReadInConfig(); err != nil {
		log.WithError(err).Info("Config file not found, using defaults")
	}

	config.SetDefaults()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	walletService := services.NewWalletService(db)
	referralService := services.NewReferralService(db, walletService, &cfg.MLM)
	distributionService := services.NewDistributionService(db, walletService, referralService, &cfg.MLM)
	accrualService := services.NewAccrualService(db, walletService, redisClient,
		&cfg.Accrual, &cfg.Deposit, cfg.Jobs.TickHistoryEntries)
	depositService := services.NewDepositService(db, walletService, distributionService,
		&cfg.Deposit, &cfg.Withdrawal)
	colorGameService := services.NewColorGameService(db, walletService, &cfg.ColorGame)
	numberGameService := services.NewNumberGameService(db, walletService, &cfg.NumberGame)

	scheduler, err := jobs.NewScheduler(&cfg.Jobs, accrualService, distributionService,
		colorGameService, numberGameService)
	if err != nil {
		log.Fatalf("Failed to initialize scheduler: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	accountHandler := handlers.NewAccountHandler(walletService, depositService)
	referralHandler := handlers.NewReferralHandler(referralService)
	gameHandler := handlers.NewGameHandler(walletService, colorGameService, numberGameService)
	adminHandler := handlers.NewAdminHandler(depositService, referralService, accrualService,
		colorGameService, numberGameService, scheduler)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Authenticated user endpoints
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/accounts/{id}/balances", accountHandler.GetBalances)
			r.Get("/accounts/{id}/ledger", accountHandler.GetLedger)
			r.Get("/accounts/{id}/deposits", accountHandler.GetDeposits)

			r.Post("/deposits", accountHandler.RequestDeposit)
			r.Post("/withdrawals", accountHandler.RequestWithdrawal)

			r.Get("/referral/qr", referralHandler.GetQR)
			r.Post("/referral/assign", referralHandler.AssignReferrer)

			r.Get("/game/rooms", gameHandler.ListColorRooms)
			r.Get("/game/rooms/{roomID}", gameHandler.GetColorRoom)
			r.Post("/game/rooms/{roomID}/join", gameHandler.JoinColorRoom)
			r.Post("/wallet/transfer-to-game", gameHandler.TransferToGame)

			r.Get("/number-game/rooms", gameHandler.ListNumberRooms)
			r.Get("/number-game/rooms/{roomID}", gameHandler.GetNumberRoom)
			r.Post("/number-game/rooms/{roomID}/join", gameHandler.JoinNumberRoom)
		})

		// Admin endpoints
		r.Route("/admin", func(r chi.Router) {
			r.Use(mW.AdminMiddleware)

			r.Get("/deposit-requests", adminHandler.ListDepositRequests)
			r.Post("/deposit-requests/{id}/approve", adminHandler.ApproveDeposit)
			r.Post("/deposit-requests/{id}/reject", adminHandler.RejectDeposit)

			r.Get("/withdrawals", adminHandler.ListWithdrawalRequests)
			r.Post("/withdrawals/{id}/approve", adminHandler.ApproveWithdrawal)
			r.Post("/withdrawals/{id}/reject", adminHandler.RejectWithdrawal)

			r.Get("/scheduler/status", adminHandler.SchedulerStatus)
			r.Post("/scheduler/run-daily", adminHandler.RunDailyTick)
			r.Post("/scheduler/run-profit-share", adminHandler.RunProfitShare)
			r.Post("/scheduler/run-level-based", adminHandler.RunLevelBasedShare)

			r.Post("/mlm/rebuild-chains", adminHandler.RebuildChains)

			r.Post("/game/rooms", adminHandler.CreateColorRoom)
			r.Post("/number-game/rooms", adminHandler.CreateNumberRoom)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Info("Server stopped")
}
