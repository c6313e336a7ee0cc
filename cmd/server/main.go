package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"

	"github.com/microbank/backoffice/internal/config"
	"github.com/microbank/backoffice/internal/database"
	mW "github.com/microbank/backoffice/internal/middleware"
	"github.com/microbank/backoffice/internal/models"
	"github.com/microbank/backoffice/internal/scheduler"
	"github.com/microbank/backoffice/internal/services"
)

// @title Microbanking Back-Office API
// @version 1.0
// @description Branch back-office for savings accounts and fixed deposits
// @host localhost:8080
// @BasePath /api
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

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
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")

	viper.SetDefault("jwt.expiry_hours", 1)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	interestCfg := config.LoadInterestConfig()

	authService := services.NewAuthService(db, redisClient)
	branchService := services.NewBranchService(db)
	customerService := services.NewCustomerService(db)
	accountService := services.NewAccountService(db)
	fdService := services.NewFixedDepositService(db)
	reportService := services.NewReportService(db)
	accrualService := services.NewInterestAccrualService(db, interestCfg)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Monthly FD interest run
	sched := scheduler.New(accrualService, interestCfg.Schedule)
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/login", authService.Login)
		r.Post("/logout", authService.Logout)
		r.Get("/branches", branchService.ListBranches)
		r.Get("/saving-plans", accountService.ListSavingPlans)
		r.Get("/fd-plans", fdService.ListPlans)

		// Administrator endpoints
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)
			r.Use(mW.RequireRole(models.RoleAdmin))

			r.Post("/admin/register", authService.Register)
			r.Get("/admin/users", authService.ListUsers)
			r.Delete("/admin/users/{id}", authService.DeleteUser)
			r.Post("/admin/branches", branchService.CreateBranch)
			r.Delete("/admin/branches/{id}", branchService.DeleteBranch)

			r.Post("/admin/fd-interest/process-now", accrualService.ProcessNow)
			r.Get("/admin/fd-interest/summary", accrualService.GetSummary)
		})

		// Agent endpoints
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)
			r.Use(mW.RequireRole(models.RoleAgent, models.RoleManager))

			r.Get("/agent/customers", customerService.ListCustomers)
			r.Post("/agent/customers/register", customerService.RegisterCustomer)

			r.Get("/agent/accounts", accountService.ListAccounts)
			r.Post("/agent/accounts/create", accountService.CreateAccount)
			r.Post("/agent/transactions/process", accountService.ProcessTransaction)
			r.Get("/agent/transactions/recent", accountService.RecentTransactions)

			r.Get("/agent/fixed-deposits", fdService.ListDeposits)
			r.Post("/agent/fixed-deposits/open", fdService.OpenDeposit)
			r.Post("/agent/fixed-deposits/{id}/close", fdService.CloseDeposit)

			r.Get("/agent/performance", reportService.AgentPerformance)
		})

		// Manager endpoints
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)
			r.Use(mW.RequireRole(models.RoleManager))

			r.Get("/manager/transactions-summary", reportService.TransactionsSummary)
			r.Get("/manager/team/agents", reportService.TeamAgents)
			r.Get("/manager/team/agents/{agentId}/transactions", reportService.AgentTransactions)
			r.Get("/manager/accounts", reportService.BranchAccounts)
		})
	})

	// Frontend build, when deployed alongside the API
	r.Handle("/*", mW.SPAFileServer("./static/app"))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
