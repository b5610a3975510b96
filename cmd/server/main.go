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
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/researchdesk/backend/docs"
	"github.com/researchdesk/backend/internal/config"
	"github.com/researchdesk/backend/internal/database"
	mW "github.com/researchdesk/backend/internal/middleware"
	"github.com/researchdesk/backend/internal/providers"
	"github.com/researchdesk/backend/internal/services"
)

// @title ResearchDesk API
// @version 1.0
// @description Credit-gated research report generation backend
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

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

	viper.BindEnv("vectorsearch.base_url", "VECTORSEARCH_BASE_URL")
	viper.BindEnv("vectorsearch.api_key", "VECTORSEARCH_API_KEY")
	viper.BindEnv("websearch.api_key", "WEBSEARCH_API_KEY")
	viper.BindEnv("livefeed.news_api_key", "NEWS_API_KEY")
	viper.BindEnv("generator.api_key", "GENERATOR_API_KEY")
	viper.BindEnv("payments.api_key", "PAYMENTS_API_KEY")
	viper.BindEnv("notifier.webhook_url", "NOTIFIER_WEBHOOK_URL")
	viper.BindEnv("admin.secret_key", "ADMIN_SECRET_KEY")

	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "ResearchDesk API"
	docs.SwaggerInfo.Description = "Credit-gated research report generation backend"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	policy := config.LoadPolicy()

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Collaborator clients
	notifier := providers.NewWebhookNotifier()
	semantic := providers.NewVectorSearchClient()
	webSearch := providers.NewWebSearchClient(redisClient, policy.WebCacheTTL, policy.RetryAttempts)
	liveFeed := providers.NewLiveFeedClient()
	generator := providers.NewGeneratorClient(policy.GeneratorTimeout, policy.RetryAttempts)
	payments := providers.NewPaymentGatewayClient()

	// Core services
	ledgerService := services.NewLedgerService(db, policy, notifier)
	sessionService := services.NewSessionService(db, policy)
	authService := services.NewAuthService(db, sessionService, policy)
	retrievalService := services.NewRetrievalService(semantic, webSearch, liveFeed, policy)
	researchService := services.NewResearchService(sessionService, ledgerService, retrievalService, generator, policy)
	billingService := services.NewBillingService(ledgerService, payments)
	voiceService := services.NewVoiceQueryService()
	defer voiceService.Close()

	// Abandoned reservations revert on a fixed cadence so a dropped
	// connection can never strand credit.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(policy.ReservationTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if n, err := ledgerService.ExpireStaleReservations(sweepCtx); err != nil {
					log.Printf("[LEDGER] Reservation sweep failed: %v", err)
				} else if n > 0 {
					log.Printf("[LEDGER] Reverted %d expired reservations", n)
				}
			}
		}
	}()

	sessionAuth := mW.SessionAuth(sessionService.Validate)

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

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)

		// Research takes the bearer token directly: the orchestrator owns
		// session validation as the first step of its lifecycle.
		r.Post("/research", researchService.AnswerQuestion)

		// Session-protected endpoints
		r.Group(func(r chi.Router) {
			r.Use(sessionAuth)

			r.Get("/auth/account", authService.GetAccount)
			r.Post("/research/voice-transcribe", voiceService.TranscribeQuestion)
			r.Get("/billing/balance", billingService.GetBalance)
			r.Get("/billing/usage", billingService.UsageStats)
			r.Post("/billing/purchase", billingService.PurchaseCredits)
		})

		// Operator endpoints
		r.Group(func(r chi.Router) {
			r.Use(mW.AdminAuth)

			r.Post("/admin/credits", billingService.AdminAdjust)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
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
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
