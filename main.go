package main

import (
	"crypto/tls"
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/douglassdm/pulsefinance/backend/src/config"
	"github.com/douglassdm/pulsefinance/backend/src/database"
	"github.com/douglassdm/pulsefinance/backend/src/handlers"
	"github.com/douglassdm/pulsefinance/backend/src/logger"
	"github.com/douglassdm/pulsefinance/backend/src/model"
	"github.com/douglassdm/pulsefinance/backend/src/security"
	"github.com/douglassdm/pulsefinance/backend/src/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

func proxyHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-Proto") == "https" {
			r.URL.Scheme = "https"
			r.TLS = &tls.ConnectionState{}
		}
		next.ServeHTTP(w, r)
	})
}

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000":        true,
			config.Cfg.FrontendBaseURL:     true,
			"https://pulsefinance.app":     true,
			"https://www.pulsefinance.app": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Requested-With, Cookie, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "X-CSRF-Token, ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("PulseFinance backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	if err := model.DeleteExpiredSessions(database.DB); err != nil {
		logger.L.Warn("Failed to prune expired sessions at startup", "error", err)
	}

	summaryCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	authService := security.NewAuthService(config.Cfg.JWTSecret)
	debtService := services.NewDebtService(database.DB, config.Cfg.AtomicDebtPayments)
	recurringService := services.NewRecurringService(database.DB)
	summaryService := services.NewSummaryService(database.DB, debtService, summaryCache, config.Cfg.SummaryCacheTTL)

	userHandler := handlers.NewUserHandler(authService)
	accountHandler := handlers.NewAccountHandler(summaryService)
	categoryHandler := handlers.NewCategoryHandler(summaryService)
	transactionHandler := handlers.NewTransactionHandler(summaryService)
	debtHandler := handlers.NewDebtHandler(debtService, summaryService)
	recurringHandler := handlers.NewRecurringHandler(recurringService, summaryService)
	goalHandler := handlers.NewGoalHandler(summaryService)
	investmentHandler := handlers.NewInvestmentHandler(summaryService)
	dashboardHandler := handlers.NewDashboardHandler(summaryService)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(proxyHeadersMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "PulseFinance Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Group(func(r chi.Router) {
			r.Get("/auth/csrf", handlers.GetCSRFToken)
		})

		// Auth routes (CSRF protected)
		r.Group(func(r chi.Router) {
			r.Use(handlers.CSRFMiddleware(config.Cfg.CSRFAuthKey))
			r.Post("/auth/register", userHandler.RegisterUserHandler)
			r.Post("/auth/login", userHandler.LoginUserHandler)
			r.Post("/auth/refresh", userHandler.RefreshTokenHandler)
			r.With(userHandler.AuthMiddleware).Post("/auth/logout", userHandler.LogoutUserHandler)
		})

		// Protected routes (auth + CSRF)
		r.Group(func(r chi.Router) {
			r.Use(handlers.CSRFMiddleware(config.Cfg.CSRFAuthKey))
			r.Use(userHandler.AuthMiddleware)

			r.Get("/accounts", accountHandler.HandleListAccounts)
			r.Post("/accounts", accountHandler.HandleCreateAccount)
			r.Put("/accounts/{id}", accountHandler.HandleUpdateAccount)
			r.Delete("/accounts/{id}", accountHandler.HandleDeleteAccount)

			r.Get("/categories", categoryHandler.HandleListCategories)
			r.Post("/categories", categoryHandler.HandleCreateCategory)
			r.Put("/categories/{id}", categoryHandler.HandleUpdateCategory)
			r.Delete("/categories/{id}", categoryHandler.HandleDeleteCategory)

			r.Get("/transactions", transactionHandler.HandleListTransactions)
			r.Post("/transactions", transactionHandler.HandleAddTransaction)
			r.Delete("/transactions/{id}", transactionHandler.HandleDeleteTransaction)

			r.Get("/debts", debtHandler.HandleListDebts)
			r.Post("/debts", debtHandler.HandleCreateDebt)
			r.Get("/debts/{id}", debtHandler.HandleGetDebt)
			r.Put("/debts/{id}", debtHandler.HandleUpdateDebt)
			r.Delete("/debts/{id}", debtHandler.HandleDeleteDebt)
			r.Post("/debts/{id}/pay", debtHandler.HandlePayDebt)

			r.Get("/recurring", recurringHandler.HandleListRecurring)
			r.Post("/recurring", recurringHandler.HandleCreateRecurring)
			r.Put("/recurring/{id}", recurringHandler.HandleUpdateRecurring)
			r.Delete("/recurring/{id}", recurringHandler.HandleDeleteRecurring)
			r.Post("/recurring/{id}/execute", recurringHandler.HandleExecuteRecurring)
			r.Post("/recurring/{id}/pause", recurringHandler.HandlePauseRecurring)
			r.Post("/recurring/{id}/reactivate", recurringHandler.HandleReactivateRecurring)

			r.Get("/goals", goalHandler.HandleListGoals)
			r.Post("/goals", goalHandler.HandleCreateGoal)
			r.Put("/goals/{id}", goalHandler.HandleUpdateGoal)
			r.Delete("/goals/{id}", goalHandler.HandleDeleteGoal)
			r.Post("/goals/{id}/contribute", goalHandler.HandleContributeToGoal)

			r.Get("/investments", investmentHandler.HandleListInvestments)
			r.Post("/investments", investmentHandler.HandleCreateInvestment)
			r.Put("/investments/{id}", investmentHandler.HandleUpdateInvestment)
			r.Delete("/investments/{id}", investmentHandler.HandleDeleteInvestment)
			r.Post("/investments/import", investmentHandler.HandleImportInvestments)

			r.Get("/dashboard/summary", dashboardHandler.HandleGetSummary)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
		}
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
