package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/username/stockfolio/backend/src/config"
	"github.com/username/stockfolio/backend/src/handlers"
	"github.com/username/stockfolio/backend/src/logger"
	"github.com/username/stockfolio/backend/src/processors"
	"github.com/username/stockfolio/backend/src/services"
	"golang.org/x/time/rate"
)

func rateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func enableCORS(allowedOrigins []string) func(http.Handler) http.Handler {
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originSet[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if originSet[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-Requested-With")
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
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Stockfolio backend server starting...")

	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	priceService := services.NewPriceService(config.Cfg.QuoteTTL, config.Cfg.MarketDataTimeout)

	portfolioService := services.NewPortfolioService(
		processors.NewPortfolioProcessor(),
		processors.NewTimeSeriesProcessor(),
		processors.NewOverviewProcessor(),
		processors.NewReturnEstimator(),
		priceService,
		reportCache,
		config.Cfg.DatasetTTL,
	)

	uploadHandler := handlers.NewUploadHandler(portfolioService)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioService)
	returnsHandler := handlers.NewReturnsHandler(portfolioService)

	limiter := rate.NewLimiter(rate.Every(config.Cfg.RateLimitEvery), config.Cfg.RateLimitBurst)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(enableCORS(config.Cfg.AllowedOrigins))
	r.Use(rateLimitMiddleware(limiter))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Stockfolio Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", uploadHandler.HandleUpload)
		r.Route("/datasets/{id}", func(r chi.Router) {
			r.Get("/summary", portfolioHandler.HandleGetHoldingSummary)
			r.Get("/overview", portfolioHandler.HandleGetOverview)
			r.Get("/timeseries", portfolioHandler.HandleGetPositionSeries)
			r.Get("/returns", returnsHandler.HandleGetReturnMetrics)
		})
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
