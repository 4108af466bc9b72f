// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	firebase "firebase.google.com/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/afterdark-app/afterdark/internal/api"
	"github.com/afterdark-app/afterdark/internal/auth"
	"github.com/afterdark-app/afterdark/internal/config"
	"github.com/afterdark-app/afterdark/internal/db"
	"github.com/afterdark-app/afterdark/internal/discovery"
	"github.com/afterdark-app/afterdark/internal/event"
	"github.com/afterdark-app/afterdark/internal/feed"
	"github.com/afterdark-app/afterdark/internal/guestlist"
	"github.com/afterdark-app/afterdark/internal/health"
	"github.com/afterdark-app/afterdark/internal/idempotency"
	"github.com/afterdark-app/afterdark/internal/message"
	"github.com/afterdark-app/afterdark/internal/middleware"
	"github.com/afterdark-app/afterdark/internal/notification"
	"github.com/afterdark-app/afterdark/internal/payment"
	"github.com/afterdark-app/afterdark/internal/social"
	"github.com/afterdark-app/afterdark/internal/tracing"
	"github.com/afterdark-app/afterdark/internal/upload"
)

const (
	serviceName  = "afterdark-api"
	feedCacheTTL = 5 * time.Minute
)

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Afterdark API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Tracing is opt-in via the standard OTLP endpoint variable.
	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	traceProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      otlpEndpoint != "",
		Environment:  cfg.Env,
		OTLPEndpoint: otlpEndpoint,
		SamplingRate: 1.0,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	// Repositories. Events and device tokens are Postgres-backed; the
	// social graph, guestlists, and messaging currently ride on the
	// in-memory implementations.
	eventRepo := event.NewPostgresRepository(sqlDB, logger)
	socialRepo := social.NewInMemoryRepository()
	guestlistRepo := guestlist.NewInMemoryRepository()
	messageRepo := message.NewInMemoryRepository()
	tokenRepo := notification.NewPostgresTokenRepository(sqlDB, logger)
	idempotencyRepo := idempotency.NewInMemoryRepository()

	// Redis backs the feed cache and distributed rate limiting. Both fall
	// back to local alternatives when Redis is not configured.
	var (
		redisClient    *redis.Client
		feedCache      *feed.Cache
		rateLimitStore middleware.RateLimitStore = middleware.NewInMemoryRateLimitStore()
		redisChecker   api.HealthChecker
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		feedCache = feed.NewCache(redisClient, feedCacheTTL)
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient)
		redisChecker = health.NewRedisChecker(redisClient)
	}

	weights := feed.DefaultWeights()
	if cfg.FeedCalibrationPath != "" {
		loaded, err := feed.LoadCalibration(cfg.FeedCalibrationPath)
		if err != nil {
			logger.Warn("failed to load feed calibration, using defaults",
				"path", cfg.FeedCalibrationPath, "error", err)
		} else {
			weights = loaded
		}
	}

	// Push notifications require Firebase credentials.
	var notifier *notification.Service
	if cfg.FCMCredentialsPath != "" {
		ctx := context.Background()
		app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.FCMCredentialsPath))
		if err != nil {
			logger.Error("failed to initialize firebase", "error", err)
			os.Exit(1)
		}
		fcmClient, err := app.Messaging(ctx)
		if err != nil {
			logger.Error("failed to initialize FCM client", "error", err)
			os.Exit(1)
		}
		notifier = notification.NewService(tokenRepo, notification.NewFCMSender(fcmClient, logger), logger)
	} else {
		logger.Info("push notifications disabled: FCM credentials not configured")
	}

	metrics := middleware.NewMetrics()
	discoveryMetrics := discovery.NewMetrics()

	var validator middleware.TokenValidator
	if cfg.JWTPreviousSecret != "" {
		validator = auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)
	} else {
		validator = auth.NewJWTService(cfg.JWTSecret)
	}
	requireAuth := middleware.Auth(validator)
	optionalAuth := middleware.OptionalAuth(validator)

	hub := message.NewHub()
	messageService := message.NewService(messageRepo, socialRepo, hub)

	eventHandlers := api.NewEventHandlers(eventRepo, socialRepo, notifier)
	nearbyHandlers := api.NewNearbyHandlers(eventRepo, socialRepo, discoveryMetrics)
	feedHandlers := api.NewFeedHandlers(eventRepo, weights, feedCache)
	socialHandlers := api.NewSocialHandlers(socialRepo)
	guestlistHandlers := api.NewGuestlistHandlers(guestlistRepo, eventRepo, notifier)
	messageHandlers := api.NewMessageHandlers(messageService, hub, notifier)
	deviceHandlers := api.NewDeviceHandlers(tokenRepo)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:      health.NewDBChecker(sqlDB),
		RedisChecker:   redisChecker,
		MetricsEnabled: true,
	})

	mux := http.NewServeMux()

	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	mux.Handle("/feed", optionalAuth(methodHandler(map[string]http.HandlerFunc{
		http.MethodGet: feedHandlers.Feed,
	})))

	mux.Handle("/events", requireAuth(methodHandler(map[string]http.HandlerFunc{
		http.MethodPost: eventHandlers.CreateEvent,
	})))
	nearbyLimiter := middleware.RateLimiter(rateLimitStore, middleware.DefaultDiscoveryLimit(), middleware.IPKeyFunc(), metrics)
	mux.Handle("/events/nearby", nearbyLimiter(optionalAuth(methodHandler(map[string]http.HandlerFunc{
		http.MethodGet: nearbyHandlers.Nearby,
	}))))
	mux.Handle("/events/", routeEvents(eventHandlers, guestlistHandlers, requireAuth, optionalAuth))

	mux.Handle("/users/", routeUsers(socialHandlers, requireAuth))
	mux.Handle("/guestlist/", routeGuestlist(guestlistHandlers, requireAuth))

	messageLimiter := middleware.RateLimiter(rateLimitStore, middleware.DefaultMessageLimit(), middleware.UserKeyFunc(), metrics)
	mux.Handle("/messages", requireAuth(messageLimiter(methodHandler(map[string]http.HandlerFunc{
		http.MethodPost: messageHandlers.Send,
	}))))
	mux.Handle("/conversations", requireAuth(methodHandler(map[string]http.HandlerFunc{
		http.MethodGet: messageHandlers.Conversations,
	})))
	mux.Handle("/conversations/", requireAuth(methodHandler(map[string]http.HandlerFunc{
		http.MethodGet: messageHandlers.History,
	})))
	mux.Handle("/ws", requireAuth(methodHandler(map[string]http.HandlerFunc{
		http.MethodGet: messageHandlers.Subscribe,
	})))

	mux.Handle("/devices", requireAuth(methodHandler(map[string]http.HandlerFunc{
		http.MethodPost: deviceHandlers.Register,
	})))
	mux.Handle("/devices/", requireAuth(methodHandler(map[string]http.HandlerFunc{
		http.MethodDelete: deviceHandlers.Remove,
	})))

	// Flyer uploads require R2 credentials.
	if cfg.R2BucketName != "" {
		uploadService, err := upload.NewService(upload.ServiceConfig{
			BucketName:      cfg.R2BucketName,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Endpoint:        cfg.R2Endpoint,
			MaxSizeMB:       cfg.R2MaxUploadSizeMB,
		})
		if err != nil {
			logger.Error("failed to initialize upload service", "error", err)
			os.Exit(1)
		}
		uploadHandlers := api.NewUploadHandlers(uploadService)
		mux.Handle("/uploads/sign", requireAuth(methodHandler(map[string]http.HandlerFunc{
			http.MethodPost: uploadHandlers.SignUpload,
		})))
	} else {
		logger.Info("flyer uploads disabled: R2 not configured")
	}

	// Promoter purchases require Stripe credentials.
	if cfg.Stripe.Enabled() {
		paymentRepo := payment.NewInMemoryPaymentRepository()
		stripeClient := payment.NewStripeClient(cfg.Stripe.APIKey)
		paymentHandlers := api.NewPaymentHandlers(eventRepo, paymentRepo, stripeClient, cfg.Stripe.BoostPriceID)
		webhookHandlers := api.NewWebhookHandlers(cfg.Stripe.WebhookSecret, paymentRepo, payment.NewInMemoryWebhookRepository())

		mux.Handle("/payments", requireAuth(methodHandler(map[string]http.HandlerFunc{
			http.MethodGet: paymentHandlers.ListPayments,
		})))
		mux.Handle("/payments/checkout", requireAuth(methodHandler(map[string]http.HandlerFunc{
			http.MethodPost: paymentHandlers.CreateCheckoutSession,
		})))
		mux.Handle("/internal/stripe", methodHandler(map[string]http.HandlerFunc{
			http.MethodPost: webhookHandlers.HandleStripeWebhook,
		}))
	} else {
		logger.Info("payments disabled: Stripe not configured")
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"afterdark-api","version":"0.0.1"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	corsOrigins := splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS"))

	// Outermost first: RequestID -> Tracing -> Logging -> CORS -> Metrics ->
	// global rate limit -> idempotency -> routes.
	var handler http.Handler = mux
	if cfg.Env == "development" {
		handler = middleware.Profiling(middleware.ProfilingConfig{
			Enabled:     true,
			Environment: cfg.Env,
		})(handler)
	}
	handler = middleware.IdempotencyMiddleware(idempotencyRepo, map[string]bool{
		"/payments/checkout": true,
	})(handler)
	handler = middleware.RateLimiter(rateLimitStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc(), metrics)(handler)
	handler = middleware.HTTPMetrics(metrics)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   corsOrigins,
		AllowCredentials: true,
		MaxAge:           300,
	})(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	handler = middleware.RequestID(handler)

	// Expired idempotency keys are swept in the background.
	cleanupStop := make(chan struct{})
	go idempotency.RunPeriodicCleanup(idempotencyRepo, time.Hour, 24*time.Hour, cleanupStop)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	close(cleanupStop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := traceProvider.Shutdown(ctx); err != nil {
		logger.Warn("failed to shut down tracing", "error", err)
	}

	logger.Info("server stopped")
}

// methodHandler dispatches requests by HTTP method, returning 405 for
// anything not in the table.
func methodHandler(routes map[string]http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := routes[r.Method]; ok {
			h(w, r)
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeBadRequest)
		api.WriteError(w, ctx, http.StatusMethodNotAllowed, api.ErrCodeBadRequest, "Method not allowed")
	})
}

// routeEvents dispatches /events/{id} and its subresources.
func routeEvents(events *api.EventHandlers, guestlists *api.GuestlistHandlers, requireAuth, optionalAuth func(http.Handler) http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/events/"), "/")

		var handler http.Handler
		switch {
		case len(parts) == 1 && parts[0] != "":
			switch r.Method {
			case http.MethodGet:
				handler = optionalAuth(http.HandlerFunc(events.GetEvent))
			case http.MethodPut:
				handler = requireAuth(http.HandlerFunc(events.UpdateEvent))
			case http.MethodDelete:
				handler = requireAuth(http.HandlerFunc(events.DeleteEvent))
			}
		case len(parts) == 2 && parts[1] == "attend":
			switch r.Method {
			case http.MethodPost:
				handler = requireAuth(http.HandlerFunc(events.Attend))
			case http.MethodDelete:
				handler = requireAuth(http.HandlerFunc(events.Unattend))
			}
		case len(parts) == 2 && parts[1] == "guestlist":
			switch r.Method {
			case http.MethodPost:
				handler = requireAuth(http.HandlerFunc(guestlists.Request))
			case http.MethodGet:
				handler = requireAuth(http.HandlerFunc(guestlists.List))
			}
		}

		serveOrReject(w, r, handler)
	})
}

// routeUsers dispatches /users/{id}/follow|followers|following|friends.
func routeUsers(socials *api.SocialHandlers, requireAuth func(http.Handler) http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/users/"), "/")

		var handler http.Handler
		if len(parts) == 2 && parts[0] != "" {
			switch parts[1] {
			case "follow":
				switch r.Method {
				case http.MethodPost:
					handler = requireAuth(http.HandlerFunc(socials.Follow))
				case http.MethodDelete:
					handler = requireAuth(http.HandlerFunc(socials.Unfollow))
				}
			case "followers":
				if r.Method == http.MethodGet {
					handler = http.HandlerFunc(socials.Followers)
				}
			case "following":
				if r.Method == http.MethodGet {
					handler = http.HandlerFunc(socials.Following)
				}
			case "friends":
				if r.Method == http.MethodGet {
					handler = http.HandlerFunc(socials.Friends)
				}
			}
		}

		serveOrReject(w, r, handler)
	})
}

// routeGuestlist dispatches /guestlist/{id} and /guestlist/{id}/decide.
func routeGuestlist(guestlists *api.GuestlistHandlers, requireAuth func(http.Handler) http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/guestlist/"), "/")

		var handler http.Handler
		switch {
		case len(parts) == 1 && parts[0] != "" && r.Method == http.MethodGet:
			handler = requireAuth(http.HandlerFunc(guestlists.Get))
		case len(parts) == 2 && parts[1] == "decide" && r.Method == http.MethodPost:
			handler = requireAuth(http.HandlerFunc(guestlists.Decide))
		}

		serveOrReject(w, r, handler)
	})
}

func serveOrReject(w http.ResponseWriter, r *http.Request, handler http.Handler) {
	if handler == nil {
		ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
		api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
		return
	}
	handler.ServeHTTP(w, r)
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
