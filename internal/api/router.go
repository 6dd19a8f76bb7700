package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/orderdesk/orderdesk/internal/api/middleware"
	"github.com/orderdesk/orderdesk/internal/auth"
	"github.com/orderdesk/orderdesk/internal/chat"
	"github.com/orderdesk/orderdesk/internal/config"
	"github.com/orderdesk/orderdesk/internal/files"
	"github.com/orderdesk/orderdesk/internal/handlers"
	"github.com/orderdesk/orderdesk/internal/store"
)

// NewRouter creates and configures the HTTP router. redisStore may be nil.
func NewRouter(
	cfg *config.Config,
	logger zerolog.Logger,
	db store.DataStore,
	redisStore *store.RedisStore,
	fileStore *files.Store,
	hub *chat.Hub,
	tokens *auth.Manager,
) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(50 * 1024 * 1024)) // uploads included
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting on credential endpoints
	limiter := middleware.NewRateLimiter(redisStore, logger)
	r.Use(limiter.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(db, redisStore, fileStore, hub, tokens)
	authmw := middleware.NewAuthMiddleware(tokens, db)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Post("/login", h.Login)
	r.Post("/api/client/register", h.ClientRegister)
	r.Post("/api/client/login", h.ClientLogin)
	r.Post("/api/client/auth-telegram", h.AuthTelegram)
	r.Get("/api/prices", h.Prices)
	r.Get("/api/faq", h.FAQ)
	r.Get("/api/feedbacks/public", h.ListFeedbacks)

	// Realtime endpoint: authenticates its own token before upgrading
	r.Get("/ws", chat.ServeWS(hub, logger))

	// Client routes
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth)

		r.Post("/api/client/orders", h.CreateOrder)
		r.Get("/api/client/orders", h.MyOrders)
		r.Get("/api/client/orders/{orderID}", h.MyOrder)
		r.Post("/api/client/orders/{orderID}/upload", h.UploadOrderFile)
		r.Get("/api/client/orders/{orderID}/files", h.OrderFiles)
		r.Get("/api/client/orders/{orderID}/files/{fileID}", h.DownloadOrderFile)
		r.Get("/api/client/orders/{orderID}/messages", h.OrderHistory)

		r.Get("/api/client/support/messages", h.SupportHistory)
		r.Post("/api/client/support/messages", h.PostSupportMessage)

		r.Post("/api/client/promocode/validate", h.ValidatePromocode)

		r.Get("/api/client/profile", h.Profile)
		r.Put("/api/client/profile", h.UpdateProfile)

		r.Post("/api/client/feedback", h.AddFeedback)
	})

	// Staff routes
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth)
		r.Use(authmw.RequireAdmin)

		r.Get("/api/orders", h.ListOrders)
		r.Get("/api/order/{orderID}", h.GetOrder)
		r.Put("/api/order/{orderID}", h.UpdateOrder)
		r.Get("/api/order/{orderID}/messages", h.OrderHistory)

		r.Get("/api/messages", h.AllMessages)
		r.Post("/api/send_message_to_user", h.SendMessageToUser)
		r.Post("/api/send_file_to_user", h.SendFileToUser)
		r.Get("/api/download_file/{fileID}", h.DownloadFile)

		r.Get("/api/feedbacks", h.ListFeedbacks)
	})

	return r
}
