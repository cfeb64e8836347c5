package server

import (
	"net/http"

	analytics_api "ms-storefront/internal/analytics/api"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/order/order_api"
	"ms-storefront/internal/pricing/pricing_api"
	"ms-storefront/internal/push/push_api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Handlers are the HTTP surfaces the router mounts.
type Handlers struct {
	Orders    *order_api.Handler
	Push      *push_api.Handler
	Pricing   *pricing_api.Handler
	Analytics *analytics_api.Handler
	// Auth guards admin and push routes.
	Auth func(http.Handler) http.Handler
	// Admin runs after Auth on /api/admin routes.
	Admin func(http.Handler) http.Handler
}

// NewRouter wires every route. The hosted functions accept any origin.
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type", "X-Service-Key"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// --- Public Routes ---
	r.Route("/functions/v1", func(r chi.Router) {
		r.Post("/create-guest-order", h.Orders.CreateGuestOrder)
		r.Post("/verify-razorpay-payment", h.Orders.VerifyRazorpayPayment)
		r.Post("/create-razorpay-order", h.Orders.CreateRazorpayOrder)
		r.With(h.Auth).Post("/send-push-notification", h.Push.SendPushNotification)
	})
	log.Info("ROUTER", "Function routes registered under /functions/v1")

	r.Route("/api", func(r chi.Router) {
		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Get("/", h.Orders.GetOrder)
			r.Get("/events", h.Orders.StreamOrderStatus)
			r.Get("/receipt-qr", h.Orders.ReceiptQR)
		})
		r.Get("/gold-rates/{karat}", h.Pricing.GetGoldRate)
		r.Post("/pricing/quote", h.Pricing.Quote)
		r.Get("/pincode/{pincode}", h.Pricing.ValidatePincode)
		r.Get("/push/vapid-public-key", h.Push.GetVAPIDPublicKey)

		// --- Protected Routes ---
		r.Group(func(r chi.Router) {
			r.Use(h.Auth)
			r.Post("/push/subscriptions", h.Push.Subscribe)
			r.Delete("/push/subscriptions", h.Push.Unsubscribe)

			// --- Admin Routes ---
			r.Group(func(r chi.Router) {
				r.Use(h.Admin)
				r.Put("/admin/gold-rates/{karat}", h.Pricing.SetGoldRate)
				r.Post("/admin/receipts/verify", h.Orders.VerifyReceipt)
				h.Analytics.RegisterRoutes(r)
			})
		})
	})
	log.Info("ROUTER", "API routes registered under /api")

	return r
}
