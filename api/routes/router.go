package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/angelmondragon/orderflow-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/orderflow-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/orderflow-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/orderflow-backend/api/controllers/webhooks"
	"github.com/angelmondragon/orderflow-backend/api/middleware"
	"github.com/angelmondragon/orderflow-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/orderflow-backend/internal/checkout"
	"github.com/angelmondragon/orderflow-backend/internal/inventory"
	"github.com/angelmondragon/orderflow-backend/internal/ledger"
	"github.com/angelmondragon/orderflow-backend/internal/notifications"
	"github.com/angelmondragon/orderflow-backend/internal/orders"
	"github.com/angelmondragon/orderflow-backend/internal/webhooks"
	"github.com/angelmondragon/orderflow-backend/pkg/auth"
	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/redis"
	"github.com/angelmondragon/orderflow-backend/pkg/telemetry"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type redisStore interface {
	pinger
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	IdempotencyKey(scope, id string) string
	CounterKey(name string) string
}

// Params carries everything the HTTP surface is wired to. Redis may be nil,
// which disables request idempotency and rate limiting.
type Params struct {
	Config        *config.Config
	Logger        *logger.Logger
	Tokens        *auth.Tokens
	DB            pinger
	Redis         *redis.Client
	Gatherer      prometheus.Gatherer
	Cart          cart.Service
	Checkout      checkoutsvc.Service
	Orders        orders.Service
	Inventory     *inventory.Manager
	Ledger        ledger.Service
	Notifications notifications.Service
	WebhookGuard  *webhooks.Guard
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger
	homeCurrency := enums.Currency(cfg.Checkout.HomeCurrency)

	// a nil *redis.Client must reach the middleware as an untyped nil
	var store redisStore
	if p.Redis != nil {
		store = p.Redis
	}

	webhookPolicy := middleware.NewRateLimitPolicy("webhooks", middleware.RateLimitByIP, cfg.RateLimit.Window, cfg.RateLimit.WebhooksPerIP)
	checkoutPolicy := middleware.NewRateLimitPolicy("checkout", middleware.RateLimitByUser, cfg.RateLimit.Window, cfg.RateLimit.CheckoutPerUser)

	idem := func(name string, ttl time.Duration) func(http.Handler) http.Handler {
		return middleware.Idempotency(middleware.IdempotencyPolicy{
			Name:     name,
			TTL:      ttl,
			InFlight: cfg.Idempotency.InFlightTTL,
		}, store, logg)
	}
	cartIdem := idem("cart", cfg.Idempotency.DefaultTTL)
	checkoutIdem := idem("checkout", cfg.Idempotency.CheckoutTTL)
	cancelIdem := idem("order-cancel", cfg.Idempotency.CheckoutTTL)
	adminIdem := idem("admin-orders", cfg.Idempotency.DefaultTTL)

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		telemetry.WithRoute,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, storePinger(store)))
	})
	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/webhooks", func(r chi.Router) {
		r.Use(middleware.RateLimit(webhookPolicy, store, logg))
		r.Post("/payment", webhookcontrollers.PaymentWebhook(p.Orders, p.WebhookGuard, logg))
		r.Post("/shipping", webhookcontrollers.ShippingWebhook(p.Orders, p.WebhookGuard, logg))
		r.Post("/inventory", webhookcontrollers.InventoryWebhook(p.Orders, p.WebhookGuard, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(p.Tokens, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(p.Cart, logg))
			r.With(cartIdem).Put("/items", cartcontrollers.CartUpsertItem(p.Cart, logg))
			r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(p.Cart, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/preview", controllers.CheckoutPreview(p.Checkout, homeCurrency, logg))
			r.With(middleware.RateLimit(checkoutPolicy, store, logg), checkoutIdem).
				Post("/confirm", controllers.CheckoutConfirm(p.Orders, homeCurrency, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(p.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(p.Orders, logg))
			r.With(cancelIdem).Post("/{orderId}/cancel", ordercontrollers.Cancel(p.Orders, logg))
			r.Post("/{orderId}/rate", ordercontrollers.Rate(p.Orders, logg))
			r.Post("/{orderId}/notes", controllers.OrderAddNote(p.Orders, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.ActorRoleAdmin, logg))
			r.Route("/orders/{orderId}", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(adminIdem)
					r.Post("/status", controllers.AdminUpdateOrderStatus(p.Orders, logg))
					r.Post("/ship", controllers.AdminShipOrder(p.Orders, logg))
					r.Post("/refund", controllers.AdminRefundOrder(p.Orders, logg))
					r.Post("/verify-payment", controllers.AdminVerifyPayment(p.Orders, logg))
					r.Post("/notes", controllers.OrderAddNote(p.Orders, logg))
				})
				r.Get("/reservations", controllers.AdminOrderReservations(p.Inventory, p.Ledger, logg))
			})
			r.Get("/inventory/{targetId}/ledger", controllers.AdminTargetLedger(p.Ledger, logg))
		})
	})

	return otelhttp.NewHandler(r, "orderflow-api")
}

func storePinger(store redisStore) pinger {
	if store == nil {
		return nil
	}
	return store
}
