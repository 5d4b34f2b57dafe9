// Package bootstrap assembles the domain services shared by the api and the
// cron worker.
package bootstrap

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/orderflow-backend/internal/address"
	"github.com/angelmondragon/orderflow-backend/internal/cart"
	"github.com/angelmondragon/orderflow-backend/internal/checkout"
	"github.com/angelmondragon/orderflow-backend/internal/coupons"
	"github.com/angelmondragon/orderflow-backend/internal/currency"
	"github.com/angelmondragon/orderflow-backend/internal/inventory"
	"github.com/angelmondragon/orderflow-backend/internal/ledger"
	"github.com/angelmondragon/orderflow-backend/internal/notifications"
	"github.com/angelmondragon/orderflow-backend/internal/orders"
	product "github.com/angelmondragon/orderflow-backend/internal/products"
	"github.com/angelmondragon/orderflow-backend/internal/webhooks"
	"github.com/angelmondragon/orderflow-backend/pkg/cache"
	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/db"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/idempotency"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/redis"
)

type Services struct {
	Outbox        *outbox.Service
	Catalog       product.Service
	Ledger        ledger.Service
	Inventory     *inventory.Manager
	Cart          cart.Service
	Checkout      checkout.Service
	Orders        orders.Service
	Notifications notifications.Service

	NotificationRepo notifications.Repository
	OutboxRepo       *outbox.Repository

	cfg  *config.Config
	logg *logger.Logger
	reg  prometheus.Registerer
}

// NewServices wires the order core. redisClient may be nil, in which case
// caches stay in process.
func NewServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (*Services, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if dbClient == nil {
		return nil, errors.New("db client required")
	}
	conn := dbClient.DB()

	var sharedCache cache.Cache = cache.NewMemory(nil)
	if cfg.FeatureFlags.UseRedisCache && redisClient != nil {
		rc, err := cache.NewRedis(redisClient)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		sharedCache = rc
	}

	s := &Services{cfg: cfg, logg: logg, reg: reg}
	s.OutboxRepo = outbox.NewRepository(conn)
	s.Outbox = outbox.NewService(s.OutboxRepo, logg)

	var err error
	s.Catalog, err = product.NewService(product.NewRepository(conn), logg)
	if err != nil {
		return nil, fmt.Errorf("catalog service: %w", err)
	}
	s.Ledger, err = ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}
	s.Inventory, err = inventory.NewManager(inventory.ManagerParams{
		DB:      dbClient,
		Repo:    inventory.NewRepository(conn),
		Ledger:  s.Ledger,
		Stock:   s.Catalog,
		Metrics: metrics.NewInventoryMetrics(reg),
		Logger:  logg,
		Config:  cfg.Inventory,
	})
	if err != nil {
		return nil, fmt.Errorf("inventory manager: %w", err)
	}

	converter, err := currency.NewConverter(cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("currency converter: %w", err)
	}
	couponValidator, err := coupons.NewValidator(coupons.NewRepository(conn), converter, logg)
	if err != nil {
		return nil, fmt.Errorf("coupon validator: %w", err)
	}
	cachedCoupons, err := checkout.NewCachedValidator(couponValidator, sharedCache, cfg.Checkout.CouponCacheTTL, logg)
	if err != nil {
		return nil, fmt.Errorf("coupon cache: %w", err)
	}
	engineCfg, err := EngineConfig(cfg.Checkout)
	if err != nil {
		return nil, err
	}
	engine, err := checkout.NewEngine(cachedCoupons, converter, engineCfg)
	if err != nil {
		return nil, fmt.Errorf("checkout engine: %w", err)
	}

	s.Cart, err = cart.NewService(cart.NewRepository(conn), dbClient, s.Catalog, sharedCache, logg)
	if err != nil {
		return nil, fmt.Errorf("cart service: %w", err)
	}

	orderRepo := orders.NewRepository(conn)
	s.Checkout, err = checkout.NewService(checkout.ServiceParams{
		Engine:          engine,
		Cart:            s.Cart,
		Orders:          orderRepo,
		Cache:           sharedCache,
		PreviewTTL:      cfg.Checkout.PreviewCacheTTL,
		CODMinCompleted: cfg.Checkout.CODMinCompleted,
		Logger:          logg,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout service: %w", err)
	}

	addressSvc, err := address.NewService(address.NewRepository(conn))
	if err != nil {
		return nil, fmt.Errorf("address service: %w", err)
	}
	s.NotificationRepo = notifications.NewRepository(conn)
	s.Notifications, err = notifications.NewService(s.NotificationRepo, dbClient, s.Outbox)
	if err != nil {
		return nil, fmt.Errorf("notification service: %w", err)
	}

	s.Orders, err = orders.NewService(orders.ServiceParams{
		Repo:          orderRepo,
		DB:            dbClient,
		Outbox:        s.Outbox,
		Inventory:     s.Inventory,
		Pricer:        s.Checkout,
		Addresses:     addressSvc,
		Cart:          s.Cart,
		Coupons:       couponValidator,
		Notifications: s.Notifications,
		Catalog:       s.Catalog,
		SigningKey:    cfg.Payments.SigningKey,
		Logger:        logg,
	})
	if err != nil {
		return nil, fmt.Errorf("order service: %w", err)
	}
	return s, nil
}

// WebhookGuard builds the signature and redelivery guard. Without redis
// every delivery reaches the order service.
func (s *Services) WebhookGuard(redisClient *redis.Client) (*webhooks.Guard, error) {
	params := webhooks.GuardParams{
		Secrets: webhooks.Secrets{
			Payment:   s.cfg.Webhooks.PaymentSecret,
			Shipping:  s.cfg.Webhooks.ShippingSecret,
			Inventory: s.cfg.Webhooks.InventorySecret,
		},
		Metrics: metrics.NewWebhookMetrics(s.reg),
		Logger:  s.logg,
	}
	if redisClient != nil {
		dedupe, err := idempotency.NewDeliveries(redisClient, s.cfg.Webhooks.IdempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("webhook dedupe: %w", err)
		}
		params.Dedupe = dedupe
	}
	guard, err := webhooks.NewGuard(params)
	if err != nil {
		return nil, fmt.Errorf("webhook guard: %w", err)
	}
	return guard, nil
}

// EngineConfig parses the checkout currencies.
func EngineConfig(cfg config.CheckoutConfig) (checkout.EngineConfig, error) {
	home, err := enums.ParseCurrency(cfg.HomeCurrency)
	if err != nil {
		return checkout.EngineConfig{}, fmt.Errorf("home currency: %w", err)
	}
	tracked := make([]enums.Currency, 0, len(cfg.TrackedCurrencies))
	for _, raw := range cfg.TrackedCurrencies {
		c, err := enums.ParseCurrency(raw)
		if err != nil {
			return checkout.EngineConfig{}, fmt.Errorf("tracked currency: %w", err)
		}
		tracked = append(tracked, c)
	}
	return checkout.EngineConfig{
		HomeCurrency:      home,
		TrackedCurrencies: tracked,
		MaxCoupons:        cfg.MaxCouponsPerOrder,
	}, nil
}
