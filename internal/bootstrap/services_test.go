package bootstrap

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Checkout: config.CheckoutConfig{
			HomeCurrency:       "YER",
			TrackedCurrencies:  []string{"USD", "YER", "SAR"},
			PreviewCacheTTL:    30 * time.Second,
			CouponCacheTTL:     time.Minute,
			CODMinCompleted:    3,
			MaxCouponsPerOrder: 5,
		},
		Currency:  config.CurrencyConfig{Rates: map[string]string{"USD": "1", "YER": "530", "SAR": "3.75"}},
		Inventory: config.InventoryConfig{ReservationTTL: 15 * time.Minute},
		Payments:  config.PaymentsConfig{SigningKey: "signing-key"},
		Webhooks:  config.WebhooksConfig{PaymentSecret: "pay", IdempotencyTTL: time.Hour},
	}
}

func TestNewServicesWiresOrderCore(t *testing.T) {
	client := dbtest.Client(t)
	reg := prometheus.NewRegistry()

	services, err := NewServices(testConfig(), logger.Nop(), client, nil, reg)
	require.NoError(t, err)
	assert.NotNil(t, services.Orders)
	assert.NotNil(t, services.Checkout)
	assert.NotNil(t, services.Inventory)
	assert.NotNil(t, services.Notifications)

	guard, err := services.WebhookGuard(nil)
	require.NoError(t, err)
	assert.NotNil(t, guard)
}

func TestNewServicesRequiresSigningKey(t *testing.T) {
	cfg := testConfig()
	cfg.Payments.SigningKey = ""
	_, err := NewServices(cfg, logger.Nop(), dbtest.Client(t), nil, nil)
	require.Error(t, err)
}

func TestEngineConfigParsesCurrencies(t *testing.T) {
	got, err := EngineConfig(testConfig().Checkout)
	require.NoError(t, err)
	assert.Equal(t, enums.CurrencyYER, got.HomeCurrency)
	assert.Equal(t, []enums.Currency{enums.CurrencyUSD, enums.CurrencyYER, enums.CurrencySAR}, got.TrackedCurrencies)
	assert.Equal(t, 5, got.MaxCoupons)

	_, err = EngineConfig(config.CheckoutConfig{HomeCurrency: "GBP"})
	require.Error(t, err)
}
