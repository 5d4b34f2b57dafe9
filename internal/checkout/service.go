package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/orderflow-backend/pkg/cache"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

const (
	previewKeyPrefix = "preview:"
	couponKeyPrefix  = "coupon:"
)

// CartSource returns the priced lines of the customer's active cart.
type CartSource interface {
	Lines(ctx context.Context, customerID uuid.UUID) ([]Line, error)
}

// OrderCounter reports a customer's order counts for COD eligibility.
type OrderCounter interface {
	CountByCustomer(ctx context.Context, customerID uuid.UUID) (OrderCounts, error)
}

// QuoteInput identifies the cart to price and how.
type QuoteInput struct {
	CustomerID  uuid.UUID
	Role        enums.ActorRole
	Currency    enums.Currency
	CouponCodes []string
}

// Service prices the live cart for previews and checkout confirmation.
type Service interface {
	// Preview may serve a cached quote.
	Preview(ctx context.Context, input QuoteInput) (*Quote, error)
	// Quote always recomputes from the live cart.
	Quote(ctx context.Context, input QuoteInput) (*Quote, error)
	CODEligibility(ctx context.Context, customerID uuid.UUID, role enums.ActorRole) (CODEligibility, error)
	InvalidateCustomer(ctx context.Context, customerID uuid.UUID) error
}

type ServiceParams struct {
	Engine          *Engine
	Cart            CartSource
	Orders          OrderCounter
	Cache           cache.Cache
	PreviewTTL      time.Duration
	CODMinCompleted int
	Logger          *logger.Logger
}

type service struct {
	engine     *Engine
	cart       CartSource
	orders     OrderCounter
	cache      cache.Cache
	previewTTL time.Duration
	codMin     int
	logg       *logger.Logger
	group      singleflight.Group
}

func NewService(p ServiceParams) (Service, error) {
	if p.Engine == nil {
		return nil, fmt.Errorf("checkout engine required")
	}
	if p.Cart == nil {
		return nil, fmt.Errorf("cart source required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("order counter required")
	}
	if p.Cache == nil {
		p.Cache = cache.NewNull()
	}
	if p.PreviewTTL <= 0 {
		p.PreviewTTL = 30 * time.Second
	}
	return &service{
		engine:     p.Engine,
		cart:       p.Cart,
		orders:     p.Orders,
		cache:      p.Cache,
		previewTTL: p.PreviewTTL,
		codMin:     p.CODMinCompleted,
		logg:       p.Logger,
	}, nil
}

func (s *service) Preview(ctx context.Context, input QuoteInput) (*Quote, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	key := PreviewKey(input.CustomerID, input.Currency, input.CouponCodes)

	var cached Quote
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"cache_key": key, "error": err.Error()}), "checkout preview cache read failed")
	}
	if hit {
		return &cached, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		quote, err := s.Quote(ctx, input)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, key, quote, s.previewTTL); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"cache_key": key, "error": err.Error()}), "checkout preview cache write failed")
		}
		return quote, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Quote), nil
}

func (s *service) Quote(ctx context.Context, input QuoteInput) (*Quote, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	lines, err := s.cart.Lines(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	cod, err := s.CODEligibility(ctx, input.CustomerID, input.Role)
	if err != nil {
		return nil, err
	}
	return s.engine.Compute(ctx, QuoteRequest{
		CustomerID:  input.CustomerID,
		Currency:    input.Currency,
		Lines:       lines,
		CouponCodes: input.CouponCodes,
		COD:         &cod,
	})
}

func (s *service) CODEligibility(ctx context.Context, customerID uuid.UUID, role enums.ActorRole) (CODEligibility, error) {
	if role.IsPrivileged() {
		return EvaluateCOD(OrderCounts{}, role, s.codMin), nil
	}
	counts, err := s.orders.CountByCustomer(ctx, customerID)
	if err != nil {
		return CODEligibility{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count customer orders")
	}
	return EvaluateCOD(counts, role, s.codMin), nil
}

// InvalidateCustomer drops every cached preview and coupon verdict of the customer.
func (s *service) InvalidateCustomer(ctx context.Context, customerID uuid.UUID) error {
	return InvalidateCustomer(ctx, s.cache, customerID)
}

// InvalidateCustomer drops the customer's preview and coupon cache entries.
func InvalidateCustomer(ctx context.Context, c cache.Cache, customerID uuid.UUID) error {
	if err := c.DeletePrefix(ctx, previewKeyPrefix+customerID.String()+":"); err != nil {
		return err
	}
	return c.DeletePrefix(ctx, couponKeyPrefix+customerID.String()+":")
}

// PreviewKey is preview:<customer>:<currency>:<codes-hash>.
func PreviewKey(customerID uuid.UUID, currency enums.Currency, codes []string) string {
	normalized, _ := NormalizeCodes(codes)
	return previewKeyPrefix + customerID.String() + ":" + string(currency) + ":" + shortHash(strings.Join(normalized, ","))
}

// CouponKey is coupon:<customer>:<code>:<amount>:<product-set-hash>.
func CouponKey(req CouponRequest) string {
	ids := make([]string, 0, len(req.ProductIDs))
	for _, id := range req.ProductIDs {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	return couponKeyPrefix + req.CustomerID.String() + ":" + req.Code + ":" +
		req.Amount.String() + string(req.Currency) + ":" + shortHash(strings.Join(ids, ","))
}

func shortHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:8])
}

// CachedValidator memoises coupon verdicts for a short TTL.
type CachedValidator struct {
	next  CouponValidator
	cache cache.Cache
	ttl   time.Duration
	logg  *logger.Logger
}

func NewCachedValidator(next CouponValidator, c cache.Cache, ttl time.Duration, logg *logger.Logger) (*CachedValidator, error) {
	if next == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if c == nil {
		c = cache.NewNull()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedValidator{next: next, cache: c, ttl: ttl, logg: logg}, nil
}

func (v *CachedValidator) Validate(ctx context.Context, req CouponRequest) (*CouponResult, error) {
	key := CouponKey(req)
	var cached CouponResult
	hit, err := v.cache.Get(ctx, key, &cached)
	if err != nil {
		v.logg.Warn(v.logg.WithFields(ctx, map[string]any{"cache_key": key, "error": err.Error()}), "coupon cache read failed")
	}
	if hit {
		return &cached, nil
	}
	result, err := v.next.Validate(ctx, req)
	if err != nil {
		return nil, err
	}
	if result != nil {
		if err := v.cache.Set(ctx, key, result, v.ttl); err != nil {
			v.logg.Warn(v.logg.WithFields(ctx, map[string]any{"cache_key": key, "error": err.Error()}), "coupon cache write failed")
		}
	}
	return result, nil
}
