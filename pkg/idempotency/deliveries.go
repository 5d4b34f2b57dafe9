// Package idempotency suppresses redelivered webhook bodies.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/angelmondragon/orderflow-backend/pkg/redis"
)

// ErrDuplicate is returned by Claim for a body already claimed in the scope.
var ErrDuplicate = errors.New("delivery already processed")

// Deliveries remembers which delivery bodies were handled, per scope, for a
// fixed window.
type Deliveries struct {
	store  redis.IdempotencyStore
	window time.Duration
}

func NewDeliveries(store redis.IdempotencyStore, window time.Duration) (*Deliveries, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if window <= 0 {
		return nil, errors.New("delivery window must be positive")
	}
	return &Deliveries{store: store, window: window}, nil
}

// Claim is held by the one caller allowed to apply a delivery.
type Claim struct {
	store redis.IdempotencyStore
	key   string
}

// Claim takes the delivery for the caller, keyed by a digest of body. A
// second Claim of the same body within the window fails with ErrDuplicate.
func (d *Deliveries) Claim(ctx context.Context, scope string, body []byte) (*Claim, error) {
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	sum := sha256.Sum256(body)
	key := d.store.IdempotencyKey("delivery:"+scope, hex.EncodeToString(sum[:]))

	ok, err := d.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), d.window)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDuplicate
	}
	return &Claim{store: d.store, key: key}, nil
}

// Release forgets the delivery so the provider's retry is applied. Safe on a
// nil Claim.
func (c *Claim) Release(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.store.Del(ctx, c.key)
}
