// Package webhooks guards inbound provider deliveries: per-kind header
// signatures, redelivery suppression and delivery metrics.
package webhooks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/orderflow-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/idempotency"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/security"
)

// SignatureHeader carries hex(hmac_sha256(secret, rawBody)).
const SignatureHeader = "X-Webhook-Signature"

// ReasonDuplicate is reported for a delivery whose body was already applied.
const ReasonDuplicate = "DUPLICATE"

type Kind string

const (
	KindPayment   Kind = "payment"
	KindShipping  Kind = "shipping"
	KindInventory Kind = "inventory"
)

type deduper interface {
	Claim(ctx context.Context, scope string, body []byte) (*idempotency.Claim, error)
}

// Secrets maps each kind to its shared secret. An empty secret disables
// header verification for that kind.
type Secrets struct {
	Payment   string
	Shipping  string
	Inventory string
}

func (s Secrets) forKind(kind Kind) string {
	switch kind {
	case KindPayment:
		return s.Payment
	case KindShipping:
		return s.Shipping
	case KindInventory:
		return s.Inventory
	}
	return ""
}

type GuardParams struct {
	Secrets Secrets
	Dedupe  deduper
	Metrics *metrics.WebhookMetrics
	Logger  *logger.Logger
}

type Guard struct {
	secrets Secrets
	dedupe  deduper
	metrics *metrics.WebhookMetrics
	logg    *logger.Logger
}

// NewGuard builds a guard. Dedupe is optional; without it every delivery is
// handed to the order service, whose handlers tolerate replays.
func NewGuard(p GuardParams) (*Guard, error) {
	if p.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Guard{
		secrets: p.Secrets,
		dedupe:  p.Dedupe,
		metrics: p.Metrics,
		logg:    p.Logger,
	}, nil
}

// Handler applies one decoded delivery.
type Handler func(ctx context.Context) (orders.WebhookResult, error)

// Process verifies the header signature, suppresses redeliveries of an
// identical body and runs handle. A handler error releases the body so the
// provider can retry it.
func (g *Guard) Process(ctx context.Context, kind Kind, body []byte, signature string, handle Handler) (orders.WebhookResult, error) {
	ctx = g.logg.WithField(ctx, "webhook_kind", string(kind))

	if err := g.Verify(kind, body, signature); err != nil {
		g.metrics.Observe(string(kind), "bad_signature")
		g.logg.Warn(ctx, "webhook signature rejected")
		return orders.WebhookResult{}, err
	}

	var claim *idempotency.Claim
	if g.dedupe != nil {
		var err error
		claim, err = g.dedupe.Claim(ctx, "webhook:"+string(kind), body)
		switch {
		case errors.Is(err, idempotency.ErrDuplicate):
			g.metrics.Observe(string(kind), "duplicate")
			return orders.WebhookResult{OK: true, Reason: ReasonDuplicate}, nil
		case err != nil:
			// redis being down must not block deliveries
			g.logg.Error(ctx, "webhook idempotency check", err)
		}
	}

	result, err := handle(ctx)
	if err != nil || !result.OK {
		// nothing was applied, so a later re-send must be evaluated again
		if relErr := claim.Release(ctx); relErr != nil {
			g.logg.Error(ctx, "release webhook delivery", relErr)
		}
	}
	if err != nil {
		outcome := "rejected"
		if pkgerrors.IsRetryable(err) {
			outcome = "error"
		}
		g.metrics.Observe(string(kind), outcome)
		return orders.WebhookResult{}, err
	}
	g.metrics.Observe(string(kind), resultLabel(result))
	g.logg.Info(g.logg.WithFields(ctx, map[string]any{
		"ok":      result.OK,
		"reason":  result.Reason,
		"updated": result.Updated,
	}), "webhook processed")
	return result, nil
}

// Verify checks the header signature when the kind has a secret configured.
func (g *Guard) Verify(kind Kind, body []byte, signature string) error {
	secret := g.secrets.forKind(kind)
	if secret == "" {
		return nil
	}
	if strings.TrimSpace(signature) == "" || !security.VerifyBody(secret, body, signature) {
		return pkgerrors.New(pkgerrors.CodeBadSignature, fmt.Sprintf("%s webhook signature mismatch", kind))
	}
	return nil
}

func resultLabel(result orders.WebhookResult) string {
	switch {
	case result.OK && result.Reason == "":
		return "applied"
	case result.Reason != "":
		return strings.ToLower(result.Reason)
	default:
		return "rejected"
	}
}

