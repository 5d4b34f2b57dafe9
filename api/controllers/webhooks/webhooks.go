package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/angelmondragon/orderflow-backend/api/responses"
	internalorders "github.com/angelmondragon/orderflow-backend/internal/orders"
	"github.com/angelmondragon/orderflow-backend/internal/webhooks"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

// maxBodyBytes bounds a single provider delivery.
const maxBodyBytes = 1 << 20

type webhookHandler interface {
	HandlePaymentWebhook(ctx context.Context, input internalorders.PaymentWebhookInput) (internalorders.WebhookResult, error)
	HandleShippingWebhook(ctx context.Context, input internalorders.ShippingWebhookInput) (internalorders.WebhookResult, error)
	HandleInventoryWebhook(ctx context.Context, input internalorders.InventoryWebhookInput) (internalorders.WebhookResult, error)
}

type guard interface {
	Process(ctx context.Context, kind webhooks.Kind, body []byte, signature string, handle webhooks.Handler) (internalorders.WebhookResult, error)
}

// PaymentWebhook applies a payment provider callback. Business rejections
// (unknown intent, amount mismatch) are answered 200 with ok=false so the
// provider stops retrying.
func PaymentWebhook(svc webhookHandler, g guard, logg *logger.Logger) http.HandlerFunc {
	return deliver(webhooks.KindPayment, g, logg, func(ctx context.Context, body []byte) (internalorders.WebhookResult, error) {
		var input internalorders.PaymentWebhookInput
		if err := decode(body, &input); err != nil {
			return internalorders.WebhookResult{}, err
		}
		return svc.HandlePaymentWebhook(ctx, input)
	})
}

func ShippingWebhook(svc webhookHandler, g guard, logg *logger.Logger) http.HandlerFunc {
	return deliver(webhooks.KindShipping, g, logg, func(ctx context.Context, body []byte) (internalorders.WebhookResult, error) {
		var input internalorders.ShippingWebhookInput
		if err := decode(body, &input); err != nil {
			return internalorders.WebhookResult{}, err
		}
		return svc.HandleShippingWebhook(ctx, input)
	})
}

func InventoryWebhook(svc webhookHandler, g guard, logg *logger.Logger) http.HandlerFunc {
	return deliver(webhooks.KindInventory, g, logg, func(ctx context.Context, body []byte) (internalorders.WebhookResult, error) {
		var input internalorders.InventoryWebhookInput
		if err := decode(body, &input); err != nil {
			return internalorders.WebhookResult{}, err
		}
		return svc.HandleInventoryWebhook(ctx, input)
	})
}

func deliver(kind webhooks.Kind, g guard, logg *logger.Logger, apply func(ctx context.Context, body []byte) (internalorders.WebhookResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if g == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook guard unavailable"))
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		result, err := g.Process(ctx, kind, body, r.Header.Get(webhooks.SignatureHeader), func(ctx context.Context) (internalorders.WebhookResult, error) {
			return apply(ctx, body)
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func decode(body []byte, dest any) error {
	if err := json.Unmarshal(body, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
	}
	return nil
}
