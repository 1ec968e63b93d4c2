package webhooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stockline-hq/stockline-backend/internal/channels/webhook"
	pkgerrors "github.com/stockline-hq/stockline-backend/pkg/errors"
	"github.com/stockline-hq/stockline-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

// Header names WooCommerce sends with every delivery. Other adapters reuse
// the same pair; the adapter layer interprets the values.
const (
	headerTopic     = "X-WC-Webhook-Topic"
	headerSignature = "X-WC-Webhook-Signature"
)

type deliveryProcessor interface {
	Process(ctx context.Context, delivery webhook.Delivery) (*webhook.Result, error)
}

// ChannelWebhook ingests storefront order/product events. The sender is an
// external system that only understands coarse status codes: anything but a
// 200 triggers redelivery, so once items are being applied the response is
// always 200 no matter how individual items fared.
func ChannelWebhook(svc deliveryProcessor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		channelID, err := uuid.Parse(chi.URLParam(r, "channelId"))
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		// The exact bytes are needed for signature verification, so the
		// body is read before any decoding happens.
		rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		result, err := svc.Process(ctx, webhook.Delivery{
			ChannelType: chi.URLParam(r, "channelType"),
			ChannelID:   channelID,
			Topic:       r.Header.Get(headerTopic),
			Signature:   r.Header.Get(headerSignature),
			RawBody:     rawBody,
		})
		if err != nil {
			if logg != nil {
				logg.Error(ctx, "webhook delivery rejected", err)
			}
			w.WriteHeader(webhookStatus(err))
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("webhook processed: %d applied, %d skipped, %d failed",
				result.Applied, result.Skipped, result.Failed))
		}
		w.WriteHeader(http.StatusOK)
	}
}

// webhookStatus collapses internal error detail into the coarse statuses an
// external storefront is allowed to see.
func webhookStatus(err error) int {
	if errors.Is(err, webhook.ErrSecretNotConfigured) {
		return http.StatusUnprocessableEntity
	}
	switch pkgerrors.As(err).Code() {
	case pkgerrors.CodeNotFound:
		return http.StatusNotFound
	case pkgerrors.CodeValidation, pkgerrors.CodeUnauthorized:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
