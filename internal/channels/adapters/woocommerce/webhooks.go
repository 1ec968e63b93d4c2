package woocommerce

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/stockline-hq/stockline-backend/internal/channels/adapters"
	"github.com/stockline-hq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stockline-hq/stockline-backend/pkg/errors"
)

const (
	topicOrderCreated   = "order.created"
	topicOrderUpdated   = "order.updated"
	topicProductUpdated = "product.updated"

	orderStatusCancelled = "cancelled"
	orderStatusRefunded  = "refunded"
)

var webhookTopics = []string{topicOrderCreated, topicOrderUpdated, topicProductUpdated}

// RegisterWebhooks creates one subscription per supported topic, all sharing
// a freshly generated secret. The secret is returned once for encrypted
// storage and never again.
func (a *Adapter) RegisterWebhooks(ctx context.Context, storeURL string, creds adapters.Credentials, callbackURL string) (string, []string, error) {
	if strings.TrimSpace(callbackURL) == "" {
		return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook callback URL is required")
	}

	secret, err := newWebhookSecret()
	if err != nil {
		return "", nil, err
	}

	for _, topic := range webhookTopics {
		payload := map[string]any{
			"name":         appName + " " + topic,
			"topic":        topic,
			"delivery_url": callbackURL,
			"secret":       secret,
		}
		if err := a.apiSend(ctx, "POST", storeURL, creds, "/webhooks", payload, nil); err != nil {
			return "", nil, fmt.Errorf("register %s webhook: %w", topic, err)
		}
	}

	return secret, webhookTopics, nil
}

type wcOrder struct {
	ID        int64         `json:"id"`
	Status    string        `json:"status"`
	LineItems []wcOrderLine `json:"line_items"`
}

type wcOrderLine struct {
	ProductID   int64 `json:"product_id"`
	VariationID int64 `json:"variation_id"`
	Quantity    int   `json:"quantity"`
}

// ProcessWebhook verifies the delivery signature against the stored secret
// and converts order payloads into signed stock deltas. Topics with no stock
// meaning yield an empty slice.
func (a *Adapter) ProcessWebhook(rawBody []byte, signature, topic, secret string) ([]adapters.StockChange, error) {
	if err := verifySignature(rawBody, signature, secret); err != nil {
		return nil, err
	}

	switch topic {
	case topicOrderCreated:
		return parseOrderCreated(rawBody)
	case topicOrderUpdated:
		return parseOrderUpdated(rawBody)
	default:
		// product.updated and anything WooCommerce adds later carry no
		// stock delta for us.
		return nil, nil
	}
}

func parseOrderCreated(rawBody []byte) ([]adapters.StockChange, error) {
	order, err := decodeOrder(rawBody)
	if err != nil {
		return nil, err
	}

	orderRef := strconv.FormatInt(order.ID, 10)
	changes := make([]adapters.StockChange, 0, len(order.LineItems))
	for _, line := range order.LineItems {
		if line.Quantity <= 0 {
			continue
		}
		changes = append(changes, adapters.StockChange{
			ExternalProductID: lineProductID(line),
			Quantity:          -line.Quantity,
			Type:              enums.InventoryTransactionTypeSaleOut,
			ReferenceID:       orderRef,
			ReferenceType:     enums.ReferenceTypeChannelOrder,
		})
	}
	return changes, nil
}

func parseOrderUpdated(rawBody []byte) ([]adapters.StockChange, error) {
	order, err := decodeOrder(rawBody)
	if err != nil {
		return nil, err
	}

	if order.Status != orderStatusCancelled && order.Status != orderStatusRefunded {
		return nil, nil
	}

	// One reversal per order: the reference is keyed by the order alone, so
	// a cancellation followed by a refund restocks once, and it does not
	// collide with the original sale on the idempotency key.
	reversalRef := fmt.Sprintf("%d:reversal", order.ID)
	changes := make([]adapters.StockChange, 0, len(order.LineItems))
	for _, line := range order.LineItems {
		if line.Quantity <= 0 {
			continue
		}
		changes = append(changes, adapters.StockChange{
			ExternalProductID: lineProductID(line),
			Quantity:          line.Quantity,
			Type:              enums.InventoryTransactionTypeReturn,
			ReferenceID:       reversalRef,
			ReferenceType:     enums.ReferenceTypeChannelOrder,
		})
	}
	return changes, nil
}

func decodeOrder(rawBody []byte) (*wcOrder, error) {
	var order wcOrder
	if err := json.Unmarshal(rawBody, &order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode order webhook payload")
	}
	if order.ID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order webhook payload is missing an order id")
	}
	return &order, nil
}

// Variations track their own stock, so a variation line maps to the
// variation id rather than the parent product.
func lineProductID(line wcOrderLine) string {
	if line.VariationID > 0 {
		return strconv.FormatInt(line.VariationID, 10)
	}
	return strconv.FormatInt(line.ProductID, 10)
}

// verifySignature checks the base64 HMAC-SHA256 WooCommerce computes over the
// exact request bytes. Comparison is constant time.
func verifySignature(rawBody []byte, signature, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook secret is not configured")
	}
	if strings.TrimSpace(signature) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature header is missing")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature mismatch")
	}
	return nil
}

func newWebhookSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate webhook secret")
	}
	return hex.EncodeToString(buf), nil
}
