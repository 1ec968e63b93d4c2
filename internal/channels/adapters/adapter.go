package adapters

import (
	"context"

	"github.com/google/uuid"

	"github.com/stockline-hq/stockline-backend/pkg/enums"
)

// ExternalProductType mirrors the storefront's catalog hierarchy.
type ExternalProductType string

const (
	ExternalProductSimple    ExternalProductType = "simple"
	ExternalProductVariable  ExternalProductType = "variable"
	ExternalProductVariation ExternalProductType = "variation"
)

// ExternalProduct is one storefront catalog entry. Variable products are
// returned paired with their variations in the same FetchProducts call so a
// caller can present a drill-down without extra round trips.
type ExternalProduct struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	SKU           string              `json:"sku,omitempty"`
	StockQuantity *int                `json:"stock_quantity,omitempty"`
	Type          ExternalProductType `json:"type"`
	ParentID      string              `json:"parent_id,omitempty"`
}

// StockChange is a signed stock delta derived from a webhook payload.
type StockChange struct {
	ExternalProductID string
	Quantity          int
	Type              enums.InventoryTransactionType
	ReferenceID       string
	ReferenceType     enums.ReferenceType
}

// CallbackResult carries the correlation id and fresh credentials extracted
// from a storefront's connect callback.
type CallbackResult struct {
	ChannelID   uuid.UUID
	Credentials map[string]string
}

// Credentials is the decrypted credential map handed to adapter calls.
type Credentials map[string]string

// Adapter abstracts one storefront protocol. Implementations hold no
// per-channel state; everything they need arrives per call.
type Adapter interface {
	// Type identifies the storefront protocol this adapter speaks.
	Type() enums.ChannelType

	// ValidateConfig structurally checks connection fields before any
	// network call is attempted.
	ValidateConfig(fields map[string]string) error

	// BuildConnectURL is deterministic and performs no I/O. The channel id
	// rides along as a correlation token the callback hands back.
	BuildConnectURL(channelID uuid.UUID, config map[string]string, appBaseURL string) (string, error)

	// ParseCallback extracts the correlation id and freshly issued
	// credentials from the storefront's callback body.
	ParseCallback(rawBody []byte) (*CallbackResult, error)

	// FetchProducts lists the external catalog, transparently paginating.
	FetchProducts(ctx context.Context, storeURL string, creds Credentials, search string) ([]ExternalProduct, error)

	// PushStock sets an absolute quantity on the external product.
	PushStock(ctx context.Context, storeURL string, creds Credentials, externalProductID string, quantity int) error

	// RegisterWebhooks subscribes every supported topic and returns the
	// freshly generated shared secret for encrypted storage.
	RegisterWebhooks(ctx context.Context, storeURL string, creds Credentials, callbackURL string) (secret string, topics []string, err error)

	// ProcessWebhook verifies the signature against the stored secret
	// before parsing, and converts the payload into stock changes.
	// Unknown topics yield an empty slice, not an error.
	ProcessWebhook(rawBody []byte, signature, topic, secret string) ([]StockChange, error)
}
