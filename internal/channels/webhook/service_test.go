package webhook

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stockline-hq/stockline-backend/internal/channels"
	"github.com/stockline-hq/stockline-backend/internal/channels/adapters"
	"github.com/stockline-hq/stockline-backend/internal/inventory"
	"github.com/stockline-hq/stockline-backend/pkg/db/models"
	"github.com/stockline-hq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stockline-hq/stockline-backend/pkg/errors"
	"github.com/stockline-hq/stockline-backend/pkg/logger"
	"github.com/stockline-hq/stockline-backend/pkg/outbox"
	"github.com/stockline-hq/stockline-backend/pkg/vault"
)

// scriptedAdapter returns pre-baked stock changes regardless of payload.
type scriptedAdapter struct {
	changes    []adapters.StockChange
	processErr error
	gotSecret  string
}

func (a *scriptedAdapter) Type() enums.ChannelType { return enums.ChannelTypeWooCommerce }

func (a *scriptedAdapter) ValidateConfig(fields map[string]string) error { return nil }

func (a *scriptedAdapter) ParseCallback(rawBody []byte) (*adapters.CallbackResult, error) {
	return nil, nil
}

func (a *scriptedAdapter) BuildConnectURL(channelID uuid.UUID, config map[string]string, appBaseURL string) (string, error) {
	return appBaseURL, nil
}

func (a *scriptedAdapter) FetchProducts(ctx context.Context, storeURL string, creds adapters.Credentials, search string) ([]adapters.ExternalProduct, error) {
	return nil, nil
}

func (a *scriptedAdapter) PushStock(ctx context.Context, storeURL string, creds adapters.Credentials, externalProductID string, quantity int) error {
	return nil
}

func (a *scriptedAdapter) RegisterWebhooks(ctx context.Context, storeURL string, creds adapters.Credentials, callbackURL string) (string, []string, error) {
	return "", nil, nil
}

func (a *scriptedAdapter) ProcessWebhook(rawBody []byte, signature, topic, secret string) ([]adapters.StockChange, error) {
	a.gotSecret = secret
	if a.processErr != nil {
		return nil, a.processErr
	}
	return a.changes, nil
}

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

type fixture struct {
	db      *gorm.DB
	svc     Service
	adapter *scriptedAdapter
	vault   *vault.Vault
	repo    channels.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:webhook_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Channel{},
		&models.ChannelProductMapping{},
		&models.Product{},
		&models.InventoryTransaction{},
		&models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	adapter := &scriptedAdapter{}
	registry := adapters.NewRegistry()
	if err := registry.Register(adapter); err != nil {
		t.Fatalf("register adapter: %v", err)
	}
	v, err := vault.NewWithKey(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	publisher := outbox.NewService(outbox.NewRepository(db), nil)
	stock, err := inventory.NewService(inventory.NewRepository(db), testTxRunner{db: db}, publisher)
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	repo := channels.NewRepository(db)
	log := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(repo, registry, v, stock, log, nil)
	if err != nil {
		t.Fatalf("webhook service: %v", err)
	}
	return &fixture{db: db, svc: svc, adapter: adapter, vault: v, repo: repo}
}

func (f *fixture) seedChannel(t *testing.T, status enums.ChannelStatus, withSecret bool) *models.Channel {
	t.Helper()
	creds := map[string]string{"consumer_key": "ck"}
	if withSecret {
		creds[channels.CredentialWebhookSecret] = "signing-secret"
	}
	encrypted, err := f.vault.EncryptMap(creds)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	channel := &models.Channel{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Type:        enums.ChannelTypeWooCommerce,
		Name:        "Main Store",
		Status:      status,
		StoreURL:    "https://shop.example.com",
		Credentials: encrypted,
	}
	if err := f.db.Create(channel).Error; err != nil {
		t.Fatalf("seed channel: %v", err)
	}
	return channel
}

func (f *fixture) seedMappedProduct(t *testing.T, channelID uuid.UUID, externalID string, qty int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:        uuid.New(),
		SKU:       "SKU-" + uuid.NewString()[:8],
		Name:      "Mapped Product",
		OnHandQty: qty,
	}
	if err := f.db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	mapping := &models.ChannelProductMapping{
		ID:                uuid.New(),
		ChannelID:         channelID,
		ProductID:         product.ID,
		ExternalProductID: externalID,
	}
	if err := f.db.Create(mapping).Error; err != nil {
		t.Fatalf("seed mapping: %v", err)
	}
	return product
}

func (f *fixture) onHand(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := f.db.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return product.OnHandQty
}

func saleChange(externalID, orderID string, qty int) adapters.StockChange {
	return adapters.StockChange{
		ExternalProductID: externalID,
		Quantity:          qty,
		Type:              enums.InventoryTransactionTypeSaleOut,
		ReferenceType:     enums.ReferenceTypeChannelOrder,
		ReferenceID:       orderID,
	}
}

func TestProcessAppliesMappedChanges(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	channel := f.seedChannel(t, enums.ChannelStatusConnected, true)
	product := f.seedMappedProduct(t, channel.ID, "ext-1", 10)
	f.adapter.changes = []adapters.StockChange{saleChange("ext-1", "5001", -3)}

	result, err := f.svc.Process(context.Background(), Delivery{
		ChannelType: "woocommerce",
		ChannelID:   channel.ID,
		Topic:       "order.created",
		Signature:   "sig",
		RawBody:     []byte("{}"),
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Applied != 1 || result.Failed != 0 || result.Skipped != 0 {
		t.Fatalf("result = %+v", result)
	}
	if got := f.onHand(t, product.ID); got != 7 {
		t.Fatalf("on hand = %d, want 7", got)
	}
	if f.adapter.gotSecret != "signing-secret" {
		t.Fatalf("adapter saw secret %q", f.adapter.gotSecret)
	}
}

func TestProcessSkipsUnmappedProducts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	channel := f.seedChannel(t, enums.ChannelStatusConnected, true)
	product := f.seedMappedProduct(t, channel.ID, "ext-1", 10)
	f.adapter.changes = []adapters.StockChange{
		saleChange("ext-1", "5002", -2),
		saleChange("ext-unmapped", "5002", -4),
	}

	result, err := f.svc.Process(context.Background(), Delivery{
		ChannelType: "woocommerce",
		ChannelID:   channel.ID,
		Topic:       "order.created",
		RawBody:     []byte("{}"),
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Received != 2 || result.Applied != 1 || result.Skipped != 1 {
		t.Fatalf("result = %+v", result)
	}
	if got := f.onHand(t, product.ID); got != 8 {
		t.Fatalf("on hand = %d, want 8", got)
	}
}

func TestProcessRedeliveryIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	channel := f.seedChannel(t, enums.ChannelStatusConnected, true)
	product := f.seedMappedProduct(t, channel.ID, "ext-1", 10)
	f.adapter.changes = []adapters.StockChange{saleChange("ext-1", "5003", -3)}

	delivery := Delivery{
		ChannelType: "woocommerce",
		ChannelID:   channel.ID,
		Topic:       "order.created",
		RawBody:     []byte("{}"),
	}
	if _, err := f.svc.Process(context.Background(), delivery); err != nil {
		t.Fatalf("first process: %v", err)
	}
	result, err := f.svc.Process(context.Background(), delivery)
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if result.Applied != 0 || result.Skipped != 1 {
		t.Fatalf("redelivery result = %+v", result)
	}
	if got := f.onHand(t, product.ID); got != 7 {
		t.Fatalf("on hand = %d, want 7", got)
	}
}

func TestProcessUnknownChannelTypeIsNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.Process(context.Background(), Delivery{
		ChannelType: "shopify",
		ChannelID:   uuid.New(),
		RawBody:     []byte("{}"),
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestProcessDisconnectedChannelIsNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	channel := f.seedChannel(t, enums.ChannelStatusDisconnected, true)

	_, err := f.svc.Process(context.Background(), Delivery{
		ChannelType: "woocommerce",
		ChannelID:   channel.ID,
		RawBody:     []byte("{}"),
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestProcessMissingSecretIsDistinct(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	channel := f.seedChannel(t, enums.ChannelStatusConnected, false)

	_, err := f.svc.Process(context.Background(), Delivery{
		ChannelType: "woocommerce",
		ChannelID:   channel.ID,
		RawBody:     []byte("{}"),
	})
	if !errors.Is(err, ErrSecretNotConfigured) {
		t.Fatalf("err = %v, want ErrSecretNotConfigured", err)
	}
}

func TestProcessRejectedPayloadPropagates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	channel := f.seedChannel(t, enums.ChannelStatusConnected, true)
	f.adapter.processErr = pkgerrors.New(pkgerrors.CodeUnauthorized, "signature mismatch")

	_, err := f.svc.Process(context.Background(), Delivery{
		ChannelType: "woocommerce",
		ChannelID:   channel.ID,
		Signature:   "bad",
		RawBody:     []byte("{}"),
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("err = %v, want unauthorized", err)
	}
}

func TestProcessItemFailureDoesNotAbortDelivery(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	channel := f.seedChannel(t, enums.ChannelStatusConnected, true)
	product := f.seedMappedProduct(t, channel.ID, "ext-ok", 10)
	broken := f.seedMappedProduct(t, channel.ID, "ext-broken", 5)
	// Point the broken mapping at a product row that no longer exists.
	if err := f.db.Delete(&models.Product{}, "id = ?", broken.ID).Error; err != nil {
		t.Fatalf("delete product: %v", err)
	}
	f.adapter.changes = []adapters.StockChange{
		saleChange("ext-broken", "5004", -1),
		saleChange("ext-ok", "5004", -2),
	}

	result, err := f.svc.Process(context.Background(), Delivery{
		ChannelType: "woocommerce",
		ChannelID:   channel.ID,
		Topic:       "order.created",
		RawBody:     []byte("{}"),
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Failed != 1 || result.Applied != 1 {
		t.Fatalf("result = %+v", result)
	}
	if got := f.onHand(t, product.ID); got != 8 {
		t.Fatalf("on hand = %d, want 8", got)
	}
}
