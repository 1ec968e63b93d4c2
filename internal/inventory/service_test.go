package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stockline-hq/stockline-backend/pkg/db/models"
	"github.com/stockline-hq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stockline-hq/stockline-backend/pkg/errors"
	"github.com/stockline-hq/stockline-backend/pkg/outbox"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.InventoryTransaction{}, &models.OutboxEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	publisher := outbox.NewService(outbox.NewRepository(db), nil)
	svc, err := NewService(NewRepository(db), testTxRunner{db: db}, publisher)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, qty int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:        uuid.New(),
		SKU:       "SKU-" + uuid.NewString()[:8],
		Name:      "Test Product",
		OnHandQty: qty,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func countTransactions(t *testing.T, db *gorm.DB, productID uuid.UUID) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.InventoryTransaction{}).Where("product_id = ?", productID).Count(&count).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return count
}

func reloadProduct(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Product {
	t.Helper()
	var product models.Product
	if err := db.First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return &product
}

func TestApplyChangeClampsAtZero(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	product := seedProduct(t, db, 10)

	result, err := svc.ApplyChange(context.Background(), ApplyChangeInput{
		ProductID:     product.ID,
		QuantityDelta: -50,
		Type:          enums.InventoryTransactionTypeSaleOut,
		ReferenceType: enums.ReferenceTypeChannelOrder,
		ReferenceID:   "order-1",
	})
	if err != nil {
		t.Fatalf("apply change: %v", err)
	}
	if !result.Applied {
		t.Fatal("expected the change to apply")
	}
	if result.AppliedDelta != -10 {
		t.Fatalf("applied delta = %d, want -10", result.AppliedDelta)
	}
	if result.OnHandQty != 0 {
		t.Fatalf("on hand = %d, want 0", result.OnHandQty)
	}

	if got := reloadProduct(t, db, product.ID).OnHandQty; got != 0 {
		t.Fatalf("stored on hand = %d, want 0", got)
	}

	var txn models.InventoryTransaction
	if err := db.First(&txn, "product_id = ?", product.ID).Error; err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if txn.QuantityDelta != -10 {
		t.Fatalf("recorded delta = %d, want the clamped -10", txn.QuantityDelta)
	}
}

func TestApplyChangeReplayIsIdempotent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	product := seedProduct(t, db, 20)

	input := ApplyChangeInput{
		ProductID:     product.ID,
		QuantityDelta: -5,
		Type:          enums.InventoryTransactionTypeSaleOut,
		ReferenceType: enums.ReferenceTypeChannelOrder,
		ReferenceID:   "order-7",
	}

	first, err := svc.ApplyChange(context.Background(), input)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if !first.Applied {
		t.Fatal("expected the first delivery to apply")
	}

	second, err := svc.ApplyChange(context.Background(), input)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if second.Applied {
		t.Fatal("expected the replay to be a no-op")
	}

	if got := reloadProduct(t, db, product.ID).OnHandQty; got != 15 {
		t.Fatalf("on hand = %d, want 15 after one net change", got)
	}
	if count := countTransactions(t, db, product.ID); count != 1 {
		t.Fatalf("transaction rows = %d, want 1", count)
	}
}

func TestApplyChangeZeroNetDeltaWritesNothing(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	product := seedProduct(t, db, 0)

	result, err := svc.ApplyChange(context.Background(), ApplyChangeInput{
		ProductID:     product.ID,
		QuantityDelta: -3,
		Type:          enums.InventoryTransactionTypeSaleOut,
		ReferenceType: enums.ReferenceTypeChannelOrder,
		ReferenceID:   "order-9",
	})
	if err != nil {
		t.Fatalf("apply change: %v", err)
	}
	if result.Applied {
		t.Fatal("expected a fully clamped change to be a no-op")
	}
	if count := countTransactions(t, db, product.ID); count != 0 {
		t.Fatalf("transaction rows = %d, want 0", count)
	}
}

func TestApplyChangeUnknownProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.ApplyChange(context.Background(), ApplyChangeInput{
		ProductID:     uuid.New(),
		QuantityDelta: 1,
		Type:          enums.InventoryTransactionTypeSaleOut,
		ReferenceType: enums.ReferenceTypeChannelOrder,
		ReferenceID:   "order-11",
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestAdjustRejectsInsufficientStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	product := seedProduct(t, db, 10)

	_, err := svc.Adjust(context.Background(), AdjustInput{
		ProductID:     product.ID,
		QuantityDelta: -50,
		ActorUserID:   uuid.New(),
	})
	if err == nil {
		t.Fatal("expected an insufficient stock error")
	}

	var insufficient *ErrInsufficientStock
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if insufficient.CurrentQty != 10 {
		t.Fatalf("surfaced current qty = %d, want 10", insufficient.CurrentQty)
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}

	if got := reloadProduct(t, db, product.ID).OnHandQty; got != 10 {
		t.Fatalf("on hand = %d, want the untouched 10", got)
	}
	if count := countTransactions(t, db, product.ID); count != 0 {
		t.Fatalf("transaction rows = %d, want 0", count)
	}
}

func TestAdjustRecordsAdjustment(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	product := seedProduct(t, db, 4)
	actor := uuid.New()
	notes := "cycle count"

	result, err := svc.Adjust(context.Background(), AdjustInput{
		ProductID:     product.ID,
		QuantityDelta: 6,
		Notes:         &notes,
		ActorUserID:   actor,
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if !result.Applied || result.OnHandQty != 10 {
		t.Fatalf("unexpected result: %+v", result)
	}

	var txn models.InventoryTransaction
	if err := db.First(&txn, "product_id = ?", product.ID).Error; err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if txn.Type != enums.InventoryTransactionTypeAdjustment {
		t.Fatalf("type = %s, want adjustment", txn.Type)
	}
	if txn.CreatedBy == nil || *txn.CreatedBy != actor {
		t.Fatalf("created by = %v, want %s", txn.CreatedBy, actor)
	}
	if txn.ReferenceType != nil || txn.ReferenceID != nil {
		t.Fatal("manual adjustments carry no reference")
	}

	var events int64
	if err := db.Model(&models.OutboxEvent{}).Where("aggregate_id = ?", product.ID).Count(&events).Error; err != nil {
		t.Fatalf("count outbox events: %v", err)
	}
	if events != 1 {
		t.Fatalf("outbox events = %d, want 1", events)
	}
}

// staleFirstReadRepo hands the service an outdated on-hand quantity on the
// first product read, standing in for a concurrent worker that moved the row
// between the read and the write.
type staleFirstReadRepo struct {
	Repository
	staleQty int
	served   *bool
}

func (r *staleFirstReadRepo) WithTx(tx *gorm.DB) Repository {
	return &staleFirstReadRepo{Repository: r.Repository.WithTx(tx), staleQty: r.staleQty, served: r.served}
}

func (r *staleFirstReadRepo) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := r.Repository.FindProductByID(ctx, id)
	if err == nil && !*r.served {
		*r.served = true
		product.OnHandQty = r.staleQty
	}
	return product, err
}

func TestApplyChangeRetriesWhenQuantityMovesUnderneath(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	// The row already absorbed a +5 from another worker; this worker still
	// read the original 10.
	product := seedProduct(t, db, 15)
	served := false
	repo := &staleFirstReadRepo{Repository: NewRepository(db), staleQty: 10, served: &served}
	publisher := outbox.NewService(outbox.NewRepository(db), nil)
	svc, err := NewService(repo, testTxRunner{db: db}, publisher)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.ApplyChange(context.Background(), ApplyChangeInput{
		ProductID:     product.ID,
		QuantityDelta: 3,
		Type:          enums.InventoryTransactionTypeReturn,
		ReferenceType: enums.ReferenceTypeChannelOrder,
		ReferenceID:   "order-21",
	})
	if err != nil {
		t.Fatalf("apply change: %v", err)
	}
	if !served {
		t.Fatal("expected the outdated read to be served")
	}
	if !result.Applied || result.AppliedDelta != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.OnHandQty != 18 {
		t.Fatalf("on hand = %d, want 18 with both deltas kept", result.OnHandQty)
	}
	if got := reloadProduct(t, db, product.ID).OnHandQty; got != 18 {
		t.Fatalf("stored on hand = %d, want 18", got)
	}

	// The ledger entry carries the delta that actually landed.
	var txn models.InventoryTransaction
	if err := db.First(&txn, "product_id = ?", product.ID).Error; err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if txn.QuantityDelta != 3 {
		t.Fatalf("recorded delta = %d, want 3", txn.QuantityDelta)
	}
}

// blindReferenceRepo never sees prior ledger rows, forcing the unique index
// to arbitrate a duplicate delivery instead of the reference pre-check.
type blindReferenceRepo struct {
	Repository
}

func (r *blindReferenceRepo) WithTx(tx *gorm.DB) Repository {
	return &blindReferenceRepo{Repository: r.Repository.WithTx(tx)}
}

func (r *blindReferenceRepo) FindTransactionByReference(context.Context, uuid.UUID, enums.ReferenceType, string) (*models.InventoryTransaction, error) {
	return nil, gorm.ErrRecordNotFound
}

func TestApplyChangeDuplicateReferenceLosesRaceCleanly(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	product := seedProduct(t, db, 20)
	publisher := outbox.NewService(outbox.NewRepository(db), nil)
	svc, err := NewService(&blindReferenceRepo{Repository: NewRepository(db)}, testTxRunner{db: db}, publisher)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	input := ApplyChangeInput{
		ProductID:     product.ID,
		QuantityDelta: -5,
		Type:          enums.InventoryTransactionTypeSaleOut,
		ReferenceType: enums.ReferenceTypeChannelOrder,
		ReferenceID:   "order-33",
	}

	first, err := svc.ApplyChange(context.Background(), input)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if !first.Applied {
		t.Fatal("expected the first delivery to apply")
	}

	second, err := svc.ApplyChange(context.Background(), input)
	if err != nil {
		t.Fatalf("losing delivery: %v", err)
	}
	if second.Applied {
		t.Fatal("expected the losing delivery to be a no-op")
	}

	if got := reloadProduct(t, db, product.ID).OnHandQty; got != 15 {
		t.Fatalf("on hand = %d, want 15 after one net change", got)
	}
	if count := countTransactions(t, db, product.ID); count != 1 {
		t.Fatalf("transaction rows = %d, want 1", count)
	}
}
