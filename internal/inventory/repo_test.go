package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	dbpkg "github.com/stockline-hq/stockline-backend/pkg/db"
	"github.com/stockline-hq/stockline-backend/pkg/db/models"
	"github.com/stockline-hq/stockline-backend/pkg/enums"
)

func TestRepositoryFindProductByID(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewRepository(db)
	product := seedProduct(t, db, 12)

	found, err := repo.FindProductByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.ID, found.ID)
	assert.Equal(t, 12, found.OnHandQty)

	_, err = repo.FindProductByID(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepositoryUpdateProductQtyFrom(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewRepository(db)
	product := seedProduct(t, db, 5)

	swapped, err := repo.UpdateProductQtyFrom(context.Background(), product.ID, 5, 42)
	require.NoError(t, err)
	assert.True(t, swapped)

	found, err := repo.FindProductByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, found.OnHandQty)

	// A swap keyed on a quantity the row no longer holds must not write.
	swapped, err = repo.UpdateProductQtyFrom(context.Background(), product.ID, 5, 99)
	require.NoError(t, err)
	assert.False(t, swapped)

	found, err = repo.FindProductByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, found.OnHandQty)
}

func TestRepositoryFindTransactionByReference(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewRepository(db)
	product := seedProduct(t, db, 5)

	refType := enums.ReferenceTypeChannelOrder
	refID := "order-77"
	txn := &models.InventoryTransaction{
		ID:            uuid.New(),
		ProductID:     product.ID,
		QuantityDelta: -2,
		Type:          enums.InventoryTransactionTypeSaleOut,
		ReferenceType: &refType,
		ReferenceID:   &refID,
	}
	require.NoError(t, repo.CreateTransaction(context.Background(), txn))

	found, err := repo.FindTransactionByReference(context.Background(), product.ID, refType, refID)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, found.ID)

	_, err = repo.FindTransactionByReference(context.Background(), product.ID, refType, "order-unknown")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepositoryListTransactionsByProduct(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewRepository(db)
	product := seedProduct(t, db, 50)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		refID := uuid.NewString()
		refType := enums.ReferenceTypeChannelOrder
		txn := &models.InventoryTransaction{
			ID:            uuid.New(),
			ProductID:     product.ID,
			QuantityDelta: -1,
			Type:          enums.InventoryTransactionTypeSaleOut,
			ReferenceType: &refType,
			ReferenceID:   &refID,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.CreateTransaction(context.Background(), txn))
	}

	txns, err := repo.ListTransactionsByProduct(context.Background(), product.ID, 2)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.False(t, txns[0].CreatedAt.Before(txns[1].CreatedAt), "newest transaction must come first")

	all, err := repo.ListTransactionsByProduct(context.Background(), product.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRepositoryDuplicateReferenceHitsUniqueIndex(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewRepository(db)
	product := seedProduct(t, db, 5)

	refType := enums.ReferenceTypeChannelOrder
	refID := "order-55"
	first := &models.InventoryTransaction{
		ID:            uuid.New(),
		ProductID:     product.ID,
		QuantityDelta: -1,
		Type:          enums.InventoryTransactionTypeSaleOut,
		ReferenceType: &refType,
		ReferenceID:   &refID,
	}
	require.NoError(t, repo.CreateTransaction(context.Background(), first))

	dup := &models.InventoryTransaction{
		ID:            uuid.New(),
		ProductID:     product.ID,
		QuantityDelta: -1,
		Type:          enums.InventoryTransactionTypeSaleOut,
		ReferenceType: &refType,
		ReferenceID:   &refID,
	}
	err := repo.CreateTransaction(context.Background(), dup)
	require.Error(t, err)
	assert.True(t, dbpkg.IsUniqueViolation(err, "ux_inventory_txn_reference"),
		"duplicate reference must surface as the idempotency index, got: %v", err)

	// Manual adjustments carry no reference and are never deduplicated.
	for i := 0; i < 2; i++ {
		adj := &models.InventoryTransaction{
			ID:            uuid.New(),
			ProductID:     product.ID,
			QuantityDelta: 1,
			Type:          enums.InventoryTransactionTypeAdjustment,
		}
		require.NoError(t, repo.CreateTransaction(context.Background(), adj))
	}
}
