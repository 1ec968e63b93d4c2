package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockline-hq/stockline-backend/pkg/db/models"
	"github.com/stockline-hq/stockline-backend/pkg/enums"
)

// Repository manages persistence for products and the stock audit log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	UpdateProductQtyFrom(ctx context.Context, id uuid.UUID, fromQty, toQty int) (bool, error)
	FindTransactionByReference(ctx context.Context, productID uuid.UUID, referenceType enums.ReferenceType, referenceID string) (*models.InventoryTransaction, error)
	CreateTransaction(ctx context.Context, txn *models.InventoryTransaction) error
	ListTransactionsByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]models.InventoryTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProductQtyFrom swaps the on-hand quantity only when the row still
// holds the quantity the caller read. It reports false when a concurrent
// writer got there first and the caller has to re-read.
func (r *repository) UpdateProductQtyFrom(ctx context.Context, id uuid.UUID, fromQty, toQty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND on_hand_qty = ?", id, fromQty).
		Update("on_hand_qty", toQty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindTransactionByReference(ctx context.Context, productID uuid.UUID, referenceType enums.ReferenceType, referenceID string) (*models.InventoryTransaction, error) {
	var txn models.InventoryTransaction
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND reference_type = ? AND reference_id = ?", productID, referenceType, referenceID).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.InventoryTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactionsByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]models.InventoryTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var txns []models.InventoryTransaction
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}
