package invoices

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockline-hq/stockline-backend/pkg/db/models"
	"github.com/stockline-hq/stockline-backend/pkg/enums"
)

// Repository manages persistence for purchase invoices and their payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateInvoice(ctx context.Context, invoice *models.PurchaseInvoice) error
	FindInvoiceByID(ctx context.Context, id uuid.UUID) (*models.PurchaseInvoice, error)
	ListInvoices(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]models.PurchaseInvoice, error)
	UpdateInvoiceStatus(ctx context.Context, id uuid.UUID, status enums.PurchaseInvoiceStatus) error
	ApplyPaymentAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (bool, error)
	ReversePaymentAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	DeletePayment(ctx context.Context, id uuid.UUID) (bool, error)
	ListPaymentsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an invoice repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateInvoice(ctx context.Context, invoice *models.PurchaseInvoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindInvoiceByID(ctx context.Context, id uuid.UUID) (*models.PurchaseInvoice, error) {
	var invoice models.PurchaseInvoice
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) ListInvoices(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]models.PurchaseInvoice, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Order("invoice_date DESC, created_at DESC").Limit(limit).Offset(offset)
	if companyID != uuid.Nil {
		query = query.Where("company_id = ?", companyID)
	}

	var invoices []models.PurchaseInvoice
	if err := query.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) UpdateInvoiceStatus(ctx context.Context, id uuid.UUID, status enums.PurchaseInvoiceStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.PurchaseInvoice{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// ApplyPaymentAmount increments amount_paid database-side, guarded so the
// row itself rejects a cancelled invoice or an increment past the total.
// It reports false when the guard refused the write; the caller re-reads to
// tell the two apart.
func (r *repository) ApplyPaymentAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PurchaseInvoice{}).
		Where("id = ? AND status <> ? AND amount_paid + ? <= total_amount", id, enums.PurchaseInvoiceStatusCancelled, amount).
		Update("amount_paid", gorm.Expr("amount_paid + ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ReversePaymentAmount backs a confirmed payment deletion out of
// amount_paid.
func (r *repository) ReversePaymentAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.PurchaseInvoice{}).
		Where("id = ?", id).
		Update("amount_paid", gorm.Expr("amount_paid - ?", amount)).Error
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// DeletePayment reports whether this call actually removed the row, so only
// one of two racing deletions reverses the invoice amount.
func (r *repository) DeletePayment(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.Payment{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListPaymentsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("payment_date ASC, created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
