package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockline-hq/stockline-backend/internal/inventory"
	dbpkg "github.com/stockline-hq/stockline-backend/pkg/db"
	"github.com/stockline-hq/stockline-backend/pkg/db/models"
	"github.com/stockline-hq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stockline-hq/stockline-backend/pkg/errors"
	"github.com/stockline-hq/stockline-backend/pkg/outbox"
	"github.com/stockline-hq/stockline-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockPoster interface {
	ApplyChangeTx(ctx context.Context, tx *gorm.DB, input inventory.ApplyChangeInput) (*inventory.ChangeResult, error)
}

// Service maintains the purchase invoice ledger: totals, stock posting,
// payment application and reversal, and the derived status.
type Service interface {
	Create(ctx context.Context, input CreateInvoiceInput) (*models.PurchaseInvoice, error)
	CreateTx(ctx context.Context, tx *gorm.DB, input CreateInvoiceInput) (*models.PurchaseInvoice, error)
	Get(ctx context.Context, invoiceID uuid.UUID) (*models.PurchaseInvoice, error)
	List(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]models.PurchaseInvoice, error)
	Receive(ctx context.Context, invoiceID, actorUserID uuid.UUID) (*models.PurchaseInvoice, error)
	AddPayment(ctx context.Context, input AddPaymentInput) (*models.Payment, error)
	DeletePayment(ctx context.Context, invoiceID, paymentID, actorUserID uuid.UUID) error
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error)
	Cancel(ctx context.Context, invoiceID, actorUserID uuid.UUID) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	stock  stockPoster
}

// CreateInvoiceInput captures a new supplier bill. Received invoices post
// stock immediately; drafts wait for an explicit receive.
type CreateInvoiceInput struct {
	InvoiceNumber  string
	CompanyID      uuid.UUID
	InvoiceDate    time.Time
	DueDate        *time.Time
	Received       bool
	DiscountAmount decimal.Decimal
	Notes          *string
	Lines          []LineInput
	ActorUserID    uuid.UUID
}

// AddPaymentInput records money applied against an invoice.
type AddPaymentInput struct {
	InvoiceID   uuid.UUID
	Amount      decimal.Decimal
	PaymentDate time.Time
	Mode        enums.PaymentMode
	Reference   *string
	Notes       *string
	ActorUserID uuid.UUID
}

// ErrOverpayment rejects a payment that would push amount_paid past the
// invoice total.
type ErrOverpayment struct {
	TotalAmount decimal.Decimal
	AmountPaid  decimal.Decimal
}

func (e *ErrOverpayment) Error() string {
	return fmt.Sprintf("Payment exceeds remaining balance. Total: ₹%s, already paid: ₹%s",
		e.TotalAmount.StringFixed(2), e.AmountPaid.StringFixed(2))
}

// ErrInvoiceCancelled rejects operations on a cancelled invoice.
type ErrInvoiceCancelled struct {
	InvoiceID uuid.UUID
}

func (e *ErrInvoiceCancelled) Error() string {
	return "Cannot record payment on a cancelled invoice"
}

// NewService wires the invoice service.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, stock stockPoster) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("invoice repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock poster required")
	}
	return &service{repo: repo, tx: tx, outbox: publisher, stock: stock}, nil
}

func (s *service) Create(ctx context.Context, input CreateInvoiceInput) (*models.PurchaseInvoice, error) {
	var invoice *models.PurchaseInvoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		invoice, err = s.CreateTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// CreateTx is Create running inside the caller's transaction, for callers
// that derive an invoice as part of a larger unit of work.
func (s *service) CreateTx(ctx context.Context, tx *gorm.DB, input CreateInvoiceInput) (*models.PurchaseInvoice, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if input.InvoiceNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice number required")
	}
	if input.CompanyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line item required")
	}
	for i, line := range input.Lines {
		if !line.Quantity.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line %d: quantity must be positive", i+1))
		}
		if line.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line %d: unit price must not be negative", i+1))
		}
		if line.TaxPercent.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line %d: tax percent must not be negative", i+1))
		}
	}
	if input.DiscountAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must not be negative")
	}
	if input.InvoiceDate.IsZero() {
		input.InvoiceDate = time.Now()
	}

	totals := computeTotals(input.Lines, input.DiscountAmount)

	status := enums.PurchaseInvoiceStatusDraft
	if input.Received {
		status = enums.PurchaseInvoiceStatusReceived
	}

	invoice := &models.PurchaseInvoice{
		ID:             uuid.New(),
		InvoiceNumber:  input.InvoiceNumber,
		CompanyID:      input.CompanyID,
		InvoiceDate:    input.InvoiceDate,
		DueDate:        input.DueDate,
		Status:         status,
		Subtotal:       totals.Subtotal,
		TaxAmount:      totals.TaxAmount,
		DiscountAmount: input.DiscountAmount,
		TotalAmount:    totals.TotalAmount,
		AmountPaid:     decimal.Zero,
		Notes:          input.Notes,
		CreatedBy:      input.ActorUserID,
	}
	for i, line := range totals.Lines {
		invoice.Items = append(invoice.Items, models.PurchaseInvoiceItem{
			ID:          uuid.New(),
			InvoiceID:   invoice.ID,
			ProductID:   line.ProductID,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TaxPercent:  line.TaxPercent,
			TaxAmount:   line.TaxAmount,
			TotalAmount: line.TotalAmount,
			SortOrder:   i,
		})
	}

	repo := s.repo.WithTx(tx)
	if err := repo.CreateInvoice(ctx, invoice); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_invoice_number_company") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("invoice number %q already exists for this company", input.InvoiceNumber))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice")
	}
	if input.Received {
		if err := s.postStock(ctx, tx, invoice, input.ActorUserID); err != nil {
			return nil, err
		}
	}
	return invoice, nil
}

func (s *service) Get(ctx context.Context, invoiceID uuid.UUID) (*models.PurchaseInvoice, error) {
	if invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	invoice, err := s.repo.FindInvoiceByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	return invoice, nil
}

func (s *service) List(ctx context.Context, companyID uuid.UUID, limit, offset int) ([]models.PurchaseInvoice, error) {
	invoices, err := s.repo.ListInvoices(ctx, companyID, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
	}
	return invoices, nil
}

// Receive posts a draft invoice's stock and marks it received. Receiving an
// already received invoice is a no-op because the stock side effects are
// keyed by the invoice id in the reconciliation ledger.
func (s *service) Receive(ctx context.Context, invoiceID, actorUserID uuid.UUID) (*models.PurchaseInvoice, error) {
	if invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}

	var result *models.PurchaseInvoice
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invoice, err := repo.FindInvoiceByID(ctx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}
		if invoice.Status == enums.PurchaseInvoiceStatusCancelled {
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, &ErrInvoiceCancelled{InvoiceID: invoice.ID},
				"cannot receive a cancelled invoice")
		}

		if invoice.Status == enums.PurchaseInvoiceStatusDraft {
			if err := repo.UpdateInvoiceStatus(ctx, invoice.ID, enums.PurchaseInvoiceStatusReceived); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update invoice status")
			}
			invoice.Status = enums.PurchaseInvoiceStatusReceived
		}

		if err := s.postStock(ctx, tx, invoice, actorUserID); err != nil {
			return err
		}
		result = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) AddPayment(ctx context.Context, input AddPaymentInput) (*models.Payment, error) {
	if input.InvoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	if !input.Mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment mode %q", input.Mode))
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.PaymentDate.IsZero() {
		input.PaymentDate = time.Now()
	}

	payment := &models.Payment{
		ID:          uuid.New(),
		InvoiceID:   input.InvoiceID,
		Amount:      input.Amount,
		PaymentDate: input.PaymentDate,
		Mode:        input.Mode,
		Reference:   input.Reference,
		Notes:       input.Notes,
		CreatedBy:   input.ActorUserID,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invoice, err := repo.FindInvoiceByID(ctx, input.InvoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}
		if invoice.Status == enums.PurchaseInvoiceStatusCancelled {
			cause := &ErrInvoiceCancelled{InvoiceID: invoice.ID}
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, cause, cause.Error())
		}

		newPaid := invoice.AmountPaid.Add(input.Amount)
		if newPaid.GreaterThan(invoice.TotalAmount) {
			cause := &ErrOverpayment{TotalAmount: invoice.TotalAmount, AmountPaid: invoice.AmountPaid}
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, cause, cause.Error())
		}

		if err := repo.CreatePayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
		}

		// The guarded increment is the authoritative check: the row refuses
		// the write when a concurrent payment or cancellation landed after
		// the read above.
		applied, err := repo.ApplyPaymentAmount(ctx, invoice.ID, input.Amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply payment amount")
		}
		if !applied {
			return s.refusedPaymentError(ctx, repo, invoice.ID)
		}

		invoice, err = repo.FindInvoiceByID(ctx, invoice.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload invoice")
		}
		status := enums.PurchaseInvoiceStatusPartial
		if invoice.AmountPaid.GreaterThanOrEqual(invoice.TotalAmount) {
			status = enums.PurchaseInvoiceStatusPaid
		}
		if err := repo.UpdateInvoiceStatus(ctx, invoice.ID, status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update invoice status")
		}

		if status == enums.PurchaseInvoiceStatusPaid {
			event := outbox.DomainEvent{
				EventType:     enums.EventPurchaseInvoicePaid,
				AggregateType: enums.AggregatePurchaseInvoice,
				AggregateID:   invoice.ID,
				Version:       1,
				Actor:         &outbox.ActorRef{UserID: input.ActorUserID},
				Data: payloads.PurchaseInvoicePaidEvent{
					InvoiceID:     invoice.ID,
					InvoiceNumber: invoice.InvoiceNumber,
					CompanyID:     invoice.CompanyID,
					TotalAmount:   invoice.TotalAmount,
					PaidAt:        input.PaymentDate,
				},
			}
			if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit invoice paid event")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// refusedPaymentError re-reads the invoice to report why the row-level
// guard rejected the increment.
func (s *service) refusedPaymentError(ctx context.Context, repo Repository, invoiceID uuid.UUID) error {
	invoice, err := repo.FindInvoiceByID(ctx, invoiceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload invoice")
	}
	if invoice.Status == enums.PurchaseInvoiceStatusCancelled {
		cause := &ErrInvoiceCancelled{InvoiceID: invoice.ID}
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, cause, cause.Error())
	}
	cause := &ErrOverpayment{TotalAmount: invoice.TotalAmount, AmountPaid: invoice.AmountPaid}
	return pkgerrors.Wrap(pkgerrors.CodeStateConflict, cause, cause.Error())
}

// DeletePayment reverses a payment: the row is removed, amount_paid drops by
// the payment amount, and the status is rederived.
func (s *service) DeletePayment(ctx context.Context, invoiceID, paymentID, actorUserID uuid.UUID) error {
	if invoiceID == uuid.Nil || paymentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice id and payment id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		invoice, err := repo.FindInvoiceByID(ctx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}

		payment, err := repo.FindPaymentByID(ctx, paymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment.InvoiceID != invoice.ID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}

		deleted, err := repo.DeletePayment(ctx, payment.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete payment")
		}
		if !deleted {
			// A concurrent request already removed and reversed it.
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		if err := repo.ReversePaymentAmount(ctx, invoice.ID, payment.Amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reverse payment amount")
		}

		invoice, err = repo.FindInvoiceByID(ctx, invoice.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload invoice")
		}
		var status enums.PurchaseInvoiceStatus
		switch {
		case invoice.AmountPaid.LessThanOrEqual(decimal.Zero):
			status = enums.PurchaseInvoiceStatusReceived
		case invoice.AmountPaid.GreaterThanOrEqual(invoice.TotalAmount):
			status = enums.PurchaseInvoiceStatusPaid
		default:
			status = enums.PurchaseInvoiceStatusPartial
		}
		if err := repo.UpdateInvoiceStatus(ctx, invoice.ID, status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update invoice status")
		}
		return nil
	})
}

func (s *service) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error) {
	if invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}
	payments, err := s.repo.ListPaymentsByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return payments, nil
}

// Cancel voids an invoice that has no money applied against it.
func (s *service) Cancel(ctx context.Context, invoiceID, actorUserID uuid.UUID) error {
	if invoiceID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invoice, err := repo.FindInvoiceByID(ctx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}
		if invoice.Status == enums.PurchaseInvoiceStatusCancelled {
			return nil
		}
		if invoice.AmountPaid.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot cancel an invoice with recorded payments")
		}
		if err := repo.UpdateInvoiceStatus(ctx, invoice.ID, enums.PurchaseInvoiceStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update invoice status")
		}
		return nil
	})
}

// postStock routes each product-linked line through the reconciliation
// ledger, keyed by the invoice id so re-posting is a no-op.
func (s *service) postStock(ctx context.Context, tx *gorm.DB, invoice *models.PurchaseInvoice, actorUserID uuid.UUID) error {
	for _, item := range invoice.Items {
		if item.ProductID == nil {
			continue
		}
		qty := int(item.Quantity.IntPart())
		if qty <= 0 {
			continue
		}
		_, err := s.stock.ApplyChangeTx(ctx, tx, inventory.ApplyChangeInput{
			ProductID:     *item.ProductID,
			QuantityDelta: qty,
			Type:          enums.InventoryTransactionTypePurchaseIn,
			ReferenceType: enums.ReferenceTypePurchaseInvoice,
			ReferenceID:   invoice.ID.String(),
			ActorUserID:   actorUserID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
