package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

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
}

// Service is the single entry point for stock mutations. Every change to a
// product's on-hand quantity flows through here so the audit log stays
// complete and the (product, reference) idempotency key is enforced.
type Service interface {
	ApplyChange(ctx context.Context, input ApplyChangeInput) (*ChangeResult, error)
	ApplyChangeTx(ctx context.Context, tx *gorm.DB, input ApplyChangeInput) (*ChangeResult, error)
	Adjust(ctx context.Context, input AdjustInput) (*ChangeResult, error)
	ListTransactions(ctx context.Context, productID uuid.UUID, limit int) ([]models.InventoryTransaction, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// ApplyChangeInput describes an externally-driven stock delta. The
// (ProductID, ReferenceType, ReferenceID) tuple makes redelivery safe.
type ApplyChangeInput struct {
	ProductID     uuid.UUID
	QuantityDelta int
	Type          enums.InventoryTransactionType
	ReferenceType enums.ReferenceType
	ReferenceID   string
	Notes         *string
	ActorUserID   uuid.UUID
}

// AdjustInput describes a manual administrative correction.
type AdjustInput struct {
	ProductID     uuid.UUID
	QuantityDelta int
	Notes         *string
	ActorUserID   uuid.UUID
}

// ChangeResult reports what actually happened to the ledger. AppliedDelta
// may be smaller in magnitude than the requested delta when clamping kicked
// in; Applied is false when the change was a duplicate or a net no-op.
type ChangeResult struct {
	Applied       bool
	AppliedDelta  int
	OnHandQty     int
	TransactionID uuid.UUID
}

// ErrInsufficientStock is returned by Adjust when the delta would drive the
// on-hand quantity negative.
type ErrInsufficientStock struct {
	ProductID  uuid.UUID
	CurrentQty int
	Requested  int
}

func (e *ErrInsufficientStock) Error() string {
	return fmt.Sprintf("insufficient stock: current quantity %d, requested change %d", e.CurrentQty, e.Requested)
}

// NewService wires the inventory service with its repository and transaction
// runner.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: publisher}, nil
}

// ApplyChange applies a referenced stock delta with clamping: the on-hand
// quantity never goes below zero, and the transaction records the delta that
// was actually applied. A duplicate reference is a no-op.
func (s *service) ApplyChange(ctx context.Context, input ApplyChangeInput) (*ChangeResult, error) {
	var result *ChangeResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.ApplyChangeTx(ctx, tx, input)
		return err
	})
	if errors.Is(err, errDuplicateReference) {
		// Lost a race against a concurrent delivery of the same reference;
		// the rolled-back work was already done by the winner.
		return &ChangeResult{Applied: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyChangeTx is ApplyChange running inside the caller's transaction, for
// callers that post stock as part of a larger unit of work.
func (s *service) ApplyChangeTx(ctx context.Context, tx *gorm.DB, input ApplyChangeInput) (*ChangeResult, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.Type))
	}
	if !input.ReferenceType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid reference type %q", input.ReferenceType))
	}
	if input.ReferenceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference id required")
	}

	repo := s.repo.WithTx(tx)

	if _, err := repo.FindTransactionByReference(ctx, input.ProductID, input.ReferenceType, input.ReferenceID); err == nil {
		return &ChangeResult{Applied: false}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check transaction reference")
	}

	product, appliedDelta, newQty, err := s.settleQty(ctx, repo, input.ProductID, input.QuantityDelta, true)
	if err != nil {
		return nil, err
	}
	if appliedDelta == 0 {
		return &ChangeResult{Applied: false, OnHandQty: newQty}, nil
	}

	return s.record(ctx, tx, repo, product, appliedDelta, newQty, input.Type, &input.ReferenceType, &input.ReferenceID, input.Notes, input.ActorUserID)
}

// Adjust applies a manual correction under the strict rule: a delta that
// would drive stock negative is rejected outright, surfacing the current
// quantity for display.
func (s *service) Adjust(ctx context.Context, input AdjustInput) (*ChangeResult, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.QuantityDelta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity delta must be non-zero")
	}

	var result *ChangeResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		product, appliedDelta, newQty, err := s.settleQty(ctx, repo, input.ProductID, input.QuantityDelta, false)
		if err != nil {
			return err
		}

		result, err = s.record(ctx, tx, repo, product, appliedDelta, newQty, enums.InventoryTransactionTypeAdjustment, nil, nil, input.Notes, input.ActorUserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

const qtySwapAttempts = 5

// settleQty moves the on-hand quantity by delta through a read, compute,
// compare-and-set cycle. The swap is keyed on the quantity that was read, so
// an interleaved writer makes it miss and the cycle runs again against the
// fresh value. With clamp set, a delta past zero is truncated; otherwise it
// is rejected with the current quantity attached.
func (s *service) settleQty(ctx context.Context, repo Repository, productID uuid.UUID, delta int, clamp bool) (*models.Product, int, int, error) {
	for attempt := 0; attempt < qtySwapAttempts; attempt++ {
		product, err := repo.FindProductByID(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, 0, 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return nil, 0, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		newQty := product.OnHandQty + delta
		if newQty < 0 {
			if !clamp {
				cause := &ErrInsufficientStock{
					ProductID:  product.ID,
					CurrentQty: product.OnHandQty,
					Requested:  delta,
				}
				return nil, 0, 0, pkgerrors.Wrap(pkgerrors.CodeStateConflict, cause,
					fmt.Sprintf("Insufficient stock. Current quantity: %d", product.OnHandQty))
			}
			newQty = 0
		}
		appliedDelta := newQty - product.OnHandQty
		if appliedDelta == 0 {
			return product, 0, newQty, nil
		}

		swapped, err := repo.UpdateProductQtyFrom(ctx, product.ID, product.OnHandQty, newQty)
		if err != nil {
			return nil, 0, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update on-hand quantity")
		}
		if swapped {
			return product, appliedDelta, newQty, nil
		}
	}
	return nil, 0, 0, pkgerrors.New(pkgerrors.CodeDependency, "on-hand quantity kept changing under concurrent writes")
}

func (s *service) ListTransactions(ctx context.Context, productID uuid.UUID, limit int) ([]models.InventoryTransaction, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	txns, err := s.repo.ListTransactionsByProduct(ctx, productID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory transactions")
	}
	return txns, nil
}

// record writes the audit row for an already-settled quantity move, then
// emits the domain event through the same transaction.
func (s *service) record(
	ctx context.Context,
	tx *gorm.DB,
	repo Repository,
	product *models.Product,
	appliedDelta, newQty int,
	txnType enums.InventoryTransactionType,
	referenceType *enums.ReferenceType,
	referenceID *string,
	notes *string,
	actorUserID uuid.UUID,
) (*ChangeResult, error) {
	txn := &models.InventoryTransaction{
		ID:            uuid.New(),
		ProductID:     product.ID,
		QuantityDelta: appliedDelta,
		Type:          txnType,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		Notes:         notes,
	}
	if actorUserID != uuid.Nil {
		txn.CreatedBy = &actorUserID
	}

	if err := repo.CreateTransaction(ctx, txn); err != nil {
		// A concurrent delivery of the same reference lost the race on
		// ux_inventory_txn_reference; the change is already recorded.
		if referenceID != nil && dbpkg.IsUniqueViolation(err, "ux_inventory_txn_reference") {
			return nil, errDuplicateReference
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record inventory transaction")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventInventoryTransactionRecorded,
		AggregateType: enums.AggregateProduct,
		AggregateID:   product.ID,
		Version:       1,
		Data: payloads.InventoryTransactionRecordedEvent{
			TransactionID: txn.ID,
			ProductID:     product.ID,
			QuantityDelta: appliedDelta,
			OnHandQty:     newQty,
			Type:          txnType,
			ReferenceType: referenceType,
			ReferenceID:   referenceID,
		},
	}
	if actorUserID != uuid.Nil {
		event.Actor = &outbox.ActorRef{UserID: actorUserID}
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit inventory event")
	}

	return &ChangeResult{
		Applied:       true,
		AppliedDelta:  appliedDelta,
		OnHandQty:     newQty,
		TransactionID: txn.ID,
	}, nil
}

var errDuplicateReference = errors.New("duplicate transaction reference")
