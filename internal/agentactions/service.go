package agentactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockline-hq/stockline-backend/internal/invoices"
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
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type invoiceCreator interface {
	CreateTx(ctx context.Context, tx *gorm.DB, input invoices.CreateInvoiceInput) (*models.PurchaseInvoice, error)
}

// ErrAlreadyResolved reports a lost claim race: another request moved the
// action out of pending_approval first.
var ErrAlreadyResolved = pkgerrors.New(pkgerrors.CodeConflict, "This action has already been resolved")

// Service arbitrates the pending_approval -> executed/dismissed transitions
// so that exactly one request wins regardless of how many race.
type Service interface {
	Create(ctx context.Context, input CreateActionInput) (*models.AgentAction, error)
	Get(ctx context.Context, actionID uuid.UUID) (*models.AgentAction, error)
	ListPending(ctx context.Context, limit int) ([]models.AgentAction, error)
	Approve(ctx context.Context, actionID, actorUserID uuid.UUID) (*ApprovalResult, error)
	Dismiss(ctx context.Context, actionID, actorUserID uuid.UUID) error
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	invoices invoiceCreator
}

// CreateActionInput captures a proposal from the reasoning process.
type CreateActionInput struct {
	AgentType enums.AgentType
	Plan      []byte
	Rationale string
}

// ApprovalResult reports what an approval materialized.
type ApprovalResult struct {
	Action    *models.AgentAction
	InvoiceID *uuid.UUID
}

// NewService wires the agent action service.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, invoiceSvc invoiceCreator) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("agent action repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if invoiceSvc == nil {
		return nil, fmt.Errorf("invoice service required")
	}
	return &service{repo: repo, tx: tx, outbox: publisher, invoices: invoiceSvc}, nil
}

// Create validates the plan payload against its agent type schema before the
// row is stored, so approval never trips over a malformed plan.
func (s *service) Create(ctx context.Context, input CreateActionInput) (*models.AgentAction, error) {
	if !input.AgentType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid agent type %q", input.AgentType))
	}
	if input.Rationale == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rationale required")
	}
	if err := validatePlan(input.AgentType, input.Plan); err != nil {
		return nil, err
	}

	action := &models.AgentAction{
		ID:        uuid.New(),
		AgentType: input.AgentType,
		Status:    enums.AgentActionStatusPendingApproval,
		Plan:      input.Plan,
		Rationale: input.Rationale,
	}
	if err := s.repo.Create(ctx, action); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create agent action")
	}
	return action, nil
}

func (s *service) Get(ctx context.Context, actionID uuid.UUID) (*models.AgentAction, error) {
	if actionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "action id required")
	}
	action, err := s.repo.FindByID(ctx, actionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "agent action not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agent action")
	}
	return action, nil
}

func (s *service) ListPending(ctx context.Context, limit int) ([]models.AgentAction, error) {
	actions, err := s.repo.ListPending(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending actions")
	}
	return actions, nil
}

// Approve claims the action with a conditional update and, having won the
// claim, materializes the plan inside the same transaction. Losing the race
// returns ErrAlreadyResolved without side effects.
func (s *service) Approve(ctx context.Context, actionID, actorUserID uuid.UUID) (*ApprovalResult, error) {
	if actionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "action id required")
	}
	if actorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var result *ApprovalResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		action, err := repo.FindByID(ctx, actionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "agent action not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agent action")
		}

		resolvedAt := time.Now()
		affected, err := repo.Claim(ctx, actionID, enums.AgentActionStatusExecuted, actorUserID, resolvedAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim agent action")
		}
		if affected == 0 {
			return ErrAlreadyResolved
		}

		action.Status = enums.AgentActionStatusExecuted
		action.ResolvedBy = &actorUserID
		action.ResolvedAt = &resolvedAt

		invoiceID, err := s.materialize(ctx, tx, repo, action, actorUserID)
		if err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventAgentActionExecuted,
			AggregateType: enums.AggregateAgentAction,
			AggregateID:   action.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actorUserID},
			Data: payloads.AgentActionExecutedEvent{
				ActionID:   action.ID,
				AgentType:  action.AgentType,
				ResolvedBy: actorUserID,
				ResolvedAt: resolvedAt,
			},
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit agent action event")
		}

		result = &ApprovalResult{Action: action, InvoiceID: invoiceID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Dismiss moves a pending action to dismissed. No plan side effects, but the
// same claim guard keeps terminal states terminal.
func (s *service) Dismiss(ctx context.Context, actionID, actorUserID uuid.UUID) error {
	if actionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "action id required")
	}
	if actorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindByID(ctx, actionID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "agent action not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agent action")
		}

		affected, err := repo.Claim(ctx, actionID, enums.AgentActionStatusDismissed, actorUserID, time.Now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dismiss agent action")
		}
		if affected == 0 {
			return ErrAlreadyResolved
		}
		return nil
	})
}

// materialize turns the won claim into its effect inside the claim's
// transaction.
func (s *service) materialize(ctx context.Context, tx *gorm.DB, repo Repository, action *models.AgentAction, actorUserID uuid.UUID) (*uuid.UUID, error) {
	switch action.AgentType {
	case enums.AgentTypeReorder:
		plan, err := decodeReorderPlan(action.Plan)
		if err != nil {
			return nil, err
		}

		lines := make([]invoices.LineInput, 0, len(plan.Lines))
		for _, line := range plan.Lines {
			productID := line.ProductID
			lines = append(lines, invoices.LineInput{
				ProductID:   &productID,
				Description: line.Description,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitCost,
				TaxPercent:  line.TaxPercent,
			})
		}

		invoice, err := s.invoices.CreateTx(ctx, tx, invoices.CreateInvoiceInput{
			InvoiceNumber: plan.InvoiceNumber,
			CompanyID:     plan.CompanyID,
			InvoiceDate:   time.Now(),
			Notes:         plan.Notes,
			Lines:         lines,
			ActorUserID:   actorUserID,
		})
		if err != nil {
			return nil, err
		}
		return &invoice.ID, nil

	case enums.AgentTypePriceChange:
		plan, err := decodePriceChangePlan(action.Plan)
		if err != nil {
			return nil, err
		}
		affected, err := repo.UpdateProductPrice(ctx, plan.ProductID, plan.NewPrice)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product price")
		}
		if affected == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan references an unknown product")
		}
		return nil, nil

	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported agent type %q", action.AgentType))
	}
}
