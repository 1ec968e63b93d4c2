package agentactions

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockline-hq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stockline-hq/stockline-backend/pkg/errors"
)

// ReorderPlan proposes a draft purchase invoice for a supplier.
type ReorderPlan struct {
	CompanyID     uuid.UUID         `json:"company_id"`
	InvoiceNumber string            `json:"invoice_number"`
	Lines         []ReorderPlanLine `json:"lines"`
	Notes         *string           `json:"notes,omitempty"`
}

// ReorderPlanLine is one proposed purchase line.
type ReorderPlanLine struct {
	ProductID   uuid.UUID       `json:"product_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	TaxPercent  decimal.Decimal `json:"tax_percent"`
}

// PriceChangePlan proposes a new unit price for a product.
type PriceChangePlan struct {
	ProductID uuid.UUID       `json:"product_id"`
	NewPrice  decimal.Decimal `json:"new_price"`
}

// decodeReorderPlan validates the opaque payload against the reorder schema.
// The reasoning process writes these rows, so the boundary is defensive
// about shape.
func decodeReorderPlan(raw json.RawMessage) (*ReorderPlan, error) {
	var plan ReorderPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode reorder plan")
	}
	if plan.CompanyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reorder plan: company id required")
	}
	if plan.InvoiceNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reorder plan: invoice number required")
	}
	if len(plan.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reorder plan: at least one line required")
	}
	for i, line := range plan.Lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("reorder plan line %d: product id required", i+1))
		}
		if !line.Quantity.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("reorder plan line %d: quantity must be positive", i+1))
		}
		if line.UnitCost.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("reorder plan line %d: unit cost must not be negative", i+1))
		}
	}
	return &plan, nil
}

func decodePriceChangePlan(raw json.RawMessage) (*PriceChangePlan, error) {
	var plan PriceChangePlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode price change plan")
	}
	if plan.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price change plan: product id required")
	}
	if !plan.NewPrice.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price change plan: new price must be positive")
	}
	return &plan, nil
}

// validatePlan decodes payloads per agent type without materializing them.
func validatePlan(agentType enums.AgentType, raw json.RawMessage) error {
	switch agentType {
	case enums.AgentTypeReorder:
		_, err := decodeReorderPlan(raw)
		return err
	case enums.AgentTypePriceChange:
		_, err := decodePriceChangePlan(raw)
		return err
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported agent type %q", agentType))
	}
}
