package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateProduct         OutboxAggregateType = "product"
	AggregatePurchaseInvoice OutboxAggregateType = "purchase_invoice"
	AggregateAgentAction     OutboxAggregateType = "agent_action"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateProduct,
	AggregatePurchaseInvoice,
	AggregateAgentAction,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventInventoryTransactionRecorded OutboxEventType = "inventory_transaction_recorded"
	EventPurchaseInvoicePaid          OutboxEventType = "purchase_invoice_paid"
	EventAgentActionExecuted          OutboxEventType = "agent_action_executed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventInventoryTransactionRecorded,
	EventPurchaseInvoicePaid,
	EventAgentActionExecuted,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
