package enums

import "fmt"

// InventoryTransactionType maps to the inventory_transaction_type_enum enum in Postgres.
type InventoryTransactionType string

const (
	InventoryTransactionTypePurchaseIn InventoryTransactionType = "purchase_in"
	InventoryTransactionTypeSaleOut    InventoryTransactionType = "sale_out"
	InventoryTransactionTypeAdjustment InventoryTransactionType = "adjustment"
	InventoryTransactionTypeReturn     InventoryTransactionType = "return"
)

var validInventoryTransactionTypes = []InventoryTransactionType{
	InventoryTransactionTypePurchaseIn,
	InventoryTransactionTypeSaleOut,
	InventoryTransactionTypeAdjustment,
	InventoryTransactionTypeReturn,
}

// IsValid reports whether the value matches the canonical transaction type enum.
func (t InventoryTransactionType) IsValid() bool {
	for _, candidate := range validInventoryTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseInventoryTransactionType converts raw input into InventoryTransactionType.
func ParseInventoryTransactionType(value string) (InventoryTransactionType, error) {
	for _, candidate := range validInventoryTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory transaction type %q", value)
}

// ReferenceType names the kind of upstream event that caused a transaction.
// Together with the reference id and product id it forms the idempotency key
// for automatically generated transactions.
type ReferenceType string

const (
	ReferenceTypeChannelOrder    ReferenceType = "channel_order"
	ReferenceTypePurchaseInvoice ReferenceType = "purchase_invoice"
	ReferenceTypeAgentAction     ReferenceType = "agent_action"
)

var validReferenceTypes = []ReferenceType{
	ReferenceTypeChannelOrder,
	ReferenceTypePurchaseInvoice,
	ReferenceTypeAgentAction,
}

// IsValid reports whether the value matches a known reference type.
func (t ReferenceType) IsValid() bool {
	for _, candidate := range validReferenceTypes {
		if candidate == t {
			return true
		}
	}
	return false
}
