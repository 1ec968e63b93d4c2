package enums

import "fmt"

// PurchaseInvoiceStatus maps to the purchase_invoice_status_enum enum in Postgres.
type PurchaseInvoiceStatus string

const (
	PurchaseInvoiceStatusDraft     PurchaseInvoiceStatus = "draft"
	PurchaseInvoiceStatusReceived  PurchaseInvoiceStatus = "received"
	PurchaseInvoiceStatusPartial   PurchaseInvoiceStatus = "partial"
	PurchaseInvoiceStatusPaid      PurchaseInvoiceStatus = "paid"
	PurchaseInvoiceStatusCancelled PurchaseInvoiceStatus = "cancelled"
)

var validPurchaseInvoiceStatuses = []PurchaseInvoiceStatus{
	PurchaseInvoiceStatusDraft,
	PurchaseInvoiceStatusReceived,
	PurchaseInvoiceStatusPartial,
	PurchaseInvoiceStatusPaid,
	PurchaseInvoiceStatusCancelled,
}

// IsValid reports whether the value matches the canonical invoice status enum.
func (s PurchaseInvoiceStatus) IsValid() bool {
	for _, candidate := range validPurchaseInvoiceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// PaymentMode maps to the payment_mode_enum enum in Postgres.
type PaymentMode string

const (
	PaymentModeCash         PaymentMode = "cash"
	PaymentModeBankTransfer PaymentMode = "bank_transfer"
	PaymentModeUPI          PaymentMode = "upi"
	PaymentModeCard         PaymentMode = "card"
	PaymentModeCheque       PaymentMode = "cheque"
)

var validPaymentModes = []PaymentMode{
	PaymentModeCash,
	PaymentModeBankTransfer,
	PaymentModeUPI,
	PaymentModeCard,
	PaymentModeCheque,
}

// IsValid reports whether the value matches the canonical payment mode enum.
func (m PaymentMode) IsValid() bool {
	for _, candidate := range validPaymentModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParsePaymentMode converts raw input into PaymentMode.
func ParsePaymentMode(value string) (PaymentMode, error) {
	for _, candidate := range validPaymentModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment mode %q", value)
}
