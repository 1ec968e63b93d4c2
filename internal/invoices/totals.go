package invoices

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// LineInput is one invoice line as submitted by the caller.
type LineInput struct {
	ProductID   *uuid.UUID
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxPercent  decimal.Decimal
}

type computedLine struct {
	LineInput
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalAmount decimal.Decimal
}

type invoiceTotals struct {
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalAmount decimal.Decimal
	Lines       []computedLine
}

// computeTotals rounds each line to 2 fraction digits before summation, the
// way an accounting system totals a printed invoice. The grand total is
// floored at zero when the discount exceeds the taxed subtotal.
func computeTotals(lines []LineInput, discount decimal.Decimal) invoiceTotals {
	totals := invoiceTotals{
		Subtotal:  decimal.Zero,
		TaxAmount: decimal.Zero,
		Lines:     make([]computedLine, 0, len(lines)),
	}

	for _, line := range lines {
		lineSubtotal := line.Quantity.Mul(line.UnitPrice).Round(2)
		lineTax := lineSubtotal.Mul(line.TaxPercent).Div(oneHundred).Round(2)

		totals.Subtotal = totals.Subtotal.Add(lineSubtotal)
		totals.TaxAmount = totals.TaxAmount.Add(lineTax)
		totals.Lines = append(totals.Lines, computedLine{
			LineInput:   line,
			Subtotal:    lineSubtotal,
			TaxAmount:   lineTax,
			TotalAmount: lineSubtotal.Add(lineTax),
		})
	}

	total := totals.Subtotal.Add(totals.TaxAmount).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	totals.TotalAmount = total
	return totals
}
