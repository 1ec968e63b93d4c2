package invoices

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", value, err)
	}
	return parsed
}

func TestComputeTotals(t *testing.T) {
	t.Parallel()

	totals := computeTotals([]LineInput{
		{Description: "Widget", Quantity: d(t, "3"), UnitPrice: d(t, "100.00"), TaxPercent: d(t, "18")},
	}, d(t, "50.00"))

	if !totals.Subtotal.Equal(d(t, "300.00")) {
		t.Fatalf("subtotal = %s, want 300.00", totals.Subtotal)
	}
	if !totals.TaxAmount.Equal(d(t, "54.00")) {
		t.Fatalf("tax = %s, want 54.00", totals.TaxAmount)
	}
	if !totals.TotalAmount.Equal(d(t, "304.00")) {
		t.Fatalf("total = %s, want 304.00", totals.TotalAmount)
	}
	if len(totals.Lines) != 1 || !totals.Lines[0].TotalAmount.Equal(d(t, "354.00")) {
		t.Fatalf("unexpected line totals: %+v", totals.Lines)
	}
}

func TestComputeTotalsRoundsPerLine(t *testing.T) {
	t.Parallel()

	// Each line rounds before summation: 1.515 -> 1.52, three times.
	lines := make([]LineInput, 3)
	for i := range lines {
		lines[i] = LineInput{Description: "part", Quantity: d(t, "1.5"), UnitPrice: d(t, "1.01")}
	}

	totals := computeTotals(lines, decimal.Zero)
	if !totals.Subtotal.Equal(d(t, "4.56")) {
		t.Fatalf("subtotal = %s, want 4.56 from per-line rounding", totals.Subtotal)
	}
}

func TestComputeTotalsFloorsAtZero(t *testing.T) {
	t.Parallel()

	totals := computeTotals([]LineInput{
		{Description: "cheap", Quantity: d(t, "1"), UnitPrice: d(t, "10.00")},
	}, d(t, "25.00"))

	if !totals.TotalAmount.Equal(decimal.Zero) {
		t.Fatalf("total = %s, want 0 when discount exceeds subtotal", totals.TotalAmount)
	}
}
