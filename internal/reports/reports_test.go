package reports

import (
	"testing"

	"enjoygifts/backend/internal/domain"
)

func TestSummarizeTotalsAndStatusCounts(t *testing.T) {
	sales := []domain.Sale{
		{Subtotal: 100, PaidAmount: 100, Status: domain.StatusPaid},
		{Subtotal: 80, PaidAmount: 30, Status: domain.StatusUnpaid},
	}
	expenses := []domain.Expense{{Amount: 40}}
	revenues := []domain.Revenue{{Amount: 25}}

	summary := Summarize("store_x", nil, sales, expenses, revenues)

	if summary.InvoiceCount != 2 || summary.PaidCount != 1 || summary.UnpaidCount != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if summary.TotalSales != 180 || summary.TotalPaid != 130 {
		t.Fatalf("unexpected sales totals: %+v", summary)
	}
	if summary.NetBalance != 130+25-40 {
		t.Fatalf("unexpected net balance %v", summary.NetBalance)
	}
	if summary.StoreID != "store_x" {
		t.Fatalf("unexpected store id %q", summary.StoreID)
	}
}

func TestSummarizeLowStockSortedByQuantity(t *testing.T) {
	products := []domain.Product{
		{Name: "Plate", Quantity: 3, MinStock: 5},
		{Name: "Mug", Quantity: 1, MinStock: 5},
		{Name: "Card", Quantity: 50, MinStock: 10},
		{Name: "Untracked", Quantity: 0, MinStock: 0},
	}

	summary := Summarize("store_x", products, nil, nil, nil)

	if len(summary.LowStock) != 2 {
		t.Fatalf("expected 2 low-stock products, got %d", len(summary.LowStock))
	}
	if summary.LowStock[0].Name != "Mug" || summary.LowStock[1].Name != "Plate" {
		t.Fatalf("expected low stock sorted by quantity, got %+v", summary.LowStock)
	}
}

func TestFilterSalesByDateBoundsAreInclusive(t *testing.T) {
	sales := []domain.Sale{
		{SaleDate: "2026-08-01"},
		{SaleDate: "2026-08-15"},
		{SaleDate: "2026-08-31"},
	}

	got := FilterSalesByDate(sales, "2026-08-15", "2026-08-31")
	if len(got) != 2 {
		t.Fatalf("expected 2 sales in range, got %d", len(got))
	}

	if got := FilterSalesByDate(sales, "", ""); len(got) != 3 {
		t.Fatalf("open bounds must keep everything, got %d", len(got))
	}
}

func TestFilterExpensesByDate(t *testing.T) {
	expenses := []domain.Expense{
		{Description: "Rent", Date: "2026-07-01"},
		{Description: "Stock", Date: "2026-08-10"},
	}

	got := FilterExpensesByDate(expenses, "2026-08-01", "")
	if len(got) != 1 || got[0].Description != "Stock" {
		t.Fatalf("unexpected filter result: %+v", got)
	}
}
