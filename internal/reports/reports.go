// Package reports computes the dashboard and report aggregates shared by
// the client dashboard and the server's summary endpoint.
package reports

import (
	"sort"
	"time"

	"enjoygifts/backend/internal/domain"
)

// Summarize folds a store's records into the dashboard aggregate.
func Summarize(storeID string, products []domain.Product, sales []domain.Sale, expenses []domain.Expense, revenues []domain.Revenue) domain.Summary {
	summary := domain.Summary{
		StoreID:      storeID,
		InvoiceCount: len(sales),
		ProductCount: len(products),
		GeneratedAt:  time.Now().UTC(),
	}

	for _, sale := range sales {
		summary.TotalSales += sale.Subtotal
		summary.TotalPaid += sale.PaidAmount
		if sale.Status == domain.StatusPaid {
			summary.PaidCount++
		} else {
			summary.UnpaidCount++
		}
	}
	for _, expense := range expenses {
		summary.TotalExpenses += expense.Amount
	}
	for _, revenue := range revenues {
		summary.TotalRevenues += revenue.Amount
	}
	summary.NetBalance = summary.TotalPaid + summary.TotalRevenues - summary.TotalExpenses

	low := make([]domain.Product, 0, 4)
	for _, product := range products {
		if product.MinStock > 0 && product.Quantity <= product.MinStock {
			low = append(low, product)
		}
	}
	sort.Slice(low, func(i, j int) bool {
		if low[i].Quantity == low[j].Quantity {
			return low[i].Name < low[j].Name
		}
		return low[i].Quantity < low[j].Quantity
	})
	summary.LowStock = low

	return summary
}

// FilterSalesByDate keeps sales whose sale_date falls within [from, to].
// Empty bounds are open. Dates compare as YYYY-MM-DD strings, which is
// how the records store them.
func FilterSalesByDate(sales []domain.Sale, from string, to string) []domain.Sale {
	filtered := make([]domain.Sale, 0, len(sales))
	for _, sale := range sales {
		if from != "" && sale.SaleDate < from {
			continue
		}
		if to != "" && sale.SaleDate > to {
			continue
		}
		filtered = append(filtered, sale)
	}
	return filtered
}

// FilterExpensesByDate keeps expenses within [from, to], same comparison
// rules as FilterSalesByDate.
func FilterExpensesByDate(expenses []domain.Expense, from string, to string) []domain.Expense {
	filtered := make([]domain.Expense, 0, len(expenses))
	for _, expense := range expenses {
		if from != "" && expense.Date < from {
			continue
		}
		if to != "" && expense.Date > to {
			continue
		}
		filtered = append(filtered, expense)
	}
	return filtered
}
