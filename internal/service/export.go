package service

import (
	"context"
	"fmt"
	"time"

	"enjoygifts/backend/internal/domain"
)

// Export snapshots every collection into the backup document format.
// settings carries the active store's identity block; pass nil when no
// session is established and the backup holds records only.
func (s *Service) Export(ctx context.Context, settings *domain.StoreSettings) (domain.ExportDocument, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return domain.ExportDocument{}, err
	}
	categories, err := s.ListCategories(ctx)
	if err != nil {
		return domain.ExportDocument{}, err
	}
	sales, err := s.ListSales(ctx)
	if err != nil {
		return domain.ExportDocument{}, err
	}
	expenses, err := s.ListExpenses(ctx)
	if err != nil {
		return domain.ExportDocument{}, err
	}
	revenues, err := s.ListRevenues(ctx)
	if err != nil {
		return domain.ExportDocument{}, err
	}
	deleted, err := s.ListDeletedInvoices(ctx)
	if err != nil {
		return domain.ExportDocument{}, err
	}

	return domain.ExportDocument{
		Products:        unwrap(products),
		Categories:      unwrap(categories),
		Sales:           unwrap(sales),
		Expenses:        unwrap(expenses),
		Revenues:        unwrap(revenues),
		DeletedInvoices: unwrap(deleted),
		StoreSettings:   settings,
		ExportDate:      time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// ImportResult counts what an import created per collection.
type ImportResult struct {
	Products        int `json:"products"`
	Categories      int `json:"categories"`
	Sales           int `json:"sales"`
	Expenses        int `json:"expenses"`
	Revenues        int `json:"revenues"`
	DeletedInvoices int `json:"deletedInvoices"`
}

// Import re-creates every record in the document as a new local+remote
// record. Local identifiers from the exporting store are dropped and
// reassigned; business fields are preserved. This is not a byte-for-byte
// restore. The storeSettings block is informational only: the imported
// records belong to the active session's store, never to the exporting
// one.
func (s *Service) Import(ctx context.Context, doc domain.ExportDocument) (ImportResult, error) {
	var result ImportResult

	for i, product := range doc.Products {
		if _, err := s.CreateProduct(ctx, product); err != nil {
			return result, fmt.Errorf("import product %d: %w", i, err)
		}
		result.Products++
	}
	for i, category := range doc.Categories {
		if _, err := s.AddCategory(ctx, category); err != nil {
			return result, fmt.Errorf("import category %d: %w", i, err)
		}
		result.Categories++
	}
	for i, sale := range doc.Sales {
		// Sales are re-created verbatim; stock was already decremented in
		// the exporting store, so the import bypasses the sale-entry path.
		if _, err := s.save(ctx, domain.CollectionSales, sale); err != nil {
			return result, fmt.Errorf("import sale %d: %w", i, err)
		}
		result.Sales++
	}
	for i, expense := range doc.Expenses {
		if _, err := s.AddExpense(ctx, expense); err != nil {
			return result, fmt.Errorf("import expense %d: %w", i, err)
		}
		result.Expenses++
	}
	for i, revenue := range doc.Revenues {
		if _, err := s.AddRevenue(ctx, revenue); err != nil {
			return result, fmt.Errorf("import revenue %d: %w", i, err)
		}
		result.Revenues++
	}
	for i, invoice := range doc.DeletedInvoices {
		if _, err := s.save(ctx, domain.CollectionDeletedInvoices, invoice); err != nil {
			return result, fmt.Errorf("import deleted invoice %d: %w", i, err)
		}
		result.DeletedInvoices++
	}

	return result, nil
}
