// Package service implements the POS domain operations on top of the
// reconciliation engine. All validation happens here, before any store
// write; the engine is the only path to persistence.
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"enjoygifts/backend/internal/domain"
	"enjoygifts/backend/internal/reconcile"
	"enjoygifts/backend/internal/reports"
)

// Record pairs a typed schema value with its local-store identity.
type Record[T any] struct {
	LocalID  string `json:"localId"`
	RemoteID string `json:"remoteId,omitempty"`
	Data     T      `json:"data"`
}

type Service struct {
	engine *reconcile.Engine
}

func New(engine *reconcile.Engine) *Service {
	return &Service{engine: engine}
}

func listAs[T any](ctx context.Context, engine *reconcile.Engine, collection string) ([]Record[T], error) {
	docs, err := engine.ListRecords(ctx, collection)
	if err != nil {
		return nil, err
	}
	records := make([]Record[T], 0, len(docs))
	for _, doc := range docs {
		var data T
		if err := domain.FromFields(doc.Fields, &data); err != nil {
			log.Printf("[service] WARN: skipping malformed %s record %s: %v", collection, doc.LocalID, err)
			continue
		}
		records = append(records, Record[T]{LocalID: doc.LocalID, RemoteID: doc.RemoteID, Data: data})
	}
	return records, nil
}

func getAs[T any](ctx context.Context, engine *reconcile.Engine, collection string, localID string) (*Record[T], error) {
	doc, err := engine.GetRecord(ctx, collection, localID)
	if err != nil {
		return nil, err
	}
	var data T
	if err := domain.FromFields(doc.Fields, &data); err != nil {
		return nil, err
	}
	return &Record[T]{LocalID: doc.LocalID, RemoteID: doc.RemoteID, Data: data}, nil
}

func (s *Service) save(ctx context.Context, collection string, v any) (string, error) {
	fields, err := domain.AsFields(v)
	if err != nil {
		return "", err
	}
	return s.engine.SaveRecord(ctx, collection, fields)
}

func (s *Service) update(ctx context.Context, collection string, localID string, v any) error {
	fields, err := domain.AsFields(v)
	if err != nil {
		return err
	}
	return s.engine.UpdateRecord(ctx, collection, localID, fields)
}

// Products.

func validateProduct(p domain.Product) (domain.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	if p.Name == "" {
		return p, fmt.Errorf("%w: product name is required", domain.ErrValidation)
	}
	if p.Price < 0 || p.WholesalePrice < 0 {
		return p, fmt.Errorf("%w: price must not be negative", domain.ErrValidation)
	}
	if p.Quantity < 0 || p.MinStock < 0 {
		return p, fmt.Errorf("%w: quantity must not be negative", domain.ErrValidation)
	}
	return p, nil
}

func (s *Service) CreateProduct(ctx context.Context, p domain.Product) (string, error) {
	p, err := validateProduct(p)
	if err != nil {
		return "", err
	}
	return s.save(ctx, domain.CollectionProducts, p)
}

func (s *Service) UpdateProduct(ctx context.Context, localID string, p domain.Product) error {
	p, err := validateProduct(p)
	if err != nil {
		return err
	}
	return s.update(ctx, domain.CollectionProducts, localID, p)
}

func (s *Service) DeleteProduct(ctx context.Context, localID string) error {
	return s.engine.DeleteRecord(ctx, domain.CollectionProducts, localID)
}

func (s *Service) ListProducts(ctx context.Context) ([]Record[domain.Product], error) {
	return listAs[domain.Product](ctx, s.engine, domain.CollectionProducts)
}

// Categories.

func (s *Service) AddCategory(ctx context.Context, c domain.Category) (string, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return "", fmt.Errorf("%w: category name is required", domain.ErrValidation)
	}
	return s.save(ctx, domain.CollectionCategories, c)
}

func (s *Service) ListCategories(ctx context.Context) ([]Record[domain.Category], error) {
	return listAs[domain.Category](ctx, s.engine, domain.CollectionCategories)
}

// Customers.

func (s *Service) AddCustomer(ctx context.Context, c domain.Customer) (string, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return "", fmt.Errorf("%w: customer name is required", domain.ErrValidation)
	}
	return s.save(ctx, domain.CollectionCustomers, c)
}

func (s *Service) ListCustomers(ctx context.Context) ([]Record[domain.Customer], error) {
	return listAs[domain.Customer](ctx, s.engine, domain.CollectionCustomers)
}

// Sales.

// SaleRequest is the sale-entry form: line items reference products by
// local id; prices are read from the product records, not the caller.
type SaleRequest struct {
	CustomerName  string            `json:"customer_name"`
	CustomerPhone string            `json:"customer_phone"`
	SaleDate      string            `json:"sale_date"`
	PaidAmount    float64           `json:"paid_amount"`
	Items         []SaleRequestItem `json:"items"`
}

type SaleRequestItem struct {
	ProductLocalID string `json:"product_local_id"`
	Quantity       int    `json:"quantity"`
}

// CompleteSale records an invoice and decrements stock for every line
// item. The stock updates ride the same engine path as any other
// mutation, so they queue for replay when offline like everything else.
func (s *Service) CompleteSale(ctx context.Context, req SaleRequest) (string, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.CustomerName == "" {
		return "", fmt.Errorf("%w: customer name is required", domain.ErrValidation)
	}
	if len(req.Items) == 0 {
		return "", fmt.Errorf("%w: at least one product is required", domain.ErrValidation)
	}
	if req.PaidAmount < 0 {
		return "", fmt.Errorf("%w: paid amount must not be negative", domain.ErrValidation)
	}
	if req.SaleDate == "" {
		req.SaleDate = time.Now().UTC().Format("2006-01-02")
	}

	// Fold duplicate lines for the same product into one, so the stock
	// check runs against the combined requested quantity and each product
	// is decremented exactly once.
	order := make([]string, 0, len(req.Items))
	requested := make(map[string]int, len(req.Items))
	for _, line := range req.Items {
		if line.Quantity < 1 {
			return "", fmt.Errorf("%w: quantity must be at least 1", domain.ErrValidation)
		}
		if _, seen := requested[line.ProductLocalID]; !seen {
			order = append(order, line.ProductLocalID)
		}
		requested[line.ProductLocalID] += line.Quantity
	}

	items := make([]domain.SaleItem, 0, len(order))
	updatedProducts := make(map[string]domain.Product, len(order))
	subtotal := 0.0
	for _, productID := range order {
		quantity := requested[productID]
		product, err := getAs[domain.Product](ctx, s.engine, domain.CollectionProducts, productID)
		if err != nil {
			return "", fmt.Errorf("product %s: %w", productID, err)
		}
		if product.Data.Quantity < quantity {
			return "", fmt.Errorf("%w: insufficient stock for %s", domain.ErrValidation, product.Data.Name)
		}
		total := product.Data.Price * float64(quantity)
		items = append(items, domain.SaleItem{
			ProductID: productID,
			Name:      product.Data.Name,
			Price:     product.Data.Price,
			Quantity:  quantity,
			Total:     total,
		})
		subtotal += total

		updated := product.Data
		updated.Quantity -= quantity
		updatedProducts[productID] = updated
	}

	status := domain.StatusUnpaid
	if req.PaidAmount >= subtotal {
		status = domain.StatusPaid
	}

	sale := domain.Sale{
		InvoiceNumber: generateInvoiceNumber(),
		CustomerName:  req.CustomerName,
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		SaleDate:      req.SaleDate,
		Items:         items,
		Subtotal:      subtotal,
		PaidAmount:    req.PaidAmount,
		Status:        status,
	}

	localID, err := s.save(ctx, domain.CollectionSales, sale)
	if err != nil {
		return "", err
	}

	for productID, updated := range updatedProducts {
		if err := s.update(ctx, domain.CollectionProducts, productID, updated); err != nil {
			log.Printf("[service] WARN: stock update failed for product %s after sale %s: %v", productID, sale.InvoiceNumber, err)
		}
	}

	return localID, nil
}

func generateInvoiceNumber() string {
	ms := fmt.Sprintf("%d", time.Now().UnixMilli())
	return "INV-" + ms[len(ms)-6:]
}

func (s *Service) ListSales(ctx context.Context) ([]Record[domain.Sale], error) {
	return listAs[domain.Sale](ctx, s.engine, domain.CollectionSales)
}

func (s *Service) ListSalesByDate(ctx context.Context, from string, to string) ([]Record[domain.Sale], error) {
	sales, err := s.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]Record[domain.Sale], 0, len(sales))
	for _, sale := range sales {
		if from != "" && sale.Data.SaleDate < from {
			continue
		}
		if to != "" && sale.Data.SaleDate > to {
			continue
		}
		filtered = append(filtered, sale)
	}
	return filtered, nil
}

// Expenses and revenues.

func validateEntry(description string, amount float64, date string) (string, string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", "", fmt.Errorf("%w: description is required", domain.ErrValidation)
	}
	if amount <= 0 {
		return "", "", fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	return description, date, nil
}

func (s *Service) AddExpense(ctx context.Context, e domain.Expense) (string, error) {
	description, date, err := validateEntry(e.Description, e.Amount, e.Date)
	if err != nil {
		return "", err
	}
	e.Description, e.Date = description, date
	return s.save(ctx, domain.CollectionExpenses, e)
}

func (s *Service) DeleteExpense(ctx context.Context, localID string) error {
	return s.engine.DeleteRecord(ctx, domain.CollectionExpenses, localID)
}

func (s *Service) ListExpenses(ctx context.Context) ([]Record[domain.Expense], error) {
	return listAs[domain.Expense](ctx, s.engine, domain.CollectionExpenses)
}

func (s *Service) AddRevenue(ctx context.Context, r domain.Revenue) (string, error) {
	description, date, err := validateEntry(r.Description, r.Amount, r.Date)
	if err != nil {
		return "", err
	}
	r.Description, r.Date = description, date
	return s.save(ctx, domain.CollectionRevenues, r)
}

func (s *Service) DeleteRevenue(ctx context.Context, localID string) error {
	return s.engine.DeleteRecord(ctx, domain.CollectionRevenues, localID)
}

func (s *Service) ListRevenues(ctx context.Context) ([]Record[domain.Revenue], error) {
	return listAs[domain.Revenue](ctx, s.engine, domain.CollectionRevenues)
}

// Admin soft-delete flow. Deleting an invoice copies it into the
// deletedInvoices collection before removing it from sales, so the admin
// tab can restore or purge it later.

func (s *Service) DeleteInvoice(ctx context.Context, localID string) (string, error) {
	sale, err := getAs[domain.Sale](ctx, s.engine, domain.CollectionSales, localID)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	deleted := domain.DeletedInvoice{
		Sale:        sale.Data,
		DeletedAt:   now.Format(time.RFC3339),
		DeletedDate: now.Format("2006-01-02"),
	}
	deletedID, err := s.save(ctx, domain.CollectionDeletedInvoices, deleted)
	if err != nil {
		return "", err
	}
	if err := s.engine.DeleteRecord(ctx, domain.CollectionSales, localID); err != nil {
		return "", err
	}
	return deletedID, nil
}

func (s *Service) RestoreInvoice(ctx context.Context, localID string) (string, error) {
	deleted, err := getAs[domain.DeletedInvoice](ctx, s.engine, domain.CollectionDeletedInvoices, localID)
	if err != nil {
		return "", err
	}

	restoredID, err := s.save(ctx, domain.CollectionSales, deleted.Data.Sale)
	if err != nil {
		return "", err
	}
	if err := s.engine.DeleteRecord(ctx, domain.CollectionDeletedInvoices, localID); err != nil {
		return "", err
	}
	return restoredID, nil
}

// PurgeDeletedInvoice removes a soft-deleted invoice for good.
func (s *Service) PurgeDeletedInvoice(ctx context.Context, localID string) error {
	return s.engine.DeleteRecord(ctx, domain.CollectionDeletedInvoices, localID)
}

func (s *Service) ListDeletedInvoices(ctx context.Context) ([]Record[domain.DeletedInvoice], error) {
	return listAs[domain.DeletedInvoice](ctx, s.engine, domain.CollectionDeletedInvoices)
}

// Summary computes the dashboard aggregate from local records only.
func (s *Service) Summary(ctx context.Context) (domain.Summary, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	sales, err := s.ListSales(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	expenses, err := s.ListExpenses(ctx)
	if err != nil {
		return domain.Summary{}, err
	}
	revenues, err := s.ListRevenues(ctx)
	if err != nil {
		return domain.Summary{}, err
	}

	return reports.Summarize(
		s.engine.StoreID(),
		unwrap(products),
		unwrap(sales),
		unwrap(expenses),
		unwrap(revenues),
	), nil
}

func unwrap[T any](records []Record[T]) []T {
	out := make([]T, 0, len(records))
	for _, record := range records {
		out = append(out, record.Data)
	}
	return out
}
