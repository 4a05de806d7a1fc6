package domain

import (
	"errors"
	"time"
)

// ErrValidation marks malformed user input rejected before any store write.
var ErrValidation = errors.New("validation failed")

// Collection names shared by the local store, the remote client and the
// hosted document API. The remote side scopes every collection by store_id.
const (
	CollectionStores          = "stores"
	CollectionProducts        = "products"
	CollectionCategories      = "categories"
	CollectionSales           = "sales"
	CollectionCustomers       = "customers"
	CollectionExpenses        = "expenses"
	CollectionRevenues        = "revenues"
	CollectionDeletedInvoices = "deletedInvoices"
)

// KnownCollections lists every syncable collection, in resync order.
var KnownCollections = []string{
	CollectionProducts,
	CollectionCategories,
	CollectionSales,
	CollectionCustomers,
	CollectionExpenses,
	CollectionRevenues,
	CollectionDeletedInvoices,
}

func IsKnownCollection(name string) bool {
	for _, c := range KnownCollections {
		if c == name {
			return true
		}
	}
	return false
}

// Fields is the wire shape of a record's business fields. Typed schemas
// below convert to and from Fields at the local/remote boundary.
type Fields map[string]any

// Meta is the bookkeeping every stored record carries. A record with a
// non-empty RemoteID has been durably written to the remote store at
// least once; an empty RemoteID means the remote write is still pending.
type Meta struct {
	LocalID   string `json:"localId"`
	RemoteID  string `json:"remoteId,omitempty"`
	StoreID   string `json:"storeId"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Document is a record as the local store holds it: metadata plus the
// collection-specific field snapshot.
type Document struct {
	Meta
	Fields Fields `json:"fields"`
}

// Pending-change actions.
type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// PendingChange is a durable record of a mutation not yet confirmed
// against the remote store. It is created once, consumed exactly once on
// successful replay, and never mutated in place.
type PendingChange struct {
	ID         int64     `json:"id"`
	Collection string    `json:"collection"`
	Action     Action    `json:"action"`
	LocalID    string    `json:"localId"`
	RemoteID   string    `json:"remoteId,omitempty"`
	Fields     Fields    `json:"fields,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Sale statuses.
const (
	StatusPaid   = "paid"
	StatusUnpaid = "unpaid"
)

type Product struct {
	Name           string  `json:"name"`
	Price          float64 `json:"price"`
	WholesalePrice float64 `json:"wholesale_price"`
	Quantity       int     `json:"quantity"`
	MinStock       int     `json:"min_stock"`
	Category       string  `json:"category"`
}

type Category struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

type SaleItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Total     float64 `json:"total"`
}

type Sale struct {
	InvoiceNumber string     `json:"invoice_number"`
	CustomerName  string     `json:"customer_name"`
	CustomerPhone string     `json:"customer_phone,omitempty"`
	SaleDate      string     `json:"sale_date"`
	Items         []SaleItem `json:"products_sold"`
	Subtotal      float64    `json:"subtotal"`
	PaidAmount    float64    `json:"paid_amount"`
	Status        string     `json:"status"`
}

type Expense struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
}

type Revenue struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
}

// DeletedInvoice is a soft-deleted sale held in the admin tab until it is
// restored or purged.
type DeletedInvoice struct {
	Sale
	DeletedAt   string `json:"deletedAt"`
	DeletedDate string `json:"deletedDate"`
}

type StoreSettings struct {
	StoreID   string `json:"store_id"`
	Name      string `json:"name"`
	OwnerName string `json:"owner_name"`
	CreatedAt string `json:"created_at"`
}

// ExportDocument is the backup file format. Import re-creates every record
// as a new local+remote record; local identifiers are never carried over.
type ExportDocument struct {
	Products        []Product        `json:"products"`
	Categories      []Category       `json:"categories"`
	Sales           []Sale           `json:"sales"`
	Expenses        []Expense        `json:"expenses"`
	Revenues        []Revenue        `json:"revenues"`
	DeletedInvoices []DeletedInvoice `json:"deletedInvoices"`
	StoreSettings   *StoreSettings   `json:"storeSettings,omitempty"`
	ExportDate      string           `json:"exportDate"`
}

// Summary is the dashboard/report aggregate.
type Summary struct {
	StoreID        string    `json:"store_id"`
	InvoiceCount   int       `json:"invoice_count"`
	PaidCount      int       `json:"paid_count"`
	UnpaidCount    int       `json:"unpaid_count"`
	TotalSales     float64   `json:"total_sales"`
	TotalPaid      float64   `json:"total_paid"`
	TotalExpenses  float64   `json:"total_expenses"`
	TotalRevenues  float64   `json:"total_revenues"`
	NetBalance     float64   `json:"net_balance"`
	ProductCount   int       `json:"product_count"`
	LowStock       []Product `json:"low_stock,omitempty"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// SyncStatus reports the client's reconciliation state.
type SyncStatus struct {
	Online         bool   `json:"online"`
	StoreID        string `json:"store_id,omitempty"`
	PendingChanges int    `json:"pending_changes"`
}
