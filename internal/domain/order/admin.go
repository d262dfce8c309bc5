package order

import (
	"context"
	"time"
)

// Paging limits for operator list queries
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListFilter narrows the operator order list. Zero values match everything.
type ListFilter struct {
	Status        Status
	UserID        int64
	OrderNo       string
	CreatedFrom   *time.Time
	CreatedBefore *time.Time
	Page          int
	PageSize      int
}

// Normalize clamps paging to sane bounds
func (f *ListFilter) Normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	f.PageSize = min(f.PageSize, MaxPageSize)
}

// Offset is the number of rows skipped before the current page
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// InventoryChange is the kind of stock movement an order caused
type InventoryChange string

const (
	// InventoryReserve moves units from stock to locked when the order is created
	InventoryReserve InventoryChange = "RESERVE"
	// InventoryRelease returns locked units to stock when an unpaid order ends
	InventoryRelease InventoryChange = "RELEASE"
	// InventoryDeduct consumes locked units when the order is paid
	InventoryDeduct InventoryChange = "DEDUCT"
	// InventoryRestock returns sold units to stock after a refund
	InventoryRestock InventoryChange = "RESTOCK"
)

// InventoryLog is one stock movement of one SKU caused by an order
type InventoryLog struct {
	ID         int64
	SkuID      int64
	OrderID    int64
	ChangeType InventoryChange
	Quantity   int64
	Reason     string
	At         time.Time
}

// MoneyTotal is an amount in minor units of one currency
type MoneyTotal struct {
	Currency    string
	AmountMinor int64
	Count       int64
}

// Stats is the operator dashboard overview
type Stats struct {
	OrdersByStatus map[Status]int64
	Paid           []MoneyTotal
	Refunded       []MoneyTotal
	PendingRefunds int64
}

// AdminReader is the read side behind the operator console
type AdminReader interface {
	ListOrders(ctx context.Context, f ListFilter) ([]*Order, int64, error)
	ListInventoryLogs(ctx context.Context, orderID int64) ([]InventoryLog, error)
	Stats(ctx context.Context) (Stats, error)
}
