package order

import (
	"context"
	"time"
)

// Repository persists orders. Every mutating method is one transaction.
type Repository interface {
	// CreateOrderAndReserveStock inserts the order, its items, discount rows and
	// opening status log, reserves stock per SKU and deletes consumed cart lines.
	// Insufficient stock is a CONFLICT.
	CreateOrderAndReserveStock(ctx context.Context, o *Order, log StatusLog, cartItemIDs []int64) error

	// CancelAndReleaseStock moves the order from log.FromStatus to CANCELLED,
	// releases reserved stock and closes open payment attempts.
	CancelAndReleaseStock(ctx context.Context, o *Order, log StatusLog) error

	// CloseOrder moves the order to CLOSED; stock is released only when it was unpaid.
	CloseOrder(ctx context.Context, o *Order, log StatusLog) error

	// SaveRefundRequest persists the PAID -> REFUND_REQUESTED transition.
	SaveRefundRequest(ctx context.Context, o *Order, log StatusLog) error

	// UpdateAddressSnapshot writes the new address once; a second write is a CONFLICT.
	UpdateAddressSnapshot(ctx context.Context, o *Order) error

	FindByOrderNo(ctx context.Context, orderNo string) (*Order, error)
	FindByID(ctx context.Context, id int64) (*Order, error)
	ListStatusLogs(ctx context.Context, orderID int64) ([]StatusLog, error)

	// ListTimeoutCandidates returns PENDING_PAYMENT order numbers created before deadline
	ListTimeoutCandidates(ctx context.Context, deadline time.Time, limit int) ([]string, error)
}

// SkuSnapshot is the live sale data of one SKU in a currency
type SkuSnapshot struct {
	SkuID          int64
	ProductID      int64
	Title          string
	SkuAttrs       string
	CoverImageURL  string
	Stock          int64
	UnitPriceMinor *int64
}

// SkuReader reads live price and stock
type SkuReader interface {
	ListSaleSnapshots(ctx context.Context, skuIDs []int64, currency string) (map[int64]SkuSnapshot, error)
}

// CartLine is a selected line in the shopper's cart
type CartLine struct {
	ID       int64
	SkuID    int64
	Quantity int64
}

// CartReader reads the selected cart lines of a user
type CartReader interface {
	ListSelected(ctx context.Context, userID int64) ([]CartLine, error)
}

// AddressChangeClaim is a claim-once marker held outside the order row
type AddressChangeClaim interface {
	// TryMarkChanged atomically claims the order; false means someone already did
	TryMarkChanged(ctx context.Context, orderNo string, ttl time.Duration) (bool, error)
	Clear(ctx context.Context, orderNo string) error
}

// PaidOrderRef identifies a paid order that still needs a shipment
type PaidOrderRef struct {
	OrderID int64
	OrderNo string
}

// Shipments is the shipment collaborator invoked once an order is paid
type Shipments interface {
	// EnsurePlaceholder creates the placeholder shipment if it does not exist yet
	EnsurePlaceholder(ctx context.Context, orderID int64, orderNo string) error
	ListPaidWithoutShipment(ctx context.Context, limit int) ([]PaidOrderRef, error)
}

// AttachmentStorage issues upload URLs for refund evidence
type AttachmentStorage interface {
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
}
