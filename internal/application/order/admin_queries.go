package order

import (
	"context"

	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/pricing"
	"github.com/intlshop/backend/internal/domain/shared"
)

// List pages through orders for the operator console
func (s *AdminService) List(ctx context.Context, f order.ListFilter) ([]*order.Order, int64, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return nil, 0, shared.NewIllegalParamError("unknown order status %q", f.Status)
	}
	if f.CreatedFrom != nil && f.CreatedBefore != nil && !f.CreatedFrom.Before(*f.CreatedBefore) {
		return nil, 0, shared.NewIllegalParamError("created_from must be before created_before")
	}
	f.Normalize()
	return s.reader.ListOrders(ctx, f)
}

// Get loads one order with its lines and discounts
func (s *AdminService) Get(ctx context.Context, orderNo string) (*order.Order, error) {
	return s.orders.FindByOrderNo(ctx, orderNo)
}

// StatusLogs returns the audit trail of an order
func (s *AdminService) StatusLogs(ctx context.Context, orderNo string) ([]order.StatusLog, error) {
	o, err := s.orders.FindByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	return s.orders.ListStatusLogs(ctx, o.ID)
}

// InventoryLogs returns the stock movements an order caused
func (s *AdminService) InventoryLogs(ctx context.Context, orderNo string) ([]order.InventoryLog, error) {
	o, err := s.orders.FindByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	return s.reader.ListInventoryLogs(ctx, o.ID)
}

// DiscountApplications returns the discount amounts deducted from an order
func (s *AdminService) DiscountApplications(ctx context.Context, orderNo string) ([]pricing.Applied, error) {
	o, err := s.orders.FindByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if o.Discounts == nil {
		return []pricing.Applied{}, nil
	}
	return o.Discounts, nil
}

// Stats returns the dashboard overview
func (s *AdminService) Stats(ctx context.Context) (order.Stats, error) {
	return s.reader.Stats(ctx)
}
