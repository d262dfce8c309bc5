package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intlshop/backend/internal/domain/order"
	"github.com/intlshop/backend/internal/domain/payment"
	"github.com/intlshop/backend/internal/infrastructure/persistence/models"
)

func TestGormOrderRepository_AdminQueries(t *testing.T) {
	ctx := context.Background()
	db := setupShopTestDB(t)
	repo := NewGormOrderRepository(db)
	sku := seedSku(t, db, 20, 1250)

	pending := createTestOrder(t, db, "PO9001", sku, 1)
	paid, _ := paidOrder(t, db, "PO9002", sku, 2)
	cancelled := createTestOrder(t, db, "PO9003", sku, 3)
	log, err := cancelled.Cancel(order.SourceAdmin, "fraud", testNow.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, repo.CancelAndReleaseStock(ctx, cancelled, log))

	t.Run("list filters by status", func(t *testing.T) {
		orders, total, err := repo.ListOrders(ctx, order.ListFilter{Status: order.StatusPaid})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, orders, 1)
		assert.Equal(t, "PO9002", orders[0].OrderNo)
		assert.Len(t, orders[0].Items, 1)
	})

	t.Run("list pages newest first", func(t *testing.T) {
		orders, total, err := repo.ListOrders(ctx, order.ListFilter{UserID: 7, Page: 1, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, orders, 2)
		assert.Equal(t, "PO9003", orders[0].OrderNo)
		assert.Equal(t, "PO9002", orders[1].OrderNo)

		orders, _, err = repo.ListOrders(ctx, order.ListFilter{UserID: 7, Page: 2, PageSize: 2})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, pending.OrderNo, orders[0].OrderNo)
	})

	t.Run("no match", func(t *testing.T) {
		orders, total, err := repo.ListOrders(ctx, order.ListFilter{UserID: 999})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, orders)
	})

	t.Run("inventory logs follow the stock movements", func(t *testing.T) {
		logs, err := repo.ListInventoryLogs(ctx, paid.ID)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, order.InventoryReserve, logs[0].ChangeType)
		assert.Equal(t, order.InventoryDeduct, logs[1].ChangeType)
		assert.Equal(t, int64(2), logs[1].Quantity)
		assert.Equal(t, sku, logs[1].SkuID)

		logs, err = repo.ListInventoryLogs(ctx, cancelled.ID)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, order.InventoryRelease, logs[1].ChangeType)
		assert.Equal(t, "order cancelled", logs[1].Reason)
	})

	t.Run("stats", func(t *testing.T) {
		require.NoError(t, db.Create(&models.PaymentRefundModel{
			RefundNo: "RF-9002", OrderID: paid.ID, OrderNo: paid.OrderNo, PaymentOrderID: 1,
			ClientRefundNo: "client-9002", Amount: 1250, Currency: "USD",
			Status: string(payment.RefundSuccess), Initiator: string(payment.InitiatorAdmin),
			CreatedAt: testNow, UpdatedAt: testNow,
		}).Error)
		require.NoError(t, db.Create(&models.PaymentRefundModel{
			RefundNo: "RF-9003", OrderID: paid.ID, OrderNo: paid.OrderNo, PaymentOrderID: 1,
			ClientRefundNo: "client-9003", Amount: 100, Currency: "USD",
			Status: string(payment.RefundPending), Initiator: string(payment.InitiatorAdmin),
			CreatedAt: testNow, UpdatedAt: testNow,
		}).Error)

		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.OrdersByStatus[order.StatusPendingPayment])
		assert.Equal(t, int64(1), stats.OrdersByStatus[order.StatusPaid])
		assert.Equal(t, int64(1), stats.OrdersByStatus[order.StatusCancelled])
		assert.Equal(t, []order.MoneyTotal{{Currency: "USD", AmountMinor: 2500, Count: 1}}, stats.Paid)
		assert.Equal(t, []order.MoneyTotal{{Currency: "USD", AmountMinor: 1250, Count: 1}}, stats.Refunded)
		assert.Equal(t, int64(1), stats.PendingRefunds)
	})
}
