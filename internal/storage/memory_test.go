package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafe-fulfillment/internal/models"
)

func seedOrderWithItem(t *testing.T, store *InMemoryStore, status models.OrderStatus) {
	t.Helper()
	require.NoError(t, store.SaveOrder(&models.Order{
		OrderID:   "ord-1",
		TableID:   "t-01",
		Status:    status,
		OrderedAt: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.SaveOrderItems([]*models.OrderItem{
		{ItemID: "item-1", OrderID: "ord-1", ProductID: "prod-1", Quantity: 1, Status: models.ItemOrdered},
	}))
}

func TestMarkItemsReadyWhilePreparing(t *testing.T) {
	store := NewInMemoryStore()
	seedOrderWithItem(t, store, models.OrderPreparing)

	ok, err := store.MarkItemsReady("ord-1", []string{"item-1"})
	require.NoError(t, err)
	assert.True(t, ok)

	items, err := store.LoadOrderItems("ord-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.ItemReady, items[0].Status)
}

// The item write is conditioned on the order status, so a cancelled order
// never ends up with ready items even when the readiness transition has
// already loaded its item list.
func TestMarkItemsReadySkipsNonPreparingOrder(t *testing.T) {
	store := NewInMemoryStore()
	seedOrderWithItem(t, store, models.OrderCancelled)

	ok, err := store.MarkItemsReady("ord-1", []string{"item-1"})
	require.NoError(t, err)
	assert.False(t, ok)

	items, err := store.LoadOrderItems("ord-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.ItemOrdered, items[0].Status)
}

func TestUpdateOrderStatusCompareAndSet(t *testing.T) {
	store := NewInMemoryStore()
	seedOrderWithItem(t, store, models.OrderPending)

	ok, err := store.UpdateOrderStatus("ord-1", models.OrderPending, models.OrderPreparing)
	require.NoError(t, err)
	assert.True(t, ok)

	// Stale expectation: the order already moved on.
	ok, err = store.UpdateOrderStatus("ord-1", models.OrderPending, models.OrderCancelled)
	require.NoError(t, err)
	assert.False(t, ok)

	order, err := store.LoadOrder("ord-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderPreparing, order.Status)
}
