package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPreparing OrderStatus = "preparing"
	OrderServed    OrderStatus = "served"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderPaid      OrderStatus = "paid"
)

type ItemStatus string

const (
	ItemOrdered ItemStatus = "ordered"
	ItemReady   ItemStatus = "ready"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID       string        `json:"orderID" bun:"order_id,pk"`
	TableID       string        `json:"tableID" bun:"table_id"`
	ReservationID string        `json:"reservationID,omitempty" bun:"reservation_id"` // empty for walk-in orders
	Status        OrderStatus   `json:"status" bun:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus" bun:"payment_status"`
	OrderedAt     time.Time     `json:"orderedAt" bun:"ordered_at"`
}

// IsPreOrder reports whether fulfillment timing is anchored to a reservation
// instead of the moment of payment.
func (o *Order) IsPreOrder() bool {
	return o.ReservationID != ""
}

type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ItemID    string     `json:"itemID" bun:"item_id,pk"`
	OrderID   string     `json:"orderID" bun:"order_id"`
	ProductID string     `json:"productID" bun:"product_id"`
	Quantity  int        `json:"quantity" bun:"quantity"`
	UnitPrice float64    `json:"unitPrice" bun:"unit_price"`
	Status    ItemStatus `json:"status" bun:"status"`
}

type Product struct {
	bun.BaseModel `bun:"table:products"`

	ProductID       string  `json:"productID" bun:"product_id,pk"`
	Name            string  `json:"name" bun:"name"`
	Price           float64 `json:"price" bun:"price"`
	PrepTimeMinutes int     `json:"prepTimeMinutes" bun:"prep_time_minutes"`
}

type OrderEvent struct {
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentEvent is the payload consumed from the payment gateway's topics.
// Only completed payments trigger fulfillment scheduling.
type PaymentEvent struct {
	Type      string    `json:"type"`
	PaymentID string    `json:"payment_id"`
	OrderID   string    `json:"order_id"`
	Timestamp time.Time `json:"timestamp"`
}
