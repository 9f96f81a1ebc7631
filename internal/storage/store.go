package storage

import (
	"cafe-fulfillment/internal/models"
)

// Store is the persistence collaborator for the fulfillment and reservation
// subsystem. Status updates are compare-and-set: they report false when the
// expected previous status no longer holds, which is how scheduled
// transitions detect that a foreground action superseded them.
// MarkItemsReady follows the same discipline on the item axis: it writes
// nothing unless the order is still preparing.
type Store interface {
	LoadOrder(id string) (*models.Order, error)
	LoadOrderItems(orderID string) ([]*models.OrderItem, error)
	SaveOrder(order *models.Order) error
	SaveOrderItems(items []*models.OrderItem) error
	UpdateOrderStatus(orderID string, from, to models.OrderStatus) (bool, error)
	MarkItemsReady(orderID string, itemIDs []string) (bool, error)

	GetProduct(id string) (*models.Product, error)
	GetTable(id string) (*models.Table, error)

	GetReservation(id string) (*models.Reservation, error)
	SaveReservation(r *models.Reservation) error
	UpdateReservationStatus(id string, from, to models.ReservationStatus) (bool, error)
	LoadReservationsForTable(tableID string, statuses []models.ReservationStatus) ([]*models.Reservation, error)

	HealthCheck() error
}
