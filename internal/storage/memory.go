package storage

import (
	"errors"
	"sync"

	"cafe-fulfillment/internal/models"
)

// InMemoryStore mirrors MySQLStore for tests and local development. Each
// mutating method takes the store lock for its whole body, so the
// compare-and-set operations are atomic the same way a single UPDATE is.
type InMemoryStore struct {
	mutex        sync.RWMutex
	orders       map[string]*models.Order
	items        map[string]*models.OrderItem
	products     map[string]*models.Product
	tables       map[string]*models.Table
	reservations map[string]*models.Reservation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		orders:       make(map[string]*models.Order),
		items:        make(map[string]*models.OrderItem),
		products:     make(map[string]*models.Product),
		tables:       make(map[string]*models.Table),
		reservations: make(map[string]*models.Reservation),
	}
}

func (s *InMemoryStore) LoadOrder(id string) (*models.Order, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	order, exists := s.orders[id]
	if !exists {
		return nil, errors.New("order not found")
	}

	copied := *order
	return &copied, nil
}

func (s *InMemoryStore) LoadOrderItems(orderID string) ([]*models.OrderItem, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var items []*models.OrderItem
	for _, item := range s.items {
		if item.OrderID == orderID {
			copied := *item
			items = append(items, &copied)
		}
	}

	return items, nil
}

func (s *InMemoryStore) SaveOrder(order *models.Order) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	copied := *order
	s.orders[order.OrderID] = &copied
	return nil
}

func (s *InMemoryStore) SaveOrderItems(items []*models.OrderItem) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, item := range items {
		copied := *item
		s.items[item.ItemID] = &copied
	}
	return nil
}

func (s *InMemoryStore) UpdateOrderStatus(orderID string, from, to models.OrderStatus) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	order, exists := s.orders[orderID]
	if !exists {
		return false, errors.New("order not found")
	}
	if order.Status != from {
		return false, nil
	}

	order.Status = to
	return true, nil
}

// MarkItemsReady checks the order status and writes the items under one
// lock, mirroring the joined conditional UPDATE in MySQLStore.
func (s *InMemoryStore) MarkItemsReady(orderID string, itemIDs []string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	order, exists := s.orders[orderID]
	if !exists {
		return false, errors.New("order not found")
	}
	if order.Status != models.OrderPreparing {
		return false, nil
	}

	updated := false
	for _, id := range itemIDs {
		if item, exists := s.items[id]; exists && item.OrderID == orderID {
			item.Status = models.ItemReady
			updated = true
		}
	}
	return updated, nil
}

func (s *InMemoryStore) SaveProduct(product *models.Product) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	copied := *product
	s.products[product.ProductID] = &copied
	return nil
}

func (s *InMemoryStore) GetProduct(id string) (*models.Product, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, errors.New("product not found")
	}

	copied := *product
	return &copied, nil
}

func (s *InMemoryStore) SaveTable(table *models.Table) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	copied := *table
	s.tables[table.TableID] = &copied
	return nil
}

func (s *InMemoryStore) GetTable(id string) (*models.Table, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	table, exists := s.tables[id]
	if !exists {
		return nil, errors.New("table not found")
	}

	copied := *table
	return &copied, nil
}

func (s *InMemoryStore) GetReservation(id string) (*models.Reservation, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	r, exists := s.reservations[id]
	if !exists {
		return nil, errors.New("reservation not found")
	}

	copied := *r
	return &copied, nil
}

func (s *InMemoryStore) SaveReservation(r *models.Reservation) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	copied := *r
	s.reservations[r.ReservationID] = &copied
	return nil
}

func (s *InMemoryStore) UpdateReservationStatus(id string, from, to models.ReservationStatus) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	r, exists := s.reservations[id]
	if !exists {
		return false, errors.New("reservation not found")
	}
	if r.Status != from {
		return false, nil
	}

	r.Status = to
	return true, nil
}

func (s *InMemoryStore) LoadReservationsForTable(tableID string, statuses []models.ReservationStatus) ([]*models.Reservation, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var reservations []*models.Reservation
	for _, r := range s.reservations {
		if r.TableID != tableID {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, r.Status) {
			continue
		}
		copied := *r
		reservations = append(reservations, &copied)
	}

	return reservations, nil
}

func containsStatus(statuses []models.ReservationStatus, status models.ReservationStatus) bool {
	for _, st := range statuses {
		if st == status {
			return true
		}
	}
	return false
}

func (s *InMemoryStore) HealthCheck() error {
	return nil
}
