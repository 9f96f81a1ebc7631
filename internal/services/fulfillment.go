package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cafe-fulfillment/internal/clock"
	"cafe-fulfillment/internal/kafka"
	"cafe-fulfillment/internal/logger"
	"cafe-fulfillment/internal/models"
	"cafe-fulfillment/internal/scheduler"
	"cafe-fulfillment/internal/storage"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrProductNotFound     = errors.New("product not found")
)

// FulfillmentService owns the scheduler-driven half of the order state
// machine: PENDING -> PREPARING on the order axis, ORDERED -> READY on the
// item axis. Terminal states (served, completed, cancelled, paid) are set by
// staff or payment actions and never touched here; every scheduled transition
// re-reads the order and applies a compare-and-set, so a foreground action
// that got there first simply wins.
type FulfillmentService struct {
	store    storage.Store
	sched    *scheduler.DelayedTaskScheduler
	clock    clock.Clock
	producer *kafka.Producer
	log      *logger.Logger
}

func NewFulfillmentService(store storage.Store, sched *scheduler.DelayedTaskScheduler, clk clock.Clock, producer *kafka.Producer, log *logger.Logger) *FulfillmentService {
	return &FulfillmentService{
		store:    store,
		sched:    sched,
		clock:    clk,
		producer: producer,
		log:      log,
	}
}

// ScheduleFulfillment is called once payment completes for an order. Walk-in
// orders start preparing right away; pre-orders back-calculate the cooking
// start from the linked reservation time. Scheduling itself cannot fail; the
// returned error only covers load failures.
func (s *FulfillmentService) ScheduleFulfillment(ctx context.Context, orderID string) error {
	s.log.LogOrder("SCHEDULE", orderID, "Scheduling fulfillment")

	order, err := s.store.LoadOrder(orderID)
	if err != nil {
		s.log.Error("ORDER", fmt.Sprintf("Failed to load order %s: %v", orderID, err))
		return ErrOrderNotFound
	}

	items, err := s.store.LoadOrderItems(orderID)
	if err != nil {
		s.log.Error("ORDER", fmt.Sprintf("Failed to load items for order %s: %v", orderID, err))
		return fmt.Errorf("failed to load order items: %w", err)
	}

	if len(items) == 0 {
		s.log.LogOrder("SKIP", orderID, "Order has no items, nothing to schedule")
		return nil
	}

	maxPrep, err := s.maxPrepTime(items)
	if err != nil {
		s.log.Error("ORDER", fmt.Sprintf("Failed to resolve prep time for order %s: %v", orderID, err))
		return err
	}

	if order.IsPreOrder() {
		return s.schedulePreOrder(order, maxPrep)
	}
	return s.scheduleImmediate(order, maxPrep)
}

// maxPrepTime resolves every item's product and takes the slowest one; the
// whole order is ready when its slowest item is.
func (s *FulfillmentService) maxPrepTime(items []*models.OrderItem) (time.Duration, error) {
	maxMinutes := 0
	for _, item := range items {
		product, err := s.store.GetProduct(item.ProductID)
		if err != nil {
			return 0, ErrProductNotFound
		}
		if product.PrepTimeMinutes > maxMinutes {
			maxMinutes = product.PrepTimeMinutes
		}
	}
	return time.Duration(maxMinutes) * time.Minute, nil
}

func (s *FulfillmentService) scheduleImmediate(order *models.Order, maxPrep time.Duration) error {
	orderID := order.OrderID

	// Preparing starts before this call returns; only the readiness
	// transition is deferred.
	ok, err := s.store.UpdateOrderStatus(orderID, models.OrderPending, models.OrderPreparing)
	if err != nil {
		s.log.Error("ORDER", fmt.Sprintf("Failed to start preparing order %s: %v", orderID, err))
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if ok {
		s.log.LogOrder("PREPARING", orderID, "Order moved to preparing")
		s.publishOrderEvent("order.preparing", orderID, models.OrderPreparing)
	} else {
		s.log.Debug("ORDER", fmt.Sprintf("Order %s no longer pending, skipping preparing transition", orderID))
	}

	readyAt := s.clock.Now().Add(maxPrep)
	s.sched.Schedule(orderID, readyAt, func() {
		s.markItemsReady(orderID)
	})

	return nil
}

func (s *FulfillmentService) schedulePreOrder(order *models.Order, maxPrep time.Duration) error {
	orderID := order.OrderID

	reservation, err := s.store.GetReservation(order.ReservationID)
	if err != nil {
		s.log.Error("ORDER", fmt.Sprintf("Failed to load reservation %s for order %s: %v", order.ReservationID, orderID, err))
		return ErrReservationNotFound
	}

	reservedAt := reservation.ReservationDatetime
	startCooking := reservedAt.Add(-maxPrep)

	s.sched.Schedule(orderID, startCooking, func() {
		s.startPreparing(orderID)
	})

	// When the reservation time has already passed, fall back to a full prep
	// window from now so the kitchen still gets its cooking time.
	readyAt := reservedAt
	if now := s.clock.Now(); reservedAt.Before(now) {
		readyAt = now.Add(maxPrep)
	}
	s.sched.Schedule(orderID, readyAt, func() {
		s.markItemsReady(orderID)
	})

	s.log.LogOrder("PRE_ORDER", orderID, fmt.Sprintf("Cooking at %s, ready at %s", startCooking.Format(time.RFC3339), readyAt.Format(time.RFC3339)))
	return nil
}

// startPreparing fires for pre-orders at the back-calculated cooking start.
func (s *FulfillmentService) startPreparing(orderID string) {
	ok, err := s.store.UpdateOrderStatus(orderID, models.OrderPending, models.OrderPreparing)
	if err != nil {
		s.log.Error("ORDER", fmt.Sprintf("Failed to start preparing order %s: %v", orderID, err))
		return
	}
	if !ok {
		// A cancel or a manual status change won the race. Expected.
		s.log.Debug("ORDER", fmt.Sprintf("Order %s no longer pending, preparing transition stale", orderID))
		return
	}

	s.log.LogOrder("PREPARING", orderID, "Order moved to preparing")
	s.publishOrderEvent("order.preparing", orderID, models.OrderPreparing)
}

// markItemsReady fires once the prep window has elapsed. The order status
// check and the item writes happen in one conditional store update; a false
// return means a foreground action superseded this transition.
func (s *FulfillmentService) markItemsReady(orderID string) {
	order, err := s.store.LoadOrder(orderID)
	if err != nil {
		s.log.Error("ORDER", fmt.Sprintf("Failed to re-read order %s: %v", orderID, err))
		return
	}
	if order.Status != models.OrderPreparing {
		s.log.Debug("ORDER", fmt.Sprintf("Order %s is %s, readiness transition stale", orderID, order.Status))
		return
	}

	items, err := s.store.LoadOrderItems(orderID)
	if err != nil {
		s.log.Error("ORDER", fmt.Sprintf("Failed to load items for order %s: %v", orderID, err))
		return
	}

	itemIDs := make([]string, 0, len(items))
	for _, item := range items {
		if item.Status != models.ItemReady {
			itemIDs = append(itemIDs, item.ItemID)
		}
	}
	if len(itemIDs) == 0 {
		s.log.Debug("ORDER", fmt.Sprintf("All items for order %s already ready", orderID))
		return
	}

	ok, err := s.store.MarkItemsReady(orderID, itemIDs)
	if err != nil {
		s.log.Error("ORDER", fmt.Sprintf("Failed to mark items ready for order %s: %v", orderID, err))
		return
	}
	if !ok {
		s.log.Debug("ORDER", fmt.Sprintf("Order %s left preparing before items marked ready", orderID))
		return
	}

	s.log.LogOrder("READY", orderID, fmt.Sprintf("%d items marked ready", len(itemIDs)))
	s.publishOrderEvent("order.ready", orderID, order.Status)
}

func (s *FulfillmentService) GetOrder(ctx context.Context, orderID string) (*models.Order, []*models.OrderItem, error) {
	order, err := s.store.LoadOrder(orderID)
	if err != nil {
		return nil, nil, ErrOrderNotFound
	}

	items, err := s.store.LoadOrderItems(orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load order items: %w", err)
	}

	return order, items, nil
}

// publishOrderEvent is best effort: a Kafka outage must not fail or retry a
// state transition that already happened.
func (s *FulfillmentService) publishOrderEvent(eventType, orderID string, status models.OrderStatus) {
	event := &models.OrderEvent{
		Type:      eventType,
		OrderID:   orderID,
		Status:    string(status),
		Timestamp: s.clock.Now(),
	}

	if err := s.producer.PublishOrderEvent(event); err != nil {
		s.log.Error("KAFKA", fmt.Sprintf("Failed to publish %s event for order %s: %v", eventType, orderID, err))
	}
}
