package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cafe-fulfillment/internal/clock"
	"cafe-fulfillment/internal/config"
	"cafe-fulfillment/internal/kafka"
	"cafe-fulfillment/internal/logger"
	"cafe-fulfillment/internal/models"
	"cafe-fulfillment/internal/storage"
	"cafe-fulfillment/internal/utils"
)

var (
	ErrTableNotFound       = errors.New("table not found")
	ErrTableBusy           = errors.New("table is being booked by another request")
	ErrCancelWindowClosed  = errors.New("cancellation window has closed")
	ErrReservationFinal    = errors.New("reservation is already cancelled or completed")
	ErrInvalidCandidate    = errors.New("invalid reservation request")
	ErrInvalidBusinessHour = errors.New("invalid business hours configuration")
)

// TableLocker serializes conflict-check-and-insert per table. Validating a
// candidate and persisting it is a check-then-act sequence; without the lock
// two overlapping bookings validated concurrently could both be accepted.
type TableLocker interface {
	LockTable(ctx context.Context, tableID, token string) (bool, error)
	UnlockTable(ctx context.Context, tableID, token string) error
}

// ConflictPolicy is the reservation acceptance policy with business hours
// pre-parsed to minutes of day. Validate is pure: it touches no store and no
// ambient clock.
type ConflictPolicy struct {
	MinAdvance         time.Duration
	OpeningMinutes     int
	ClosingMinutes     int
	PrepWindowMinutes  int
	CloseWindowMinutes int
	DurationMinutes    int
	BufferMinutes      int
	Holidays           map[time.Weekday]bool
}

func NewConflictPolicy(cfg config.BookingConfig) (ConflictPolicy, error) {
	opening, err := parseClockTime(cfg.OpeningTime)
	if err != nil {
		return ConflictPolicy{}, fmt.Errorf("%w: opening time %q", ErrInvalidBusinessHour, cfg.OpeningTime)
	}
	closing, err := parseClockTime(cfg.ClosingTime)
	if err != nil {
		return ConflictPolicy{}, fmt.Errorf("%w: closing time %q", ErrInvalidBusinessHour, cfg.ClosingTime)
	}

	holidays := make(map[time.Weekday]bool, len(cfg.Holidays))
	for _, day := range cfg.Holidays {
		holidays[day] = true
	}

	return ConflictPolicy{
		MinAdvance:         time.Duration(cfg.MinAdvanceMinutes) * time.Minute,
		OpeningMinutes:     opening,
		ClosingMinutes:     closing,
		PrepWindowMinutes:  cfg.PrepWindowMinutes,
		CloseWindowMinutes: cfg.CloseWindowMinutes,
		DurationMinutes:    cfg.DurationMinutes,
		BufferMinutes:      cfg.BufferMinutes,
		Holidays:           holidays,
	}, nil
}

// withDefaults fills an omitted duration or buffer from the configured
// booking defaults, so callers only send them to override.
func (p ConflictPolicy) withDefaults(candidate models.ReservationCandidate) models.ReservationCandidate {
	if candidate.DurationMinutes <= 0 {
		candidate.DurationMinutes = p.DurationMinutes
	}
	if candidate.BufferMinutes <= 0 {
		candidate.BufferMinutes = p.BufferMinutes
	}
	return candidate
}

func parseClockTime(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Validate runs the five acceptance checks against a candidate booking. All
// checks are evaluated; the first failure in check order is the one reported,
// so callers always see a single deterministic reason. The conflicting
// reservation is returned as evidence for double bookings.
func (p ConflictPolicy) Validate(candidate models.ReservationCandidate, existing []*models.Reservation, table *models.Table, now time.Time) (bool, models.RejectionReason, *models.Reservation) {
	capacityExceeded := candidate.PartySize > table.Capacity

	leadTooShort := candidate.StartTime.Before(now.Add(p.MinAdvance))

	holiday := p.Holidays[candidate.StartTime.Weekday()]

	startOfDay := candidate.StartTime.Hour()*60 + candidate.StartTime.Minute()
	earliest := p.OpeningMinutes + p.PrepWindowMinutes
	latest := p.ClosingMinutes - p.CloseWindowMinutes
	outsideHours := startOfDay < earliest || startOfDay > latest

	conflict := p.findConflict(candidate, existing)

	switch {
	case capacityExceeded:
		return false, models.ReasonCapacityExceeded, nil
	case leadTooShort:
		return false, models.ReasonLeadTimeTooShort, nil
	case holiday:
		return false, models.ReasonHolidayClosed, nil
	case outsideHours:
		return false, models.ReasonOutsideBusinessHours, nil
	case conflict != nil:
		return false, models.ReasonTableDoubleBooked, conflict
	}

	return true, models.ReasonNone, nil
}

// findConflict tests the candidate's booked interval against every blocking
// reservation's effective window [start, start+duration+buffer). Intervals
// are half-open, so back-to-back bookings at the effective end are fine.
func (p ConflictPolicy) findConflict(candidate models.ReservationCandidate, existing []*models.Reservation) *models.Reservation {
	duration := time.Duration(candidate.DurationMinutes) * time.Minute
	buffer := time.Duration(candidate.BufferMinutes) * time.Minute
	candidateEnd := candidate.StartTime.Add(duration)

	for _, r := range existing {
		if r.TableID != candidate.TableID || !r.Status.Blocking() {
			continue
		}

		effectiveEnd := r.ReservationDatetime.Add(duration + buffer)
		if candidate.StartTime.Before(effectiveEnd) && candidateEnd.After(r.ReservationDatetime) {
			return r
		}
	}

	return nil
}

// ValidateCancellation reports whether the reservation may still be
// cancelled: rejects once now is past start minus the cancellation window.
func ValidateCancellation(reservation *models.Reservation, now time.Time, cancelWindowMinutes int) bool {
	cutoff := reservation.ReservationDatetime.Add(-time.Duration(cancelWindowMinutes) * time.Minute)
	return !now.After(cutoff)
}

// ReservationService wraps the pure checker with the booking and
// cancellation flows the HTTP layer calls.
type ReservationService struct {
	store           storage.Store
	locker          TableLocker
	policy          ConflictPolicy
	cancelWindowMin int
	clock           clock.Clock
	producer        *kafka.Producer
	log             *logger.Logger
}

func NewReservationService(store storage.Store, locker TableLocker, policy ConflictPolicy, cancelWindowMinutes int, clk clock.Clock, producer *kafka.Producer, log *logger.Logger) *ReservationService {
	return &ReservationService{
		store:           store,
		locker:          locker,
		policy:          policy,
		cancelWindowMin: cancelWindowMinutes,
		clock:           clk,
		producer:        producer,
		log:             log,
	}
}

const (
	lockAttempts  = 20
	lockRetryWait = 50 * time.Millisecond
)

// BookReservation validates and persists a candidate as a single serialized
// unit: the per-table lock is held across load-validate-save, so the
// validation always runs against the authoritative reservation set.
func (s *ReservationService) BookReservation(ctx context.Context, candidate models.ReservationCandidate) (*models.Reservation, models.RejectionReason, *models.Reservation, error) {
	candidate = s.policy.withDefaults(candidate)
	if candidate.TableID == "" || candidate.PartySize <= 0 || candidate.DurationMinutes <= 0 {
		return nil, models.ReasonNone, nil, ErrInvalidCandidate
	}

	s.log.LogBooking("REQUEST", candidate.TableID, fmt.Sprintf("Booking request for party of %d at %s", candidate.PartySize, candidate.StartTime.Format(time.RFC3339)))

	table, err := s.store.GetTable(candidate.TableID)
	if err != nil {
		s.log.Error("BOOKING", fmt.Sprintf("Failed to load table %s: %v", candidate.TableID, err))
		return nil, models.ReasonNone, nil, ErrTableNotFound
	}

	token := utils.GenerateUUID()
	if err := s.acquireTableLock(ctx, candidate.TableID, token); err != nil {
		return nil, models.ReasonNone, nil, err
	}
	defer func() {
		if err := s.locker.UnlockTable(ctx, candidate.TableID, token); err != nil {
			s.log.Warn("BOOKING", fmt.Sprintf("Failed to release lock for table %s: %v", candidate.TableID, err))
		}
	}()

	existing, err := s.store.LoadReservationsForTable(candidate.TableID, []models.ReservationStatus{
		models.ReservationPending, models.ReservationConfirmed,
	})
	if err != nil {
		s.log.Error("BOOKING", fmt.Sprintf("Failed to load reservations for table %s: %v", candidate.TableID, err))
		return nil, models.ReasonNone, nil, fmt.Errorf("failed to load reservations: %w", err)
	}

	ok, reason, conflict := s.policy.Validate(candidate, existing, table, s.clock.Now())
	if !ok {
		s.log.LogBooking("REJECTED", candidate.TableID, fmt.Sprintf("Rejected: %s", reason))
		return nil, reason, conflict, nil
	}

	reservation := &models.Reservation{
		ReservationID:       utils.GenerateID("res"),
		TableID:             candidate.TableID,
		CustomerID:          candidate.CustomerID,
		ReservationDatetime: candidate.StartTime,
		PartySize:           candidate.PartySize,
		Status:              models.ReservationPending,
		Notes:               candidate.Notes,
		CreatedAt:           s.clock.Now(),
	}

	if err := s.store.SaveReservation(reservation); err != nil {
		s.log.Error("BOOKING", fmt.Sprintf("Failed to save reservation for table %s: %v", candidate.TableID, err))
		return nil, models.ReasonNone, nil, fmt.Errorf("failed to save reservation: %w", err)
	}

	s.log.LogBooking("ACCEPTED", reservation.ReservationID, fmt.Sprintf("Table %s booked for %s", reservation.TableID, reservation.ReservationDatetime.Format(time.RFC3339)))
	s.publishReservationEvent("reservation.created", reservation)

	return reservation, models.ReasonNone, nil, nil
}

func (s *ReservationService) acquireTableLock(ctx context.Context, tableID, token string) error {
	for attempt := 0; attempt < lockAttempts; attempt++ {
		ok, err := s.locker.LockTable(ctx, tableID, token)
		if err != nil {
			s.log.Error("BOOKING", fmt.Sprintf("Lock error for table %s: %v", tableID, err))
			return fmt.Errorf("failed to lock table: %w", err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryWait):
		}
	}

	s.log.Warn("BOOKING", fmt.Sprintf("Could not acquire lock for table %s", tableID))
	return ErrTableBusy
}

// CancelReservation enforces the cancellation cutoff and flips the status
// with a compare-and-set, so a cancel racing a staff confirmation never
// clobbers a state it did not read.
func (s *ReservationService) CancelReservation(ctx context.Context, reservationID string) error {
	reservation, err := s.store.GetReservation(reservationID)
	if err != nil {
		s.log.Error("BOOKING", fmt.Sprintf("Failed to load reservation %s: %v", reservationID, err))
		return ErrReservationNotFound
	}

	if !reservation.Status.Blocking() {
		return ErrReservationFinal
	}

	if !ValidateCancellation(reservation, s.clock.Now(), s.cancelWindowMin) {
		s.log.LogBooking("CANCEL_REJECTED", reservationID, fmt.Sprintf("Past the %d minute cancellation window", s.cancelWindowMin))
		return ErrCancelWindowClosed
	}

	ok, err := s.store.UpdateReservationStatus(reservationID, reservation.Status, models.ReservationCancelled)
	if err != nil {
		return fmt.Errorf("failed to cancel reservation: %w", err)
	}
	if !ok {
		// Status changed between read and write; report against the new state.
		s.log.Debug("BOOKING", fmt.Sprintf("Reservation %s changed status during cancel", reservationID))
		return ErrReservationFinal
	}

	s.log.LogBooking("CANCELLED", reservationID, "Reservation cancelled")
	s.publishReservationEvent("reservation.cancelled", reservation)
	return nil
}

// ConfirmReservation is the staff acceptance of a pending booking.
func (s *ReservationService) ConfirmReservation(ctx context.Context, reservationID string) error {
	ok, err := s.store.UpdateReservationStatus(reservationID, models.ReservationPending, models.ReservationConfirmed)
	if err != nil {
		return fmt.Errorf("failed to confirm reservation: %w", err)
	}
	if !ok {
		return ErrReservationFinal
	}

	s.log.LogBooking("CONFIRMED", reservationID, "Reservation confirmed")
	s.publishReservationEvent("reservation.confirmed", &models.Reservation{ReservationID: reservationID})
	return nil
}

func (s *ReservationService) ListTableReservations(ctx context.Context, tableID string) ([]*models.Reservation, error) {
	reservations, err := s.store.LoadReservationsForTable(tableID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, nil
}

func (s *ReservationService) publishReservationEvent(eventType string, reservation *models.Reservation) {
	event := &models.ReservationEvent{
		Type:          eventType,
		ReservationID: reservation.ReservationID,
		TableID:       reservation.TableID,
		Timestamp:     s.clock.Now(),
	}

	if err := s.producer.PublishReservationEvent(event); err != nil {
		s.log.Error("KAFKA", fmt.Sprintf("Failed to publish %s event for reservation %s: %v", eventType, reservation.ReservationID, err))
	}
}
