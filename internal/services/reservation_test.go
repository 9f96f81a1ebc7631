package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafe-fulfillment/internal/clock"
	"cafe-fulfillment/internal/config"
	"cafe-fulfillment/internal/kafka"
	"cafe-fulfillment/internal/logger"
	"cafe-fulfillment/internal/models"
	"cafe-fulfillment/internal/storage"
)

// memoryLocker is a single-process TableLocker used in tests; it mirrors the
// Redis lock's try-acquire semantics.
type memoryLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{held: make(map[string]string)}
}

func (l *memoryLocker) LockTable(ctx context.Context, tableID, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[tableID]; taken {
		return false, nil
	}
	l.held[tableID] = token
	return true, nil
}

func (l *memoryLocker) UnlockTable(ctx context.Context, tableID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[tableID] == token {
		delete(l.held, tableID)
	}
	return nil
}

func testBookingConfig() config.BookingConfig {
	return config.BookingConfig{
		MinAdvanceMinutes:  60,
		OpeningTime:        "08:00",
		ClosingTime:        "22:00",
		PrepWindowMinutes:  30,
		CloseWindowMinutes: 60,
		DurationMinutes:    90,
		BufferMinutes:      30,
		CancelWindowMin:    30,
		Holidays:           []time.Weekday{time.Monday},
	}
}

func testPolicy(t *testing.T) ConflictPolicy {
	t.Helper()
	policy, err := NewConflictPolicy(testBookingConfig())
	require.NoError(t, err)
	return policy
}

// 2026-09-15 is a Tuesday; the shop is open and it is not a holiday.
var testDay = time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func candidateAt(start time.Time, partySize int) models.ReservationCandidate {
	return models.ReservationCandidate{
		TableID:         "t-02",
		CustomerID:      "cust-1",
		StartTime:       start,
		PartySize:       partySize,
		DurationMinutes: 90,
		BufferMinutes:   30,
	}
}

func TestValidate(t *testing.T) {
	policy := testPolicy(t)
	table := &models.Table{TableID: "t-02", Capacity: 4, Location: "main floor"}
	now := at(10, 0)

	existing := []*models.Reservation{
		{
			ReservationID:       "res-existing",
			TableID:             "t-02",
			CustomerID:          "cust-2",
			ReservationDatetime: at(18, 0),
			PartySize:           2,
			Status:              models.ReservationConfirmed,
		},
	}

	tests := []struct {
		name       string
		candidate  models.ReservationCandidate
		existing   []*models.Reservation
		wantOK     bool
		wantReason models.RejectionReason
	}{
		{
			name:       "accepted",
			candidate:  candidateAt(at(14, 0), 4),
			wantOK:     true,
			wantReason: models.ReasonNone,
		},
		{
			name:       "party larger than table",
			candidate:  candidateAt(at(14, 0), 5),
			wantOK:     false,
			wantReason: models.ReasonCapacityExceeded,
		},
		{
			name:       "lead time too short",
			candidate:  candidateAt(at(10, 30), 2),
			wantOK:     false,
			wantReason: models.ReasonLeadTimeTooShort,
		},
		{
			name:       "closed on holiday",
			candidate:  candidateAt(at(14, 0).AddDate(0, 0, 6), 2), // following Monday
			wantOK:     false,
			wantReason: models.ReasonHolidayClosed,
		},
		{
			name:       "before prep window opens",
			candidate:  candidateAt(at(8, 15).AddDate(0, 0, 1), 2),
			wantOK:     false,
			wantReason: models.ReasonOutsideBusinessHours,
		},
		{
			name:       "too close to closing",
			candidate:  candidateAt(at(21, 30), 2),
			wantOK:     false,
			wantReason: models.ReasonOutsideBusinessHours,
		},
		{
			name:       "inside effective window of existing booking",
			candidate:  candidateAt(at(19, 45), 2),
			existing:   existing,
			wantOK:     false,
			wantReason: models.ReasonTableDoubleBooked,
		},
		{
			name:      "at effective end of existing booking",
			candidate: candidateAt(at(20, 0), 2),
			existing:  existing,
			wantOK:    true,
		},
		{
			name: "capacity reported before overlap",
			// Fails both checks; the first in check order wins.
			candidate:  candidateAt(at(19, 45), 5),
			existing:   existing,
			wantOK:     false,
			wantReason: models.ReasonCapacityExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason, conflict := policy.Validate(tt.candidate, tt.existing, table, now)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantReason, reason)
			if tt.wantReason == models.ReasonTableDoubleBooked {
				require.NotNil(t, conflict)
				assert.Equal(t, "res-existing", conflict.ReservationID)
			} else {
				assert.Nil(t, conflict)
			}
		})
	}
}

func TestValidateIgnoresNonBlockingReservations(t *testing.T) {
	policy := testPolicy(t)
	table := &models.Table{TableID: "t-02", Capacity: 4}

	existing := []*models.Reservation{
		{
			ReservationID:       "res-cancelled",
			TableID:             "t-02",
			ReservationDatetime: at(18, 0),
			Status:              models.ReservationCancelled,
		},
		{
			ReservationID:       "res-other-table",
			TableID:             "t-04",
			ReservationDatetime: at(18, 0),
			Status:              models.ReservationConfirmed,
		},
	}

	ok, reason, conflict := policy.Validate(candidateAt(at(18, 30), 2), existing, table, at(10, 0))
	assert.True(t, ok)
	assert.Equal(t, models.ReasonNone, reason)
	assert.Nil(t, conflict)
}

func TestValidateCancellation(t *testing.T) {
	reservation := &models.Reservation{
		ReservationID:       "res-1",
		ReservationDatetime: at(18, 0),
	}

	// 31 minutes before start: still inside the window.
	assert.True(t, ValidateCancellation(reservation, at(17, 29), 30))
	// 29 minutes before start: too late.
	assert.False(t, ValidateCancellation(reservation, at(17, 31), 30))
	// Exactly on the cutoff counts as allowed.
	assert.True(t, ValidateCancellation(reservation, at(17, 30), 30))
}

type reservationFixture struct {
	store  *storage.InMemoryStore
	clock  *clock.FakeClock
	locker *memoryLocker
	svc    *ReservationService
}

func newReservationFixture(t *testing.T) *reservationFixture {
	t.Helper()

	log := logger.NewLogger()
	store := storage.NewInMemoryStore()
	fc := clock.NewFake(at(10, 0))
	locker := newMemoryLocker()

	producer, err := kafka.NewProducer(nil, true, log)
	require.NoError(t, err)

	policy := testPolicy(t)
	svc := NewReservationService(store, locker, policy, 30, fc, producer, log)

	require.NoError(t, store.SaveTable(&models.Table{TableID: "t-02", Capacity: 4, Location: "main floor"}))

	return &reservationFixture{store: store, clock: fc, locker: locker, svc: svc}
}

func TestBookReservationPersistsAcceptedBooking(t *testing.T) {
	f := newReservationFixture(t)

	reservation, reason, conflict, err := f.svc.BookReservation(context.Background(), candidateAt(at(18, 0), 2))
	require.NoError(t, err)
	assert.Equal(t, models.ReasonNone, reason)
	assert.Nil(t, conflict)
	require.NotNil(t, reservation)
	assert.Equal(t, models.ReservationPending, reservation.Status)

	stored, err := f.store.GetReservation(reservation.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, at(18, 0), stored.ReservationDatetime)
}

func TestBookReservationRejectsOverlap(t *testing.T) {
	f := newReservationFixture(t)

	first, _, _, err := f.svc.BookReservation(context.Background(), candidateAt(at(18, 0), 2))
	require.NoError(t, err)
	require.NotNil(t, first)

	// 18:00 + 90min + 30min buffer = effective end 20:00; 19:45 overlaps.
	second, reason, conflict, err := f.svc.BookReservation(context.Background(), candidateAt(at(19, 45), 2))
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.Equal(t, models.ReasonTableDoubleBooked, reason)
	require.NotNil(t, conflict)
	assert.Equal(t, first.ReservationID, conflict.ReservationID)

	// 20:00 is exactly at the effective end and is accepted.
	third, reason, _, err := f.svc.BookReservation(context.Background(), candidateAt(at(20, 0), 2))
	require.NoError(t, err)
	assert.Equal(t, models.ReasonNone, reason)
	require.NotNil(t, third)
}

// A request that omits duration and buffer gets the configured booking
// defaults, not a zero-length window and not a validation error.
func TestBookReservationDefaultsDurationAndBuffer(t *testing.T) {
	f := newReservationFixture(t)

	first := candidateAt(at(18, 0), 2)
	first.DurationMinutes = 0
	first.BufferMinutes = 0

	reservation, reason, _, err := f.svc.BookReservation(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonNone, reason)
	require.NotNil(t, reservation)

	// With the 90+30 minute defaults in effect, 19:45 overlaps the first
	// booking's effective window ending at 20:00.
	second := candidateAt(at(19, 45), 2)
	second.DurationMinutes = 0
	second.BufferMinutes = 0

	stored, reason, conflict, err := f.svc.BookReservation(context.Background(), second)
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.Equal(t, models.ReasonTableDoubleBooked, reason)
	require.NotNil(t, conflict)
	assert.Equal(t, reservation.ReservationID, conflict.ReservationID)
}

func TestBookReservationUnknownTable(t *testing.T) {
	f := newReservationFixture(t)

	candidate := candidateAt(at(18, 0), 2)
	candidate.TableID = "t-99"

	_, _, _, err := f.svc.BookReservation(context.Background(), candidate)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

// Two overlapping bookings racing through the lock: exactly one is accepted.
func TestConcurrentBookingsSerialized(t *testing.T) {
	f := newReservationFixture(t)

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]models.RejectionReason, attempts)
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, reason, _, err := f.svc.BookReservation(context.Background(), candidateAt(at(18, 0), 2))
			results[i] = reason
			errs[i] = err
		}(i)
	}
	wg.Wait()

	accepted := 0
	for i := 0; i < attempts; i++ {
		require.NoError(t, errs[i])
		if results[i] == models.ReasonNone {
			accepted++
		} else {
			assert.Equal(t, models.ReasonTableDoubleBooked, results[i])
		}
	}
	assert.Equal(t, 1, accepted)

	stored, err := f.store.LoadReservationsForTable("t-02", nil)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestCancelReservationWithinWindow(t *testing.T) {
	f := newReservationFixture(t)

	reservation, _, _, err := f.svc.BookReservation(context.Background(), candidateAt(at(18, 0), 2))
	require.NoError(t, err)

	// now = 10:00, start = 18:00: comfortably inside the window.
	require.NoError(t, f.svc.CancelReservation(context.Background(), reservation.ReservationID))

	stored, err := f.store.GetReservation(reservation.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCancelled, stored.Status)
}

func TestCancelReservationPastCutoff(t *testing.T) {
	f := newReservationFixture(t)

	reservation, _, _, err := f.svc.BookReservation(context.Background(), candidateAt(at(18, 0), 2))
	require.NoError(t, err)

	// Move to 29 minutes before start: past the 30 minute cutoff.
	f.clock.Advance(7*time.Hour + 31*time.Minute)

	err = f.svc.CancelReservation(context.Background(), reservation.ReservationID)
	assert.ErrorIs(t, err, ErrCancelWindowClosed)
}

func TestCancelReservationAlreadyFinal(t *testing.T) {
	f := newReservationFixture(t)

	reservation, _, _, err := f.svc.BookReservation(context.Background(), candidateAt(at(18, 0), 2))
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelReservation(context.Background(), reservation.ReservationID))
	err = f.svc.CancelReservation(context.Background(), reservation.ReservationID)
	assert.ErrorIs(t, err, ErrReservationFinal)
}

func TestConfirmReservation(t *testing.T) {
	f := newReservationFixture(t)

	reservation, _, _, err := f.svc.BookReservation(context.Background(), candidateAt(at(18, 0), 2))
	require.NoError(t, err)

	require.NoError(t, f.svc.ConfirmReservation(context.Background(), reservation.ReservationID))

	stored, err := f.store.GetReservation(reservation.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationConfirmed, stored.Status)

	// Confirming twice fails the compare-and-set.
	err = f.svc.ConfirmReservation(context.Background(), reservation.ReservationID)
	assert.ErrorIs(t, err, ErrReservationFinal)
}
