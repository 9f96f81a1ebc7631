package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationCompleted ReservationStatus = "completed"
)

// Blocking reports whether the reservation still holds its table. Cancelled
// and completed reservations free the slot for rebooking.
func (s ReservationStatus) Blocking() bool {
	return s == ReservationPending || s == ReservationConfirmed
}

type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ReservationID       string            `json:"reservationID" bun:"reservation_id,pk"`
	TableID             string            `json:"tableID" bun:"table_id"`
	CustomerID          string            `json:"customerID" bun:"customer_id"`
	ReservationDatetime time.Time         `json:"reservationDatetime" bun:"reservation_datetime"`
	PartySize           int               `json:"partySize" bun:"party_size"`
	Status              ReservationStatus `json:"status" bun:"status"`
	Notes               string            `json:"notes,omitempty" bun:"notes"`
	CreatedAt           time.Time         `json:"createdAt" bun:"created_at"`
}

type Table struct {
	bun.BaseModel `bun:"table:tables"`

	TableID  string `json:"tableID" bun:"table_id,pk"`
	Capacity int    `json:"capacity" bun:"capacity"`
	Location string `json:"location" bun:"location"`
}

// ReservationCandidate is a booking request before it has an identity or a
// persisted row. Duration and buffer travel with the candidate so the checker
// stays free of config lookups.
type ReservationCandidate struct {
	TableID         string    `json:"table_id"`
	CustomerID      string    `json:"customer_id"`
	StartTime       time.Time `json:"start_time"`
	PartySize       int       `json:"party_size"`
	DurationMinutes int       `json:"duration_minutes"`
	BufferMinutes   int       `json:"buffer_minutes"`
	Notes           string    `json:"notes"`
}

// RejectionReason is a business outcome, not an error: validation failures are
// returned as data to the caller.
type RejectionReason string

const (
	ReasonNone                 RejectionReason = ""
	ReasonCapacityExceeded     RejectionReason = "capacity_exceeded"
	ReasonLeadTimeTooShort     RejectionReason = "lead_time_too_short"
	ReasonHolidayClosed        RejectionReason = "holiday_closed"
	ReasonOutsideBusinessHours RejectionReason = "outside_business_hours"
	ReasonTableDoubleBooked    RejectionReason = "table_double_booked"
)

func (r RejectionReason) String() string {
	return string(r)
}

type ReservationEvent struct {
	Type          string    `json:"type"`
	ReservationID string    `json:"reservation_id"`
	TableID       string    `json:"table_id"`
	Timestamp     time.Time `json:"timestamp"`
}
