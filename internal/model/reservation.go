package model

import "time"

// ReservationStatus is the state of a table reservation.
type ReservationStatus string

const (
	ReservationWaiting   ReservationStatus = "waiting"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationSeated    ReservationStatus = "seated"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationWaiting, ReservationConfirmed, ReservationSeated, ReservationCompleted, ReservationCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCompleted || s == ReservationCancelled
}

// ReservationAction is a staff command against a reservation. Promotion is
// not an action: only the coordinator moves waiting to confirmed.
type ReservationAction string

const (
	ReservationSeat     ReservationAction = "seat"
	ReservationComplete ReservationAction = "complete"
	ReservationCancel   ReservationAction = "cancel"
)

var reservationTransitions = map[ReservationAction]map[ReservationStatus]ReservationStatus{
	ReservationSeat: {ReservationConfirmed: ReservationSeated},
	ReservationComplete: {
		ReservationConfirmed: ReservationCompleted,
		ReservationSeated:    ReservationCompleted,
	},
	ReservationCancel: {
		ReservationWaiting:   ReservationCancelled,
		ReservationConfirmed: ReservationCancelled,
		ReservationSeated:    ReservationCancelled,
	},
}

// Reservation is a request to hold a specific table. Waiting reservations on
// the same table form a FIFO queue ordered by CreatedAt, then ID.
type Reservation struct {
	ID            uint64            // reservations.id
	TableID       uint64            // reservations.table_id
	CustomerName  string            // reservations.customer_name
	CustomerPhone *string           // reservations.customer_phone
	PartySize     int               // reservations.party_size
	RequestedFor  *time.Time        // reservations.requested_for
	Status        ReservationStatus // reservations.status
	CreatedAt     time.Time         // reservations.created_at
	SeatedAt      *time.Time        // reservations.seated_at
	CompletedAt   *time.Time        // reservations.completed_at
	CancelledAt   *time.Time        // reservations.cancelled_at
}

// Apply performs action on a copy of r and stamps the matching timestamp.
func (r Reservation) Apply(action ReservationAction, now time.Time) (Reservation, error) {
	to, ok := reservationTransitions[action][r.Status]
	if !ok {
		return r, &TransitionError{From: string(r.Status), Action: string(action)}
	}
	switch to {
	case ReservationSeated:
		r.SeatedAt = &now
	case ReservationCompleted:
		r.CompletedAt = &now
	case ReservationCancelled:
		r.CancelledAt = &now
	}
	r.Status = to
	return r, nil
}

// ParseReservationAction maps a path segment to an action.
func ParseReservationAction(s string) (ReservationAction, bool) {
	switch a := ReservationAction(s); a {
	case ReservationSeat, ReservationComplete, ReservationCancel:
		return a, true
	}
	return "", false
}
