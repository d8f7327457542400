// Package queue publishes reservation lifecycle events to the message broker.
package queue

const ReservationEventsQueue = "reservation.events"

type EventType string

const (
	EventCreated      EventType = "reservation.created"
	EventUpdated      EventType = "reservation.updated"
	EventCancelled    EventType = "reservation.cancelled"
	EventStateChanged EventType = "reservation.state_changed"
	EventReassigned   EventType = "reservation.reassigned"
)

// ReservationEvent is emitted after the transaction that caused it commits.
// Downstream consumers (housekeeping, guest messaging) must not need to
// query the database to act on it.
type ReservationEvent struct {
	Type          EventType `json:"type"`
	ReservationID int64     `json:"reservation_id"`
	TicketNumber  string    `json:"ticket_number,omitempty"`
	CustomerID    int64     `json:"customer_id,omitempty"`
	State         string    `json:"state,omitempty"`
	Dates         []string  `json:"dates,omitempty"`
	FurnitureIDs  []int64   `json:"furniture_ids,omitempty"`
	ChildIDs      []int64   `json:"child_ids,omitempty"`
	OccurredAt    string    `json:"occurred_at"`
}
