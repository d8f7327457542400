package domain

import (
	"sort"
	"time"
)

const DateLayout = "2006-01-02"

type FurnitureItem struct {
	ID       int64  `json:"id"`
	Number   string `json:"number"`
	Zone     string `json:"zone"`
	Type     string `json:"type"`
	Capacity int    `json:"capacity"`
	Active   bool   `json:"active"`
}

type Reservation struct {
	ID                int64     `json:"id"`
	TicketNumber      string    `json:"ticket_number"`
	CustomerID        int64     `json:"customer_id"`
	ReservationDate   time.Time `json:"reservation_date"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	NumPeople         int       `json:"num_people"`
	CurrentState      string    `json:"current_state"`
	ParentID          *int64    `json:"parent_reservation_id,omitempty"`
	Paid              bool      `json:"paid"`
	PaymentMethod     string    `json:"payment_method"`
	Notes             string    `json:"notes"`
	IsFurnitureLocked bool      `json:"is_furniture_locked"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (r *Reservation) IsChild() bool { return r.ParentID != nil }

// FamilyRootID is the parent id for children and the own id otherwise.
func (r *Reservation) FamilyRootID() int64 {
	if r.ParentID != nil {
		return *r.ParentID
	}
	return r.ID
}

type Assignment struct {
	FurnitureID    int64     `json:"furniture_id"`
	AssignmentDate time.Time `json:"assignment_date"`
	ReservationID  int64     `json:"reservation_id"`
}

type ReservationWithAssignments struct {
	Reservation
	Assignments []Assignment `json:"assignments"`
}

type BlockType string

const (
	BlockMaintenance BlockType = "maintenance"
	BlockVIPHold     BlockType = "vip_hold"
	BlockEvent       BlockType = "event"
	BlockOther       BlockType = "other"
)

func (t BlockType) Valid() bool {
	switch t {
	case BlockMaintenance, BlockVIPHold, BlockEvent, BlockOther:
		return true
	}
	return false
}

type FurnitureBlock struct {
	ID          int64     `json:"id"`
	FurnitureID int64     `json:"furniture_id"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	BlockType   BlockType `json:"block_type"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConflictKind tells whether a slot is taken by a booking or an administrative block.
type ConflictKind string

const (
	ConflictReservation ConflictKind = "reservation"
	ConflictBlock       ConflictKind = "block"
)

type Conflict struct {
	FurnitureID   int64        `json:"furniture_id"`
	Date          time.Time    `json:"date"`
	Kind          ConflictKind `json:"kind"`
	ReservationID int64        `json:"reservation_id,omitempty"`
	TicketNumber  string       `json:"ticket_number,omitempty"`
	CustomerLabel string       `json:"customer_label,omitempty"`
	BlockID       int64        `json:"block_id,omitempty"`
	BlockType     BlockType    `json:"block_type,omitempty"`
}

type SlotKey struct {
	FurnitureID int64
	Date        string
}

func NewSlotKey(furnitureID int64, date time.Time) SlotKey {
	return SlotKey{FurnitureID: furnitureID, Date: DateKey(date)}
}

// ConflictMap is keyed by (furniture, date). An absent key means the slot is free.
type ConflictMap map[SlotKey][]Conflict

func (m ConflictMap) Add(c Conflict) {
	k := NewSlotKey(c.FurnitureID, c.Date)
	m[k] = append(m[k], c)
}

func (m ConflictMap) Empty() bool { return len(m) == 0 }

// List flattens the map ordered by date, furniture and reservation.
func (m ConflictMap) List() []Conflict {
	out := make([]Conflict, 0, len(m))
	for _, cs := range m {
		out = append(out, cs...)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.FurnitureID != b.FurnitureID {
			return a.FurnitureID < b.FurnitureID
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.ReservationID < b.ReservationID
	})
	return out
}

// Only keeps conflicts of the given kind.
func (m ConflictMap) Only(kind ConflictKind) ConflictMap {
	out := ConflictMap{}
	for _, cs := range m {
		for _, c := range cs {
			if c.Kind == kind {
				out.Add(c)
			}
		}
	}
	return out
}

// ReservationIDs returns the distinct competing reservations, sorted.
func (m ConflictMap) ReservationIDs() []int64 {
	seen := map[int64]struct{}{}
	for _, cs := range m {
		for _, c := range cs {
			if c.Kind == ConflictReservation {
				seen[c.ReservationID] = struct{}{}
			}
		}
	}
	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FloorPlanSlot is one furniture item as seen on a given date.
type FloorPlanSlot struct {
	Furniture     FurnitureItem `json:"furniture"`
	ReservationID int64         `json:"reservation_id,omitempty"`
	TicketNumber  string        `json:"ticket_number,omitempty"`
	CustomerLabel string        `json:"customer_label,omitempty"`
	State         string        `json:"state,omitempty"`
	Locked        bool          `json:"locked,omitempty"`
	BlockID       int64         `json:"block_id,omitempty"`
	BlockType     BlockType     `json:"block_type,omitempty"`
}

func (s FloorPlanSlot) Free() bool { return s.ReservationID == 0 && s.BlockID == 0 }

type FloorPlan struct {
	Date  time.Time       `json:"date"`
	Slots []FloorPlanSlot `json:"slots"`
}
