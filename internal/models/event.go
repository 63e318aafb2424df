package models

type EventStatus string

const (
	EventStatusActive    EventStatus = "active"
	EventStatusPostponed EventStatus = "postponed"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

// Valid reports whether s is one of the statuses the catalog API emits.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusActive, EventStatusPostponed, EventStatusCancelled, EventStatusCompleted:
		return true
	}
	return false
}

type Event struct {
	ID          int         `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Venue       string      `json:"venue"`
	Poster      string      `json:"poster"`
	Status      EventStatus `json:"status"`
	CategoryID  int         `json:"category_id"`
	StartDate   Timestamp   `json:"start_date"`
	EndDate     Timestamp   `json:"end_date"`
	CreatedAt   Timestamp   `json:"created_at"`
	UpdatedAt   Timestamp   `json:"updated_at"`
	Tickets     []Ticket    `json:"tickets"`
	Category    *Category   `json:"category,omitempty"`
}

type Ticket struct {
	ID               int     `json:"id"`
	EventID          int     `json:"event_id,omitempty"`
	Name             string  `json:"name"`
	Price            float64 `json:"price"`
	TicketsAvailable int     `json:"tickets_available"`
}

type Category struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	EventCount int       `json:"event_count"`
	CreatedAt  Timestamp `json:"created_at"`
	UpdatedAt  Timestamp `json:"updated_at"`
}
