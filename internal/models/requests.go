package models

type CreateEventRequest struct {
	Name        string      `json:"name" validate:"required"`
	Description string      `json:"description"`
	Venue       string      `json:"venue" validate:"required"`
	Poster      string      `json:"poster,omitempty"`
	Status      EventStatus `json:"status" validate:"required,eventstatus"`
	CategoryID  int         `json:"category_id" validate:"required,gt=0"`
	StartDate   string      `json:"start_date" validate:"required"`
	EndDate     string      `json:"end_date" validate:"required"`
}

type CreateTicketRequest struct {
	EventID          int     `json:"event_id" validate:"required,gt=0"`
	Name             string  `json:"name" validate:"required"`
	Price            float64 `json:"price" validate:"gte=0"`
	TicketsAvailable int     `json:"tickets_available" validate:"gte=0"`
}

// MessageResponse is the generic {message} body the catalog API returns on writes and errors.
type MessageResponse struct {
	Message string `json:"message"`
}
