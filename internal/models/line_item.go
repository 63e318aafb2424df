package models

// LineItem is a reconciled cart entry priced from freshly fetched catalog data. Never persisted.
type LineItem struct {
	TicketID  int     `json:"ticket_id"`
	EventID   int     `json:"event_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	Available int     `json:"available"`
}

func (li LineItem) Subtotal() float64 {
	return li.UnitPrice * float64(li.Quantity)
}

// OverStock reports a persisted quantity above the stock seen at the last fetch.
func (li LineItem) OverStock() bool {
	return li.Quantity > li.Available
}
