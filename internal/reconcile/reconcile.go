package reconcile

import (
	"context"
	"errors"
	"fmt"

	"ms-storefront/internal/cart"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

// ErrFetchFailed means the batched event fetch failed; the cart is left untouched.
var ErrFetchFailed = errors.New("failed to fetch cart events")

// CartLoader is the read side of the cart store.
type CartLoader interface {
	Load(ctx context.Context) (*cart.Cart, error)
}

// EventFetcher returns full event records (tickets embedded) for a set of ids.
type EventFetcher interface {
	GetEventsByIDs(ctx context.Context, ids []int) ([]models.Event, error)
}

type Result struct {
	Items []models.LineItem `json:"items"`
	Total float64           `json:"total"`
}

type Reconciler struct {
	carts   CartLoader
	fetcher EventFetcher
	logger  *logger.Logger
}

func New(carts CartLoader, fetcher EventFetcher, log *logger.Logger) *Reconciler {
	return &Reconciler{carts: carts, fetcher: fetcher, logger: log}
}

// Reconcile prices the persisted cart against live catalog data. Entries whose event or
// ticket no longer exists are dropped; quantities are passed through as stored.
func (r *Reconciler) Reconcile(ctx context.Context) (*Result, error) {
	c, err := r.carts.Load(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{Items: []models.LineItem{}}
	if c.IsEmpty() {
		return result, nil
	}

	ids := c.EventIDs()
	events, err := r.fetcher.GetEventsByIDs(ctx, ids)
	if err != nil {
		r.logger.Error("RECONCILE", fmt.Sprintf("Failed to fetch events %v: %v", ids, err))
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	byID := make(map[int]*models.Event, len(events))
	for i := range events {
		byID[events[i].ID] = &events[i]
	}

	for _, entry := range c.Entries() {
		event, ok := lookupEvent(byID, entry.EventID)
		if !ok {
			r.logger.Debug("RECONCILE", fmt.Sprintf("Skipping event %d: not in catalog", entry.EventID))
			continue
		}
		ticket, ok := lookupTicket(event, entry.TicketID)
		if !ok {
			r.logger.Debug("RECONCILE", fmt.Sprintf("Skipping ticket %d of event %d: not in catalog", entry.TicketID, entry.EventID))
			continue
		}

		item := models.LineItem{
			TicketID:  ticket.ID,
			EventID:   event.ID,
			Name:      event.Name + " - " + ticket.Name,
			UnitPrice: ticket.Price,
			Quantity:  entry.Quantity,
			Available: ticket.TicketsAvailable,
		}
		if item.OverStock() {
			r.logger.Warn("RECONCILE", fmt.Sprintf("%s: %d selected, %d available", item.Name, item.Quantity, item.Available))
		}
		result.Items = append(result.Items, item)
		result.Total += item.Subtotal()
	}

	return result, nil
}

func lookupEvent(byID map[int]*models.Event, id int) (*models.Event, bool) {
	e, ok := byID[id]
	return e, ok
}

func lookupTicket(event *models.Event, id int) (models.Ticket, bool) {
	for _, t := range event.Tickets {
		if t.ID == id {
			return t, true
		}
	}
	return models.Ticket{}, false
}
