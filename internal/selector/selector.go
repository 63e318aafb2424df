// Package selector binds one ticket type's quantity control to the cart store.
package selector

import (
	"context"
)

// QuantityStore is the slice of the cart store a selector needs. Update applies step
// to the stored quantity in one read-modify-write and returns the stored result.
type QuantityStore interface {
	Get(ctx context.Context, eventID, ticketID int) (int, error)
	Update(ctx context.Context, eventID, ticketID int, step func(current int) int) (int, error)
}

// Selector holds the displayed quantity for a single (event, ticket) pair, bounded
// by a stock ceiling snapshotted by the caller.
type Selector struct {
	store     QuantityStore
	eventID   int
	ticketID  int
	ceiling   int
	unitPrice float64
	onChange  func(quantity int)
	quantity  int
}

func New(store QuantityStore, eventID, ticketID, ceiling int, unitPrice float64, onChange func(int)) *Selector {
	return &Selector{
		store:     store,
		eventID:   eventID,
		ticketID:  ticketID,
		ceiling:   ceiling,
		unitPrice: unitPrice,
		onChange:  onChange,
	}
}

// Mount loads the displayed quantity from the store.
func (s *Selector) Mount(ctx context.Context) error {
	qty, err := s.store.Get(ctx, s.eventID, s.ticketID)
	if err != nil {
		return err
	}
	s.quantity = qty
	return nil
}

// Rebind points the selector at another ticket and reloads. Same identity is a no-op.
func (s *Selector) Rebind(ctx context.Context, eventID, ticketID int) error {
	if eventID == s.eventID && ticketID == s.ticketID {
		return nil
	}
	s.eventID = eventID
	s.ticketID = ticketID
	return s.Mount(ctx)
}

func (s *Selector) Quantity() int {
	return s.quantity
}

func (s *Selector) Ceiling() int {
	return s.ceiling
}

// Increment adds one unless the ceiling is reached. The bound is checked again against
// the stored quantity, so concurrent clicks cannot push past it.
func (s *Selector) Increment(ctx context.Context) error {
	if s.quantity >= s.ceiling {
		return nil
	}
	return s.commit(ctx, func(current int) int {
		if current >= s.ceiling {
			return current
		}
		return current + 1
	})
}

// Decrement removes one unless the quantity is already 0.
func (s *Selector) Decrement(ctx context.Context) error {
	if s.quantity <= 0 {
		return nil
	}
	return s.commit(ctx, func(current int) int {
		if current <= 0 {
			return 0
		}
		return current - 1
	})
}

func (s *Selector) commit(ctx context.Context, step func(int) int) error {
	next, err := s.store.Update(ctx, s.eventID, s.ticketID, step)
	if err != nil {
		return err
	}
	changed := next != s.quantity
	s.quantity = next
	if changed && s.onChange != nil {
		s.onChange(next)
	}
	return nil
}

// Subtotal is quantity x unit price; ok is false when nothing is selected.
func (s *Selector) Subtotal() (float64, bool) {
	if s.quantity <= 0 {
		return 0, false
	}
	return float64(s.quantity) * s.unitPrice, true
}
