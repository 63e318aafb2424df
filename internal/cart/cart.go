package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

var ErrMalformed = errors.New("malformed cart document")

// Entry is one (event, ticket, quantity) triple of a Cart.
type Entry struct {
	EventID  int
	TicketID int
	Quantity int
}

type ticketLine struct {
	id       int
	quantity int
}

type eventLine struct {
	id      int
	tickets []ticketLine
}

// Cart maps event id -> ticket id -> quantity and remembers insertion order at both
// levels. Zero quantities and empty events are never held.
type Cart struct {
	events []eventLine
}

func New() *Cart {
	return &Cart{}
}

func (c *Cart) findEvent(eventID int) int {
	for i := range c.events {
		if c.events[i].id == eventID {
			return i
		}
	}
	return -1
}

func (e *eventLine) findTicket(ticketID int) int {
	for i := range e.tickets {
		if e.tickets[i].id == ticketID {
			return i
		}
	}
	return -1
}

// Quantity returns the stored quantity, 0 when absent.
func (c *Cart) Quantity(eventID, ticketID int) int {
	ei := c.findEvent(eventID)
	if ei < 0 {
		return 0
	}
	ti := c.events[ei].findTicket(ticketID)
	if ti < 0 {
		return 0
	}
	return c.events[ei].tickets[ti].quantity
}

// Set upserts a quantity. quantity <= 0 removes the ticket, and the event with it
// once the event has no tickets left. New keys go to the end.
func (c *Cart) Set(eventID, ticketID, quantity int) {
	ei := c.findEvent(eventID)

	if quantity <= 0 {
		if ei < 0 {
			return
		}
		ev := &c.events[ei]
		ti := ev.findTicket(ticketID)
		if ti < 0 {
			return
		}
		ev.tickets = append(ev.tickets[:ti], ev.tickets[ti+1:]...)
		if len(ev.tickets) == 0 {
			c.events = append(c.events[:ei], c.events[ei+1:]...)
		}
		return
	}

	if ei < 0 {
		c.events = append(c.events, eventLine{id: eventID})
		ei = len(c.events) - 1
	}
	ev := &c.events[ei]
	if ti := ev.findTicket(ticketID); ti >= 0 {
		ev.tickets[ti].quantity = quantity
		return
	}
	ev.tickets = append(ev.tickets, ticketLine{id: ticketID, quantity: quantity})
}

func (c *Cart) IsEmpty() bool {
	return len(c.events) == 0
}

// EventIDs lists the distinct event ids in stored order.
func (c *Cart) EventIDs() []int {
	ids := make([]int, 0, len(c.events))
	for _, ev := range c.events {
		ids = append(ids, ev.id)
	}
	return ids
}

// Entries flattens the cart in stored order: events first, then tickets within each.
func (c *Cart) Entries() []Entry {
	var out []Entry
	for _, ev := range c.events {
		for _, t := range ev.tickets {
			out = append(out, Entry{EventID: ev.id, TicketID: t.id, Quantity: t.quantity})
		}
	}
	return out
}

// Len is the number of ticket entries.
func (c *Cart) Len() int {
	n := 0
	for _, ev := range c.events {
		n += len(ev.tickets)
	}
	return n
}

// MarshalJSON writes {"<event>": {"<ticket>": qty}} keeping stored order.
func (c *Cart) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ev := range c.events {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:{", strconv.Itoa(ev.id))
		for j, t := range ev.tickets {
			if j > 0 {
				buf.WriteByte(',')
			}
			fmt.Fprintf(&buf, "%q:%d", strconv.Itoa(t.id), t.quantity)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON parses a persisted cart, keeping key order. Anything that is not an
// object of objects of integers is ErrMalformed. A repeated key replaces the earlier
// value in its original position. Non-positive quantities are dropped.
func (c *Cart) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var events []eventLine
	eventAt := map[int]int{}
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		eventID, err := readIntKey(dec)
		if err != nil {
			return err
		}
		tickets, err := readTickets(dec)
		if err != nil {
			return err
		}
		if i, ok := eventAt[eventID]; ok {
			events[i].tickets = tickets
			continue
		}
		eventAt[eventID] = len(events)
		events = append(events, eventLine{id: eventID, tickets: tickets})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data", ErrMalformed)
	}

	parsed := New()
	for _, ev := range events {
		for _, t := range ev.tickets {
			parsed.Set(ev.id, t.id, t.quantity)
		}
	}
	c.events = parsed.events
	return nil
}

// readTickets reads one {"<ticket>": qty} object, later keys overwriting earlier ones.
func readTickets(dec *json.Decoder) ([]ticketLine, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var tickets []ticketLine
	ticketAt := map[int]int{}
	for dec.More() {
		ticketID, err := readIntKey(dec)
		if err != nil {
			return nil, err
		}
		qty, err := readQuantity(dec, ticketID)
		if err != nil {
			return nil, err
		}
		if i, ok := ticketAt[ticketID]; ok {
			tickets[i].quantity = qty
			continue
		}
		ticketAt[ticketID] = len(tickets)
		tickets = append(tickets, ticketLine{id: ticketID, quantity: qty})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return tickets, nil
}

// readQuantity accepts integers, including integral numbers written as 2.0 or 2e0.
func readQuantity(dec *json.Decoder, ticketID int) (int, error) {
	tok, err := dec.Token()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	num, ok := tok.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: quantity for ticket %d is not a number", ErrMalformed, ticketID)
	}
	if n, err := num.Int64(); err == nil && n >= math.MinInt32 && n <= math.MaxInt32 {
		return int(n), nil
	}
	f, err := num.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: quantity %s for ticket %d is not an integer", ErrMalformed, num, ticketID)
	}
	return int(f), nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrMalformed, want, tok)
	}
	return nil
}

func readIntKey(dec *json.Decoder) (int, error) {
	tok, err := dec.Token()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	key, ok := tok.(string)
	if !ok {
		return 0, fmt.Errorf("%w: expected key, got %v", ErrMalformed, tok)
	}
	id, err := strconv.Atoi(key)
	if err != nil {
		return 0, fmt.Errorf("%w: key %q is not an integer id", ErrMalformed, key)
	}
	return id, nil
}
