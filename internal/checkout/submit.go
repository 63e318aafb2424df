package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

var (
	ErrEmptyCart = errors.New("cart is empty")
	ErrInFlight  = errors.New("checkout already in progress")
	ErrPricing   = errors.New("failed to price cart")
)

// Order is handed to the order-placement collaborator.
type Order struct {
	ID       string            `json:"id"`
	CartKey  string            `json:"cart_key"`
	Phone    string            `json:"phone"`
	Items    []models.LineItem `json:"items"`
	Total    float64           `json:"total"`
	PlacedAt time.Time         `json:"placed_at"`
}

// OrderPlacer places an order and returns the reference shown to the buyer.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order *Order) (string, error)
}

// CartClearer is the part of the cart store checkout touches.
type CartClearer interface {
	Key() string
	Clear(ctx context.Context) error
}

// PriceFunc turns the cart's current contents into line items and a total. Submit
// calls it while holding the cart's checkout guard.
type PriceFunc func(ctx context.Context) ([]models.LineItem, float64, error)

type Confirmation struct {
	Reference string    `json:"reference"`
	Total     float64   `json:"total"`
	PlacedAt  time.Time `json:"placed_at"`
	QRCode    []byte    `json:"qr_code,omitempty"`
}

type Submitter struct {
	placer OrderPlacer
	qr     *QRGenerator
	guard  Guard
	logger *logger.Logger
	now    func() time.Time
}

// NewSubmitter builds a Submitter guarded in-process. qr may be nil to skip
// confirmation codes.
func NewSubmitter(placer OrderPlacer, qr *QRGenerator, log *logger.Logger) *Submitter {
	return &Submitter{
		placer: placer,
		qr:     qr,
		guard:  NewLocalGuard(),
		logger: log,
		now:    time.Now,
	}
}

// WithGuard swaps the in-flight guard, e.g. for a RedisGuard shared across instances.
func (s *Submitter) WithGuard(g Guard) *Submitter {
	s.guard = g
	return s
}

// Submit validates the contact, takes the cart's guard, prices the cart, places the
// order and then clears the cart. The cart is only cleared after the placer succeeds.
// A submit for a cart that is already being checked out gets ErrInFlight.
func (s *Submitter) Submit(ctx context.Context, cart CartClearer, contact Contact, price PriceFunc) (*Confirmation, error) {
	if fields := ValidateContact(contact); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}

	key := cart.Key()
	orderID := uuid.NewString()
	acquired, err := s.guard.Acquire(ctx, key, orderID)
	if err != nil {
		s.logger.Error("CHECKOUT", fmt.Sprintf("Failed to acquire checkout lock for %s: %v", key, err))
		return nil, fmt.Errorf("failed to acquire checkout lock: %w", err)
	}
	if !acquired {
		s.logger.Warn("CHECKOUT", fmt.Sprintf("Submit for %s ignored: already in flight", key))
		return nil, ErrInFlight
	}
	defer func() {
		// detached so a cancelled request still frees the lock
		if err := s.guard.Release(context.WithoutCancel(ctx), key, orderID); err != nil {
			s.logger.Warn("CHECKOUT", fmt.Sprintf("Failed to release checkout lock for %s: %v", key, err))
		}
	}()

	items, total, err := price(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPricing, err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	order := &Order{
		ID:       orderID,
		CartKey:  key,
		Phone:    contact.Phone,
		Items:    items,
		Total:    total,
		PlacedAt: s.now().UTC(),
	}

	reference, err := s.placer.PlaceOrder(ctx, order)
	if err != nil {
		s.logger.Error("CHECKOUT", fmt.Sprintf("Failed to place order %s: %v", order.ID, err))
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	if err := cart.Clear(ctx); err != nil {
		// the order is already placed, so this is not a checkout failure
		s.logger.Error("CHECKOUT", fmt.Sprintf("Order %s placed but cart %s not cleared: %v", reference, key, err))
	}

	conf := &Confirmation{Reference: reference, Total: total, PlacedAt: order.PlacedAt}
	if s.qr != nil {
		png, err := s.qr.Generate(QRPayload{Reference: reference, Phone: contact.Phone, Total: total, PlacedAt: order.PlacedAt})
		if err != nil {
			s.logger.Warn("CHECKOUT", fmt.Sprintf("Failed to generate QR for %s: %v", reference, err))
		} else {
			conf.QRCode = png
		}
	}

	s.logger.Info("CHECKOUT", fmt.Sprintf("Order %s placed: %d items, total %.2f", reference, len(items), total))
	return conf, nil
}

// LogPlacer stands in for a real order service: it records the order and hands back its id.
type LogPlacer struct {
	logger *logger.Logger
}

func NewLogPlacer(log *logger.Logger) *LogPlacer {
	return &LogPlacer{logger: log}
}

func (p *LogPlacer) PlaceOrder(_ context.Context, order *Order) (string, error) {
	p.logger.Info("CHECKOUT", fmt.Sprintf("Order %s for %s: %d items, total %.2f", order.ID, order.Phone, len(order.Items), order.Total))
	return order.ID, nil
}
