package payment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"ms-storefront/internal/checkout"
	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
)

var (
	ErrStripeAPIError         = errors.New("stripe API error")
	ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")
)

// StripePlacer opens a Stripe payment intent for the order total and then hands the
// order to the next placer. The intent is cancelled if the next placer fails.
type StripePlacer struct {
	client   *client.API
	currency string
	next     checkout.OrderPlacer
	log      *logger.Logger
}

func NewStripePlacer(cfg config.StripeConfig, next checkout.OrderPlacer, log *logger.Logger) (*StripePlacer, error) {
	if cfg.SecretKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY environment variable not set")
		return nil, ErrStripeClientInitFailed
	}
	if next == nil {
		return nil, fmt.Errorf("%w: no downstream order placer", ErrStripeClientInitFailed)
	}

	var backends *stripe.Backends
	if cfg.APIURL != "" {
		backendCfg := &stripe.BackendConfig{
			URL:               stripe.String(cfg.APIURL),
			MaxNetworkRetries: stripe.Int64(0),
		}
		backends = &stripe.Backends{
			API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
			Uploads: stripe.GetBackend(stripe.UploadsBackend),
		}
	}

	sc := client.New(cfg.SecretKey, backends)
	if sc == nil {
		log.Error("STRIPE", "Failed to initialize Stripe client")
		return nil, ErrStripeClientInitFailed
	}

	currency := cfg.Currency
	if currency == "" {
		currency = "kes"
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripePlacer{client: sc, currency: currency, next: next, log: log}, nil
}

func (s *StripePlacer) PlaceOrder(ctx context.Context, order *checkout.Order) (string, error) {
	if order.Total < 0 {
		s.log.Error("STRIPE", fmt.Sprintf("Invalid amount for order %s: %.2f", order.ID, order.Total))
		return "", fmt.Errorf("invalid payment amount: %.2f", order.Total)
	}
	amount := int64(math.Round(order.Total * 100))
	if amount == 0 {
		// free tickets: nothing to charge
		s.log.Info("STRIPE", fmt.Sprintf("Order %s is free, skipping payment intent", order.ID))
		return s.next.PlaceOrder(ctx, order)
	}

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String(s.currency),
		Description: stripe.String(fmt.Sprintf("Storefront order %s", order.ID)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", order.ID)
	params.AddMetadata("phone", order.Phone)

	pi, err := s.client.PaymentIntents.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create payment intent for order %s: %v", order.ID, err))
		return "", fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}
	s.log.Info("STRIPE", fmt.Sprintf("Payment intent %s created for order %s (%s %.2f)", pi.ID, order.ID, s.currency, order.Total))

	reference, err := s.next.PlaceOrder(ctx, order)
	if err != nil {
		cancelParams := &stripe.PaymentIntentCancelParams{}
		cancelParams.Context = ctx
		if _, cerr := s.client.PaymentIntents.Cancel(pi.ID, cancelParams); cerr != nil {
			s.log.Warn("STRIPE", fmt.Sprintf("Failed to cancel payment intent %s: %v", pi.ID, cerr))
		}
		return "", err
	}
	return reference, nil
}
