package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/stemsi/examhall-backend/internal/config"
	"github.com/stemsi/examhall-backend/internal/model"
)

var ErrCheckoutFailed = errors.New("checkout session could not be created")

// CheckoutSessionCreator is the subset of the Stripe client used here.
type CheckoutSessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewStripeClient returns the checkout sessions client for the configured key.
func NewStripeClient(cfg config.StripeConfig) CheckoutSessionCreator {
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)
	return sc.CheckoutSessions
}

// CheckoutService creates monthly subscription checkouts.
type CheckoutService struct {
	sessions CheckoutSessionCreator
	cfg      config.StripeConfig
	log      zerolog.Logger
}

func NewCheckoutService(sessions CheckoutSessionCreator, cfg config.StripeConfig, log zerolog.Logger) *CheckoutService {
	return &CheckoutService{
		sessions: sessions,
		cfg:      cfg,
		log:      log.With().Str("component", "checkout_service").Logger(),
	}
}

// CreateSession opens a subscription checkout for items and returns its id.
// Prices are in major units and converted to cents.
func (s *CheckoutService) CreateSession(ctx context.Context, items []model.CheckoutItem) (string, error) {
	params := &stripe.CheckoutSessionParams{
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionAuto)),
		Mode:                     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:               stripe.String(s.cfg.BaseURL + "/success"),
		CancelURL:                stripe.String(s.cfg.BaseURL),
	}
	params.Context = ctx

	for _, item := range items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(s.cfg.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Title),
				},
				UnitAmount: stripe.Int64(int64(math.Round(item.Price * 100))),
				Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
					Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
				},
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	sess, err := s.sessions.New(params)
	if err != nil {
		s.log.Error().Err(err).Int("items", len(items)).Msg("Stripe checkout failed")
		return "", fmt.Errorf("%w: %v", ErrCheckoutFailed, err)
	}
	return sess.ID, nil
}
