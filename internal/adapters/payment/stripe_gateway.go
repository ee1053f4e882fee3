package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/zatekoja/labbook/internal/domain/providers"
	"github.com/zatekoja/labbook/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/labbook/pkg/errors"
)

const (
	stripeGatewayName   = "stripe"
	defaultPollInterval = 3 * time.Second
	defaultCollectLimit = 15 * time.Minute
)

// checkoutSessions is the part of the Stripe checkout session client the gateway uses.
type checkoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Expire(id string, params *stripe.CheckoutSessionExpireParams) (*stripe.CheckoutSession, error)
}

// CheckoutOpener hands the hosted checkout URL to whatever shows it to the patient.
type CheckoutOpener func(ctx context.Context, bookingID, checkoutURL string) error

// StripeConfig configures the Stripe gateway
type StripeConfig struct {
	SecretKey    string
	Currency     string
	SuccessURL   string
	CancelURL    string
	PollInterval time.Duration
	Timeout      time.Duration
}

// StripeGateway collects pay-now bookings through Stripe Checkout
type StripeGateway struct {
	sessions     checkoutSessions
	opener       CheckoutOpener
	currency     string
	successURL   string
	cancelURL    string
	pollInterval time.Duration
	timeout      time.Duration
}

var _ providers.PaymentGateway = (*StripeGateway)(nil)

// NewStripeGateway creates a gateway using the Stripe API
func NewStripeGateway(cfg StripeConfig, opener CheckoutOpener) *StripeGateway {
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)
	return newStripeGateway(sc.CheckoutSessions, cfg, opener)
}

func newStripeGateway(sessions checkoutSessions, cfg StripeConfig, opener CheckoutOpener) *StripeGateway {
	g := &StripeGateway{
		sessions:     sessions,
		opener:       opener,
		currency:     strings.ToLower(strings.TrimSpace(cfg.Currency)),
		successURL:   cfg.SuccessURL,
		cancelURL:    cfg.CancelURL,
		pollInterval: cfg.PollInterval,
		timeout:      cfg.Timeout,
	}
	if g.currency == "" {
		g.currency = string(stripe.CurrencyINR)
	}
	if g.pollInterval <= 0 {
		g.pollInterval = defaultPollInterval
	}
	if g.timeout <= 0 {
		g.timeout = defaultCollectLimit
	}
	return g
}

// Collect opens a checkout session for the booking and waits until the
// patient pays, cancels, or the collection window closes.
func (g *StripeGateway) Collect(ctx context.Context, req providers.PaymentRequest) (*providers.PaymentReceipt, error) {
	ctx, span := observability.StartSpan(ctx, "payment.stripe.collect")
	defer span.End()

	receipt, err := g.collect(ctx, req)
	observability.RecordError(span, err)
	return receipt, err
}

func (g *StripeGateway) collect(ctx context.Context, req providers.PaymentRequest) (*providers.PaymentReceipt, error) {
	if req.Amount <= 0 {
		return nil, apperrors.NewPaymentError(apperrors.ReasonGatewayFailure, "payment amount must be positive", nil)
	}
	currency := g.currency
	if req.Currency != "" {
		currency = strings.ToLower(req.Currency)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
		ClientReferenceID: stripe.String(req.BookingID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(firstNonEmpty(req.Description, "Lab booking "+req.BookingID)),
					},
					UnitAmount: stripe.Int64(minorUnits(req.Amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("booking_id", req.BookingID)

	session, err := g.sessions.New(params)
	if err != nil {
		return nil, apperrors.NewPaymentError(apperrors.ReasonGatewayFailure, "failed to create checkout session", err)
	}

	logger := observability.LoggerFromContext(ctx)
	logger.Info().Str("booking_id", req.BookingID).Str("session_id", session.ID).Msg("Checkout session created")

	if g.opener != nil {
		if err := g.opener(ctx, req.BookingID, session.URL); err != nil {
			g.expire(session.ID)
			return nil, apperrors.NewPaymentError(apperrors.ReasonGatewayFailure, "failed to open checkout", err)
		}
	}

	return g.await(ctx, session.ID)
}

func (g *StripeGateway) await(ctx context.Context, sessionID string) (*providers.PaymentReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		params.AddExpand("payment_intent")

		session, err := g.sessions.Get(sessionID, params)
		if err != nil && ctx.Err() == nil {
			return nil, apperrors.NewPaymentError(apperrors.ReasonGatewayFailure, "failed to read checkout session", err)
		}
		if err == nil {
			switch {
			case session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
				receipt := &providers.PaymentReceipt{
					Gateway:       stripeGatewayName,
					TransactionID: session.ID,
					OrderID:       session.ID,
				}
				if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
					receipt.TransactionID = session.PaymentIntent.ID
				}
				return receipt, nil
			case session.Status == stripe.CheckoutSessionStatusExpired:
				return nil, apperrors.NewPaymentError(apperrors.ReasonCancelled, "checkout was cancelled or expired", nil)
			}
		}

		select {
		case <-ctx.Done():
			g.expire(sessionID)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, apperrors.NewPaymentError(apperrors.ReasonCancelled, "checkout was not completed in time", ctx.Err())
			}
			return nil, apperrors.NewPaymentError(apperrors.ReasonCancelled, "checkout was abandoned", ctx.Err())
		case <-ticker.C:
		}
	}
}

// expire closes an open session so it can no longer be paid.
func (g *StripeGateway) expire(sessionID string) {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = context.Background()
	if _, err := g.sessions.Expire(sessionID, params); err != nil {
		observability.LoggerFromContext(context.Background()).Warn().Err(err).Str("session_id", sessionID).Msg("Failed to expire checkout session")
	}
}

// minorUnits converts a decimal amount to the currency's smallest unit.
func minorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// String describes the gateway for logs.
func (g *StripeGateway) String() string {
	return fmt.Sprintf("stripe(%s)", g.currency)
}
