package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/zatekoja/labbook/internal/domain/providers"
	apperrors "github.com/zatekoja/labbook/pkg/errors"
)

type fakeSessions struct {
	mu      sync.Mutex
	created *stripe.CheckoutSessionParams
	states  []*stripe.CheckoutSession
	gets    int
	expired []string
	newErr  error
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.newErr != nil {
		return nil, f.newErr
	}
	f.created = params
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func (f *fakeSessions) Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.gets
	if idx >= len(f.states) {
		idx = len(f.states) - 1
	}
	f.gets++
	return f.states[idx], nil
}

func (f *fakeSessions) Expire(id string, params *stripe.CheckoutSessionExpireParams) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, id)
	return &stripe.CheckoutSession{ID: id, Status: stripe.CheckoutSessionStatusExpired}, nil
}

func openSession() *stripe.CheckoutSession {
	return &stripe.CheckoutSession{ID: "cs_test_1", Status: stripe.CheckoutSessionStatusOpen, PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid}
}

func testConfig() StripeConfig {
	return StripeConfig{
		Currency:     "INR",
		SuccessURL:   "https://labbook.test/success",
		CancelURL:    "https://labbook.test/cancel",
		PollInterval: 5 * time.Millisecond,
		Timeout:      time.Second,
	}
}

func TestStripeGateway_CollectPaid(t *testing.T) {
	sessions := &fakeSessions{states: []*stripe.CheckoutSession{
		openSession(),
		{
			ID:            "cs_test_1",
			Status:        stripe.CheckoutSessionStatusComplete,
			PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
			PaymentIntent: &stripe.PaymentIntent{ID: "pi_123"},
		},
	}}

	var openedURL string
	gateway := newStripeGateway(sessions, testConfig(), func(ctx context.Context, bookingID, url string) error {
		assert.Equal(t, "bk-1", bookingID)
		openedURL = url
		return nil
	})

	receipt, err := gateway.Collect(context.Background(), providers.PaymentRequest{BookingID: "bk-1", Amount: 1700.5})
	require.NoError(t, err)
	assert.Equal(t, &providers.PaymentReceipt{Gateway: "stripe", TransactionID: "pi_123", OrderID: "cs_test_1"}, receipt)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", openedURL)

	require.NotNil(t, sessions.created)
	assert.Equal(t, "bk-1", *sessions.created.ClientReferenceID)
	assert.Equal(t, "inr", *sessions.created.LineItems[0].PriceData.Currency)
	assert.Equal(t, int64(170050), *sessions.created.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "bk-1", sessions.created.Metadata["booking_id"])
}

func TestStripeGateway_CollectExpired(t *testing.T) {
	sessions := &fakeSessions{states: []*stripe.CheckoutSession{
		{ID: "cs_test_1", Status: stripe.CheckoutSessionStatusExpired},
	}}
	gateway := newStripeGateway(sessions, testConfig(), nil)

	_, err := gateway.Collect(context.Background(), providers.PaymentRequest{BookingID: "bk-1", Amount: 500})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypePayment))
	assert.Equal(t, apperrors.ReasonCancelled, apperrors.ReasonOf(err))
}

func TestStripeGateway_CollectTimesOut(t *testing.T) {
	sessions := &fakeSessions{states: []*stripe.CheckoutSession{openSession()}}
	cfg := testConfig()
	cfg.Timeout = 30 * time.Millisecond
	gateway := newStripeGateway(sessions, cfg, nil)

	_, err := gateway.Collect(context.Background(), providers.PaymentRequest{BookingID: "bk-1", Amount: 500})
	assert.Equal(t, apperrors.ReasonCancelled, apperrors.ReasonOf(err))
	assert.Equal(t, []string{"cs_test_1"}, sessions.expired)
}

func TestStripeGateway_CreateFails(t *testing.T) {
	sessions := &fakeSessions{newErr: errors.New("invalid api key")}
	gateway := newStripeGateway(sessions, testConfig(), nil)

	_, err := gateway.Collect(context.Background(), providers.PaymentRequest{BookingID: "bk-1", Amount: 500})
	assert.Equal(t, apperrors.ReasonGatewayFailure, apperrors.ReasonOf(err))
	assert.ErrorContains(t, err, "invalid api key")
}

func TestStripeGateway_OpenerFails(t *testing.T) {
	sessions := &fakeSessions{states: []*stripe.CheckoutSession{openSession()}}
	gateway := newStripeGateway(sessions, testConfig(), func(ctx context.Context, bookingID, url string) error {
		return errors.New("no browser")
	})

	_, err := gateway.Collect(context.Background(), providers.PaymentRequest{BookingID: "bk-1", Amount: 500})
	assert.Equal(t, apperrors.ReasonGatewayFailure, apperrors.ReasonOf(err))
	assert.Equal(t, []string{"cs_test_1"}, sessions.expired)
}

func TestStripeGateway_RejectsNonPositiveAmount(t *testing.T) {
	gateway := newStripeGateway(&fakeSessions{}, testConfig(), nil)

	_, err := gateway.Collect(context.Background(), providers.PaymentRequest{BookingID: "bk-1"})
	assert.Equal(t, apperrors.ReasonGatewayFailure, apperrors.ReasonOf(err))
}

func TestMockGateway(t *testing.T) {
	receipt, err := NewMockGateway().Collect(context.Background(), providers.PaymentRequest{BookingID: "bk-1", Amount: 10})
	require.NoError(t, err)
	assert.Equal(t, "mock", receipt.Gateway)
	assert.Equal(t, "order_bk-1", receipt.OrderID)

	_, err = (&MockGateway{FailReason: apperrors.ReasonCancelled}).Collect(context.Background(), providers.PaymentRequest{})
	assert.Equal(t, apperrors.ReasonCancelled, apperrors.ReasonOf(err))
}
