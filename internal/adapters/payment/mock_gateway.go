package payment

import (
	"context"

	"github.com/google/uuid"

	"github.com/zatekoja/labbook/internal/domain/providers"
	apperrors "github.com/zatekoja/labbook/pkg/errors"
)

// MockGateway approves or declines every payment without contacting a collector
type MockGateway struct {
	// FailReason, when set, makes Collect fail with that reason.
	FailReason apperrors.Reason
}

var _ providers.PaymentGateway = (*MockGateway)(nil)

// NewMockGateway creates an always-approving mock gateway
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// Collect approves the payment unless FailReason is set
func (m *MockGateway) Collect(ctx context.Context, req providers.PaymentRequest) (*providers.PaymentReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewPaymentError(apperrors.ReasonCancelled, "payment abandoned", err)
	}
	if m.FailReason != "" {
		return nil, apperrors.NewPaymentError(m.FailReason, "mock gateway declined the payment", nil)
	}
	return &providers.PaymentReceipt{
		Gateway:       "mock",
		TransactionID: "txn_" + uuid.NewString(),
		OrderID:       "order_" + req.BookingID,
	}, nil
}
