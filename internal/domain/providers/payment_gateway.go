package providers

import (
	"context"
)

// PaymentRequest describes the amount the collector must authorise for a booking
type PaymentRequest struct {
	BookingID   string
	Amount      float64
	Currency    string
	Description string
}

// PaymentReceipt holds the transaction identifiers reported by the collector
type PaymentReceipt struct {
	Gateway       string
	TransactionID string
	OrderID       string
}

// PaymentGateway hands a booking off to an external payment collector.
// Collect blocks until the collector reports success or failure; failures are
// PAYMENT AppErrors with reason gateway_failure or cancelled.
type PaymentGateway interface {
	Collect(ctx context.Context, req PaymentRequest) (*PaymentReceipt, error)
}
