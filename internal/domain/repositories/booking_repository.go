package repositories

import (
	"context"

	"github.com/zatekoja/labbook/internal/domain/entities"
)

// BookingRepository defines the backend booking operations
type BookingRepository interface {
	// Create submits a booking request and returns the created booking
	Create(ctx context.Context, req *entities.BookingRequest) (*entities.Booking, error)

	// ConfirmPayment records the collector's confirmation against a booking
	ConfirmPayment(ctx context.Context, bookingID string, confirmation entities.PaymentConfirmation) (*entities.Booking, error)
}
