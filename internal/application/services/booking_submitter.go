package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/domain/providers"
	"github.com/zatekoja/labbook/internal/domain/repositories"
	"github.com/zatekoja/labbook/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/labbook/pkg/errors"
)

// BookingSubmitter turns a completed wizard into a backend booking and runs
// the pay-now leg when chosen.
type BookingSubmitter struct {
	bookings repositories.BookingRepository
	gateway  providers.PaymentGateway
	activity *ActivityTracker
	validate *validator.Validate
	currency string

	mu sync.Mutex
	// collected holds payments the gateway approved but the backend has not
	// yet acknowledged, keyed by booking id.
	collected map[string]entities.PaymentConfirmation
}

// NewBookingSubmitter creates a new booking submitter
func NewBookingSubmitter(bookings repositories.BookingRepository, gateway providers.PaymentGateway, activity *ActivityTracker, currency string) *BookingSubmitter {
	return &BookingSubmitter{
		bookings:  bookings,
		gateway:   gateway,
		activity:  activity,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		currency:  currency,
		collected: make(map[string]entities.PaymentConfirmation),
	}
}

// Submit validates the wizard, creates the booking and completes it. On a
// payment failure the pending booking is returned with the error and kept on
// the wizard; a later Submit is refused until RetryPayment settles it or the
// wizard is reset.
func (s *BookingSubmitter) Submit(ctx context.Context, wizard *BookingWizard) (*entities.BookingResult, error) {
	if !wizard.beginSubmit() {
		return nil, apperrors.NewValidationError("a submission is already in progress")
	}
	defer wizard.endSubmit()

	done := s.activity.Begin(ActivitySubmitting)
	defer done()

	ctx, span := observability.StartSpan(ctx, "booking.submit")
	defer span.End()

	result, err := s.submit(ctx, wizard)
	observability.RecordError(span, err)
	return result, err
}

func (s *BookingSubmitter) submit(ctx context.Context, wizard *BookingWizard) (*entities.BookingResult, error) {
	if pending := wizard.PendingBooking(); pending != nil {
		return nil, &apperrors.AppError{
			Type:    apperrors.ErrorTypeValidation,
			Reason:  apperrors.ReasonPaymentPending,
			Message: fmt.Sprintf("booking %s is waiting for payment; retry the payment or start over", pending.ID),
		}
	}

	req, err := wizard.BuildRequest()
	if err != nil {
		return nil, err
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if req.PaymentMethod == entities.PaymentMethodPayNow && req.TotalAmount <= 0 {
		return nil, &apperrors.AppError{
			Type:    apperrors.ErrorTypeValidation,
			Reason:  apperrors.ReasonInvalid,
			Field:   FieldPaymentMethod,
			Message: "the selected items have no price to pay now; choose pay later",
		}
	}

	logger := observability.LoggerFromContext(ctx)
	booking, err := s.bookings.Create(ctx, req)
	if err != nil {
		logger.Error().Err(err).Str("lab_id", req.LabID).Msg("Booking submission failed")
		return nil, err
	}
	logger.Info().
		Str("booking_id", booking.ID).
		Str("lab_id", req.LabID).
		Str("payment_method", string(req.PaymentMethod)).
		Float64("total", req.TotalAmount).
		Msg("Booking created")

	result := &entities.BookingResult{Booking: booking, Request: req, Outcome: entities.BookingOutcomeConfirmed}
	if req.PaymentMethod == entities.PaymentMethodPayNow {
		paid, err := s.pay(ctx, booking, req.TotalAmount, wizard.labName())
		result.Booking = paid
		if err != nil {
			result.Outcome = entities.BookingOutcomePaymentPending
			wizard.holdPending(paid, req)
			return result, err
		}
	}

	wizard.Reset()
	return result, nil
}

// RetryPayment re-runs only the payment leg for the booking Submit left
// pending on the wizard. On success the wizard is reset.
func (s *BookingSubmitter) RetryPayment(ctx context.Context, wizard *BookingWizard) (*entities.BookingResult, error) {
	if !wizard.beginSubmit() {
		return nil, apperrors.NewValidationError("a submission is already in progress")
	}
	defer wizard.endSubmit()

	booking, req := wizard.pendingPayment()
	if booking == nil || strings.TrimSpace(booking.ID) == "" {
		return nil, apperrors.NewValidationError("no booking is waiting for payment")
	}

	done := s.activity.Begin(ActivitySubmitting)
	defer done()

	ctx, span := observability.StartSpan(ctx, "booking.retry_payment")
	defer span.End()

	requested := booking.TotalAmount
	if req != nil {
		requested = req.TotalAmount
	}
	result := &entities.BookingResult{Booking: booking, Request: req, Outcome: entities.BookingOutcomePaymentPending}

	paid, err := s.pay(ctx, booking, requested, wizard.labName())
	result.Booking = paid
	if err != nil {
		observability.RecordError(span, err)
		wizard.holdPending(paid, req)
		return result, err
	}
	result.Outcome = entities.BookingOutcomeConfirmed
	wizard.Reset()
	return result, nil
}

// pay collects the amount and reports it to the backend. A payment the
// gateway already approved is never collected twice.
func (s *BookingSubmitter) pay(ctx context.Context, booking *entities.Booking, requested float64, labName string) (*entities.Booking, error) {
	if booking.PaymentStatus == entities.PaymentStatusPaid {
		return booking, nil
	}

	amount := booking.TotalAmount
	if amount <= 0 {
		amount = requested
	}
	logger := observability.LoggerFromContext(ctx).With().Str("booking_id", booking.ID).Logger()

	confirmation, ok := s.pendingConfirmation(booking.ID)
	if !ok {
		if amount <= 0 {
			logger.Warn().Msg("Pay-now booking has nothing to collect")
			return booking, apperrors.NewPaymentError(apperrors.ReasonGatewayFailure, "the booking has no amount to collect", nil)
		}
		if s.gateway == nil {
			return booking, apperrors.NewPaymentError(apperrors.ReasonGatewayFailure, "no payment collector is configured", nil)
		}

		description := "Lab booking " + booking.ID
		if labName != "" {
			description = fmt.Sprintf("Lab booking at %s", labName)
		}
		receipt, err := s.gateway.Collect(ctx, providers.PaymentRequest{
			BookingID:   booking.ID,
			Amount:      amount,
			Currency:    s.currency,
			Description: description,
		})
		if err != nil {
			err = asPaymentError(err)
			logger.Warn().Err(err).Msg("Payment was not completed, booking stays pending")
			return booking, err
		}
		confirmation = entities.PaymentConfirmation{
			Gateway:       receipt.Gateway,
			TransactionID: receipt.TransactionID,
			OrderID:       receipt.OrderID,
			Status:        string(entities.PaymentStatusPaid),
		}
		s.rememberConfirmation(booking.ID, confirmation)
	}

	updated, err := s.bookings.ConfirmPayment(ctx, booking.ID, confirmation)
	if err != nil {
		logger.Error().Err(err).Str("transaction_id", confirmation.TransactionID).Msg("Payment collected but backend confirmation failed")
		return booking, apperrors.NewPaymentError(apperrors.ReasonGatewayFailure, "payment was received but could not be recorded; retry to finish", err)
	}
	s.forgetConfirmation(booking.ID)
	logger.Info().Str("transaction_id", confirmation.TransactionID).Msg("Booking paid")
	return updated, nil
}

func (s *BookingSubmitter) validateRequest(req *entities.BookingRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &apperrors.AppError{
			Type:    apperrors.ErrorTypeValidation,
			Reason:  apperrors.ReasonInvalid,
			Field:   fe.Field(),
			Message: fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag()),
			Err:     err,
		}
	}
	return apperrors.NewInternalError("failed to validate booking request", err)
}

func (s *BookingSubmitter) pendingConfirmation(bookingID string) (entities.PaymentConfirmation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collected[bookingID]
	return c, ok
}

func (s *BookingSubmitter) rememberConfirmation(bookingID string, c entities.PaymentConfirmation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collected[bookingID] = c
}

func (s *BookingSubmitter) forgetConfirmation(bookingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collected, bookingID)
}

func asPaymentError(err error) error {
	if apperrors.IsType(err, apperrors.ErrorTypePayment) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewPaymentError(apperrors.ReasonCancelled, "payment was abandoned", err)
	}
	return apperrors.NewPaymentError(apperrors.ReasonGatewayFailure, "payment collector failed", err)
}
