package entities

import "time"

// PaymentMethod represents how the patient settles a booking
type PaymentMethod string

const (
	PaymentMethodPayNow   PaymentMethod = "pay_now"
	PaymentMethodPayLater PaymentMethod = "pay_later"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodPayNow || m == PaymentMethodPayLater
}

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// PaymentStatus represents the settlement state of a booking
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// SelectedTest is a test line of a booking request
type SelectedTest struct {
	TestID string  `json:"testId" validate:"required"`
	Name   string  `json:"name"`
	Price  float64 `json:"price" validate:"gte=0"`
}

// SelectedPackage is a package line of a booking request
type SelectedPackage struct {
	PackageID string  `json:"packageId" validate:"required"`
	Name      string  `json:"name"`
	Price     float64 `json:"price" validate:"gte=0"`
}

// BookingRequest is the payload sent once per submission attempt
type BookingRequest struct {
	LabID            string            `json:"labId" validate:"required"`
	SelectedTests    []SelectedTest    `json:"selectedTests" validate:"dive"`
	SelectedPackages []SelectedPackage `json:"selectedPackages" validate:"dive"`
	AppointmentDate  string            `json:"appointmentDate" validate:"required,datetime=2006-01-02"`
	AppointmentTime  string            `json:"appointmentTime" validate:"required,datetime=15:04"`
	PaymentMethod    PaymentMethod     `json:"paymentMethod" validate:"required,oneof=pay_now pay_later"`
	Notes            string            `json:"notes"`
	UserLocation     *Coordinate       `json:"userLocation,omitempty"`
	TotalAmount      float64           `json:"totalAmount" validate:"gte=0"`
}

// Booking is the backend's record of a submitted booking
type Booking struct {
	ID              string        `json:"id"`
	LabID           string        `json:"lab_id"`
	Status          BookingStatus `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	TotalAmount     float64       `json:"total_amount"`
	AppointmentDate string        `json:"appointment_date"`
	AppointmentTime string        `json:"appointment_time"`
	CreatedAt       time.Time     `json:"created_at"`
}

// PaymentConfirmation carries the collector's transaction identifiers to the backend
type PaymentConfirmation struct {
	Gateway       string `json:"gateway"`
	TransactionID string `json:"transactionId"`
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
}

// BookingOutcome describes where a submission ended up
type BookingOutcome string

const (
	// BookingOutcomeConfirmed means the booking is final (paid or pay later).
	BookingOutcomeConfirmed BookingOutcome = "confirmed"
	// BookingOutcomePaymentPending means the booking exists but payment did not complete.
	BookingOutcomePaymentPending BookingOutcome = "payment_pending"
)

// BookingResult is what a submission returns to the caller
type BookingResult struct {
	Booking *Booking        `json:"booking"`
	Request *BookingRequest `json:"request"`
	Outcome BookingOutcome  `json:"outcome"`
}
