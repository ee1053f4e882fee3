package labapi

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"github.com/zatekoja/labbook/internal/domain/entities"
)

// stringEncoded decodes a nested object that the backend may send either as
// a JSON object or as a JSON-encoded string. A string that does not parse is
// kept in Raw.
type stringEncoded[T any] struct {
	Value T
	Raw   string
	Set   bool
}

func (s *stringEncoded[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '"' {
		if err := json.Unmarshal(trimmed, &s.Value); err != nil {
			return err
		}
		s.Set = true
		return nil
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(text), &s.Value); err != nil {
		s.Raw = text
		return nil
	}
	s.Set = true
	return nil
}

// flexNumber accepts a JSON number or a numeric string; anything else is absent.
type flexNumber struct {
	Value *float64
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			n.Value = &f
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return nil
	}
	n.Value = &f
	return nil
}

type wireLocation struct {
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	Lat         *float64  `json:"lat"`
	Lng         *float64  `json:"lng"`
	Coordinates []float64 `json:"coordinates"`
}

func (l *wireLocation) coordinate() *entities.Coordinate {
	if l == nil {
		return nil
	}
	var lat, lng *float64
	switch {
	case l.Latitude != nil && l.Longitude != nil:
		lat, lng = l.Latitude, l.Longitude
	case l.Lat != nil && l.Lng != nil:
		lat, lng = l.Lat, l.Lng
	case len(l.Coordinates) == 2:
		// GeoJSON order is [lng, lat].
		lng, lat = &l.Coordinates[0], &l.Coordinates[1]
	default:
		return nil
	}
	if *lat == 0 && *lng == 0 {
		return nil
	}
	return &entities.Coordinate{Latitude: *lat, Longitude: *lng}
}

type wireAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Zip     string `json:"zip"`
	Pincode string `json:"pincode"`
}

type wireContact struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type wireHours struct {
	Open     string `json:"open"`
	Close    string `json:"close"`
	IsClosed bool   `json:"isClosed"`
	Closed   bool   `json:"closed"`
}

type wireTest struct {
	ID       string     `json:"id"`
	MongoID  string     `json:"_id"`
	Name     string     `json:"name"`
	Price    flexNumber `json:"price"`
	Category string     `json:"category"`
}

type wirePackage struct {
	ID        string            `json:"id"`
	MongoID   string            `json:"_id"`
	Name      string            `json:"name"`
	Price     flexNumber        `json:"price"`
	TestCount int               `json:"testCount"`
	Tests     []json.RawMessage `json:"tests"`
}

type wireLab struct {
	ID                string                              `json:"id"`
	MongoID           string                              `json:"_id"`
	Name              string                              `json:"name"`
	Address           stringEncoded[wireAddress]          `json:"address"`
	Contact           stringEncoded[wireContact]          `json:"contact"`
	OperatingHours    stringEncoded[map[string]wireHours] `json:"operatingHours"`
	Location          *wireLocation                       `json:"location"`
	AvailableTests    []wireTest                          `json:"availableTests"`
	Tests             []wireTest                          `json:"tests"`
	AvailablePackages []wirePackage                       `json:"availablePackages"`
	Packages          []wirePackage                       `json:"packages"`
	IsActive          *bool                               `json:"isActive"`
}

type wireBooking struct {
	ID              string     `json:"id"`
	MongoID         string     `json:"_id"`
	LabID           string     `json:"labId"`
	Status          string     `json:"status"`
	PaymentStatus   string     `json:"paymentStatus"`
	PaymentMethod   string     `json:"paymentMethod"`
	TotalAmount     flexNumber `json:"totalAmount"`
	AppointmentDate string     `json:"appointmentDate"`
	AppointmentTime string     `json:"appointmentTime"`
	CreatedAt       string     `json:"createdAt"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (w *wireLab) toEntity(phoneRegion string) *entities.Lab {
	lab := &entities.Lab{
		ID:       firstNonEmpty(w.ID, w.MongoID),
		Name:     strings.TrimSpace(w.Name),
		Location: w.Location.coordinate(),
		IsActive: w.IsActive == nil || *w.IsActive,
	}

	if w.Address.Set {
		a := w.Address.Value
		lab.Address = entities.Address{
			Street:  a.Street,
			City:    a.City,
			State:   a.State,
			ZipCode: firstNonEmpty(a.ZipCode, a.Zip, a.Pincode),
		}
	} else if w.Address.Raw != "" {
		lab.Address = entities.Address{Street: w.Address.Raw}
	}

	if w.Contact.Set {
		lab.Contact = entities.Contact{
			Phone: normalizePhone(w.Contact.Value.Phone, phoneRegion),
			Email: strings.TrimSpace(w.Contact.Value.Email),
		}
	}

	if w.OperatingHours.Set && len(w.OperatingHours.Value) > 0 {
		lab.OperatingHours = make(map[string]entities.OpeningHours, len(w.OperatingHours.Value))
		for day, h := range w.OperatingHours.Value {
			lab.OperatingHours[strings.ToLower(day)] = entities.OpeningHours{
				Open:   h.Open,
				Close:  h.Close,
				Closed: h.IsClosed || h.Closed,
			}
		}
	}

	tests := w.AvailableTests
	if len(tests) == 0 {
		tests = w.Tests
	}
	for _, t := range tests {
		lab.Tests = append(lab.Tests, entities.TestRef{
			ID:       firstNonEmpty(t.ID, t.MongoID),
			Name:     t.Name,
			Price:    t.Price.Value,
			Category: t.Category,
		})
	}

	packages := w.AvailablePackages
	if len(packages) == 0 {
		packages = w.Packages
	}
	for _, p := range packages {
		count := p.TestCount
		if count == 0 {
			count = len(p.Tests)
		}
		lab.Packages = append(lab.Packages, entities.PackageRef{
			ID:        firstNonEmpty(p.ID, p.MongoID),
			Name:      p.Name,
			Price:     p.Price.Value,
			TestCount: count,
		})
	}

	return lab
}

func (w *wireBooking) toEntity() *entities.Booking {
	b := &entities.Booking{
		ID:              firstNonEmpty(w.ID, w.MongoID),
		LabID:           w.LabID,
		Status:          entities.BookingStatus(strings.ToLower(w.Status)),
		PaymentStatus:   entities.PaymentStatus(strings.ToLower(w.PaymentStatus)),
		PaymentMethod:   entities.PaymentMethod(w.PaymentMethod),
		AppointmentDate: w.AppointmentDate,
		AppointmentTime: w.AppointmentTime,
	}
	if created, err := time.Parse(time.RFC3339, w.CreatedAt); err == nil {
		b.CreatedAt = created
	}
	if b.Status == "" {
		b.Status = entities.BookingStatusPending
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = entities.PaymentStatusUnpaid
	}
	if w.TotalAmount.Value != nil {
		b.TotalAmount = *w.TotalAmount.Value
	}
	return b
}

// normalizePhone formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func normalizePhone(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// unwrapEnvelope strips up to two levels of {"data": ...} style envelopes around a payload.
func unwrapEnvelope(raw json.RawMessage, keys ...string) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	for depth := 0; depth < 2; depth++ {
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return trimmed
		}
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return trimmed
		}
		inner, ok := envelopeValue(envelope, keys)
		if !ok {
			return trimmed
		}
		trimmed = inner
	}
	return trimmed
}

func envelopeValue(envelope map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, key := range keys {
		inner := bytes.TrimSpace(envelope[key])
		if len(inner) > 0 && !bytes.Equal(inner, []byte("null")) {
			return inner, true
		}
	}
	return nil, false
}
