package services_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/domain/providers"
)

type mockLabRepository struct {
	mock.Mock
}

func (m *mockLabRepository) List(ctx context.Context) ([]*entities.Lab, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Lab), args.Error(1)
}

func (m *mockLabRepository) GetByID(ctx context.Context, id string) (*entities.Lab, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Lab), args.Error(1)
}

type mockBookingRepository struct {
	mock.Mock
}

func (m *mockBookingRepository) Create(ctx context.Context, req *entities.BookingRequest) (*entities.Booking, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Booking), args.Error(1)
}

func (m *mockBookingRepository) ConfirmPayment(ctx context.Context, bookingID string, confirmation entities.PaymentConfirmation) (*entities.Booking, error) {
	args := m.Called(ctx, bookingID, confirmation)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Booking), args.Error(1)
}

type mockPaymentGateway struct {
	mock.Mock
}

func (m *mockPaymentGateway) Collect(ctx context.Context, req providers.PaymentRequest) (*providers.PaymentReceipt, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.PaymentReceipt), args.Error(1)
}

type mockLocationProvider struct {
	mock.Mock
}

func (m *mockLocationProvider) CurrentPosition(ctx context.Context) (*entities.Coordinate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Coordinate), args.Error(1)
}

type mockPlacesProvider struct {
	mock.Mock
}

func (m *mockPlacesProvider) NearbySearch(ctx context.Context, center entities.Coordinate, radiusMeters int, keyword string) ([]*providers.Place, error) {
	args := m.Called(ctx, center, radiusMeters, keyword)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*providers.Place), args.Error(1)
}

type mockSuggestionProvider struct {
	mock.Mock
}

func (m *mockSuggestionProvider) Suggest(ctx context.Context, query string, limit int) ([]entities.SearchSuggestion, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.SearchSuggestion), args.Error(1)
}

type memoryHistoryStore struct {
	mu      sync.Mutex
	entries []entities.SearchHistoryEntry
	saveErr error
}

func (s *memoryHistoryStore) Load(ctx context.Context) ([]entities.SearchHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.SearchHistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *memoryHistoryStore) Save(ctx context.Context, entries []entities.SearchHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.entries = append([]entities.SearchHistoryEntry(nil), entries...)
	return nil
}

func price(v float64) *float64 {
	return &v
}

func labA() *entities.Lab {
	return &entities.Lab{
		ID:       "lab-a",
		Name:     "Lab A",
		Location: &entities.Coordinate{Latitude: 12.98, Longitude: 77.60},
		Tests: []entities.TestRef{
			{ID: "t1", Name: "CBC", Price: price(500)},
			{ID: "t2", Name: "Lipid Profile", Price: price(850.5)},
			{ID: "t3", Name: "Vitamin D"},
		},
		Packages: []entities.PackageRef{
			{ID: "p1", Name: "Full Body", Price: price(1200), TestCount: 60},
		},
		IsActive: true,
	}
}

func labB() *entities.Lab {
	return &entities.Lab{
		ID:       "lab-b",
		Name:     "Lab B",
		Tests:    []entities.TestRef{{ID: "b1", Name: "HbA1c", Price: price(400)}},
		IsActive: true,
	}
}
