package labapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/labbook/internal/domain/entities"
	apperrors "github.com/zatekoja/labbook/pkg/errors"
)

func TestHTTPClient_List_DecodesStringEncodedFields(t *testing.T) {
	var gotAuth, gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/labs", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{
				"_id":"lab-1",
				"name":"City Diagnostics",
				"address":"{\"street\":\"12 MG Road\",\"city\":\"Bengaluru\",\"state\":\"KA\",\"zipCode\":\"560001\"}",
				"contact":"{\"phone\":\"098450 12345\",\"email\":\"front@city.example\"}",
				"operatingHours":{"Monday":{"open":"08:00","close":"20:00"},"sunday":{"isClosed":true}},
				"location":{"type":"Point","coordinates":[77.60,12.98]},
				"availableTests":[{"_id":"t1","name":"CBC","price":"500","category":"Blood"}],
				"availablePackages":[{"_id":"p1","name":"Full Body","price":1200,"tests":["t1","t2"]}]
			},
			{
				"id":"lab-2",
				"name":"Corner Lab",
				"address":"Plot 4, Industrial Area",
				"isActive":false
			}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/api", StaticToken("secret"))
	labs, err := client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, labs, 2)

	first := labs[0]
	assert.Equal(t, "lab-1", first.ID)
	assert.Equal(t, "Bengaluru", first.Address.City)
	assert.Equal(t, "560001", first.Address.ZipCode)
	assert.Equal(t, "+919845012345", first.Contact.Phone)
	assert.Equal(t, "front@city.example", first.Contact.Email)
	require.NotNil(t, first.Location)
	assert.InDelta(t, 12.98, first.Location.Latitude, 1e-9)
	assert.InDelta(t, 77.60, first.Location.Longitude, 1e-9)
	assert.Equal(t, "08:00", first.OperatingHours["monday"].Open)
	assert.True(t, first.OperatingHours["sunday"].Closed)
	require.Len(t, first.Tests, 1)
	require.NotNil(t, first.Tests[0].Price)
	assert.Equal(t, 500.0, *first.Tests[0].Price)
	require.Len(t, first.Packages, 1)
	assert.Equal(t, 2, first.Packages[0].TestCount)
	assert.True(t, first.IsActive)
	assert.Nil(t, first.DistanceKm)

	second := labs[1]
	assert.Equal(t, "Plot 4, Industrial Area", second.Address.Street)
	assert.Nil(t, second.Location)
	assert.False(t, second.IsActive)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.NotEmpty(t, gotRequestID)
}

func TestHTTPClient_List_BareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"lab-1","name":"Solo"}]`))
	}))
	defer server.Close()

	labs, err := NewClient(server.URL, nil).List(context.Background())
	require.NoError(t, err)
	require.Len(t, labs, 1)
	assert.Equal(t, "Solo", labs[0].Name)
}

func TestHTTPClient_GetByID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/labs/lab-9", r.URL.Path)
		_, _ = w.Write([]byte(`{"lab":{"name":"Nine","tests":[{"id":"t1","name":"Lipid"}]}}`))
	}))
	defer server.Close()

	lab, err := NewClient(server.URL, nil).GetByID(context.Background(), "lab-9")
	require.NoError(t, err)
	assert.Equal(t, "lab-9", lab.ID)
	require.Len(t, lab.Tests, 1)
	assert.Nil(t, lab.Tests[0].Price)
}

func TestHTTPClient_Create(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bookings", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "lab-1", body["labId"])
		assert.Equal(t, "pay_later", body["paymentMethod"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"booking":{"_id":"bk-1","labId":"lab-1","totalAmount":"1700","createdAt":"2025-03-01T10:00:00Z"}}}`))
	}))
	defer server.Close()

	booking, err := NewClient(server.URL, nil).Create(context.Background(), &entities.BookingRequest{
		LabID:           "lab-1",
		AppointmentDate: "2025-03-10",
		AppointmentTime: "10:00",
		PaymentMethod:   entities.PaymentMethodPayLater,
	})
	require.NoError(t, err)
	assert.Equal(t, "bk-1", booking.ID)
	assert.Equal(t, 1700.0, booking.TotalAmount)
	assert.Equal(t, entities.BookingStatusPending, booking.Status)
	assert.Equal(t, entities.PaymentStatusUnpaid, booking.PaymentStatus)
	assert.Equal(t, 2025, booking.CreatedAt.Year())
}

func TestHTTPClient_ConfirmPayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bookings/bk-1/payment", r.URL.Path)
		var body entities.PaymentConfirmation
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cs_123", body.TransactionID)
		_, _ = w.Write([]byte(`{"booking":{"id":"bk-1","status":"Confirmed","paymentStatus":"paid"}}`))
	}))
	defer server.Close()

	booking, err := NewClient(server.URL, nil).ConfirmPayment(context.Background(), "bk-1", entities.PaymentConfirmation{
		Gateway:       "stripe",
		TransactionID: "cs_123",
	})
	require.NoError(t, err)
	assert.Equal(t, entities.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, entities.PaymentStatusPaid, booking.PaymentStatus)
}

func TestHTTPClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType apperrors.ErrorType
		reason   apperrors.Reason
		message  string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"token expired"}`, apperrors.ErrorTypeUnauthorized, "", "token expired"},
		{"not found", http.StatusNotFound, ``, apperrors.ErrorTypeNotFound, "", "status 404"},
		{"validation", http.StatusUnprocessableEntity, `{"error":"slot taken"}`, apperrors.ErrorTypeValidation, apperrors.ReasonInvalid, "slot taken"},
		{"server error", http.StatusBadGateway, `oops`, apperrors.ErrorTypeNetwork, apperrors.ReasonServerError, "status 502"},
		{"gateway timeout", http.StatusGatewayTimeout, ``, apperrors.ErrorTypeNetwork, apperrors.ReasonTimeout, "status 504"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, nil).List(context.Background())
			require.Error(t, err)
			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantType, appErr.Type)
			assert.Equal(t, tt.reason, appErr.Reason)
			assert.Contains(t, appErr.Message, tt.message)
		})
	}
}

func TestHTTPClient_ParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil).List(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ReasonParseError, apperrors.ReasonOf(err))
	assert.False(t, apperrors.Retryable(err))
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, nil, WithTimeout(50*time.Millisecond))
	_, err := client.List(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNetwork))
	assert.Equal(t, apperrors.ReasonTimeout, apperrors.ReasonOf(err))
	assert.True(t, apperrors.Retryable(err))
}

func TestHTTPClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url, nil).List(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ReasonUnreachable, apperrors.ReasonOf(err))
}

func TestHTTPClient_MissingIDs(t *testing.T) {
	client := NewClient("http://unused", nil)

	_, err := client.GetByID(context.Background(), " ")
	assert.Equal(t, apperrors.ReasonMissingField, apperrors.ReasonOf(err))

	_, err = client.ConfirmPayment(context.Background(), "", entities.PaymentConfirmation{})
	assert.Equal(t, apperrors.ReasonMissingField, apperrors.ReasonOf(err))
}

func TestFileTokenSource(t *testing.T) {
	dir := t.TempDir()

	raw := filepath.Join(dir, "token")
	require.NoError(t, os.WriteFile(raw, []byte("abc123\n"), 0o600))
	token, err := FileTokenSource{Path: raw}.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	structured := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(structured, []byte(`{"accessToken":"xyz"}`), 0o600))
	token, err = FileTokenSource{Path: structured}.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "xyz", token)

	token, err = FileTokenSource{Path: filepath.Join(dir, "missing")}.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+919845012345", normalizePhone("098450 12345", "IN"))
	assert.Equal(t, "not a phone", normalizePhone(" not a phone ", "IN"))
	assert.Equal(t, "", normalizePhone("", "IN"))
}
