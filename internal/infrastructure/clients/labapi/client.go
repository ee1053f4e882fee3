package labapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/domain/repositories"
	"github.com/zatekoja/labbook/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/labbook/pkg/errors"
)

const (
	defaultTimeout     = 20 * time.Second
	defaultPhoneRegion = "IN"
	maxErrorBodyBytes  = 4096
)

// HTTPClient talks to the lab booking backend REST API.
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	tokens      TokenSource
	phoneRegion string
	metrics     *observability.Metrics
}

var (
	_ repositories.LabRepository     = (*HTTPClient)(nil)
	_ repositories.BookingRepository = (*HTTPClient)(nil)
)

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient overrides the underlying HTTP client (used for tests).
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *HTTPClient) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithPhoneRegion sets the default region used to normalise lab phone numbers.
func WithPhoneRegion(region string) Option {
	return func(c *HTTPClient) {
		if strings.TrimSpace(region) != "" {
			c.phoneRegion = strings.ToUpper(strings.TrimSpace(region))
		}
	}
}

// WithMetrics records request counts and durations.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *HTTPClient) {
		c.metrics = metrics
	}
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *HTTPClient {
	if tokens == nil {
		tokens = StaticToken("")
	}
	c := &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: defaultTimeout},
		tokens:      tokens,
		phoneRegion: defaultPhoneRegion,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List handles GET /labs
func (c *HTTPClient) List(ctx context.Context) ([]*entities.Lab, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/labs", "/labs", nil, &raw); err != nil {
		return nil, err
	}

	var wire []wireLab
	if err := json.Unmarshal(unwrapEnvelope(raw, "data", "labs"), &wire); err != nil {
		return nil, apperrors.NewNetworkError(apperrors.ReasonParseError, "failed to decode lab list", err)
	}

	labs := make([]*entities.Lab, 0, len(wire))
	for i := range wire {
		labs = append(labs, wire[i].toEntity(c.phoneRegion))
	}
	return labs, nil
}

// GetByID handles GET /labs/{id}
func (c *HTTPClient) GetByID(ctx context.Context, id string) (*entities.Lab, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.NewMissingFieldError("lab id")
	}

	var raw json.RawMessage
	path := "/labs/" + url.PathEscape(id)
	if err := c.doJSON(ctx, http.MethodGet, path, "/labs/{id}", nil, &raw); err != nil {
		return nil, err
	}

	var wire wireLab
	if err := json.Unmarshal(unwrapEnvelope(raw, "data", "lab"), &wire); err != nil {
		return nil, apperrors.NewNetworkError(apperrors.ReasonParseError, "failed to decode lab", err)
	}
	lab := wire.toEntity(c.phoneRegion)
	if lab.ID == "" {
		lab.ID = id
	}
	return lab, nil
}

// Create handles POST /bookings
func (c *HTTPClient) Create(ctx context.Context, req *entities.BookingRequest) (*entities.Booking, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/bookings", "/bookings", req, &raw); err != nil {
		return nil, err
	}
	return decodeBooking(raw)
}

// ConfirmPayment handles POST /bookings/{id}/payment
func (c *HTTPClient) ConfirmPayment(ctx context.Context, bookingID string, confirmation entities.PaymentConfirmation) (*entities.Booking, error) {
	if strings.TrimSpace(bookingID) == "" {
		return nil, apperrors.NewMissingFieldError("booking id")
	}

	var raw json.RawMessage
	path := "/bookings/" + url.PathEscape(bookingID) + "/payment"
	if err := c.doJSON(ctx, http.MethodPost, path, "/bookings/{id}/payment", confirmation, &raw); err != nil {
		return nil, err
	}
	return decodeBooking(raw)
}

func decodeBooking(raw json.RawMessage) (*entities.Booking, error) {
	var wire wireBooking
	if err := json.Unmarshal(unwrapEnvelope(raw, "data", "booking"), &wire); err != nil {
		return nil, apperrors.NewNetworkError(apperrors.ReasonParseError, "failed to decode booking", err)
	}
	booking := wire.toEntity()
	if booking.ID == "" {
		return nil, apperrors.NewNetworkError(apperrors.ReasonParseError, "booking response has no id", nil)
	}
	return booking, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path, route string, body interface{}, out interface{}) error {
	ctx, span := observability.StartSpan(ctx, "labapi "+method+" "+route,
		attribute.String("http.method", method),
		attribute.String("http.route", route),
	)
	defer span.End()

	err := c.send(ctx, method, path, route, body, out)
	observability.RecordError(span, err)
	return err
}

func (c *HTTPClient) send(ctx context.Context, method, path, route string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewInternalError("failed to encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.NewInternalError("failed to build request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return apperrors.NewUnauthorizedError(fmt.Sprintf("credentials unavailable: %v", err))
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		observability.RecordBackendMetric(ctx, c.metrics, method, route, 0, time.Since(start))
		return classifyTransportError(err)
	}
	defer resp.Body.Close()
	observability.RecordBackendMetric(ctx, c.metrics, method, route, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewNetworkError(apperrors.ReasonParseError, "failed to decode backend response", err)
	}
	return nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewNetworkError(apperrors.ReasonTimeout, "backend request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewNetworkError(apperrors.ReasonTimeout, "backend request timed out", err)
	}
	return apperrors.NewNetworkError(apperrors.ReasonUnreachable, "backend unreachable", err)
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func statusError(resp *http.Response) error {
	message := fmt.Sprintf("backend returned status %d", resp.StatusCode)
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	var parsed errorBody
	if json.Unmarshal(data, &parsed) == nil {
		if detail := firstNonEmpty(parsed.Message, parsed.Error); detail != "" {
			message = detail
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperrors.NewUnauthorizedError(message)
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NewNotFoundError(message)
	case resp.StatusCode == http.StatusBadRequest ||
		resp.StatusCode == http.StatusConflict ||
		resp.StatusCode == http.StatusUnprocessableEntity:
		return apperrors.NewValidationError(message)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return apperrors.NewNetworkError(apperrors.ReasonTimeout, message, nil)
	default:
		return apperrors.NewNetworkError(apperrors.ReasonServerError, message, nil)
	}
}
