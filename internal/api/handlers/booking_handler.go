package handlers

import (
	"net/http"
	"strings"

	"github.com/zatekoja/labbook/internal/application/services"
	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/domain/repositories"
	apperrors "github.com/zatekoja/labbook/pkg/errors"
)

// BookingHandler drives booking wizard sessions
type BookingHandler struct {
	sessions  *WizardSessions
	submitter *services.BookingSubmitter
	directory *services.LabDirectory
	labs      repositories.LabRepository
	locator   Locator
	checkouts *CheckoutLinks
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(
	sessions *WizardSessions,
	submitter *services.BookingSubmitter,
	directory *services.LabDirectory,
	labs repositories.LabRepository,
	locator Locator,
	checkouts *CheckoutLinks,
) *BookingHandler {
	return &BookingHandler{
		sessions:  sessions,
		submitter: submitter,
		directory: directory,
		labs:      labs,
		locator:   locator,
		checkouts: checkouts,
	}
}

type sessionResponse struct {
	SessionID string                  `json:"session_id"`
	Wizard    services.WizardView     `json:"wizard"`
	Pending   *entities.Booking       `json:"pending_booking,omitempty"`
	Result    *entities.BookingResult `json:"result,omitempty"`
	Error     *errorResponse          `json:"error,omitempty"`
}

func (h *BookingHandler) session(w http.ResponseWriter, r *http.Request) (*WizardSession, bool) {
	s, ok := h.sessions.Get(r.PathValue("id"))
	if !ok {
		respondWithError(w, http.StatusNotFound, "booking session not found")
		return nil, false
	}
	return s, true
}

func (h *BookingHandler) respondSession(w http.ResponseWriter, s *WizardSession) {
	respondWithJSON(w, http.StatusOK, sessionResponse{SessionID: s.ID, Wizard: s.Wizard.View(), Pending: s.Pending()})
}

// update runs fn against the session's wizard and answers with the new view
func (h *BookingHandler) update(w http.ResponseWriter, r *http.Request, fn func(*WizardSession) error) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := fn(s); err != nil {
		respondWithAppError(w, err)
		return
	}
	h.respondSession(w, s)
}

// CreateSession handles POST /api/bookings/sessions
func (h *BookingHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	respondWithJSON(w, http.StatusCreated, sessionResponse{SessionID: s.ID, Wizard: s.Wizard.View()})
}

// GetSession handles GET /api/bookings/sessions/{id}
func (h *BookingHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		h.respondSession(w, s)
	}
}

// DeleteSession handles DELETE /api/bookings/sessions/{id}
func (h *BookingHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

type selectLabRequest struct {
	LabID string `json:"lab_id"`
}

// SelectLab handles POST /api/bookings/sessions/{id}/lab
func (h *BookingHandler) SelectLab(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(s *WizardSession) error {
		var payload selectLabRequest
		if err := decodeJSON(r, &payload); err != nil {
			return err
		}
		labID := strings.TrimSpace(payload.LabID)
		if labID == "" {
			return apperrors.NewMissingFieldError(services.FieldLab)
		}

		lab := h.findListedLab(labID)
		if lab == nil {
			fetched, err := h.labs.GetByID(r.Context(), labID)
			if err != nil {
				return err
			}
			lab = fetched
		}
		if h.locator != nil {
			if position, _ := h.locator.Last(); position != nil {
				s.Wizard.SetUserLocation(position)
			}
		}
		return s.Wizard.SelectLab(lab)
	})
}

// findListedLab looks the lab up in the directory so the wizard keeps its distance
func (h *BookingHandler) findListedLab(id string) *entities.Lab {
	if h.directory == nil {
		return nil
	}
	var origin *entities.Coordinate
	if h.locator != nil {
		origin, _ = h.locator.Last()
	}
	for _, lab := range services.RankByProximity(h.directory.Labs(), origin) {
		if lab.ID == id {
			return lab
		}
	}
	return nil
}

type itemRequest struct {
	ID string `json:"id"`
}

// AddTest handles POST /api/bookings/sessions/{id}/tests
func (h *BookingHandler) AddTest(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(s *WizardSession) error {
		var payload itemRequest
		if err := decodeJSON(r, &payload); err != nil {
			return err
		}
		return s.Wizard.AddTest(payload.ID)
	})
}

// RemoveTest handles DELETE /api/bookings/sessions/{id}/tests/{itemId}
func (h *BookingHandler) RemoveTest(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(s *WizardSession) error {
		s.Wizard.RemoveTest(r.PathValue("itemId"))
		return nil
	})
}

// AddPackage handles POST /api/bookings/sessions/{id}/packages
func (h *BookingHandler) AddPackage(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(s *WizardSession) error {
		var payload itemRequest
		if err := decodeJSON(r, &payload); err != nil {
			return err
		}
		return s.Wizard.AddPackage(payload.ID)
	})
}

// RemovePackage handles DELETE /api/bookings/sessions/{id}/packages/{itemId}
func (h *BookingHandler) RemovePackage(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(s *WizardSession) error {
		s.Wizard.RemovePackage(r.PathValue("itemId"))
		return nil
	})
}

type scheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// SetSchedule handles PUT /api/bookings/sessions/{id}/schedule
func (h *BookingHandler) SetSchedule(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(s *WizardSession) error {
		var payload scheduleRequest
		if err := decodeJSON(r, &payload); err != nil {
			return err
		}
		return s.Wizard.SetSchedule(strings.TrimSpace(payload.Date), strings.TrimSpace(payload.Time))
	})
}

type paymentRequest struct {
	Method entities.PaymentMethod `json:"method"`
	Notes  *string                `json:"notes,omitempty"`
}

// SetPayment handles PUT /api/bookings/sessions/{id}/payment
func (h *BookingHandler) SetPayment(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(s *WizardSession) error {
		var payload paymentRequest
		if err := decodeJSON(r, &payload); err != nil {
			return err
		}
		if payload.Notes != nil {
			s.Wizard.SetNotes(*payload.Notes)
		}
		return s.Wizard.SetPaymentMethod(payload.Method)
	})
}

// Advance handles POST /api/bookings/sessions/{id}/advance
func (h *BookingHandler) Advance(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(s *WizardSession) error {
		return s.Wizard.Advance(r.Context())
	})
}

// Back handles POST /api/bookings/sessions/{id}/back
func (h *BookingHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(s *WizardSession) error {
		s.Wizard.Back()
		return nil
	})
}

type goToRequest struct {
	Step int `json:"step"`
}

// GoTo handles POST /api/bookings/sessions/{id}/goto
func (h *BookingHandler) GoTo(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(s *WizardSession) error {
		var payload goToRequest
		if err := decodeJSON(r, &payload); err != nil {
			return err
		}
		return s.Wizard.GoTo(r.Context(), services.Step(payload.Step))
	})
}

// ReloadCatalog handles POST /api/bookings/sessions/{id}/catalog/reload
func (h *BookingHandler) ReloadCatalog(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(s *WizardSession) error {
		s.Wizard.ReloadCatalog(r.Context())
		return nil
	})
}

type typedQueryRequest struct {
	Query string `json:"query"`
}

// TypeSearch handles POST /api/bookings/sessions/{id}/search. The lookup runs
// after the debounce window; poll LatestSearch for the answer.
func (h *BookingHandler) TypeSearch(w http.ResponseWriter, r *http.Request) {
	s, ok := h.suggestionSession(w, r)
	if !ok {
		return
	}
	var payload typedQueryRequest
	if err := decodeJSON(r, &payload); err != nil {
		respondWithAppError(w, err)
		return
	}
	s.Suggestions.Type(payload.Query)
	respondWithJSON(w, http.StatusAccepted, s.Suggestions.Latest())
}

// LatestSearch handles GET /api/bookings/sessions/{id}/search
func (h *BookingHandler) LatestSearch(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.suggestionSession(w, r); ok {
		respondWithJSON(w, http.StatusOK, s.Suggestions.Latest())
	}
}

func (h *BookingHandler) suggestionSession(w http.ResponseWriter, r *http.Request) (*WizardSession, bool) {
	s, ok := h.session(w, r)
	if !ok {
		return nil, false
	}
	if s.Suggestions == nil {
		respondWithError(w, http.StatusNotFound, "search suggestions are not configured")
		return nil, false
	}
	return s, true
}

// Submit handles POST /api/bookings/sessions/{id}/submit. A pay-now booking
// blocks until the checkout completes; its URL is published through Checkout.
// While a booking waits for payment the submit is refused with 409.
func (h *BookingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	result, err := h.submitter.Submit(r.Context(), s.Wizard)
	h.respondResult(w, s, result, err)
}

// RetryPayment handles POST /api/bookings/sessions/{id}/payment/retry
func (h *BookingHandler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if s.Pending() == nil {
		respondWithError(w, http.StatusConflict, "no booking is waiting for payment")
		return
	}
	result, err := h.submitter.RetryPayment(r.Context(), s.Wizard)
	h.respondResult(w, s, result, err)
}

func (h *BookingHandler) respondResult(w http.ResponseWriter, s *WizardSession, result *entities.BookingResult, err error) {
	if result != nil && result.Booking != nil && h.checkouts != nil && err == nil {
		h.checkouts.Forget(result.Booking.ID)
	}
	if err != nil && (result == nil || result.Outcome != entities.BookingOutcomePaymentPending) {
		respondWithAppError(w, err)
		return
	}

	resp := sessionResponse{SessionID: s.ID, Result: result}
	status := http.StatusCreated
	if err != nil {
		body := appErrorBody(err)
		resp.Error = &body
		status = http.StatusAccepted
	}
	resp.Wizard = s.Wizard.View()
	resp.Pending = s.Pending()
	respondWithJSON(w, status, resp)
}

// Checkout handles GET /api/checkout/{bookingId}
func (h *BookingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.checkouts == nil {
		respondWithError(w, http.StatusNotFound, "checkout is not configured")
		return
	}
	u, ok := h.checkouts.Get(r.PathValue("bookingId"))
	if !ok {
		respondWithError(w, http.StatusNotFound, "no checkout for this booking")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"checkout_url": u})
}
