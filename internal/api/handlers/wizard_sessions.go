package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zatekoja/labbook/internal/application/services"
	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/infrastructure/observability"
)

const defaultSessionIdleTimeout = 2 * time.Hour

// WizardSession is one client's booking in progress
type WizardSession struct {
	ID     string
	Wizard *services.BookingWizard
	// Suggestions debounces the lab search typed on the select-lab step.
	// Nil when suggestions are not configured.
	Suggestions *services.SuggestionService

	mu       sync.Mutex
	lastSeen time.Time
}

// Pending returns the booking left waiting for payment, if any
func (s *WizardSession) Pending() *entities.Booking {
	return s.Wizard.PendingBooking()
}

func (s *WizardSession) close() {
	if s.Suggestions != nil {
		s.Suggestions.Close()
	}
}

// SessionOption configures WizardSessions
type SessionOption func(*WizardSessions)

// WithSessionSuggestions gives every new session its own suggestion service
func WithSessionSuggestions(newSuggestions func() *services.SuggestionService) SessionOption {
	return func(r *WizardSessions) {
		r.newSuggestions = newSuggestions
	}
}

// WizardSessions keeps in-memory wizards keyed by session id
type WizardSessions struct {
	newWizard      func() *services.BookingWizard
	newSuggestions func() *services.SuggestionService
	idleTimeout    time.Duration
	now            func() time.Time

	mu       sync.Mutex
	sessions map[string]*WizardSession
}

// NewWizardSessions creates an empty registry
func NewWizardSessions(newWizard func() *services.BookingWizard, idleTimeout time.Duration, opts ...SessionOption) *WizardSessions {
	if idleTimeout <= 0 {
		idleTimeout = defaultSessionIdleTimeout
	}
	r := &WizardSessions{
		newWizard:   newWizard,
		idleTimeout: idleTimeout,
		now:         time.Now,
		sessions:    make(map[string]*WizardSession),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create starts a new session and drops sessions idle past the timeout
func (r *WizardSessions) Create() *WizardSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for id, s := range r.sessions {
		s.mu.Lock()
		idle := now.Sub(s.lastSeen)
		s.mu.Unlock()
		if idle > r.idleTimeout {
			delete(r.sessions, id)
			s.close()
		}
	}

	s := &WizardSession{ID: uuid.NewString(), Wizard: r.newWizard(), lastSeen: now}
	if r.newSuggestions != nil {
		s.Suggestions = r.newSuggestions()
	}
	r.sessions[s.ID] = s
	return s
}

// Get returns the session and marks it as used
func (r *WizardSessions) Get(id string) (*WizardSession, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	s.lastSeen = r.now()
	s.mu.Unlock()
	return s, true
}

// Delete forgets a session
func (r *WizardSessions) Delete(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.close()
	}
}

// CheckoutLinks holds the hosted checkout URL of every payment in progress,
// keyed by booking id, so clients can open it while the submission waits.
type CheckoutLinks struct {
	mu    sync.RWMutex
	links map[string]string
}

// NewCheckoutLinks creates an empty link registry
func NewCheckoutLinks() *CheckoutLinks {
	return &CheckoutLinks{links: make(map[string]string)}
}

// Open records the checkout URL. It matches payment.CheckoutOpener.
func (c *CheckoutLinks) Open(ctx context.Context, bookingID, checkoutURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.links[bookingID] = checkoutURL
	observability.LoggerFromContext(ctx).Info().Str("booking_id", bookingID).Msg("Checkout ready")
	return nil
}

// Get returns the checkout URL for a booking
func (c *CheckoutLinks) Get(bookingID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.links[bookingID]
	return u, ok
}

// Forget drops a finished checkout
func (c *CheckoutLinks) Forget(bookingID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.links, bookingID)
}
