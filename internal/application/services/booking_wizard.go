package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/domain/repositories"
	"github.com/zatekoja/labbook/internal/infrastructure/observability"
	"github.com/zatekoja/labbook/internal/schedule"
	apperrors "github.com/zatekoja/labbook/pkg/errors"
)

// Step is a position in the booking wizard
type Step int

const (
	StepSelectLab Step = iota + 1
	StepSelectTests
	StepSchedule
	StepPayment
	StepConfirm
)

func (s Step) String() string {
	switch s {
	case StepSelectLab:
		return "select_lab"
	case StepSelectTests:
		return "select_tests"
	case StepSchedule:
		return "schedule"
	case StepPayment:
		return "payment"
	case StepConfirm:
		return "confirm"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Field names reported by step-gating validation errors.
const (
	FieldLab           = "lab"
	FieldTests         = "tests"
	FieldDate          = "date"
	FieldTime          = "time"
	FieldPaymentMethod = "payment_method"
	FieldStep          = "step"
)

// CatalogStatus tracks the per-lab test/package catalog load
type CatalogStatus string

const (
	CatalogIdle    CatalogStatus = "idle"
	CatalogLoading CatalogStatus = "loading"
	CatalogLoaded  CatalogStatus = "loaded"
	CatalogFailed  CatalogStatus = "failed"
)

const defaultCatalogTimeout = 20 * time.Second

// BookingWizard holds the in-progress booking choices and enforces step gating.
// It is safe for concurrent use.
type BookingWizard struct {
	catalog        repositories.LabRepository
	activity       *ActivityTracker
	now            func() time.Time
	loc            *time.Location
	catalogTimeout time.Duration
	loads          singleflight.Group

	mu            sync.Mutex
	step          Step
	lab           *entities.Lab
	catalogStatus CatalogStatus
	catalogErr    error
	catalogDone   chan struct{}
	testIDs       []string
	packageIDs    []string
	date          string
	slot          string
	paymentMethod entities.PaymentMethod
	notes         string
	userLocation  *entities.Coordinate
	submitting    bool

	// pending is a booking created by Submit whose payment has not completed,
	// with the request it was created from.
	pending    *entities.Booking
	pendingReq *entities.BookingRequest
}

// WizardOption configures a BookingWizard
type WizardOption func(*BookingWizard)

// WithWizardClock overrides the clock and time zone used for date checks
func WithWizardClock(now func() time.Time, loc *time.Location) WizardOption {
	return func(w *BookingWizard) {
		if now != nil {
			w.now = now
		}
		if loc != nil {
			w.loc = loc
		}
	}
}

// WithCatalogTimeout bounds a single catalog load
func WithCatalogTimeout(d time.Duration) WizardOption {
	return func(w *BookingWizard) {
		if d > 0 {
			w.catalogTimeout = d
		}
	}
}

// NewBookingWizard creates a wizard at step 1
func NewBookingWizard(catalog repositories.LabRepository, activity *ActivityTracker, opts ...WizardOption) *BookingWizard {
	w := &BookingWizard{
		catalog:        catalog,
		activity:       activity,
		now:            time.Now,
		loc:            time.Local,
		catalogTimeout: defaultCatalogTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.resetLocked()
	return w
}

// SelectLab chooses the lab on step 1. Choosing a different lab clears the
// selected tests and packages and the loaded catalog.
func (w *BookingWizard) SelectLab(lab *entities.Lab) error {
	if lab == nil || strings.TrimSpace(lab.ID) == "" {
		return apperrors.NewMissingFieldError(FieldLab)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepSelectLab {
		return apperrors.NewValidationError("go back to lab selection to change the lab")
	}
	if w.lab != nil && w.lab.ID == lab.ID {
		return nil
	}

	selected := *lab
	w.lab = &selected
	w.testIDs = nil
	w.packageIDs = nil
	w.catalogStatus = CatalogIdle
	w.catalogErr = nil
	w.catalogDone = closedChan()
	return nil
}

// AddTest selects a test from the current lab's catalog
func (w *BookingWizard) AddTest(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lab == nil {
		return apperrors.NewMissingFieldError(FieldLab)
	}
	test, ok := w.lab.FindTest(id)
	if !ok {
		return apperrors.NewValidationError(fmt.Sprintf("test %q is not offered by %s", id, w.lab.Name))
	}
	if slices.Contains(w.testIDs, id) {
		return nil
	}
	if test.Price == nil {
		logUnpriced("test", test.ID, test.Name, w.lab.ID)
	}
	w.testIDs = append(w.testIDs, id)
	return nil
}

// RemoveTest deselects a test
func (w *BookingWizard) RemoveTest(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.testIDs = slices.DeleteFunc(w.testIDs, func(v string) bool { return v == id })
}

// AddPackage selects a package from the current lab's catalog
func (w *BookingWizard) AddPackage(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lab == nil {
		return apperrors.NewMissingFieldError(FieldLab)
	}
	pkg, ok := w.lab.FindPackage(id)
	if !ok {
		return apperrors.NewValidationError(fmt.Sprintf("package %q is not offered by %s", id, w.lab.Name))
	}
	if slices.Contains(w.packageIDs, id) {
		return nil
	}
	if pkg.Price == nil {
		logUnpriced("package", pkg.ID, pkg.Name, w.lab.ID)
	}
	w.packageIDs = append(w.packageIDs, id)
	return nil
}

// RemovePackage deselects a package
func (w *BookingWizard) RemovePackage(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.packageIDs = slices.DeleteFunc(w.packageIDs, func(v string) bool { return v == id })
}

// SetSchedule sets the appointment date (YYYY-MM-DD, today or later) and slot (HH:MM)
func (w *BookingWizard) SetSchedule(date, slot string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkDate(date); err != nil {
		return err
	}
	if !schedule.IsValidSlot(slot) {
		return &apperrors.AppError{
			Type:    apperrors.ErrorTypeValidation,
			Reason:  apperrors.ReasonInvalid,
			Field:   FieldTime,
			Message: fmt.Sprintf("%q is not an appointment slot", slot),
		}
	}
	w.date = date
	w.slot = slot
	return nil
}

// SetPaymentMethod chooses pay now or pay later
func (w *BookingWizard) SetPaymentMethod(method entities.PaymentMethod) error {
	if !method.Valid() {
		return &apperrors.AppError{
			Type:    apperrors.ErrorTypeValidation,
			Reason:  apperrors.ReasonInvalid,
			Field:   FieldPaymentMethod,
			Message: fmt.Sprintf("unknown payment method %q", method),
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paymentMethod = method
	return nil
}

// SetNotes stores free-text notes for the lab
func (w *BookingWizard) SetNotes(notes string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notes = strings.TrimSpace(notes)
}

// SetUserLocation attaches the caller position sent with the booking
func (w *BookingWizard) SetUserLocation(position *entities.Coordinate) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if position == nil {
		w.userLocation = nil
		return
	}
	p := *position
	w.userLocation = &p
}

// Advance moves one step forward when the current step is complete. Entering
// step 2 starts loading the lab's catalog in the background.
func (w *BookingWizard) Advance(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepConfirm {
		return apperrors.NewValidationError("already at the confirmation step")
	}
	if err := w.gateLocked(w.step); err != nil {
		return err
	}
	w.step++
	if w.step == StepSelectTests {
		w.startCatalogLoadLocked(ctx)
	}
	return nil
}

// Back moves one step backward. Forward selections are kept.
func (w *BookingWizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step > StepSelectLab {
		w.step--
	}
}

// GoTo jumps to target. Going back is always allowed; going forward passes
// through every gate on the way.
func (w *BookingWizard) GoTo(ctx context.Context, target Step) error {
	if target < StepSelectLab || target > StepConfirm {
		return apperrors.NewValidationError(fmt.Sprintf("unknown step %d", int(target)))
	}
	w.mu.Lock()
	if target <= w.step {
		w.step = target
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	for {
		w.mu.Lock()
		current := w.step
		w.mu.Unlock()
		if current >= target {
			return nil
		}
		if err := w.Advance(ctx); err != nil {
			return err
		}
	}
}

// Step returns the current step
func (w *BookingWizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// CatalogReady is closed when the current lab's catalog load has finished.
func (w *BookingWizard) CatalogReady() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.catalogDone
}

// ReloadCatalog retries a failed catalog load for the current lab
func (w *BookingWizard) ReloadCatalog(ctx context.Context) <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lab != nil && w.catalogStatus == CatalogFailed {
		w.catalogStatus = CatalogIdle
		w.startCatalogLoadLocked(ctx)
	}
	return w.catalogDone
}

// Total sums the selected prices. Items without a price count as zero and
// are returned by name.
func (w *BookingWizard) Total() (float64, []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	tests, packages, unpriced := w.selectedLocked()
	return sumSelection(tests, packages), unpriced
}

// Validate re-checks the step 1 to 4 gates and reports the first missing field
func (w *BookingWizard) Validate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.validateLocked()
}

// BuildRequest validates the selection and builds the booking payload. The
// wizard must be on the confirm step.
func (w *BookingWizard) BuildRequest() (*entities.BookingRequest, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.validateLocked(); err != nil {
		return nil, err
	}
	if w.step != StepConfirm {
		return nil, &apperrors.AppError{
			Type:    apperrors.ErrorTypeValidation,
			Reason:  apperrors.ReasonInvalid,
			Field:   FieldStep,
			Message: fmt.Sprintf("finish the %s step and review the booking before submitting", w.step),
		}
	}

	tests, packages, _ := w.selectedLocked()
	req := &entities.BookingRequest{
		LabID:            w.lab.ID,
		SelectedTests:    tests,
		SelectedPackages: packages,
		AppointmentDate:  w.date,
		AppointmentTime:  w.slot,
		PaymentMethod:    w.paymentMethod,
		Notes:            w.notes,
		TotalAmount:      sumSelection(tests, packages),
	}
	if w.userLocation != nil {
		loc := *w.userLocation
		req.UserLocation = &loc
	}
	return req, nil
}

// Reset returns the wizard to an empty step 1
func (w *BookingWizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
}

func (w *BookingWizard) resetLocked() {
	w.step = StepSelectLab
	w.lab = nil
	w.catalogStatus = CatalogIdle
	w.catalogErr = nil
	w.catalogDone = closedChan()
	w.testIDs = nil
	w.packageIDs = nil
	w.date = ""
	w.slot = ""
	w.paymentMethod = ""
	w.notes = ""
	w.userLocation = nil
	w.pending = nil
	w.pendingReq = nil
}

// PendingBooking returns the booking still waiting for payment, if any
func (w *BookingWizard) PendingBooking() *entities.Booking {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

func (w *BookingWizard) pendingPayment() (*entities.Booking, *entities.BookingRequest) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending, w.pendingReq
}

func (w *BookingWizard) holdPending(booking *entities.Booking, req *entities.BookingRequest) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = booking
	w.pendingReq = req
}

func (w *BookingWizard) beginSubmit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return false
	}
	w.submitting = true
	return true
}

func (w *BookingWizard) endSubmit() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
}

func (w *BookingWizard) labName() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lab == nil {
		return ""
	}
	return w.lab.Name
}

func (w *BookingWizard) gateLocked(step Step) error {
	switch step {
	case StepSelectLab:
		if w.lab == nil {
			return apperrors.NewMissingFieldError(FieldLab)
		}
	case StepSelectTests:
		if len(w.testIDs)+len(w.packageIDs) == 0 {
			return apperrors.NewMissingFieldError(FieldTests)
		}
	case StepSchedule:
		if w.date == "" {
			return apperrors.NewMissingFieldError(FieldDate)
		}
		if err := w.checkDate(w.date); err != nil {
			return err
		}
		if w.slot == "" {
			return apperrors.NewMissingFieldError(FieldTime)
		}
		if !schedule.IsValidSlot(w.slot) {
			return apperrors.NewValidationError(fmt.Sprintf("%q is not an appointment slot", w.slot))
		}
	case StepPayment:
		if w.paymentMethod == "" {
			return apperrors.NewMissingFieldError(FieldPaymentMethod)
		}
	}
	return nil
}

func (w *BookingWizard) validateLocked() error {
	for step := StepSelectLab; step < StepConfirm; step++ {
		if err := w.gateLocked(step); err != nil {
			return err
		}
	}
	return nil
}

func (w *BookingWizard) checkDate(date string) error {
	day, err := schedule.ParseDate(date, w.loc)
	if err != nil {
		return &apperrors.AppError{
			Type:    apperrors.ErrorTypeValidation,
			Reason:  apperrors.ReasonInvalid,
			Field:   FieldDate,
			Message: fmt.Sprintf("%q is not a date (want YYYY-MM-DD)", date),
			Err:     err,
		}
	}
	if schedule.IsBeforeToday(day, w.now(), w.loc) {
		return &apperrors.AppError{
			Type:    apperrors.ErrorTypeValidation,
			Reason:  apperrors.ReasonInvalid,
			Field:   FieldDate,
			Message: "appointment date is in the past",
		}
	}
	return nil
}

// selectedLocked resolves the selected ids against the catalog, in selection order.
func (w *BookingWizard) selectedLocked() ([]entities.SelectedTest, []entities.SelectedPackage, []string) {
	tests := make([]entities.SelectedTest, 0, len(w.testIDs))
	packages := make([]entities.SelectedPackage, 0, len(w.packageIDs))
	var unpriced []string
	if w.lab == nil {
		return tests, packages, unpriced
	}

	for _, id := range w.testIDs {
		t, ok := w.lab.FindTest(id)
		if !ok {
			continue
		}
		line := entities.SelectedTest{TestID: t.ID, Name: t.Name}
		if t.Price != nil {
			line.Price = *t.Price
		} else {
			unpriced = append(unpriced, t.Name)
		}
		tests = append(tests, line)
	}
	for _, id := range w.packageIDs {
		p, ok := w.lab.FindPackage(id)
		if !ok {
			continue
		}
		line := entities.SelectedPackage{PackageID: p.ID, Name: p.Name}
		if p.Price != nil {
			line.Price = *p.Price
		} else {
			unpriced = append(unpriced, p.Name)
		}
		packages = append(packages, line)
	}
	return tests, packages, unpriced
}

func sumSelection(tests []entities.SelectedTest, packages []entities.SelectedPackage) float64 {
	var total float64
	for _, t := range tests {
		total += t.Price
	}
	for _, p := range packages {
		total += p.Price
	}
	return total
}

// startCatalogLoadLocked loads the selected lab's catalog unless it is
// already loaded or loading. Loads for the same lab share one request.
func (w *BookingWizard) startCatalogLoadLocked(ctx context.Context) {
	if w.lab == nil || w.catalog == nil {
		return
	}
	if w.catalogStatus == CatalogLoaded || w.catalogStatus == CatalogLoading {
		return
	}

	labID := w.lab.ID
	done := make(chan struct{})
	w.catalogStatus = CatalogLoading
	w.catalogErr = nil
	w.catalogDone = done

	loadCtx := context.WithoutCancel(ctx)
	end := w.activity.Begin(ActivityLoadingLabDetails)
	go func() {
		defer close(done)
		defer end()

		v, err, _ := w.loads.Do(labID, func() (interface{}, error) {
			reqCtx, cancel := context.WithTimeout(loadCtx, w.catalogTimeout)
			defer cancel()
			return w.catalog.GetByID(reqCtx, labID)
		})
		var lab *entities.Lab
		if err == nil {
			lab, _ = v.(*entities.Lab)
		}
		w.commitCatalog(loadCtx, labID, done, lab, err)
	}()
}

// commitCatalog applies a catalog response only if it belongs to the load
// that is still current for the selected lab.
func (w *BookingWizard) commitCatalog(ctx context.Context, labID string, done chan struct{}, lab *entities.Lab, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	logger := observability.LoggerFromContext(ctx)
	if w.lab == nil || w.lab.ID != labID || w.catalogDone != done {
		logger.Debug().Str("lab_id", labID).Msg("Discarding stale lab catalog response")
		return
	}
	if err != nil || lab == nil {
		if err == nil {
			err = apperrors.NewNetworkError(apperrors.ReasonParseError, "empty lab catalog response", nil)
		}
		logger.Warn().Err(err).Str("lab_id", labID).Msg("Lab catalog load failed")
		w.catalogStatus = CatalogFailed
		w.catalogErr = err
		return
	}

	detailed := *lab
	detailed.ID = labID
	if detailed.Location == nil {
		detailed.Location = w.lab.Location
	}
	detailed.DistanceKm = w.lab.DistanceKm
	w.lab = &detailed
	w.catalogStatus = CatalogLoaded

	w.testIDs = slices.DeleteFunc(w.testIDs, func(id string) bool {
		_, ok := detailed.FindTest(id)
		return !ok
	})
	w.packageIDs = slices.DeleteFunc(w.packageIDs, func(id string) bool {
		_, ok := detailed.FindPackage(id)
		return !ok
	})
}

func logUnpriced(kind, id, name, labID string) {
	observability.LoggerFromContext(context.Background()).Warn().
		Str("kind", kind).
		Str("item_id", id).
		Str("item_name", name).
		Str("lab_id", labID).
		Msg("Selected item has no price, counting it as zero")
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
