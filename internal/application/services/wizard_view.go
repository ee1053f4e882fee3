package services

import (
	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/schedule"
	apperrors "github.com/zatekoja/labbook/pkg/errors"
)

// WizardView is a render-ready snapshot of the booking wizard
type WizardView struct {
	Step             Step                       `json:"step"`
	StepName         string                     `json:"step_name"`
	Lab              *entities.Lab              `json:"lab,omitempty"`
	CatalogStatus    CatalogStatus              `json:"catalog_status"`
	CatalogError     string                     `json:"catalog_error,omitempty"`
	SelectedTests    []entities.SelectedTest    `json:"selected_tests"`
	SelectedPackages []entities.SelectedPackage `json:"selected_packages"`
	Date             string                     `json:"date,omitempty"`
	Time             string                     `json:"time,omitempty"`
	AvailableSlots   []string                   `json:"available_slots"`
	PaymentMethod    entities.PaymentMethod     `json:"payment_method,omitempty"`
	Notes            string                     `json:"notes,omitempty"`
	Total            float64                    `json:"total"`
	UnpricedItems    []string                   `json:"unpriced_items,omitempty"`
	CanAdvance       bool                       `json:"can_advance"`
	MissingField     string                     `json:"missing_field,omitempty"`
	Submitting       bool                       `json:"submitting"`
}

// View returns a snapshot of the wizard state
func (w *BookingWizard) View() WizardView {
	w.mu.Lock()
	defer w.mu.Unlock()

	tests, packages, unpriced := w.selectedLocked()
	view := WizardView{
		Step:             w.step,
		StepName:         w.step.String(),
		CatalogStatus:    w.catalogStatus,
		SelectedTests:    tests,
		SelectedPackages: packages,
		Date:             w.date,
		Time:             w.slot,
		AvailableSlots:   schedule.Slots(),
		PaymentMethod:    w.paymentMethod,
		Notes:            w.notes,
		Total:            sumSelection(tests, packages),
		UnpricedItems:    unpriced,
		Submitting:       w.submitting,
	}
	if w.lab != nil {
		lab := *w.lab
		view.Lab = &lab
	}
	if w.catalogErr != nil {
		view.CatalogError = w.catalogErr.Error()
	}
	if w.date != "" {
		if day, err := schedule.ParseDate(w.date, w.loc); err == nil {
			view.AvailableSlots = schedule.AvailableSlots(day, w.now(), w.loc)
		}
	}

	if w.step == StepConfirm {
		if err := w.validateLocked(); err != nil {
			view.MissingField = missingField(err)
		}
	} else if err := w.gateLocked(w.step); err != nil {
		view.MissingField = missingField(err)
	} else {
		view.CanAdvance = true
	}
	return view
}

func missingField(err error) string {
	if appErr, ok := apperrors.As(err); ok {
		return appErr.Field
	}
	return ""
}
