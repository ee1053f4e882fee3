package services

import (
	"sync"
)

// Activity names an independent in-progress operation the UI shows separately.
type Activity string

const (
	ActivityLocating          Activity = "locating"
	ActivityLoadingLabs       Activity = "loading_labs"
	ActivityLoadingLabDetails Activity = "loading_lab_details"
	ActivitySearching         Activity = "searching"
	ActivitySubmitting        Activity = "submitting"
)

var allActivities = []Activity{
	ActivityLocating,
	ActivityLoadingLabs,
	ActivityLoadingLabDetails,
	ActivitySearching,
	ActivitySubmitting,
}

// ActivityTracker counts in-flight operations per activity. A nil tracker
// ignores every call.
type ActivityTracker struct {
	mu     sync.Mutex
	counts map[Activity]int
}

// NewActivityTracker creates an idle tracker
func NewActivityTracker() *ActivityTracker {
	return &ActivityTracker{counts: make(map[Activity]int)}
}

// Begin marks a as in progress and returns the func that ends it. The
// returned func is safe to call more than once.
func (t *ActivityTracker) Begin(a Activity) func() {
	if t == nil {
		return func() {}
	}
	t.mu.Lock()
	t.counts[a]++
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if t.counts[a] > 0 {
				t.counts[a]--
			}
		})
	}
}

// Busy reports whether a is in progress
func (t *ActivityTracker) Busy(a Activity) bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[a] > 0
}

// Snapshot returns the in-progress flag of every activity
func (t *ActivityTracker) Snapshot() map[Activity]bool {
	snapshot := make(map[Activity]bool, len(allActivities))
	for _, a := range allActivities {
		snapshot[a] = t.Busy(a)
	}
	return snapshot
}
