package schedule

import (
	"testing"
	"time"
)

func mustLoadLoc(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestSlots(t *testing.T) {
	got := Slots()
	if len(got) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(got))
	}
	if got[0] != "09:00" || got[len(got)-1] != "17:30" {
		t.Fatalf("unexpected boundary slots: %v", got)
	}
	for _, s := range got {
		if s == "13:00" || s == "13:30" {
			t.Fatalf("lunch slot %s must not be offered", s)
		}
	}
	if got[7] != "12:30" || got[8] != "14:00" {
		t.Fatalf("unexpected lunch boundary: %s -> %s", got[7], got[8])
	}
}

func TestSlotsReturnsCopy(t *testing.T) {
	got := Slots()
	got[0] = "00:00"
	if Slots()[0] != "09:00" {
		t.Fatalf("Slots must not expose internal state")
	}
}

func TestIsValidSlot(t *testing.T) {
	cases := map[string]bool{
		"09:00": true,
		"10:00": true,
		"17:30": true,
		"13:00": false,
		"18:00": false,
		"10:15": false,
		"":      false,
	}
	for in, want := range cases {
		if got := IsValidSlot(in); got != want {
			t.Fatalf("IsValidSlot(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsBeforeToday(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, loc)

	yesterday, _ := ParseDate("2025-03-09", loc)
	today, _ := ParseDate("2025-03-10", loc)
	tomorrow, _ := ParseDate("2025-03-11", loc)

	if !IsBeforeToday(yesterday, now, loc) {
		t.Fatalf("expected yesterday to be before today")
	}
	if IsBeforeToday(today, now, loc) {
		t.Fatalf("today must be bookable")
	}
	if IsBeforeToday(tomorrow, now, loc) {
		t.Fatalf("tomorrow must be bookable")
	}
}

func TestAvailableSlotsDropsPastSlotsToday(t *testing.T) {
	loc := mustLoadLoc(t)
	now := time.Date(2025, 3, 10, 14, 10, 0, 0, loc)
	today, _ := ParseDate("2025-03-10", loc)

	got := AvailableSlots(today, now, loc)
	if len(got) != 7 || got[0] != "14:30" {
		t.Fatalf("unexpected slots: %v", got)
	}

	tomorrow, _ := ParseDate("2025-03-11", loc)
	if len(AvailableSlots(tomorrow, now, loc)) != 16 {
		t.Fatalf("all slots must be open tomorrow")
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	if _, err := ParseDate("10/03/2025", time.UTC); err != ErrInvalidDate {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}
