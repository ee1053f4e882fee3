package schedule

import (
	"errors"
	"fmt"
	"time"
)

const (
	SlotMinutes = 30
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var (
	ErrInvalidDate = errors.New("invalid date format")
	ErrInvalidTime = errors.New("invalid time format")
)

type TimeRange struct {
	Start string
	End   string
}

// Appointment windows; the last slot of each window starts at End.
var dayRanges = []TimeRange{
	{Start: "09:00", End: "12:30"},
	{Start: "14:00", End: "17:30"},
}

var slots = generateSlots()

// Slots returns the fixed daily appointment slots in order.
func Slots() []string {
	out := make([]string, len(slots))
	copy(out, slots)
	return out
}

// IsValidSlot reports whether timeStr is one of the fixed appointment slots.
func IsValidSlot(timeStr string) bool {
	for _, s := range slots {
		if s == timeStr {
			return true
		}
	}
	return false
}

func ParseDate(dateStr string, loc *time.Location) (time.Time, error) {
	date, err := time.ParseInLocation(DateLayout, dateStr, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return date, nil
}

func ParseClockToMinutes(timeStr string) (int, error) {
	tm, err := time.Parse(ClockLayout, timeStr)
	if err != nil {
		return 0, ErrInvalidTime
	}
	return tm.Hour()*60 + tm.Minute(), nil
}

func MinutesToClock(minutes int) string {
	h := minutes / 60
	m := minutes % 60
	return fmt.Sprintf("%02d:%02d", h, m)
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// IsBeforeToday reports whether date falls on a calendar day before now.
func IsBeforeToday(date time.Time, now time.Time, loc *time.Location) bool {
	return StartOfDay(date, loc).Before(StartOfDay(now, loc))
}

// AvailableSlots returns the slots still bookable on date; past slots of the current day are dropped.
func AvailableSlots(date time.Time, now time.Time, loc *time.Location) []string {
	if IsBeforeToday(date, now, loc) {
		return []string{}
	}
	day := StartOfDay(date, loc)
	filtered := make([]string, 0, len(slots))
	for _, s := range slots {
		minutes, _ := ParseClockToMinutes(s)
		start := day.Add(time.Duration(minutes) * time.Minute)
		if start.After(now.In(loc)) {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

func generateSlots() []string {
	out := make([]string, 0, 16)
	for _, tr := range dayRanges {
		startMin, err := ParseClockToMinutes(tr.Start)
		if err != nil {
			panic(err)
		}
		endMin, err := ParseClockToMinutes(tr.End)
		if err != nil {
			panic(err)
		}
		for cursor := startMin; cursor <= endMin; cursor += SlotMinutes {
			out = append(out, MinutesToClock(cursor))
		}
	}
	return out
}
