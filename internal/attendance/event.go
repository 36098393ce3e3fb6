// Package attendance implements the attendance ledger: the event store,
// the check-in/check-out reconciliation engine, and the read-side summary
// and report projections.
package attendance

import (
	"fmt"
	"time"
)

// TimeLayout is the wire format for all persisted timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// DateLayout is the wire format for calendar-day keys.
const DateLayout = "2006-01-02"

// CheckType distinguishes check-in from check-out events.
type CheckType string

const (
	CheckIn  CheckType = "Check-in"
	CheckOut CheckType = "Check-out"
)

// ParseCheckType validates a wire-format check type.
func ParseCheckType(s string) (CheckType, error) {
	switch CheckType(s) {
	case CheckIn, CheckOut:
		return CheckType(s), nil
	}
	return "", fmt.Errorf("unknown check type %q", s)
}

// Event is one session fragment in the ledger. A check-in creates a row with
// only CheckInTime set; a matching check-out later fills CheckOutTime on the
// same row. A check-out with no open row becomes an orphan row carrying only
// CheckOutTime.
type Event struct {
	UserID       string     `json:"user_id"`
	Name         string     `json:"name"`
	Timestamp    time.Time  `json:"timestamp"`
	CheckType    CheckType  `json:"check_type"`
	CheckInTime  *time.Time `json:"check_in_time,omitempty"`
	CheckOutTime *time.Time `json:"check_out_time,omitempty"`
}

// Open reports whether the row is an unclosed check-in.
func (e Event) Open() bool {
	return e.CheckInTime != nil && e.CheckOutTime == nil
}

// SessionDuration returns the paired duration, or false when the row is not a
// complete pair.
func (e Event) SessionDuration() (time.Duration, bool) {
	if e.CheckInTime == nil || e.CheckOutTime == nil {
		return 0, false
	}
	return e.CheckOutTime.Sub(*e.CheckInTime), true
}

// sameDay reports whether two instants fall on the same calendar date.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(TimeLayout)
}

func parseOptional(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
