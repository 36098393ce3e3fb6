package attendance

import (
	"fmt"
	"sort"
	"time"
)

// ReportPolicy carries the reporting thresholds. Thresholds are "HH:MM"
// times of day: check-ins after Late are late arrivals, check-outs before
// Early are early departures.
type ReportPolicy struct {
	MaxSession time.Duration
	Late       string
	Early      string
}

// DefaultReportPolicy matches the shipped configuration.
func DefaultReportPolicy() ReportPolicy {
	return ReportPolicy{MaxSession: 12 * time.Hour, Late: "08:00", Early: "17:00"}
}

// DayHours is the total worked hours for one calendar day.
type DayHours struct {
	Day   string  `json:"day"`
	Hours float64 `json:"hours"`
}

// Report is the calendar-bucketed projection over a set of events. It is a
// pure read-side view and never mutates the ledger.
type Report struct {
	HoursPerDay []DayHours `json:"hours_per_day"`
	LateCount   int        `json:"late_count"`
	EarlyCount  int        `json:"early_count"`
	LateUsers   []string   `json:"late_users"`
	EarlyUsers  []string   `json:"early_users"`
}

// DailyReport computes worked hours per day plus late-arrival and
// early-departure tallies. month filters to a "YYYY-MM" bucket; empty month
// means all events. Only valid pairs contribute to worked hours; late/early
// tallies consider every row carrying the relevant time.
func DailyReport(events []Event, month string, policy ReportPolicy) (Report, error) {
	if policy.MaxSession <= 0 {
		policy.MaxSession = 12 * time.Hour
	}
	late, err := parseClock(policy.Late)
	if err != nil {
		return Report{}, fmt.Errorf("late threshold: %w", err)
	}
	early, err := parseClock(policy.Early)
	if err != nil {
		return Report{}, fmt.Errorf("early threshold: %w", err)
	}

	hours := make(map[string]float64)
	var rpt Report
	seenLate := make(map[string]bool)
	seenEarly := make(map[string]bool)

	for _, evt := range events {
		if month != "" && evt.Timestamp.Format("2006-01") != month {
			continue
		}
		if dur, ok := evt.SessionDuration(); ok && dur > 0 && dur <= policy.MaxSession {
			day := evt.CheckInTime.Format(DateLayout)
			hours[day] += dur.Hours()
		}
		if evt.CheckInTime != nil && secondsOfDay(*evt.CheckInTime) > late {
			rpt.LateCount++
			if name := displayName(evt); !seenLate[name] {
				seenLate[name] = true
				rpt.LateUsers = append(rpt.LateUsers, name)
			}
		}
		if evt.CheckOutTime != nil && secondsOfDay(*evt.CheckOutTime) < early {
			rpt.EarlyCount++
			if name := displayName(evt); !seenEarly[name] {
				seenEarly[name] = true
				rpt.EarlyUsers = append(rpt.EarlyUsers, name)
			}
		}
	}

	days := make([]string, 0, len(hours))
	for day := range hours {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		rpt.HoursPerDay = append(rpt.HoursPerDay, DayHours{Day: day, Hours: hours[day]})
	}
	return rpt, nil
}

// UserLatest is the most recent check-in/check-out pair of times for a user,
// the kiosk "recent activity" view.
type UserLatest struct {
	UserID       string `json:"user_id"`
	Name         string `json:"name"`
	LastCheckIn  string `json:"last_check_in"`
	LastCheckOut string `json:"last_check_out"`
}

// LatestAttendance derives the most recent check-in and check-out times per
// user, sorted by name. Missing times render as "-".
func LatestAttendance(events []Event) []UserLatest {
	type latest struct {
		name     string
		checkIn  *time.Time
		checkOut *time.Time
	}
	byUser := make(map[string]*latest)
	for _, evt := range events {
		l := byUser[evt.UserID]
		if l == nil {
			l = &latest{}
			byUser[evt.UserID] = l
		}
		l.name = evt.Name
		if evt.CheckInTime != nil && (l.checkIn == nil || evt.CheckInTime.After(*l.checkIn)) {
			l.checkIn = evt.CheckInTime
		}
		if evt.CheckOutTime != nil && (l.checkOut == nil || evt.CheckOutTime.After(*l.checkOut)) {
			l.checkOut = evt.CheckOutTime
		}
	}

	out := make([]UserLatest, 0, len(byUser))
	for id, l := range byUser {
		ul := UserLatest{UserID: id, Name: l.name, LastCheckIn: "-", LastCheckOut: "-"}
		if l.checkIn != nil {
			ul.LastCheckIn = l.checkIn.Format("15:04:05")
		}
		if l.checkOut != nil {
			ul.LastCheckOut = l.checkOut.Format("15:04:05")
		}
		out = append(out, ul)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func displayName(evt Event) string {
	if evt.Name != "" {
		return evt.Name
	}
	return evt.UserID
}

// parseClock converts "HH:MM" to seconds since midnight. Comparisons run at
// second granularity so a 08:00:30 check-in is later than a 08:00 threshold.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*3600 + t.Minute()*60, nil
}

func secondsOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}
