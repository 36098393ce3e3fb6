package attendance

import (
	"fmt"
	"sort"
	"time"
)

// Status values derived from a user's chronologically-latest row.
const (
	StatusCompleted  = "Completed"
	StatusInProgress = "In progress"
	StatusOrphan     = "Checkout without check-in"
	StatusNoData     = "No data"
)

// AvgSentinel is reported when a user has no valid pairs to average over.
const AvgSentinel = "—"

// UserSummary is one row of the per-user attendance summary.
type UserSummary struct {
	UserID          string `json:"user_id"`
	Name            string `json:"name"`
	TotalCheckIn    int    `json:"total_check_in"`
	TotalCheckOut   int    `json:"total_check_out"`
	ValidPairs      int    `json:"valid_pairs"`
	AvgWorkDuration string `json:"avg_work_duration"`
	Status          string `json:"status"`
}

// Summarize derives one summary row per user from a set of events. Durations
// are averaged over valid pairs only: positive and no longer than maxSession.
// Over-long sessions still count toward the check-in/check-out totals.
func Summarize(events []Event, maxSession time.Duration) []UserSummary {
	if maxSession <= 0 {
		maxSession = 12 * time.Hour
	}

	byUser := make(map[string][]Event)
	for _, evt := range events {
		byUser[evt.UserID] = append(byUser[evt.UserID], evt)
	}

	userIDs := make([]string, 0, len(byUser))
	for id := range byUser {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)

	summaries := make([]UserSummary, 0, len(userIDs))
	for _, id := range userIDs {
		summaries = append(summaries, summarizeUser(id, byUser[id], maxSession))
	}
	return summaries
}

func summarizeUser(userID string, events []Event, maxSession time.Duration) UserSummary {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	sum := UserSummary{UserID: userID, Status: StatusNoData, AvgWorkDuration: AvgSentinel}
	var total time.Duration
	var tracked *time.Time

	for _, evt := range events {
		sum.Name = evt.Name
		if evt.CheckInTime != nil {
			sum.TotalCheckIn++
			tracked = evt.CheckInTime
		}
		if evt.CheckOutTime != nil {
			sum.TotalCheckOut++
			if tracked != nil {
				dur := evt.CheckOutTime.Sub(*tracked)
				if dur > 0 && dur <= maxSession {
					total += dur
					sum.ValidPairs++
				}
			}
			// Reset after every pairing attempt, valid or not.
			tracked = nil
		}
	}

	if sum.ValidPairs > 0 {
		sum.AvgWorkDuration = FormatDuration(total / time.Duration(sum.ValidPairs))
	}
	if len(events) > 0 {
		latest := events[len(events)-1]
		switch {
		case latest.CheckInTime != nil && latest.CheckOutTime != nil:
			sum.Status = StatusCompleted
		case latest.CheckInTime != nil:
			sum.Status = StatusInProgress
		case latest.CheckOutTime != nil:
			sum.Status = StatusOrphan
		}
	}
	return sum
}

// FormatDuration renders a duration as "9h05m" for display.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%02dm", h, m)
}
