package attendance

import (
	"testing"
	"time"
)

func tp(t time.Time) *time.Time { return &t }

func pairedRow(userID, name string, in, out time.Time) Event {
	return Event{
		UserID:       userID,
		Name:         name,
		Timestamp:    in,
		CheckType:    CheckIn,
		CheckInTime:  tp(in),
		CheckOutTime: tp(out),
	}
}

func TestSummarizeSingleCompletedSession(t *testing.T) {
	in := time.Date(2025, 3, 10, 8, 5, 0, 0, time.Local)
	out := time.Date(2025, 3, 10, 17, 10, 0, 0, time.Local)
	sums := Summarize([]Event{pairedRow("u1", "Alice", in, out)}, 12*time.Hour)

	if len(sums) != 1 {
		t.Fatalf("got %d summaries, want 1", len(sums))
	}
	s := sums[0]
	if s.TotalCheckIn != 1 || s.TotalCheckOut != 1 {
		t.Errorf("totals = %d/%d, want 1/1", s.TotalCheckIn, s.TotalCheckOut)
	}
	if s.AvgWorkDuration != "9h05m" {
		t.Errorf("avg = %q, want 9h05m", s.AvgWorkDuration)
	}
	if s.Status != StatusCompleted {
		t.Errorf("status = %q, want %q", s.Status, StatusCompleted)
	}
}

func TestSummarizeOrphanCheckOut(t *testing.T) {
	out := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)
	sums := Summarize([]Event{{
		UserID:       "u2",
		Name:         "Bob",
		Timestamp:    out,
		CheckType:    CheckOut,
		CheckOutTime: tp(out),
	}}, 12*time.Hour)

	s := sums[0]
	if s.TotalCheckIn != 0 || s.TotalCheckOut != 1 {
		t.Errorf("totals = %d/%d, want 0/1", s.TotalCheckIn, s.TotalCheckOut)
	}
	if s.AvgWorkDuration != AvgSentinel {
		t.Errorf("avg = %q, want sentinel", s.AvgWorkDuration)
	}
	if s.Status != StatusOrphan {
		t.Errorf("status = %q, want %q", s.Status, StatusOrphan)
	}
}

func TestSummarizeOverlongSessionExcludedFromAverage(t *testing.T) {
	in := time.Date(2025, 3, 10, 6, 0, 0, 0, time.Local)
	out := in.Add(13 * time.Hour)
	sums := Summarize([]Event{pairedRow("u3", "Cara", in, out)}, 12*time.Hour)

	s := sums[0]
	if s.TotalCheckIn != 1 || s.TotalCheckOut != 1 {
		t.Errorf("totals = %d/%d, want 1/1 (overlong still counts)", s.TotalCheckIn, s.TotalCheckOut)
	}
	if s.ValidPairs != 0 {
		t.Errorf("valid pairs = %d, want 0", s.ValidPairs)
	}
	if s.AvgWorkDuration != AvgSentinel {
		t.Errorf("avg = %q, want sentinel", s.AvgWorkDuration)
	}
}

func TestSummarizeAveragesAcrossSessions(t *testing.T) {
	day1In := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)
	day2In := time.Date(2025, 3, 11, 9, 0, 0, 0, time.Local)
	events := []Event{
		pairedRow("u1", "Alice", day1In, day1In.Add(8*time.Hour)),
		pairedRow("u1", "Alice", day2In, day2In.Add(6*time.Hour)),
	}
	sums := Summarize(events, 12*time.Hour)

	s := sums[0]
	if s.ValidPairs != 2 {
		t.Fatalf("valid pairs = %d, want 2", s.ValidPairs)
	}
	if s.AvgWorkDuration != "7h00m" {
		t.Errorf("avg = %q, want 7h00m", s.AvgWorkDuration)
	}
}

func TestSummarizeStatusFromLatestRow(t *testing.T) {
	in1 := time.Date(2025, 3, 10, 8, 0, 0, 0, time.Local)
	in2 := time.Date(2025, 3, 11, 8, 0, 0, 0, time.Local)
	events := []Event{
		// Later open row listed first; status follows chronology, not order.
		{UserID: "u1", Name: "Alice", Timestamp: in2, CheckType: CheckIn, CheckInTime: tp(in2)},
		pairedRow("u1", "Alice", in1, in1.Add(8*time.Hour)),
	}
	sums := Summarize(events, 12*time.Hour)

	if sums[0].Status != StatusInProgress {
		t.Errorf("status = %q, want %q", sums[0].Status, StatusInProgress)
	}
}

func TestSummarizeSortsUsers(t *testing.T) {
	in := time.Date(2025, 3, 10, 8, 0, 0, 0, time.Local)
	events := []Event{
		pairedRow("u9", "Zed", in, in.Add(time.Hour)),
		pairedRow("u1", "Alice", in, in.Add(time.Hour)),
	}
	sums := Summarize(events, 12*time.Hour)
	if len(sums) != 2 || sums[0].UserID != "u1" || sums[1].UserID != "u9" {
		t.Errorf("summaries not sorted by user id: %+v", sums)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{9*time.Hour + 5*time.Minute, "9h05m"},
		{7 * time.Hour, "7h00m"},
		{45 * time.Minute, "0h45m"},
		{12*time.Hour + 59*time.Minute, "12h59m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
