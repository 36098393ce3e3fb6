package attendance

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestService(t *testing.T, cooldown time.Duration) (*Service, Store) {
	t.Helper()
	store, err := NewCSVStore(filepath.Join(t.TempDir(), "attendance.csv"))
	if err != nil {
		t.Fatalf("NewCSVStore: %v", err)
	}
	return NewService(store, cooldown), store
}

func TestRecordCheckInOpensRow(t *testing.T) {
	svc, store := newTestService(t, 10*time.Second)
	now := time.Date(2025, 3, 10, 8, 5, 0, 0, time.Local)
	svc.now = func() time.Time { return now }

	res, err := svc.Record(context.Background(), "u1", "Alice", CheckIn)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if res.Outcome != OutcomeOpened {
		t.Fatalf("outcome = %q, want %q", res.Outcome, OutcomeOpened)
	}

	events, err := store.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d rows, want 1", len(events))
	}
	evt := events[0]
	if !evt.Open() {
		t.Errorf("row should be an open check-in")
	}
	if evt.CheckInTime == nil || !evt.CheckInTime.Equal(now) {
		t.Errorf("check-in time = %v, want %v", evt.CheckInTime, now)
	}
}

func TestRecordDuplicateCheckInWithinCooldown(t *testing.T) {
	svc, store := newTestService(t, 10*time.Second)
	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.Local)
	now := base
	svc.now = func() time.Time { return now }

	if _, err := svc.Record(context.Background(), "u1", "Alice", CheckIn); err != nil {
		t.Fatalf("first Record: %v", err)
	}

	now = base.Add(5 * time.Second)
	res, err := svc.Record(context.Background(), "u1", "Alice", CheckIn)
	if err != nil {
		t.Fatalf("duplicate Record returned error: %v", err)
	}
	if res.Outcome != OutcomeDuplicate {
		t.Fatalf("outcome = %q, want %q", res.Outcome, OutcomeDuplicate)
	}

	events, _ := store.LoadAll(context.Background())
	if len(events) != 1 {
		t.Fatalf("got %d rows after duplicate, want 1", len(events))
	}
}

func TestRecordCheckInAfterCooldownOpensSecondRow(t *testing.T) {
	svc, store := newTestService(t, 10*time.Second)
	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.Local)
	now := base
	svc.now = func() time.Time { return now }

	if _, err := svc.Record(context.Background(), "u1", "Alice", CheckIn); err != nil {
		t.Fatalf("first Record: %v", err)
	}

	now = base.Add(30 * time.Second)
	res, err := svc.Record(context.Background(), "u1", "Alice", CheckIn)
	if err != nil {
		t.Fatalf("second Record: %v", err)
	}
	if res.Outcome != OutcomeOpened {
		t.Fatalf("outcome = %q, want %q", res.Outcome, OutcomeOpened)
	}

	events, _ := store.LoadAll(context.Background())
	if len(events) != 2 {
		t.Fatalf("got %d rows, want 2", len(events))
	}
}

func TestRecordCheckOutClosesOpenRowInPlace(t *testing.T) {
	svc, store := newTestService(t, 10*time.Second)
	in := time.Date(2025, 3, 10, 8, 5, 0, 0, time.Local)
	out := time.Date(2025, 3, 10, 17, 10, 0, 0, time.Local)
	now := in
	svc.now = func() time.Time { return now }

	if _, err := svc.Record(context.Background(), "u1", "Alice", CheckIn); err != nil {
		t.Fatalf("check-in: %v", err)
	}

	now = out
	res, err := svc.Record(context.Background(), "u1", "Alice", CheckOut)
	if err != nil {
		t.Fatalf("check-out: %v", err)
	}
	if res.Outcome != OutcomeClosed {
		t.Fatalf("outcome = %q, want %q", res.Outcome, OutcomeClosed)
	}
	if res.Event.CheckInTime == nil || !res.Event.CheckInTime.Equal(in) {
		t.Errorf("result should echo the closed row's check-in time, got %+v", res.Event)
	}
	if res.Event.CheckOutTime == nil || !res.Event.CheckOutTime.Equal(out) {
		t.Errorf("result check-out time = %v, want %v", res.Event.CheckOutTime, out)
	}

	events, _ := store.LoadAll(context.Background())
	if len(events) != 1 {
		t.Fatalf("got %d rows, want 1 (close mutates in place)", len(events))
	}
	evt := events[0]
	if evt.CheckInTime == nil || evt.CheckOutTime == nil {
		t.Fatalf("row should carry both times, got %+v", evt)
	}
	if dur, _ := evt.SessionDuration(); dur != 9*time.Hour+5*time.Minute {
		t.Errorf("session duration = %v, want 9h5m", dur)
	}
}

func TestRecordCheckOutClosesMostRecentOpen(t *testing.T) {
	svc, store := newTestService(t, time.Second)
	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.Local)
	now := base
	svc.now = func() time.Time { return now }

	if _, err := svc.Record(context.Background(), "u1", "Alice", CheckIn); err != nil {
		t.Fatalf("first check-in: %v", err)
	}
	now = base.Add(2 * time.Hour)
	if _, err := svc.Record(context.Background(), "u1", "Alice", CheckIn); err != nil {
		t.Fatalf("second check-in: %v", err)
	}

	now = base.Add(3 * time.Hour)
	if _, err := svc.Record(context.Background(), "u1", "Alice", CheckOut); err != nil {
		t.Fatalf("check-out: %v", err)
	}

	events, _ := store.LoadAll(context.Background())
	var closed, open int
	for _, evt := range events {
		if evt.Open() {
			open++
			continue
		}
		if evt.CheckOutTime != nil {
			closed++
			if !evt.CheckInTime.Equal(base.Add(2 * time.Hour)) {
				t.Errorf("closed the wrong row: check-in at %v", evt.CheckInTime)
			}
		}
	}
	if closed != 1 || open != 1 {
		t.Fatalf("closed=%d open=%d, want 1 and 1", closed, open)
	}
}

func TestRecordOrphanCheckOut(t *testing.T) {
	svc, store := newTestService(t, 10*time.Second)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)
	svc.now = func() time.Time { return now }

	res, err := svc.Record(context.Background(), "u2", "Bob", CheckOut)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if res.Outcome != OutcomeOrphan {
		t.Fatalf("outcome = %q, want %q", res.Outcome, OutcomeOrphan)
	}

	events, _ := store.LoadAll(context.Background())
	if len(events) != 1 {
		t.Fatalf("got %d rows, want 1", len(events))
	}
	evt := events[0]
	if evt.CheckInTime != nil {
		t.Errorf("orphan row should have no check-in time")
	}
	if evt.CheckOutTime == nil || !evt.CheckOutTime.Equal(now) {
		t.Errorf("check-out time = %v, want %v", evt.CheckOutTime, now)
	}
}

func TestRecordRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t, 10*time.Second)

	if _, err := svc.Record(context.Background(), "", "Alice", CheckIn); err == nil {
		t.Error("empty user id should error")
	}
	if _, err := svc.Record(context.Background(), "u1", "Alice", CheckType("Lunch")); err == nil {
		t.Error("unknown check type should error")
	}
}

func TestRecordMissingNameFallsBackToUserID(t *testing.T) {
	svc, store := newTestService(t, 10*time.Second)
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 8, 0, 0, 0, time.Local) }

	if _, err := svc.Record(context.Background(), "u1", "", CheckIn); err != nil {
		t.Fatalf("Record: %v", err)
	}
	events, _ := store.LoadAll(context.Background())
	if events[0].Name != "u1" {
		t.Errorf("name = %q, want fallback to user id", events[0].Name)
	}
}
