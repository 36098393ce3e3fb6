package attendance

import (
	"context"
	"errors"
	"log"
	"time"

	"facetrack/internal/metrics"
)

// Outcome describes what the engine did with a recognition event.
type Outcome string

const (
	// OutcomeOpened means a new session row was created.
	OutcomeOpened Outcome = "opened"
	// OutcomeDuplicate means the check-in was suppressed by the cooldown guard.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeClosed means an open session row was completed in place.
	OutcomeClosed Outcome = "closed"
	// OutcomeOrphan means a check-out arrived with no open session and was
	// recorded as an orphan row.
	OutcomeOrphan Outcome = "orphan"
)

// RecordResult reports the ledger effect of one recognition event.
type RecordResult struct {
	Outcome Outcome `json:"outcome"`
	Event   Event   `json:"event"`
}

// Service is the reconciliation engine: it decides whether an incoming
// recognition event opens a session, closes one, is a duplicate, or becomes
// an orphan row.
type Service struct {
	store    Store
	cooldown time.Duration
	now      func() time.Time
}

// NewService creates an engine backed by a store.
func NewService(store Store, cooldown time.Duration) *Service {
	if cooldown <= 0 {
		cooldown = 10 * time.Second
	}
	return &Service{store: store, cooldown: cooldown, now: time.Now}
}

// Record applies one recognition event to the ledger. Cooldown duplicates are
// rejected silently: they return OutcomeDuplicate with the existing open row
// and no error, since repeated detections of the same presence are expected.
func (s *Service) Record(ctx context.Context, userID, name string, checkType CheckType) (RecordResult, error) {
	if userID == "" {
		return RecordResult{}, errors.New("user id required")
	}
	if name == "" {
		// Lookup misses degrade to the raw id, never fail the write path.
		name = userID
	}
	switch checkType {
	case CheckIn:
		return s.recordCheckIn(ctx, userID, name)
	case CheckOut:
		return s.recordCheckOut(ctx, userID, name)
	}
	return RecordResult{}, errors.New("unknown check type")
}

func (s *Service) recordCheckIn(ctx context.Context, userID, name string) (RecordResult, error) {
	now := s.now()
	open, err := s.store.LatestOpenCheckIn(ctx, userID, now)
	if err != nil {
		return RecordResult{}, err
	}
	if open != nil {
		at := open.Timestamp
		if open.CheckInTime != nil {
			at = *open.CheckInTime
		}
		if now.Sub(at) <= s.cooldown {
			log.Printf("duplicate check-in for %s within cooldown, skipping", userID)
			metrics.DuplicatesRejected.Inc()
			return RecordResult{Outcome: OutcomeDuplicate, Event: *open}, nil
		}
	}

	t := now
	evt := Event{
		UserID:      userID,
		Name:        name,
		Timestamp:   now,
		CheckType:   CheckIn,
		CheckInTime: &t,
	}
	if err := s.store.Append(ctx, evt); err != nil {
		return RecordResult{}, err
	}
	metrics.EventsRecorded.WithLabelValues(string(CheckIn)).Inc()
	return RecordResult{Outcome: OutcomeOpened, Event: evt}, nil
}

func (s *Service) recordCheckOut(ctx context.Context, userID, name string) (RecordResult, error) {
	now := s.now()
	closed, err := s.store.CloseLatestOpen(ctx, userID, now)
	if err != nil {
		return RecordResult{}, err
	}
	if closed != nil {
		metrics.EventsRecorded.WithLabelValues(string(CheckOut)).Inc()
		// Echo the closed ledger row so callers see the full session.
		return RecordResult{Outcome: OutcomeClosed, Event: *closed}, nil
	}

	// No open session: record an orphan row rather than dropping the event.
	t := now
	evt := Event{
		UserID:       userID,
		Name:         name,
		Timestamp:    now,
		CheckType:    CheckOut,
		CheckOutTime: &t,
	}
	if err := s.store.Append(ctx, evt); err != nil {
		return RecordResult{}, err
	}
	log.Printf("orphan check-out recorded for %s", userID)
	metrics.EventsRecorded.WithLabelValues(string(CheckOut)).Inc()
	metrics.OrphanCheckOuts.Inc()
	return RecordResult{Outcome: OutcomeOrphan, Event: evt}, nil
}
