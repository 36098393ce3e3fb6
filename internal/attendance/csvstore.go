package attendance

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var csvHeader = []string{"UserID", "Name", "Timestamp", "CheckType", "CheckInTime", "CheckOutTime"}

// CSVStore keeps the ledger in a single tabular file. Every mutation is a
// full read-mutate-rewrite cycle guarded by a mutex; the store assumes a
// single writing process and is not safe for concurrent multi-process access.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

// NewCSVStore opens (creating if needed) the attendance file at path.
func NewCSVStore(path string) (*CSVStore, error) {
	s := &CSVStore{path: path}
	if err := s.ensureFile(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CSVStore) ensureFile() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return s.writeRows(nil)
	} else if err != nil {
		return fmt.Errorf("stat attendance file: %w", err)
	}
	return nil
}

// load reads every row. A missing or malformed file is reinitialized with the
// canonical header and yields no rows; existing data is never invented.
func (s *CSVStore) load() ([]Event, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		if err := s.ensureFile(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open attendance file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		log.Printf("attendance file malformed, reinitializing: %v", err)
		if err := s.writeRows(nil); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var events []Event
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && rec[0] == csvHeader[0] {
			continue
		}
		if len(rec) < len(csvHeader) {
			log.Printf("skipping short row %d in %s", i+1, s.path)
			continue
		}
		evt, err := decodeRow(rec)
		if err != nil {
			log.Printf("skipping unreadable row %d in %s: %v", i+1, s.path, err)
			continue
		}
		events = append(events, evt)
	}
	return events, nil
}

func decodeRow(rec []string) (Event, error) {
	ts, err := time.ParseInLocation(TimeLayout, rec[2], time.Local)
	if err != nil {
		return Event{}, fmt.Errorf("timestamp: %w", err)
	}
	ct, err := ParseCheckType(rec[3])
	if err != nil {
		return Event{}, err
	}
	in, err := parseOptional(rec[4])
	if err != nil {
		return Event{}, fmt.Errorf("check-in time: %w", err)
	}
	out, err := parseOptional(rec[5])
	if err != nil {
		return Event{}, fmt.Errorf("check-out time: %w", err)
	}
	return Event{
		UserID:       rec[0],
		Name:         rec[1],
		Timestamp:    ts,
		CheckType:    ct,
		CheckInTime:  in,
		CheckOutTime: out,
	}, nil
}

// writeRows rewrites the whole file. Write failures surface to the caller.
func (s *CSVStore) writeRows(events []Event) error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create attendance file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, evt := range events {
		rec := []string{
			evt.UserID,
			evt.Name,
			evt.Timestamp.Format(TimeLayout),
			string(evt.CheckType),
			formatOptional(evt.CheckInTime),
			formatOptional(evt.CheckOutTime),
		}
		if err := w.Write(rec); err != nil {
			f.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush attendance file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close attendance file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace attendance file: %w", err)
	}
	return nil
}

// Append writes a new event row.
func (s *CSVStore) Append(ctx context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	events, err := s.load()
	if err != nil {
		return err
	}
	return s.writeRows(append(events, evt))
}

// LatestOpenCheckIn returns the most recently created unclosed check-in for
// the user on the given day, or nil.
func (s *CSVStore) LatestOpenCheckIn(ctx context.Context, userID string, day time.Time) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events, err := s.load()
	if err != nil {
		return nil, err
	}
	var latest *Event
	for i := range events {
		evt := events[i]
		if evt.UserID != userID || !evt.Open() || !sameDay(evt.Timestamp, day) {
			continue
		}
		if latest == nil || evt.Timestamp.After(latest.Timestamp) {
			latest = &events[i]
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

// CloseLatestOpen fills CheckOutTime on the user's most recently created open
// row, mutating in place rather than appending a duplicate.
func (s *CSVStore) CloseLatestOpen(ctx context.Context, userID string, at time.Time) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events, err := s.load()
	if err != nil {
		return nil, err
	}
	idx := -1
	for i := range events {
		if events[i].UserID != userID || !events[i].Open() {
			continue
		}
		if idx < 0 || events[i].Timestamp.After(events[idx].Timestamp) {
			idx = i
		}
	}
	if idx < 0 {
		return nil, nil
	}
	t := at
	events[idx].CheckOutTime = &t
	if err := s.writeRows(events); err != nil {
		return nil, err
	}
	closed := events[idx]
	return &closed, nil
}

// LoadAll returns every event row.
func (s *CSVStore) LoadAll(ctx context.Context) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// LoadByDate returns rows recorded on the given calendar day.
func (s *CSVStore) LoadByDate(ctx context.Context, day time.Time) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []Event
	for _, evt := range events {
		if sameDay(evt.Timestamp, day) {
			out = append(out, evt)
		}
	}
	return out, nil
}

// LoadByUser returns rows whose UserID or Name contains query, ignoring case.
func (s *CSVStore) LoadByUser(ctx context.Context, query string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events, err := s.load()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []Event
	for _, evt := range events {
		if strings.Contains(strings.ToLower(evt.UserID), q) ||
			strings.Contains(strings.ToLower(evt.Name), q) {
			out = append(out, evt)
		}
	}
	return out, nil
}

// Delete removes the row matching (userID, eventTime) exactly.
func (s *CSVStore) Delete(ctx context.Context, userID string, eventTime time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events, err := s.load()
	if err != nil {
		return false, err
	}
	kept := events[:0]
	removed := false
	for _, evt := range events {
		if !removed && evt.UserID == userID && evt.Timestamp.Equal(eventTime) {
			removed = true
			continue
		}
		kept = append(kept, evt)
	}
	if !removed {
		return false, nil
	}
	if err := s.writeRows(kept); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteUser removes every row for the user.
func (s *CSVStore) DeleteUser(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events, err := s.load()
	if err != nil {
		return 0, err
	}
	kept := events[:0]
	removed := 0
	for _, evt := range events {
		if evt.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, evt)
	}
	if removed == 0 {
		return 0, nil
	}
	if err := s.writeRows(kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// RenameUser rewrites the denormalized Name on all of the user's rows.
func (s *CSVStore) RenameUser(ctx context.Context, userID, newName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events, err := s.load()
	if err != nil {
		return 0, err
	}
	touched := 0
	for i := range events {
		if events[i].UserID == userID && events[i].Name != newName {
			events[i].Name = newName
			touched++
		}
	}
	if touched == 0 {
		return 0, nil
	}
	if err := s.writeRows(events); err != nil {
		return 0, err
	}
	return touched, nil
}

// Clear removes all rows, leaving the canonical header in place.
func (s *CSVStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeRows(nil)
}
