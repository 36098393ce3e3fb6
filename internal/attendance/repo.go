package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists attendance events in Postgres behind the same contract
// as the CSV store.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo and self-heals the schema.
func NewRepository(ctx context.Context, db *sql.DB) (*Repository, error) {
	r := &Repository{db: db}
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS attendance_events (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			check_type TEXT NOT NULL,
			check_in_time TIMESTAMPTZ,
			check_out_time TIMESTAMPTZ
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure attendance schema: %w", err)
	}
	return nil
}

const eventColumns = `user_id, name, ts, check_type, check_in_time, check_out_time`

func scanEvent(row interface{ Scan(...any) error }) (Event, error) {
	var evt Event
	var ct string
	var in, out sql.NullTime
	if err := row.Scan(&evt.UserID, &evt.Name, &evt.Timestamp, &ct, &in, &out); err != nil {
		return Event{}, err
	}
	evt.CheckType = CheckType(ct)
	if in.Valid {
		t := in.Time
		evt.CheckInTime = &t
	}
	if out.Valid {
		t := out.Time
		evt.CheckOutTime = &t
	}
	return evt, nil
}

// Append writes a new event row.
func (r *Repository) Append(ctx context.Context, evt Event) error {
	if evt.UserID == "" {
		return errors.New("user id required")
	}
	var in, out any
	if evt.CheckInTime != nil {
		in = *evt.CheckInTime
	}
	if evt.CheckOutTime != nil {
		out = *evt.CheckOutTime
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_events (id, user_id, name, ts, check_type, check_in_time, check_out_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, uuid.NewString(), evt.UserID, evt.Name, evt.Timestamp, string(evt.CheckType), in, out)
	return err
}

// LatestOpenCheckIn returns the most recent unclosed check-in for the user on
// the given day, or nil.
func (r *Repository) LatestOpenCheckIn(ctx context.Context, userID string, day time.Time) (*Event, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	row := r.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM attendance_events
		WHERE user_id = $1
		  AND check_in_time IS NOT NULL
		  AND check_out_time IS NULL
		  AND ts >= $2 AND ts < $3
		ORDER BY ts DESC
		LIMIT 1
	`, userID, start, start.AddDate(0, 0, 1))
	evt, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &evt, nil
}

// CloseLatestOpen fills check_out_time on the most recently created open row
// and returns the closed row.
func (r *Repository) CloseLatestOpen(ctx context.Context, userID string, at time.Time) (*Event, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE attendance_events SET check_out_time = $2
		WHERE id = (
			SELECT id FROM attendance_events
			WHERE user_id = $1 AND check_in_time IS NOT NULL AND check_out_time IS NULL
			ORDER BY ts DESC
			LIMIT 1
		)
		RETURNING `+eventColumns+`
	`, userID, at)
	evt, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &evt, nil
}

func (r *Repository) queryEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}

// LoadAll returns every event row.
func (r *Repository) LoadAll(ctx context.Context) ([]Event, error) {
	return r.queryEvents(ctx, `SELECT `+eventColumns+` FROM attendance_events`)
}

// LoadByDate returns rows recorded on the given calendar day.
func (r *Repository) LoadByDate(ctx context.Context, day time.Time) ([]Event, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return r.queryEvents(ctx, `
		SELECT `+eventColumns+` FROM attendance_events WHERE ts >= $1 AND ts < $2
	`, start, start.AddDate(0, 0, 1))
}

// LoadByUser returns rows whose user id or name contains the query.
func (r *Repository) LoadByUser(ctx context.Context, query string) ([]Event, error) {
	like := "%" + query + "%"
	return r.queryEvents(ctx, `
		SELECT `+eventColumns+` FROM attendance_events
		WHERE user_id ILIKE $1 OR name ILIKE $1
	`, like)
}

// Delete removes the row matching (userID, eventTime) exactly.
func (r *Repository) Delete(ctx context.Context, userID string, eventTime time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM attendance_events WHERE user_id = $1 AND ts = $2
	`, userID, eventTime)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteUser removes every row for the user.
func (r *Repository) DeleteUser(ctx context.Context, userID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance_events WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// RenameUser rewrites the denormalized name on all of the user's rows.
func (r *Repository) RenameUser(ctx context.Context, userID, newName string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_events SET name = $2 WHERE user_id = $1 AND name <> $2
	`, userID, newName)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Clear removes all rows.
func (r *Repository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM attendance_events`)
	return err
}
