package attendance

import (
	"context"
	"time"
)

// Store persists attendance events. Implementations must honor the same
// contract: rows are never dropped implicitly, and the most recently created
// open row is the one a check-out closes. LoadAll makes no ordering promise;
// callers sort by Timestamp when order matters.
type Store interface {
	// Append writes a new event row.
	Append(ctx context.Context, evt Event) error

	// LatestOpenCheckIn returns the most recently created unclosed check-in
	// for the user on the given calendar day, or nil when there is none.
	LatestOpenCheckIn(ctx context.Context, userID string, day time.Time) (*Event, error)

	// CloseLatestOpen sets CheckOutTime on the user's most recently created
	// open row and returns the closed row. It returns nil when no open row
	// exists.
	CloseLatestOpen(ctx context.Context, userID string, at time.Time) (*Event, error)

	// LoadAll returns every event row.
	LoadAll(ctx context.Context) ([]Event, error)

	// LoadByDate returns rows whose Timestamp falls on the given day.
	LoadByDate(ctx context.Context, day time.Time) ([]Event, error)

	// LoadByUser returns rows whose UserID or Name contains the query,
	// case-insensitively.
	LoadByUser(ctx context.Context, query string) ([]Event, error)

	// Delete removes the row matching (userID, eventTime) exactly. It
	// returns true when a row was removed.
	Delete(ctx context.Context, userID string, eventTime time.Time) (bool, error)

	// DeleteUser removes every row for the user and returns the count.
	DeleteUser(ctx context.Context, userID string) (int, error)

	// RenameUser rewrites Name on every historical row for the user and
	// returns the count of rows touched. UserID and all times are left
	// untouched.
	RenameUser(ctx context.Context, userID, newName string) (int, error)

	// Clear removes all rows.
	Clear(ctx context.Context) error
}
