// Package store is the durable-state boundary: one row per room holding the
// serialized aggregate and an integer revision. Reads are unconditional;
// writes are conditional on the revision observed at transaction start, and
// the affected-row count is the CAS signal.
package store

import (
	"context"
	"errors"

	"github.com/moonlitgames/werewolf-backend/internal/game"
)

var (
	ErrNotFound = errors.New("store: room not found")
	ErrExists   = errors.New("store: room already exists")
)

type RoomStore interface {
	// Load returns the current state and revision for a room.
	Load(ctx context.Context, roomID string) (game.State, int64, error)

	// CompareAndSwap writes (state, expected+1) only if the stored revision
	// still equals expected. It returns false, nil when the swap lost.
	CompareAndSwap(ctx context.Context, roomID string, s game.State, expected int64) (bool, error)

	// Create inserts a room at revision 0.
	Create(ctx context.Context, roomID string, s game.State) error

	Delete(ctx context.Context, roomID string) error
}
