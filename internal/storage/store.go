// Package storage provides persistence for users, rooms and bills behind
// the Store interface, with SQLite and in-memory implementations.
package storage

import (
	"context"
	"errors"

	"splitperfect/internal/core"
	"splitperfect/internal/engine"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyMember = errors.New("already a member of this room")
)

// RoomInfo is a room plus its member count, as listed to clients.
type RoomInfo struct {
	core.Room
	MemberCount int
}

// Store is the persistence boundary. Implementations must make
// RoomSnapshot a consistent read: the engine is never run against a
// partially written bill.
type Store interface {
	// UpsertGoogleUser creates the user on first sign-in and refreshes
	// name/avatar afterwards. The returned user always has its ID set.
	UpsertGoogleUser(ctx context.Context, googleID, email, name, avatar string) (*core.User, error)
	GetUser(ctx context.Context, id int64) (*core.User, error)

	// CreateRoom persists the room and enrolls the creator as its first
	// member in the same transaction.
	CreateRoom(ctx context.Context, room *core.Room) error
	GetRoom(ctx context.Context, id int64) (*core.Room, error)
	GetRoomBySecret(ctx context.Context, secret string) (*core.Room, error)
	ListRoomsForUser(ctx context.Context, userID int64) ([]RoomInfo, error)
	DeleteRoom(ctx context.Context, id int64) error

	AddMember(ctx context.Context, roomID, userID int64) error
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
	ListMembers(ctx context.Context, roomID int64) ([]core.User, error)
	MemberCount(ctx context.Context, roomID int64) (int, error)

	// CreateBill persists the bill, its items and their sharer sets
	// atomically, populating bill and item IDs.
	CreateBill(ctx context.Context, bill *core.Bill) error
	GetBill(ctx context.Context, id int64) (*core.Bill, error)
	ListRoomBills(ctx context.Context, roomID int64) ([]core.Bill, error)
	DeleteBill(ctx context.Context, id int64) error

	// RoomSnapshot reads the room, its membership and all bills with
	// items in one consistent view for the settlement engine.
	RoomSnapshot(ctx context.Context, roomID int64) (engine.Input, error)

	// Parsed receipt drafts produced by the parse worker, keyed by the
	// uploaded image key.
	SaveParsedReceipt(ctx context.Context, imageKey string, payload []byte) error
	GetParsedReceipt(ctx context.Context, imageKey string) ([]byte, error)

	Close() error
}
