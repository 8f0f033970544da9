package database

import (
	"context"
	"errors"
	"time"
)

// ErrTooFewParticipants is returned when a room create or membership
// mutation would leave the room with fewer than two participants.
var ErrTooFewParticipants = errors.New("a room must contain at least 2 participants")

type FlackRepository interface {
	Ping(ctx context.Context) error

	CreateAccount(ctx context.Context, params CreateAccountParams) (User, error)
	GetAccountById(ctx context.Context, id int) (User, error)
	GetAccountByUsername(ctx context.Context, username string) (User, error)
	ListAccounts(ctx context.Context, excludeId int, query string) ([]User, error)

	GetOrCreateToken(ctx context.Context, accountId int, key string) (Token, error)
	TokenExists(ctx context.Context, key string) (bool, error)
	GetAccountByToken(ctx context.Context, key string) (User, error)

	CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error)
	GetRoomById(ctx context.Context, id int) (Room, error)
	// ListRoomsByParticipant filters on since when non-nil: strictly greater
	// for checkpoint anchors, inclusive for the HTTP time_since filter.
	ListRoomsByParticipant(ctx context.Context, accountId int, since *time.Time, inclusive bool) ([]Room, error)

	CreateLocation(ctx context.Context, latitude, longitude float64) (Location, error)
	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	GetMessageById(ctx context.Context, id int) (Message, error)
	ListMessagesByParticipant(ctx context.Context, accountId int, since *time.Time, inclusive bool) ([]MessageWithRefs, error)

	CreateFile(ctx context.Context, params CreateFileParams) (File, error)
	GetFileById(ctx context.Context, id int) (File, error)
	ListFilesByOwner(ctx context.Context, ownerId int) ([]File, error)
}
