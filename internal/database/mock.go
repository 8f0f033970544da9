package database

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockFlackRepository struct {
	mock.Mock
}

func (m *MockFlackRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockFlackRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockFlackRepository) GetAccountById(ctx context.Context, id int) (User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockFlackRepository) GetAccountByUsername(ctx context.Context, username string) (User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockFlackRepository) ListAccounts(ctx context.Context, excludeId int, query string) ([]User, error) {
	args := m.Called(ctx, excludeId, query)
	return args.Get(0).([]User), args.Error(1)
}

func (m *MockFlackRepository) GetOrCreateToken(ctx context.Context, accountId int, key string) (Token, error) {
	args := m.Called(ctx, accountId, key)
	return args.Get(0).(Token), args.Error(1)
}

func (m *MockFlackRepository) TokenExists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockFlackRepository) GetAccountByToken(ctx context.Context, key string) (User, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockFlackRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockFlackRepository) GetRoomById(ctx context.Context, id int) (Room, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockFlackRepository) ListRoomsByParticipant(ctx context.Context, accountId int, since *time.Time, inclusive bool) ([]Room, error) {
	args := m.Called(ctx, accountId, since, inclusive)
	return args.Get(0).([]Room), args.Error(1)
}

func (m *MockFlackRepository) CreateLocation(ctx context.Context, latitude, longitude float64) (Location, error) {
	args := m.Called(ctx, latitude, longitude)
	return args.Get(0).(Location), args.Error(1)
}

func (m *MockFlackRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Message), args.Error(1)
}

func (m *MockFlackRepository) GetMessageById(ctx context.Context, id int) (Message, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Message), args.Error(1)
}

func (m *MockFlackRepository) ListMessagesByParticipant(ctx context.Context, accountId int, since *time.Time, inclusive bool) ([]MessageWithRefs, error) {
	args := m.Called(ctx, accountId, since, inclusive)
	return args.Get(0).([]MessageWithRefs), args.Error(1)
}

func (m *MockFlackRepository) CreateFile(ctx context.Context, params CreateFileParams) (File, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(File), args.Error(1)
}

func (m *MockFlackRepository) GetFileById(ctx context.Context, id int) (File, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(File), args.Error(1)
}

func (m *MockFlackRepository) ListFilesByOwner(ctx context.Context, ownerId int) ([]File, error) {
	args := m.Called(ctx, ownerId)
	return args.Get(0).([]File), args.Error(1)
}
