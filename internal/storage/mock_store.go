package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

type MockFileStore struct {
	mock.Mock
}

func (m *MockFileStore) Put(ctx context.Context, r io.Reader, size int64, contentType string) (StoredFile, error) {
	args := m.Called(ctx, r, size, contentType)
	return args.Get(0).(StoredFile), args.Error(1)
}
