package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"telecloud/internal/domain"
)

type MockRemoteDeleter struct {
	mock.Mock
}

func (m *MockRemoteDeleter) DeleteRemoteObject(ctx context.Context, providerRef string) error {
	args := m.Called(ctx, providerRef)
	return args.Error(0)
}

func refFile(ref string) domain.File {
	f := domain.File{ID: uuid.New(), OwnerID: "u1"}
	if ref != "" {
		f.ProviderRef = &ref
	}
	return f
}

func TestRemoteCleaner_ContinuesPastFailures(t *testing.T) {
	deleter := new(MockRemoteDeleter)
	deleter.On("DeleteRemoteObject", mock.Anything, "1:1").Return(errors.New("message can't be deleted"))
	deleter.On("DeleteRemoteObject", mock.Anything, "1:2").Return(nil)

	cleaner := NewRemoteCleaner(deleter)
	err := cleaner.Purge(context.Background(), []domain.File{refFile("1:1"), refFile(""), refFile("1:2")})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "message can't be deleted")
	deleter.AssertNumberOfCalls(t, "DeleteRemoteObject", 2)
	deleter.AssertExpectations(t)
}

func TestRemoteCleaner_AllSucceed(t *testing.T) {
	deleter := new(MockRemoteDeleter)
	deleter.On("DeleteRemoteObject", mock.Anything, mock.Anything).Return(nil)

	err := NewRemoteCleaner(deleter).Purge(context.Background(), []domain.File{refFile("a"), refFile("b")})

	assert.NoError(t, err)
	deleter.AssertNumberOfCalls(t, "DeleteRemoteObject", 2)
}
