package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/ruteri/tee-keymaster-state/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockStateStore implements interfaces.StateStore for testing
type MockStateStore struct {
	mock.Mock
	name string
}

func (m *MockStateStore) Load(ctx context.Context, name string) ([]byte, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStateStore) Save(ctx context.Context, name string, data []byte) error {
	return m.Called(ctx, name, data).Error(0)
}

func (m *MockStateStore) Delete(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockStateStore) Available(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockStateStore) Name() string {
	return m.name
}

func (m *MockStateStore) LocationURI() string {
	return "mock://" + m.name
}

func TestReplicatedStore_Save(t *testing.T) {
	ctx := context.Background()
	data := []byte("snapshot")

	t.Run("writes primary and available mirrors", func(t *testing.T) {
		primary := &MockStateStore{name: "primary"}
		up := &MockStateStore{name: "up"}
		down := &MockStateStore{name: "down"}

		primary.On("Save", ctx, "rec", data).Return(nil)
		up.On("Available", ctx).Return(true)
		up.On("Save", ctx, "rec", data).Return(errors.New("mirror failure"))
		down.On("Available", ctx).Return(false)

		store := NewReplicatedStore(primary, []interfaces.StateStore{up, down}, testLogger())
		assert.NoError(t, store.Save(ctx, "rec", data))

		primary.AssertExpectations(t)
		up.AssertExpectations(t)
		down.AssertExpectations(t)
		down.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("primary failure fails the save", func(t *testing.T) {
		primary := &MockStateStore{name: "primary"}
		mirror := &MockStateStore{name: "mirror"}
		primary.On("Save", ctx, "rec", data).Return(interfaces.ErrBackendUnavailable)

		store := NewReplicatedStore(primary, []interfaces.StateStore{mirror}, testLogger())
		assert.ErrorIs(t, store.Save(ctx, "rec", data), interfaces.ErrBackendUnavailable)
		mirror.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestReplicatedStore_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("primary available", func(t *testing.T) {
		primary := &MockStateStore{name: "primary"}
		mirror := &MockStateStore{name: "mirror"}
		primary.On("Available", ctx).Return(true)
		primary.On("Load", ctx, "rec").Return(nil, interfaces.ErrRecordNotFound)

		store := NewReplicatedStore(primary, []interfaces.StateStore{mirror}, testLogger())
		_, err := store.Load(ctx, "rec")
		assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)
		mirror.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
	})

	t.Run("primary down is not served from mirrors", func(t *testing.T) {
		primary := &MockStateStore{name: "primary"}
		mirror := &MockStateStore{name: "mirror"}
		primary.On("Available", ctx).Return(false)

		store := NewReplicatedStore(primary, []interfaces.StateStore{mirror}, testLogger())
		_, err := store.Load(ctx, "rec")
		assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
		assert.False(t, store.Available(ctx))
		mirror.AssertNotCalled(t, "Available", mock.Anything)
		mirror.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
	})
}

func TestReplicatedStore_Delete(t *testing.T) {
	ctx := context.Background()
	primary := &MockStateStore{name: "primary"}
	mirror := &MockStateStore{name: "mirror"}
	primary.On("Delete", ctx, "rec").Return(nil)
	mirror.On("Delete", ctx, "rec").Return(errors.New("ignored"))

	store := NewReplicatedStore(primary, []interfaces.StateStore{mirror}, testLogger())
	assert.NoError(t, store.Delete(ctx, "rec"))
	assert.Equal(t, "replicated:[mock://primary,mock://mirror]", store.LocationURI())
	primary.AssertExpectations(t)
	mirror.AssertExpectations(t)
}
