package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sisbarc/camshell/internal/storage"
)

// MockDeviceStore is a mock implementation of storage.DeviceStore.
type MockDeviceStore struct {
	mock.Mock
}

//nolint:revive
func (m *MockDeviceStore) Upsert(ctx context.Context, d storage.Device) (bool, error) {
	args := m.Called(ctx, d)
	return args.Bool(0), args.Error(1)
}

//nolint:revive
func (m *MockDeviceStore) Get(ctx context.Context, instance string) (*storage.Device, error) {
	args := m.Called(ctx, instance)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Device), args.Error(1)
}

//nolint:revive
func (m *MockDeviceStore) List(ctx context.Context) ([]storage.Device, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Device), args.Error(1)
}
