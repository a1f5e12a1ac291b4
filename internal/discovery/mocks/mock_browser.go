package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sisbarc/camshell/internal/storage"
)

// MockBrowser is a mock implementation of discovery.Browser.
type MockBrowser struct {
	mock.Mock
}

//nolint:revive
func (m *MockBrowser) Browse(ctx context.Context) ([]storage.Device, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Device), args.Error(1)
}
