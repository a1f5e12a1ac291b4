package storage

import (
	"context"
	"fmt"
	"time"
)

// Device is a camera seen by discovery.
type Device struct {
	Instance   string    `json:"instance"`
	Host       string    `json:"host"`
	Addr       string    `json:"addr"`
	Port       int       `json:"port"`
	Board      string    `json:"board"`
	Model      string    `json:"model"`
	StreamPort int       `json:"stream_port"`
	FrameSize  int       `json:"framesize"`
	PixFormat  int       `json:"pixformat"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// DeviceStore persists discovered devices.
type DeviceStore interface {
	// Upsert inserts d or refreshes an existing row with the same instance.
	// FirstSeen is kept from the original row. It reports whether the device
	// was new.
	Upsert(ctx context.Context, d Device) (bool, error)
	// Get returns the device or a *NotFoundError.
	Get(ctx context.Context, instance string) (*Device, error)
	// List returns all devices, most recently seen first.
	List(ctx context.Context) ([]Device, error)
}

// NotFoundError is returned when a requested record does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}
