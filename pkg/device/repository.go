package device

import (
	"context"
	"time"
)

// Device is the server-side record for a device id.
type Device struct {
	DeviceID    string    `json:"device_id"`
	UserAgent   string    `json:"user_agent"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// DeviceRepository defines the interface for device storage operations
type DeviceRepository interface {
	CreateDevice(ctx context.Context, device Device) (Device, error)
	GetDevice(ctx context.Context, deviceID string) (Device, error)
	TouchDevice(ctx context.Context, deviceID string, seenAt time.Time, userAgent string) (Device, error)
	FindDevices(ctx context.Context) ([]Device, error)
}
