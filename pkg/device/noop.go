package device

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NoOpDeviceRepository keeps no server-side records. Ids are still
// allocated; lookups behave as if every id is already known.
type NoOpDeviceRepository struct{}

// NewNoOpDeviceRepository creates a repository that stores nothing.
func NewNoOpDeviceRepository() *NoOpDeviceRepository {
	return &NoOpDeviceRepository{}
}

func (r *NoOpDeviceRepository) CreateDevice(ctx context.Context, device Device) (Device, error) {
	return device, nil
}

func (r *NoOpDeviceRepository) GetDevice(ctx context.Context, deviceID string) (Device, error) {
	return Device{DeviceID: deviceID}, nil
}

func (r *NoOpDeviceRepository) TouchDevice(ctx context.Context, deviceID string, seenAt time.Time, userAgent string) (Device, error) {
	return Device{DeviceID: deviceID, UserAgent: userAgent, LastSeenAt: seenAt}, nil
}

func (r *NoOpDeviceRepository) FindDevices(ctx context.Context) ([]Device, error) {
	return nil, nil
}

// NewNoOpDeviceService returns a device service that allocates ids without
// tracking them.
func NewNoOpDeviceService() *DeviceService {
	return NewDeviceService(NewNoOpDeviceRepository())
}

// NewDeviceID allocates a random device id without going through a service.
func NewDeviceID() string {
	return uuid.New().String()
}
