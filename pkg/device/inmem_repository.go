package device

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrDeviceNotFound is returned when a device id has no server-side record.
var ErrDeviceNotFound = errors.New("device not found")

// InMemDeviceRepository implements DeviceRepository using an in-memory map
type InMemDeviceRepository struct {
	devices map[string]Device
	mu      sync.Mutex
}

// NewInMemDeviceRepository creates a new in-memory device repository
func NewInMemDeviceRepository() *InMemDeviceRepository {
	return &InMemDeviceRepository{
		devices: make(map[string]Device),
	}
}

// CreateDevice creates a new device record in memory
func (r *InMemDeviceRepository) CreateDevice(ctx context.Context, device Device) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[device.DeviceID]; exists {
		return Device{}, errors.New("device already exists")
	}

	r.devices[device.DeviceID] = device
	slog.Debug("Device created", "deviceID", device.DeviceID)
	return device, nil
}

// GetDevice retrieves a device record by its id
func (r *InMemDeviceRepository) GetDevice(ctx context.Context, deviceID string) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, exists := r.devices[deviceID]
	if !exists {
		slog.Debug("Device not found", "deviceID", deviceID)
		return Device{}, ErrDeviceNotFound
	}
	return device, nil
}

// TouchDevice updates the last-seen time and user agent of a device
func (r *InMemDeviceRepository) TouchDevice(ctx context.Context, deviceID string, seenAt time.Time, userAgent string) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, exists := r.devices[deviceID]
	if !exists {
		return Device{}, ErrDeviceNotFound
	}

	device.LastSeenAt = seenAt
	if userAgent != "" {
		device.UserAgent = userAgent
	}
	r.devices[deviceID] = device
	return device, nil
}

// FindDevices returns all device records
func (r *InMemDeviceRepository) FindDevices(ctx context.Context) ([]Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices := make([]Device, 0, len(r.devices))
	for _, device := range r.devices {
		devices = append(devices, device)
	}
	return devices, nil
}
