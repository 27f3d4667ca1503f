package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DeviceService allocates device ids and maintains their server-side
// records. The id presented by a client is authoritative: once allocated it
// is never replaced, regardless of authentication state changes.
type DeviceService struct {
	deviceRepository DeviceRepository
}

// NewDeviceService creates a new device service with the given repository
func NewDeviceService(deviceRepository DeviceRepository) *DeviceService {
	return &DeviceService{
		deviceRepository: deviceRepository,
	}
}

// EnsureDeviceID returns the presented device id, registering or touching
// its server-side record, or allocates a fresh id when none was presented.
func (s *DeviceService) EnsureDeviceID(ctx context.Context, presentedID, userAgent string) (string, error) {
	now := time.Now().UTC()

	if presentedID == "" {
		deviceID := uuid.New().String()
		slog.Debug("Allocating new device id", "deviceID", deviceID)
		_, err := s.deviceRepository.CreateDevice(ctx, Device{
			DeviceID:    deviceID,
			UserAgent:   userAgent,
			FirstSeenAt: now,
			LastSeenAt:  now,
		})
		if err != nil {
			return "", fmt.Errorf("failed to register device: %w", err)
		}
		return deviceID, nil
	}

	_, err := s.deviceRepository.TouchDevice(ctx, presentedID, now, userAgent)
	if err == nil {
		return presentedID, nil
	}
	if !errors.Is(err, ErrDeviceNotFound) {
		return "", fmt.Errorf("failed to touch device: %w", err)
	}

	// First time this server sees the id: register, keep the client's id.
	slog.Debug("Registering presented device id", "deviceID", presentedID)
	_, err = s.deviceRepository.CreateDevice(ctx, Device{
		DeviceID:    presentedID,
		UserAgent:   userAgent,
		FirstSeenAt: now,
		LastSeenAt:  now,
	})
	if err != nil {
		return "", fmt.Errorf("failed to register device: %w", err)
	}
	return presentedID, nil
}

// GetDevice returns the server-side record for a device id.
func (s *DeviceService) GetDevice(ctx context.Context, deviceID string) (Device, error) {
	return s.deviceRepository.GetDevice(ctx, deviceID)
}

// FindAllDevices returns all devices known to the server
func (s *DeviceService) FindAllDevices(ctx context.Context) ([]Device, error) {
	devices, err := s.deviceRepository.FindDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find devices: %w", err)
	}
	return devices, nil
}
