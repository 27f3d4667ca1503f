package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDeviceService(t *testing.T) *DeviceService {
	repo := NewInMemDeviceRepository()
	service := NewDeviceService(repo)
	return service
}

func TestDeviceService_AllocatesOnce(t *testing.T) {
	service := setupDeviceService(t)
	ctx := context.Background()

	deviceID, err := service.EnsureDeviceID(ctx, "", "test-agent")
	require.NoError(t, err)
	require.NotEmpty(t, deviceID)

	// The same id survives subsequent requests untouched.
	again, err := service.EnsureDeviceID(ctx, deviceID, "test-agent")
	require.NoError(t, err)
	assert.Equal(t, deviceID, again)
}

func TestDeviceService_KeepsPresentedID(t *testing.T) {
	service := setupDeviceService(t)
	ctx := context.Background()

	// An id this server has never seen is registered, not replaced.
	deviceID, err := service.EnsureDeviceID(ctx, "client-allocated-id", "agent")
	require.NoError(t, err)
	assert.Equal(t, "client-allocated-id", deviceID)

	device, err := service.GetDevice(ctx, "client-allocated-id")
	require.NoError(t, err)
	assert.Equal(t, "agent", device.UserAgent)
}

func TestDeviceService_TouchUpdatesLastSeen(t *testing.T) {
	service := setupDeviceService(t)
	ctx := context.Background()

	deviceID, err := service.EnsureDeviceID(ctx, "", "agent-1")
	require.NoError(t, err)

	first, err := service.GetDevice(ctx, deviceID)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = service.EnsureDeviceID(ctx, deviceID, "agent-2")
	require.NoError(t, err)

	updated, err := service.GetDevice(ctx, deviceID)
	require.NoError(t, err)
	assert.True(t, updated.LastSeenAt.After(first.LastSeenAt))
	assert.Equal(t, "agent-2", updated.UserAgent)
	assert.Equal(t, first.FirstSeenAt, updated.FirstSeenAt)
}

func TestDeviceService_FindAllDevices(t *testing.T) {
	service := setupDeviceService(t)
	ctx := context.Background()

	_, err := service.EnsureDeviceID(ctx, "", "a")
	require.NoError(t, err)
	_, err = service.EnsureDeviceID(ctx, "", "b")
	require.NoError(t, err)

	devices, err := service.FindAllDevices(ctx)
	require.NoError(t, err)
	assert.Len(t, devices, 2)
}

func TestNoOpDeviceService(t *testing.T) {
	service := NewNoOpDeviceService()
	ctx := context.Background()

	deviceID, err := service.EnsureDeviceID(ctx, "", "agent")
	require.NoError(t, err)
	assert.NotEmpty(t, deviceID)

	kept, err := service.EnsureDeviceID(ctx, "keep-me", "agent")
	require.NoError(t, err)
	assert.Equal(t, "keep-me", kept)
}

func TestBuildRepository(t *testing.T) {
	repo, err := BuildRepository(RepositoryKindInMem, nil)
	require.NoError(t, err)
	assert.IsType(t, &InMemDeviceRepository{}, repo)

	repo, err = BuildRepository(RepositoryKindNoOp, nil)
	require.NoError(t, err)
	assert.IsType(t, &NoOpDeviceRepository{}, repo)

	_, err = BuildRepository(RepositoryKindPostgres, nil)
	assert.Error(t, err)

	_, err = BuildRepository("bogus", nil)
	assert.Error(t, err)
}
