package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresDeviceRepository implements DeviceRepository using PostgreSQL
type PostgresDeviceRepository struct {
	db DBTX
}

// NewPostgresDeviceRepository creates a new PostgreSQL device repository
func NewPostgresDeviceRepository(db DBTX) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{
		db: db,
	}
}

// CreateDevice creates a new device record in the database
func (r *PostgresDeviceRepository) CreateDevice(ctx context.Context, device Device) (Device, error) {
	query := `
		INSERT INTO device (device_id, user_agent, first_seen_at, last_seen_at)
		VALUES ($1, $2, $3, $4)
		RETURNING device_id, user_agent, first_seen_at, last_seen_at
	`

	row := r.db.QueryRow(ctx, query,
		device.DeviceID,
		device.UserAgent,
		device.FirstSeenAt,
		device.LastSeenAt,
	)

	var created Device
	err := row.Scan(&created.DeviceID, &created.UserAgent, &created.FirstSeenAt, &created.LastSeenAt)
	if err != nil {
		slog.Error("Failed to create device", "deviceID", device.DeviceID, "err", err)
		return Device{}, fmt.Errorf("failed to create device: %w", err)
	}

	return created, nil
}

// GetDevice retrieves a device record by its id
func (r *PostgresDeviceRepository) GetDevice(ctx context.Context, deviceID string) (Device, error) {
	query := `
		SELECT device_id, user_agent, first_seen_at, last_seen_at
		FROM device
		WHERE device_id = $1
	`

	row := r.db.QueryRow(ctx, query, deviceID)

	var device Device
	err := row.Scan(&device.DeviceID, &device.UserAgent, &device.FirstSeenAt, &device.LastSeenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrDeviceNotFound
		}
		slog.Error("Failed to get device", "deviceID", deviceID, "err", err)
		return Device{}, fmt.Errorf("failed to get device: %w", err)
	}

	return device, nil
}

// TouchDevice updates the last-seen time and user agent of a device
func (r *PostgresDeviceRepository) TouchDevice(ctx context.Context, deviceID string, seenAt time.Time, userAgent string) (Device, error) {
	query := `
		UPDATE device
		SET last_seen_at = $2,
		    user_agent = CASE WHEN $3 = '' THEN user_agent ELSE $3 END
		WHERE device_id = $1
		RETURNING device_id, user_agent, first_seen_at, last_seen_at
	`

	row := r.db.QueryRow(ctx, query, deviceID, seenAt, userAgent)

	var device Device
	err := row.Scan(&device.DeviceID, &device.UserAgent, &device.FirstSeenAt, &device.LastSeenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrDeviceNotFound
		}
		slog.Error("Failed to touch device", "deviceID", deviceID, "err", err)
		return Device{}, fmt.Errorf("failed to touch device: %w", err)
	}

	return device, nil
}

// FindDevices returns all device records
func (r *PostgresDeviceRepository) FindDevices(ctx context.Context) ([]Device, error) {
	query := `
		SELECT device_id, user_agent, first_seen_at, last_seen_at
		FROM device
		ORDER BY last_seen_at DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to find devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var device Device
		if err := rows.Scan(&device.DeviceID, &device.UserAgent, &device.FirstSeenAt, &device.LastSeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}

	return devices, nil
}
