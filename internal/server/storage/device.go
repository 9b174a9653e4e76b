package storage

import (
	"context"

	"github.com/listkeeper/listsync/internal/models"
)

// DeviceStorage defines interface for device registry persistence.
// Каждая запись принадлежит ровно одному аккаунту
type DeviceStorage interface {
	// SaveDevice creates or updates a device record for the user
	SaveDevice(ctx context.Context, user string, device *models.DeviceKeyInfo) error

	// GetDevice retrieves device by clientID within the user namespace
	// Returns ErrDeviceNotFound if device doesn't exist
	GetDevice(ctx context.Context, user, clientID string) (*models.DeviceKeyInfo, error)

	// FindDevice searches all user namespaces for a clientID.
	// Используется при подключении без маршрутизации по пути.
	// Returns ErrDeviceNotFound if device doesn't exist
	FindDevice(ctx context.Context, clientID string) (string, *models.DeviceKeyInfo, error)

	// ListDevices returns all devices registered for the user
	ListDevices(ctx context.Context, user string) ([]*models.DeviceKeyInfo, error)

	// DeleteDevice removes a device record
	// Returns ErrDeviceNotFound if device doesn't exist
	DeleteDevice(ctx context.Context, user, clientID string) error
}
