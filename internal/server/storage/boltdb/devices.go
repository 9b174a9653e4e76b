package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/listkeeper/listsync/internal/models"
	"github.com/listkeeper/listsync/internal/server/storage"
)

// SaveDevice сохраняет (создает или обновляет) запись устройства аккаунта
func (s *Storage) SaveDevice(ctx context.Context, user string, device *models.DeviceKeyInfo) error {
	data, err := json.Marshal(device)
	if err != nil {
		return fmt.Errorf("failed to marshal device: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		ub, err := userBucket(tx, user)
		if err != nil {
			return err
		}
		devices, err := ub.CreateBucketIfNotExists(bucketDevices)
		if err != nil {
			return fmt.Errorf("failed to create devices bucket: %w", err)
		}
		if err := devices.Put([]byte(device.ClientID), data); err != nil {
			return fmt.Errorf("failed to save device: %w", err)
		}
		return nil
	})
}

// GetDevice возвращает устройство по clientID внутри аккаунта
func (s *Storage) GetDevice(ctx context.Context, user, clientID string) (*models.DeviceKeyInfo, error) {
	var device *models.DeviceKeyInfo

	err := s.db.View(func(tx *bbolt.Tx) error {
		ub := userBucketView(tx, user)
		if ub == nil {
			return storage.ErrDeviceNotFound
		}
		devices := ub.Bucket(bucketDevices)
		if devices == nil {
			return storage.ErrDeviceNotFound
		}
		data := devices.Get([]byte(clientID))
		if data == nil {
			return storage.ErrDeviceNotFound
		}

		device = &models.DeviceKeyInfo{}
		if err := json.Unmarshal(data, device); err != nil {
			return fmt.Errorf("failed to unmarshal device: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return device, nil
}

// FindDevice ищет clientID по всем аккаунтам.
// Используется при подключении без маршрутизации по пути
func (s *Storage) FindDevice(ctx context.Context, clientID string) (string, *models.DeviceKeyInfo, error) {
	var owner string
	var device *models.DeviceKeyInfo

	err := s.db.View(func(tx *bbolt.Tx) error {
		users := tx.Bucket(bucketUsers)
		if users == nil {
			return storage.ErrDeviceNotFound
		}

		found := false
		err := users.ForEachBucket(func(name []byte) error {
			if found {
				return nil
			}
			devices := users.Bucket(name).Bucket(bucketDevices)
			if devices == nil {
				return nil
			}
			data := devices.Get([]byte(clientID))
			if data == nil {
				return nil
			}

			device = &models.DeviceKeyInfo{}
			if err := json.Unmarshal(data, device); err != nil {
				return fmt.Errorf("failed to unmarshal device: %w", err)
			}
			owner = string(name)
			found = true
			return nil
		})
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrDeviceNotFound
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return owner, device, nil
}

// ListDevices возвращает все устройства аккаунта
func (s *Storage) ListDevices(ctx context.Context, user string) ([]*models.DeviceKeyInfo, error) {
	var out []*models.DeviceKeyInfo

	err := s.db.View(func(tx *bbolt.Tx) error {
		ub := userBucketView(tx, user)
		if ub == nil {
			return nil
		}
		devices := ub.Bucket(bucketDevices)
		if devices == nil {
			return nil
		}
		return devices.ForEach(func(_, data []byte) error {
			device := &models.DeviceKeyInfo{}
			if err := json.Unmarshal(data, device); err != nil {
				return fmt.Errorf("failed to unmarshal device: %w", err)
			}
			out = append(out, device)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteDevice удаляет запись устройства
func (s *Storage) DeleteDevice(ctx context.Context, user, clientID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		ub := userBucketView(tx, user)
		if ub == nil {
			return storage.ErrDeviceNotFound
		}
		devices := ub.Bucket(bucketDevices)
		if devices == nil || devices.Get([]byte(clientID)) == nil {
			return storage.ErrDeviceNotFound
		}
		if err := devices.Delete([]byte(clientID)); err != nil {
			return fmt.Errorf("failed to delete device: %w", err)
		}
		return nil
	})
}
