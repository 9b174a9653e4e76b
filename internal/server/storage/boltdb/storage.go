// Package boltdb реализует персистентность аккаунтов на BoltDB:
// реестр устройств, документ списков и снапшоты, по bucket-дереву
// на каждый аккаунт.
package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"
)

var (
	// BoltDB bucket names
	bucketUsers     = []byte("users")
	bucketDevices   = []byte("devices")
	bucketSnapshots = []byte("snapshots")
	keyListData     = []byte("listdata")
)

// Storage represents BoltDB storage implementation for the server
type Storage struct {
	db *bbolt.DB
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := bbolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	storage := &Storage{db: db}

	if err := storage.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// initBuckets создает корневой bucket аккаунтов
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketUsers); err != nil {
			return fmt.Errorf("failed to create users bucket: %w", err)
		}
		return nil
	})
}

// userBucket возвращает bucket аккаунта, создавая его при необходимости
func userBucket(tx *bbolt.Tx, user string) (*bbolt.Bucket, error) {
	users := tx.Bucket(bucketUsers)
	if users == nil {
		return nil, fmt.Errorf("users bucket is missing")
	}
	b, err := users.CreateBucketIfNotExists([]byte(user))
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket for user %q: %w", user, err)
	}
	return b, nil
}

// userBucketView возвращает bucket аккаунта только для чтения (может быть nil)
func userBucketView(tx *bbolt.Tx, user string) *bbolt.Bucket {
	users := tx.Bucket(bucketUsers)
	if users == nil {
		return nil
	}
	return users.Bucket([]byte(user))
}
