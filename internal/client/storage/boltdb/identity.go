package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/listkeeper/listsync/internal/client/storage"
)

var identityKey = []byte("current")

// SaveIdentity stores the identity issued at pairing
func (s *Storage) SaveIdentity(_ context.Context, identity *storage.Identity) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketIdentity)
		if bucket == nil {
			return fmt.Errorf("identity bucket not found")
		}

		data, err := json.Marshal(identity)
		if err != nil {
			return fmt.Errorf("failed to marshal identity: %w", err)
		}

		if err := bucket.Put(identityKey, data); err != nil {
			return fmt.Errorf("failed to save identity: %w", err)
		}
		return nil
	})
}

// GetIdentity retrieves the stored identity
// Returns storage.ErrIdentityNotFound if the device has not been paired
func (s *Storage) GetIdentity(_ context.Context) (*storage.Identity, error) {
	var identity *storage.Identity

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketIdentity)
		if bucket == nil {
			return fmt.Errorf("identity bucket not found")
		}

		data := bucket.Get(identityKey)
		if data == nil {
			return storage.ErrIdentityNotFound
		}

		identity = &storage.Identity{}
		if err := json.Unmarshal(data, identity); err != nil {
			return fmt.Errorf("failed to unmarshal identity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// DeleteIdentity removes the stored identity (unpair)
func (s *Storage) DeleteIdentity(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketIdentity)
		if bucket == nil {
			return fmt.Errorf("identity bucket not found")
		}
		return bucket.Delete(identityKey)
	})
}
