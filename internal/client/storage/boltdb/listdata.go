package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/listkeeper/listsync/internal/models"
)

var listDataKey = []byte("document")

// GetListData returns the local document, пустой документ если данных нет
func (s *Storage) GetListData(_ context.Context) (models.ListData, error) {
	var doc models.ListData

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketListData)
		if bucket == nil {
			return fmt.Errorf("listdata bucket not found")
		}

		data := bucket.Get(listDataKey)
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to unmarshal list data: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.ListData{}, err
	}

	doc.Normalize()
	return doc, nil
}

// SaveListData persists the local document
func (s *Storage) SaveListData(_ context.Context, doc models.ListData) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketListData)
		if bucket == nil {
			return fmt.Errorf("listdata bucket not found")
		}

		data, err := doc.Marshal()
		if err != nil {
			return fmt.Errorf("failed to marshal list data: %w", err)
		}
		if err := bucket.Put(listDataKey, data); err != nil {
			return fmt.Errorf("failed to save list data: %w", err)
		}
		return nil
	})
}
