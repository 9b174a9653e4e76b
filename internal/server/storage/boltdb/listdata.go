package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/listkeeper/listsync/internal/models"
	"github.com/listkeeper/listsync/internal/server/storage"
)

// GetListData возвращает документ списков аккаунта.
// Для аккаунта без данных возвращается пустой документ
func (s *Storage) GetListData(ctx context.Context, user string) (models.ListData, error) {
	doc := models.NewListData()

	err := s.db.View(func(tx *bbolt.Tx) error {
		ub := userBucketView(tx, user)
		if ub == nil {
			return nil
		}
		data := ub.Get(keyListData)
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

// SaveListData сохраняет документ списков аккаунта
func (s *Storage) SaveListData(ctx context.Context, user string, doc models.ListData) error {
	data, err := doc.Marshal()
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		ub, err := userBucket(tx, user)
		if err != nil {
			return err
		}
		if err := ub.Put(keyListData, data); err != nil {
			return fmt.Errorf("failed to save list data: %w", err)
		}
		return nil
	})
}

// AddSnapshot добавляет снапшот и удаляет самые старые сверх maxNum.
// Порядок задается монотонной последовательностью bucket-а
func (s *Storage) AddSnapshot(ctx context.Context, user string, snap *models.Snapshot, maxNum int) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		ub, err := userBucket(tx, user)
		if err != nil {
			return err
		}
		snaps, err := ub.CreateBucketIfNotExists(bucketSnapshots)
		if err != nil {
			return fmt.Errorf("failed to create snapshots bucket: %w", err)
		}

		seq, err := snaps.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get snapshot sequence: %w", err)
		}
		if err := snaps.Put(seqKey(seq), data); err != nil {
			return fmt.Errorf("failed to save snapshot: %w", err)
		}

		// FIFO: пока снапшотов больше лимита, удаляем самый старый
		if maxNum <= 0 {
			return nil
		}
		c := snaps.Cursor()
		for count := bucketKeyCount(snaps); count > maxNum; count-- {
			k, _ := c.First()
			if k == nil {
				break
			}
			if err := snaps.Delete(k); err != nil {
				return fmt.Errorf("failed to prune snapshot: %w", err)
			}
		}
		return nil
	})
}

// ListSnapshots возвращает снапшоты аккаунта, от старых к новым
func (s *Storage) ListSnapshots(ctx context.Context, user string) ([]*models.Snapshot, error) {
	var out []*models.Snapshot

	err := s.db.View(func(tx *bbolt.Tx) error {
		ub := userBucketView(tx, user)
		if ub == nil {
			return nil
		}
		snaps := ub.Bucket(bucketSnapshots)
		if snaps == nil {
			return nil
		}
		return snaps.ForEach(func(_, data []byte) error {
			snap := &models.Snapshot{}
			if err := json.Unmarshal(data, snap); err != nil {
				return fmt.Errorf("failed to unmarshal snapshot: %w", err)
			}
			out = append(out, snap)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetSnapshot возвращает снапшот по id
func (s *Storage) GetSnapshot(ctx context.Context, user, id string) (*models.Snapshot, error) {
	snaps, err := s.ListSnapshots(ctx, user)
	if err != nil {
		return nil, err
	}
	for _, snap := range snaps {
		if snap.ID == id {
			return snap, nil
		}
	}
	return nil, storage.ErrSnapshotNotFound
}

// seqKey кодирует последовательность в сортируемый big-endian ключ
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func bucketKeyCount(b *bbolt.Bucket) int {
	count := 0
	_ = b.ForEach(func(_, _ []byte) error {
		count++
		return nil
	})
	return count
}
