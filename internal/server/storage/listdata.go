package storage

import (
	"context"

	"github.com/listkeeper/listsync/internal/models"
)

// ListDataStorage defines interface for list-data document persistence
type ListDataStorage interface {
	// GetListData returns the user's document.
	// Для аккаунта без данных возвращается пустой документ, не ошибка
	GetListData(ctx context.Context, user string) (models.ListData, error)

	// SaveListData persists the user's document
	SaveListData(ctx context.Context, user string, doc models.ListData) error
}

// SnapshotStorage defines interface for bounded snapshot retention
type SnapshotStorage interface {
	// AddSnapshot appends a snapshot and prunes the oldest ones
	// so that at most maxNum remain (FIFO)
	AddSnapshot(ctx context.Context, user string, snap *models.Snapshot, maxNum int) error

	// ListSnapshots returns the user's snapshots, oldest first
	ListSnapshots(ctx context.Context, user string) ([]*models.Snapshot, error)

	// GetSnapshot retrieves one snapshot by id
	// Returns ErrSnapshotNotFound if snapshot doesn't exist
	GetSnapshot(ctx context.Context, user, id string) (*models.Snapshot, error)
}
