package storage

import (
	"context"

	"github.com/listkeeper/listsync/internal/models"
)

// EventStorage defines interface for the relay event log.
// Лог питает внешних подписчиков (админ-статистика, WebDAV backup)
type EventStorage interface {
	// AppendEvent persists one event
	AppendEvent(ctx context.Context, event *models.Event) error

	// ListEvents returns the user's events, newest first, up to limit
	ListEvents(ctx context.Context, user string, limit int) ([]*models.Event, error)
}
