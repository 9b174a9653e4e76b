package sqlite

import (
	"context"
	"fmt"

	"github.com/listkeeper/listsync/internal/models"
)

// AppendEvent сохраняет одно событие журнала
func (s *Storage) AppendEvent(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (user, client_id, type, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		event.User, event.ClientID, event.Type, event.Detail, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	id, err := res.LastInsertId()
	if err == nil {
		event.ID = id
	}
	return nil
}

// ListEvents возвращает события аккаунта, новые первыми, не больше limit
func (s *Storage) ListEvents(ctx context.Context, user string, limit int) ([]*models.Event, error) {
	query := `
		SELECT id, user, client_id, type, detail, created_at
		FROM events
		WHERE user = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, user, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		event := &models.Event{}
		if err := rows.Scan(&event.ID, &event.User, &event.ClientID,
			&event.Type, &event.Detail, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return out, nil
}
