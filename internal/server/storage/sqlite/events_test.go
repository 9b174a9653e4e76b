package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listkeeper/listsync/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndListEvents(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		event := &models.Event{
			User:      "alice",
			ClientID:  "client-1",
			Type:      models.EventListChanged,
			Detail:    "list_music_add",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.AppendEvent(ctx, event))
		assert.NotZero(t, event.ID)
	}

	events, err := s.ListEvents(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Новые первыми
	assert.True(t, events[0].CreatedAt.After(events[2].CreatedAt))
	assert.Equal(t, models.EventListChanged, events[0].Type)
}

func TestListEventsLimit(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendEvent(ctx, &models.Event{
			User:      "alice",
			ClientID:  "c",
			Type:      models.EventSessionOpen,
			CreatedAt: time.Now().UTC(),
		}))
	}

	events, err := s.ListEvents(ctx, "alice", 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestListEventsIsolatedPerUser(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.AppendEvent(ctx, &models.Event{
		User: "alice", ClientID: "c", Type: models.EventSessionOpen, CreatedAt: time.Now().UTC(),
	}))

	events, err := s.ListEvents(ctx, "bob", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
