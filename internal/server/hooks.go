package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/listkeeper/listsync/internal/models"
	"github.com/listkeeper/listsync/internal/server/storage"
)

// HookFunc обрабатывает одно событие жизненного цикла relay
type HookFunc func(event models.Event)

// Hooks - точки подписки для внешних модулей (админ-статистика,
// backup). События дополнительно пишутся в журнал, если он настроен
type Hooks struct {
	logger      *slog.Logger
	events      storage.EventStorage
	sessionOpen []HookFunc
	listChanged []HookFunc
	mu          sync.Mutex
}

// NewHooks создает реестр подписчиков.
// events может быть nil - тогда журнал не ведется
func NewHooks(events storage.EventStorage, logger *slog.Logger) *Hooks {
	return &Hooks{
		logger: logger,
		events: events,
	}
}

// OnSessionOpen подписывает fn на открытие аутентифицированной сессии
func (h *Hooks) OnSessionOpen(fn HookFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessionOpen = append(h.sessionOpen, fn)
}

// OnListChanged подписывает fn на изменение документа списков
func (h *Hooks) OnListChanged(fn HookFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listChanged = append(h.listChanged, fn)
}

// FireSessionOpen рассылает событие открытия сессии
func (h *Hooks) FireSessionOpen(ctx context.Context, user, clientID string) {
	h.fire(ctx, models.Event{
		User:      user,
		ClientID:  clientID,
		Type:      models.EventSessionOpen,
		CreatedAt: time.Now().UTC(),
	})
}

// FireListChanged рассылает событие изменения документа.
// detail - имя действия или режим сверки
func (h *Hooks) FireListChanged(ctx context.Context, user, clientID, detail string) {
	h.fire(ctx, models.Event{
		User:      user,
		ClientID:  clientID,
		Type:      models.EventListChanged,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
}

func (h *Hooks) fire(ctx context.Context, event models.Event) {
	if h.events != nil {
		if err := h.events.AppendEvent(ctx, &event); err != nil {
			// Журнал вспомогательный: ошибка записи не рвет сессию
			h.logger.Warn("failed to append event",
				slog.String("type", event.Type),
				slog.String("user", event.User),
				slog.Any("error", err))
		}
	}

	h.mu.Lock()
	var subscribers []HookFunc
	switch event.Type {
	case models.EventSessionOpen:
		subscribers = h.sessionOpen
	case models.EventListChanged:
		subscribers = h.listChanged
	}
	h.mu.Unlock()

	for _, fn := range subscribers {
		fn(event)
	}
}
