// Package users управляет namespace-ами аккаунтов: изоляция устройств
// и документа списков одного аккаунта от остальных, явный per-user
// мьютекс вокруг мутаций документа и вытеснение namespace из памяти
// после закрытия последнего подключения.
package users

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/listkeeper/listsync/internal/config"
	"github.com/listkeeper/listsync/internal/models"
	"github.com/listkeeper/listsync/internal/server/storage"
	"github.com/listkeeper/listsync/internal/synclist"
)

// Namespace представляет один аккаунт в памяти сервера.
// Мьютекс документа сериализует конкурентные раунды сверки
// и live-действия разных устройств аккаунта
type Namespace struct {
	Name   string
	Cfg    config.User
	lists  storage.ListDataStorage
	snaps  storage.SnapshotStorage
	logger *slog.Logger
	docMu  sync.Mutex
	refs   int
}

// WithDocumentLock выполняет fn под мьютексом документа аккаунта.
// Один сверочный раунд или одно действие - одна критическая секция
func (n *Namespace) WithDocumentLock(fn func() error) error {
	n.docMu.Lock()
	defer n.docMu.Unlock()
	return fn()
}

// Load возвращает текущий документ аккаунта (synclist.DocumentStore)
func (n *Namespace) Load(ctx context.Context) (models.ListData, error) {
	return n.lists.GetListData(ctx, n.Name)
}

// Save сохраняет документ, при snapshotBefore предварительно снимая
// снапшот прежнего состояния (synclist.DocumentStore)
func (n *Namespace) Save(ctx context.Context, doc models.ListData, snapshotBefore bool) error {
	if snapshotBefore {
		if err := n.snapshot(ctx); err != nil {
			return err
		}
	}
	return n.lists.SaveListData(ctx, n.Name, doc)
}

// ApplyAction применяет одно инкрементальное действие под мьютексом
// документа: снапшот, чистое применение, запись
func (n *Namespace) ApplyAction(ctx context.Context, action synclist.Action) (models.ListData, error) {
	var result models.ListData
	err := n.WithDocumentLock(func() error {
		doc, err := n.Load(ctx)
		if err != nil {
			return err
		}
		next, err := synclist.Apply(doc, action)
		if err != nil {
			return err
		}
		if err := n.Save(ctx, next, true); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return models.ListData{}, err
	}
	return result, nil
}

// Snapshots возвращает снапшоты аккаунта, от старых к новым
func (n *Namespace) Snapshots(ctx context.Context) ([]*models.Snapshot, error) {
	return n.snaps.ListSnapshots(ctx, n.Name)
}

// snapshot снимает копию текущего документа с FIFO-ротацией
func (n *Namespace) snapshot(ctx context.Context) error {
	current, err := n.lists.GetListData(ctx, n.Name)
	if err != nil {
		return err
	}
	data, err := current.Marshal()
	if err != nil {
		return err
	}

	snap := &models.Snapshot{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Data:      data,
	}
	if err := n.snaps.AddSnapshot(ctx, n.Name, snap, n.Cfg.MaxSnapshotNum); err != nil {
		return fmt.Errorf("failed to add snapshot: %w", err)
	}

	n.logger.Debug("snapshot taken",
		slog.String("user", n.Name),
		slog.String("snapshot_id", snap.ID))
	return nil
}

// Registry хранит живые namespace-ы и их счетчики подключений
type Registry struct {
	cfg    *config.Config
	lists  storage.ListDataStorage
	snaps  storage.SnapshotStorage
	logger *slog.Logger
	spaces map[string]*Namespace
	mu     sync.Mutex
}

// NewRegistry создает реестр namespace-ов аккаунтов
func NewRegistry(cfg *config.Config, lists storage.ListDataStorage, snaps storage.SnapshotStorage, logger *slog.Logger) *Registry {
	return &Registry{
		cfg:    cfg,
		lists:  lists,
		snaps:  snaps,
		logger: logger,
		spaces: make(map[string]*Namespace),
	}
}

// Acquire возвращает namespace аккаунта, создавая его при первом
// подключении, и увеличивает счетчик живых подключений
func (r *Registry) Acquire(name string) (*Namespace, error) {
	userCfg, ok := r.cfg.User(name)
	if !ok {
		return nil, storage.ErrUserNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ns, ok := r.spaces[name]
	if !ok {
		ns = &Namespace{
			Name:   name,
			Cfg:    *userCfg,
			lists:  r.lists,
			snaps:  r.snaps,
			logger: r.logger,
		}
		r.spaces[name] = ns
	}
	ns.refs++
	return ns, nil
}

// Release уменьшает счетчик подключений namespace; при нуле
// namespace вытесняется из памяти (данные на диске не трогаются)
func (r *Registry) Release(ns *Namespace) {
	if ns == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ns.refs--
	if ns.refs <= 0 {
		delete(r.spaces, ns.Name)
		r.logger.Debug("user namespace released", slog.String("user", ns.Name))
	}
}

// Active сообщает, загружен ли namespace аккаунта в память
func (r *Registry) Active(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.spaces[name]
	return ok
}
