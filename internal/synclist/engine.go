package synclist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/listkeeper/listsync/internal/models"
)

// DocumentStore - локальная сторона движка: чтение и запись
// документа списков. Save с snapshotBefore=true обязан сохранить
// снапшот прежнего состояния до записи
type DocumentStore interface {
	Load(ctx context.Context) (models.ListData, error)
	Save(ctx context.Context, doc models.ListData, snapshotBefore bool) error
}

// Caller - очередь вызовов к пиру внутри группы "list"
type Caller interface {
	Call(ctx context.Context, name string, args, reply any) error
}

// Engine ведет раунд сверки с одним пиром. Сторона, запустившая раунд,
// диктует направление merge на этот раунд; за сериализацию
// конкурентных раундов одного аккаунта отвечает вызывающий
// (per-user mutex над DocumentStore)
type Engine struct {
	store        DocumentStore
	peer         Caller
	logger       *slog.Logger
	location     string // позиция вставки новых песен при merge
	skipSnapshot bool   // пир разрешил пропускать снапшоты
}

// NewEngine создает движок сверки для одной сессии
func NewEngine(store DocumentStore, peer Caller, logger *slog.Logger, location string) *Engine {
	return &Engine{
		store:    store,
		peer:     peer,
		logger:   logger,
		location: location,
	}
}

// SetSkipSnapshot включает пропуск снапшотов, если фича пира это разрешила
func (e *Engine) SetSkipSnapshot(v bool) {
	e.skipSnapshot = v
}

// SyncRound выполняет один раунд сверки: хеш-сравнение, при расхождении -
// согласование режима и применение merge/overwrite на обеих сторонах.
// Обе стороны завершают раунд с одинаковым документом (кроме cancel)
func (e *Engine) SyncRound(ctx context.Context) error {
	local, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load local list data: %w", err)
	}
	localMD5, err := local.MD5()
	if err != nil {
		return err
	}

	var remoteMD5 string
	if err := e.peer.Call(ctx, MethodGetMD5, nil, &remoteMD5); err != nil {
		return fmt.Errorf("failed to get remote md5: %w", err)
	}

	// Частый случай после первой сверки: хеши совпали, данных не гоняем
	if remoteMD5 == localMD5 {
		e.logger.Debug("list data in sync", slog.String("md5", localMD5))
		return e.finish(ctx)
	}

	mode, err := e.negotiateMode(ctx)
	if err != nil {
		return err
	}
	if mode == SyncModeCancel {
		e.logger.Info("sync round cancelled by peer")
		return nil
	}

	var remote models.ListData
	if err := e.peer.Call(ctx, MethodGetListData, nil, &remote); err != nil {
		return fmt.Errorf("failed to get remote list data: %w", err)
	}

	result, err := resolve(mode, local, remote, e.location)
	if err != nil {
		return err
	}

	// Деструктивная запись: снапшот прежнего состояния обязателен,
	// если пир явно не разрешил его пропустить
	if err := e.store.Save(ctx, result, !e.skipSnapshot); err != nil {
		return fmt.Errorf("failed to save merged list data: %w", err)
	}
	if err := e.peer.Call(ctx, MethodSetListData, result, nil); err != nil {
		return fmt.Errorf("failed to push merged list data: %w", err)
	}

	resultMD5, _ := result.MD5()
	e.logger.Info("sync round completed",
		slog.String("mode", string(mode)),
		slog.String("md5", resultMD5))

	return e.finish(ctx)
}

// negotiateMode запрашивает у пира предпочитаемый режим и переводит его
// в нашу систему координат через Mirror. Отсутствие предпочтения -
// merge_remote_local с нашей точки зрения, без зеркалирования
func (e *Engine) negotiateMode(ctx context.Context) (SyncMode, error) {
	var raw string
	if err := e.peer.Call(ctx, MethodGetSyncMode, nil, &raw); err != nil {
		return "", fmt.Errorf("failed to get sync mode: %w", err)
	}
	if raw == "" {
		return SyncModeMergeRemoteLocal, nil
	}

	peerMode, err := ParseSyncMode(raw)
	if err != nil {
		return "", err
	}
	// Пир выражает режим со своей точки зрения
	return peerMode.Mirror(), nil
}

func (e *Engine) finish(ctx context.Context) error {
	if err := e.peer.Call(ctx, MethodFinished, nil, nil); err != nil {
		return fmt.Errorf("failed to signal sync finished: %w", err)
	}
	return nil
}

// resolve вычисляет итоговый документ раунда в нашей системе координат:
// local - эта сторона, remote - пир. В имени режима получатель идет
// первым, источник вторым; получатель merge сохраняет позиции, под
// overwrite его документ заменяется документом источника
func resolve(mode SyncMode, local, remote models.ListData, location string) (models.ListData, error) {
	switch mode {
	case SyncModeMergeLocalRemote:
		return Merge(local, remote, location), nil
	case SyncModeMergeRemoteLocal:
		return Merge(remote, local, location), nil
	case SyncModeOverwriteLocalRemote:
		return Overwrite(local, remote, false), nil
	case SyncModeOverwriteRemoteLocal:
		return Overwrite(remote, local, false), nil
	case SyncModeOverwriteLocalRemoteFull:
		return Overwrite(local, remote, true), nil
	case SyncModeOverwriteRemoteLocalFull:
		return Overwrite(remote, local, true), nil
	default:
		return models.ListData{}, fmt.Errorf("unsupported sync mode %q", mode)
	}
}
