package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/listkeeper/listsync/internal/models"
	"github.com/listkeeper/listsync/internal/rpc"
	"github.com/listkeeper/listsync/internal/server/session"
	"github.com/listkeeper/listsync/internal/server/users"
	"github.com/listkeeper/listsync/internal/synclist"
	"github.com/listkeeper/listsync/internal/transport"
)

// connection связывает одну сессию устройства с namespace аккаунта:
// серверные RPC-обработчики и запуск раундов сверки
type connection struct {
	srv  *SyncServer
	sess *session.Session
	ns   *users.Namespace

	features synclist.Features
	mu       sync.Mutex
}

func (c *connection) logger() *slog.Logger { return c.srv.logger }

func (c *connection) setFeatures(f synclist.Features) {
	c.mu.Lock()
	c.features = f
	c.mu.Unlock()

	versions := make(map[string]int, len(f))
	for name, feat := range f {
		versions[name] = feat.Version
	}
	c.sess.SetFeatures(versions)
}

func (c *connection) skipSnapshot() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.features[synclist.FeatureList].SkipSnapshot
}

func (c *connection) listEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.features.Enabled(synclist.FeatureList)
}

// registerHandlers регистрирует серверную сторону подпротокола.
// Ошибки регистрации невозможны: имена фиксированы и уникальны
func (c *connection) registerHandlers() {
	remote := c.sess.Remote()
	register := func(name string, h rpc.Handler) {
		if err := remote.Register(name, h); err != nil {
			panic(fmt.Sprintf("failed to register rpc method %s: %v", name, err))
		}
	}

	register(synclist.MethodGetEnabledFeatures, c.handleGetEnabledFeatures)
	register(synclist.MethodGetMD5, c.handleGetMD5)
	register(synclist.MethodGetSyncMode, c.handleGetSyncMode)
	register(synclist.MethodGetListData, c.handleGetListData)
	register(synclist.MethodSetListData, c.handleSetListData)
	register(synclist.MethodFinished, c.handleFinished)
	register(synclist.MethodAction, c.handleAction)
}

// runSync открывает подпротокол: переговоры о фичах, затем раунд
// сверки под per-user мьютексом. Инициатор - сервер
func (c *connection) runSync(ctx context.Context) {
	var negotiated synclist.Features
	args := synclist.GetEnabledFeaturesArgs{
		ServerType: "server",
		Supported:  synclist.LocalFeatures(),
	}
	if err := c.sess.Remote().Call(ctx, synclist.MethodGetEnabledFeatures, args, &negotiated); err != nil {
		c.logger().Warn("feature negotiation failed",
			slog.String("clientId", c.sess.ClientID()), slog.Any("error", err))
		c.sess.Close(transport.CloseFailed, "feature negotiation failed")
		return
	}

	c.setFeatures(negotiated)
	c.sess.SetReady(true)

	if !c.listEnabled() {
		c.logger().Info("list feature not negotiated, session idle",
			slog.String("clientId", c.sess.ClientID()))
		return
	}

	if err := c.syncRound(ctx); err != nil {
		c.srv.metrics.SyncRounds.WithLabelValues("error").Inc()
		c.logger().Warn("sync round failed",
			slog.String("user", c.sess.User),
			slog.String("clientId", c.sess.ClientID()),
			slog.Any("error", err))
		return
	}
	c.srv.metrics.SyncRounds.WithLabelValues("ok").Inc()
}

// syncRound выполняет один раунд движка под мьютексом документа
// и рассылает событие изменения, если документ поменялся
func (c *connection) syncRound(ctx context.Context) error {
	engine := synclist.NewEngine(c.ns, c.sess.Remote().Group(synclist.FeatureList),
		c.logger(), c.ns.Cfg.AddMusicLocation)
	engine.SetSkipSnapshot(c.skipSnapshot())

	var changed bool
	err := c.ns.WithDocumentLock(func() error {
		before, err := c.docMD5(ctx)
		if err != nil {
			return err
		}
		if err := engine.SyncRound(ctx); err != nil {
			return err
		}
		after, err := c.docMD5(ctx)
		if err != nil {
			return err
		}
		changed = before != after
		return nil
	})
	if err != nil {
		return err
	}

	if changed {
		c.srv.hooks.FireListChanged(ctx, c.sess.User, c.sess.ClientID(), "sync_round")
	}
	return nil
}

func (c *connection) docMD5(ctx context.Context) (string, error) {
	doc, err := c.ns.Load(ctx)
	if err != nil {
		return "", err
	}
	return doc.MD5()
}

func (c *connection) handleGetEnabledFeatures(_ context.Context, args json.RawMessage) (any, error) {
	var req synclist.GetEnabledFeaturesArgs
	if args != nil {
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, fmt.Errorf("failed to parse feature request: %w", err)
		}
	}

	negotiated := synclist.Negotiate(req.Supported, synclist.LocalFeatures())
	c.setFeatures(negotiated)
	c.sess.SetReady(true)
	return negotiated, nil
}

func (c *connection) handleGetMD5(ctx context.Context, _ json.RawMessage) (any, error) {
	sum, err := c.docMD5(ctx)
	if err != nil {
		return nil, err
	}
	return sum, nil
}

// handleGetSyncMode: сервер не выражает предпочтения, направление
// раунда диктует инициатор
func (c *connection) handleGetSyncMode(_ context.Context, _ json.RawMessage) (any, error) {
	return "", nil
}

func (c *connection) handleGetListData(ctx context.Context, _ json.RawMessage) (any, error) {
	doc, err := c.ns.Load(ctx)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *connection) handleSetListData(ctx context.Context, args json.RawMessage) (any, error) {
	var doc models.ListData
	if err := json.Unmarshal(args, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse list data: %w", err)
	}

	err := c.ns.WithDocumentLock(func() error {
		return c.ns.Save(ctx, doc, !c.skipSnapshot())
	})
	if err != nil {
		return nil, err
	}

	c.srv.hooks.FireListChanged(ctx, c.sess.User, c.sess.ClientID(), synclist.MethodSetListData)
	return nil, nil
}

func (c *connection) handleFinished(_ context.Context, _ json.RawMessage) (any, error) {
	c.logger().Debug("peer finished sync round",
		slog.String("clientId", c.sess.ClientID()))
	return nil, nil
}

// handleAction применяет live-действие и ретранслирует его остальным
// готовым устройствам аккаунта
func (c *connection) handleAction(ctx context.Context, args json.RawMessage) (any, error) {
	var action synclist.Action
	if err := json.Unmarshal(args, &action); err != nil {
		return nil, fmt.Errorf("failed to parse action: %w", err)
	}

	if _, err := c.ns.ApplyAction(ctx, action); err != nil {
		return nil, err
	}
	c.srv.metrics.ActionsApplied.Inc()
	c.srv.hooks.FireListChanged(ctx, c.sess.User, c.sess.ClientID(), action.Action)

	c.broadcast(action)
	return nil, nil
}

// broadcast ретранслирует действие другим сессиям аккаунта.
// Постановка в очередь группы синхронна: действия уходят каждой
// сессии в порядке применения, это важно для reposition.
// Ошибки доставки не влияют на исходную сессию
func (c *connection) broadcast(action synclist.Action) {
	for _, other := range c.srv.sessions.ForUser(c.sess.User) {
		if other.ClientID() == c.sess.ClientID() {
			continue
		}
		if !other.Ready() || !other.FeatureEnabled(synclist.FeatureList) {
			continue
		}

		other.Remote().Group(synclist.FeatureList).
			Enqueue(synclist.MethodAction, action)
	}
}
