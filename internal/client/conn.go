package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/listkeeper/listsync/internal/client/storage"
	"github.com/listkeeper/listsync/internal/models"
	"github.com/listkeeper/listsync/internal/rpc"
	"github.com/listkeeper/listsync/internal/synclist"
	"github.com/listkeeper/listsync/internal/transport"
)

// Conn - одна живая сессия устройства с relay
type Conn struct {
	ws       *websocket.Conn
	remote   *rpc.Remote
	lists    storage.ListDataStorage
	logger   *slog.Logger
	syncMode synclist.SyncMode
	synced   chan struct{}
	done     chan struct{}

	// docMu сериализует правки локального документа
	docMu sync.Mutex
	// sendMu сериализует записи в соединение
	sendMu    sync.Mutex
	closeOnce sync.Once
	key       string
}

// Connect устанавливает сессию с relay, используя сохраненную
// идентичность, и запускает прием кадров
func (c *Client) Connect(ctx context.Context) (*Conn, error) {
	identity, err := c.store.GetIdentity(ctx)
	if err != nil {
		return nil, err
	}

	wsURL, err := c.wsURL(identity)
	if err != nil {
		return nil, err
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	conn := &Conn{
		ws:       ws,
		lists:    c.lists,
		logger:   c.logger,
		syncMode: c.syncMode,
		synced:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		key:      identity.Key,
	}
	conn.remote = rpc.New(rpc.SenderFunc(conn.send), c.logger)
	conn.registerHandlers()

	go conn.readLoop()

	c.logger.Info("session established",
		slog.String("clientId", identity.ClientID))
	return conn, nil
}

// Synced сигналит о каждом завершенном сервером раунде сверки
func (co *Conn) Synced() <-chan struct{} { return co.synced }

// Done закрывается при завершении сессии
func (co *Conn) Done() <-chan struct{} { return co.done }

// Close штатно разрывает сессию
func (co *Conn) Close() {
	co.closeWith(websocket.CloseNormalClosure, "")
}

// closeWith разрывает сессию с указанным кодом. Нарушение протокола
// (ошибка дешифровки или разбора) закрывается кодом failed
func (co *Conn) closeWith(code int, reason string) {
	co.closeOnce.Do(func() {
		co.remote.Close(fmt.Errorf("session closed: %s", reason))
		msg := websocket.FormatCloseMessage(code, reason)
		co.sendMu.Lock()
		_ = co.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
		_ = co.ws.WriteMessage(websocket.CloseMessage, msg)
		co.sendMu.Unlock()
		_ = co.ws.Close()
		close(co.done)
	})
}

func (co *Conn) send(msg rpc.Message) error {
	frame, err := transport.Encode(msg, co.key)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	co.sendMu.Lock()
	defer co.sendMu.Unlock()
	if err := co.ws.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return co.ws.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (co *Conn) readLoop() {
	defer co.Close()

	for {
		_, raw, err := co.ws.ReadMessage()
		if err != nil {
			return
		}

		text := string(raw)
		if transport.IsControlMessage(text) {
			// app-level ping от relay мобильным устройствам
			continue
		}

		payload, err := transport.Decode(text, co.key)
		if err != nil {
			// Поврежденный поток не ресинхронизируется, закрываем
			// кодом failed
			co.logger.Warn("failed to decode frame", slog.Any("error", err))
			co.closeWith(transport.CloseFailed, "decode failed")
			return
		}
		if err := co.remote.HandleMessage(context.Background(), payload); err != nil {
			co.logger.Warn("failed to handle rpc message", slog.Any("error", err))
			co.closeWith(transport.CloseFailed, "protocol violation")
			return
		}
	}
}

// SendAction применяет действие к локальному документу и отправляет
// его на relay
func (co *Conn) SendAction(ctx context.Context, action synclist.Action) error {
	co.docMu.Lock()
	doc, err := co.lists.GetListData(ctx)
	if err == nil {
		var next models.ListData
		if next, err = synclist.Apply(doc, action); err == nil {
			err = co.lists.SaveListData(ctx, next)
		}
	}
	co.docMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to apply action locally: %w", err)
	}

	return co.remote.Group(synclist.FeatureList).
		Call(ctx, synclist.MethodAction, action, nil)
}

// registerHandlers регистрирует клиентскую сторону подпротокола:
// relay опрашивает локальный документ и пишет результат раунда
func (co *Conn) registerHandlers() {
	register := func(name string, h rpc.Handler) {
		if err := co.remote.Register(name, h); err != nil {
			panic(fmt.Sprintf("failed to register rpc method %s: %v", name, err))
		}
	}

	register(synclist.MethodGetEnabledFeatures,
		func(_ context.Context, args json.RawMessage) (any, error) {
			var req synclist.GetEnabledFeaturesArgs
			if args != nil {
				if err := json.Unmarshal(args, &req); err != nil {
					return nil, fmt.Errorf("failed to parse feature request: %w", err)
				}
			}
			return synclist.Negotiate(req.Supported, synclist.LocalFeatures()), nil
		})

	register(synclist.MethodGetMD5,
		func(ctx context.Context, _ json.RawMessage) (any, error) {
			doc, err := co.lists.GetListData(ctx)
			if err != nil {
				return nil, err
			}
			sum, err := doc.MD5()
			if err != nil {
				return nil, err
			}
			return sum, nil
		})

	register(synclist.MethodGetSyncMode,
		func(_ context.Context, _ json.RawMessage) (any, error) {
			return string(co.syncMode), nil
		})

	register(synclist.MethodGetListData,
		func(ctx context.Context, _ json.RawMessage) (any, error) {
			doc, err := co.lists.GetListData(ctx)
			if err != nil {
				return nil, err
			}
			return doc, nil
		})

	register(synclist.MethodSetListData,
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var doc models.ListData
			if err := json.Unmarshal(args, &doc); err != nil {
				return nil, fmt.Errorf("failed to parse list data: %w", err)
			}
			co.docMu.Lock()
			defer co.docMu.Unlock()
			return nil, co.lists.SaveListData(ctx, doc)
		})

	register(synclist.MethodFinished,
		func(_ context.Context, _ json.RawMessage) (any, error) {
			select {
			case co.synced <- struct{}{}:
			default:
			}
			return nil, nil
		})

	register(synclist.MethodAction,
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var action synclist.Action
			if err := json.Unmarshal(args, &action); err != nil {
				return nil, fmt.Errorf("failed to parse action: %w", err)
			}

			co.docMu.Lock()
			defer co.docMu.Unlock()
			doc, err := co.lists.GetListData(ctx)
			if err != nil {
				return nil, err
			}
			next, err := synclist.Apply(doc, action)
			if err != nil {
				return nil, err
			}
			return nil, co.lists.SaveListData(ctx, next)
		})
}
