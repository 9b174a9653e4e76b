// Package rpc реализует двунаправленный слой именованных вызовов
// поверх шифрованного канала. Любая сторона может вызвать
// зарегистрированный метод другой; ожидающие вызовы отслеживаются
// по корреляционному пути и отваливаются по таймауту.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultTimeout - предельное время ожидания ответа на вызов
	DefaultTimeout = 120 * time.Second

	typeRequest  = "request"
	typeResponse = "response"

	notDefinedPrefix = "method not defined: "
)

var (
	// ErrTimeout возвращается вызывающему, когда ответ не пришел вовремя.
	// Сессия при этом остается открытой
	ErrTimeout = errors.New("rpc call timed out")

	// ErrClosed возвращается при вызове через закрытый remote
	ErrClosed = errors.New("rpc remote is closed")
)

// Message представляет один кадр RPC внутри шифрованного канала
type Message struct {
	Type  string          `json:"type"`            // Type request или response
	Path  string          `json:"path"`            // Path корреляционный путь вызова
	Name  string          `json:"name"`            // Name имя метода
	Error string          `json:"error,omitempty"` // Error текст ошибки (только в ответе)
	Data  json.RawMessage `json:"data,omitempty"`  // Data аргументы или результат
}

// Handler обрабатывает входящий вызов. Может выполняться асинхронно
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Sender отправляет кадр RPC в канал сессии
type Sender interface {
	Send(msg Message) error
}

// SenderFunc адаптирует функцию к интерфейсу Sender
type SenderFunc func(msg Message) error

func (f SenderFunc) Send(msg Message) error { return f(msg) }

type response struct {
	data json.RawMessage
	err  error
}

// Remote представляет RPC-узел одной сессии: реестр методов
// плюс таблица ожидающих исходящих вызовов
type Remote struct {
	sender   Sender
	logger   *slog.Logger
	timeout  time.Duration
	handlers map[string]Handler
	pending  map[string]chan response
	groups   map[string]*Group
	seq      atomic.Uint64
	closeErr error
	closed   bool
	mu       sync.Mutex
}

// New создает remote поверх переданного канала
func New(sender Sender, logger *slog.Logger) *Remote {
	return &Remote{
		sender:   sender,
		logger:   logger,
		timeout:  DefaultTimeout,
		handlers: make(map[string]Handler),
		pending:  make(map[string]chan response),
		groups:   make(map[string]*Group),
	}
}

// SetTimeout меняет таймаут ожидания ответов (для тестов)
func (r *Remote) SetTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeout = d
}

// Register регистрирует обработчик метода.
// Валидация на этапе регистрации: пустое имя, nil и дубликаты - ошибка
func (r *Remote) Register(name string, h Handler) error {
	if name == "" {
		return fmt.Errorf("method name cannot be empty")
	}
	if h == nil {
		return fmt.Errorf("handler for %q cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("method %q is already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// Call вызывает метод name на удаленной стороне и ждет ответа.
// reply может быть nil, если результат не нужен
func (r *Remote) Call(ctx context.Context, name string, args, reply any) error {
	return r.call(ctx, name, name, args, reply)
}

func (r *Remote) call(ctx context.Context, group, name string, args, reply any) error {
	var data json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("failed to marshal args for %q: %w", name, err)
		}
		data = b
	}

	path := fmt.Sprintf("%s#%d", group, r.seq.Add(1))
	ch := make(chan response, 1)

	r.mu.Lock()
	if r.closed {
		err := r.closeErr
		r.mu.Unlock()
		if err == nil {
			err = ErrClosed
		}
		return err
	}
	r.pending[path] = ch
	timeout := r.timeout
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, path)
		r.mu.Unlock()
	}()

	msg := Message{Type: typeRequest, Path: path, Name: name, Data: data}
	if err := r.sender.Send(msg); err != nil {
		return fmt.Errorf("failed to send call %q: %w", name, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if resp.err != nil {
			return resp.err
		}
		if reply != nil && resp.data != nil {
			if err := json.Unmarshal(resp.data, reply); err != nil {
				return fmt.Errorf("failed to unmarshal reply of %q: %w", name, err)
			}
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("call %q: %w", name, ErrTimeout)
	case <-ctx.Done():
		return fmt.Errorf("call %q: %w", name, ctx.Err())
	}
}

// HandleMessage разбирает и диспетчеризует входящий кадр RPC.
// Ошибка разбора - нарушение протокола, фатальна для сессии
func (r *Remote) HandleMessage(ctx context.Context, raw []byte) error {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("failed to parse rpc message: %w", err)
	}

	switch msg.Type {
	case typeRequest:
		r.handleRequest(ctx, msg)
		return nil
	case typeResponse:
		r.handleResponse(msg)
		return nil
	default:
		return fmt.Errorf("unknown rpc message type %q", msg.Type)
	}
}

func (r *Remote) handleRequest(ctx context.Context, msg Message) {
	r.mu.Lock()
	h, ok := r.handlers[msg.Name]
	r.mu.Unlock()

	if !ok {
		// Неизвестный метод - именованная ошибка в ответе, не обрыв сессии
		r.logger.Warn("rpc method not defined", slog.String("method", msg.Name))
		r.respond(msg, nil, notDefinedPrefix+msg.Name)
		return
	}

	// Обработчики могут блокироваться (свои RPC к пиру), выполняем асинхронно
	go func() {
		result, err := h(ctx, msg.Data)
		if err != nil {
			r.respond(msg, nil, err.Error())
			return
		}
		data, err := json.Marshal(result)
		if err != nil {
			r.logger.Error("failed to marshal rpc result",
				slog.String("method", msg.Name), slog.Any("error", err))
			r.respond(msg, nil, "internal error")
			return
		}
		r.respond(msg, data, "")
	}()
}

func (r *Remote) respond(req Message, data json.RawMessage, errMsg string) {
	resp := Message{Type: typeResponse, Path: req.Path, Name: req.Name, Data: data, Error: errMsg}
	if err := r.sender.Send(resp); err != nil {
		r.logger.Error("failed to send rpc response",
			slog.String("method", req.Name), slog.Any("error", err))
	}
}

func (r *Remote) handleResponse(msg Message) {
	r.mu.Lock()
	ch, ok := r.pending[msg.Path]
	if ok {
		delete(r.pending, msg.Path)
	}
	r.mu.Unlock()

	if !ok {
		// Ответ на уже отвалившийся по таймауту вызов
		r.logger.Debug("rpc response without pending call", slog.String("path", msg.Path))
		return
	}

	if msg.Error != "" {
		ch <- response{err: &RemoteError{Method: msg.Name, Message: msg.Error}}
		return
	}
	ch <- response{data: msg.Data}
}

// Group возвращает очередь вызовов внутри именованной фичи.
// Вызовы одной группы доставляются и завершаются в порядке выдачи;
// между группами порядок не гарантируется
func (r *Remote) Group(name string) *Group {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[name]
	if !ok {
		g = &Group{remote: r, name: name}
		r.groups[name] = g
	}
	return g
}

// Close обрывает все ожидающие вызовы с указанной ошибкой.
// Вызывается при закрытии сессии, чтобы вызовы падали сразу,
// а не висели до таймаута
func (r *Remote) Close(err error) {
	if err == nil {
		err = ErrClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	r.closeErr = err

	for path, ch := range r.pending {
		ch <- response{err: err}
		delete(r.pending, path)
	}
}

// Group представляет упорядоченную подочередь вызовов одной фичи
type Group struct {
	remote *Remote
	name   string
	mu     sync.Mutex

	queue    []queuedCall
	draining bool
	queueMu  sync.Mutex
}

type queuedCall struct {
	name string
	args any
}

// Call выполняет вызов в очереди группы: следующий вызов группы
// не уходит, пока не завершился предыдущий
func (g *Group) Call(ctx context.Context, name string, args, reply any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remote.call(ctx, g.name+"/"+name, name, args, reply)
}

// Enqueue ставит вызов в очередь группы и возвращается немедленно.
// Вызовы одной очереди доставляются строго в порядке постановки;
// ошибки доставки логируются и не прерывают очередь
func (g *Group) Enqueue(name string, args any) {
	g.queueMu.Lock()
	g.queue = append(g.queue, queuedCall{name: name, args: args})
	if !g.draining {
		g.draining = true
		go g.drain()
	}
	g.queueMu.Unlock()
}

// drain выполняет отложенные вызовы один за другим. Единственный
// горутина-потребитель на группу, пока очередь не опустеет
func (g *Group) drain() {
	for {
		g.queueMu.Lock()
		if len(g.queue) == 0 {
			g.draining = false
			g.queueMu.Unlock()
			return
		}
		next := g.queue[0]
		g.queue = g.queue[1:]
		g.queueMu.Unlock()

		if err := g.Call(context.Background(), next.name, next.args, nil); err != nil {
			g.remote.logger.Warn("queued rpc call failed",
				slog.String("method", next.name), slog.Any("error", err))
		}
	}
}

// RemoteError представляет ошибку, возвращенную удаленным обработчиком
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote method %q: %s", e.Method, e.Message)
}

// IsNotDefined сообщает, что удаленная сторона не знает такого метода
func IsNotDefined(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return strings.HasPrefix(re.Message, notDefinedPrefix)
	}
	return false
}
