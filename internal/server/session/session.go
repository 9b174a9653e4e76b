// Package session управляет живыми подключениями устройств:
// состояние сессии, отправка и прием шифрованных кадров,
// heartbeat и вытеснение дублирующих подключений
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/listkeeper/listsync/internal/models"
	"github.com/listkeeper/listsync/internal/rpc"
	"github.com/listkeeper/listsync/internal/transport"
)

// State представляет состояние жизненного цикла сессии
type State int

const (
	// StatePairing - соединение установлено, handshake не завершен
	StatePairing State = iota
	// StateConnected - сессия аутентифицирована и обслуживается
	StateConnected
	// StateClosing - начато закрытие, кадры больше не принимаются
	StateClosing
	// StateClosed - соединение разорвано
	StateClosed
)

func (s State) String() string {
	switch s {
	case StatePairing:
		return "pairing"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const writeTimeout = 10 * time.Second

// Session представляет одно живое подключение устройства.
// Состояние сессии приватно: ожидающие вызовы, флаги готовности
// и фич не разделяются между сессиями
type Session struct {
	User   string
	Device *models.DeviceKeyInfo

	conn     *websocket.Conn
	remote   *rpc.Remote
	logger   *slog.Logger
	onClose  []func(s *Session)
	features map[string]int

	state State
	ready bool
	alive bool
	mu    sync.Mutex

	// sendMu сериализует записи в соединение
	sendMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// New создает сессию поверх установленного websocket соединения
func New(conn *websocket.Conn, user string, device *models.DeviceKeyInfo, logger *slog.Logger) *Session {
	s := &Session{
		User:   user,
		Device: device,
		conn:   conn,
		logger: logger.With(
			slog.String("user", user),
			slog.String("clientId", device.ClientID)),
		features: make(map[string]int),
		state:    StatePairing,
		alive:    true,
		done:     make(chan struct{}),
	}

	s.remote = rpc.New(rpc.SenderFunc(s.sendRPC), s.logger)

	// Любой pong подтверждает живость до следующего heartbeat
	conn.SetPongHandler(func(string) error {
		s.markAlive()
		return nil
	})

	return s
}

// Remote возвращает RPC-узел сессии
func (s *Session) Remote() *rpc.Remote { return s.remote }

// ClientID возвращает идентификатор устройства сессии
func (s *Session) ClientID() string { return s.Device.ClientID }

// OnClose регистрирует callback закрытия сессии.
// Callbacks вызываются ровно один раз, из Close, в порядке регистрации
func (s *Session) OnClose(fn func(s *Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = append(s.onClose, fn)
}

// State возвращает текущее состояние жизненного цикла
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MarkConnected переводит сессию из pairing в connected
func (s *Session) MarkConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StatePairing {
		s.state = StateConnected
	}
}

// SetReady выставляет флаг готовности сессии к sync-раундам
func (s *Session) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// Ready сообщает, готова ли сессия к sync-раундам
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// SetFeatures запоминает согласованные с устройством фичи
func (s *Session) SetFeatures(features map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.features = features
}

// FeatureEnabled сообщает, согласована ли фича с устройством
func (s *Session) FeatureEnabled(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.features[name]
	return ok
}

// clearFlags сбрасывает готовность и фичи перед закрытием,
// чтобы чужие in-flight вызовы падали сразу
func (s *Session) clearFlags() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false
	s.features = make(map[string]int)
}

func (s *Session) markAlive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive = true
}

// consumeAlive снимает отметку живости и возвращает прежнее значение.
// Вызывается heartbeat-циклом: false означает, что с прошлого
// heartbeat сессия не подавала признаков жизни
func (s *Session) consumeAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	alive := s.alive
	s.alive = false
	return alive
}

// sendRPC шифрует и отправляет кадр RPC
func (s *Session) sendRPC(msg rpc.Message) error {
	frame, err := transport.Encode(msg, s.Device.Key)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return s.writeText(frame)
}

// writeText пишет текстовый кадр под мьютексом отправки
func (s *Session) writeText(data string) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, []byte(data))
}

// Ping отправляет protocol-level ping; мобильным устройствам
// дополнительно уходит app-level текстовый "ping", так как их сетевые
// стеки не всегда доносят ping/pong кадры
func (s *Session) Ping() error {
	s.sendMu.Lock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		s.sendMu.Unlock()
		return err
	}
	err := s.conn.WriteMessage(websocket.PingMessage, nil)
	s.sendMu.Unlock()
	if err != nil {
		return err
	}

	if s.Device.IsMobile {
		return s.writeText(transport.PingMessage)
	}
	return nil
}

// Run читает кадры до закрытия соединения. Контрольные строки
// обрабатываются до дешифрования; ошибка дешифрования или разбора
// фатальна - сессия закрывается кодом failed
func (s *Session) Run(ctx context.Context) {
	defer s.Close(websocket.CloseNormalClosure, "")

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if s.State() == StateConnected {
				s.logger.Info("session read ended", slog.Any("error", err))
			}
			return
		}

		s.markAlive()

		text := string(raw)
		if transport.IsControlMessage(text) {
			if text == transport.HelloMessage {
				s.logger.Debug("hello received")
			}
			continue
		}

		payload, err := transport.Decode(text, s.Device.Key)
		if err != nil {
			s.logger.Warn("failed to decode frame", slog.Any("error", err))
			s.Close(transport.CloseFailed, "decode failed")
			return
		}

		if err := s.remote.HandleMessage(ctx, payload); err != nil {
			s.logger.Warn("failed to handle rpc message", slog.Any("error", err))
			s.Close(transport.CloseFailed, "protocol violation")
			return
		}
	}
}

// Close закрывает сессию с указанным кодом. Флаги готовности
// сбрасываются до рассылки close, ожидающие вызовы обрываются.
// Повторные вызовы игнорируются
func (s *Session) Close(code int, reason string) {
	s.closeOnce.Do(func() {
		s.clearFlags()

		s.mu.Lock()
		s.state = StateClosing
		callbacks := s.onClose
		s.mu.Unlock()

		s.remote.Close(fmt.Errorf("session closed: %s", reason))

		msg := websocket.FormatCloseMessage(code, reason)
		s.sendMu.Lock()
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = s.conn.WriteMessage(websocket.CloseMessage, msg)
		s.sendMu.Unlock()

		_ = s.conn.Close()

		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()

		for _, fn := range callbacks {
			fn(s)
		}

		close(s.done)

		s.logger.Info("session closed",
			slog.Int("code", code), slog.String("reason", reason))
	})
}

// Done возвращает канал, закрываемый при завершении сессии
func (s *Session) Done() <-chan struct{} { return s.done }
