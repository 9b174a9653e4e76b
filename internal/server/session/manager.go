package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/listkeeper/listsync/internal/transport"
)

// DefaultHeartbeatInterval - период опроса живости сессий
const DefaultHeartbeatInterval = 30 * time.Second

// Manager отслеживает все открытые сессии процесса.
// Инвариант: на одно устройство не больше одной живой сессии
type Manager struct {
	sessions map[string]*Session
	logger   *slog.Logger
	interval time.Duration
	mu       sync.Mutex
}

// NewManager создает менеджер сессий
func NewManager(interval time.Duration, logger *slog.Logger) *Manager {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Manager{
		sessions: make(map[string]*Session),
		logger:   logger,
		interval: interval,
	}
}

// Register добавляет сессию. Другая открытая сессия того же устройства
// вытесняется: ее флаги сбрасываются, затем она закрывается нормальным
// кодом, чтобы in-flight вызовы к ней падали быстро
func (m *Manager) Register(s *Session) {
	m.mu.Lock()
	old, exists := m.sessions[s.ClientID()]
	m.sessions[s.ClientID()] = s
	m.mu.Unlock()

	if exists && old != s {
		m.logger.Info("evicting duplicate session",
			slog.String("user", old.User),
			slog.String("clientId", old.ClientID()))
		old.Close(websocket.CloseNormalClosure, "replaced by new connection")
	}

	s.OnClose(m.unregister)
}

// unregister удаляет сессию из реестра, если она все еще текущая
func (m *Manager) unregister(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.sessions[s.ClientID()]; ok && current == s {
		delete(m.sessions, s.ClientID())
	}
}

// Get возвращает открытую сессию устройства
func (m *Manager) Get(clientID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[clientID]
	return s, ok
}

// ForUser возвращает все открытые сессии аккаунта
func (m *Manager) ForUser(user string) []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Session
	for _, s := range m.sessions {
		if s.User == user {
			out = append(out, s)
		}
	}
	return out
}

// Count возвращает число открытых сессий
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseDevice принудительно закрывает живую сессию устройства.
// Используется при удалении устройства администратором
func (m *Manager) CloseDevice(clientID string) {
	if s, ok := m.Get(clientID); ok {
		s.Close(websocket.CloseNormalClosure, "device removed")
	}
}

// CloseAll закрывает все сессии (останов сервера)
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close(websocket.CloseNormalClosure, "server shutdown")
	}
}

// RunHeartbeat пингует сессии с фиксированным интервалом.
// Сессия, не ответившая с прошлого раза, принудительно завершается
func (m *Manager) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.beat()
		}
	}
}

func (m *Manager) beat() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		if !s.consumeAlive() {
			m.logger.Warn("session missed heartbeat",
				slog.String("user", s.User),
				slog.String("clientId", s.ClientID()))
			s.Close(transport.CloseFailed, "heartbeat timeout")
			continue
		}
		if err := s.Ping(); err != nil {
			m.logger.Warn("failed to ping session",
				slog.String("clientId", s.ClientID()),
				slog.Any("error", err))
			s.Close(transport.CloseFailed, "ping failed")
		}
	}
}
