package pairing

import (
	"log/slog"
	"sync"
	"time"
)

// Throttle представляет счетчик неудачных попыток pairing по IP.
// Каждая неуспешная попытка инкрементирует счетчик источника;
// после превышения порога попытки отклоняются до любой криптографии
type Throttle struct {
	entries  map[string]*entry
	logger   *slog.Logger
	cleanupC chan struct{}
	limit    int
	window   time.Duration
	mu       sync.Mutex
}

// entry представляет счетчик для конкретного IP
type entry struct {
	lastFailure time.Time
	failures    int
}

// NewThrottle создает throttle
// limit - порог неудач, после которого IP блокируется
// window - окно, по истечении которого счетчик забывается
func NewThrottle(limit int, window time.Duration, logger *slog.Logger) *Throttle {
	t := &Throttle{
		entries:  make(map[string]*entry),
		limit:    limit,
		window:   window,
		logger:   logger,
		cleanupC: make(chan struct{}),
	}

	// Запускаем периодическую очистку старых счетчиков
	go t.cleanup()

	return t
}

// cleanup периодически удаляет просроченные счетчики для экономии памяти
func (t *Throttle) cleanup() {
	ticker := time.NewTicker(t.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.cleanupExpired()
		case <-t.cleanupC:
			return
		}
	}
}

// cleanupExpired удаляет счетчики, не обновлявшиеся дольше window
func (t *Throttle) cleanupExpired() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for key, e := range t.entries {
		if now.Sub(e.lastFailure) > t.window {
			delete(t.entries, key)
		}
	}
}

// Stop останавливает cleanup goroutine
func (t *Throttle) Stop() {
	close(t.cleanupC)
}

// Blocked сообщает, превысил ли IP порог неудач
func (t *Throttle) Blocked(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[ip]
	if !ok {
		return false
	}
	// Просроченный счетчик не блокирует
	if time.Since(e.lastFailure) > t.window {
		delete(t.entries, ip)
		return false
	}
	return e.failures > t.limit
}

// Fail фиксирует неуспешную попытку с этого IP
func (t *Throttle) Fail(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[ip]
	if !ok {
		e = &entry{}
		t.entries[ip] = e
	}
	e.failures++
	e.lastFailure = time.Now()

	if e.failures > t.limit {
		t.logger.Warn("ip blocked after repeated pairing failures",
			slog.String("ip", ip),
			slog.Int("failures", e.failures))
	}
}

// Reset сбрасывает счетчик IP после успешного pairing
func (t *Throttle) Reset(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, ip)
}
