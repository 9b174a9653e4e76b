// Package server собирает relay воедино: HTTP/WebSocket маршруты,
// pairing, сессии устройств, per-user namespace-ы и движок сверки
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/listkeeper/listsync/internal/config"
	"github.com/listkeeper/listsync/internal/crypto"
	"github.com/listkeeper/listsync/internal/models"
	"github.com/listkeeper/listsync/internal/server/middleware"
	"github.com/listkeeper/listsync/internal/server/pairing"
	"github.com/listkeeper/listsync/internal/server/session"
	"github.com/listkeeper/listsync/internal/server/storage"
	"github.com/listkeeper/listsync/internal/server/users"
	"github.com/listkeeper/listsync/internal/transport"
	"github.com/listkeeper/listsync/pkg/api"
)

const shutdownTimeout = 10 * time.Second

// Storage - персистентность, которую потребляет relay
type Storage struct {
	Devices   storage.DeviceStorage
	ListData  storage.ListDataStorage
	Snapshots storage.SnapshotStorage
	Events    storage.EventStorage // опционально, nil отключает журнал
}

// SyncServer - единый контекст relay, передается обработчикам явно
type SyncServer struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    Storage
	registry *users.Registry
	sessions *session.Manager
	throttle *pairing.Throttle
	pair     *pairing.Handler
	hooks    *Hooks
	metrics  *Metrics
	promReg  *prometheus.Registry
	upgrader websocket.Upgrader
}

// New создает сервер синхронизации
func New(cfg *config.Config, store Storage, logger *slog.Logger) *SyncServer {
	promReg := prometheus.NewRegistry()
	throttle := pairing.NewThrottle(pairing.DefaultFailureLimit, pairing.DefaultFailureWindow, logger)

	return &SyncServer{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: users.NewRegistry(cfg, store.ListData, store.Snapshots, logger),
		sessions: session.NewManager(session.DefaultHeartbeatInterval, logger),
		throttle: throttle,
		pair:     pairing.NewHandler(cfg, store.Devices, throttle, logger),
		hooks:    NewHooks(store.Events, logger),
		metrics:  NewMetrics(promReg),
		promReg:  promReg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Hooks возвращает точки подписки для внешних модулей
func (s *SyncServer) Hooks() *Hooks { return s.hooks }

// Sessions возвращает менеджер сессий (для админ-операций)
func (s *SyncServer) Sessions() *session.Manager { return s.sessions }

// Router собирает маршруты relay
func (s *SyncServer) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RecoveryMiddleware(s.logger))
	r.Use(middleware.LoggingWithSkip(s.logger, []string{"/hello", "/metrics"}))

	r.Handle("/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/hello", s.handleHello).Methods(http.MethodGet)
	r.HandleFunc("/id", s.handleID).Methods(http.MethodGet)

	if s.cfg.MultiUserPath {
		// Первый сегмент пути - имя аккаунта; устройство обязано
		// принадлежать именно ему
		r.HandleFunc("/{user}/hello", s.handleHello).Methods(http.MethodGet)
		r.HandleFunc("/{user}/id", s.handleID).Methods(http.MethodGet)
		r.HandleFunc("/{user}/pair", s.handlePair)
		r.HandleFunc("/{user}", s.handleWS)
	} else {
		r.HandleFunc("/pair", s.handlePair)
		r.HandleFunc("/", s.handleWS)
	}

	return r
}

// Run поднимает HTTP сервер и heartbeat, блокируется до отмены контекста
func (s *SyncServer) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.cfg.BindAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server listening", slog.String("addr", s.cfg.BindAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.sessions.RunHeartbeat(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down")

		s.sessions.CloseAll()
		s.throttle.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// handleHello - liveness endpoint, отвечает фиксированным приветствием
func (s *SyncServer) handleHello(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(transport.HelloMessage))
}

// handleID - discovery endpoint, отдает маркированное имя сервера
func (s *SyncServer) handleID(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(transport.IDPrefix + s.cfg.ServerName))
}

// statusRecorder захватывает статус ответа для метрик pairing
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *SyncServer) handlePair(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.pair.HandlePair(rec, r, s.targetUser(r))

	switch rec.status {
	case http.StatusOK:
		s.metrics.PairingAttempts.WithLabelValues("ok").Inc()
	case http.StatusForbidden:
		s.metrics.PairingAttempts.WithLabelValues("blocked").Inc()
	default:
		s.metrics.PairingAttempts.WithLabelValues("failed").Inc()
	}
}

// targetUser возвращает аккаунт из пути при multiUserPath
func (s *SyncServer) targetUser(r *http.Request) string {
	if !s.cfg.MultiUserPath {
		return ""
	}
	return mux.Vars(r)["user"]
}

// handleWS устанавливает сессию устройства: проверка connect-proof
// до upgrade, затем регистрация сессии и запуск раунда сверки
func (s *SyncServer) handleWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clientID := r.URL.Query().Get(api.QueryClientID)
	proof := r.URL.Query().Get(api.QueryConnectProof)
	if clientID == "" || proof == "" {
		http.Error(w, "auth failed", http.StatusUnauthorized)
		return
	}

	var (
		user   string
		device *models.DeviceKeyInfo
		err    error
	)
	if target := s.targetUser(r); target != "" {
		// Устройство обязано принадлежать аккаунту из пути
		user = target
		device, err = s.store.Devices.GetDevice(ctx, target, clientID)
	} else {
		user, device, err = s.store.Devices.FindDevice(ctx, clientID)
	}
	if err != nil {
		http.Error(w, "auth failed", http.StatusUnauthorized)
		return
	}

	plain, err := crypto.DecryptAES(proof, device.Key)
	if err != nil || plain != transport.ConnectMessage {
		http.Error(w, "auth failed", http.StatusUnauthorized)
		return
	}

	ns, err := s.registry.Acquire(user)
	if err != nil {
		http.Error(w, "auth failed", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.registry.Release(ns)
		s.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	sess := session.New(conn, user, device, s.logger)
	sess.MarkConnected()
	s.metrics.OpenSessions.Inc()
	sess.OnClose(func(*session.Session) {
		s.metrics.OpenSessions.Dec()
		s.registry.Release(ns)
	})

	c := &connection{srv: s, sess: sess, ns: ns}
	c.registerHandlers()
	s.sessions.Register(sess)

	device.LastConnectDate = time.Now()
	if err := s.store.Devices.SaveDevice(ctx, user, device); err != nil {
		s.logger.Warn("failed to update device record", slog.Any("error", err))
	}

	s.hooks.FireSessionOpen(ctx, user, clientID)

	// Сторона сервера инициирует переговоры о фичах и первый раунд
	go c.runSync(ctx)

	sess.Run(ctx)
}

// RemoveDevice - административная операция: живая сессия устройства
// закрывается, его ключ удаляется
func (s *SyncServer) RemoveDevice(ctx context.Context, user, clientID string) error {
	s.sessions.CloseDevice(clientID)
	if err := s.store.Devices.DeleteDevice(ctx, user, clientID); err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	s.logger.Info("device removed",
		slog.String("user", user), slog.String("clientId", clientID))
	return nil
}
