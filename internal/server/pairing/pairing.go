// Package pairing реализует handshake привязки устройств:
// выдачу постоянного ключа по коду подключения и переподключение
// по уже выданному ключу. Обе ветки защищены throttle по IP
package pairing

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/listkeeper/listsync/internal/config"
	"github.com/listkeeper/listsync/internal/crypto"
	"github.com/listkeeper/listsync/internal/models"
	"github.com/listkeeper/listsync/internal/server/storage"
	"github.com/listkeeper/listsync/internal/transport"
	"github.com/listkeeper/listsync/pkg/api"
)

const (
	// AuthPrefix - маркер подлинности в расшифрованном handshake-сообщении
	AuthPrefix = "auth::"

	// DefaultFailureLimit - порог неудачных попыток pairing с одного IP
	DefaultFailureLimit = 10
	// DefaultFailureWindow - окно, в котором копятся неудачи
	DefaultFailureWindow = time.Hour
)

// Handler обрабатывает HTTP endpoint привязки устройств
type Handler struct {
	cfg      *config.Config
	devices  storage.DeviceStorage
	throttle *Throttle
	logger   *slog.Logger
}

// NewHandler создает обработчик pairing
func NewHandler(cfg *config.Config, devices storage.DeviceStorage, throttle *Throttle, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		devices:  devices,
		throttle: throttle,
		logger:   logger,
	}
}

// HandlePair обрабатывает запрос привязки.
// Шифротекст передается в заголовке m; если присутствует заголовок i,
// пробуется переподключение по постоянному ключу, иначе - по коду.
// targetUser ограничивает перебор аккаунтов одним именем
// (маршрутизация по пути при multiUserPath); пустая строка - без ограничений
func (h *Handler) HandlePair(w http.ResponseWriter, r *http.Request, targetUser string) {
	ip := clientIP(r)

	// Блокировка проверяется до любой криптографии
	if h.throttle.Blocked(ip) {
		h.logger.Warn("pairing rejected: ip blocked", slog.String("ip", ip))
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("blocked"))
		return
	}

	message := r.Header.Get(api.HeaderMessage)
	if message == "" {
		h.fail(w, ip, "missing message header", nil)
		return
	}

	var (
		reply string
		err   error
	)
	if clientID := r.Header.Get(api.HeaderClientID); clientID != "" {
		reply, err = h.verifyByKey(r, clientID, targetUser, message)
	} else {
		reply, err = h.verifyByCode(r, targetUser, message)
	}
	if err != nil {
		h.fail(w, ip, "pairing failed", err)
		return
	}

	h.throttle.Reset(ip)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(reply))
}

// fail отвечает единым кодом 401 на любую ошибку аутентификации.
// Причина не раскрывается клиенту: неизвестный аккаунт и неверный код
// снаружи неразличимы
func (h *Handler) fail(w http.ResponseWriter, ip, msg string, err error) {
	h.throttle.Fail(ip)
	if err != nil {
		h.logger.Info(msg, slog.String("ip", ip), slog.String("error", err.Error()))
	} else {
		h.logger.Info(msg, slog.String("ip", ip))
	}
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte("auth failed"))
}

// verifyByKey проверяет переподключение устройства по постоянному ключу.
// Расшифрованное сообщение должно быть "<authPrefix><deviceName>";
// имя устройства обновляется, если изменилось
func (h *Handler) verifyByKey(r *http.Request, clientID, targetUser, message string) (string, error) {
	ctx := r.Context()

	var (
		user   string
		device *models.DeviceKeyInfo
		err    error
	)
	if targetUser != "" {
		user = targetUser
		device, err = h.devices.GetDevice(ctx, targetUser, clientID)
	} else {
		user, device, err = h.devices.FindDevice(ctx, clientID)
	}
	if err != nil {
		if errors.Is(err, storage.ErrDeviceNotFound) {
			return "", errors.New("unknown device")
		}
		return "", err
	}

	plain, err := crypto.DecryptAES(message, device.Key)
	if err != nil {
		return "", errors.New("decrypt failed")
	}
	if !strings.HasPrefix(plain, AuthPrefix) {
		return "", errors.New("bad auth message")
	}

	deviceName := strings.TrimPrefix(plain, AuthPrefix)
	device.DeviceName = deviceName
	device.LastConnectDate = time.Now()
	if err := h.devices.SaveDevice(ctx, user, device); err != nil {
		return "", err
	}

	h.logger.Info("device re-verified",
		slog.String("user", user),
		slog.String("clientId", clientID),
		slog.String("deviceName", deviceName))

	return crypto.EncryptAES(transport.HelloMessage, device.Key)
}

// verifyByCode проверяет привязку нового устройства по коду подключения.
// Перебираются все аккаунты (или один при targetUser); для каждого
// из пароля выводится временный ключ и пробуется расшифровка
func (h *Handler) verifyByCode(r *http.Request, targetUser, message string) (string, error) {
	users := h.cfg.Users
	if targetUser != "" {
		u, ok := h.cfg.User(targetUser)
		if !ok {
			// Неизвестный аккаунт неотличим от неверного кода
			return "", errors.New("auth failed")
		}
		users = []config.User{*u}
	}

	for i := range users {
		user := &users[i]
		tempKey := crypto.DeriveTempKey(user.Password)
		plain, err := crypto.DecryptAES(message, tempKey)
		if err != nil {
			continue
		}

		reply, err := h.registerDevice(r, user, plain)
		if err != nil {
			return "", err
		}
		return reply, nil
	}

	return "", errors.New("auth failed")
}

// registerDevice создает DeviceKeyInfo для нового устройства и шифрует
// ответ под публичный ключ из handshake-сообщения.
// plain: "<authPrefix>\n<publicKeySPKI>\n<deviceName>\n<mobileFlag>"
func (h *Handler) registerDevice(r *http.Request, user *config.User, plain string) (string, error) {
	parts := strings.Split(plain, "\n")
	if len(parts) != 4 || parts[0] != AuthPrefix {
		return "", errors.New("bad auth message")
	}

	pub, err := crypto.ParsePublicKey(parts[1])
	if err != nil {
		return "", errors.New("bad public key")
	}

	isMobile, _ := strconv.ParseBool(parts[3])

	key, err := crypto.GenerateKey()
	if err != nil {
		return "", err
	}

	device := &models.DeviceKeyInfo{
		ClientID:        uuid.New().String(),
		Key:             key,
		DeviceName:      parts[2],
		IsMobile:        isMobile,
		LastConnectDate: time.Now(),
	}
	if err := h.devices.SaveDevice(r.Context(), user.Name, device); err != nil {
		return "", err
	}

	result, err := json.Marshal(api.PairResult{
		ClientID:   device.ClientID,
		Key:        device.Key,
		ServerName: h.cfg.ServerName,
	})
	if err != nil {
		return "", err
	}

	h.logger.Info("device paired",
		slog.String("user", user.Name),
		slog.String("clientId", device.ClientID),
		slog.String("deviceName", device.DeviceName),
		slog.Bool("isMobile", device.IsMobile))

	return crypto.EncryptRSA(pub, result)
}

// clientIP извлекает IP источника запроса без порта
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
