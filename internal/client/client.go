// Package client реализует сторону устройства: pairing с relay,
// установку шифрованной сессии и локальную копию документа списков
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/listkeeper/listsync/internal/client/storage"
	"github.com/listkeeper/listsync/internal/crypto"
	"github.com/listkeeper/listsync/internal/synclist"
	"github.com/listkeeper/listsync/internal/transport"
	"github.com/listkeeper/listsync/pkg/api"
)

const authPrefix = "auth::"

// ErrAuthFailed возвращается при отказе relay в pairing или подключении
var ErrAuthFailed = errors.New("server rejected authentication")

// Client - клиент relay: pairing по HTTP и сессии по websocket
type Client struct {
	baseURL  string
	httpc    *http.Client
	store    storage.IdentityStorage
	lists    storage.ListDataStorage
	logger   *slog.Logger
	syncMode synclist.SyncMode
	isMobile bool
}

// New создает клиент relay. baseURL - без завершающего слеша,
// с сегментом аккаунта при multiUserPath на сервере
func New(baseURL string, store storage.IdentityStorage, lists storage.ListDataStorage, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 30 * time.Second},
		store:   store,
		lists:   lists,
		logger:  logger,
	}
}

// SetSyncMode задает режим, который клиент предложит при сверке.
// Пустой режим - решение оставляется серверу
func (c *Client) SetSyncMode(mode synclist.SyncMode) {
	c.syncMode = mode
}

// SetMobile помечает устройство как мобильное при pairing
func (c *Client) SetMobile(v bool) {
	c.isMobile = v
}

// Hello проверяет доступность relay
func (c *Client) Hello(ctx context.Context) error {
	body, err := c.get(ctx, "/hello")
	if err != nil {
		return err
	}
	if body != transport.HelloMessage {
		return fmt.Errorf("unexpected hello response %q", body)
	}
	return nil
}

// ServerID возвращает имя relay из discovery endpoint
func (c *Client) ServerID(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/id")
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(body, transport.IDPrefix) {
		return "", fmt.Errorf("unexpected id response %q", body)
	}
	return strings.TrimPrefix(body, transport.IDPrefix), nil
}

func (c *Client) get(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("request %s failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request %s: status %d", path, resp.StatusCode)
	}
	return string(body), nil
}

// Pair привязывает устройство по коду подключения и сохраняет
// выданную идентичность локально
func (c *Client) Pair(ctx context.Context, code, deviceName string) (*storage.Identity, error) {
	priv, err := crypto.GenerateRSAKey()
	if err != nil {
		return nil, err
	}
	pub, err := crypto.ExportPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, err
	}

	plain := strings.Join([]string{
		authPrefix, pub, deviceName, strconv.FormatBool(c.isMobile),
	}, "\n")
	message, err := crypto.EncryptAES(plain, crypto.DeriveTempKey(code))
	if err != nil {
		return nil, err
	}

	body, err := c.pairRequest(ctx, message, "")
	if err != nil {
		return nil, err
	}

	decrypted, err := crypto.DecryptRSA(priv, body)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt pairing reply: %w", err)
	}
	var result api.PairResult
	if err := json.Unmarshal(decrypted, &result); err != nil {
		return nil, fmt.Errorf("failed to parse pairing reply: %w", err)
	}

	identity := &storage.Identity{
		ClientID:   result.ClientID,
		Key:        result.Key,
		ServerURL:  c.baseURL,
		ServerName: result.ServerName,
		DeviceName: deviceName,
		PairedAt:   time.Now().UTC(),
	}
	if err := c.store.SaveIdentity(ctx, identity); err != nil {
		return nil, fmt.Errorf("failed to save identity: %w", err)
	}

	c.logger.Info("device paired",
		slog.String("clientId", identity.ClientID),
		slog.String("serverName", identity.ServerName))
	return identity, nil
}

// VerifyKey проверяет сохраненную идентичность на relay
// (путь переподключения по постоянному ключу)
func (c *Client) VerifyKey(ctx context.Context) error {
	identity, err := c.store.GetIdentity(ctx)
	if err != nil {
		return err
	}

	message, err := crypto.EncryptAES(authPrefix+identity.DeviceName, identity.Key)
	if err != nil {
		return err
	}

	body, err := c.pairRequest(ctx, message, identity.ClientID)
	if err != nil {
		return err
	}

	plain, err := crypto.DecryptAES(body, identity.Key)
	if err != nil {
		return fmt.Errorf("failed to decrypt verify reply: %w", err)
	}
	if plain != transport.HelloMessage {
		return fmt.Errorf("unexpected verify reply")
	}
	return nil
}

func (c *Client) pairRequest(ctx context.Context, message, clientID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pair", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set(api.HeaderMessage, message)
	if clientID != "" {
		req.Header.Set(api.HeaderClientID, clientID)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("pairing request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return string(body), nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", fmt.Errorf("%w: %s", ErrAuthFailed, strings.TrimSpace(string(body)))
	default:
		return "", fmt.Errorf("pairing: unexpected status %d", resp.StatusCode)
	}
}

// wsURL строит адрес установки сессии с connect-proof
func (c *Client) wsURL(identity *storage.Identity) (string, error) {
	proof, err := crypto.EncryptAES(transport.ConnectMessage, identity.Key)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" {
		u.Path = "/"
	}

	q := u.Query()
	q.Set(api.QueryClientID, identity.ClientID)
	q.Set(api.QueryConnectProof, proof)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
