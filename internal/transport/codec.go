// Package transport реализует кодек шифрованного канала:
// JSON -> (gzip+base64 при больших сообщениях) -> AES.
// Поверх кодека работает слой RPC (internal/rpc).
package transport

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/listkeeper/listsync/internal/crypto"
)

const (
	// CompressMarker - префикс сжатого сообщения внутри шифрованного канала
	CompressMarker = "cg_"
	// CompressThreshold - порог длины JSON, после которого включается gzip
	CompressThreshold = 1024

	// HelloMessage - открытая строка discovery-эндпоинта и приветствия
	HelloMessage = "Hello~::^-^::~"
	// PingMessage - app-level ping для мобильных устройств, не парсится
	PingMessage = "ping"
	// ConnectMessage - строка connect-proof в параметре t при установке сессии
	ConnectMessage = "connect"
	// IDPrefix - маркер перед именем сервера в ответе discovery
	IDPrefix = "id::"

	// CloseFailed - код закрытия при нарушении протокола (auth, decrypt, parse).
	// Нормальное закрытие и вытеснение дубликата используют 1000
	CloseFailed = 4100
)

// Encode сериализует payload для отправки: JSON, при превышении порога -
// gzip+base64 с маркером, затем AES на ключе сессии
func Encode(v any, key string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	text := string(data)
	if len(data) > CompressThreshold {
		compressed, err := gzipCompress(data)
		if err != nil {
			return "", err
		}
		text = CompressMarker + base64.StdEncoding.EncodeToString(compressed)
	}

	frame, err := crypto.EncryptAES(text, key)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt frame: %w", err)
	}
	return frame, nil
}

// Decode дешифрует входящий кадр и возвращает JSON-байты payload.
// Ошибка дешифровки или разбора фатальна для сессии (решает вызывающий)
func Decode(frame, key string) ([]byte, error) {
	text, err := crypto.DecryptAES(frame, key)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt frame: %w", err)
	}

	if strings.HasPrefix(text, CompressMarker) {
		compressed, err := base64.StdEncoding.DecodeString(text[len(CompressMarker):])
		if err != nil {
			return nil, fmt.Errorf("failed to decode compressed frame: %w", err)
		}
		data, err := gzipDecompress(compressed)
		if err != nil {
			return nil, err
		}
		return data, nil
	}

	return []byte(text), nil
}

// DecodeInto дешифрует кадр и разбирает payload в v
func DecodeInto(frame, key string, v any) error {
	data, err := Decode(frame, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}

// IsControlMessage сообщает, является ли сырой (нешифрованный) кадр
// служебной строкой, не подлежащей декодированию
func IsControlMessage(raw string) bool {
	return raw == PingMessage || raw == HelloMessage
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	return out, nil
}
