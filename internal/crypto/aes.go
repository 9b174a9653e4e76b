package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/md5" //nolint:gosec // MD5 требуется протоколом деривации временного ключа
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const (
	// KeySize - размер AES ключа в байтах (AES-128)
	KeySize = 16
)

// GenerateKey генерирует случайный постоянный ключ устройства
// и возвращает его в base64 (формат хранения и передачи ключей в протоколе)
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// DeriveTempKey выводит временный ключ из кода подключения:
// первые 16 hex-символов MD5(code) интерпретируются как сырые байты
// (без повторного хеширования) и кодируются в base64.
// Детерминированная чистая функция: одинаковый код дает одинаковый ключ
func DeriveTempKey(code string) string {
	sum := md5.Sum([]byte(code)) //nolint:gosec // wire-совместимость
	hexStr := hex.EncodeToString(sum[:])
	return base64.StdEncoding.EncodeToString([]byte(hexStr[:KeySize]))
}

// EncryptAES шифрует строку AES-128-ECB с PKCS7 padding.
// ECB без IV - требование wire-совместимости протокола, не выбор дизайна.
// keyBase64 - ключ в base64 (16 bytes). Результат - base64 шифротекста
func EncryptAES(plaintext, keyBase64 string) (string, error) {
	key, err := decodeKey(keyBase64)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), block.BlockSize())
	ciphertext := make([]byte, len(padded))
	for i := 0; i < len(padded); i += block.BlockSize() {
		block.Encrypt(ciphertext[i:], padded[i:])
	}

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptAES дешифрует base64 шифротекст, созданный EncryptAES
func DecryptAES(ciphertextBase64, keyBase64 string) (string, error) {
	key, err := decodeKey(keyBase64)
	if err != nil {
		return "", err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextBase64)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return "", fmt.Errorf("ciphertext length %d is not a multiple of block size", len(ciphertext))
	}

	plaintext := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += block.BlockSize() {
		block.Decrypt(plaintext[i:], ciphertext[i:])
	}

	unpadded, err := pkcs7Unpad(plaintext, block.BlockSize())
	if err != nil {
		return "", err
	}

	return string(unpadded), nil
}

// decodeKey декодирует base64 ключ и проверяет длину
func decodeKey(keyBase64 string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// pkcs7Pad добавляет PKCS7 padding до кратности blockSize
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

// pkcs7Unpad снимает PKCS7 padding с проверкой корректности
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-padLen], nil
}
