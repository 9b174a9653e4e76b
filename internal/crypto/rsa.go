package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // SHA-1 в OAEP требуется wire-совместимостью с пирами
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

const (
	// RSAKeyBits - размер ключевой пары для обмена permanentKey при pairing
	RSAKeyBits = 2048
)

// GenerateRSAKey генерирует ключевую пару RSA-2048.
// Экспорт публичного ключа через MarshalPKIXPublicKey дает SPKI
// с generic OID rsaEncryption (1.2.840.113549.1.1.1) - именно такой
// формат ожидает криптослой пира
func GenerateRSAKey() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, RSAKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate rsa key: %w", err)
	}
	return key, nil
}

// ExportPublicKey сериализует публичный ключ в base64 от SPKI DER.
// Одна строка без переводов: ключ передается внутри newline-разделенного
// сообщения handshake
func ExportPublicKey(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// ParsePublicKey разбирает base64 SPKI публичный ключ,
// присланный устройством при pairing
func ParsePublicKey(spkiBase64 string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(spkiBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not rsa, got %T", pub)
	}
	return rsaPub, nil
}

// EncryptRSA шифрует данные OAEP с SHA-1 (дефолт криптослоя пира;
// SHA-256 пир расшифровать не сможет). Результат в base64
func EncryptRSA(pub *rsa.PublicKey, data []byte) (string, error) {
	ciphertext, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, data, nil) //nolint:gosec // wire-совместимость
	if err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptRSA дешифрует base64 шифротекст, созданный EncryptRSA
func DecryptRSA(priv *rsa.PrivateKey, ciphertextBase64 string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	plaintext, err := rsa.DecryptOAEP(sha1.New(), rand.Reader, priv, ciphertext, nil) //nolint:gosec // wire-совместимость
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}
