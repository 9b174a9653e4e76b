package crypto

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRSAKey(t *testing.T) {
	key, err := GenerateRSAKey()
	require.NoError(t, err)
	assert.Equal(t, RSAKeyBits, key.N.BitLen())
}

func TestExportPublicKeyOID(t *testing.T) {
	key, err := GenerateRSAKey()
	require.NoError(t, err)

	spkiBase64, err := ExportPublicKey(&key.PublicKey)
	require.NoError(t, err)
	der, err := base64.StdEncoding.DecodeString(spkiBase64)
	require.NoError(t, err)

	// Wire-формат требует generic OID rsaEncryption (1.2.840.113549.1.1.1),
	// а не OID конкретной padding-схемы
	var spki struct {
		Algorithm pkix.AlgorithmIdentifier
		BitString asn1.BitString
	}
	_, err = asn1.Unmarshal(der, &spki)
	require.NoError(t, err)
	assert.Equal(t, asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}, spki.Algorithm.Algorithm)
}

func TestRSAEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateRSAKey()
	require.NoError(t, err)

	// Публичный ключ проходит через сериализацию, как при реальном pairing
	spkiBase64, err := ExportPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pub, err := ParsePublicKey(spkiBase64)
	require.NoError(t, err)

	plaintext := []byte(`{"clientId":"abc","key":"a2V5a2V5a2V5a2V5a2V5aw==","serverName":"relay"}`)

	ciphertext, err := EncryptRSA(pub, plaintext)
	require.NoError(t, err)

	decrypted, err := DecryptRSA(key, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestParsePublicKeyErrors(t *testing.T) {
	tests := []struct {
		name string
		spki string
	}{
		{name: "not base64", spki: "###"},
		{name: "empty", spki: ""},
		{name: "garbage der", spki: base64.StdEncoding.EncodeToString([]byte("garbage"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePublicKey(tt.spki)
			require.Error(t, err)
		})
	}
}
