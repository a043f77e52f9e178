package keymat

import (
	"crypto/ed25519"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"
)

func TestLoadGeneratesKeysOnFirstUse(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir)
	require.NoError(t, err)

	seed, err := os.ReadFile(filepath.Join(dir, "signing-key"))
	require.NoError(t, err)
	assert.Len(t, seed, ed25519.SeedSize)

	key, err := os.ReadFile(filepath.Join(dir, "encryption-key"))
	require.NoError(t, err)
	assert.Len(t, key, chacha20poly1305.KeySize)
}

func TestLoadReusesExistingKeys(t *testing.T) {
	dir := t.TempDir()

	m1, err := Load(dir)
	require.NoError(t, err)
	m2, err := Load(dir)
	require.NoError(t, err)

	sig := m1.Sign([]byte("payload"))
	assert.True(t, m2.Verify([]byte("payload"), sig))
}

func TestLoadRejectsWrongSizeKeyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "signing-key"), []byte("short"), 0o600))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong size")
}

func TestSignVerify(t *testing.T) {
	m, err := Load(t.TempDir())
	require.NoError(t, err)

	data := []byte(`{"action":"rotate"}`)
	sig := m.Sign(data)
	assert.True(t, m.Verify(data, sig))
	assert.False(t, m.Verify([]byte("tampered"), sig))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := LoadCipher(t.TempDir())
	require.NoError(t, err)

	encrypted, err := c.Encrypt("sk_live_abcdef123456")
	require.NoError(t, err)
	assert.NotContains(t, encrypted, "sk_live")

	plaintext, err := c.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "sk_live_abcdef123456", plaintext)
}

func TestEncryptProducesUniqueNonces(t *testing.T) {
	c, err := LoadCipher(t.TempDir())
	require.NoError(t, err)

	a, err := c.Encrypt("value")
	require.NoError(t, err)
	b, err := c.Encrypt("value")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptTooShort(t *testing.T) {
	c, err := LoadCipher(t.TempDir())
	require.NoError(t, err)

	short := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	_, err = c.Decrypt(short)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	c1, err := LoadCipher(t.TempDir())
	require.NoError(t, err)
	c2, err := LoadCipher(t.TempDir())
	require.NoError(t, err)

	encrypted, err := c1.Encrypt("value")
	require.NoError(t, err)

	_, err = c2.Decrypt(encrypted)
	assert.ErrorIs(t, err, kserrors.ErrDecryptionFailed)
}

func TestDecryptInvalidBase64(t *testing.T) {
	c, err := LoadCipher(t.TempDir())
	require.NoError(t, err)

	_, err = c.Decrypt("!!!not-base64!!!")
	require.Error(t, err)
}
