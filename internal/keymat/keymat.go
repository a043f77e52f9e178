// Package keymat manages the key material backing audit signing and
// secret value encryption. Keys live as raw files in the state
// directory and are generated on first use.
package keymat

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	signingKeyFile    = "signing-key"
	encryptionKeyFile = "encryption-key"
)

// Material bundles the signing key pair and the symmetric cipher used
// across the audit log and key pool.
type Material struct {
	signing ed25519.PrivateKey
	cipher  *Cipher
}

// Load reads the key files from dir, generating any that are missing.
func Load(dir string) (*Material, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	seed, err := loadOrGenerate(filepath.Join(dir, signingKeyFile), ed25519.SeedSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	cipher, err := LoadCipher(dir)
	if err != nil {
		return nil, err
	}

	return &Material{
		signing: ed25519.NewKeyFromSeed(seed),
		cipher:  cipher,
	}, nil
}

// Sign returns the ed25519 signature over data.
func (m *Material) Sign(data []byte) []byte {
	return ed25519.Sign(m.signing, data)
}

// Verify reports whether sig is a valid signature over data.
func (m *Material) Verify(data, sig []byte) bool {
	return ed25519.Verify(m.signing.Public().(ed25519.PublicKey), data, sig)
}

// Cipher returns the shared symmetric cipher.
func (m *Material) Cipher() *Cipher {
	return m.cipher
}

// Cipher encrypts and decrypts secret values with ChaCha20-Poly1305.
// The wire format is base64(nonce || ciphertext).
type Cipher struct {
	key []byte
}

// LoadCipher reads the encryption key from dir, generating it on first use.
func LoadCipher(dir string) (*Cipher, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	key, err := loadOrGenerate(filepath.Join(dir, encryptionKeyFile), chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to load encryption key: %w", err)
	}
	return &Cipher{key: key}, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid encrypted data: %w", err)
	}

	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return "", err
	}

	if len(data) < aead.NonceSize() {
		return "", fmt.Errorf("invalid encrypted data: too short")
	}

	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", kserrors.ErrDecryptionFailed
	}
	return string(plaintext), nil
}

func loadOrGenerate(path string, size int) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != size {
			return nil, fmt.Errorf("key file %s has wrong size: expected %d bytes, got %d", path, size, len(key))
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	key = make([]byte, size)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, err
	}
	return key, nil
}
