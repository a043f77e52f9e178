// Package keypool manages pools of pre-provisioned keys for secrets
// whose issuers rate-limit generation. Key values are encrypted at rest
// and move through a one-way lifecycle: available, active, exhausted.
package keypool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/keystone-dev/keystone/internal/keymat"
	"github.com/keystone-dev/keystone/internal/logging"
)

// Status is the lifecycle state of a pool key.
type Status string

const (
	StatusAvailable Status = "available"
	StatusActive    Status = "active"
	StatusExhausted Status = "exhausted"
)

// Key is a single pool entry. The value is stored encrypted.
type Key struct {
	EncryptedValue string     `json:"encrypted_value"`
	Status         Status     `json:"status"`
	LastUsed       *time.Time `json:"last_used"`
	RateLimitHitAt *time.Time `json:"rate_limit_hit_at"`
	UsageCount     int        `json:"usage_count"`
}

// Pool is the persisted state for one secret's key pool.
type Pool struct {
	SecretName   string     `json:"secret_name"`
	Keys         []Key      `json:"keys"`
	CurrentIndex int        `json:"current_index"`
	LastRotation *time.Time `json:"last_rotation"`
}

// KeyInfo is a display-safe view of one pool entry.
type KeyInfo struct {
	Index          int
	Preview        string
	Status         Status
	LastUsed       *time.Time
	RateLimitHitAt *time.Time
	UsageCount     int
}

// Store persists pools as JSON files under a directory, one per secret.
type Store struct {
	dir    string
	cipher *keymat.Cipher
}

// NewStore creates a pool store rooted at dir using cipher for key values.
func NewStore(dir string, cipher *keymat.Cipher) *Store {
	return &Store{dir: dir, cipher: cipher}
}

// Exists reports whether a pool file exists for the secret.
func (s *Store) Exists(secret string) bool {
	_, err := os.Stat(s.path(secret))
	return err == nil
}

// Load reads the pool for the secret. A missing file yields an empty pool.
func (s *Store) Load(secret string) (*Pool, error) {
	data, err := os.ReadFile(s.path(secret))
	if err != nil {
		if os.IsNotExist(err) {
			return &Pool{SecretName: secret}, nil
		}
		return nil, fmt.Errorf("failed to read pool file: %w", err)
	}

	var pool Pool
	if err := json.Unmarshal(data, &pool); err != nil {
		return nil, fmt.Errorf("failed to parse pool file for %s: %w", secret, err)
	}
	return &pool, nil
}

// Save writes the pool atomically via a temp file rename.
func (s *Store) Save(pool *Pool) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create pool directory: %w", err)
	}

	data, err := json.MarshalIndent(pool, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pool: %w", err)
	}

	path := s.path(pool.SecretName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write pool file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save pool file: %w", err)
	}
	return nil
}

// Remove deletes the pool file for the secret.
func (s *Store) Remove(secret string) error {
	if err := os.Remove(s.path(secret)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pool file: %w", err)
	}
	return nil
}

// AddKey encrypts value and appends it to the pool as available.
func (s *Store) AddKey(pool *Pool, value string) error {
	encrypted, err := s.cipher.Encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt pool key: %w", err)
	}
	pool.Keys = append(pool.Keys, Key{
		EncryptedValue: encrypted,
		Status:         StatusAvailable,
	})
	return nil
}

// GetNextAvailable activates the first available key in insertion order
// and returns its decrypted value. The pool is mutated but not saved.
func (s *Store) GetNextAvailable(pool *Pool) (string, error) {
	if len(pool.Keys) == 0 {
		return "", kserrors.ErrPoolEmpty
	}

	for i := range pool.Keys {
		if pool.Keys[i].Status != StatusAvailable {
			continue
		}
		value, err := s.cipher.Decrypt(pool.Keys[i].EncryptedValue)
		if err != nil {
			return "", fmt.Errorf("failed to decrypt pool key %d: %w", i, err)
		}

		now := time.Now().UTC()
		pool.Keys[i].Status = StatusActive
		pool.Keys[i].LastUsed = &now
		pool.Keys[i].UsageCount++
		pool.CurrentIndex = i
		pool.LastRotation = &now
		return value, nil
	}
	return "", kserrors.ErrPoolExhausted
}

// MarkExhausted finds the key whose decrypted value equals value and
// retires it. Exhausted is terminal.
func (s *Store) MarkExhausted(pool *Pool, value string) error {
	for i := range pool.Keys {
		plaintext, err := s.cipher.Decrypt(pool.Keys[i].EncryptedValue)
		if err != nil {
			continue
		}
		if plaintext == value {
			now := time.Now().UTC()
			pool.Keys[i].Status = StatusExhausted
			pool.Keys[i].RateLimitHitAt = &now
			return nil
		}
	}
	return kserrors.ErrKeyNotFound
}

// GetCurrent returns the decrypted value of the key at the current index.
func (s *Store) GetCurrent(pool *Pool) (string, error) {
	if len(pool.Keys) == 0 {
		return "", kserrors.ErrPoolEmpty
	}
	if pool.CurrentIndex < 0 || pool.CurrentIndex >= len(pool.Keys) {
		return "", fmt.Errorf("pool current index %d out of range", pool.CurrentIndex)
	}
	return s.cipher.Decrypt(pool.Keys[pool.CurrentIndex].EncryptedValue)
}

// ListKeys returns display-safe previews of every key in the pool.
func (s *Store) ListKeys(pool *Pool) ([]KeyInfo, error) {
	infos := make([]KeyInfo, 0, len(pool.Keys))
	for i, k := range pool.Keys {
		value, err := s.cipher.Decrypt(k.EncryptedValue)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt pool key %d: %w", i, err)
		}
		infos = append(infos, KeyInfo{
			Index:          i,
			Preview:        logging.Mask(value),
			Status:         k.Status,
			LastUsed:       k.LastUsed,
			RateLimitHitAt: k.RateLimitHitAt,
			UsageCount:     k.UsageCount,
		})
	}
	return infos, nil
}

// RemoveKey deletes the key at index from the pool, adjusting the
// current index so it keeps pointing at the same key where possible.
func (s *Store) RemoveKey(pool *Pool, index int) error {
	if index < 0 || index >= len(pool.Keys) {
		return fmt.Errorf("key index %d out of range (pool has %d keys)", index, len(pool.Keys))
	}
	pool.Keys = append(pool.Keys[:index], pool.Keys[index+1:]...)
	if pool.CurrentIndex > index {
		pool.CurrentIndex--
	} else if pool.CurrentIndex == index && pool.CurrentIndex >= len(pool.Keys) && pool.CurrentIndex > 0 {
		pool.CurrentIndex--
	}
	return nil
}

// CountByStatus returns how many keys are in each lifecycle state.
func (p *Pool) CountByStatus() (available, active, exhausted int) {
	for _, k := range p.Keys {
		switch k.Status {
		case StatusAvailable:
			available++
		case StatusActive:
			active++
		case StatusExhausted:
			exhausted++
		}
	}
	return
}

func (s *Store) path(secret string) string {
	return filepath.Join(s.dir, secret+".json")
}
