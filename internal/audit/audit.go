// Package audit provides a tamper-evident log of rotation activity.
// Entries are ed25519-signed JSON lines appended to date-partitioned
// files; rotated secret values are stored encrypted so rollback can
// recover them.
package audit

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/keystone-dev/keystone/internal/keymat"
)

// Action identifies what an audit entry records.
type Action string

const (
	ActionRotate   Action = "rotate"
	ActionRollback Action = "rollback"
	ActionSignal   Action = "signal"
)

const filePrefix = "keystone"

// Entry is one audit log line. Signature covers all other fields.
type Entry struct {
	Timestamp            time.Time `json:"timestamp"`
	Actor                string    `json:"actor"`
	SecretName           string    `json:"secret_name"`
	Env                  string    `json:"env"`
	Service              *string   `json:"service"`
	Action               Action    `json:"action"`
	Success              bool      `json:"success"`
	MaskedSecretPreview  string    `json:"masked_secret_preview"`
	EncryptedSecretValue string    `json:"encrypted_secret_value,omitempty"`
	Signature            string    `json:"signature"`
}

// Log writes and reads signed audit entries under a directory.
type Log struct {
	dir      string
	material *keymat.Material
}

// New creates an audit log rooted at dir using material for signing
// and value encryption.
func New(dir string, material *keymat.Material) *Log {
	return &Log{dir: dir, material: material}
}

// Append records an action without capturing the secret value.
func (l *Log) Append(action Action, secret, env, service string, success bool, preview string) error {
	return l.append(action, secret, env, service, success, preview, "")
}

// AppendWithValue records an action and stores the secret value
// encrypted so a later rollback can recover it.
func (l *Log) AppendWithValue(action Action, secret, env, service string, success bool, preview, value string) error {
	encrypted, err := l.material.Cipher().Encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt audit value: %w", err)
	}
	return l.append(action, secret, env, service, success, preview, encrypted)
}

func (l *Log) append(action Action, secret, env, service string, success bool, preview, encrypted string) error {
	entry := Entry{
		Timestamp:            time.Now().UTC(),
		Actor:                currentActor(),
		SecretName:           secret,
		Env:                  env,
		Action:               action,
		Success:              success,
		MaskedSecretPreview:  preview,
		EncryptedSecretValue: encrypted,
	}
	if service != "" {
		entry.Service = &service
	}

	if err := l.sign(&entry); err != nil {
		return err
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	path := filepath.Join(l.dir, fmt.Sprintf("%s-%s.log", filePrefix, entry.Timestamp.Format("2006-01-02")))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// sign serializes the entry with an empty signature, signs the bytes and
// stores the hex-encoded signature in the entry.
func (l *Log) sign(entry *Entry) error {
	entry.Signature = ""
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to serialize entry for signing: %w", err)
	}
	entry.Signature = hex.EncodeToString(l.material.Sign(payload))
	return nil
}

// Verify checks the entry's signature against the local signing key.
func (l *Log) Verify(entry Entry) error {
	sig, err := hex.DecodeString(entry.Signature)
	if err != nil {
		return kserrors.ErrSignatureInvalid
	}
	entry.Signature = ""
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if !l.material.Verify(payload, sig) {
		return kserrors.ErrSignatureInvalid
	}
	return nil
}

// Query selects audit entries. Zero values match everything.
type Query struct {
	Secret string
	Env    string
	Last   int
}

// Read scans every log file, filters by the query and returns entries
// newest first, truncated to the last N when set. A malformed line in
// any file aborts the read so tampering is never silently skipped.
func (l *Log) Read(q Query) ([]Entry, error) {
	files, err := filepath.Glob(filepath.Join(l.dir, "*.log"))
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read audit log %s: %w", file, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			var entry Entry
			if err := json.Unmarshal([]byte(line), &entry); err != nil {
				return nil, &kserrors.MalformedLineError{File: filepath.Base(file), Err: err}
			}
			if q.Secret != "" && entry.SecretName != q.Secret {
				continue
			}
			if q.Env != "" && entry.Env != q.Env {
				continue
			}
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if q.Last > 0 && len(entries) > q.Last {
		entries = entries[:q.Last]
	}
	return entries, nil
}

// DecryptValue recovers the plaintext secret value from an entry.
func (l *Log) DecryptValue(entry Entry) (string, error) {
	if entry.EncryptedSecretValue == "" {
		return "", fmt.Errorf("audit entry for %s has no stored value", entry.SecretName)
	}
	return l.material.Cipher().Decrypt(entry.EncryptedSecretValue)
}

func currentActor() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	if user := os.Getenv("USERNAME"); user != "" {
		return user
	}
	return "unknown"
}
