// Package envfile edits dotenv-style files in place while preserving
// their comments, ordering and blank lines.
package envfile

import (
	"fmt"
	"os"
	"strings"
)

// rollbackSuffix names the side file holding the previous file contents.
const rollbackSuffix = ".keystone-rollback"

// Set updates the first KEY=value assignment for key in the file at
// path, appending a new line when the key is absent. The pre-edit
// contents are saved to a rollback side file first.
func Set(path, key, value string) error {
	original, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read env file: %w", err)
		}
		original = nil
	}

	if original != nil {
		if err := os.WriteFile(path+rollbackSuffix, original, 0o600); err != nil {
			return fmt.Errorf("failed to write rollback file: %w", err)
		}
	}

	lines := strings.Split(string(original), "\n")
	// Drop the phantom element from a trailing newline so we do not
	// grow the file on every edit.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	replaced := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.HasPrefix(line, key+"=") {
			lines[i] = key + "=" + value
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines, key+"="+value)
	}

	content := strings.Join(lines, "\n") + "\n"
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write env file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save env file: %w", err)
	}
	return nil
}

// Get returns the value of the first KEY=value assignment for key.
func Get(path, key string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read env file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.HasPrefix(line, key+"=") {
			return strings.TrimPrefix(line, key+"="), nil
		}
	}
	return "", fmt.Errorf("key %s not found in %s", key, path)
}

// RollbackPath returns where Set saves the pre-edit copy of path.
func RollbackPath(path string) string {
	return path + rollbackSuffix
}
