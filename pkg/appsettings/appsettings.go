// Package appsettings stores small JSON documents (credentials, preferences)
// under the user's configuration directory.
package appsettings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Manager reads and writes a single JSON file owned by the application.
type Manager struct {
	appName  string
	fileName string
}

// NewManager returns a Manager for <user config dir>/<appName>/<fileName>.
func NewManager(appName, fileName string) *Manager {
	return &Manager{appName: appName, fileName: fileName}
}

// Path returns the absolute path of the managed file.
func (m *Manager) Path() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(configDir, m.appName, m.fileName), nil
}

// Load decodes the file into v.
// Returns false if the file doesn't exist (not an error).
func (m *Manager) Load(v any) (bool, error) {
	path, err := m.Path()
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", m.fileName, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", m.fileName, err)
	}

	return true, nil
}

// Save writes v to disk, readable only by the current user.
func (m *Manager) Save(v any) error {
	path, err := m.Path()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", m.fileName, err)
	}

	// Write then rename so a crash never leaves a truncated credential file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", m.fileName, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp) //nolint:errcheck // best effort
		return fmt.Errorf("replace %s: %w", m.fileName, err)
	}

	return nil
}

// Remove deletes the file. Removing a missing file is not an error.
func (m *Manager) Remove() error {
	path, err := m.Path()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", m.fileName, err)
	}
	return nil
}
