// Package dotdir manages the .bounder/ and ~/.bounder directories that hold
// the relay's config.toml.
package dotdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the bounder directory.
	dirName = ".bounder"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .bounder/ directory.
// Order of precedence is as follows:
//  1. Provided override (created if missing)
//  2. Local ./.bounder/ dir
//  3. Home ~/.bounder/ dir
//  4. If none found, an empty string
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating bounder directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	if m.localDirExists() {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		return filepath.Join(cwd, dirName), nil
	}

	home, err := m.homeDir()
	if err != nil {
		return "", err
	}

	info, err := os.Stat(home)
	switch {
	case err == nil && info.IsDir():
		return home, nil
	case err == nil, errors.Is(err, os.ErrNotExist):
		return "", nil
	default:
		return "", fmt.Errorf("checking %s: %w", home, err)
	}
}

// Ensure resolves like Target, but creates ~/.bounder/ when nothing else is
// found. Use it before writing.
func (m *Manager) Ensure(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir != "" {
		return dir, err
	}

	home, err := m.homeDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return "", fmt.Errorf("creating bounder directory %s: %w", home, err)
	}
	return home, nil
}

func (m *Manager) homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// localDirExists checks whether a .bounder/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
