// Package dotdir resolves the .reel/ directory holding config.toml, the
// SQLite event store and captured streams.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the name of the reel directory.
const DirName = ".reel"

type Manager struct {
	// home and cwd are swapped in tests.
	home func() (string, error)
	cwd  func() (string, error)
}

func NewManager() *Manager {
	return &Manager{home: os.UserHomeDir, cwd: os.Getwd}
}

// Target returns the absolute path of the .reel/ directory to use, creating
// it if needed. Precedence:
//  1. overrideDir, when set
//  2. ./.reel/ if it exists in the working directory
//  3. ~/.reel/
func (m *Manager) Target(overrideDir string) (string, error) {
	dir := overrideDir

	if dir == "" {
		local, ok := m.local()
		if ok {
			dir = local
		} else {
			home, err := m.home()
			if err != nil {
				return "", fmt.Errorf("getting home directory: %w", err)
			}
			dir = filepath.Join(home, DirName)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating reel directory %s: %w", dir, err)
	}
	return filepath.Abs(dir)
}

// File returns the path of name inside the resolved directory.
func (m *Manager) File(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (m *Manager) local() (string, bool) {
	cwd, err := m.cwd()
	if err != nil {
		return "", false
	}
	dir := filepath.Join(cwd, DirName)
	info, err := os.Stat(dir)
	return dir, err == nil && info.IsDir()
}
