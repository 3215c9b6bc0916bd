package credentials

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPath returns the standard credentials file location,
// $XDG_CONFIG_HOME/stocktake/credentials.json, falling back to
// ~/.config/stocktake/credentials.json.
func DefaultPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, "stocktake", "credentials.json")
}

// EnsureParentDir creates the directory containing path with owner-only
// permissions.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// FileExists reports whether a file is present at path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
