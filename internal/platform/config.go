// Package platform resolves per-OS paths and process settings.
package platform

import (
	"os"
	"path/filepath"
)

const (
	DefaultAppID   = "com.pairshare.app"
	DefaultAppName = "pairshare-core"
)

// Config holds the platform values resolved at startup.
type Config struct {
	AppID      string
	AppName    string
	Display    string // X display on Linux, empty elsewhere
	LogPath    string
	SocketPath string
	// ParentDeath asks the kernel to terminate the core when the host shell
	// exits. Linux only.
	ParentDeath bool
}

// Resolve fills every empty field of cfg with the platform default.
func Resolve(cfg *Config) error {
	if cfg.AppID == "" {
		cfg.AppID = DefaultAppID
	}
	if cfg.AppName == "" {
		cfg.AppName = DefaultAppName
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = DefaultSocketPath(cfg.AppID)
	}
	if cfg.LogPath == "" {
		dir, err := logDir(cfg.AppID)
		if err != nil {
			return err
		}
		cfg.LogPath = filepath.Join(dir, cfg.AppName+".log")
	}
	if cfg.Display == "" {
		cfg.Display = defaultDisplay()
	}
	return nil
}

// DefaultSocketPath is where the host shell listens unless told otherwise.
func DefaultSocketPath(appID string) string {
	return filepath.Join(os.TempDir(), appID+".core.sock")
}

// OpenLog creates the log directory and opens the log file for appending.
func OpenLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// xdgStateDir is $XDG_STATE_HOME/appID, or ~/.local/state/appID when unset.
func xdgStateDir(appID string) (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appID), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", appID), nil
}
