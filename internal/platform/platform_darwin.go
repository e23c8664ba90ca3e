//go:build darwin

package platform

import (
	"os"
	"path/filepath"
)

func Init(cfg *Config) (func(), error) { return func() {}, nil }

func logDir(appID string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "Logs", appID), nil
}

func defaultDisplay() string { return "" }
