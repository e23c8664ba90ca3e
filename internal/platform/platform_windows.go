//go:build windows

package platform

import (
	"os"
	"path/filepath"
)

func Init(cfg *Config) (func(), error) { return func() {}, nil }

func logDir(appID string) (string, error) {
	base := os.Getenv("LOCALAPPDATA")
	if base == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		base = dir
	}
	return filepath.Join(base, appID, "logs"), nil
}

func defaultDisplay() string { return "" }
