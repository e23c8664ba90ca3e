//go:build !linux && !darwin && !windows

package platform

func Init(cfg *Config) (func(), error) { return func() {}, nil }

func logDir(appID string) (string, error) { return xdgStateDir(appID) }

func defaultDisplay() string { return "" }
