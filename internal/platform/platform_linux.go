//go:build linux

package platform

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Init applies process-level settings. The returned func undoes them.
func Init(cfg *Config) (func(), error) {
	if cfg.ParentDeath {
		if err := unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(unix.SIGTERM), 0, 0, 0); err != nil {
			return nil, fmt.Errorf("set parent death signal: %w", err)
		}
		// The parent may have exited before prctl ran.
		if os.Getppid() == 1 {
			return nil, fmt.Errorf("host process already exited")
		}
	}
	if cfg.Display != "" {
		os.Setenv("DISPLAY", cfg.Display)
	}
	return func() {}, nil
}

func logDir(appID string) (string, error) { return xdgStateDir(appID) }

func defaultDisplay() string {
	if d := os.Getenv("DISPLAY"); d != "" {
		return d
	}
	return ":0"
}
