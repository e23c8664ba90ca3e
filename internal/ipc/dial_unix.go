//go:build !windows

package ipc

import (
	"context"
	"fmt"
	"net"
)

// Dial connects to the host shell's Unix-domain socket at path.
func Dial(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return c, nil
}
