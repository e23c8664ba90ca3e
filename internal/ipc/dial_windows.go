//go:build windows

package ipc

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// Dial reads the loopback port the host shell wrote to path and connects to
// it over TCP.
func Dial(ctx context.Context, path string) (net.Conn, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read port file: %w", err)
	}
	port, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port in %s: %q", path, raw)
	}
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("dial port %d: %w", port, err)
	}
	return c, nil
}
