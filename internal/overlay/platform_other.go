//go:build !linux || !cgo

package overlay

import (
	"errors"

	"github.com/rs/zerolog"
)

// X11Platform is only available on Linux.
type X11Platform struct{ Platform }

func NewX11Platform(string, *zerolog.Logger) (*X11Platform, error) {
	return nil, errors.New("overlay: no window system backend on this platform")
}
