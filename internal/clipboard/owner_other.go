//go:build !linux || !cgo

package clipboard

import (
	"errors"

	"github.com/rs/zerolog"

	"pairshare/internal/types"
)

// NewX11Owner is only available on Linux.
func NewX11Owner(displayName string, logger *zerolog.Logger) (types.ClipboardOwner, error) {
	return nil, errors.New("clipboard: X11 owner requires linux")
}
