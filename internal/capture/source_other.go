//go:build !linux || !cgo

package capture

import (
	"errors"

	"github.com/rs/zerolog"

	"pairshare/internal/types"
)

var errUnsupported = errors.New("capture: X11 capture requires linux")

type X11Source struct{}

func NewX11Source(displayName string, logger *zerolog.Logger) *X11Source { return &X11Source{} }

func (s *X11Source) Monitors() ([]types.Monitor, error)  { return nil, errUnsupported }
func (s *X11Source) Enumerate() ([]types.Content, error) { return nil, errUnsupported }

func (s *X11Source) Open(content types.Content, fallback bool) (types.ScreenGrabber, error) {
	return nil, errUnsupported
}
