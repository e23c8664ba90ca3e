//go:build !linux || !cgo

package encode

import (
	"fmt"

	"github.com/rs/zerolog"

	"pairshare/internal/types"
)

// NewEncoder has no implementation outside Linux.
func NewEncoder(p Params, logger *zerolog.Logger) (types.VideoEncoder, error) {
	return nil, fmt.Errorf("%w: %s on this platform", ErrUnavailable, p.Codec)
}
