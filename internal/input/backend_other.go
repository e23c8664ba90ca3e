//go:build !linux || !cgo

package input

import (
	"errors"

	"pairshare/internal/types"
)

// NewXTestBackend is only available on Linux.
func NewXTestBackend(displayName string) (types.InputBackend, error) {
	return nil, errors.New("input: XTest backend requires linux")
}
