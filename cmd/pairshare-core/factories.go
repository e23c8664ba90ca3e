package main

import (
	"github.com/rs/zerolog"

	"pairshare/internal/capture"
	"pairshare/internal/clipboard"
	"pairshare/internal/encode"
	"pairshare/internal/input"
	"pairshare/internal/overlay"
	"pairshare/internal/room"
	"pairshare/internal/session"
	"pairshare/internal/types"
)

func newOverlayPlatform(display string, logger *zerolog.Logger) (overlay.Platform, error) {
	p, err := overlay.NewX11Platform(display, logger)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newCaptureSource(display string, logger *zerolog.Logger) capture.Source {
	return capture.NewX11Source(display, logger)
}

func newEncoderFactory(logger *zerolog.Logger) room.EncoderFactory {
	return func(p encode.Params) (types.VideoEncoder, error) {
		return encode.NewEncoder(p, logger)
	}
}

// newInputFactory opens a fresh XTest connection and clipboard owner for
// every share. Missing backends leave the simulator disabled.
func newInputFactory(display string, logger *zerolog.Logger) session.InputFactory {
	return func(permitted bool) *input.Simulator {
		cfg := input.Config{Logger: logger, Permitted: permitted}
		if permitted {
			backend, err := input.NewXTestBackend(display)
			if err != nil {
				logger.Error().Err(err).Msg("input backend unavailable")
			} else {
				cfg.Backend = backend
			}
			owner, err := clipboard.NewX11Owner(display, logger)
			if err != nil {
				logger.Warn().Err(err).Msg("clipboard owner unavailable")
			} else {
				cfg.Clipboard = serve(owner)
			}
		}
		return input.NewSimulator(cfg)
	}
}

// servedClipboard answers selection requests until it is closed.
type servedClipboard struct {
	types.ClipboardOwner
	stop chan struct{}
}

func serve(owner types.ClipboardOwner) *servedClipboard {
	c := &servedClipboard{ClipboardOwner: owner, stop: make(chan struct{})}
	go owner.Run(c.stop)
	return c
}

func (c *servedClipboard) Close() {
	close(c.stop)
	c.ClipboardOwner.Close()
}
