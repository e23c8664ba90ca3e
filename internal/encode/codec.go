// Package encode compresses I420 frames for the published screen track.
package encode

import "errors"

// Codec is the video codec negotiated for the screen track.
type Codec string

const (
	VP9 Codec = "vp9"
	AV1 Codec = "av1"
)

// CodecFor picks AV1 when requested and VP9 otherwise.
func CodecFor(useAV1 bool) Codec {
	if useAV1 {
		return AV1
	}
	return VP9
}

var ErrUnavailable = errors.New("encode: no encoder available")

// Params configures a new encoder.
type Params struct {
	Width, Height int
	FPS           int
	BitrateBps    int
	Codec         Codec
	// KeyInterval is the GOP length in frames. Zero means two seconds.
	KeyInterval int
}

func (p Params) keyint() int {
	if p.KeyInterval > 0 {
		return p.KeyInterval
	}
	return p.FPS * 2
}
