package room

import (
	"image"
	"sync"
	"sync/atomic"
	"time"

	"pairshare/internal/framebuf"
)

// VideoSource is the handoff between the capture goroutine (writer) and the
// track sender (reader). Only the latest frame is kept.
type VideoSource struct {
	width, height int

	wmu    sync.Mutex
	rmu    sync.Mutex
	frames *framebuf.Triple[*image.YCbCr]
	closed atomic.Bool

	written atomic.Uint64
}

func NewVideoSource(width, height int) *VideoSource {
	return &VideoSource{
		width:  width &^ 1,
		height: height &^ 1,
		frames: framebuf.NewTriple[*image.YCbCr](),
	}
}

func (s *VideoSource) Size() (int, int) { return s.width, s.height }

// WriteFrame copies frame into the back buffer and publishes it. Frames of
// the wrong size are dropped.
func (s *VideoSource) WriteFrame(frame *image.YCbCr, at time.Time) {
	if s.closed.Load() || frame.Rect.Dx() != s.width || frame.Rect.Dy() != s.height {
		return
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	back := s.frames.Back()
	if *back == nil {
		*back = image.NewYCbCr(image.Rect(0, 0, s.width, s.height), image.YCbCrSubsampleRatio420)
	}
	dst := *back
	copy(dst.Y, frame.Y)
	copy(dst.Cb, frame.Cb)
	copy(dst.Cr, frame.Cr)
	s.frames.Publish()
	s.written.Add(1)
}

// Next returns the latest frame if one arrived since the previous call. The
// frame stays valid until the next call to Next.
func (s *VideoSource) Next() (*image.YCbCr, bool) {
	if s.closed.Load() {
		return nil, false
	}
	s.rmu.Lock()
	defer s.rmu.Unlock()
	f, fresh := s.frames.Read()
	if f == nil {
		return nil, false
	}
	return f, fresh
}

// Written counts frames accepted by WriteFrame.
func (s *VideoSource) Written() uint64 { return s.written.Load() }

func (s *VideoSource) Close() { s.closed.Store(true) }
