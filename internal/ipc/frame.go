package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	headerSize   = 8
	MaxFrameSize = 16 << 20
)

var ErrFrameTooLarge = errors.New("ipc: frame too large")

// WriteFrame writes body prefixed with its length as a little-endian u64.
func WriteFrame(w io.Writer, body []byte) error {
	if len(body) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(body))
	}
	buf := make([]byte, headerSize+len(body))
	binary.LittleEndian.PutUint64(buf, uint64(len(body)))
	copy(buf[headerSize:], body)
	_, err := w.Write(buf)
	return err
}

// frameReader accumulates stream bytes across reads, so a read that is cut
// short by a deadline does not lose a partially received frame.
type frameReader struct {
	buf   []byte
	chunk []byte
}

func newFrameReader() *frameReader {
	return &frameReader{chunk: make([]byte, 32<<10)}
}

// next returns the next complete frame body. Errors from r are returned as is
// and the buffered bytes are kept for the following call.
func (f *frameReader) next(r io.Reader) ([]byte, error) {
	for {
		if len(f.buf) >= headerSize {
			n := binary.LittleEndian.Uint64(f.buf[:headerSize])
			if n > MaxFrameSize {
				return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
			}
			total := headerSize + int(n)
			if len(f.buf) >= total {
				body := make([]byte, n)
				copy(body, f.buf[headerSize:total])
				f.buf = append(f.buf[:0], f.buf[total:]...)
				return body, nil
			}
		}
		k, err := r.Read(f.chunk)
		f.buf = append(f.buf, f.chunk[:k]...)
		if err != nil {
			return nil, err
		}
	}
}
