package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pairshare/internal/clock"
)

const (
	DefaultReadTimeout = time.Second
	DefaultIdleTimeout = 30 * time.Second
	writeTimeout       = 5 * time.Second
)

var (
	ErrClosed = errors.New("ipc: connection closed")
	ErrIdle   = errors.New("ipc: no message from host within idle timeout")
)

type Config struct {
	Logger      *zerolog.Logger
	Clock       clock.Clock
	ReadTimeout time.Duration
	IdleTimeout time.Duration
}

// Conn is one full-duplex link to the host shell. Send is safe for
// concurrent use; ReadLoop must run on a single goroutine.
type Conn struct {
	conn   net.Conn
	clock  clock.Clock
	logger zerolog.Logger

	readTimeout time.Duration
	idleTimeout time.Duration

	wmu       sync.Mutex
	closeOnce sync.Once
}

func NewConn(c net.Conn, cfg Config) *Conn {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	return &Conn{
		conn:        c,
		clock:       cfg.Clock,
		logger:      cfg.Logger.With().Str("component", "ipc").Logger(),
		readTimeout: cfg.ReadTimeout,
		idleTimeout: cfg.IdleTimeout,
	}
}

// Send writes p as one framed message.
func (c *Conn) Send(p Payload) error {
	body, err := json.Marshal(Message{Payload: p})
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := WriteFrame(c.conn, body); err != nil {
		return fmt.Errorf("send %s: %w", p.MessageType(), err)
	}
	channel := "events"
	if IsResponse(p.MessageType()) {
		channel = "responses"
	}
	c.logger.Debug().Str("type", string(p.MessageType())).Str("channel", channel).Msg("sent")
	return nil
}

// ReadLoop decodes inbound messages and passes them to handle in arrival
// order. It returns ErrClosed when the peer hangs up, ErrIdle when nothing
// arrives for the idle timeout, or ctx.Err() when ctx is cancelled. Messages
// that fail to decode are logged and skipped.
func (c *Conn) ReadLoop(ctx context.Context, handle func(Message)) error {
	fr := newFrameReader()
	last := c.clock.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		body, err := fr.next(c.conn)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if c.clock.Since(last) >= c.idleTimeout {
					return ErrIdle
				}
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return ErrClosed
			}
			return fmt.Errorf("ipc read: %w", err)
		}
		last = c.clock.Now()

		var m Message
		if err := json.Unmarshal(body, &m); err != nil {
			c.logger.Warn().Err(err).Int("bytes", len(body)).Msg("dropping undecodable message")
			continue
		}
		handle(m)
	}
}

func (c *Conn) Close() error {
	err := ErrClosed
	c.closeOnce.Do(func() { err = c.conn.Close() })
	return err
}
