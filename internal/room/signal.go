package room

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	signalHandshakeTimeout = 10 * time.Second
	signalWriteDeadline    = 5 * time.Second
	signalMaxMessageSize   = 1 << 20

	// signalPongWait - signalPingInterval is how long the server has to answer a ping.
	signalPingInterval = 5 * time.Second
	signalPongWait     = 12 * time.Second
)

// Signal message types.
const (
	sigJoin             = "join"
	sigOffer            = "offer"
	sigAnswer           = "answer"
	sigICE              = "ice"
	sigParticipantJoin  = "participant_joined"
	sigParticipantLeave = "participant_left"
	sigTrackPublished   = "track_published"
	sigLeave            = "leave"
)

type signalMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type joinResponse struct {
	SID          string            `json:"sid"`
	Identity     string            `json:"identity"`
	Participants []ParticipantInfo `json:"participants"`
	ICEServers   []iceServer       `json:"ice_servers"`
}

type iceServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

type trackPublishedMessage struct {
	Participant ParticipantInfo `json:"participant"`
	Kind        string          `json:"kind"`
}

// signaler is the JSON websocket to the room server.
type signaler struct {
	conn   *websocket.Conn
	wmu    sync.Mutex
	logger zerolog.Logger
}

// signalURL turns a server url into its websocket /rtc endpoint.
func signalURL(server, token string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/rtc"
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func dialSignal(ctx context.Context, server, token string, logger *zerolog.Logger) (*signaler, error) {
	endpoint, err := signalURL(server, token)
	if err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: signalHandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("signal dial: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("signal dial: %w", err)
	}
	conn.SetReadLimit(signalMaxMessageSize)
	return &signaler{
		conn:   conn,
		logger: logger.With().Str("component", "signal").Logger(),
	}, nil
}

func (s *signaler) send(typ string, v any) error {
	var raw json.RawMessage
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		raw = b
	}
	b, err := json.Marshal(signalMessage{Type: typ, Payload: raw})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(signalWriteDeadline)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

// readJoin waits for the join response that opens every session.
func (s *signaler) readJoin(ctx context.Context) (*joinResponse, error) {
	if dl, ok := ctx.Deadline(); ok {
		if err := s.conn.SetReadDeadline(dl); err != nil {
			return nil, err
		}
	}
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read join: %w", err)
	}
	var msg signalMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode join: %w", err)
	}
	if msg.Type != sigJoin {
		return nil, fmt.Errorf("expected join, got %q", msg.Type)
	}
	var join joinResponse
	if err := json.Unmarshal(msg.Payload, &join); err != nil {
		return nil, fmt.Errorf("decode join: %w", err)
	}
	return &join, nil
}

// run reads messages until the connection fails or ctx ends, pinging the
// server to keep the read deadline alive.
func (s *signaler) run(ctx context.Context, handle func(signalMessage)) error {
	readDeadline := func() error {
		return s.conn.SetReadDeadline(time.Now().Add(signalPongWait))
	}
	s.conn.SetPongHandler(func(string) error {
		s.logger.Trace().Msg("got pong")
		return readDeadline()
	})
	if err := readDeadline(); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(signalPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.wmu.Lock()
				err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(signalWriteDeadline))
				s.wmu.Unlock()
				if err != nil {
					s.logger.Debug().Err(err).Msg("ping failed")
					return
				}
			}
		}
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn().Err(err).Msg("signal connection closed")
			}
			return err
		}
		var msg signalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Error().Err(err).Msg("failed to unmarshal signal message")
			continue
		}
		handle(msg)
	}
}

func (s *signaler) close() {
	s.wmu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(signalWriteDeadline))
	s.wmu.Unlock()
	_ = s.conn.Close()
}
