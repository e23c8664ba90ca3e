package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"pairshare/internal/encode"
	"pairshare/internal/geom"
	"pairshare/internal/protocol"
	"pairshare/internal/types"
)

const (
	ConnectTimeout = 30 * time.Second
	queueSize      = 256
)

// EncoderFactory opens the encoder feeding a published track.
type EncoderFactory func(p encode.Params) (types.VideoEncoder, error)

type Config struct {
	Dial       Dialer
	URL        string
	NewEncoder EncoderFactory
	// Deliver hands events to the session controller.
	Deliver func(Event)
	Logger  *zerolog.Logger
	// LatencyProbe forwards Tick packets instead of dropping them.
	LatencyProbe bool
}

// Stats are cumulative counters for the debug sampler.
type Stats struct {
	PacketsIn  uint64
	PacketsOut uint64
	Suppressed uint64
	Malformed  uint64
	FramesSent uint64
	QueueDrops uint64
}

// Client owns the room connection. Its methods enqueue commands and return
// immediately; a single executor goroutine runs them in order and reports
// completions through Deliver.
type Client struct {
	cfg Config
	log zerolog.Logger

	cmds   chan command
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	// executor state
	url        string
	room       Room
	pumpCancel context.CancelFunc
	pumpDone   chan struct{}
	video      *publication

	packetsIn, packetsOut, suppressed, malformed, framesSent, queueDrops atomic.Uint64
}

type publication struct {
	source  *VideoSource
	encoder types.VideoEncoder
	cancel  context.CancelFunc
	done    chan struct{}
}

type command interface{ String() string }

type createRoom struct{ token string }

type setURL struct{ url string }

type publishVideo struct {
	source *VideoSource
	useAV1 bool
}

type unpublishVideo struct{}

type publishData struct {
	topic string
	event protocol.ClientEvent
}

type closeRoom struct{}

func (createRoom) String() string     { return "CreateRoom" }
func (setURL) String() string         { return "SetServerURL" }
func (publishVideo) String() string   { return "PublishVideoTrack" }
func (unpublishVideo) String() string { return "UnpublishVideoTrack" }
func (c publishData) String() string  { return "Publish" + string(c.event.Type()) }
func (closeRoom) String() string      { return "CloseRoom" }

func NewClient(cfg Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:    cfg,
		log:    cfg.Logger.With().Str("component", "room").Logger(),
		cmds:   make(chan command, queueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		url:    cfg.URL,
	}
	go c.run()
	return c
}

func (c *Client) enqueue(cmd command) {
	select {
	case <-c.ctx.Done():
		c.log.Debug().Str("cmd", cmd.String()).Msg("client closed, command dropped")
	case c.cmds <- cmd:
	default:
		c.queueDrops.Add(1)
		c.log.Warn().Str("cmd", cmd.String()).Msg("command queue full, dropped")
	}
}

// SetServerURL changes the server used by the next CreateRoom.
func (c *Client) SetServerURL(url string) { c.enqueue(setURL{url: url}) }

// CreateRoom joins the room for token, closing any current room first.
// Completion is reported as RoomCreated.
func (c *Client) CreateRoom(token string) { c.enqueue(createRoom{token: token}) }

// PublishVideoTrack creates the frame source for a width x height screen
// track and publishes it. Completion is reported as VideoPublished.
func (c *Client) PublishVideoTrack(width, height int, useAV1 bool) *VideoSource {
	src := NewVideoSource(width, height)
	c.enqueue(publishVideo{source: src, useAV1: useAV1})
	return src
}

func (c *Client) UnpublishVideoTrack() { c.enqueue(unpublishVideo{}) }

func (c *Client) publish(topic string, p protocol.Payload) {
	c.enqueue(publishData{topic: topic, event: protocol.New(p)})
}

// PublishSharerLocation sends the sharer's cursor in screen percentages.
func (c *Client) PublishSharerLocation(x, y float64) {
	c.publish(protocol.TopicParticipantLocation, protocol.MouseMove{X: x, Y: y})
}

func (c *Client) PublishRemoteControlEnabled(enabled bool) {
	c.publish(protocol.TopicRemoteControlEnabled, protocol.RemoteControlEnabled{Enabled: enabled})
}

func (c *Client) PublishParticipantInControl(sid string) {
	c.publish(protocol.TopicParticipantInControl, protocol.ParticipantInControl{SID: sid})
}

func (c *Client) PublishDrawStart(p geom.Position, pathID uint64) {
	c.publish(protocol.TopicParticipantLocation, protocol.DrawStart{Point: p, PathID: pathID})
}

func (c *Client) PublishDrawAddPoint(p geom.Position) {
	c.publish(protocol.TopicParticipantLocation, protocol.DrawAddPoint{Point: p})
}

func (c *Client) PublishDrawEnd(p geom.Position) {
	c.publish(protocol.TopicParticipantLocation, protocol.DrawEnd{Point: p})
}

func (c *Client) PublishDrawClearPath(pathID uint64) {
	c.publish(protocol.TopicParticipantLocation, protocol.DrawClearPath{PathID: pathID})
}

func (c *Client) PublishDrawClearAll() {
	c.publish(protocol.TopicParticipantLocation, protocol.DrawClearAllPaths{})
}

func (c *Client) PublishDrawingMode(m protocol.DrawingMode) {
	c.publish(protocol.TopicParticipantLocation, m)
}

func (c *Client) PublishTickResponse(t uint64) {
	c.publish(protocol.TopicTickResponse, protocol.TickResponse{Time: t})
}

// CloseRoom unpublishes and leaves the current room.
func (c *Client) CloseRoom() { c.enqueue(closeRoom{}) }

// Close leaves the room and stops the executor. It blocks until done.
func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()
		<-c.done
	})
}

func (c *Client) Stats() Stats {
	return Stats{
		PacketsIn:  c.packetsIn.Load(),
		PacketsOut: c.packetsOut.Load(),
		Suppressed: c.suppressed.Load(),
		Malformed:  c.malformed.Load(),
		FramesSent: c.framesSent.Load(),
		QueueDrops: c.queueDrops.Load(),
	}
}

func (c *Client) run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			c.closeRoom()
			c.log.Debug().Msg("executor stopped")
			return
		case cmd := <-c.cmds:
			c.execute(cmd)
		}
	}
}

func (c *Client) execute(cmd command) {
	switch cmd := cmd.(type) {
	case setURL:
		c.url = cmd.url
	case createRoom:
		c.deliver(RoomCreated{Err: c.createRoom(cmd.token)})
	case publishVideo:
		err := c.publishVideo(cmd)
		if err != nil {
			cmd.source.Close()
		}
		w, h := cmd.source.Size()
		c.deliver(VideoPublished{Extent: geom.Extent{Width: float64(w), Height: float64(h)}, Err: err})
	case unpublishVideo:
		c.unpublishVideo()
	case publishData:
		c.publishData(cmd)
	case closeRoom:
		c.closeRoom()
	}
}

func (c *Client) deliver(ev Event) {
	if c.cfg.Deliver != nil {
		c.cfg.Deliver(ev)
	}
}

func (c *Client) createRoom(token string) error {
	if c.room != nil {
		c.log.Info().Msg("room exists, closing before rejoin")
		c.closeRoom()
	}
	if c.cfg.Dial == nil || c.url == "" {
		return fmt.Errorf("%w: no server url", ErrServiceNotFound)
	}
	ctx, cancel := context.WithTimeout(c.ctx, ConnectTimeout)
	defer cancel()
	r, err := c.cfg.Dial(ctx, c.url, token)
	if err != nil {
		c.log.Error().Err(err).Str("url", c.url).Msg("room connect failed")
		return fmt.Errorf("%w: %w", ErrServiceNotFound, err)
	}
	c.room = r
	pumpCtx, pumpCancel := context.WithCancel(c.ctx)
	c.pumpCancel = pumpCancel
	c.pumpDone = make(chan struct{})
	go c.pump(pumpCtx, r, c.pumpDone)
	c.log.Info().Str("sid", r.LocalSID()).Msg("room joined")
	return nil
}

func (c *Client) publishVideo(cmd publishVideo) error {
	if c.room == nil {
		return ErrNoRoom
	}
	if c.video != nil {
		c.unpublishVideo()
	}
	if c.cfg.NewEncoder == nil {
		return encode.ErrUnavailable
	}
	w, h := cmd.source.Size()
	codec := encode.CodecFor(cmd.useAV1)
	bitrate := MaxBitrate(w, cmd.useAV1)
	enc, err := c.cfg.NewEncoder(encode.Params{
		Width:      w,
		Height:     h,
		FPS:        MaxFramerate,
		BitrateBps: bitrate,
		Codec:      codec,
	})
	if err != nil {
		return fmt.Errorf("room: open encoder: %w", err)
	}
	track, err := c.room.PublishVideo(c.ctx, TrackOptions{
		Name:         "screenshare",
		Width:        w,
		Height:       h,
		Codec:        codec,
		MaxBitrate:   bitrate,
		MaxFramerate: MaxFramerate,
	})
	if err != nil {
		enc.Close()
		return fmt.Errorf("room: publish track: %w", err)
	}
	ctx, cancel := context.WithCancel(c.ctx)
	pub := &publication{source: cmd.source, encoder: enc, cancel: cancel, done: make(chan struct{})}
	c.video = pub
	go c.sendLoop(ctx, pub, track)
	c.log.Info().Str("codec", string(codec)).Int("width", w).Int("height", h).Int("bitrate", bitrate).Msg("screen track published")
	return nil
}

func (c *Client) unpublishVideo() {
	pub := c.video
	if pub == nil {
		return
	}
	c.video = nil
	pub.cancel()
	<-pub.done
	pub.source.Close()
	pub.encoder.Close()
	if c.room != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
		defer cancel()
		if err := c.room.UnpublishVideo(ctx); err != nil {
			c.log.Warn().Err(err).Msg("unpublish failed")
		}
	}
	c.log.Info().Msg("screen track unpublished")
}

func (c *Client) publishData(cmd publishData) {
	if c.room == nil {
		c.log.Debug().Str("cmd", cmd.String()).Msg("no room, publish dropped")
		return
	}
	data, err := protocol.Encode(cmd.event.Payload)
	if err != nil {
		c.log.Error().Err(err).Str("cmd", cmd.String()).Msg("encode failed")
		return
	}
	if err := c.room.PublishData(c.ctx, cmd.topic, data, cmd.event.Reliable()); err != nil {
		c.log.Warn().Err(err).Str("cmd", cmd.String()).Msg("publish failed")
		return
	}
	c.packetsOut.Add(1)
}

func (c *Client) closeRoom() {
	c.unpublishVideo()
	if c.room == nil {
		return
	}
	if err := c.room.Close(); err != nil {
		c.log.Warn().Err(err).Msg("room close failed")
	}
	c.pumpCancel()
	<-c.pumpDone
	c.room = nil
	c.log.Info().Msg("room closed")
}

func (c *Client) sendLoop(ctx context.Context, pub *publication, track VideoTrack) {
	defer close(pub.done)
	ticker := time.NewTicker(time.Second / MaxFramerate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, fresh := pub.source.Next()
			if !fresh {
				continue
			}
			out, err := pub.encoder.Encode(frame)
			if err != nil {
				c.log.Warn().Err(err).Msg("encode failed")
				continue
			}
			if out == nil {
				continue
			}
			if err := track.WriteSample(out.Data, out.Duration); err != nil {
				if errors.Is(err, ErrClosed) {
					return
				}
				c.log.Debug().Err(err).Msg("write sample failed")
				continue
			}
			c.framesSent.Add(1)
		}
	}
}

// pump translates room events into session events until ctx ends or the
// room's event channel closes.
func (c *Client) pump(ctx context.Context, r Room, done chan struct{}) {
	defer close(done)
	own := r.LocalSID()
	events := r.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if out := c.translate(own, ev); out != nil {
				c.deliver(out)
			}
		}
	}
}

func (c *Client) translate(own string, ev RoomEvent) Event {
	switch ev := ev.(type) {
	case DataPacket:
		if ev.From.SID == own {
			c.suppressed.Add(1)
			return nil
		}
		msg, err := protocol.Decode(ev.Payload)
		if err != nil {
			c.malformed.Add(1)
			c.log.Debug().Err(err).Str("sid", ev.From.SID).Msg("dropping malformed packet")
			return nil
		}
		c.packetsIn.Add(1)
		switch msg.Type() {
		case protocol.TypeTick:
			if !c.cfg.LatencyProbe {
				return nil
			}
		case protocol.TypeTickResponse, protocol.TypeRemoteControlEnabled, protocol.TypeParticipantInControl:
			// Published by the sharer only.
			return nil
		}
		return Inbound{SID: ev.From.SID, Event: msg}
	case ParticipantJoined:
		if ignored(ev.Participant) {
			return nil
		}
		return ParticipantConnected{SID: ev.Participant.SID, Name: ev.Participant.Name}
	case ParticipantLeft:
		if ignored(ev.Participant) {
			return nil
		}
		return ParticipantDisconnected{SID: ev.Participant.SID}
	case TrackPublished:
		if strings.Contains(ev.Participant.Identity, "video") {
			return ControllerTakesScreenShare{SID: ev.Participant.SID}
		}
	case ConnectionLost:
		c.log.Warn().Err(ev.Err).Msg("room connection lost")
		return RoomDisconnected{Err: ev.Err}
	}
	return nil
}

// ignored filters the auxiliary audio and camera identities each user joins
// with, and participants without a display name.
func ignored(p ParticipantInfo) bool {
	return strings.Contains(p.Identity, "audio") ||
		strings.Contains(p.Identity, "camera") ||
		p.Name == ""
}
