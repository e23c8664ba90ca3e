package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog"

	"pairshare/internal/encode"
)

const (
	reliableLabel = "_reliable"
	lossyLabel    = "_lossy"
	eventBuffer   = 256
)

// dataEnvelope is the data channel framing used by the room server.
type dataEnvelope struct {
	SID      string `json:"sid,omitempty"`
	Identity string `json:"identity,omitempty"`
	Name     string `json:"name,omitempty"`
	Topic    string `json:"topic"`
	Payload  []byte `json:"payload"`
}

type rtcRoom struct {
	log      zerolog.Logger
	sig      *signaler
	pc       *webrtc.PeerConnection
	reliable *webrtc.DataChannel
	lossy    *webrtc.DataChannel
	localSID string

	events chan RoomEvent
	ctx    context.Context
	cancel context.CancelFunc

	negMu   sync.Mutex
	answers chan webrtc.SessionDescription

	mu       sync.Mutex
	sender   *webrtc.RTPSender
	lostOnce sync.Once
	closed   bool
}

// NewDialer returns a Dialer that joins rooms over websocket signaling and a
// pion peer connection.
func NewDialer(logger *zerolog.Logger) Dialer {
	return func(ctx context.Context, url, token string) (Room, error) {
		return dial(ctx, url, token, logger)
	}
}

func newAPI() (*webrtc.API, error) {
	me := &webrtc.MediaEngine{}
	if err := me.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: codecCapability(encode.VP9),
		PayloadType:        98,
	}, webrtc.RTPCodecTypeVideo); err != nil {
		return nil, fmt.Errorf("register VP9: %w", err)
	}
	if err := me.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: codecCapability(encode.AV1),
		PayloadType:        45,
	}, webrtc.RTPCodecTypeVideo); err != nil {
		return nil, fmt.Errorf("register AV1: %w", err)
	}
	return webrtc.NewAPI(webrtc.WithMediaEngine(me)), nil
}

func codecCapability(c encode.Codec) webrtc.RTPCodecCapability {
	if c == encode.AV1 {
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeAV1, ClockRate: 90000}
	}
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP9, ClockRate: 90000, SDPFmtpLine: "profile-id=0"}
}

func dial(ctx context.Context, url, token string, logger *zerolog.Logger) (Room, error) {
	sig, err := dialSignal(ctx, url, token, logger)
	if err != nil {
		return nil, err
	}
	join, err := sig.readJoin(ctx)
	if err != nil {
		sig.close()
		return nil, err
	}

	api, err := newAPI()
	if err != nil {
		sig.close()
		return nil, err
	}
	config := webrtc.Configuration{}
	for _, s := range join.ICEServers {
		config.ICEServers = append(config.ICEServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	pc, err := api.NewPeerConnection(config)
	if err != nil {
		sig.close()
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	rctx, cancel := context.WithCancel(context.Background())
	r := &rtcRoom{
		log:      logger.With().Str("component", "rtc").Str("sid", join.SID).Logger(),
		sig:      sig,
		pc:       pc,
		localSID: join.SID,
		events:   make(chan RoomEvent, eventBuffer),
		ctx:      rctx,
		cancel:   cancel,
		answers:  make(chan webrtc.SessionDescription, 1),
	}

	ordered := true
	if r.reliable, err = pc.CreateDataChannel(reliableLabel, &webrtc.DataChannelInit{Ordered: &ordered}); err != nil {
		r.Close()
		return nil, fmt.Errorf("create reliable channel: %w", err)
	}
	unordered := false
	var retransmits uint16
	if r.lossy, err = pc.CreateDataChannel(lossyLabel, &webrtc.DataChannelInit{Ordered: &unordered, MaxRetransmits: &retransmits}); err != nil {
		r.Close()
		return nil, fmt.Errorf("create lossy channel: %w", err)
	}
	r.reliable.OnMessage(r.onData)
	r.lossy.OnMessage(r.onData)

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		if err := sig.send(sigICE, c.ToJSON()); err != nil {
			r.log.Debug().Err(err).Msg("send candidate failed")
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		r.log.Debug().Str("state", state.String()).Msg("peer connection state")
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateDisconnected {
			r.lost(fmt.Errorf("peer connection %s", state))
		}
	})

	for _, p := range join.Participants {
		r.emit(ParticipantJoined{Participant: p})
	}

	go func() {
		if err := sig.run(rctx, r.onSignal); err != nil {
			r.lost(fmt.Errorf("signal: %w", err))
		}
	}()

	if err := r.negotiate(ctx); err != nil {
		r.Close()
		return nil, err
	}
	r.log.Info().Int("participants", len(join.Participants)).Msg("joined room")
	return r, nil
}

func (r *rtcRoom) LocalSID() string         { return r.localSID }
func (r *rtcRoom) Events() <-chan RoomEvent { return r.events }

func (r *rtcRoom) emit(ev RoomEvent) {
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
	}
}

func (r *rtcRoom) lost(err error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}
	r.lostOnce.Do(func() { r.emit(ConnectionLost{Err: err}) })
}

func (r *rtcRoom) onData(msg webrtc.DataChannelMessage) {
	var env dataEnvelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		r.log.Debug().Err(err).Msg("bad data envelope")
		return
	}
	r.emit(DataPacket{
		From:    ParticipantInfo{SID: env.SID, Identity: env.Identity, Name: env.Name},
		Topic:   env.Topic,
		Payload: env.Payload,
	})
}

func (r *rtcRoom) onSignal(msg signalMessage) {
	switch msg.Type {
	case sigAnswer:
		var sd webrtc.SessionDescription
		if err := json.Unmarshal(msg.Payload, &sd); err != nil {
			r.log.Error().Err(err).Msg("bad answer")
			return
		}
		select {
		case r.answers <- sd:
		default:
			r.log.Warn().Msg("unexpected answer dropped")
		}
	case sigOffer:
		var sd webrtc.SessionDescription
		if err := json.Unmarshal(msg.Payload, &sd); err != nil {
			r.log.Error().Err(err).Msg("bad offer")
			return
		}
		go r.answerOffer(sd)
	case sigICE:
		var c webrtc.ICECandidateInit
		if err := json.Unmarshal(msg.Payload, &c); err != nil {
			r.log.Error().Err(err).Msg("bad candidate")
			return
		}
		if err := r.pc.AddICECandidate(c); err != nil {
			r.log.Debug().Err(err).Msg("add candidate failed")
		}
	case sigParticipantJoin, sigParticipantLeave:
		var p ParticipantInfo
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			r.log.Error().Err(err).Str("type", msg.Type).Msg("bad participant")
			return
		}
		if msg.Type == sigParticipantJoin {
			r.emit(ParticipantJoined{Participant: p})
		} else {
			r.emit(ParticipantLeft{Participant: p})
		}
	case sigTrackPublished:
		var tp trackPublishedMessage
		if err := json.Unmarshal(msg.Payload, &tp); err != nil {
			r.log.Error().Err(err).Msg("bad track_published")
			return
		}
		r.emit(TrackPublished{Participant: tp.Participant, Kind: tp.Kind})
	case sigLeave:
		r.lost(errors.New("server asked to leave"))
	default:
		r.log.Debug().Str("type", msg.Type).Msg("ignoring signal message")
	}
}

// negotiate sends a fresh offer and waits for the server's answer.
func (r *rtcRoom) negotiate(ctx context.Context) error {
	r.negMu.Lock()
	defer r.negMu.Unlock()

	offer, err := r.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := r.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	if err := r.sig.send(sigOffer, offer); err != nil {
		return fmt.Errorf("send offer: %w", err)
	}
	select {
	case answer := <-r.answers:
		if err := r.pc.SetRemoteDescription(answer); err != nil {
			return fmt.Errorf("set remote description: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("await answer: %w", ctx.Err())
	case <-r.ctx.Done():
		return ErrClosed
	}
}

func (r *rtcRoom) answerOffer(offer webrtc.SessionDescription) {
	r.negMu.Lock()
	defer r.negMu.Unlock()
	if err := r.pc.SetRemoteDescription(offer); err != nil {
		r.log.Error().Err(err).Msg("set remote offer failed")
		return
	}
	answer, err := r.pc.CreateAnswer(nil)
	if err != nil {
		r.log.Error().Err(err).Msg("create answer failed")
		return
	}
	if err := r.pc.SetLocalDescription(answer); err != nil {
		r.log.Error().Err(err).Msg("set local answer failed")
		return
	}
	if err := r.sig.send(sigAnswer, answer); err != nil {
		r.log.Error().Err(err).Msg("send answer failed")
	}
}

func (r *rtcRoom) PublishData(ctx context.Context, topic string, payload []byte, reliable bool) error {
	dc := r.reliable
	if !reliable {
		dc = r.lossy
	}
	if dc.ReadyState() != webrtc.DataChannelStateOpen {
		return fmt.Errorf("data channel %s is %s", dc.Label(), dc.ReadyState())
	}
	b, err := json.Marshal(dataEnvelope{Topic: topic, Payload: payload})
	if err != nil {
		return err
	}
	return dc.Send(b)
}

type sampleTrack struct {
	track *webrtc.TrackLocalStaticSample
}

func (t sampleTrack) WriteSample(data []byte, d time.Duration) error {
	return t.track.WriteSample(media.Sample{Data: data, Duration: d})
}

func (r *rtcRoom) PublishVideo(ctx context.Context, opts TrackOptions) (VideoTrack, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		codecCapability(opts.Codec),
		opts.Name, "screen-"+uuid.New().String(),
	)
	if err != nil {
		return nil, fmt.Errorf("create video track: %w", err)
	}
	sender, err := r.pc.AddTrack(track)
	if err != nil {
		return nil, fmt.Errorf("add video track: %w", err)
	}
	r.mu.Lock()
	r.sender = sender
	r.mu.Unlock()

	// Drain RTCP so interceptors keep running.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	if err := r.negotiate(ctx); err != nil {
		_ = r.pc.RemoveTrack(sender)
		return nil, err
	}
	return sampleTrack{track: track}, nil
}

func (r *rtcRoom) UnpublishVideo(ctx context.Context) error {
	r.mu.Lock()
	sender := r.sender
	r.sender = nil
	r.mu.Unlock()
	if sender == nil {
		return nil
	}
	if err := r.pc.RemoveTrack(sender); err != nil {
		return fmt.Errorf("remove track: %w", err)
	}
	return r.negotiate(ctx)
}

func (r *rtcRoom) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	_ = r.sig.send(sigLeave, nil)
	r.cancel()
	r.sig.close()
	return r.pc.Close()
}
