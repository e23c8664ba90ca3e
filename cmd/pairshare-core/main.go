package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"pairshare/internal/capture"
	"pairshare/internal/cursor"
	"pairshare/internal/ipc"
	"pairshare/internal/platform"
	"pairshare/internal/room"
	"pairshare/internal/session"
	"pairshare/internal/telemetry"
)

const dialTimeout = 10 * time.Second

var (
	flagSocketPath   = pflag.String("socket-path", "", "Host shell IPC socket (platform default if empty)")
	flagAppID        = pflag.String("app-id", platform.DefaultAppID, "Application id used for the log and socket paths")
	flagDisplay      = pflag.String("display", "", "X11 display (DISPLAY or :0 if empty)")
	flagLogLevel     = pflag.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	flagConsole      = pflag.Bool("console", false, "Also write human-readable logs to stderr")
	flagFPS          = pflag.Int("fps", capture.DefaultFPS, "Capture frame rate")
	flagInactivity   = pflag.Duration("inactivity", cursor.DefaultInactivity, "Hide remote cursors idle for this long")
	flagLatencyProbe = pflag.Bool("latency-probe", false, "Answer Tick packets with TickResponse")
	flagStats        = pflag.Bool("stats", false, "Log pipeline stats every 5 seconds")
	flagServerURL    = pflag.String("server-url", "", "Room server URL used until the host shell sends one")
)

func main() {
	pflag.Parse()

	cfg := &platform.Config{
		AppID:       *flagAppID,
		Display:     *flagDisplay,
		SocketPath:  *flagSocketPath,
		ParentDeath: true,
	}
	if err := platform.Resolve(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "resolve platform paths: %v\n", err)
		os.Exit(session.ExitTerminated)
	}

	logger, logFile, err := newLogger(cfg.LogPath, *flagLogLevel, *flagConsole)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log: %v\n", err)
		os.Exit(session.ExitTerminated)
	}
	code := run(cfg, &logger)
	logFile.Close()
	os.Exit(code)
}

func newLogger(path, level string, console bool) (zerolog.Logger, io.Closer, error) {
	f, err := platform.OpenLog(path)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		f.Close()
		return zerolog.Nop(), nil, fmt.Errorf("parse log level: %w", err)
	}
	var w io.Writer = f
	if console {
		w = zerolog.MultiLevelWriter(f, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
	logger := zerolog.New(w).Level(lvl).With().Timestamp().Str("session", uuid.NewString()).Logger()
	return logger, f, nil
}

func run(cfg *platform.Config, logger *zerolog.Logger) int {
	if *flagFPS <= 0 {
		logger.Error().Int("fps", *flagFPS).Msg("--fps must be > 0")
		return session.ExitTerminated
	}

	cleanup, err := platform.Init(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("platform init failed")
		return session.ExitTerminated
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, dialTimeout)
	conn, err := ipc.Dial(dialCtx, cfg.SocketPath)
	dialCancel()
	if err != nil {
		logger.Error().Err(err).Str("socket", cfg.SocketPath).Msg("connect to host shell failed")
		return session.ExitTerminated
	}
	host := ipc.NewConn(conn, ipc.Config{Logger: logger})

	overlays, err := newOverlayPlatform(cfg.Display, logger)
	if err != nil {
		logger.Error().Err(err).Str("display", cfg.Display).Msg("overlay platform unavailable")
		host.Close()
		return session.ExitTerminated
	}
	defer overlays.Close()

	var sampler *telemetry.Sampler
	if *flagStats {
		sampler = telemetry.NewSampler(telemetry.SamplerConfig{Logger: logger})
	}

	sess := session.New(session.Config{
		Host:     host,
		Platform: overlays,
		NewRoom: func(deliver func(room.Event)) session.RoomClient {
			c := room.NewClient(room.Config{
				Dial:         room.NewDialer(logger),
				URL:          *flagServerURL,
				NewEncoder:   newEncoderFactory(logger),
				Deliver:      deliver,
				Logger:       logger,
				LatencyProbe: *flagLatencyProbe,
			})
			if sampler != nil {
				sampler.Register("room", roomProbe(c))
			}
			return c
		},
		NewCapture: func(onFatal func(string)) session.Capturer {
			p := capture.NewPipeline(capture.Config{
				Source:  newCaptureSource(cfg.Display, logger),
				Logger:  logger,
				FPS:     *flagFPS,
				OnFatal: onFatal,
			})
			if sampler != nil {
				sampler.Register("capture", captureProbe(p))
			}
			return p
		},
		NewInput:   newInputFactory(cfg.Display, logger),
		Sampler:    sampler,
		Logger:     logger,
		Inactivity: *flagInactivity,
	})

	logger.Info().
		Str("socket", cfg.SocketPath).
		Str("display", cfg.Display).
		Int("fps", *flagFPS).
		Str("log", cfg.LogPath).
		Msg("pairshare core started")
	return sess.Run(ctx)
}

func roomProbe(c *room.Client) telemetry.Probe {
	return func() telemetry.Counters {
		s := c.Stats()
		return telemetry.Counters{
			"packets_in":  s.PacketsIn,
			"packets_out": s.PacketsOut,
			"suppressed":  s.Suppressed,
			"malformed":   s.Malformed,
			"frames_sent": s.FramesSent,
			"queue_drops": s.QueueDrops,
		}
	}
}

func captureProbe(p *capture.Pipeline) telemetry.Probe {
	return func() telemetry.Counters {
		s := p.Stats()
		return telemetry.Counters{
			"delivered": s.Delivered,
			"failed":    s.Failed,
			"restarts":  s.Restarts,
		}
	}
}
