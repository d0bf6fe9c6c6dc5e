package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	orchestration "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/audio/miniaudio"
	"github.com/koscakluka/ema-live/core/audio/portaudio"
	"github.com/koscakluka/ema-live/core/conversations/nats"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/interruptions"
	"github.com/koscakluka/ema-live/core/playback"
	"github.com/koscakluka/ema-live/core/speechtotext/deepgram"
	"github.com/koscakluka/ema-live/core/transport"
	"github.com/koscakluka/ema-live/core/transport/gemini"
	"github.com/koscakluka/ema-live/core/transport/relay"
	"github.com/koscakluka/ema-live/core/video"
	"github.com/koscakluka/ema-live/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	headless := flag.Bool("headless", false, "log session events instead of running the terminal UI")
	flag.Parse()

	if err := run(*configPath, *headless); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, headless bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := setupTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry shutdown: %v\n", err)
		}
	}()

	sessionID := uuid.NewString()
	opts, cleanup, err := sessionOptions(ctx, cfg, sessionID)
	defer cleanup()
	if err != nil {
		return err
	}
	session := orchestration.NewSession(opts...)
	session.SetVideoEnabled(cfg.Video.Enabled)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Telemetry.PrometheusBind != "" && tel.metricHandler != nil {
		serveMetrics(gctx, g, cfg.Telemetry.PrometheusBind, tel.metricHandler)
	}

	var program *tea.Program
	onEvent := func(event events.Event) { logEvent(event) }
	if !headless {
		program = tea.NewProgram(newModel(session, cfg.Video.Enabled), tea.WithAltScreen(), tea.WithContext(gctx))
		onEvent = func(event events.Event) { program.Send(eventMsg{event: event}) }
	}

	g.Go(func() error {
		err := session.Start(gctx, cfg.Session.Memory,
			orchestration.WithEventCallback(onEvent),
			orchestration.WithClosedCallback(func(string) { cancel() }),
		)
		if errors.Is(err, orchestration.ErrSessionClosed) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		defer cancel()
		defer session.Stop()
		if program == nil {
			<-gctx.Done()
			return nil
		}
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("terminal ui failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// sessionOptions builds the session from config. cleanup releases whatever
// was opened, also when an error is returned.
func sessionOptions(ctx context.Context, cfg config.Config, sessionID string) ([]orchestration.SessionOption, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	policy, err := interruptions.ParsePolicy(cfg.Interruptions.Policy)
	if err != nil {
		return nil, cleanup, err
	}

	apiKey := cfg.Session.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}

	opts := []orchestration.SessionOption{
		orchestration.WithID(sessionID),
		orchestration.WithTransportFactory(transportFactory(cfg.Session)),
		orchestration.WithSessionConfig(transport.SessionConfig{
			APIKey:             apiKey,
			Model:              cfg.Session.Model,
			Voice:              cfg.Session.Voice,
			ResponseModalities: []transport.Modality{transport.ModalityAudio},
			SystemInstruction:  cfg.Session.SystemInstruction,
		}),
		orchestration.WithInterruptionPolicy(policy, cfg.Interruptions.Keywords...),
		orchestration.WithSchedulerConfig(playback.Config{
			Lead:      time.Duration(cfg.Playback.LeadMS) * time.Millisecond,
			Debounce:  time.Duration(cfg.Playback.DebounceMS) * time.Millisecond,
			QueueSize: cfg.Playback.QueueSize,
		}),
		orchestration.WithReconnectDelay(cfg.ReconnectDelay()),
		orchestration.WithCaptureBlockSize(cfg.Audio.BlockSize),
		orchestration.WithTools(demoTools()...),
	}
	if cfg.Session.ControlTools {
		opts = append(opts, orchestration.WithSessionControlTools())
	}

	switch cfg.Audio.Backend {
	case "miniaudio":
		client, err := miniaudio.NewClient()
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to open audio devices: %w", err)
		}
		closers = append(closers, client.Close)
		opts = append(opts, orchestration.WithAudioInput(client), orchestration.WithAudioOutput(client))
	case "portaudio":
		client, err := portaudio.NewClient(cfg.Audio.FramesPerBuffer)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to open audio devices: %w", err)
		}
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close audio devices", slog.String("error", err.Error()))
			}
		})
		opts = append(opts, orchestration.WithAudioInput(client), orchestration.WithAudioOutput(client))
	}

	if cfg.Deepgram.Enabled {
		opts = append(opts, orchestration.WithLocalTranscriber(deepgram.NewClient(
			deepgram.WithAPIKey(cfg.Deepgram.APIKey),
			deepgram.WithModel(cfg.Deepgram.Model),
			deepgram.WithLanguage(cfg.Deepgram.Language),
			deepgram.WithKeyterms(cfg.Interruptions.Keywords...),
		)))
	}

	if cfg.Video.Enabled {
		source, err := video.LoadStillSource(cfg.Video.Sources...)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to load video sources: %w", err)
		}
		opts = append(opts, orchestration.WithVideoSource(source,
			video.WithInterval(time.Duration(cfg.Video.IntervalMS)*time.Millisecond),
			video.WithEncoder(video.Encoder{MaxWidth: cfg.Video.MaxWidth, MaxHeight: cfg.Video.MaxHeight, Quality: cfg.Video.Quality}),
		))
	}

	if cfg.NATS.Enabled {
		publisher, err := nats.Connect(ctx, nats.Config{
			Servers:        cfg.NATS.Servers,
			SubjectPrefix:  cfg.NATS.SubjectPrefix,
			Token:          cfg.NATS.Token,
			ConnectTimeout: time.Duration(cfg.NATS.ConnectTimeoutMS) * time.Millisecond,
		}, sessionID)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, publisher.Close)
		opts = append(opts, orchestration.WithMemorySink(publisher))
	}

	return opts, cleanup, nil
}

func transportFactory(cfg config.SessionConfig) transport.Factory {
	if cfg.Transport == "relay" {
		return relay.NewFactory(cfg.RelayURL)
	}
	return gemini.NewFactory(gemini.WithHTTPClient(&http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}))
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		logger.Info("serving metrics", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

func logEvent(event events.Event) {
	switch e := event.(type) {
	case events.UserVolume, events.UserTranscriptSegment, events.AssistantResponseSegment:
		return
	case events.UserTranscriptFinal:
		logger.Info("user", slog.String("text", e.Transcript))
	case events.AssistantResponseFinal:
		logger.Info("model", slog.String("text", e.Transcript))
	case events.SessionClosed:
		logger.Info("session closed", slog.String("reason", e.Reason))
	default:
		logger.Debug("session event", slog.String("kind", string(event.Kind())))
	}
}
