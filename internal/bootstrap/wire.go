package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"hotmic/internal/audio"
	"hotmic/internal/config"
	"hotmic/internal/delivery"
	"hotmic/internal/hotkey"
	"hotmic/internal/metrics"
	"hotmic/internal/ports"
	"hotmic/internal/transport"
	"hotmic/internal/usecase"
)

const pasteSettle = 80 * time.Millisecond

// Services is the assembled runtime graph.
type Services struct {
	Coordinator *usecase.RecordingCoordinator
	Config      config.Config
	Hotkey      ports.HotkeyListener
	Combo       []string
	Metrics     *metrics.Metrics

	// Close releases the audio backend. Safe to call once Shutdown returned.
	Close func() error
}

// Build wires all backend dependencies for the current runtime.
func Build(cfg config.Config, events ports.EventSink, logger *slog.Logger) (Services, error) {
	if logger == nil {
		logger = slog.Default()
	}

	combo, err := hotkey.Parse(cfg.Hotkey)
	if err != nil {
		return Services{}, err
	}

	device, closeDevice, err := openDevice(cfg, logger)
	if err != nil {
		return Services{}, err
	}

	m := metrics.New()
	capture := audio.NewCaptureController(device, ports.AudioConfig{
		SampleRate:   cfg.SampleRate,
		Channels:     cfg.Channels,
		BlockSamples: cfg.BlockSamples,
		DeviceID:     cfg.InputDevice,
	}, logger.With("component", "capture"))

	coordinator := usecase.NewRecordingCoordinator(
		usecase.Collaborators{
			Capture:   capture,
			Transport: transport.NewWebsocketTransport(0),
			Clipboard: delivery.NewClipboard(),
			Paster:    delivery.NewKeyboardPaster(pasteSettle),
			Events:    events,
			Metrics:   m,
			Logger:    logger.With("component", "coordinator"),
		},
		usecase.Config{
			Session: usecase.SessionConfig{
				Endpoint:       cfg.Endpoint,
				ConnectTimeout: cfg.ConnectTimeout,
				FinalTimeout:   cfg.FinalTimeout,
				CloseTimeout:   cfg.CloseTimeout,
			},
			FlushWait: cfg.StopFlushWait,
			Autopaste: cfg.Autopaste,
		},
	)

	return Services{
		Coordinator: coordinator,
		Config:      cfg,
		Hotkey:      hotkey.NewGohookListener(0, logger.With("component", "hotkey")),
		Combo:       combo,
		Metrics:     m,
		Close:       closeDevice,
	}, nil
}

func openDevice(cfg config.Config, logger *slog.Logger) (ports.AudioDevice, func() error, error) {
	switch cfg.AudioBackend {
	case config.BackendFFMPEG:
		device := audio.NewFFMPEGDevice(cfg.FFMPEGCommand, cfg.FFMPEGInputFormat, logger.With("component", "ffmpeg"))
		return device, func() error { return nil }, nil
	case config.BackendMalgo, "":
		device, err := audio.NewMalgoDevice(logger.With("component", "malgo"))
		if err != nil {
			return nil, nil, err
		}
		return device, device.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown audio_backend %q", config.ErrInvalid, cfg.AudioBackend)
	}
}
