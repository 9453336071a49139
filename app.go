package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"hotmic/internal/bootstrap"
	"hotmic/internal/domain"
	"hotmic/internal/hotkey"
	"hotmic/internal/metrics"
	"hotmic/internal/ports"
)

const consolePrefix = "[hotmic]"

type coordinator interface {
	Toggle(ctx context.Context)
	Shutdown()
	Status() domain.Status
}

type notifier interface {
	Notify(message string) error
}

// App is the console application root. It doubles as the event sink.
type App struct {
	out      io.Writer
	notifier notifier
	logger   *slog.Logger

	// mu keeps lines from concurrent goroutines intact.
	mu sync.Mutex

	coordinator coordinator
	listener    ports.HotkeyListener
	combo       []string
	endpoint    string
	metrics     *metrics.Metrics
	metricsAddr string
}

func NewApp(out io.Writer, n notifier, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{out: out, notifier: n, logger: logger}
}

func (a *App) attach(services bootstrap.Services) {
	a.coordinator = services.Coordinator
	a.listener = services.Hotkey
	a.combo = services.Combo
	a.endpoint = services.Config.Endpoint
	a.metrics = services.Metrics
	a.metricsAddr = services.Config.MetricsAddr
}

// Run listens for the hotkey until ctx is done, then shuts the coordinator down.
func (a *App) Run(ctx context.Context) error {
	if a.coordinator == nil || a.listener == nil {
		return errors.New("application is not initialized")
	}
	defer a.coordinator.Shutdown()

	a.printf("Hotkey: %s", hotkey.Format(a.combo))
	a.printf("Endpoint: %s", a.endpoint)
	a.printf("Press the hotkey to begin recording.")
	a.PhaseChanged(domain.PhaseIdle, domain.ReasonReady)

	if a.metricsAddr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, a.metricsAddr, a.logger); err != nil {
				a.logger.Warn("metrics endpoint stopped", "error", err)
			}
		}()
	}

	err := a.listener.Listen(ctx, a.combo, func() {
		go a.safeToggle(ctx)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("hotkey listener failed: %w", err)
	}
	return nil
}

// safeToggle keeps a panicking collaborator from taking the hook thread down.
func (a *App) safeToggle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("toggle panicked", "panic", r)
			a.SessionError(domain.ErrorCodeToggle, fmt.Sprint(r))
		}
	}()
	a.coordinator.Toggle(ctx)

	status := a.coordinator.Status()
	a.logger.Debug("toggle handled", "state", status.State, "session", status.Session)
}

// PhaseChanged prints lifecycle updates.
func (a *App) PhaseChanged(phase domain.Phase, reason domain.PhaseReason) {
	message := sessionReasonMessage(reason)
	if message == "" {
		message = string(phase)
	}
	a.printf("%s", message)
	if notifyOnReason(reason) {
		a.notify(message)
	}
}

// PartialTranscript logs live transcript text.
func (a *App) PartialTranscript(text string) {
	a.logger.Debug("partial transcript", "text", text)
}

// FinalTranscript prints the delivered transcript.
func (a *App) FinalTranscript(text string) {
	a.printf("Transcript: %s", text)
}

// SessionError prints backend errors.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	message := errorMessage(code, detail)
	if detail != "" && detail != message {
		a.printf("Error: %s (%s)", message, detail)
	} else {
		a.printf("Error: %s", message)
	}
	a.notify(message)
}

func (a *App) printf(format string, args ...any) {
	if a.out == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.out, consolePrefix+" "+format+"\n", args...)
}

func (a *App) notify(message string) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.Notify(message); err != nil {
		a.logger.Debug("desktop notification failed", "error", err)
	}
}

func notifyOnReason(reason domain.PhaseReason) bool {
	switch reason {
	case domain.ReasonRecordingStarted,
		domain.ReasonTranscriptCopied,
		domain.ReasonTranscriptPasted,
		domain.ReasonNoTranscript:
		return true
	default:
		return false
	}
}

func sessionReasonMessage(reason domain.PhaseReason) string {
	switch reason {
	case domain.ReasonReady:
		return "Ready"
	case domain.ReasonRecordingStarted:
		return "Recording started"
	case domain.ReasonTranscribing:
		return "Recording stopped. Transcribing..."
	case domain.ReasonTranscriptCopied:
		return "Transcript copied to clipboard"
	case domain.ReasonTranscriptPasted:
		return "Transcript pasted"
	case domain.ReasonTranscriptReadyClipboardFail:
		return "Transcript ready (clipboard write failed)"
	case domain.ReasonNoTranscript:
		return "No transcript captured"
	case domain.ReasonStartFailed:
		return "Recording failed to start"
	case domain.ReasonShutdown:
		return "Shutting down"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeConnect:
		return "Could not connect to transcription service"
	case domain.ErrorCodeAudioStart:
		return "Audio capture failed to start"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeSession:
		return "Transcription service error"
	case domain.ErrorCodeClipboard:
		return "Clipboard write failed"
	case domain.ErrorCodePaste:
		return "Paste keystroke failed"
	case domain.ErrorCodeToggle:
		return "Hotkey handler failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
