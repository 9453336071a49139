package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"hotmic/internal/domain"
)

func TestSessionReasonMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.PhaseReason]string{
		domain.ReasonReady:                        "Ready",
		domain.ReasonRecordingStarted:             "Recording started",
		domain.ReasonTranscribing:                 "Recording stopped. Transcribing...",
		domain.ReasonTranscriptCopied:             "Transcript copied to clipboard",
		domain.ReasonTranscriptPasted:             "Transcript pasted",
		domain.ReasonTranscriptReadyClipboardFail: "Transcript ready (clipboard write failed)",
		domain.ReasonNoTranscript:                 "No transcript captured",
		domain.ReasonStartFailed:                  "Recording failed to start",
		domain.ReasonShutdown:                     "Shutting down",
	}

	for reason, want := range cases {
		reason := reason
		want := want
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			if got := sessionReasonMessage(reason); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := sessionReasonMessage("unknown"); got != "" {
		t.Fatalf("expected empty unknown reason message, got %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:     "Startup failed",
		domain.ErrorCodeConnect:     "Could not connect to transcription service",
		domain.ErrorCodeAudioStart:  "Audio capture failed to start",
		domain.ErrorCodeAudioStream: "Audio streaming issue",
		domain.ErrorCodeSession:     "Transcription service error",
		domain.ErrorCodeClipboard:   "Clipboard write failed",
		domain.ErrorCodePaste:       "Paste keystroke failed",
		domain.ErrorCodeToggle:      "Hotkey handler failed",
	}
	for code, want := range cases {
		code := code
		want := want
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("unknown", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("unknown", ""); got != "Unknown error" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func TestConsoleSinkOutput(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	notes := &fakeNotifier{}
	app := NewApp(&out, notes, nil)

	app.PhaseChanged(domain.PhaseRecording, domain.ReasonRecordingStarted)
	app.PhaseChanged(domain.PhaseTranscribing, domain.ReasonTranscribing)
	app.FinalTranscript("Hello world")
	app.SessionError(domain.ErrorCodeConnect, "dial tcp: refused")
	app.PartialTranscript("Hello")

	want := strings.Join([]string{
		"[hotmic] Recording started",
		"[hotmic] Recording stopped. Transcribing...",
		"[hotmic] Transcript: Hello world",
		"[hotmic] Error: Could not connect to transcription service (dial tcp: refused)",
		"",
	}, "\n")
	if got := out.String(); got != want {
		t.Fatalf("unexpected console output:\n%s", got)
	}

	got := notes.snapshot()
	if len(got) != 2 || got[0] != "Recording started" || got[1] != "Could not connect to transcription service" {
		t.Fatalf("unexpected notifications: %v", got)
	}
}

func TestRunRequiresServices(t *testing.T) {
	t.Parallel()

	app := NewApp(&bytes.Buffer{}, nil, nil)
	if err := app.Run(context.Background()); err == nil {
		t.Fatalf("expected uninitialized error")
	}
}

func TestRunTogglesOnHotkeyAndShutsDown(t *testing.T) {
	t.Parallel()

	var out lockedBuffer
	coord := &fakeCoordinator{}
	listener := &fakeListener{presses: 2}
	app := NewApp(&out, nil, nil)
	app.coordinator = coord
	app.listener = listener
	app.combo = []string{"r", "alt", "cmd"}
	app.endpoint = "ws://127.0.0.1:9090"

	ctx, cancel := context.WithCancel(context.Background())
	listener.onDone = cancel

	if err := app.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for coord.toggleCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := coord.toggleCount(); got != 2 {
		t.Fatalf("expected two toggles, got %d", got)
	}
	if !coord.wasShutdown() {
		t.Fatalf("expected coordinator shutdown after run")
	}
	if !strings.Contains(out.String(), "[hotmic] Hotkey: alt+cmd+r") {
		t.Fatalf("expected hotkey banner, got:\n%s", out.String())
	}
}

func TestRunReportsListenerFailure(t *testing.T) {
	t.Parallel()

	coord := &fakeCoordinator{}
	app := NewApp(&bytes.Buffer{}, nil, nil)
	app.coordinator = coord
	app.listener = &fakeListener{err: errors.New("no display")}
	app.combo = []string{"r"}

	if err := app.Run(context.Background()); err == nil {
		t.Fatalf("expected listener error")
	}
	if !coord.wasShutdown() {
		t.Fatalf("expected coordinator shutdown after listener failure")
	}
}

func TestSafeToggleRecoversPanic(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	app := NewApp(&out, nil, nil)
	app.coordinator = &fakeCoordinator{panicOnToggle: true}

	app.safeToggle(context.Background())

	if !strings.Contains(out.String(), "Hotkey handler failed") {
		t.Fatalf("expected toggle error to be reported, got:\n%s", out.String())
	}
}

func TestSafeToggleLogsStatus(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	coord := &fakeCoordinator{status: domain.Status{
		State:   domain.RecordingStateRecording,
		Session: domain.SessionStateConnectedRecording,
		Active:  true,
	}}
	app := NewApp(&bytes.Buffer{}, nil, logger)
	app.coordinator = coord

	app.safeToggle(context.Background())

	if coord.toggleCount() != 1 {
		t.Fatalf("expected one toggle, got %d", coord.toggleCount())
	}
	got := logs.String()
	if !strings.Contains(got, "state=recording") || !strings.Contains(got, "session=connected_recording") {
		t.Fatalf("expected status in toggle log, got:\n%s", got)
	}
}

type fakeCoordinator struct {
	mu            sync.Mutex
	toggles       int
	shutdown      bool
	panicOnToggle bool
	status        domain.Status
}

func (f *fakeCoordinator) Toggle(_ context.Context) {
	if f.panicOnToggle {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles++
}

func (f *fakeCoordinator) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdown = true
}

func (f *fakeCoordinator) Status() domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeCoordinator) toggleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.toggles
}

func (f *fakeCoordinator) wasShutdown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdown
}

type fakeListener struct {
	presses int
	err     error
	onDone  func()
}

func (f *fakeListener) Listen(ctx context.Context, _ []string, handler func()) error {
	if f.err != nil {
		return f.err
	}
	for i := 0; i < f.presses; i++ {
		handler()
	}
	if f.onDone != nil {
		f.onDone()
	}
	<-ctx.Done()
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeNotifier) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
