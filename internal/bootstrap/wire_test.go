package bootstrap

import (
	"errors"
	"testing"
	"time"

	"hotmic/internal/config"
	"hotmic/internal/domain"
)

func testConfig() config.Config {
	return config.Config{
		Endpoint:          "ws://127.0.0.1:9090",
		Hotkey:            "<cmd>+<alt>+r",
		SampleRate:        16000,
		Channels:          1,
		BlockSamples:      1600,
		ConnectTimeout:    time.Second,
		StopFlushWait:     100 * time.Millisecond,
		AudioBackend:      config.BackendFFMPEG,
		FFMPEGCommand:     "ffmpeg",
		FFMPEGInputFormat: "pulse",
		FinalTimeout:      time.Second,
		CloseTimeout:      time.Second,
	}
}

func TestBuildSuccess(t *testing.T) {
	t.Parallel()

	services, err := Build(testConfig(), noopEventSink{}, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Coordinator == nil || services.Hotkey == nil || services.Metrics == nil {
		t.Fatalf("expected a fully wired graph: %+v", services)
	}
	if len(services.Combo) != 3 || services.Combo[0] != "r" {
		t.Fatalf("unexpected combo: %v", services.Combo)
	}
	if status := services.Coordinator.Status(); status.State != domain.RecordingStateIdle {
		t.Fatalf("expected idle coordinator, got %+v", status)
	}
	if err := services.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestBuildFailsOnInvalidHotkey(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Hotkey = "<cmd>+"

	if _, err := Build(cfg, noopEventSink{}, nil); err == nil {
		t.Fatalf("expected build error due to invalid hotkey")
	}
}

func TestBuildFailsOnUnknownBackend(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.AudioBackend = "portaudio"

	_, err := Build(cfg, noopEventSink{}, nil)
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

type noopEventSink struct{}

func (noopEventSink) PhaseChanged(_ domain.Phase, _ domain.PhaseReason) {}
func (noopEventSink) PartialTranscript(_ string)                        {}
func (noopEventSink) FinalTranscript(_ string)                          {}
func (noopEventSink) SessionError(_ domain.ErrorCode, _ string)         {}
