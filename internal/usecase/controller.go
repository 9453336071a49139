package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"hotmic/internal/domain"
	"hotmic/internal/metrics"
	"hotmic/internal/ports"
)

var ErrShutdown = errors.New("recording coordinator is shut down")

// Capture is the coordinator's view of the capture controller.
type Capture interface {
	Start() error
	Stop()
	TryPop() ([]byte, bool)
	Drain(wait time.Duration) [][]byte
	LateBlocks() int64
}

// Config controls recording behavior.
type Config struct {
	Session SessionConfig

	// FlushWait is how long Stop lets in-flight device callbacks land before
	// draining the queue.
	FlushWait time.Duration
	// StopDelay separates the last audio frame from stop_recording.
	StopDelay    time.Duration
	PollInterval time.Duration
	// SenderJoinTimeout bounds how long Stop waits for the sender loop.
	SenderJoinTimeout time.Duration
	Autopaste         bool
}

// Collaborators groups the capabilities the coordinator drives.
type Collaborators struct {
	Capture   Capture
	Transport ports.Transport
	Clipboard ports.Clipboard
	Paster    ports.Paster
	Events    ports.EventSink
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// RecordingCoordinator is the toggle state machine driven by the hotkey. It
// sequences capture and the transcription session and hands finished
// transcripts to delivery.
type RecordingCoordinator struct {
	capture  Capture
	session  *TranscriptSession
	delivery transcriptDelivery
	events   ports.EventSink
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      Config

	// ctx is released by Shutdown and bounds every operation.
	ctx    context.Context
	cancel context.CancelFunc

	// opMu serializes Start and Stop. Toggle only try-locks it.
	opMu       sync.Mutex
	recording  atomic.Bool
	senderDone chan struct{}
	lateSeen   int64
	shutdown   atomic.Bool
}

func NewRecordingCoordinator(deps Collaborators, cfg Config) *RecordingCoordinator {
	if cfg.StopDelay <= 0 {
		cfg.StopDelay = 100 * time.Millisecond
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	if cfg.SenderJoinTimeout <= 0 {
		cfg.SenderJoinTimeout = 5 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &RecordingCoordinator{
		capture: deps.Capture,
		session: NewTranscriptSession(deps.Transport, deps.Events, deps.Metrics, logger, cfg.Session),
		delivery: transcriptDelivery{
			clipboard: deps.Clipboard,
			paster:    deps.Paster,
			events:    deps.Events,
			metrics:   deps.Metrics,
			logger:    logger,
			autopaste: cfg.Autopaste,
		},
		events:  deps.Events,
		metrics: deps.Metrics,
		logger:  logger,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins recording. The start handshake (device open, connect,
// start_recording) completes before Start returns. On failure every partial
// step is rolled back and the coordinator is Idle again.
func (c *RecordingCoordinator) Start(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.start(ctx)
}

// Stop ends recording, waits for the final transcript and delivers it.
// Stopping while Idle is a no-op.
func (c *RecordingCoordinator) Stop(ctx context.Context) (domain.StopResult, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.stop(ctx)
}

// Toggle stops when recording and starts otherwise. A toggle that arrives
// while another operation is in flight is dropped. Errors are reported to the
// event sink, never returned.
func (c *RecordingCoordinator) Toggle(ctx context.Context) {
	if !c.opMu.TryLock() {
		c.logger.Debug("toggle ignored while an operation is in flight")
		return
	}
	defer c.opMu.Unlock()

	if c.recording.Load() {
		if _, err := c.stop(ctx); err != nil {
			c.logger.Warn("stop failed", "error", err)
		}
		return
	}
	if err := c.start(ctx); err != nil {
		c.logger.Warn("start failed", "error", err)
	}
}

// Shutdown stops any active recording, closes the session and releases the
// coordinator's context. Later starts fail with ErrShutdown.
func (c *RecordingCoordinator) Shutdown() {
	if !c.shutdown.CompareAndSwap(false, true) {
		return
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.recording.Load() {
		if _, err := c.stop(context.Background()); err != nil {
			c.logger.Warn("stop during shutdown failed", "error", err)
		}
	}
	c.session.Close()
	c.cancel()
	c.events.PhaseChanged(domain.PhaseIdle, domain.ReasonShutdown)
}

// Status reports the recording and connection state.
func (c *RecordingCoordinator) Status() domain.Status {
	state := domain.RecordingStateIdle
	if c.recording.Load() {
		state = domain.RecordingStateRecording
	}
	return domain.Status{
		State:   state,
		Session: c.session.State(),
		Active:  state == domain.RecordingStateRecording,
	}
}

func (c *RecordingCoordinator) start(ctx context.Context) error {
	if c.shutdown.Load() {
		return ErrShutdown
	}
	if c.recording.Load() {
		return nil
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	c.recording.Store(true)

	if err := c.capture.Start(); err != nil {
		c.rollback()
		c.reportStartFailure("audio", domain.ErrorCodeAudioStart, err)
		return err
	}

	if err := c.session.Begin(opCtx); err != nil {
		c.rollback()
		code := domain.ErrorCodeConnect
		if errors.Is(err, ErrConnectTimeout) {
			c.reportStartFailure("connect_timeout", code, err)
		} else {
			c.reportStartFailure("connect", code, err)
		}
		return err
	}

	done := make(chan struct{})
	c.senderDone = done
	go pumpAudioChunks(c.capture, c.session, c.recording.Load, c.cfg.PollInterval, c.events, done)

	c.metrics.RecordingStarted()
	c.logger.Info("recording started", "session", c.session.ID())
	c.events.PhaseChanged(domain.PhaseRecording, domain.ReasonRecordingStarted)
	return nil
}

func (c *RecordingCoordinator) stop(ctx context.Context) (domain.StopResult, error) {
	if !c.recording.Load() {
		return domain.StopResult{}, nil
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	sessionID := c.session.ID()
	c.recording.Store(false)
	c.events.PhaseChanged(domain.PhaseTranscribing, domain.ReasonTranscribing)

	c.capture.Stop()
	remaining := c.capture.Drain(c.cfg.FlushWait)

	// A sender still stuck in SendAudio past the timeout holds the
	// connection's write slot, so the frames below queue up behind its chunk.
	if !waitDone(c.senderDone, c.cfg.SenderJoinTimeout) {
		c.logger.Warn("audio sender did not exit in time", "session", sessionID)
	}
	c.senderDone = nil
	c.observeLateBlocks()

	for _, chunk := range remaining {
		if err := c.session.SendAudio(chunk); err != nil {
			c.logger.Warn("failed to flush trailing audio", "session", sessionID, "error", err)
			c.events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("failed to stream audio: %v", err))
			break
		}
	}
	c.logger.Debug("trailing audio flushed", "session", sessionID, "chunks", len(remaining))

	sleepContext(opCtx, c.cfg.StopDelay)

	raw := c.session.Finalize(opCtx)
	c.session.Close()

	text := strings.TrimSpace(raw)
	c.metrics.RecordingCompleted(text)
	if text == "" {
		c.logger.Info("no transcript received", "session", sessionID)
		c.events.PhaseChanged(domain.PhaseIdle, domain.ReasonNoTranscript)
		return domain.StopResult{}, nil
	}

	c.events.FinalTranscript(text)
	result, reason := c.delivery.Deliver(opCtx, text)
	c.logger.Info("recording finished", "session", sessionID, "chars", len(text), "copied", result.Copied, "pasted", result.Pasted)
	c.events.PhaseChanged(domain.PhaseIdle, reason)
	return result, nil
}

// rollback returns a half-started recording to a clean Idle state.
func (c *RecordingCoordinator) rollback() {
	c.recording.Store(false)
	c.capture.Stop()
	if dropped := c.capture.Drain(0); len(dropped) > 0 {
		c.logger.Debug("discarded audio from failed start", "chunks", len(dropped))
	}
	c.observeLateBlocks()
	c.session.Close()
}

func (c *RecordingCoordinator) reportStartFailure(stage string, code domain.ErrorCode, err error) {
	c.metrics.StartFailed(stage)
	c.logger.Error("failed to start recording", "stage", stage, "error", err)
	c.events.SessionError(code, err.Error())
	c.events.PhaseChanged(domain.PhaseIdle, domain.ReasonStartFailed)
}

func (c *RecordingCoordinator) observeLateBlocks() {
	total := c.capture.LateBlocks()
	c.metrics.LateChunksObserved(total - c.lateSeen)
	c.lateSeen = total
}

// opContext derives a context that ends with ctx or with Shutdown.
func (c *RecordingCoordinator) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
