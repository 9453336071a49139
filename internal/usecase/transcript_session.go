package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"hotmic/internal/domain"
	"hotmic/internal/metrics"
	"hotmic/internal/ports"
	"hotmic/internal/protocol"
)

var ErrConnectTimeout = errors.New("connect timeout")

// SessionConfig bounds every blocking wait of a TranscriptSession.
type SessionConfig struct {
	Endpoint       string
	ConnectTimeout time.Duration
	FinalTimeout   time.Duration
	CloseTimeout   time.Duration
}

// TranscriptSession owns one logical connection to the transcription service:
// dialing, the receive loop, and the control/audio send path.
type TranscriptSession struct {
	transport ports.Transport
	events    ports.EventSink
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cfg       SessionConfig

	// mu serializes Begin, Finalize and Close. SendAudio and the receive
	// loop never take it.
	mu      sync.Mutex
	current atomic.Pointer[liveConn]
}

func NewTranscriptSession(
	transport ports.Transport,
	events ports.EventSink,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg SessionConfig,
) *TranscriptSession {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.FinalTimeout <= 0 {
		cfg.FinalTimeout = 30 * time.Second
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscriptSession{
		transport: transport,
		events:    events,
		metrics:   m,
		logger:    logger,
		cfg:       cfg,
	}
}

// Begin makes sure a live connection exists, reconnecting if the previous one
// is missing or closed, then sends start_recording on it.
func (s *TranscriptSession) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lc := s.current.Load()
	if !lc.isOpen() {
		if lc != nil {
			s.current.Store(nil)
			s.closeConn(lc)
		}
		var err error
		lc, err = s.connect(ctx)
		if err != nil {
			return err
		}
	}

	if err := lc.conn.WriteMessage(ports.MessageText, protocol.StartRecording()); err != nil {
		return fmt.Errorf("failed to send start_recording: %w", err)
	}
	lc.recording.Store(true)
	s.logger.Debug("start_recording sent", "session", lc.id)
	return nil
}

func (s *TranscriptSession) connect(ctx context.Context) (*liveConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	type dialResult struct {
		conn ports.Conn
		err  error
	}
	results := make(chan dialResult, 1)
	go func() {
		conn, err := s.transport.Dial(dialCtx, s.cfg.Endpoint)
		results <- dialResult{conn: conn, err: err}
	}()

	var res dialResult
	select {
	case res = <-results:
	case <-dialCtx.Done():
		// Reap a connection that lands after we gave up on it.
		go func() {
			if late := <-results; late.conn != nil {
				_ = late.conn.Close()
			}
		}()
		res = dialResult{err: dialCtx.Err()}
	}

	if res.err != nil {
		if ctx.Err() == nil && errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %s", ErrConnectTimeout, s.cfg.ConnectTimeout, s.cfg.Endpoint)
		}
		return nil, res.err
	}

	lc := newLiveConn(uuid.NewString(), res.conn)
	s.current.Store(lc)
	go s.receiveLoop(lc)

	s.logger.Info("transcription session connected", "session", lc.id, "endpoint", s.cfg.Endpoint)
	return lc, nil
}

func (s *TranscriptSession) receiveLoop(lc *liveConn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("receive loop panic", "session", lc.id, "panic", r)
		}
		lc.open.Store(false)
		lc.recording.Store(false)
		close(lc.done)
	}()

	for {
		kind, payload, err := lc.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Debug("transcription connection closed", "session", lc.id)
			} else if lc.open.Load() {
				s.logger.Warn("transcription connection lost", "session", lc.id, "error", err)
			}
			return
		}
		if kind != ports.MessageText {
			continue
		}
		s.handleMessage(lc, payload)
	}
}

func (s *TranscriptSession) handleMessage(lc *liveConn, payload []byte) {
	msg, err := protocol.DecodeServerMessage(payload)
	if err != nil {
		s.metrics.MalformedMessage()
		s.logger.Debug("ignoring server frame", "session", lc.id, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeText:
		text := lc.transcript.Add(msg)
		if s.events != nil {
			s.events.PartialTranscript(text)
		}
	case protocol.TypeStatus:
		if msg.IsTerminal(lc.awaitingFinal.Load()) {
			lc.final.Fire()
		}
	case protocol.TypeError:
		s.logger.Warn("transcription server error", "session", lc.id, "message", msg.Message)
		if s.events != nil {
			s.events.SessionError(domain.ErrorCodeSession, msg.Message)
		}
		lc.final.Fire()
	default:
		s.logger.Debug("ignoring server message", "session", lc.id, "type", msg.Type)
	}
}

// SendAudio writes chunk as a binary frame. It is a silent no-op when the
// connection is closed or the chunk is empty.
func (s *TranscriptSession) SendAudio(chunk []byte) error {
	lc := s.current.Load()
	if !lc.isOpen() || len(chunk) == 0 {
		return nil
	}
	if err := lc.conn.WriteMessage(ports.MessageBinary, chunk); err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}
	s.metrics.ChunkSent(len(chunk))
	return nil
}

// Finalize sends stop_recording and waits for the terminal signal, the
// finalize timeout, or the connection dropping. It returns whatever
// transcript has accumulated; a timeout is not an error.
func (s *TranscriptSession) Finalize(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	lc := s.current.Load()
	if lc == nil {
		return ""
	}

	lc.recording.Store(false)
	lc.awaitingFinal.Store(true)
	defer func() {
		lc.awaitingFinal.Store(false)
		lc.final.Reset()
	}()

	started := time.Now()
	if !lc.isOpen() {
		s.metrics.Finalized(metrics.FinalizeClosed, 0)
		return lc.transcript.Raw()
	}
	if err := lc.conn.WriteMessage(ports.MessageText, protocol.StopRecording()); err != nil {
		s.logger.Warn("failed to send stop_recording", "session", lc.id, "error", err)
		s.metrics.Finalized(metrics.FinalizeClosed, time.Since(started))
		return lc.transcript.Raw()
	}

	switch lc.final.Wait(ctx, s.cfg.FinalTimeout, lc.done) {
	case waitFired:
		s.metrics.Finalized(metrics.FinalizeFinal, time.Since(started))
	case waitTimedOut:
		s.logger.Warn("final transcript not confirmed before timeout", "session", lc.id, "timeout", s.cfg.FinalTimeout)
		s.metrics.Finalized(metrics.FinalizeTimeout, time.Since(started))
	case waitAborted:
		s.logger.Debug("finalize ended early", "session", lc.id)
		s.metrics.Finalized(metrics.FinalizeClosed, time.Since(started))
	}

	return lc.transcript.Raw()
}

// Close drops the connection and waits, bounded, for the receive loop to exit.
func (s *TranscriptSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lc := s.current.Swap(nil); lc != nil {
		s.closeConn(lc)
	}
}

func (s *TranscriptSession) closeConn(lc *liveConn) {
	lc.open.Store(false)
	if err := lc.conn.Close(); err != nil {
		s.logger.Debug("transcription connection close", "session", lc.id, "error", err)
	}

	timer := time.NewTimer(s.cfg.CloseTimeout)
	defer timer.Stop()
	select {
	case <-lc.done:
	case <-timer.C:
		s.logger.Warn("receive loop did not exit before close timeout", "session", lc.id)
	}
}

// State reports the connection lifecycle state.
func (s *TranscriptSession) State() domain.SessionState {
	lc := s.current.Load()
	switch {
	case !lc.isOpen():
		return domain.SessionStateDisconnected
	case lc.awaitingFinal.Load():
		return domain.SessionStateAwaitingFinal
	case lc.recording.Load():
		return domain.SessionStateConnectedRecording
	default:
		return domain.SessionStateConnectedIdle
	}
}

// Transcript returns the text accumulated on the current connection.
func (s *TranscriptSession) Transcript() string {
	lc := s.current.Load()
	if lc == nil {
		return ""
	}
	return lc.transcript.Raw()
}

// ID identifies the current connection in logs; empty when disconnected.
func (s *TranscriptSession) ID() string {
	lc := s.current.Load()
	if lc == nil {
		return ""
	}
	return lc.id
}
