package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"hotmic/internal/ports"
)

// CaptureController owns the capture device lifecycle and the chunk queue.
type CaptureController struct {
	device ports.AudioDevice
	cfg    ports.AudioConfig
	queue  *Queue
	logger *slog.Logger

	mu     sync.Mutex
	stream ports.AudioStream

	// gate orders the running flag against callbacks: once Stop holds the
	// write lock and clears running, no callback can enqueue.
	gate    sync.RWMutex
	running bool

	late atomic.Int64
}

func NewCaptureController(device ports.AudioDevice, cfg ports.AudioConfig, logger *slog.Logger) *CaptureController {
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptureController{
		device: device,
		cfg:    cfg,
		queue:  NewQueue(),
		logger: logger,
	}
}

// Start opens the device and begins enqueueing blocks. No-op while capturing.
func (c *CaptureController) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		return nil
	}

	stream, err := c.device.Open(c.cfg, c.onBlock)
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}

	c.setRunning(true)
	if err := stream.Start(); err != nil {
		c.setRunning(false)
		if closeErr := stream.Close(); closeErr != nil {
			c.logger.Debug("audio device close after failed start", "error", closeErr)
		}
		return fmt.Errorf("failed to start audio device: %w", err)
	}

	c.stream = stream
	c.logger.Debug("audio capture started",
		"sample_rate", c.cfg.SampleRate,
		"channels", c.cfg.Channels,
		"block_samples", c.cfg.BlockSamples,
	)
	return nil
}

// Stop clears the running flag, then tears the device down. Teardown errors
// are logged and suppressed. No-op while stopped.
func (c *CaptureController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return
	}

	c.setRunning(false)

	if err := c.stream.Stop(); err != nil {
		c.logger.Debug("audio device stop", "error", err)
	}
	if err := c.stream.Close(); err != nil {
		c.logger.Debug("audio device close", "error", err)
	}
	c.stream = nil
	c.logger.Debug("audio capture stopped")
}

// Capturing reports whether the device is open and enqueueing.
func (c *CaptureController) Capturing() bool {
	c.gate.RLock()
	defer c.gate.RUnlock()
	return c.running
}

// TryPop returns the oldest captured chunk without blocking.
func (c *CaptureController) TryPop() ([]byte, bool) {
	return c.queue.TryPop()
}

// Drain flushes chunks still in flight after Stop.
func (c *CaptureController) Drain(wait time.Duration) [][]byte {
	return c.queue.Drain(wait)
}

// Queue exposes the chunk queue shared with the sender loop.
func (c *CaptureController) Queue() *Queue {
	return c.queue
}

// LateBlocks counts blocks delivered by the device after Stop began.
func (c *CaptureController) LateBlocks() int64 {
	return c.late.Load()
}

func (c *CaptureController) setRunning(running bool) {
	c.gate.Lock()
	c.running = running
	c.gate.Unlock()
}

func (c *CaptureController) onBlock(block []byte) {
	c.gate.RLock()
	defer c.gate.RUnlock()

	if !c.running {
		c.late.Add(1)
		return
	}
	c.queue.Push(block)
}
