package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"hotmic/internal/ports"
)

// FFMPEGDevice captures microphone PCM by reading s16le from an ffmpeg child
// process. It is the fallback when no miniaudio backend is usable.
type FFMPEGDevice struct {
	command     string
	inputFormat string
	logger      *slog.Logger
}

func NewFFMPEGDevice(command string, inputFormat string, logger *slog.Logger) *FFMPEGDevice {
	if command == "" {
		command = "ffmpeg"
	}
	if inputFormat == "" {
		inputFormat = "pulse"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFMPEGDevice{command: command, inputFormat: inputFormat, logger: logger}
}

func (d *FFMPEGDevice) Open(cfg ports.AudioConfig, onBlock func(block []byte)) (ports.AudioStream, error) {
	if onBlock == nil {
		return nil, errors.New("audio block handler is required")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.BlockSamples <= 0 {
		cfg.BlockSamples = 1024
	}
	input := cfg.DeviceID
	if input == "" {
		input = "default"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", d.inputFormat,
		"-i", input,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	return &ffmpegStream{
		command:   d.command,
		args:      args,
		blockSize: cfg.BlockBytes(),
		onBlock:   onBlock,
		logger:    d.logger,
	}, nil
}

type ffmpegStream struct {
	command   string
	args      []string
	blockSize int
	onBlock   func(block []byte)
	logger    *slog.Logger

	stderr  bytes.Buffer
	stdout  io.ReadCloser
	process *os.Process
	waitErr chan error
	readErr chan error

	started  bool
	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegStream) Start() error {
	if s.started {
		return nil
	}

	cmd := exec.CommandContext(context.Background(), s.command, s.args...)
	cmd.Stderr = &s.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	s.stdout = stdout
	s.process = cmd.Process
	s.waitErr = make(chan error, 1)
	s.readErr = make(chan error, 1)

	// Wait closes stdout, so it only runs once the reader has hit EOF.
	go func() {
		s.readBlocks()
		s.waitErr <- cmd.Wait()
		close(s.waitErr)
	}()

	select {
	case err := <-s.waitErr:
		if err != nil {
			return fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, stringsTrimSpaceSafe(s.stderr.String()))
		}
		return errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	s.started = true
	return nil
}

func (s *ffmpegStream) readBlocks() {
	defer close(s.readErr)

	buf := make([]byte, s.blockSize)
	for {
		_, err := io.ReadFull(s.stdout, buf)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, os.ErrClosed) {
				s.readErr <- err
			}
			return
		}
		block := make([]byte, len(buf))
		copy(block, buf)
		s.onBlock(block)
	}
}

func (s *ffmpegStream) Stop() error {
	if !s.started {
		return nil
	}

	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if readErr, ok := <-s.readErr; ok && s.stopErr == nil {
			s.stopErr = readErr
		}

		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, stringsTrimSpaceSafe(s.stderr.String()))
		}
		if warnings := stringsTrimSpaceSafe(s.stderr.String()); warnings != "" {
			s.logger.Debug("ffmpeg warnings", "stderr", warnings)
		}
	})

	return s.stopErr
}

func (s *ffmpegStream) Close() error {
	return s.Stop()
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func stringsTrimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
