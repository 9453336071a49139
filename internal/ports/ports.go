package ports

import (
	"context"

	"hotmic/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate   int
	Channels     int
	BlockSamples int
	DeviceID     string
}

// BlockBytes is the size of one interleaved int16 PCM block.
func (c AudioConfig) BlockBytes() int {
	return c.BlockSamples * c.Channels * 2
}

// AudioStream is an opened capture device.
type AudioStream interface {
	Start() error
	Stop() error
	Close() error
}

// AudioDevice opens capture streams that deliver fixed-size PCM blocks to onBlock.
// onBlock runs on the device's own thread and must not block.
type AudioDevice interface {
	Open(cfg AudioConfig, onBlock func(block []byte)) (AudioStream, error)
}

// MessageKind distinguishes websocket text and binary frames.
type MessageKind int

const (
	MessageText MessageKind = iota + 1
	MessageBinary
)

// Conn is a duplex message connection to the transcription service.
// WriteMessage is safe for concurrent use and writes one frame at a time: a
// call that starts while another write is in progress is sent after it.
// ReadMessage is called from a single goroutine.
type Conn interface {
	WriteMessage(kind MessageKind, payload []byte) error
	ReadMessage() (MessageKind, []byte, error)
	Close() error
}

// Transport dials transcription service connections.
type Transport interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// Paster injects the platform paste keystroke.
type Paster interface {
	Paste(ctx context.Context) error
}

// HotkeyListener invokes handler whenever the key combination is pressed.
// Listen blocks until ctx is done.
type HotkeyListener interface {
	Listen(ctx context.Context, combo []string, handler func()) error
}

// EventSink reports backend state/events to the user.
type EventSink interface {
	PhaseChanged(phase domain.Phase, reason domain.PhaseReason)
	PartialTranscript(text string)
	FinalTranscript(text string)
	SessionError(code domain.ErrorCode, detail string)
}
