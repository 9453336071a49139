package usecase

import (
	"fmt"
	"time"

	"hotmic/internal/domain"
	"hotmic/internal/ports"
)

type chunkSource interface {
	TryPop() ([]byte, bool)
}

type audioSink interface {
	SendAudio(chunk []byte) error
}

// pumpAudioChunks forwards captured chunks while recording() holds. A chunk
// that was popped is always sent, even if recording flips meanwhile, so the
// drained remainder that Stop forwards afterwards stays in capture order.
func pumpAudioChunks(
	source chunkSource,
	sink audioSink,
	recording func() bool,
	poll time.Duration,
	events ports.EventSink,
	done chan struct{},
) {
	defer close(done)

	if poll <= 0 {
		poll = 10 * time.Millisecond
	}

	for recording() {
		chunk, ok := source.TryPop()
		if !ok {
			time.Sleep(poll)
			continue
		}
		if err := sink.SendAudio(chunk); err != nil {
			events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("failed to stream audio: %v", err))
			return
		}
	}
}

// waitDone reports whether ch closed within timeout.
func waitDone(ch <-chan struct{}, timeout time.Duration) bool {
	if ch == nil {
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}
