package usecase

import (
	"sync"

	"hotmic/internal/protocol"
)

// transcriptAggregator accumulates streaming text updates. A new response
// restarts the utterance; anything else extends it.
type transcriptAggregator struct {
	mu   sync.Mutex
	text string
}

func newTranscriptAggregator() *transcriptAggregator {
	return &transcriptAggregator{}
}

// Add applies a text update and returns the accumulated transcript.
func (a *transcriptAggregator) Add(msg protocol.ServerMessage) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if msg.IsNewResponse {
		a.text = msg.Content
	} else {
		a.text += msg.Content
	}
	return a.text
}

func (a *transcriptAggregator) Raw() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.text
}
