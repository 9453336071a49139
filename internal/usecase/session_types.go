package usecase

import (
	"sync/atomic"

	"hotmic/internal/ports"
)

// liveConn is the per-connection half of a TranscriptSession. A reconnect
// replaces it wholesale, so a receive loop left over from an old connection
// can never fire the final signal of the new one.
type liveConn struct {
	id   string
	conn ports.Conn

	open          atomic.Bool
	recording     atomic.Bool
	awaitingFinal atomic.Bool

	transcript *transcriptAggregator
	final      *finalSignal

	// done closes when the receive loop exits.
	done chan struct{}
}

func newLiveConn(id string, conn ports.Conn) *liveConn {
	lc := &liveConn{
		id:         id,
		conn:       conn,
		transcript: newTranscriptAggregator(),
		final:      newFinalSignal(),
		done:       make(chan struct{}),
	}
	lc.open.Store(true)
	return lc
}

func (lc *liveConn) isOpen() bool {
	return lc != nil && lc.open.Load()
}
