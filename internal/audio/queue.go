package audio

import (
	"sync"
	"time"
)

// Queue is an unbounded FIFO of PCM chunks shared by the capture callback
// (producer) and the sender loop (consumer). Push never blocks.
type Queue struct {
	mu     sync.Mutex
	chunks [][]byte
}

func NewQueue() *Queue {
	return &Queue{}
}

// Push appends chunk to the tail of the queue.
func (q *Queue) Push(chunk []byte) {
	q.mu.Lock()
	q.chunks = append(q.chunks, chunk)
	q.mu.Unlock()
}

// TryPop returns the oldest chunk, or false when the queue is empty.
func (q *Queue) TryPop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.chunks) == 0 {
		return nil, false
	}
	chunk := q.chunks[0]
	q.chunks[0] = nil
	q.chunks = q.chunks[1:]
	if len(q.chunks) == 0 {
		q.chunks = nil
	}
	return chunk, true
}

// Drain waits for in-flight producer writes to land, then empties the queue
// and returns everything it held in push order.
func (q *Queue) Drain(wait time.Duration) [][]byte {
	if wait > 0 {
		time.Sleep(wait)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.chunks
	q.chunks = nil
	return out
}

// Len reports the number of queued chunks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}
