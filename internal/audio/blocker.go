package audio

// blocker regroups arbitrary-sized PCM buffers into fixed-size blocks. Each
// emitted block is a fresh copy owned by the receiver.
type blocker struct {
	size    int
	pending []byte
	emit    func(block []byte)
}

func newBlocker(size int, emit func(block []byte)) *blocker {
	if size <= 0 {
		size = 2048
	}
	return &blocker{size: size, pending: make([]byte, 0, size), emit: emit}
}

func (b *blocker) write(data []byte) {
	for len(data) > 0 {
		n := b.size - len(b.pending)
		if n > len(data) {
			n = len(data)
		}
		b.pending = append(b.pending, data[:n]...)
		data = data[n:]

		if len(b.pending) == b.size {
			block := make([]byte, b.size)
			copy(block, b.pending)
			b.pending = b.pending[:0]
			b.emit(block)
		}
	}
}
