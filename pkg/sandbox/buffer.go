package sandbox

import "sync"

// boundedBuffer keeps the first limit bytes written to it and counts the
// rest. Write never fails so the child never blocks on a full pipe.
type boundedBuffer struct {
	mu      sync.Mutex
	limit   int
	buf     []byte
	dropped int64
}

func newBoundedBuffer(limit int) *boundedBuffer {
	return &boundedBuffer{limit: limit}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.limit - len(b.buf)
	if room < 0 {
		room = 0
	}

	keep := len(p)
	if keep > room {
		keep = room
	}
	b.buf = append(b.buf, p[:keep]...)
	b.dropped += int64(len(p) - keep)

	return len(p), nil
}

func (b *boundedBuffer) output() Output {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Output{
		Data:      append([]byte(nil), b.buf...),
		Truncated: b.dropped > 0,
		Dropped:   b.dropped,
	}
}
