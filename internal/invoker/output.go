package invoker

import (
	"regexp"
	"sync"
)

// transcript collects the child's combined output for prompt matching.
//
// Only output that has not yet been consumed by a prompt match is kept,
// bounded to limit bytes, so a later prompt is never matched against text
// that satisfied an earlier one. Writers and the negotiator run on
// different goroutines.
type transcript struct {
	mu      sync.Mutex
	pending []byte
	limit   int
	notify  chan struct{}
}

func newTranscript(limit int) *transcript {
	return &transcript{
		limit:  limit,
		notify: make(chan struct{}),
	}
}

// Write implements io.Writer. It never fails.
func (t *transcript) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending = append(t.pending, p...)
	if over := len(t.pending) - t.limit; over > 0 {
		t.pending = append(t.pending[:0], t.pending[over:]...)
	}
	close(t.notify)
	t.notify = make(chan struct{})
	return len(p), nil
}

// changed returns a channel that is closed on the next Write.
func (t *transcript) changed() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.notify
}

// consume reports whether re matches the pending output and, if so, drops
// everything up to the end of the match.
func (t *transcript) consume(re *regexp.Regexp) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	loc := re.FindIndex(t.pending)
	if loc == nil {
		return false
	}
	t.pending = append(t.pending[:0], t.pending[loc[1]:]...)
	return true
}

// tail returns up to n trailing bytes of unconsumed output.
func (t *transcript) tail(n int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pending) <= n {
		return string(t.pending)
	}
	return string(t.pending[len(t.pending)-n:])
}

// headBuffer keeps the first limit bytes written to it and discards the
// rest. Writes never fail, so a chatty child cannot stall on a full pipe.
type headBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func newHeadBuffer(limit int) *headBuffer {
	return &headBuffer{limit: limit}
}

// Write implements io.Writer.
func (b *headBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - len(b.buf); room > 0 {
		if len(p) > room {
			b.buf = append(b.buf, p[:room]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

// String returns the captured bytes.
func (b *headBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

// Write implements io.Writer.
func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

// String returns the captured bytes.
func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
