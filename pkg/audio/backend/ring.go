// ABOUTME: Byte ring buffer between device callbacks and blocking lines
// ABOUTME: Callbacks use the non-blocking side; Write/Read callers block
package backend

import "sync"

// ringBuffer is a bounded byte FIFO. The device callback side never blocks;
// the application side waits on a condition variable.
type ringBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buffer []byte
	read   int
	write  int
	count  int
	closed bool
}

func newRingBuffer(capacity int) *ringBuffer {
	rb := &ringBuffer{buffer: make([]byte, capacity)}
	rb.cond = sync.NewCond(&rb.mu)
	return rb
}

// push copies as much of p as fits and returns the bytes written
func (rb *ringBuffer) push(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	n := rb.pushLocked(p)
	if n > 0 {
		rb.cond.Broadcast()
	}
	return n
}

func (rb *ringBuffer) pushLocked(p []byte) int {
	n := min(len(p), len(rb.buffer)-rb.count)
	for i := 0; i < n; i++ {
		rb.buffer[rb.write] = p[i]
		rb.write = (rb.write + 1) % len(rb.buffer)
	}
	rb.count += n
	return n
}

// pop copies up to len(p) bytes out and returns the bytes read
func (rb *ringBuffer) pop(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	n := rb.popLocked(p)
	if n > 0 {
		rb.cond.Broadcast()
	}
	return n
}

func (rb *ringBuffer) popLocked(p []byte) int {
	n := min(len(p), rb.count)
	for i := 0; i < n; i++ {
		p[i] = rb.buffer[rb.read]
		rb.read = (rb.read + 1) % len(rb.buffer)
	}
	rb.count -= n
	return n
}

// writeAll blocks until all of p is queued or the buffer is closed
func (rb *ringBuffer) writeAll(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	done := 0
	for done < len(p) {
		if rb.closed {
			return done, ErrNotOpen
		}
		n := rb.pushLocked(p[done:])
		if n == 0 {
			rb.cond.Wait()
			continue
		}
		done += n
		rb.cond.Broadcast()
	}
	return done, nil
}

// readFull blocks until p is filled or the buffer is closed
func (rb *ringBuffer) readFull(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	done := 0
	for done < len(p) {
		if rb.closed {
			return done, ErrNotOpen
		}
		n := rb.popLocked(p[done:])
		if n == 0 {
			rb.cond.Wait()
			continue
		}
		done += n
		rb.cond.Broadcast()
	}
	return done, nil
}

// waitEmpty blocks until every queued byte was consumed
func (rb *ringBuffer) waitEmpty() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	for rb.count > 0 && !rb.closed {
		rb.cond.Wait()
	}
}

func (rb *ringBuffer) len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

func (rb *ringBuffer) free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return len(rb.buffer) - rb.count
}

func (rb *ringBuffer) reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.read, rb.write, rb.count = 0, 0, 0
	rb.cond.Broadcast()
}

// close wakes every waiter; later blocking calls fail with ErrNotOpen
func (rb *ringBuffer) close() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.closed = true
	rb.cond.Broadcast()
}
