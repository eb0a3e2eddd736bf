// ABOUTME: DataLine implementation over a buffered channel
// ABOUTME: Close is one-way and turns every operation into a no-op
package dataline

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
)

type eventKind int

const (
	eventSend eventKind = iota
	eventReceive
	eventSendTimeout
	eventReceiveTimeout
)

// DataLine is a bounded, goroutine-safe queue of channel-major buffers
type DataLine struct {
	format audio.Format
	queue  chan [][]float32
	done   chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once

	// force operations drain and refill the queue; they serialize here
	forceMu sync.Mutex

	listenerMu sync.Mutex
	listeners  atomic.Pointer[[]Listener]
}

// New creates a line holding at most capacity buffers (minimum 1)
func New(format audio.Format, capacity int) *DataLine {
	if capacity < 1 {
		capacity = 1
	}
	d := &DataLine{
		format: format,
		queue:  make(chan [][]float32, capacity),
		done:   make(chan struct{}),
	}
	empty := []Listener{}
	d.listeners.Store(&empty)
	return d
}

// Format returns the format tag of the buffers carried by the line
func (d *DataLine) Format() audio.Format {
	return d.format
}

// Cap returns the queue capacity
func (d *DataLine) Cap() int {
	return cap(d.queue)
}

// Len returns the number of queued buffers
func (d *DataLine) Len() int {
	if d.closed.Load() {
		return 0
	}
	return len(d.queue)
}

// IsOpen reports whether Close has not been called
func (d *DataLine) IsOpen() bool {
	return !d.closed.Load()
}

// Send queues buf, blocking while the line is full. It returns false if the
// line is closed or ctx is done before space becomes available.
func (d *DataLine) Send(ctx context.Context, buf [][]float32) bool {
	if d.closed.Load() {
		return false
	}
	select {
	case d.queue <- buf:
	case <-d.done:
		return false
	case <-ctx.Done():
		return false
	}
	if d.closed.Load() {
		d.drain()
		return false
	}
	d.notify(eventSend, buf)
	return true
}

// Receive dequeues the oldest buffer, blocking while the line is empty.
// It returns nil if the line is closed or ctx is done first.
func (d *DataLine) Receive(ctx context.Context) [][]float32 {
	if d.closed.Load() {
		return nil
	}
	select {
	case buf := <-d.queue:
		d.notify(eventReceive, buf)
		return buf
	case <-d.done:
		return nil
	case <-ctx.Done():
		return nil
	}
}

// ForceSend queues buf without blocking, discarding the oldest buffer when
// the line is full
func (d *DataLine) ForceSend(buf [][]float32) bool {
	if d.closed.Load() {
		return false
	}
	d.forceMu.Lock()
	for {
		select {
		case d.queue <- buf:
			d.forceMu.Unlock()
			d.notify(eventSend, buf)
			return true
		default:
		}
		select {
		case <-d.queue:
			log.Tracef("Line full, dropped oldest buffer")
		default:
		}
		if d.closed.Load() {
			d.forceMu.Unlock()
			return false
		}
	}
}

// ForceReceive dequeues the oldest buffer without blocking. ok is false when
// the line is empty or closed.
func (d *DataLine) ForceReceive() (buf [][]float32, ok bool) {
	if d.closed.Load() {
		return nil, false
	}
	select {
	case buf = <-d.queue:
		d.notify(eventReceive, buf)
		return buf, true
	default:
		return nil, false
	}
}

// SendTimeout queues buf, waiting at most timeout for space. On expiry it
// fires OnSendTimeout and returns false.
func (d *DataLine) SendTimeout(buf [][]float32, timeout time.Duration) bool {
	if d.closed.Load() {
		return false
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case d.queue <- buf:
	case <-d.done:
		return false
	case <-timer.C:
		d.notify(eventSendTimeout, nil)
		return false
	}
	if d.closed.Load() {
		d.drain()
		return false
	}
	d.notify(eventSend, buf)
	return true
}

// ReceiveTimeout dequeues a buffer, waiting at most timeout. On expiry it
// fires OnReceiveTimeout and returns ok == false.
func (d *DataLine) ReceiveTimeout(timeout time.Duration) (buf [][]float32, ok bool) {
	if d.closed.Load() {
		return nil, false
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case buf = <-d.queue:
		d.notify(eventReceive, buf)
		return buf, true
	case <-d.done:
		return nil, false
	case <-timer.C:
		d.notify(eventReceiveTimeout, nil)
		return nil, false
	}
}

// Clear discards every queued buffer
func (d *DataLine) Clear() {
	d.drain()
}

// AddListener registers l. Adding the same listener twice has no effect.
func (d *DataLine) AddListener(l Listener) {
	if l == nil || d.closed.Load() {
		return
	}
	d.listenerMu.Lock()
	defer d.listenerMu.Unlock()

	current := *d.listeners.Load()
	if slices.ContainsFunc(current, func(x Listener) bool { return audio.Same(x, l) }) {
		return
	}
	next := append(slices.Clone(current), l)
	d.listeners.Store(&next)
}

// RemoveListener unregisters l
func (d *DataLine) RemoveListener(l Listener) {
	d.listenerMu.Lock()
	defer d.listenerMu.Unlock()

	current := *d.listeners.Load()
	idx := slices.IndexFunc(current, func(x Listener) bool { return audio.Same(x, l) })
	if idx < 0 {
		return
	}
	next := slices.Delete(slices.Clone(current), idx, idx+1)
	d.listeners.Store(&next)
}

// Listeners returns a snapshot of the registered listeners
func (d *DataLine) Listeners() []Listener {
	return slices.Clone(*d.listeners.Load())
}

// Close permanently closes the line, discarding queued buffers and
// listeners and waking every blocked caller. It is safe to call repeatedly.
func (d *DataLine) Close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.drain()

		d.listenerMu.Lock()
		empty := []Listener{}
		d.listeners.Store(&empty)
		d.listenerMu.Unlock()

		log.Debugf("Data line closed (%s)", d.format)
	})
}

func (d *DataLine) drain() {
	for {
		select {
		case <-d.queue:
		default:
			return
		}
	}
}

func (d *DataLine) notify(kind eventKind, buf [][]float32) {
	listeners := *d.listeners.Load()
	if len(listeners) == 0 {
		return
	}
	ev := Event{Line: d, Buffer: buf}
	for _, l := range listeners {
		switch kind {
		case eventSend:
			l.OnSend(ev)
		case eventReceive:
			l.OnReceive(ev)
		case eventSendTimeout:
			l.OnSendTimeout(ev)
		case eventReceiveTimeout:
			l.OnReceiveTimeout(ev)
		}
	}
}
