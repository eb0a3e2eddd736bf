// ABOUTME: Timestamp-based playback scheduler
// ABOUTME: Holds decoded network buffers until their play time, then sends them to a DataLine
package player

import (
	"container/heap"
	"context"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/audiograph/internal/sync"
	"github.com/Resonate-Protocol/audiograph/pkg/audio/dataline"
)

// SchedulerConfig holds Scheduler settings. Zero fields take defaults.
type SchedulerConfig struct {
	// Delay is added to every timestamp to absorb network jitter
	// (default 150ms)
	Delay time.Duration

	// Tolerance is how early a buffer may be released and how late it may
	// be before it is dropped (default 50ms)
	Tolerance time.Duration

	// Tick is the queue polling interval (default 10ms)
	Tick time.Duration
}

// Buffer is a decoded chunk waiting for its play time
type Buffer struct {
	Timestamp int64 // server clock, µs
	PlayAt    time.Time
	Samples   [][]float32
}

// Stats tracks scheduler metrics
type Stats struct {
	Received int64
	Played   int64
	Dropped  int64
}

// Scheduler releases buffers into out when their play time comes
type Scheduler struct {
	clock *sync.ClockSync
	out   *dataline.DataLine
	cfg   SchedulerConfig

	mu     stdsync.Mutex
	queue  bufferQueue
	logged int

	received atomic.Int64
	played   atomic.Int64
	dropped  atomic.Int64
}

// NewScheduler creates a scheduler feeding out
func NewScheduler(clock *sync.ClockSync, out *dataline.DataLine, cfg SchedulerConfig) *Scheduler {
	if cfg.Delay <= 0 {
		cfg.Delay = 150 * time.Millisecond
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 50 * time.Millisecond
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 10 * time.Millisecond
	}
	return &Scheduler{clock: clock, out: out, cfg: cfg}
}

// Line returns the DataLine buffers are released into
func (s *Scheduler) Line() *dataline.DataLine {
	return s.out
}

// Schedule queues samples for playback at timestamp (server clock, µs).
// Before the first clock sample the timestamp anchors the clock.
func (s *Scheduler) Schedule(timestamp int64, samples [][]float32) {
	s.clock.Anchor(timestamp)
	buf := Buffer{
		Timestamp: timestamp,
		PlayAt:    s.clock.ServerToLocalTime(timestamp).Add(s.cfg.Delay),
		Samples:   samples,
	}
	s.received.Add(1)

	s.mu.Lock()
	heap.Push(&s.queue, buf)
	first := s.logged < 3
	s.logged++
	s.mu.Unlock()

	if first {
		rtt, quality := s.clock.Stats()
		log.Debugf("Scheduled buffer: timestamp=%d, delay=%v, rtt=%dμs, sync %s",
			timestamp, time.Until(buf.PlayAt).Round(time.Millisecond), rtt, quality)
	}
}

// Run releases due buffers until ctx is done
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.processQueue(ctx)
		}
	}
}

// processQueue sends every buffer inside the tolerance window and drops
// those that are too late
func (s *Scheduler) processQueue(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.queue.Len() == 0 {
			s.mu.Unlock()
			return
		}
		delay := time.Until(s.queue.Peek().PlayAt)
		if delay > s.cfg.Tolerance {
			s.mu.Unlock()
			return
		}
		buf := heap.Pop(&s.queue).(Buffer)
		s.mu.Unlock()

		if delay < -s.cfg.Tolerance {
			s.dropped.Add(1)
			log.Debugf("Dropped late buffer: %v late", -delay)
			continue
		}
		if !s.out.Send(ctx, buf.Samples) {
			return
		}
		s.played.Add(1)
	}
}

// Reset drops every queued buffer
func (s *Scheduler) Reset() {
	s.mu.Lock()
	n := s.queue.Len()
	s.queue = bufferQueue{}
	s.mu.Unlock()
	if n > 0 {
		log.Debugf("Discarded %d queued buffers", n)
	}
}

// Pending returns the number of queued buffers
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Stats returns scheduler statistics
func (s *Scheduler) Stats() Stats {
	return Stats{
		Received: s.received.Load(),
		Played:   s.played.Load(),
		Dropped:  s.dropped.Load(),
	}
}

// bufferQueue is a min-heap on PlayAt
type bufferQueue []Buffer

func (q bufferQueue) Len() int           { return len(q) }
func (q bufferQueue) Less(i, j int) bool { return q[i].PlayAt.Before(q[j].PlayAt) }
func (q bufferQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *bufferQueue) Push(x any) {
	*q = append(*q, x.(Buffer))
}

func (q *bufferQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

func (q bufferQueue) Peek() Buffer {
	return q[0]
}
