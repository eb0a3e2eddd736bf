// ABOUTME: Tests for the DataLine queue
// ABOUTME: Blocking, force, timeout and close semantics plus listener events
package dataline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Resonate-Protocol/audiograph/pkg/audio"
)

type countingListener struct {
	sends, receives, sendTimeouts, receiveTimeouts atomic.Int32
}

func (c *countingListener) OnSend(Event)           { c.sends.Add(1) }
func (c *countingListener) OnReceive(Event)        { c.receives.Add(1) }
func (c *countingListener) OnSendTimeout(Event)    { c.sendTimeouts.Add(1) }
func (c *countingListener) OnReceiveTimeout(Event) { c.receiveTimeouts.Add(1) }

func newLine(capacity int) *DataLine {
	return New(audio.FormatHigh, capacity)
}

func buffer(v float32) [][]float32 {
	return [][]float32{{v}, {v}}
}

func TestSendReceiveOrder(t *testing.T) {
	line := newLine(3)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if !line.Send(ctx, buffer(float32(i))) {
			t.Fatalf("send %d failed", i)
		}
	}
	for i := 0; i < 3; i++ {
		buf := line.Receive(ctx)
		if buf[0][0] != float32(i) {
			t.Errorf("expected %d, got %v", i, buf[0][0])
		}
	}
}

func TestCapacityOneSendTimeout(t *testing.T) {
	line := newLine(1)
	l := &countingListener{}
	line.AddListener(l)

	if !line.Send(context.Background(), buffer(1)) {
		t.Fatal("first send failed")
	}

	start := time.Now()
	if line.SendTimeout(buffer(2), 10*time.Millisecond) {
		t.Fatal("expected second send to time out")
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("expected SendTimeout to wait for the timeout")
	}
	if got := l.sendTimeouts.Load(); got != 1 {
		t.Errorf("expected exactly one timeout notification, got %d", got)
	}
	if got := l.sends.Load(); got != 1 {
		t.Errorf("expected one send notification, got %d", got)
	}
}

func TestSecondSendBlocks(t *testing.T) {
	line := newLine(1)
	ctx := context.Background()
	line.Send(ctx, buffer(1))

	sent := make(chan bool)
	go func() {
		sent <- line.Send(ctx, buffer(2))
	}()

	select {
	case <-sent:
		t.Fatal("expected send to block while the line is full")
	case <-time.After(20 * time.Millisecond):
	}

	if buf := line.Receive(ctx); buf[0][0] != 1 {
		t.Errorf("expected 1, got %v", buf[0][0])
	}
	select {
	case ok := <-sent:
		if !ok {
			t.Error("expected blocked send to succeed")
		}
	case <-time.After(time.Second):
		t.Fatal("blocked send never completed")
	}
}

func TestSendContextCancel(t *testing.T) {
	line := newLine(1)
	line.Send(context.Background(), buffer(1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if line.Send(ctx, buffer(2)) {
		t.Error("expected send to fail after context cancel")
	}
}

func TestForceSendDropsOldest(t *testing.T) {
	line := newLine(2)
	for i := 0; i < 5; i++ {
		if !line.ForceSend(buffer(float32(i))) {
			t.Fatalf("force send %d failed", i)
		}
	}
	if line.Len() != 2 {
		t.Fatalf("expected 2 queued, got %d", line.Len())
	}
	first, _ := line.ForceReceive()
	second, _ := line.ForceReceive()
	if first[0][0] != 3 || second[0][0] != 4 {
		t.Errorf("expected newest two buffers, got %v and %v", first[0][0], second[0][0])
	}
}

func TestForceReceiveEmpty(t *testing.T) {
	line := newLine(1)
	buf, ok := line.ForceReceive()
	if ok || buf != nil {
		t.Errorf("expected empty result, got %v %v", buf, ok)
	}
}

func TestReceiveTimeout(t *testing.T) {
	line := newLine(1)
	l := &countingListener{}
	line.AddListener(l)

	if _, ok := line.ReceiveTimeout(5 * time.Millisecond); ok {
		t.Error("expected timeout on empty line")
	}
	if l.receiveTimeouts.Load() != 1 {
		t.Errorf("expected one receive timeout, got %d", l.receiveTimeouts.Load())
	}

	line.ForceSend(buffer(7))
	buf, ok := line.ReceiveTimeout(5 * time.Millisecond)
	if !ok || buf[0][0] != 7 {
		t.Errorf("expected 7, got %v %v", buf, ok)
	}
	if l.receives.Load() != 1 {
		t.Errorf("expected one receive notification, got %d", l.receives.Load())
	}
}

func TestCloseMakesOperationsInert(t *testing.T) {
	line := newLine(2)
	l := &countingListener{}
	line.AddListener(l)
	line.Send(context.Background(), buffer(1))

	line.Close()
	line.Close()

	if line.IsOpen() {
		t.Error("expected line to be closed")
	}
	if line.Len() != 0 {
		t.Errorf("expected queue cleared, got %d", line.Len())
	}
	if len(line.Listeners()) != 0 {
		t.Error("expected listeners cleared")
	}
	if line.Send(context.Background(), buffer(2)) {
		t.Error("expected send to fail after close")
	}
	if line.ForceSend(buffer(2)) {
		t.Error("expected force send to fail after close")
	}
	if line.SendTimeout(buffer(2), time.Millisecond) {
		t.Error("expected timed send to fail after close")
	}
	if line.Receive(context.Background()) != nil {
		t.Error("expected nil receive after close")
	}
	if _, ok := line.ReceiveTimeout(time.Millisecond); ok {
		t.Error("expected timed receive to fail after close")
	}
	if l.sendTimeouts.Load() != 0 || l.receiveTimeouts.Load() != 0 {
		t.Error("expected no notifications after close")
	}
}

func TestCloseWakesBlockedReceiver(t *testing.T) {
	line := newLine(1)
	done := make(chan [][]float32)
	go func() {
		done <- line.Receive(context.Background())
	}()
	time.Sleep(10 * time.Millisecond)
	line.Close()

	select {
	case buf := <-done:
		if buf != nil {
			t.Errorf("expected nil, got %v", buf)
		}
	case <-time.After(time.Second):
		t.Fatal("receiver was not woken by close")
	}
}

func TestListenerFuncsAndRemoval(t *testing.T) {
	line := newLine(4)
	var sends int
	l := &ListenerFuncs{Send: func(e Event) {
		if e.Line != line {
			t.Error("expected event to reference the line")
		}
		sends++
	}}
	line.AddListener(l)
	line.AddListener(l)
	line.ForceSend(buffer(1))
	line.RemoveListener(l)
	line.ForceSend(buffer(2))

	if sends != 1 {
		t.Errorf("expected 1 send notification, got %d", sends)
	}
}

// tagListener is a value type with a slice field, so two instances
// cannot be compared with ==.
type tagListener struct {
	tags []string
}

func (tagListener) OnSend(Event)           {}
func (tagListener) OnReceive(Event)        {}
func (tagListener) OnSendTimeout(Event)    {}
func (tagListener) OnReceiveTimeout(Event) {}

func TestNonComparableListeners(t *testing.T) {
	line := newLine(2)
	counter := &countingListener{}

	line.AddListener(counter)
	line.AddListener(tagListener{tags: []string{"a"}})
	line.AddListener(tagListener{tags: []string{"b"}})
	if got := len(line.Listeners()); got != 3 {
		t.Fatalf("expected 3 listeners, got %d", got)
	}

	// Uncomparable values never match, so removal leaves them registered
	line.RemoveListener(tagListener{tags: []string{"a"}})
	if got := len(line.Listeners()); got != 3 {
		t.Fatalf("expected 3 listeners after removing a copy, got %d", got)
	}

	line.RemoveListener(counter)
	if got := len(line.Listeners()); got != 2 {
		t.Fatalf("expected 2 listeners, got %d", got)
	}
	line.ForceSend(buffer(1))
	if counter.sends.Load() != 0 {
		t.Error("removed listener still notified")
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	line := newLine(2)
	ctx := context.Background()
	const n = 200

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			line.Send(ctx, buffer(float32(i)))
		}
	}()

	for i := 0; i < n; i++ {
		buf := line.Receive(ctx)
		if buf[0][0] != float32(i) {
			t.Fatalf("expected %d, got %v", i, buf[0][0])
		}
	}
	wg.Wait()
}
