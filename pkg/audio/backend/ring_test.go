// ABOUTME: Tests for the callback ring buffer
// ABOUTME: Covers wraparound, blocking writes and close semantics
package backend

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestRingBuffer_PushPop(t *testing.T) {
	rb := newRingBuffer(4)

	if n := rb.push([]byte{1, 2, 3}); n != 3 {
		t.Fatalf("push = %d, want 3", n)
	}
	out := make([]byte, 2)
	if n := rb.pop(out); n != 2 || !bytes.Equal(out, []byte{1, 2}) {
		t.Fatalf("pop = %d %v", n, out)
	}

	// wraps around the end
	if n := rb.push([]byte{4, 5, 6, 7}); n != 3 {
		t.Fatalf("push into 3 free bytes = %d", n)
	}
	if rb.len() != 4 || rb.free() != 0 {
		t.Errorf("len=%d free=%d", rb.len(), rb.free())
	}
	out = make([]byte, 8)
	if n := rb.pop(out); n != 4 || !bytes.Equal(out[:4], []byte{3, 4, 5, 6}) {
		t.Errorf("pop = %d %v", n, out[:n])
	}
}

func TestRingBuffer_WriteAllBlocks(t *testing.T) {
	rb := newRingBuffer(2)
	done := make(chan int)
	go func() {
		n, _ := rb.writeAll([]byte{1, 2, 3, 4})
		done <- n
	}()

	got := make([]byte, 0, 4)
	deadline := time.After(2 * time.Second)
	for len(got) < 4 {
		select {
		case <-deadline:
			t.Fatalf("only read %v", got)
		default:
		}
		buf := make([]byte, 1)
		if rb.pop(buf) == 1 {
			got = append(got, buf[0])
		} else {
			time.Sleep(time.Millisecond)
		}
	}
	if n := <-done; n != 4 {
		t.Errorf("writeAll = %d, want 4", n)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("order = %v", got)
	}
}

func TestRingBuffer_CloseWakesReaders(t *testing.T) {
	rb := newRingBuffer(8)
	rb.push([]byte{9})

	errc := make(chan error)
	go func() {
		_, err := rb.readFull(make([]byte, 4))
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond)
	rb.close()
	select {
	case err := <-errc:
		if !errors.Is(err, ErrNotOpen) {
			t.Errorf("expected ErrNotOpen, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("close did not wake readFull")
	}
}

func TestRingBuffer_Reset(t *testing.T) {
	rb := newRingBuffer(8)
	rb.push([]byte{1, 2, 3})
	rb.reset()
	if rb.len() != 0 || rb.free() != 8 {
		t.Errorf("after reset len=%d free=%d", rb.len(), rb.free())
	}
	rb.waitEmpty()
}
