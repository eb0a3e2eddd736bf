// ABOUTME: Bounded audio buffer queue between goroutines
// ABOUTME: Blocking, non-blocking and timed handoff with listener events
// Package dataline provides a bounded FIFO of audio buffers that bridges a
// push-style producer (decoder, capture loop, network client) to a pull-style
// consumer (a graph node).
//
// Send and Receive block. ForceSend drops the oldest buffer when full and
// ForceReceive returns immediately. SendTimeout and ReceiveTimeout bound the
// wait and report expiry to listeners.
//
// Closing a line is permanent: the queue and listeners are cleared and every
// later operation returns false or nil without blocking.
//
// Example:
//
//	line := dataline.New(format, 4)
//	defer line.Close()
//
//	go func() {
//	    for buf := range decoded {
//	        line.Send(ctx, buf)
//	    }
//	}()
//
//	buf := line.Receive(ctx)
package dataline
