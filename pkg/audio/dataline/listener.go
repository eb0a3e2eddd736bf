// ABOUTME: DataLine listener types
// ABOUTME: Event payload, listener interface and a function-field adapter
package dataline

// Event describes one queue operation
type Event struct {
	Line   *DataLine
	Buffer [][]float32 // nil for timeouts
}

// Listener is notified synchronously on the goroutine performing the
// operation. Implementations must not block.
type Listener interface {
	OnSend(Event)
	OnReceive(Event)
	OnSendTimeout(Event)
	OnReceiveTimeout(Event)
}

// ListenerFuncs adapts optional functions to the Listener interface.
// Listeners are identified by pointer, so register a *ListenerFuncs.
type ListenerFuncs struct {
	Send           func(Event)
	Receive        func(Event)
	SendTimeout    func(Event)
	ReceiveTimeout func(Event)
}

func (l *ListenerFuncs) OnSend(e Event) {
	if l.Send != nil {
		l.Send(e)
	}
}

func (l *ListenerFuncs) OnReceive(e Event) {
	if l.Receive != nil {
		l.Receive(e)
	}
}

func (l *ListenerFuncs) OnSendTimeout(e Event) {
	if l.SendTimeout != nil {
		l.SendTimeout(e)
	}
}

func (l *ListenerFuncs) OnReceiveTimeout(e Event) {
	if l.ReceiveTimeout != nil {
		l.ReceiveTimeout(e)
	}
}
