// ABOUTME: Node contract for the pull-based rendering graph
// ABOUTME: Sources, effects and mixers all render into caller-owned buffers
package audio

// Node renders audio into a caller-owned channel-major buffer.
// len(buf[0]) is the number of frames requested; the node fills buf in place.
type Node interface {
	Render(buf [][]float32, sampleRate int) error
}

// NodeFunc adapts a function to the Node interface
type NodeFunc func(buf [][]float32, sampleRate int) error

// Render calls f(buf, sampleRate)
func (f NodeFunc) Render(buf [][]float32, sampleRate int) error {
	return f(buf, sampleRate)
}

// Composite is a node that pulls from other nodes.
// Graph builders use it to walk inputs when checking for cycles.
type Composite interface {
	Node
	Inputs() []Node
}

// Same reports whether a and b are equal, treating values whose dynamic
// type cannot be compared as distinct instead of panicking.
func Same[T comparable](a, b T) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
