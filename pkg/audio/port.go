// ABOUTME: Audio port definitions
// ABOUTME: Describes a directional device endpoint exposed by a backend
package audio

import "fmt"

// Flow is the direction audio moves through a port
type Flow int

const (
	FlowOut Flow = iota
	FlowIn
)

func (f Flow) String() string {
	if f == FlowIn {
		return "IN"
	}
	return "OUT"
}

// Port describes one endpoint of a backend. Ports are compared by Link.
type Port struct {
	Link        string // Opaque backend handle
	Flow        Flow
	Active      bool
	MixFormat   Format // Native device format
	Name        string
	Vendor      string
	Version     string
	Description string
}

// Equal reports whether both ports refer to the same endpoint
func (p *Port) Equal(other *Port) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Link == other.Link
}

func (p *Port) String() string {
	if p == nil {
		return "<nil port>"
	}
	return fmt.Sprintf("%s [%s] %s (%s)", p.Name, p.Flow, p.Vendor, p.MixFormat)
}
