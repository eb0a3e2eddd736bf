// ABOUTME: Mixer configuration errors
// ABOUTME: Returned synchronously by the call that introduced the problem
package mixer

import "errors"

var (
	ErrNilNode             = errors.New("node is nil")
	ErrNilEffect           = errors.New("effect is nil")
	ErrEffectAsInput       = errors.New("effects cannot be used as mixer inputs")
	ErrSelfInput           = errors.New("mixer cannot be its own input")
	ErrCycle               = errors.New("input would create a cycle")
	ErrIncompatibleEffect  = errors.New("offline effects cannot run in a mixer")
	ErrMultipleVaryingSize = errors.New("mixer already has a varying-size effect")
	ErrDriverClosed        = errors.New("driver is closed")
	ErrStopTimeout         = errors.New("timed out waiting for render loop to stop")
)
