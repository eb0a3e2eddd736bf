// ABOUTME: Float and boolean control implementations
// ABOUTME: Values stored as atomic words and clamped to their range
package control

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Float is a bounded float parameter
type Float struct {
	name     string
	min, max float32
	def      float32
	bits     atomic.Uint32
}

// NewFloat creates a float control clamped to [min, max]
func NewFloat(name string, min, max, def float32) *Float {
	if min > max {
		min, max = max, min
	}
	c := &Float{name: name, min: min, max: max, def: def}
	c.Set(def)
	return c
}

// Name returns the display name
func (c *Float) Name() string { return c.name }

// Min returns the lower bound
func (c *Float) Min() float32 { return c.min }

// Max returns the upper bound
func (c *Float) Max() float32 { return c.max }

// Default returns the initial value
func (c *Float) Default() float32 { return c.def }

// Value returns the current value
func (c *Float) Value() float32 {
	return math.Float32frombits(c.bits.Load())
}

// Set stores v clamped to the control range. NaN is ignored.
func (c *Float) Set(v float32) {
	if v != v {
		return
	}
	if v < c.min {
		v = c.min
	} else if v > c.max {
		v = c.max
	}
	c.bits.Store(math.Float32bits(v))
}

// Reset restores the default value
func (c *Float) Reset() { c.Set(c.def) }

// Normalized returns the value mapped onto [0, 1]
func (c *Float) Normalized() float32 {
	if c.max == c.min {
		return 0
	}
	return (c.Value() - c.min) / (c.max - c.min)
}

func (c *Float) String() string {
	return fmt.Sprintf("%s: %.3f [%.3f..%.3f]", c.name, c.Value(), c.min, c.max)
}

// Bool is an on/off parameter
type Bool struct {
	name  string
	def   bool
	value atomic.Bool
}

// NewBool creates a boolean control
func NewBool(name string, def bool) *Bool {
	c := &Bool{name: name, def: def}
	c.value.Store(def)
	return c
}

// Name returns the display name
func (c *Bool) Name() string { return c.name }

// Enabled returns the current value
func (c *Bool) Enabled() bool { return c.value.Load() }

// Set stores v
func (c *Bool) Set(v bool) { c.value.Store(v) }

// Toggle flips the value and returns the new state
func (c *Bool) Toggle() bool {
	for {
		old := c.value.Load()
		if c.value.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Reset restores the default value
func (c *Bool) Reset() { c.value.Store(c.def) }

func (c *Bool) String() string {
	return fmt.Sprintf("%s: %v", c.name, c.Enabled())
}
