// ABOUTME: Audio effect package for in-place buffer processing
// ABOUTME: Defines the Effect contract and the built-in effects
// Package effect provides processing units that run inside a mixer's chain.
//
// Every Effect carries an enable control and a mix-level control. The
// mixer skips disabled effects and crossfades between the dry and processed
// signal by the mix level. Effects whose output length differs from their
// input length implement VaryingSize; a mixer accepts at most one of them.
//
// Offline effects (such as Reverse) need a whole signal and are rejected by
// live mixer chains; they can still be rendered directly over a buffer.
//
// Example:
//
//	crush := effect.NewBitcrusher()
//	crush.BitDepth().Set(6)
//	crush.MixLevel().Set(0.5)
//	err := m.AddEffect(crush)
package effect
