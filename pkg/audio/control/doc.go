// ABOUTME: Lock-free controls for realtime parameters
// ABOUTME: Float and boolean values shared between UI and render goroutines
// Package control provides parameters that can be written by any goroutine
// and read by the render goroutine without locking.
//
// Each control stores a single machine word. Writes are last-write-wins.
//
// Example:
//
//	gain := control.NewFloat("Gain", 0, 2, 1)
//	gain.Set(1.5)
//	v := gain.Value()
package control
